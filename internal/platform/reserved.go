// SPDX-License-Identifier: MPL-2.0

// Package platform holds naming rules imposed by the operating systems a
// Bedrock server runs on.
package platform

import "strings"

// reservedNames are device names Windows refuses as file or folder names,
// with or without an extension.
var reservedNames = map[string]bool{
	"CON": true, "PRN": true, "AUX": true, "NUL": true,
	"COM1": true, "COM2": true, "COM3": true, "COM4": true,
	"COM5": true, "COM6": true, "COM7": true, "COM8": true, "COM9": true,
	"LPT1": true, "LPT2": true, "LPT3": true, "LPT4": true,
	"LPT5": true, "LPT6": true, "LPT7": true, "LPT8": true, "LPT9": true,
}

// IsReservedName reports whether name cannot be created on Windows. Worlds
// are routinely copied between Linux and Windows servers, so pack folders
// avoid these names everywhere.
func IsReservedName(name string) bool {
	stem, _, _ := strings.Cut(name, ".")
	return reservedNames[strings.ToUpper(strings.TrimRight(stem, " "))]
}
