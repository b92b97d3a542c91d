// SPDX-License-Identifier: MPL-2.0

package main

import cmd "github.com/bedrock-tools/addonsync/cmd/addonsync"

func main() {
	cmd.Execute()
}
