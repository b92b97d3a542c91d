// SPDX-License-Identifier: MPL-2.0

// Package cueutil validates JSON and CUE documents against an embedded CUE
// schema and decodes them into Go values.
//
// Every JSON document is also valid CUE, so pack manifests are checked by
// unifying them with a definition such as #Manifest:
//
//	//go:embed manifest_schema.cue
//	var schema []byte
//
//	res, err := cueutil.ParseAndDecode[Manifest](schema, data, "#Manifest",
//		cueutil.WithFilename(path))
//	if err != nil {
//		return nil, err
//	}
//	return res.Value, nil
//
// Validation errors name the failing field in JSON notation.
package cueutil
