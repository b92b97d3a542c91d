// SPDX-License-Identifier: MPL-2.0

package registry

import (
	"fmt"
	"strings"
	"sync"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
)

const documentSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "array"
}`

const entrySchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["pack_id", "version"],
	"properties": {
		"pack_id": {"type": "string", "pattern": "\\S"},
		"version": {
			"anyOf": [
				{"type": "array", "minItems": 1, "items": {"type": "integer", "minimum": 0}},
				{"type": "string", "minLength": 1}
			]
		}
	}
}`

type schemas struct {
	document *jsonschema.Schema
	entry    *jsonschema.Schema
}

var compiledSchemas = sync.OnceValues(func() (*schemas, error) {
	document, err := compileSchema("document.json", documentSchema)
	if err != nil {
		return nil, err
	}
	entry, err := compileSchema("entry.json", entrySchema)
	if err != nil {
		return nil, err
	}
	return &schemas{document: document, entry: entry}, nil
})

func compileSchema(id, schema string) (*jsonschema.Schema, error) {
	resourceID := "inmemory://registry/" + id
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(resourceID, strings.NewReader(schema)); err != nil {
		return nil, fmt.Errorf("add schema resource %s: %w", id, err)
	}
	compiled, err := compiler.Compile(resourceID)
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", id, err)
	}
	return compiled, nil
}
