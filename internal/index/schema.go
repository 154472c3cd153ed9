package index

import (
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// objectSchema matches address-keyed artifacts.
const objectSchema = `{
  "type": "object",
  "additionalProperties": {
    "type": "object",
    "required": ["email_context"],
    "properties": {
      "email_context": {"type": "string"},
      "ID": {"type": "string"},
      "FROM": {"type": "string"}
    }
  }
}`

// rowsSchema matches row-list artifacts.
const rowsSchema = `{
  "type": "array",
  "items": {
    "type": "object",
    "required": ["email", "email_context"],
    "properties": {
      "email": {"type": "string", "minLength": 1},
      "email_context": {
        "type": "object",
        "additionalProperties": {"type": ["string", "number", "boolean", "null"]}
      }
    }
  }
}`

var (
	objectValidator = mustCompile("object.json", objectSchema)
	rowsValidator   = mustCompile("rows.json", rowsSchema)
)

func compileSchema(name, src string) (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, strings.NewReader(src)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile(name)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return schema, nil
}

func mustCompile(name, src string) *jsonschema.Schema {
	s, err := compileSchema(name, src)
	if err != nil {
		panic(err)
	}
	return s
}
