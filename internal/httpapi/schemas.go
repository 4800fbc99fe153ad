package httpapi

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

const schemaBaseURL = "https://schedsync.example/schemas/"

const scheduleSchema = `{
	"type": "object",
	"required": ["name", "date"],
	"properties": {
		"name":   {"type": "string", "minLength": 1, "maxLength": 1024},
		"date":   {"type": "string", "pattern": "^[0-9]{4}-[0-9]{2}-[0-9]{2}$"},
		"budget": {"type": "integer"},
		"color":  {"type": "integer", "minimum": 0}
	},
	"additionalProperties": false
}`

const workSchema = `{
	"type": "object",
	"required": ["name", "date"],
	"properties": {
		"name":   {"type": "string", "minLength": 1},
		"date":   {"type": "string", "pattern": "^[0-9]{4}-[0-9]{2}-[0-9]{2}$"},
		"pay":    {"type": "integer", "minimum": 0},
		"payday": {"type": "string"},
		"color":  {"type": "integer", "minimum": 0},
		"start":  {"type": "string"},
		"end":    {"type": "string"}
	},
	"additionalProperties": false
}`

var schemaSources = map[string]string{
	"schedule.json": scheduleSchema,
	"schedule-batch.json": `{
		"type": "object",
		"required": ["schedules"],
		"properties": {"schedules": {"type": "array", "items": ` + scheduleSchema + `}},
		"additionalProperties": false
	}`,
	"work-batch.json": `{
		"type": "object",
		"required": ["works"],
		"properties": {"works": {"type": "array", "items": ` + workSchema + `}},
		"additionalProperties": false
	}`,
	"ledger-entry.json": `{
		"type": "object",
		"required": ["kind", "date", "amount"],
		"properties": {
			"kind":    {"enum": ["income", "expense"]},
			"date":    {"type": "string", "pattern": "^[0-9]{4}-[0-9]{2}-[0-9]{2}$"},
			"amount":  {"type": "integer", "minimum": 0},
			"content": {"type": "string"}
		},
		"additionalProperties": false
	}`,
}

func compileSchemas() (map[string]*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	for name, src := range schemaSources {
		doc, err := jsonschema.UnmarshalJSON(strings.NewReader(src))
		if err != nil {
			return nil, fmt.Errorf("schema %s: %w", name, err)
		}
		if err := c.AddResource(schemaBaseURL+name, doc); err != nil {
			return nil, fmt.Errorf("schema %s: %w", name, err)
		}
	}
	out := make(map[string]*jsonschema.Schema, len(schemaSources))
	for name := range schemaSources {
		sch, err := c.Compile(schemaBaseURL + name)
		if err != nil {
			return nil, fmt.Errorf("compiling schema %s: %w", name, err)
		}
		out[name] = sch
	}
	return out, nil
}

// validate checks body against the named schema.
func validate(sch *jsonschema.Schema, body []byte) error {
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(body))
	if err != nil {
		return err
	}
	return sch.Validate(inst)
}
