package http

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

const prioritySchema = `{"type": "string", "enum": ["emergency", "alarm", "warning", "caution"]}`

const positionSchema = `{
	"type": "object",
	"properties": {
		"latitude": {"type": "number", "minimum": -90, "maximum": 90},
		"longitude": {"type": "number", "minimum": -180, "maximum": 180},
		"altitude": {"type": "number"}
	},
	"required": ["latitude", "longitude"]
}`

const metaDataSchema = `{
	"type": "object",
	"properties": {
		"name": {"type": "string"},
		"message": {"type": "string"},
		"path": {"type": "string"},
		"sourceRef": {"type": "string"},
		"position": ` + positionSchema + `
	}
}`

var (
	createAlertSchema = mustSchema(`{
		"type": "object",
		"properties": {
			"priority": ` + prioritySchema + `,
			"properties": {"oneOf": [{"type": "null"}, ` + metaDataSchema + `]}
		},
		"required": ["priority"]
	}`)

	updatePrioritySchema = mustSchema(`{
		"type": "object",
		"properties": {"value": ` + prioritySchema + `},
		"required": ["value"]
	}`)

	mobSchema = mustSchema(`{
		"type": "object",
		"properties": {
			"name": {"type": "string"},
			"message": {"type": "string"},
			"sourceRef": {"type": "string"}
		}
	}`)

	propertiesSchema = mustSchema(`{
		"allOf": [` + metaDataSchema + `, {"minProperties": 1}]
	}`)
)

func mustSchema(src string) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
	if err != nil {
		panic(fmt.Sprintf("invalid request schema: %v", err))
	}
	return schema
}

// schemaErrors is a failed validation.
type schemaErrors []gojsonschema.ResultError

func (e schemaErrors) Error() string {
	msgs := make([]string, 0, len(e))
	for _, re := range e {
		msgs = append(msgs, re.String())
	}
	return strings.Join(msgs, "; ")
}

// concerns reports whether any failure is about field.
func (e schemaErrors) concerns(field string) bool {
	for _, re := range e {
		if re.Field() == field || strings.HasPrefix(re.Field(), field+".") {
			return true
		}
		if prop, ok := re.Details()["property"]; ok && prop == field {
			return true
		}
	}
	return false
}

// validate checks body against schema. An empty body validates as {}.
func validate(schema *gojsonschema.Schema, body []byte) error {
	if len(strings.TrimSpace(string(body))) == 0 {
		body = []byte("{}")
	}
	result, err := schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return err
	}
	if !result.Valid() {
		return schemaErrors(result.Errors())
	}
	return nil
}
