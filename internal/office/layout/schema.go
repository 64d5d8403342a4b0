package layout

import (
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const schemaURL = "layout.schema.json"

const schemaJSON = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["version", "cols", "rows", "tiles", "tileColors", "furniture"],
  "properties": {
    "version": {"type": "integer", "minimum": 0},
    "cols": {"type": "integer", "minimum": 1, "maximum": 64},
    "rows": {"type": "integer", "minimum": 1, "maximum": 64},
    "tiles": {
      "type": "array",
      "items": {"type": "integer", "minimum": 0, "maximum": 8}
    },
    "tileColors": {
      "type": "array",
      "items": {"oneOf": [{"type": "null"}, {"$ref": "#/definitions/tint"}]}
    },
    "furniture": {
      "type": "array",
      "items": {"$ref": "#/definitions/placement"}
    }
  },
  "definitions": {
    "tint": {
      "type": "object",
      "properties": {
        "h": {"type": "integer", "minimum": -180, "maximum": 180},
        "s": {"type": "integer", "minimum": -100, "maximum": 100},
        "b": {"type": "integer", "minimum": -100, "maximum": 100},
        "c": {"type": "integer", "minimum": -100, "maximum": 100}
      }
    },
    "placement": {
      "type": "object",
      "required": ["uid", "type", "col", "row"],
      "properties": {
        "uid": {"type": "string", "minLength": 1},
        "type": {"type": "string", "minLength": 1},
        "col": {"type": "integer"},
        "row": {"type": "integer"},
        "groupId": {"type": "string"},
        "color": {"$ref": "#/definitions/tint"}
      }
    }
  }
}`

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		if err := c.AddResource(schemaURL, strings.NewReader(schemaJSON)); err != nil {
			schemaErr = err
			return
		}
		schema, schemaErr = c.Compile(schemaURL)
	})
	return schema, schemaErr
}

func validateRecord(rec Record) error {
	s, err := compiledSchema()
	if err != nil {
		return err
	}
	return s.Validate(map[string]any(rec))
}
