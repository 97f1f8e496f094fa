package config

import (
	"fmt"
	"os"

	"github.com/xeipuuv/gojsonschema"
)

// configSchema is the JSON schema every config file must satisfy before it
// is unmarshalled. Unknown keys are tolerated so older binaries can read
// newer files.
const configSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"properties": {
		"shell": {
			"type": "object",
			"properties": {
				"bash_path": {"type": "string"},
				"work_dir": {"type": "string"},
				"timeout_seconds": {"type": "integer", "minimum": 1},
				"queue_size": {"type": "integer", "minimum": 1}
			}
		},
		"security": {
			"type": "object",
			"properties": {
				"deny_prefixes": {
					"type": "array",
					"items": {"type": "string", "minLength": 1}
				}
			}
		},
		"ai": {
			"type": "object",
			"properties": {
				"provider": {"type": "string", "enum": ["anthropic", "openai"]},
				"model": {"type": "string"},
				"api_key": {"type": "string"},
				"temperature": {"type": "number", "minimum": 0, "maximum": 2},
				"max_tokens": {"type": "integer", "minimum": 1},
				"max_turns": {"type": "integer", "minimum": 1}
			}
		},
		"gateway": {
			"type": "object",
			"properties": {
				"enabled": {"type": "boolean"},
				"addr": {"type": "string"}
			}
		},
		"history": {
			"type": "object",
			"properties": {
				"enabled": {"type": "boolean"},
				"path": {"type": "string"},
				"retention_days": {"type": "integer", "minimum": 0}
			}
		},
		"logging": {
			"type": "object",
			"properties": {
				"level": {"type": "string", "enum": ["trace", "debug", "info", "warn", "error"]},
				"file": {"type": "string"},
				"console": {"type": "boolean"},
				"pretty": {"type": "boolean"},
				"run_dir": {"type": "string"}
			}
		},
		"data_dir": {"type": "string"}
	}
}`

// validateFile checks a config file against the schema
func validateFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return validateBytes(data)
}

// validateBytes checks raw JSON config content against the schema
func validateBytes(data []byte) error {
	schemaLoader := gojsonschema.NewStringLoader(configSchema)
	docLoader := gojsonschema.NewBytesLoader(data)

	result, err := gojsonschema.Validate(schemaLoader, docLoader)
	if err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}

	if !result.Valid() {
		errs := result.Errors()
		if len(errs) > 0 {
			return fmt.Errorf("config does not match schema: %s", errs[0].String())
		}
		return fmt.Errorf("config does not match schema")
	}

	return nil
}
