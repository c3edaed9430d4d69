// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Downtown Montclair Contributors

package config

import (
	"encoding/json"
	"sync"

	"github.com/invopop/jsonschema"
	"github.com/samber/oops"
	jschema "github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"
)

// SchemaID is the $id of the config file schema.
const SchemaID = "https://downtownmontclair.org/schemas/config.schema.json"

var (
	compileOnce sync.Once
	compiled    *jschema.Schema
	compileErr  error
)

// GenerateSchema returns the JSON Schema of the config file.
func GenerateSchema() ([]byte, error) {
	r := jsonschema.Reflector{
		DoNotReference: true,
	}
	schema := r.Reflect(&Config{})
	schema.ID = jsonschema.ID(SchemaID)
	schema.Title = "Downtown CLI configuration"
	schema.Description = "Schema for downtown config.yaml files"

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, oops.Code("CONFIG_SCHEMA_FAILED").Wrap(err)
	}
	return data, nil
}

// ValidateSchema validates YAML config data against the schema. An empty
// file is valid.
func ValidateSchema(data []byte) error {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return oops.Code("CONFIG_INVALID_YAML").Wrap(err)
	}
	if doc == nil {
		return nil
	}
	// Normalize YAML scalars to the types encoding/json produces.
	normalized, err := json.Marshal(doc)
	if err != nil {
		return oops.Code("CONFIG_INVALID_YAML").Wrap(err)
	}
	if err := json.Unmarshal(normalized, &doc); err != nil {
		return oops.Code("CONFIG_INVALID_YAML").Wrap(err)
	}

	sch, err := compiledSchema()
	if err != nil {
		return err
	}
	if err := sch.Validate(doc); err != nil {
		return oops.Code("CONFIG_SCHEMA_VIOLATION").Public(err.Error()).Wrap(err)
	}
	return nil
}

func compiledSchema() (*jschema.Schema, error) {
	compileOnce.Do(func() {
		raw, err := GenerateSchema()
		if err != nil {
			compileErr = err
			return
		}
		var doc any
		if err := json.Unmarshal(raw, &doc); err != nil {
			compileErr = oops.Code("CONFIG_SCHEMA_FAILED").Wrap(err)
			return
		}
		c := jschema.NewCompiler()
		if err := c.AddResource("config.schema.json", doc); err != nil {
			compileErr = oops.Code("CONFIG_SCHEMA_FAILED").Wrap(err)
			return
		}
		compiled, compileErr = c.Compile("config.schema.json")
		if compileErr != nil {
			compileErr = oops.Code("CONFIG_SCHEMA_FAILED").Wrap(compileErr)
		}
	})
	return compiled, compileErr
}
