package config

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// JSONSchema describes Config as a JSON schema, for editors validating
// config files.
func JSONSchema() ([]byte, error) {
	reflector := jsonschema.Reflector{
		// Keys are the mapstructure names viper reads
		FieldNameTag:               "mapstructure",
		AllowAdditionalProperties:  false,
		DoNotReference:             true,
		RequiredFromJSONSchemaTags: true,
	}

	schema := reflector.Reflect(&Config{})
	schema.Title = "dittofiles configuration"
	schema.Description = "Configuration schema for the dittofiles server"

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}
	return data, nil
}
