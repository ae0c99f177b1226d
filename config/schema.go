package config

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
)

// GenerateSchema reflects the typed config sections into a JSON Schema.
// The inline Extensions field stays out of it; extension sections carry
// their own published schemas.
func GenerateSchema() ([]byte, error) {
	// Shadow of Config limited to the typed sections. The inline
	// Extensions field has no fixed shape to reflect.
	type BaseConfig struct {
		Name     string                   `yaml:"name,omitempty" jsonschema:"description=Name of the project or host configuration"`
		Version  string                   `yaml:"version" jsonschema:"description=Configuration version (e.g. '1.0')"`
		TUI      *TUIConfig               `yaml:"tui,omitempty" jsonschema:"description=TUI appearance settings"`
		Daemon   *DaemonConfig            `yaml:"daemon,omitempty" jsonschema:"description=Configuration for the warden daemon (wardend)"`
		Fuses    *FusesConfig             `yaml:"fuses,omitempty" jsonschema:"description=Cleanup fuse defaults"`
		Adapters map[string]AdapterConfig `yaml:"adapters,omitempty" jsonschema:"description=Agent adapters keyed by name"`
	}

	reflector := jsonschema.Reflector{
		// Extension sections are arbitrary top-level keys, so unknown
		// properties stay legal.
		AllowAdditionalProperties: true,
		ExpandedStruct:            true,
		FieldNameTag:              "yaml",
	}

	schema := reflector.Reflect(&BaseConfig{})
	schema.Title = "Warden Configuration"
	schema.Description = "Schema for warden.yml properties."
	schema.Version = "http://json-schema.org/draft-07/schema#"
	return json.MarshalIndent(schema, "", "  ")
}
