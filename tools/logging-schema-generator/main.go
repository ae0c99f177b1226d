package main

import (
	"encoding/json"
	"log"
	"os"

	"github.com/invopop/jsonschema"
	"github.com/wardentools/warden/logging"
)

// Regenerates the published schema for the logging extension section of
// warden.yml. Run from the logging package directory.
func main() {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: true,
		ExpandedStruct:            true,
		FieldNameTag:              "yaml",
	}

	s := reflector.Reflect(&logging.Config{})
	s.Title = "Warden Logging Configuration"
	s.Description = "Schema for the 'logging' extension in warden.yml."
	// Every field stays optional; a bare logging section is valid.
	s.Required = nil

	raw, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		log.Fatalf("encode logging schema: %v", err)
	}
	const out = "logging.schema.json"
	if err := os.WriteFile(out, raw, 0644); err != nil {
		log.Fatalf("write %s: %v", out, err)
	}
	log.Printf("Wrote logging schema to %s", out)
}
