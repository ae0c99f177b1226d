package main

import (
	"log"
	"os"
	"path/filepath"

	"github.com/wardentools/warden/config"
)

// Regenerates the reflected base schema for BaseConfig. Run from the
// repository root after changing config struct tags.
func main() {
	raw, err := config.GenerateSchema()
	if err != nil {
		log.Fatalf("reflect config schema: %v", err)
	}

	out := filepath.Join("schema", "definitions", "base.schema.json")
	if err := os.MkdirAll(filepath.Dir(out), 0755); err != nil {
		log.Fatalf("create schema directory: %v", err)
	}
	if err := os.WriteFile(out, raw, 0644); err != nil {
		log.Fatalf("write %s: %v", out, err)
	}
	log.Printf("Wrote base schema to %s", out)
}
