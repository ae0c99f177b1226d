package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"github.com/wardentools/warden/schema"
)

// Composes the distributable config schemas: one with remote $refs for
// IDEs, and one with every extension schema inlined for embedding.
func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	const (
		basePath = "schema/definitions/base.schema.json"
		distDir  = "schema/dist"
	)

	if err := os.MkdirAll(distDir, 0755); err != nil {
		return fmt.Errorf("create dist directory: %w", err)
	}

	resolvable, err := resolvableSchema(basePath)
	if err != nil {
		return err
	}
	resolvablePath := filepath.Join(distDir, "warden.schema.json")
	if err := writeJSON(resolvablePath, resolvable); err != nil {
		return err
	}
	log.Printf("Wrote resolvable schema to %s", resolvablePath)

	bundled, err := bundledSchema(resolvable)
	if err != nil {
		return err
	}
	bundledPath := filepath.Join(distDir, "warden.embedded.schema.json")
	if err := writeJSON(bundledPath, bundled); err != nil {
		return err
	}
	log.Printf("Wrote bundled schema to %s", bundledPath)
	return nil
}

// resolvableSchema layers the extension manifest onto the reflected
// base schema as remote $refs.
func resolvableSchema(basePath string) (map[string]interface{}, error) {
	raw, err := os.ReadFile(basePath)
	if err != nil {
		return nil, fmt.Errorf("read base schema: %w", err)
	}
	var s map[string]interface{}
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("parse base schema: %w", err)
	}

	props, ok := s["properties"].(map[string]interface{})
	if !ok {
		props = map[string]interface{}{}
		s["properties"] = props
	}
	for key, url := range schema.ExtensionSchemaURLs {
		props[key] = map[string]interface{}{"$ref": url}
	}

	// Unknown keys stay legal so unpublished extensions keep working.
	s["additionalProperties"] = true
	s["title"] = "Warden Configuration Schema"
	s["description"] = "A unified schema for all warden.yml configuration files."
	return s, nil
}

// bundledSchema inlines each extension schema in place of its $ref.
func bundledSchema(resolvable map[string]interface{}) (map[string]interface{}, error) {
	bundled, err := reencode(resolvable)
	if err != nil {
		return nil, err
	}
	if len(schema.ExtensionSchemaURLs) == 0 {
		return bundled, nil
	}

	type fetched struct {
		key    string
		schema map[string]interface{}
		err    error
	}

	results := make(chan fetched, len(schema.ExtensionSchemaURLs))
	var wg sync.WaitGroup
	for key, url := range schema.ExtensionSchemaURLs {
		wg.Add(1)
		go func(key, url string) {
			defer wg.Done()
			s, err := fetchJSON(url)
			if err != nil {
				err = fmt.Errorf("extension %s: %w", key, err)
			}
			results <- fetched{key: key, schema: s, err: err}
		}(key, url)
	}
	wg.Wait()
	close(results)

	props := bundled["properties"].(map[string]interface{})
	for r := range results {
		if r.err != nil {
			return nil, r.err
		}
		props[r.key] = r.schema
	}
	return bundled, nil
}

func fetchJSON(url string) (map[string]interface{}, error) {
	resp, err := http.Get(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	var s map[string]interface{}
	if err := json.Unmarshal(body, &s); err != nil {
		return nil, err
	}
	return s, nil
}

// reencode deep-copies a schema through JSON.
func reencode(m map[string]interface{}) (map[string]interface{}, error) {
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	var out map[string]interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func writeJSON(path string, v map[string]interface{}) error {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0644)
}
