package schema

// ExtensionSchemaURLs maps extension keys to the canonical URL of their JSON
// schema. Tools that layer on top of warden publish their own schemas, and this
// manifest is used to compose them into a unified schema for validation and IDE
// support.
//
// Extension schemas are currently commented out. Once schemas are published as
// GitHub release assets or through a schema hosting service, they can be
// uncommented.
var ExtensionSchemaURLs = map[string]string{
	// "hooks": "https://schemas.warden.tools/hooks/v1.schema.json",
	// "notify": "https://schemas.warden.tools/notify/v1.schema.json",
}
