package logging

//go:generate sh -c "cd .. && go run ./tools/logging-schema-generator/"

// Config is the `logging:` extension section of warden.yml.
type Config struct {
	// Level is the minimum level written ("debug", "info", "warn", "error").
	// WARDEN_LOG_LEVEL overrides it.
	Level string `yaml:"level"`

	// Components overrides Level per component, keyed by component name
	// (e.g. wardend: debug). WARDEN_LOG_LEVEL still wins over these.
	Components map[string]string `yaml:"components,omitempty"`

	// ReportCaller adds the file, line and function of the call site.
	// WARDEN_LOG_CALLER=true enables it too.
	ReportCaller bool `yaml:"report_caller"`

	// File configures the file sink.
	File FileSinkConfig `yaml:"file"`

	// Format configures how entries render.
	Format FormatConfig `yaml:"format"`
}

// FileSinkConfig configures the file sink. Without an explicit path the
// sink writes dated per-component files under the XDG state log dir.
type FileSinkConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
	Format  string `yaml:"format,omitempty"` // "text" (default) or "json"
}

// FormatConfig controls entry rendering.
type FormatConfig struct {
	// Preset is "default" (rich text), "simple" (no timestamp or
	// component) or "json".
	Preset string `yaml:"preset"`
	// DisableTimestamp drops the timestamp from the text presets.
	DisableTimestamp bool `yaml:"disable_timestamp"`
	// DisableComponent drops the component name from the text presets.
	DisableComponent bool `yaml:"disable_component"`
	// StructuredToStderr is "auto" (default), "always" or "never".
	// Auto writes to stderr only when debugging or not on a terminal.
	StructuredToStderr string `yaml:"structured_to_stderr"`
}
