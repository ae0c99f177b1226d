package config

import (
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/wardentools/warden/errors"
	"github.com/wardentools/warden/pkg/paths"
	"github.com/wardentools/warden/schema"
	"gopkg.in/yaml.v3"
)

var envRefRE = regexp.MustCompile(`\$\{([^}]+)\}`)

// Config file names recognized in project directories, in precedence order.
var configNames = []string{
	"warden.yml",
	"warden.yaml",
	".warden.yml",
	".warden.yaml",
}

// Override files picked up beside a config file, applied in order.
var overrideNames = []string{
	"warden.override.yml",
	"warden.override.yaml",
	".warden.override.yml",
	".warden.override.yaml",
}

// Load reads, validates and defaults a single config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.ConfigNotFound(path)
		}
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "read config file").
			WithDetail("path", path)
	}

	return LoadFromBytes(data)
}

// LoadDefault loads the merged configuration starting from the current
// directory.
func LoadDefault() (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "resolve working directory")
	}
	return LoadFrom(cwd)
}

// LoadFrom loads configuration with hierarchical merging starting from the
// given directory.
func LoadFrom(startDir string) (*Config, error) {
	return LoadFromWithLogger(startDir, logrus.New())
}

// LoadFromWithLogger merges the config layers in increasing precedence:
//
//  1. global config (~/.config/warden/warden.yml)
//  2. TOML fragments (~/.config/warden/conf.d/*.toml)
//  3. project config (warden.yml found upward from startDir)
//  4. local override (warden.override.yml beside the project config)
//
// Every layer is optional; with no config at all, defaults apply.
func LoadFromWithLogger(startDir string, logger *logrus.Logger) (*Config, error) {
	var merged *Config

	globalPath := xdgConfigPath()
	if fileExists(globalPath) {
		logger.WithField("path", globalPath).Debug("Loading global configuration")
		layer, err := readLayer(globalPath)
		if err != nil {
			logger.WithError(err).Warn("Failed to load global configuration, continuing without it")
		} else {
			merged = layer
		}
	}

	if fragments := loadFragments(logger); fragments != nil {
		merged = overlay(merged, fragments)
	}

	// The daemon usually runs on the global config alone, so a missing
	// project config is fine.
	projectPath, err := FindConfigFile(startDir)
	if err == nil && projectPath != globalPath {
		logger.WithField("path", projectPath).Debug("Loading project configuration")
		layer, err := readLayer(projectPath)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to load project config").
				WithDetail("path", projectPath)
		}
		merged = overlay(merged, layer)

		for _, name := range overrideNames {
			overridePath := filepath.Join(filepath.Dir(projectPath), name)
			if !fileExists(overridePath) {
				continue
			}
			logger.WithField("path", overridePath).Debug("Applying override file")
			layer, err := readLayer(overridePath)
			if err != nil {
				logger.WithError(err).Warn("Failed to load override file, skipping")
				continue
			}
			merged = overlay(merged, layer)
		}
	}

	if merged == nil {
		// No config anywhere; run on defaults.
		merged = &Config{}
	}

	merged.SetDefaults()
	if err := merged.Validate(); err != nil {
		return nil, err
	}

	if logger.IsLevelEnabled(logrus.DebugLevel) {
		if raw, err := yaml.Marshal(merged); err == nil {
			logger.Debugf("Merged configuration:\n%s", raw)
		}
	}

	return merged, nil
}

// LoadFromBytes parses one config document, checks it against the schema
// and applies defaults.
func LoadFromBytes(data []byte) (*Config, error) {
	var config Config
	if err := yaml.Unmarshal([]byte(expandEnvVars(string(data))), &config); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "parse config yaml")
	}

	validator, err := schema.NewValidator()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "build schema validator")
	}
	if err := validator.Validate(&config); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "config failed schema validation")
	}

	config.SetDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// FindConfigFile locates the nearest warden config: walking up from
// startDir, then the git repository root, then the XDG config directory.
func FindConfigFile(startDir string) (string, error) {
	for dir := startDir; ; dir = filepath.Dir(dir) {
		if path := firstConfigIn(dir); path != "" {
			return path, nil
		}
		if filepath.Dir(dir) == dir {
			break
		}
	}

	if root, err := gitRoot(startDir); err == nil && root != "" {
		if path := firstConfigIn(root); path != "" {
			return path, nil
		}
	}

	if path := xdgConfigPath(); fileExists(path) {
		return path, nil
	}

	return "", errors.ConfigNotFound(startDir).WithDetail("search_path", startDir)
}

// readLayer loads one YAML layer: read, expand ${VAR} references, parse.
// Layers are not validated individually; only the merged result is.
func readLayer(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal([]byte(expandEnvVars(string(raw))), &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// overlay merges layer over base. A nil base adopts the layer wholesale.
func overlay(base, layer *Config) *Config {
	if base == nil {
		return layer
	}
	return mergeConfigs(base, layer)
}

func firstConfigIn(dir string) string {
	for _, name := range configNames {
		path := filepath.Join(dir, name)
		if fileExists(path) {
			return path
		}
	}
	return ""
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// expandEnvVars substitutes ${VAR} and ${VAR:-default} references.
func expandEnvVars(content string) string {
	return envRefRE.ReplaceAllStringFunc(content, func(match string) string {
		name := match[2 : len(match)-1]
		fallback := ""
		if i := strings.Index(name, ":-"); i >= 0 {
			name, fallback = name[:i], name[i+2:]
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return fallback
	})
}

func gitRoot(dir string) (string, error) {
	cmd := exec.Command("git", "rev-parse", "--show-toplevel")
	cmd.Dir = dir
	output, err := cmd.Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(output)), nil
}

// xdgConfigPath returns the global config location, resolved through the
// same WARDEN_HOME and XDG rules as every other warden directory.
func xdgConfigPath() string {
	if dir := paths.ConfigDir(); dir != "" {
		return filepath.Join(dir, "warden.yml")
	}
	return ""
}
