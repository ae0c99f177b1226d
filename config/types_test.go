package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetDefaults(t *testing.T) {
	boolPtr := func(v bool) *bool { return &v }

	tests := []struct {
		name     string
		config   Config
		expected map[string]AdapterConfig
	}{
		{
			name:   "empty config gets the builtin adapters",
			config: Config{},
			expected: map[string]AdapterConfig{
				"claude": {Kind: "dirscan", Command: "claude"},
				"codex":  {Kind: "dirscan", Command: "codex"},
			},
		},
		{
			name: "configured adapter gets kind and command filled",
			config: Config{
				Adapters: map[string]AdapterConfig{
					"aider": {SessionRoot: "~/.aider/sessions"},
				},
			},
			expected: map[string]AdapterConfig{
				"aider": {Kind: "dirscan", Command: "aider", SessionRoot: "~/.aider/sessions"},
			},
		},
		{
			name: "explicit fields are left alone",
			config: Config{
				Adapters: map[string]AdapterConfig{
					"claude": {Kind: "dirscan", Command: "claude-dev", Enabled: boolPtr(false)},
				},
			},
			expected: map[string]AdapterConfig{
				"claude": {Kind: "dirscan", Command: "claude-dev", Enabled: boolPtr(false)},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.config.SetDefaults()
			assert.Equal(t, tt.expected, tt.config.Adapters)
			assert.Equal(t, "1.0", tt.config.Version)
		})
	}
}

func TestAdapterIsEnabled(t *testing.T) {
	boolPtr := func(v bool) *bool { return &v }

	assert.True(t, AdapterConfig{}.IsEnabled())
	assert.True(t, AdapterConfig{Enabled: boolPtr(true)}.IsEnabled())
	assert.False(t, AdapterConfig{Enabled: boolPtr(false)}.IsEnabled())
}
