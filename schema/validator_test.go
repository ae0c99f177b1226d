package schema

import (
	"strings"
	"testing"
)

func TestValidateConfig(t *testing.T) {
	validator, err := NewValidator()
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name      string
		config    map[string]interface{}
		wantError bool
		errorMsg  string
	}{
		{
			name: "valid config",
			config: map[string]interface{}{
				"version": "1.0",
				"daemon": map[string]interface{}{
					"reconcile_interval": "10s",
					"config_debounce_ms": 250,
				},
				"adapters": map[string]interface{}{
					"claude": map[string]interface{}{
						"command":      "claude",
						"session_root": "~/.claude/sessions",
					},
				},
			},
			wantError: false,
		},
		{
			name: "unknown extension keys are allowed",
			config: map[string]interface{}{
				"version": "1.0",
				"notify": map[string]interface{}{
					"channel": "#agents",
				},
			},
			wantError: false,
		},
		{
			name: "invalid icon set",
			config: map[string]interface{}{
				"tui": map[string]interface{}{
					"icons": "emoji",
				},
			},
			wantError: true,
			errorMsg:  "must be one of",
		},
		{
			name: "unknown daemon key",
			config: map[string]interface{}{
				"daemon": map[string]interface{}{
					"reconcile_every": "10s",
				},
			},
			wantError: true,
			errorMsg:  "not allowed",
		},
		{
			name: "wrong debounce type",
			config: map[string]interface{}{
				"daemon": map[string]interface{}{
					"config_debounce_ms": "fast",
				},
			},
			wantError: true,
		},
		{
			name: "unknown adapter key",
			config: map[string]interface{}{
				"adapters": map[string]interface{}{
					"claude": map[string]interface{}{
						"commandd": "claude",
					},
				},
			},
			wantError: true,
			errorMsg:  "not allowed",
		},
		{
			name: "exclude must be strings",
			config: map[string]interface{}{
				"fuses": map[string]interface{}{
					"exclude": []interface{}{42},
				},
			},
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validator.Validate(tt.config)
			if tt.wantError {
				if err == nil {
					t.Error("expected error but got none")
				} else if tt.errorMsg != "" && !strings.Contains(err.Error(), tt.errorMsg) {
					t.Errorf("expected error containing '%s', got '%s'", tt.errorMsg, err.Error())
				}
			} else {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
			}
		})
	}
}
