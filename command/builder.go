package command

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

const (
	// DefaultTimeout bounds a command that never asked for its own.
	DefaultTimeout = 2 * time.Minute

	// MaxTimeout caps what WithTimeout will accept.
	MaxTimeout = 10 * time.Minute
)

// shellMeta are the characters that would let a value escape into shell
// syntax if a command string is ever assembled from it.
const shellMeta = ";|&$`"

var (
	adapterNameRE = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_-]*$`)

	// Session ids cover UUIDs, ULIDs and the pending-<ulid> placeholder
	// form, so dots and hyphens are allowed after the first character.
	sessionIDRE = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_.-]*$`)
)

// SafeBuilder vets values spliced into argv and stamps every command
// with a timeout.
type SafeBuilder struct {
	defaultTimeout time.Duration
	validators     map[string]func(string) error

	// newCommand is swapped out in tests that stub the spawned binary.
	newCommand func(ctx context.Context, name string, args ...string) *exec.Cmd
}

// NewSafeBuilder returns a builder with the standard validators.
func NewSafeBuilder() *SafeBuilder {
	return &SafeBuilder{
		defaultTimeout: DefaultTimeout,
		validators: map[string]func(string) error{
			"adapterName": validateAdapterName,
			"sessionID":   validateSessionID,
			"label":       validateLabel,
			"fileName":    validateFileName,
			"dirPath":     validateDirPath,
		},
		newCommand: exec.CommandContext,
	}
}

// Validate runs the named validator against a value.
func (sb *SafeBuilder) Validate(argType string, value string) error {
	validator, ok := sb.validators[argType]
	if !ok {
		return fmt.Errorf("no validator registered for argument type %q", argType)
	}
	return validator(value)
}

func validateAdapterName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("adapter name is empty")
	case !adapterNameRE.MatchString(name):
		return fmt.Errorf("adapter name %q may only contain letters, digits, underscores and hyphens", name)
	case len(name) > 63:
		return fmt.Errorf("adapter name %q exceeds 63 characters", name)
	}
	return nil
}

func validateSessionID(id string) error {
	if id == "" {
		return fmt.Errorf("session id is empty")
	}
	if !sessionIDRE.MatchString(id) {
		return fmt.Errorf("malformed session id %q", id)
	}
	return nil
}

// validateLabel accepts empty labels; they are optional on fuses.
func validateLabel(label string) error {
	if label == "" {
		return nil
	}
	if strings.ContainsAny(label, shellMeta+"\n") {
		return fmt.Errorf("label %q contains shell or control characters", label)
	}
	if len(label) > 128 {
		return fmt.Errorf("label exceeds 128 characters")
	}
	return nil
}

// validateFileName rejects paths that could traverse upward or smuggle
// shell syntax.
func validateFileName(path string) error {
	switch {
	case path == "":
		return fmt.Errorf("file path is empty")
	case strings.Contains(path, ".."):
		return fmt.Errorf("file path %q contains a parent reference", path)
	case strings.ContainsAny(path, shellMeta):
		return fmt.Errorf("file path %q contains shell characters", path)
	}
	return nil
}

// validateDirPath requires absolute, traversal-free working directories.
func validateDirPath(path string) error {
	switch {
	case path == "":
		return fmt.Errorf("directory is empty")
	case !filepath.IsAbs(path):
		return fmt.Errorf("directory %q is not absolute", path)
	case strings.Contains(path, ".."):
		return fmt.Errorf("directory %q contains a parent reference", path)
	}
	return nil
}

// Command is a pending command: name, args, and execution settings
// collected before the exec.Cmd exists.
type Command struct {
	ctx        context.Context
	name       string
	args       []string
	dir        string
	env        []string
	timeout    time.Duration
	newCommand func(ctx context.Context, name string, args ...string) *exec.Cmd
}

// Build wraps name and args into a Command carrying the default
// timeout. The caller's ctx bounds the command's lifetime alongside it.
func (sb *SafeBuilder) Build(ctx context.Context, name string, args ...string) (*Command, error) {
	if name == "" {
		return nil, fmt.Errorf("command name is empty")
	}
	return &Command{
		ctx:        ctx,
		name:       name,
		args:       args,
		timeout:    sb.defaultTimeout,
		newCommand: sb.newCommand,
	}, nil
}

// WithTimeout replaces the default timeout, capped at MaxTimeout.
func (c *Command) WithTimeout(timeout time.Duration) *Command {
	if timeout > MaxTimeout {
		timeout = MaxTimeout
	}
	c.timeout = timeout
	return c
}

// WithDir sets the working directory.
func (c *Command) WithDir(dir string) *Command {
	c.dir = dir
	return c
}

// WithEnv appends KEY=value pairs to the inherited environment.
func (c *Command) WithEnv(env ...string) *Command {
	c.env = append(c.env, env...)
	return c
}

// Exec materializes the exec.Cmd with the timeout applied. The timeout
// context releases itself when its timer fires; a split build/run API
// has no later point to call cancel.
func (c *Command) Exec() *exec.Cmd {
	ctx, cancel := context.WithTimeout(c.ctx, c.timeout)
	_ = cancel

	cmd := c.newCommand(ctx, c.name, c.args...)
	if c.dir != "" {
		cmd.Dir = c.dir
	}
	if len(c.env) > 0 {
		cmd.Env = append(os.Environ(), c.env...)
	}
	return cmd
}
