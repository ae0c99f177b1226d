package command

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestValidate(t *testing.T) {
	sb := NewSafeBuilder()

	cases := map[string][]struct {
		value string
		ok    bool
	}{
		"adapterName": {
			{"claude", true},
			{"my-agent", true},
			{"my_agent", true},
			{"codex2", true},
			{"", false},
			{"claude@host", false},
			{"-agent", false},
			{"claude code", false},
			{strings.Repeat("a", 64), false},
		},
		"sessionID": {
			{"0d9c2f1e-3a4b-4c5d-8e9f-0a1b2c3d4e5f", true},
			{"01J5XG4ZT4S5YK3W8RWE3QDVHM", true},
			{"pending-01J5XG4ZT4S5YK3W8RWE3QDVHM", true},
			{"session.42", true},
			{"", false},
			{"abc; rm -rf /", false},
			{".hidden", false},
		},
		"label": {
			{"", true},
			{"deploy window", true},
			{"x; reboot", false},
			{"`whoami`", false},
			{"line1\nline2", false},
			{strings.Repeat("x", 129), false},
		},
		"fileName": {
			{"/path/to/file.txt", true},
			{"relative/path.txt", true},
			{"../etc/passwd", false},
			{"file.txt; rm -rf /", false},
			{"file.txt | cat", false},
			{"file.txt & echo", false},
			{"$(whoami)", false},
			{"`whoami`", false},
			{"", false},
		},
		"dirPath": {
			{"/home/dev/project", true},
			{"/", true},
			{"project", false},
			{"/home/dev/../root", false},
			{"", false},
		},
	}

	for argType, values := range cases {
		t.Run(argType, func(t *testing.T) {
			for _, c := range values {
				err := sb.Validate(argType, c.value)
				if c.ok && err != nil {
					t.Errorf("%s rejected %q: %v", argType, c.value, err)
				}
				if !c.ok && err == nil {
					t.Errorf("%s accepted %q", argType, c.value)
				}
			}
		})
	}
}

func TestValidateUnknownType(t *testing.T) {
	if err := NewSafeBuilder().Validate("hostName", "example"); err == nil {
		t.Error("unregistered validator type should be rejected")
	}
}

func TestBuild(t *testing.T) {
	sb := NewSafeBuilder()

	cmd, err := sb.Build(context.Background(), "echo", "hello")
	if err != nil {
		t.Fatal(err)
	}
	if cmd.name != "echo" || len(cmd.args) != 1 || cmd.args[0] != "hello" {
		t.Errorf("got %s %v", cmd.name, cmd.args)
	}
	if cmd.timeout != DefaultTimeout {
		t.Errorf("fresh command should carry the default timeout, got %v", cmd.timeout)
	}

	if _, err := sb.Build(context.Background(), ""); err == nil {
		t.Error("empty command name should be rejected")
	}
}

func TestWithTimeoutCap(t *testing.T) {
	sb := NewSafeBuilder()

	cmd, err := sb.Build(context.Background(), "true")
	if err != nil {
		t.Fatal(err)
	}

	if got := cmd.WithTimeout(time.Second).timeout; got != time.Second {
		t.Errorf("timeout = %v, want 1s", got)
	}
	if got := cmd.WithTimeout(20 * time.Minute).timeout; got != MaxTimeout {
		t.Errorf("timeout past the cap = %v, want %v", got, MaxTimeout)
	}
}

func TestWithDir(t *testing.T) {
	sb := NewSafeBuilder()
	dir := t.TempDir()

	cmd, err := sb.Build(context.Background(), "pwd")
	if err != nil {
		t.Fatal(err)
	}

	out, err := cmd.WithDir(dir).Exec().Output()
	if err != nil {
		t.Fatalf("pwd failed: %v", err)
	}

	got := strings.TrimSpace(string(out))
	// TempDir may sit behind a symlink (e.g. /tmp on darwin)
	want, _ := filepath.EvalSymlinks(dir)
	if got != dir && got != want {
		t.Errorf("expected cwd %q, got %q", dir, got)
	}
}

func TestWithEnv(t *testing.T) {
	sb := NewSafeBuilder()

	cmd, err := sb.Build(context.Background(), "sh", "-c", "echo $WARDEN_TEST_MARKER")
	if err != nil {
		t.Fatal(err)
	}

	out, err := cmd.WithEnv("WARDEN_TEST_MARKER=armed").Exec().Output()
	if err != nil {
		t.Fatalf("command failed: %v", err)
	}
	if strings.TrimSpace(string(out)) != "armed" {
		t.Errorf("expected injected env value, got %q", string(out))
	}

	// The inherited environment is preserved alongside the injected pairs.
	os.Setenv("WARDEN_TEST_INHERITED", "yes")
	defer os.Unsetenv("WARDEN_TEST_INHERITED")

	cmd2, err := sb.Build(context.Background(), "sh", "-c", "echo $WARDEN_TEST_INHERITED")
	if err != nil {
		t.Fatal(err)
	}
	out2, err := cmd2.WithEnv("WARDEN_TEST_MARKER=armed").Exec().Output()
	if err != nil {
		t.Fatalf("command failed: %v", err)
	}
	if strings.TrimSpace(string(out2)) != "yes" {
		t.Errorf("expected inherited env to survive, got %q", string(out2))
	}
}

func TestTimeoutKillsCommand(t *testing.T) {
	sb := NewSafeBuilder()

	cmd, err := sb.Build(context.Background(), "sleep", "10")
	if err != nil {
		t.Fatal(err)
	}

	start := time.Now()
	err = cmd.WithTimeout(100 * time.Millisecond).Exec().Run()
	elapsed := time.Since(start)

	if err == nil {
		t.Error("sleep should have been killed by the timeout")
	}
	// Generous bound; only the order of magnitude matters.
	if elapsed > 2*time.Second {
		t.Errorf("took %v to die", elapsed)
	}
}
