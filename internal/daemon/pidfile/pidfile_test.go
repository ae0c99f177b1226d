package pidfile

import (
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/wardentools/warden/errors"
)

func testPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "wardend.pid")
}

func TestAcquireReleaseRoundTrip(t *testing.T) {
	path := testPath(t)

	if err := Acquire(path); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	pid, err := Read(path)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if pid != os.Getpid() {
		t.Errorf("pid = %d, want %d", pid, os.Getpid())
	}

	running, pid, err := IsRunning(path)
	if err != nil || !running || pid != os.Getpid() {
		t.Errorf("IsRunning = %v %d %v", running, pid, err)
	}

	if err := Release(path); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("pid file should be gone after release")
	}
	// Double release is fine.
	if err := Release(path); err != nil {
		t.Errorf("second Release errored: %v", err)
	}
}

func TestAcquireRefusesLiveOwner(t *testing.T) {
	path := testPath(t)
	if err := os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0644); err != nil {
		t.Fatal(err)
	}

	err := Acquire(path)
	if !errors.Is(err, errors.ErrCodeDaemonRunning) {
		t.Fatalf("expected DAEMON_ALREADY_RUNNING, got %v", err)
	}
}

func TestAcquireReplacesStaleFile(t *testing.T) {
	cmd := exec.Command("true")
	if err := cmd.Start(); err != nil {
		t.Fatal(err)
	}
	deadPID := cmd.Process.Pid
	_ = cmd.Wait()

	path := testPath(t)
	if err := os.WriteFile(path, []byte(strconv.Itoa(deadPID)), 0644); err != nil {
		t.Fatal(err)
	}

	if err := Acquire(path); err != nil {
		t.Fatalf("stale pid file should not block acquire: %v", err)
	}
	pid, err := Read(path)
	if err != nil || pid != os.Getpid() {
		t.Errorf("pid = %d %v, want %d", pid, err, os.Getpid())
	}
}

func TestIsRunningMissingFile(t *testing.T) {
	running, pid, err := IsRunning(testPath(t))
	if err != nil || running || pid != 0 {
		t.Errorf("missing file should report not running: %v %d %v", running, pid, err)
	}
}
