package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/wardentools/warden/pkg/models"
)

// DefaultDebounce is how long the manager waits after the last mutation
// before persisting. Bursts of writes from a single reconciliation pass
// coalesce into one disk write.
const DefaultDebounce = time.Second

// scheduleFlushLocked re-arms the quiescence timer. Callers hold m.mu.
func (m *Manager) scheduleFlushLocked() {
	if m.debounce != nil {
		m.debounce.Stop()
	}
	m.debounce = time.AfterFunc(m.debounceDelay, func() {
		if err := m.Persist(); err != nil {
			// In-memory state stays correct; the next mutation
			// re-arms the timer and retries.
			m.log.WithError(err).Error("Failed to persist state")
		}
	})
}

// Flush cancels any pending debounced persist without writing. Shutdown
// calls Flush then Persist to get one synchronous, complete final write.
func (m *Manager) Flush() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.debounce != nil {
		m.debounce.Stop()
		m.debounce = nil
	}
}

// Persist serializes the three documents and atomically replaces each
// file independently, so a reader never observes a half-written document
// and a failure writing one does not block the others. The first error
// is returned.
func (m *Manager) Persist() error {
	m.persistMu.Lock()
	defer m.persistMu.Unlock()

	m.mu.Lock()
	sessions := sessionsDoc{Sessions: m.sessions, Version: m.version}
	sessionsData, sessErr := json.MarshalIndent(sessions, "", "  ")

	locks := m.locks
	if locks == nil {
		locks = []models.Lock{}
	}
	locksData, locksErr := json.MarshalIndent(locks, "", "  ")

	fuses := m.fuses
	if fuses == nil {
		fuses = []models.FuseTimer{}
	}
	fusesData, fusesErr := json.MarshalIndent(fuses, "", "  ")
	m.mu.Unlock()

	var firstErr error
	record := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	record(sessErr)
	record(locksErr)
	record(fusesErr)

	if sessErr == nil {
		record(atomicWriteFile(filepath.Join(m.dir, SessionsFileName), sessionsData, 0644))
	}
	if locksErr == nil {
		record(atomicWriteFile(filepath.Join(m.dir, LocksFileName), locksData, 0644))
	}
	if fusesErr == nil {
		record(atomicWriteFile(filepath.Join(m.dir, FusesFileName), fusesData, 0644))
	}

	return firstErr
}

// Close cancels any pending debounce and performs the final synchronous
// persist. No queued mutation is lost.
func (m *Manager) Close() error {
	m.Flush()
	return m.Persist()
}

// atomicWriteFile writes data to a temporary file in the target's
// directory, then renames it into place. The target is never observable
// in a partially-written state.
func atomicWriteFile(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)

	tmpFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}

	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Chmod(tmpPath, perm); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return nil
}
