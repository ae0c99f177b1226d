package adapter

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// sessionMetadata is the registration record written next to pid.lock.
type sessionMetadata struct {
	SessionID  string    `json:"session_id"`
	Adapter    string    `json:"adapter"`
	PID        int       `json:"pid"`
	Directory  string    `json:"directory"`
	Model      string    `json:"model,omitempty"`
	Prompt     string    `json:"prompt,omitempty"`
	Spec       string    `json:"spec,omitempty"`
	Group      string    `json:"group,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	Transcript string    `json:"transcript,omitempty"`
	TmuxTarget string    `json:"tmux_target,omitempty"`
}

func readPIDFile(path string) (int, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}

	var pid int
	if _, err := fmt.Sscanf(strings.TrimSpace(string(content)), "%d", &pid); err != nil {
		return 0, fmt.Errorf("malformed pid file %s: %w", path, err)
	}
	return pid, nil
}

func writePIDFile(sessionDir string, pid int) error {
	return os.WriteFile(filepath.Join(sessionDir, pidFileName), []byte(fmt.Sprintf("%d", pid)), 0644)
}

func readMetadata(path string) (*sessionMetadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var meta sessionMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("malformed metadata %s: %w", path, err)
	}
	return &meta, nil
}

func writeMetadata(sessionDir string, meta *sessionMetadata) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(sessionDir, metadataFileName), data, 0644)
}

// extractNativeID scans the head of a transcript for the agent's own session
// id. Agent CLIs that stream JSONL announce it in their first records.
func extractNativeID(transcriptPath string) string {
	f, err := os.Open(transcriptPath)
	if err != nil {
		return ""
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for lines := 0; scanner.Scan() && lines < 50; lines++ {
		var record struct {
			SessionID string `json:"session_id"`
		}
		if err := json.Unmarshal(scanner.Bytes(), &record); err != nil {
			continue
		}
		if record.SessionID != "" {
			return record.SessionID
		}
	}
	return ""
}

// tailLines returns the last n lines of a file, reading at most the trailing
// 256 KiB so large transcripts stay cheap.
func tailLines(path string, n int) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}

	const window = 256 * 1024
	offset := info.Size() - window
	if offset < 0 {
		offset = 0
	}
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return nil, err
	}

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}

	text := strings.TrimRight(string(data), "\n")
	if text == "" {
		return []string{}, nil
	}

	all := strings.Split(text, "\n")
	if offset > 0 && len(all) > 0 {
		// The first line of a mid-file read is likely cut in half.
		all = all[1:]
	}
	if len(all) > n {
		all = all[len(all)-n:]
	}
	return all, nil
}
