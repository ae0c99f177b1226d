package adapter

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/sirupsen/logrus"
	"github.com/wardentools/warden/command"
	"github.com/wardentools/warden/config"
	"github.com/wardentools/warden/errors"
	"github.com/wardentools/warden/logging"
	"github.com/wardentools/warden/pkg/models"
	"github.com/wardentools/warden/pkg/paths"
	"github.com/wardentools/warden/pkg/process"
	"github.com/wardentools/warden/pkg/tmux"
)

const (
	pidFileName        = "pid.lock"
	metadataFileName   = "metadata.json"
	transcriptFileName = "transcript.jsonl"
	stderrFileName     = "stderr.log"
)

// DefaultStopGrace is the SIGTERM-to-SIGKILL wait used when neither the stop
// request nor the adapter options set one.
const DefaultStopGrace = 5 * time.Second

// dirscanOptions are the kind-specific settings under adapters.<name>.options.
type dirscanOptions struct {
	// PromptFlag is the flag the prompt rides behind; empty passes it as the
	// final positional argument.
	PromptFlag string `mapstructure:"prompt_flag"`
	ModelFlag  string `mapstructure:"model_flag"`
	ResumeFlag string `mapstructure:"resume_flag"`
	StopGrace  string `mapstructure:"stop_grace"`
}

// presets cover the agent CLIs warden knows out of the box. Config options
// override any field.
var kindPresets = map[string]dirscanOptions{
	"claude": {PromptFlag: "-p", ModelFlag: "--model", ResumeFlag: "--resume"},
	"codex":  {ModelFlag: "--model", ResumeFlag: "--resume"},
	"gemini": {PromptFlag: "--prompt", ModelFlag: "--model"},
}

// DirScan supervises agents that register sessions on disk, one directory per
// session under the adapter's root:
//
//	<root>/<session-id>/pid.lock       process id, plain text
//	<root>/<session-id>/metadata.json  launch metadata
//	<root>/<session-id>/transcript.jsonl
//
// Warden's own launches write the registration; agents wired up with hooks
// can maintain theirs the same way. The directory name is the storage key and
// never changes. The reported session id upgrades from the launch placeholder
// to the agent's native id once the transcript reveals it.
type DirScan struct {
	name    string
	command string
	args    []string
	root    string
	tmux    *config.TmuxLaunchConfig
	opts    dirscanOptions
	grace   time.Duration
	vet     *command.SafeBuilder
	log     *logrus.Entry
}

// NewDirScan builds a dirscan adapter from its configuration block.
func NewDirScan(name string, cfg config.AdapterConfig) (*DirScan, error) {
	opts := kindPresets[name]
	if len(cfg.Options) > 0 {
		decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{Result: &opts})
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to create options decoder").
				WithDetail("adapter", name)
		}
		if err := decoder.Decode(cfg.Options); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid,
				"invalid options for adapter '"+name+"'").
				WithDetail("adapter", name)
		}
	}

	root := cfg.SessionRoot
	if root == "" {
		root = filepath.Join(paths.SessionsDir(), name)
	}

	cmd := cfg.Command
	if cmd == "" {
		cmd = name
	}

	grace := DefaultStopGrace
	if opts.StopGrace != "" {
		d, err := time.ParseDuration(opts.StopGrace)
		if err != nil || d <= 0 {
			return nil, errors.New(errors.ErrCodeConfigInvalid,
				"invalid stop_grace for adapter '"+name+"': "+opts.StopGrace).
				WithDetail("adapter", name)
		}
		grace = d
	}

	return &DirScan{
		name:    name,
		command: cmd,
		args:    append([]string(nil), cfg.Args...),
		root:    root,
		tmux:    cfg.Tmux,
		opts:    opts,
		grace:   grace,
		vet:     command.NewSafeBuilder(),
		log:     logging.NewLogger("adapter").WithField("adapter", name),
	}, nil
}

// Name returns the adapter's configured name.
func (d *DirScan) Name() string {
	return d.name
}

// Root returns the directory this adapter scans for session registrations.
func (d *DirScan) Root() string {
	return d.root
}

// Discover scans the session root. A missing root means no sessions yet, not
// an error.
func (d *DirScan) Discover(ctx context.Context) ([]models.DiscoveredSession, error) {
	entries, err := os.ReadDir(d.root)
	if err != nil {
		if os.IsNotExist(err) {
			return []models.DiscoveredSession{}, nil
		}
		return nil, errors.AdapterUnavailable(d.name, err)
	}

	sessions := make([]models.DiscoveredSession, 0, len(entries))
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !entry.IsDir() {
			continue
		}
		if ds, ok := d.readSession(ctx, entry.Name()); ok {
			sessions = append(sessions, ds)
		}
	}
	return sessions, nil
}

// readSession builds a discovery entry from one session directory. A
// directory without a pid.lock never started and is skipped.
func (d *DirScan) readSession(ctx context.Context, dirName string) (models.DiscoveredSession, bool) {
	sessionDir := filepath.Join(d.root, dirName)

	pid, err := readPIDFile(filepath.Join(sessionDir, pidFileName))
	if err != nil {
		return models.DiscoveredSession{}, false
	}

	meta, err := readMetadata(filepath.Join(sessionDir, metadataFileName))
	if err != nil && !os.IsNotExist(err) {
		d.log.WithError(err).WithField("session", dirName).Debug("Unreadable session metadata")
	}

	status := models.StatusStopped
	if process.Alive(pid) {
		status = models.StatusRunning
	} else if meta != nil && meta.TmuxTarget != "" {
		// The recorded pane process can die while the tmux session lives
		// on, as after a respawn. Trust tmux over the stale pid.
		if fresh, ok := d.livePanePID(ctx, meta.TmuxTarget); ok {
			status = models.StatusRunning
			pid = fresh
		}
	}

	ds := models.DiscoveredSession{
		ID:      d.sessionID(sessionDir, dirName, meta),
		Adapter: d.name,
		Status:  status,
		PID:     pid,
	}

	if meta != nil {
		ds.Directory = meta.Directory
		ds.Model = meta.Model
		ds.Prompt = meta.Prompt
		ds.StartedAt = meta.StartedAt

		native := make(map[string]interface{})
		if meta.Spec != "" {
			native["spec"] = meta.Spec
		}
		if meta.Group != "" {
			native["group"] = meta.Group
		}
		if meta.TmuxTarget != "" {
			native["tmux_target"] = meta.TmuxTarget
		}
		if len(native) > 0 {
			ds.NativeMetadata = native
		}
	}

	return ds, true
}

// sessionID decides which id to report for a session directory. Launches
// register under a placeholder; once the agent's transcript reveals its
// native id the metadata is upgraded in place so later scans stay cheap.
func (d *DirScan) sessionID(sessionDir, dirName string, meta *sessionMetadata) string {
	id := dirName
	if meta != nil && meta.SessionID != "" {
		id = meta.SessionID
	}
	if !models.IsPlaceholderID(id) {
		return id
	}

	native := extractNativeID(filepath.Join(sessionDir, transcriptFileName))
	if native == "" {
		return id
	}

	if meta != nil {
		meta.SessionID = native
		if err := writeMetadata(sessionDir, meta); err != nil {
			d.log.WithError(err).WithField("session", dirName).Debug("Failed to record native session id")
		}
	}
	return native
}

// IsAlive probes the registered PID. A session with no registration is
// simply not alive.
func (d *DirScan) IsAlive(ctx context.Context, sessionID string) (bool, error) {
	sessionDir, err := d.findSessionDir(sessionID)
	if err != nil {
		return false, nil
	}

	pid, err := readPIDFile(filepath.Join(sessionDir, pidFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}

	return process.Alive(pid), nil
}

// findSessionDir locates the directory registered for a session id. The
// directory is usually named after the id; sessions renamed after native-id
// resolution keep their placeholder directory, so fall back to matching
// metadata.
func (d *DirScan) findSessionDir(sessionID string) (string, error) {
	// Ids arrive from clients and become path elements under the root. A
	// traversal would let Stop act on pid files elsewhere.
	if err := d.vet.Validate("sessionID", sessionID); err != nil {
		return "", errors.SessionNotFound(sessionID)
	}

	direct := filepath.Join(d.root, sessionID)
	if _, err := os.Stat(filepath.Join(direct, pidFileName)); err == nil {
		return direct, nil
	}

	entries, err := os.ReadDir(d.root)
	if err != nil {
		if os.IsNotExist(err) {
			return "", errors.SessionNotFound(sessionID)
		}
		return "", err
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := readMetadata(filepath.Join(d.root, entry.Name(), metadataFileName))
		if err != nil {
			continue
		}
		if meta.SessionID == sessionID {
			return filepath.Join(d.root, entry.Name()), nil
		}
	}
	return "", errors.SessionNotFound(sessionID)
}

func (d *DirScan) tmuxClient() (*tmux.Client, error) {
	if d.tmux != nil && d.tmux.Socket != "" {
		return tmux.NewClientWithSocket(d.tmux.Socket)
	}
	return tmux.NewClient()
}

// livePanePID asks tmux for the current pane pid of a session that still
// exists. Used when the pid recorded at launch has died.
func (d *DirScan) livePanePID(ctx context.Context, target string) (int, bool) {
	client, err := d.tmuxClient()
	if err != nil {
		return 0, false
	}
	exists, err := client.SessionExists(ctx, target)
	if err != nil || !exists {
		return 0, false
	}
	pid, err := client.PanePID(ctx, target)
	if err != nil {
		return 0, false
	}
	return pid, true
}
