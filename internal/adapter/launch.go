package adapter

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/wardentools/warden/errors"
	"github.com/wardentools/warden/pkg/models"
	"github.com/wardentools/warden/pkg/process"
	"github.com/wardentools/warden/pkg/tmux"
	"github.com/wardentools/warden/util/pathutil"
)

// Launch starts a new agent process and registers it under a placeholder id.
// The agent's own session id surfaces later through its transcript, at which
// point discovery reports the native id and the tracker renames the record.
func (d *DirScan) Launch(ctx context.Context, opts LaunchOptions) (*LaunchResult, error) {
	if opts.Directory == "" {
		return nil, errors.New(errors.ErrCodeInvalidInput, "launch requires a working directory")
	}
	// Canonical case, so the cwd the agent sees matches the real directory.
	absDir, err := pathutil.CanonicalPath(opts.Directory)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInvalidInput, "invalid launch directory").
			WithDetail("directory", opts.Directory)
	}
	if info, err := os.Stat(absDir); err != nil || !info.IsDir() {
		return nil, errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("launch directory does not exist: %s", absDir)).
			WithDetail("directory", absDir)
	}

	id := models.NewPlaceholderID()
	sessionDir := filepath.Join(d.root, id)
	if err := os.MkdirAll(sessionDir, 0755); err != nil {
		return nil, errors.LaunchFailed(d.name, err)
	}

	argv := d.argv(opts)

	var (
		pid        int
		tmuxTarget string
	)
	if d.useTmux(opts) {
		tmuxTarget, pid, err = d.launchTmux(ctx, id, absDir, argv)
	} else {
		pid, err = d.spawnDetached(argv, absDir,
			filepath.Join(sessionDir, transcriptFileName),
			filepath.Join(sessionDir, stderrFileName))
	}
	if err != nil {
		os.RemoveAll(sessionDir)
		return nil, errors.LaunchFailed(d.name, err)
	}

	meta := &sessionMetadata{
		SessionID:  id,
		Adapter:    d.name,
		PID:        pid,
		Directory:  absDir,
		Model:      opts.Model,
		Prompt:     opts.Prompt,
		Spec:       opts.Spec,
		Group:      opts.Group,
		StartedAt:  time.Now(),
		TmuxTarget: tmuxTarget,
	}
	if tmuxTarget == "" {
		meta.Transcript = filepath.Join(sessionDir, transcriptFileName)
	}

	if err := writePIDFile(sessionDir, pid); err != nil {
		return nil, errors.LaunchFailed(d.name, err)
	}
	if err := writeMetadata(sessionDir, meta); err != nil {
		return nil, errors.LaunchFailed(d.name, err)
	}

	d.log.WithFields(logrus.Fields{
		"session":   id,
		"pid":       pid,
		"directory": absDir,
	}).Info("Launched agent session")

	return &LaunchResult{ID: id, PID: pid, TmuxTarget: tmuxTarget}, nil
}

// argv assembles the agent command line: configured binary and args, then
// per-launch extras, then model and prompt in the adapter's flag style.
func (d *DirScan) argv(opts LaunchOptions) []string {
	argv := []string{d.command}
	argv = append(argv, d.args...)
	argv = append(argv, opts.Args...)

	if opts.Model != "" {
		flag := d.opts.ModelFlag
		if flag == "" {
			flag = "--model"
		}
		argv = append(argv, flag, opts.Model)
	}
	if opts.Prompt != "" {
		if d.opts.PromptFlag != "" {
			argv = append(argv, d.opts.PromptFlag, opts.Prompt)
		} else {
			argv = append(argv, opts.Prompt)
		}
	}
	return argv
}

func (d *DirScan) useTmux(opts LaunchOptions) bool {
	if opts.Tmux {
		return true
	}
	return d.tmux != nil && d.tmux.Enabled
}

func (d *DirScan) launchTmux(ctx context.Context, id, dir string, argv []string) (string, int, error) {
	client, err := d.tmuxClient()
	if err != nil {
		return "", 0, err
	}

	prefix := "warden-"
	if d.tmux != nil && d.tmux.SessionPrefix != "" {
		prefix = d.tmux.SessionPrefix
	}
	name := prefix + tmux.SanitizeSessionName(id)

	pid, err := client.NewSession(ctx, tmux.LaunchSpec{
		SessionName: name,
		Directory:   dir,
		Command:     argv,
	})
	if err != nil {
		return "", 0, err
	}
	return name, pid, nil
}

// spawnDetached starts argv in its own session so it survives daemon
// restarts. Stdout becomes the transcript. The child is reaped on exit;
// without that a finished agent would linger as a zombie and keep answering
// liveness probes.
func (d *DirScan) spawnDetached(argv []string, dir, transcriptPath, stderrPath string) (int, error) {
	if len(argv) == 0 {
		return 0, fmt.Errorf("empty command")
	}

	transcript, err := os.OpenFile(transcriptPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return 0, err
	}
	defer transcript.Close()

	stderr, err := os.OpenFile(stderrPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return 0, err
	}
	defer stderr.Close()

	cmd := exec.Command(argv[0], argv[1:]...) //nolint:gosec // no shell involved, the prompt rides as a plain argv element
	cmd.Dir = dir
	cmd.Stdin = nil
	cmd.Stdout = transcript
	cmd.Stderr = stderr
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		return 0, err
	}

	go func() { _ = cmd.Wait() }()

	return cmd.Process.Pid, nil
}

// Stop terminates a session's process. Files stay behind so discovery keeps
// reporting the session as stopped.
func (d *DirScan) Stop(ctx context.Context, sessionID string, opts StopOptions) error {
	sessionDir, err := d.findSessionDir(sessionID)
	if err != nil {
		return err
	}

	meta, _ := readMetadata(filepath.Join(sessionDir, metadataFileName))

	// A tmux launch dies with its tmux session.
	if meta != nil && meta.TmuxTarget != "" {
		if client, err := d.tmuxClient(); err == nil {
			if exists, _ := client.SessionExists(ctx, meta.TmuxTarget); exists {
				if err := client.KillSession(ctx, meta.TmuxTarget); err != nil {
					d.log.WithError(err).WithField("target", meta.TmuxTarget).Warn("Failed to kill tmux session")
				}
			}
		}
	}

	pid, err := readPIDFile(filepath.Join(sessionDir, pidFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	if !process.Alive(pid) {
		return nil
	}

	if opts.Force {
		return process.Kill(pid)
	}

	grace := opts.Grace
	if grace <= 0 {
		grace = d.grace
	}
	return process.Terminate(pid, grace)
}

// Resume hands a follow-up message to a session. Inside tmux the message is
// typed into the agent's pane; for detached sessions a fresh agent process is
// spawned with the CLI's resume flag, appending to the same transcript.
func (d *DirScan) Resume(ctx context.Context, sessionID, message string) error {
	sessionDir, err := d.findSessionDir(sessionID)
	if err != nil {
		return err
	}

	meta, _ := readMetadata(filepath.Join(sessionDir, metadataFileName))

	if meta != nil && meta.TmuxTarget != "" {
		client, err := d.tmuxClient()
		if err != nil {
			return err
		}
		return client.SendKeys(ctx, meta.TmuxTarget, message, "Enter")
	}

	// Resuming a detached session goes through the agent CLI, which needs
	// the agent's own id.
	id := sessionID
	if meta != nil && meta.SessionID != "" {
		id = meta.SessionID
	}
	if models.IsPlaceholderID(id) {
		return errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("session '%s' has no resolved id yet; cannot resume", sessionID)).
			WithDetail("session_id", sessionID)
	}

	resumeFlag := d.opts.ResumeFlag
	if resumeFlag == "" {
		resumeFlag = "--resume"
	}

	argv := []string{d.command}
	argv = append(argv, d.args...)
	argv = append(argv, resumeFlag, id)
	if d.opts.PromptFlag != "" {
		argv = append(argv, d.opts.PromptFlag, message)
	} else {
		argv = append(argv, message)
	}

	dir := ""
	if meta != nil {
		dir = meta.Directory
	}

	pid, err := d.spawnDetached(argv, dir,
		filepath.Join(sessionDir, transcriptFileName),
		filepath.Join(sessionDir, stderrFileName))
	if err != nil {
		return errors.LaunchFailed(d.name, err)
	}

	// The resumed process takes over for liveness purposes.
	if err := writePIDFile(sessionDir, pid); err != nil {
		d.log.WithError(err).WithField("session", sessionID).Warn("Failed to update pid file after resume")
	}
	if meta != nil {
		meta.PID = pid
		if err := writeMetadata(sessionDir, meta); err != nil {
			d.log.WithError(err).WithField("session", sessionID).Debug("Failed to update metadata after resume")
		}
	}

	d.log.WithFields(logrus.Fields{"session": sessionID, "pid": pid}).Info("Resumed agent session")
	return nil
}

// Peek returns the tail of a session's transcript. tmux launches have no
// transcript file, so their pane content stands in.
func (d *DirScan) Peek(ctx context.Context, sessionID string, opts PeekOptions) ([]string, error) {
	sessionDir, err := d.findSessionDir(sessionID)
	if err != nil {
		return nil, err
	}

	lines := opts.Lines
	if lines <= 0 {
		lines = DefaultPeekLines
	}

	transcript := filepath.Join(sessionDir, transcriptFileName)
	if _, err := os.Stat(transcript); err == nil {
		return tailLines(transcript, lines)
	}

	meta, _ := readMetadata(filepath.Join(sessionDir, metadataFileName))
	if meta != nil && meta.TmuxTarget != "" {
		client, err := d.tmuxClient()
		if err != nil {
			return nil, err
		}
		output, err := client.CapturePane(ctx, meta.TmuxTarget)
		if err != nil {
			return nil, err
		}
		all := strings.Split(strings.TrimRight(output, "\n"), "\n")
		if len(all) > lines {
			all = all[len(all)-lines:]
		}
		return all, nil
	}

	return []string{}, nil
}
