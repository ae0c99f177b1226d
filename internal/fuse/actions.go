package fuse

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/wardentools/warden/command"
	"github.com/wardentools/warden/errors"
	"github.com/wardentools/warden/internal/event"
	"github.com/wardentools/warden/logging"
	"github.com/wardentools/warden/pkg/models"
)

const (
	// ShellActionTimeout bounds a fuse's shell command.
	ShellActionTimeout = 120 * time.Second

	// WebhookActionTimeout bounds a fuse's webhook POST.
	WebhookActionTimeout = 30 * time.Second
)

// actionRunner executes a fired fuse's expiry actions. Each action runs
// independently and best-effort: a failure is logged and swallowed, never
// propagated, and never affects fuse bookkeeping, which already completed
// before the runner is invoked.
type actionRunner struct {
	builder *command.SafeBuilder
	client  *http.Client
	bus     *event.Bus
	log     *logrus.Entry
}

func newActionRunner(bus *event.Bus) *actionRunner {
	return &actionRunner{
		builder: command.NewSafeBuilder(),
		client:  &http.Client{Timeout: WebhookActionTimeout},
		bus:     bus,
		log:     logging.NewLogger("fuse"),
	}
}

func (r *actionRunner) runAll(timer models.FuseTimer, expiredAt time.Time) {
	if timer.OnExpire == nil {
		return
	}

	if timer.OnExpire.Run != "" {
		if err := r.runShell(timer); err != nil {
			r.log.WithError(err).WithField("directory", timer.Directory).Warn("Fuse shell action failed")
		}
	}

	if timer.OnExpire.Webhook != "" {
		if err := r.postWebhook(timer, expiredAt); err != nil {
			r.log.WithError(err).WithField("directory", timer.Directory).Warn("Fuse webhook action failed")
		}
	}

	if timer.OnExpire.Event != "" {
		r.bus.Publish(models.NewEvent(models.EventType(timer.OnExpire.Event)).
			WithDirectory(timer.Directory).
			WithSession(timer.SessionID).
			WithData("label", timer.Label).
			WithData("expired_at", expiredAt))
	}
}

// runShell executes the configured command with the fuse's directory as
// working directory. The directory was recorded from client input at arm
// time, so it is vetted again before becoming a cwd.
func (r *actionRunner) runShell(timer models.FuseTimer) error {
	if err := r.builder.Validate("dirPath", timer.Directory); err != nil {
		return errors.FuseActionFailed("shell", timer.Directory, err)
	}

	cmd, err := r.builder.Build(context.Background(), "sh", "-c", timer.OnExpire.Run)
	if err != nil {
		return errors.FuseActionFailed("shell", timer.Directory, err)
	}

	out, err := cmd.WithTimeout(ShellActionTimeout).WithDir(timer.Directory).Exec().CombinedOutput()
	if err != nil {
		if len(out) > 0 {
			err = fmt.Errorf("%w: %s", err, bytes.TrimSpace(out))
		}
		return errors.FuseActionFailed("shell", timer.Directory, err)
	}
	return nil
}

// postWebhook delivers the expiry payload to the configured URL.
func (r *actionRunner) postWebhook(timer models.FuseTimer, expiredAt time.Time) error {
	payload := models.FuseExpiredPayload{
		Type:      string(models.EventFuseExpired),
		Directory: timer.Directory,
		SessionID: timer.SessionID,
		Label:     timer.Label,
		ExpiredAt: expiredAt,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return errors.FuseActionFailed("webhook", timer.Directory, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), WebhookActionTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, timer.OnExpire.Webhook, bytes.NewReader(body))
	if err != nil {
		return errors.FuseActionFailed("webhook", timer.Directory, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return errors.FuseActionFailed("webhook", timer.Directory, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body) //nolint:errcheck // draining for connection reuse

	if resp.StatusCode >= 300 {
		return errors.FuseActionFailed("webhook", timer.Directory, fmt.Errorf("webhook returned %s", resp.Status))
	}
	return nil
}
