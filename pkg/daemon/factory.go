package daemon

import (
	"net"
	"os"
	"time"

	"github.com/wardentools/warden/config"
	"github.com/wardentools/warden/errors"
	"github.com/wardentools/warden/pkg/paths"
)

// New returns a Client that uses the daemon when available and otherwise
// falls back to LocalClient.
//
// This implements the "transparent daemon" pattern: callers don't need to
// know whether the daemon is running. Reads work either way; mutations
// through the local fallback report DAEMON_UNAVAILABLE.
func New(cfg *config.Config) (Client, error) {
	socketPath := paths.SocketPath()
	if _, err := os.Stat(socketPath); err == nil {
		// Socket file exists, try to connect
		conn, err := net.DialTimeout("unix", socketPath, 100*time.Millisecond)
		if err == nil {
			conn.Close()
			if client, err := NewRemoteClient(socketPath); err == nil {
				return client, nil
			}
		}
	}

	return NewLocalClient(cfg)
}

// Connect returns a RemoteClient or a DAEMON_UNAVAILABLE error. Use it for
// commands that cannot fall back to local reads.
func Connect() (Client, error) {
	socketPath := paths.SocketPath()
	conn, err := net.DialTimeout("unix", socketPath, 100*time.Millisecond)
	if err != nil {
		return nil, errors.DaemonUnavailable(err)
	}
	conn.Close()
	return NewRemoteClient(socketPath)
}
