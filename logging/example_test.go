package logging_test

import (
	"github.com/sirupsen/logrus"
	"github.com/wardentools/warden/logging"
)

// Components ask for their logger once and keep the entry; repeated calls
// return the same configured instance.
func ExampleNewLogger() {
	log := logging.NewLogger("tracker")

	log.Info("Reconcile pass starting")
	log.WithFields(logrus.Fields{
		"session_id": "claude-a1b2",
		"adapter":    "claude",
	}).Info("Session launched")
	log.WithField("directory", "/home/dev/api").Warn("Lock held by finished session")
}

// The logging section of warden.yml and two environment variables control
// behavior:
//
//	logging:
//	  level: info
//	  components:
//	    wardend: debug      # one chatty component, the rest stay quiet
//	  report_caller: true
//	  file:
//	    enabled: true
//	    path: ~/wardend.log
//	  format:
//	    preset: json
//
// WARDEN_LOG_LEVEL overrides every configured level, and
// WARDEN_LOG_CALLER=true switches caller reporting on.
func ExampleNewLogger_configuration() {
	log := logging.NewLogger("wardend")
	log.Debug("visible only when wardend runs at debug")
}

// Every entry carries its component, so the shared log file interleaves
// cleanly.
func ExampleNewLogger_components() {
	wardend := logging.NewLogger("wardend")
	fuses := logging.NewLogger("fuse")

	wardend.Info("Daemon started")
	fuses.Warn("Fuse expired for /tmp/scratch")

	// The file sink shows:
	//   [INFO] [wardend] Daemon started
	//   [WARN] [fuse] Fuse expired for /tmp/scratch
}
