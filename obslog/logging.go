// Package obslog is the structured-logging layer shared by the
// orchestrator, pusher, and classifier processes. It wraps logrus with a
// stream-splitting writer so container log collectors can treat stderr as
// the error channel without parsing structured fields.
package obslog

import (
	"bytes"
	"os"

	"github.com/sirupsen/logrus"
)

// OutputSplitter routes formatted log lines to stderr when they carry
// level=error and to stdout otherwise. It operates on the already-formatted
// bytes, so it works the same under the JSON and text formatters.
type OutputSplitter struct{}

func (s *OutputSplitter) Write(p []byte) (int, error) {
	if bytes.Contains(p, []byte("level=error")) {
		return os.Stderr.Write(p)
	}
	return os.Stdout.Write(p)
}

// Logger is the process-wide fallback logger, writing through
// OutputSplitter with logrus's default level and formatter. The cmd/
// entrypoints build their own logger with New during startup (see cliapp's
// loadAutolandConfig) rather than reconfiguring this one; packages below
// cliapp should prefer an injected *logrus.Logger over this global where a
// constructor accepts one, falling back to Logger only at the edges.
var Logger = logrus.New()

func init() {
	Logger.SetOutput(&OutputSplitter{})
}
