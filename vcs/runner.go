// Package vcs wraps the Mercurial command-line client used by the pusher,
// generalizing the teacher's ShellExecute(bash -c string) pattern
// (originally common/shell.go) from "one bash string" to "one argv in a
// working directory", which avoids the command-injection exposure the
// teacher's own doc comments warned about.
package vcs

import (
	"bytes"
	"context"
	"os/exec"

	"github.com/sirupsen/logrus"

	"go.mozilla.org/autoland/faults"
)

// Runner executes Mercurial subcommands against a working directory. The
// pusher depends on this interface, not on exec.Command directly, so tests
// can substitute FakeRunner (mirrors the teacher's amqp_mock.go style of
// mocking an external dependency behind an interface).
type Runner interface {
	// Run executes `hg <args...>` with cwd as the working directory (or the
	// ambient directory when cwd is empty, e.g. for a first clone) and
	// returns its stdout.
	Run(ctx context.Context, cwd string, args ...string) (string, error)
}

// RealRunner shells out to the configured hg binary.
type RealRunner struct {
	HgBinary string
	Identity string // SSH identity file, passed via hg's ssh config override
	Log      *logrus.Logger
}

// NewRealRunner builds a RealRunner, defaulting HgBinary to "hg".
func NewRealRunner(hgBinary, identity string, log *logrus.Logger) *RealRunner {
	if hgBinary == "" {
		hgBinary = "hg"
	}
	return &RealRunner{HgBinary: hgBinary, Identity: identity, Log: log}
}

func (r *RealRunner) Run(ctx context.Context, cwd string, args ...string) (string, error) {
	full := append([]string{"--config", "extensions.mq="}, args...)
	if r.Identity != "" {
		full = append([]string{"--config", "ui.ssh=ssh -i " + r.Identity}, full...)
	}
	cmd := exec.CommandContext(ctx, r.HgBinary, full...)
	if cwd != "" {
		cmd.Dir = cwd
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if r.Log != nil {
		r.Log.WithFields(logrus.Fields{"cwd": cwd, "args": args}).Debug("running hg")
	}

	err := cmd.Run()
	if err != nil {
		if ctx.Err() != nil {
			return "", faults.New(faults.Timeout, "vcs.Run", ctx.Err())
		}
		return "", faults.Newf(faults.Transient, "vcs.Run", "hg %v failed: %v, stderr: %s", args, err, stderr.String())
	}
	return stdout.String(), nil
}
