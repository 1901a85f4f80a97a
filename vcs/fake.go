package vcs

import (
	"context"
	"fmt"
)

// FakeRunner is an in-memory Runner for pusher tests, grounded on the
// teacher's amqp_mock.go approach of scripting responses per call.
type FakeRunner struct {
	// Responses maps a joined-args key ("qimport patch.file") to a canned
	// stdout response. Errors takes priority when both are set for a key.
	Responses map[string]string
	Errors    map[string]error
	// Calls records every invocation in order, keyed by cwd then args.
	Calls []Call

	// FailFirstN, when set, forces the first N calls whose args[0] equals
	// FailOp to return FailErr, then succeeds — used to simulate the
	// "transient clone failure then success" scenario (spec.md §8 #3).
	FailFirstN int
	FailOp     string
	FailErr    error
	opCount    map[string]int
}

type Call struct {
	Cwd  string
	Args []string
}

func (f *FakeRunner) key(args []string) string {
	s := ""
	for i, a := range args {
		if i > 0 {
			s += " "
		}
		s += a
	}
	return s
}

func (f *FakeRunner) Run(_ context.Context, cwd string, args ...string) (string, error) {
	f.Calls = append(f.Calls, Call{Cwd: cwd, Args: append([]string(nil), args...)})

	if len(args) > 0 && f.FailOp != "" && args[0] == f.FailOp {
		if f.opCount == nil {
			f.opCount = map[string]int{}
		}
		f.opCount[f.FailOp]++
		if f.opCount[f.FailOp] <= f.FailFirstN {
			if f.FailErr != nil {
				return "", f.FailErr
			}
			return "", fmt.Errorf("simulated failure for %s", f.FailOp)
		}
	}

	k := f.key(args)
	if f.Errors != nil {
		if err, ok := f.Errors[k]; ok {
			return "", err
		}
	}
	if f.Responses != nil {
		if out, ok := f.Responses[k]; ok {
			return out, nil
		}
	}
	return "", nil
}
