package engine

import (
	"context"
)

// fakeRunner scripts process execution for tests. fn gets the full
// invocation and decides the outcome; calls records every invocation.
type fakeRunner struct {
	fn    func(name string, args []string, extraEnv []string) (commandResult, error)
	calls []fakeCall
}

type fakeCall struct {
	name string
	args []string
	env  []string
}

func (r *fakeRunner) Run(ctx context.Context, extraEnv []string, name string, args ...string) (commandResult, error) {
	r.calls = append(r.calls, fakeCall{name: name, args: args, env: extraEnv})
	if r.fn != nil {
		return r.fn(name, args, extraEnv)
	}
	return commandResult{}, nil
}

// foundLookPath pretends every binary is installed.
func foundLookPath(name string) (string, error) {
	return "/usr/bin/" + name, nil
}
