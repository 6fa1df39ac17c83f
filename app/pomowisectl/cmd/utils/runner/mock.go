package runner

import (
	"context"
	"fmt"
	"sync"
)

// MockRunner replays scripted responses. Intended for tests.
type MockRunner struct {
	mu    sync.Mutex
	Calls []string
	// Map: "cmd arg1 arg2" -> response
	Script map[string]MockResponse
	// Paths maps a binary name to its LookPath result. Missing names are not found.
	Paths map[string]string
	// OnRun, when set, is invoked for every call before the script lookup.
	// Tests use it to create files a real command would have produced.
	OnRun func(dir, name string, args []string)
}

type MockResponse struct {
	Out string
	Err error
}

func (m *MockRunner) Run(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	key := CommandLine(name, args...)
	m.mu.Lock()
	m.Calls = append(m.Calls, key)
	m.mu.Unlock()

	if m.OnRun != nil {
		m.OnRun(dir, name, args)
	}
	if r, ok := m.Script[key]; ok {
		if r.Err != nil {
			return []byte(r.Out), NewCmdError(key, r.Out, r.Err)
		}
		return []byte(r.Out), nil
	}
	return nil, fmt.Errorf("unexpected command: %s", key)
}

func (m *MockRunner) LookPath(name string) (string, error) {
	if p, ok := m.Paths[name]; ok {
		return p, nil
	}
	return "", fmt.Errorf("exec: %q: executable file not found in $PATH", name)
}
