// Package enginetest provides a scripted in-memory engine for tests.
package enginetest

import (
	"fmt"
	"strings"

	"sessionstarter/internal/engine"
)

// Engine answers commands from a script and records every command it sees
// across all sessions it hands out.
type Engine struct {
	// Responses maps exact command text to its reply. Unknown commands reply "".
	Responses map[string]string
	// Fail maps command text to an error returned instead of a reply.
	Fail map[string]error
	// Hook, when set, runs before the script lookup and may answer itself.
	Hook func(cmd string) (reply string, handled bool)

	Commands []string
	Opens    int
	Closes   int
	open     bool
}

// New returns an Engine with the given scripted responses.
func New(responses map[string]string) *Engine {
	if responses == nil {
		responses = map[string]string{}
	}
	return &Engine{Responses: responses, Fail: map[string]error{}}
}

// Opener returns an engine.Opener backed by e. Opening a second session
// while one is still open is an error.
func (e *Engine) Opener() engine.Opener {
	return func() (engine.Pipe, error) {
		if e.open {
			return nil, fmt.Errorf("enginetest: session already open")
		}
		e.open = true
		e.Opens++
		return &pipe{e: e}, nil
	}
}

// Count returns how many times cmd was issued.
func (e *Engine) Count(cmd string) int {
	n := 0
	for _, c := range e.Commands {
		if c == cmd {
			n++
		}
	}
	return n
}

// Index returns the position of the first cmd, or -1.
func (e *Engine) Index(cmd string) int {
	for i, c := range e.Commands {
		if c == cmd {
			return i
		}
	}
	return -1
}

// WithPrefix returns the recorded commands starting with prefix.
func (e *Engine) WithPrefix(prefix string) []string {
	var out []string
	for _, c := range e.Commands {
		if strings.HasPrefix(c, prefix) {
			out = append(out, c)
		}
	}
	return out
}

type pipe struct {
	e      *Engine
	closed bool
}

func (p *pipe) Cmd(cmd string) (string, error) {
	if p.closed {
		return "", fmt.Errorf("enginetest: command %q on closed pipe", cmd)
	}
	p.e.Commands = append(p.e.Commands, cmd)
	if err, ok := p.e.Fail[cmd]; ok {
		return "", err
	}
	if p.e.Hook != nil {
		if reply, ok := p.e.Hook(cmd); ok {
			return reply, nil
		}
	}
	return p.e.Responses[cmd], nil
}

func (p *pipe) Close() error {
	if !p.closed {
		p.closed = true
		p.e.open = false
		p.e.Closes++
	}
	return nil
}
