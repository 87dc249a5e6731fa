package engine

import (
	"errors"
	"fmt"
	"os"

	"github.com/radareorg/r2pipe-go"
)

// ErrNoSession is returned by Dial when no file is given and the process
// was not started from inside an r2 session.
var ErrNoSession = errors.New("engine: not running inside an r2 session (R2PIPE_IN/R2PIPE_OUT unset)")

// Pipe is a synchronous command channel to the analysis engine. Every Cmd
// blocks until the engine's full response has been read.
type Pipe interface {
	Cmd(cmd string) (string, error)
	Close() error
}

// Opener opens a Pipe for one logical operation.
type Opener func() (Pipe, error)

// Dial connects to r2. An empty file attaches to the r2 instance that
// launched this process; otherwise "radare2 -q0 <file>" is started.
func Dial(file string) (Pipe, error) {
	if file == "" && (os.Getenv("R2PIPE_IN") == "" || os.Getenv("R2PIPE_OUT") == "") {
		return nil, ErrNoSession
	}
	p, err := r2pipe.NewPipe(file)
	if err != nil {
		if file == "" {
			return nil, fmt.Errorf("engine: attach to r2 session: %w", err)
		}
		return nil, fmt.Errorf("engine: start r2 on %s: %w", file, err)
	}
	return p, nil
}

// Conn shares one engine connection between the sessions of a run. The
// connection is dialed on first use and lives until Conn.Close, so analysis
// and renames done in one session are visible to the next. Closing a
// session only releases it. Conn is not safe for concurrent use.
type Conn struct {
	dial   func() (Pipe, error)
	pipe   Pipe
	leased bool
	closed bool
}

// NewConn returns a Conn that dials lazily.
func NewConn(dial func() (Pipe, error)) *Conn {
	return &Conn{dial: dial}
}

// Opener hands out sessions over the shared connection, one at a time.
func (c *Conn) Opener() Opener {
	return func() (Pipe, error) {
		if c.closed {
			return nil, errors.New("engine: connection closed")
		}
		if c.leased {
			return nil, errors.New("engine: a session is already open")
		}
		if c.pipe == nil {
			p, err := c.dial()
			if err != nil {
				return nil, err
			}
			c.pipe = p
		}
		c.leased = true
		return &lease{c: c}, nil
	}
}

// Close ends the underlying connection. For a spawned r2 this quits the
// process. Close is idempotent.
func (c *Conn) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	if c.pipe == nil {
		return nil
	}
	if err := c.pipe.Close(); err != nil {
		return fmt.Errorf("engine: close r2: %w", err)
	}
	return nil
}

type lease struct {
	c        *Conn
	released bool
}

func (l *lease) Cmd(cmd string) (string, error) {
	if l.released {
		return "", fmt.Errorf("engine: command %q on closed session", cmd)
	}
	return l.c.pipe.Cmd(cmd)
}

func (l *lease) Close() error {
	if !l.released {
		l.released = true
		l.c.leased = false
	}
	return nil
}
