package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/afero"

	"sessionstarter/internal/engine"
	"sessionstarter/internal/session"
)

// deps are the process-level collaborators, replaced in tests.
type deps struct {
	fs     afero.Fs
	dial   func(file string) (engine.Pipe, error)
	stdout io.Writer
	stderr io.Writer
}

func defaultDeps() deps {
	return deps{
		fs:     afero.NewOsFs(),
		dial:   engine.Dial,
		stdout: os.Stdout,
		stderr: os.Stderr,
	}
}

func main() {
	if err := newRootCmd(defaultDeps()).Execute(); err != nil {
		if errors.Is(err, session.ErrInvalidInput) {
			fmt.Fprintf(os.Stderr, "%v.\n", err)
		} else {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}
}
