// Package engine drives radare2 over r2pipe through typed commands.
package engine

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

// Session is one open command channel to the engine.
type Session struct {
	pipe Pipe
	log  zerolog.Logger
	info *Info
}

// With opens a session, runs fn and always closes the session afterwards.
// A close error is returned only when fn itself succeeded.
func With(open Opener, log zerolog.Logger, fn func(*Session) error) (err error) {
	p, err := open()
	if err != nil {
		return fmt.Errorf("open session: %w", err)
	}
	s := &Session{pipe: p, log: log}
	defer func() {
		if cerr := p.Close(); cerr != nil {
			if err == nil {
				err = fmt.Errorf("close session: %w", cerr)
			} else {
				log.Warn().Err(cerr).Msg("close session")
			}
		}
	}()
	return fn(s)
}

// Do sends a typed command and returns the raw response.
func (s *Session) Do(c Command) (string, error) {
	text := c.Text()
	s.log.Debug().Str("cmd", c.Kind.String()).Str("text", text).Msg("engine")
	out, err := s.pipe.Cmd(text)
	if err != nil {
		return "", fmt.Errorf("%s: %w", c.Kind, err)
	}
	return out, nil
}

// CountFunctions returns the number of functions the engine knows about.
func (s *Session) CountFunctions() (int, error) {
	out, err := s.Do(Command{Kind: CmdCountFunctions})
	if err != nil {
		return 0, err
	}
	text := strings.TrimSpace(out)
	if text == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(text)
	if err != nil {
		return 0, fmt.Errorf("count-functions: unexpected response %q", text)
	}
	return n, nil
}

// Analyze issues each analysis command in order.
func (s *Session) Analyze(steps []string) error {
	for _, step := range steps {
		if _, err := s.Do(Command{Kind: CmdAnalyze, Analysis: step}); err != nil {
			return err
		}
	}
	return nil
}

// Functions returns the engine's function listing in engine order.
func (s *Session) Functions() ([]Function, error) {
	out, err := s.Do(Command{Kind: CmdListFunctions})
	if err != nil {
		return nil, err
	}
	funcs, err := decodeFunctions(out)
	if err != nil {
		return nil, fmt.Errorf("list-functions: decode: %w", err)
	}
	return funcs, nil
}

// FunctionOps returns the disassembled instructions of the function at addr.
func (s *Session) FunctionOps(addr uint64) ([]Op, error) {
	out, err := s.Do(Command{Kind: CmdFunctionOps, Addr: addr})
	if err != nil {
		return nil, err
	}
	ops, err := decodeOps(out)
	if err != nil {
		return nil, fmt.Errorf("function-ops 0x%x: decode: %w", addr, err)
	}
	return ops, nil
}

// FunctionsWithOps returns the listing with each function's Ops filled in.
func (s *Session) FunctionsWithOps() ([]Function, error) {
	funcs, err := s.Functions()
	if err != nil {
		return nil, err
	}
	for i := range funcs {
		ops, err := s.FunctionOps(funcs[i].Addr)
		if err != nil {
			return nil, err
		}
		funcs[i].Ops = ops
	}
	return funcs, nil
}

// Imports returns the imported symbols of the binary.
func (s *Session) Imports() ([]Import, error) {
	out, err := s.Do(Command{Kind: CmdImports})
	if err != nil {
		return nil, err
	}
	var imps []Import
	if err := decodeJSON(out, &imps); err != nil {
		return nil, fmt.Errorf("imports: decode: %w", err)
	}
	return imps, nil
}

// Info returns the binary's architecture and word size. The result is cached
// for the lifetime of the session.
func (s *Session) Info() (Info, error) {
	if s.info != nil {
		return *s.info, nil
	}
	out, err := s.Do(Command{Kind: CmdInfo})
	if err != nil {
		return Info{}, err
	}
	var raw rawInfo
	if err := decodeJSON(out, &raw); err != nil {
		return Info{}, fmt.Errorf("info: decode: %w", err)
	}
	s.info = &Info{Arch: raw.Bin.Arch, Bits: raw.Bin.Bits}
	return *s.info, nil
}

// ReadBytes returns n bytes starting at addr.
func (s *Session) ReadBytes(addr, n uint64) ([]byte, error) {
	out, err := s.Do(Command{Kind: CmdReadBytes, Addr: addr, Size: n})
	if err != nil {
		return nil, err
	}
	b, err := hex.DecodeString(strings.TrimSpace(out))
	if err != nil {
		return nil, fmt.Errorf("read-bytes 0x%x: %w", addr, err)
	}
	if uint64(len(b)) != n {
		return nil, fmt.Errorf("read-bytes 0x%x: got %d bytes, want %d", addr, len(b), n)
	}
	return b, nil
}

// RenameAt seeks to addr and renames the function there. The two commands
// are issued back to back so no other seek can land between them.
func (s *Session) RenameAt(addr uint64, name string) error {
	if _, err := s.Do(Command{Kind: CmdSeek, Addr: addr}); err != nil {
		return err
	}
	if _, err := s.Do(Command{Kind: CmdRename, Name: SanitizeName(name)}); err != nil {
		return err
	}
	return nil
}

// SanitizeName replaces characters r2 would treat as command syntax.
func SanitizeName(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', '\r', ';', '|', '>', '@', '`', '~', '"', '\'':
			return '_'
		}
		return r
	}, name)
}
