// Package session prepares an r2 session: it makes sure the binary has been
// analyzed, applies signature renames and then names common helper
// functions.
package session

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"sessionstarter/internal/classify"
	"sessionstarter/internal/engine"
	"sessionstarter/internal/output"
	"sessionstarter/internal/sigs"
)

// ErrInvalidInput is returned for a signature path that does not exist.
var ErrInvalidInput = errors.New("not a valid input for signature matching")

// DefaultAnalysis analyzes functions, then references, then calling conventions.
var DefaultAnalysis = []string{"aa", "aar", "aac"}

// SignatureRenamer renames recognized library code. An empty path is a no-op.
type SignatureRenamer interface {
	RenameRecognizedCode(path string) ([]output.Rename, int, error)
}

// Starter runs the session start sequence against one engine.
type Starter struct {
	open       engine.Opener
	log        zerolog.Logger
	classifier *classify.Classifier
	renamer    SignatureRenamer
	analysis   []string
	dryRun     bool
	analyzed   bool
}

// Option configures a Starter.
type Option func(*Starter)

// WithAnalysis overrides the analysis commands issued for an unanalyzed binary.
func WithAnalysis(steps []string) Option {
	return func(s *Starter) { s.analysis = steps }
}

// WithClassifier overrides the helper-function rule table.
func WithClassifier(c *classify.Classifier) Option {
	return func(s *Starter) { s.classifier = c }
}

// WithSignatureRenamer overrides the signature pass.
func WithSignatureRenamer(r SignatureRenamer) Option {
	return func(s *Starter) { s.renamer = r }
}

// WithDryRun classifies and reports without renaming anything.
func WithDryRun(dryRun bool) Option {
	return func(s *Starter) { s.dryRun = dryRun }
}

// New checks whether the engine already knows any functions and, if not,
// runs the analysis sequence before returning.
func New(open engine.Opener, log zerolog.Logger, opts ...Option) (*Starter, error) {
	s := &Starter{
		open:     open,
		log:      log,
		analysis: DefaultAnalysis,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.classifier == nil {
		s.classifier = classify.New(classify.DefaultPrefixes)
	}
	if s.renamer == nil {
		s.renamer = sigs.NewRenamer(open, log.With().Str("component", "sigs").Logger(), sigs.WithDryRun(s.dryRun))
	}

	err := engine.With(open, log, func(es *engine.Session) error {
		n, err := es.CountFunctions()
		if err != nil {
			return err
		}
		if n > 0 {
			log.Debug().Int("functions", n).Msg("binary already analyzed")
			return nil
		}
		log.Info().Strs("commands", s.analysis).Msg("no functions found, analyzing")
		if err := es.Analyze(s.analysis); err != nil {
			return fmt.Errorf("analyze: %w", err)
		}
		s.analyzed = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Analyzed reports whether New had to trigger analysis.
func (s *Starter) Analyzed() bool {
	return s.analyzed
}

// Start applies signature renames from infile (skipped when empty) and then
// renames common helper functions.
func (s *Starter) Start(infile string) (*output.Report, error) {
	report := &output.Report{Analyzed: s.analyzed, DryRun: s.dryRun}

	sigRenames, nsigs, err := s.renamer.RenameRecognizedCode(infile)
	if err != nil {
		return nil, fmt.Errorf("signatures: %w", err)
	}
	report.Signatures = nsigs
	report.Renames = append(report.Renames, sigRenames...)

	common, nfuncs, err := s.RenameCommonFuncs()
	if err != nil {
		return nil, fmt.Errorf("common functions: %w", err)
	}
	report.Functions = nfuncs
	report.Renames = append(report.Renames, common...)
	return report, nil
}

// RenameCommonFuncs walks every function in engine order and renames import
// jumps, wrappers and global-assignment stubs. Each function's ops are
// fetched, classified and, on a match, renamed before the next function is
// touched. It returns the renames and the number of functions visited.
func (s *Starter) RenameCommonFuncs() ([]output.Rename, int, error) {
	var (
		renames []output.Rename
		visited int
	)
	err := engine.With(s.open, s.log, func(es *engine.Session) error {
		info, err := es.Info()
		if err != nil {
			return err
		}
		imports, err := es.Imports()
		if err != nil {
			return err
		}
		ctx := classify.NewContext(info, imports)

		funcs, err := es.Functions()
		if err != nil {
			return err
		}
		for _, fn := range funcs {
			visited++
			fn.Ops, err = es.FunctionOps(fn.Addr)
			if err != nil {
				return err
			}
			m, ok := s.classifier.Classify(fn, ctx)
			if !ok {
				continue
			}
			name := engine.SanitizeName(m.NewName)
			if name == fn.Name {
				continue
			}
			if !s.dryRun {
				if err := es.RenameAt(fn.Addr, name); err != nil {
					return err
				}
			}
			s.log.Info().
				Str("addr", fmt.Sprintf("0x%x", fn.Addr)).
				Str("old", fn.Name).
				Str("new", name).
				Str("kind", string(m.Kind)).
				Msg("renamed")
			renames = append(renames, output.Rename{
				Addr:   fn.Addr,
				Old:    fn.Name,
				New:    name,
				Kind:   string(m.Kind),
				Target: m.Target,
			})
		}
		return nil
	})
	if err != nil {
		return nil, visited, err
	}
	return renames, visited, nil
}

// ValidateInput checks that a signature path exists as a file or directory.
// An empty path is valid and means no signature matching.
func ValidateInput(fs afero.Fs, path string) error {
	if path == "" {
		return nil
	}
	ok, err := afero.Exists(fs, path)
	if err != nil || !ok {
		return fmt.Errorf("%s is %w", path, ErrInvalidInput)
	}
	return nil
}
