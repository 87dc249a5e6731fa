package sigs

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"github.com/spf13/afero"
	"github.com/zeebo/xxh3"

	"sessionstarter/internal/engine"
	"sessionstarter/internal/output"
)

// KindSignature is the rename kind reported for signature matches.
const KindSignature = "signature"

type groupKey struct {
	size int
	mask string
}

// Index maps masked-byte hashes to signature names, grouped by length and
// mask so a function's bytes are masked once per distinct mask.
type Index struct {
	groups map[int]map[string]map[uint64][]string // size -> mask -> hash -> names
}

// NewIndex builds an Index over sigs.
func NewIndex(sigs []Signature) *Index {
	idx := &Index{groups: make(map[int]map[string]map[uint64][]string)}
	grouped := lo.GroupBy(sigs, func(s Signature) groupKey {
		return groupKey{size: len(s.Bytes), mask: string(s.Mask)}
	})
	for key, group := range grouped {
		byMask, ok := idx.groups[key.size]
		if !ok {
			byMask = make(map[string]map[uint64][]string)
			idx.groups[key.size] = byMask
		}
		hashes := make(map[uint64][]string, len(group))
		for _, s := range group {
			h := xxh3.Hash(applyMask(s.Bytes, s.Mask))
			hashes[h] = append(hashes[h], s.Name)
		}
		byMask[key.mask] = hashes
	}
	return idx
}

// Has reports whether any signature is size bytes long.
func (idx *Index) Has(size uint64) bool {
	_, ok := idx.groups[int(size)]
	return ok
}

// Lookup returns the distinct signature names matching code, sorted.
func (idx *Index) Lookup(code []byte) []string {
	var names []string
	for mask, hashes := range idx.groups[len(code)] {
		h := xxh3.Hash(applyMask(code, []byte(mask)))
		names = append(names, hashes[h]...)
	}
	names = lo.Uniq(names)
	sort.Strings(names)
	return names
}

func applyMask(code, mask []byte) []byte {
	out := make([]byte, len(code))
	for i := range code {
		out[i] = code[i] & mask[i]
	}
	return out
}

// Renamer applies "bytes" signature matches to the functions of a session.
type Renamer struct {
	fs     afero.Fs
	open   engine.Opener
	log    zerolog.Logger
	dryRun bool
}

// Option configures a Renamer.
type Option func(*Renamer)

// WithDryRun reports matches without renaming.
func WithDryRun(dryRun bool) Option {
	return func(r *Renamer) { r.dryRun = dryRun }
}

// WithFs sets the filesystem signature paths are read from.
func WithFs(fs afero.Fs) Option {
	return func(r *Renamer) { r.fs = fs }
}

// NewRenamer returns a Renamer that opens its own engine session.
func NewRenamer(open engine.Opener, log zerolog.Logger, opts ...Option) *Renamer {
	r := &Renamer{fs: afero.NewOsFs(), open: open, log: log}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RenameRecognizedCode loads the signatures at path and renames every
// function whose bytes match exactly one signature name. An empty path
// does nothing and opens no session.
func (r *Renamer) RenameRecognizedCode(path string) ([]output.Rename, int, error) {
	if path == "" {
		return nil, 0, nil
	}

	sigs, stats, err := Load(r.fs, path, r.log)
	if err != nil {
		return nil, 0, err
	}
	r.log.Info().
		Str("path", path).
		Int("files", stats.Files).
		Int("bytes_sigs", stats.Bytes).
		Int("ignored", stats.Ignored).
		Int("invalid", stats.Invalid).
		Msg("loaded signatures")
	if len(sigs) == 0 {
		return nil, 0, nil
	}

	idx := NewIndex(sigs)
	var renames []output.Rename
	err = engine.With(r.open, r.log, func(s *engine.Session) error {
		funcs, err := s.Functions()
		if err != nil {
			return err
		}
		for _, fn := range funcs {
			if fn.Size == 0 || !idx.Has(fn.Size) {
				continue
			}
			code, err := s.ReadBytes(fn.Addr, fn.Size)
			if err != nil {
				return err
			}
			names := idx.Lookup(code)
			switch {
			case len(names) == 0:
				continue
			case len(names) > 1:
				r.log.Warn().
					Str("addr", hexAddr(fn.Addr)).
					Strs("candidates", names).
					Msg("ambiguous signature match")
				continue
			}

			name := engine.SanitizeName(names[0])
			if name == fn.Name {
				continue
			}
			if !r.dryRun {
				if err := s.RenameAt(fn.Addr, name); err != nil {
					return err
				}
			}
			r.log.Info().
				Str("addr", hexAddr(fn.Addr)).
				Str("old", fn.Name).
				Str("new", name).
				Msg("signature match")
			renames = append(renames, output.Rename{
				Addr: fn.Addr,
				Old:  fn.Name,
				New:  name,
				Kind: KindSignature,
			})
		}
		return nil
	})
	if err != nil {
		return nil, len(sigs), err
	}
	return renames, len(sigs), nil
}

func hexAddr(addr uint64) string {
	return fmt.Sprintf("0x%x", addr)
}
