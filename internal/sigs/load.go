// Package sigs renames functions whose bytes match precomputed r2
// zignatures. Only "bytes" zignatures are used: "refs" and "graph" entries
// match too loosely and are skipped.
package sigs

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

// Signature is a "bytes" zignature: the function's bytes with a mask
// clearing position-dependent bits.
type Signature struct {
	Name  string
	Bytes []byte
	Mask  []byte
	File  string
}

// LoadStats counts what a load saw.
type LoadStats struct {
	Files   int // files parsed as zignature JSON
	Bad     int // files that failed to parse
	Bytes   int // usable "bytes" signatures
	Ignored int // entries with only refs/graph data
	Invalid int // entries with malformed bytes or mask
}

// zignature mirrors one entry of r2's "zj" output.
type zignature struct {
	Name  string          `json:"name"`
	Bytes string          `json:"bytes"`
	Mask  string          `json:"mask"`
	Graph json.RawMessage `json:"graph"`
	Refs  json.RawMessage `json:"refs"`
}

// Load reads every zignature file at path, which may be a single file or a
// directory searched recursively. Files that are not zignature JSON are
// logged and skipped.
func Load(fs afero.Fs, path string, log zerolog.Logger) ([]Signature, LoadStats, error) {
	var stats LoadStats

	info, err := fs.Stat(path)
	if err != nil {
		return nil, stats, fmt.Errorf("stat %s: %w", path, err)
	}

	var files []string
	if info.IsDir() {
		err = afero.Walk(fs, path, func(p string, fi os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if fi.Mode().IsRegular() {
				files = append(files, p)
			}
			return nil
		})
		if err != nil {
			return nil, stats, fmt.Errorf("walk %s: %w", path, err)
		}
	} else {
		files = []string{path}
	}

	var sigs []Signature
	for _, f := range files {
		entries, err := readFile(fs, f)
		if err != nil {
			stats.Bad++
			log.Warn().Err(err).Str("file", f).Msg("skipping signature file")
			continue
		}
		stats.Files++

		for _, z := range entries {
			if z.Bytes == "" {
				stats.Ignored++
				continue
			}
			sig, err := z.signature(f)
			if err != nil {
				stats.Invalid++
				log.Debug().Err(err).Str("file", f).Str("name", z.Name).Msg("invalid signature")
				continue
			}
			sigs = append(sigs, sig)
		}
	}
	stats.Bytes = len(sigs)
	return sigs, stats, nil
}

func readFile(fs afero.Fs, path string) ([]zignature, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, err
	}
	var entries []zignature
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return entries, nil
}

func (z zignature) signature(file string) (Signature, error) {
	if z.Name == "" {
		return Signature{}, fmt.Errorf("unnamed signature")
	}
	b, err := hex.DecodeString(z.Bytes)
	if err != nil {
		return Signature{}, fmt.Errorf("bytes: %w", err)
	}
	mask := make([]byte, len(b))
	if z.Mask == "" {
		for i := range mask {
			mask[i] = 0xff
		}
	} else {
		m, err := hex.DecodeString(z.Mask)
		if err != nil {
			return Signature{}, fmt.Errorf("mask: %w", err)
		}
		if len(m) != len(b) {
			return Signature{}, fmt.Errorf("mask is %d bytes, bytes are %d", len(m), len(b))
		}
		mask = m
	}
	if len(b) == 0 {
		return Signature{}, fmt.Errorf("empty bytes")
	}
	return Signature{Name: z.Name, Bytes: b, Mask: mask, File: file}, nil
}
