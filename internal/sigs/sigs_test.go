package sigs

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sessionstarter/internal/engine/enginetest"
)

const libcSigs = `[
  {"name":"memcpy","bytes":"5589e58b4508","mask":"ffffffffffff",
   "graph":{"cc":1,"nbbs":1,"edges":0,"ebbs":1,"bbsum":6}},
  {"name":"call_then_ret","bytes":"e811223344c3","mask":"ff00000000ff"},
  {"name":"strlen_refs_only","refs":["sym.imp.strlen"]},
  {"name":"strlen_graph_only","graph":{"cc":2,"nbbs":3}}
]`

const dupSigs = `[
  {"name":"dup_a","bytes":"31c0c3"},
  {"name":"dup_b","bytes":"31c0c3"}
]`

func sigFs(t *testing.T) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/sigs/nested", 0755))
	require.NoError(t, afero.WriteFile(fs, "/sigs/libc.json", []byte(libcSigs), 0644))
	require.NoError(t, afero.WriteFile(fs, "/sigs/nested/dup.json", []byte(dupSigs), 0644))
	require.NoError(t, afero.WriteFile(fs, "/sigs/README", []byte("not json"), 0644))
	return fs
}

func TestLoadDirectory(t *testing.T) {
	sigs, stats, err := Load(sigFs(t), "/sigs", zerolog.Nop())
	require.NoError(t, err)

	assert.Equal(t, 2, stats.Files)
	assert.Equal(t, 1, stats.Bad)
	assert.Equal(t, 4, stats.Bytes)
	assert.Equal(t, 2, stats.Ignored)
	assert.Len(t, sigs, 4)

	names := make([]string, 0, len(sigs))
	for _, s := range sigs {
		names = append(names, s.Name)
	}
	assert.ElementsMatch(t, []string{"memcpy", "call_then_ret", "dup_a", "dup_b"}, names)
}

func TestLoadSingleFile(t *testing.T) {
	sigs, stats, err := Load(sigFs(t), "/sigs/libc.json", zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Files)
	assert.Len(t, sigs, 2)
}

func TestLoadMissingPath(t *testing.T) {
	_, _, err := Load(afero.NewMemMapFs(), "/nope", zerolog.Nop())
	assert.Error(t, err)
}

func TestLoadInvalidEntries(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/bad.json", []byte(`[
		{"name":"badhex","bytes":"zz"},
		{"name":"badmask","bytes":"c3","mask":"ffff"},
		{"bytes":"c3"},
		{"name":"ok","bytes":"c3"}
	]`), 0644))

	sigs, stats, err := Load(fs, "/bad.json", zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Invalid)
	require.Len(t, sigs, 1)
	assert.Equal(t, []byte{0xff}, sigs[0].Mask)
}

func TestIndexMask(t *testing.T) {
	idx := NewIndex([]Signature{
		{Name: "call_then_ret", Bytes: []byte{0xe8, 0x11, 0x22, 0x33, 0x44, 0xc3}, Mask: []byte{0xff, 0, 0, 0, 0, 0xff}},
	})

	assert.True(t, idx.Has(6))
	assert.False(t, idx.Has(5))
	assert.Equal(t, []string{"call_then_ret"}, idx.Lookup([]byte{0xe8, 0xaa, 0xbb, 0xcc, 0xdd, 0xc3}))
	assert.Empty(t, idx.Lookup([]byte{0xe9, 0xaa, 0xbb, 0xcc, 0xdd, 0xc3}))
}

func TestRenameRecognizedCode(t *testing.T) {
	e := enginetest.New(map[string]string{
		"aflj": `[
			{"addr":4198400,"name":"fcn.00401000","size":6},
			{"addr":4198416,"name":"fcn.00401010","size":6},
			{"addr":4198432,"name":"fcn.00401020","size":3},
			{"addr":4198448,"name":"fcn.00401030","size":40},
			{"addr":4198528,"name":"memcpy","size":6}
		]`,
		"p8 6 @ 0x401000": "5589e58b4508\n",
		"p8 6 @ 0x401010": "e8aabbccddc3\n",
		"p8 3 @ 0x401020": "31c0c3\n",
		"p8 6 @ 0x401080": "5589e58b4508\n",
	})

	r := NewRenamer(e.Opener(), zerolog.Nop(), WithFs(sigFs(t)))
	renames, n, err := r.RenameRecognizedCode("/sigs")
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	require.Len(t, renames, 2)
	assert.Equal(t, uint64(0x401000), renames[0].Addr)
	assert.Equal(t, "memcpy", renames[0].New)
	assert.Equal(t, KindSignature, renames[0].Kind)
	assert.Equal(t, "call_then_ret", renames[1].New)

	assert.Equal(t, []string{
		"aflj",
		"p8 6 @ 0x401000", "s 0x401000", "afn memcpy",
		"p8 6 @ 0x401010", "s 0x401010", "afn call_then_ret",
		"p8 3 @ 0x401020",
		"p8 6 @ 0x401080",
	}, e.Commands)
	assert.Equal(t, 1, e.Opens)
	assert.Equal(t, 1, e.Closes)
}

func TestRenameRecognizedCodeDryRun(t *testing.T) {
	e := enginetest.New(map[string]string{
		"aflj":            `[{"addr":4198400,"name":"fcn.00401000","size":6}]`,
		"p8 6 @ 0x401000": "5589e58b4508",
	})

	r := NewRenamer(e.Opener(), zerolog.Nop(), WithFs(sigFs(t)), WithDryRun(true))
	renames, _, err := r.RenameRecognizedCode("/sigs")
	require.NoError(t, err)

	require.Len(t, renames, 1)
	assert.Empty(t, e.WithPrefix("s "))
	assert.Empty(t, e.WithPrefix("afn "))
}

func TestRenameRecognizedCodeEmptyPath(t *testing.T) {
	e := enginetest.New(nil)

	renames, n, err := NewRenamer(e.Opener(), zerolog.Nop()).RenameRecognizedCode("")
	require.NoError(t, err)
	assert.Nil(t, renames)
	assert.Zero(t, n)
	assert.Zero(t, e.Opens)
}

func TestRenameRecognizedCodeNoBytesSigs(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/refs.json", []byte(`[{"name":"x","refs":["a"]}]`), 0644))
	e := enginetest.New(nil)

	renames, _, err := NewRenamer(e.Opener(), zerolog.Nop(), WithFs(fs)).RenameRecognizedCode("/refs.json")
	require.NoError(t, err)
	assert.Empty(t, renames)
	assert.Zero(t, e.Opens)
}
