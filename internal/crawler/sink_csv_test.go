package crawler

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutputDir(t *testing.T) {
	t.Parallel()

	work := t.TempDir()
	tests := map[string]string{
		"shop.example":      "shop.example",
		"shop.example:8080": "shop.example_8080",
		"../../etc":         "_.._etc",
		"..":                "scraped_data",
		"":                  "scraped_data",
		"a/b\\c d":          "a_b_c_d",
		".hidden.example":   "hidden.example",
	}
	for host, want := range tests {
		dir, err := OutputDir(work, host)
		require.NoError(t, err, host)
		assert.Equal(t, filepath.Join(work, want), dir, host)

		rel, err := filepath.Rel(work, dir)
		require.NoError(t, err)
		assert.False(t, strings.HasPrefix(rel, ".."), host)
	}
}

func TestSanitizeCSVValue(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"":           "",
		"plain":      "plain",
		"=SUM(1,1)":  "'=SUM(1,1)",
		"+1234":      "'+1234",
		"-2+3":       "'-2+3",
		"@cmd":       "'@cmd",
		"\tindented": "'\tindented",
		"\rreturn":   "'\rreturn",
		"a=b":        "a=b",
	}
	for in, want := range tests {
		assert.Equal(t, want, SanitizeCSVValue(in), "input %q", in)
	}
}

func TestCSVSink_WritesBOMHeaderAndSanitizedRows(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "shop.example")
	sink, err := NewCSVSink(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, OutputFileName), sink.Path())

	require.NoError(t, sink.Write(Row{URL: "http://shop.example/a", Content: "=SUM(1,1)", ChunkNumber: 1}))
	require.NoError(t, sink.Write(Row{URL: "http://shop.example/a", Content: "line one\nline, \"two\"", ChunkNumber: 2}))
	assert.Equal(t, 2, sink.Rows())
	require.NoError(t, sink.Close())

	raw, err := os.ReadFile(sink.Path())
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(string(raw), utf8BOM))

	records, err := csv.NewReader(strings.NewReader(strings.TrimPrefix(string(raw), utf8BOM))).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"URL", "Content", "Chunk Number"},
		{"http://shop.example/a", "'=SUM(1,1)", "1"},
		{"http://shop.example/a", "line one\nline, \"two\"", "2"},
	}, records)

	info, err := os.Stat(sink.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestCSVSink_EmptyRunStillHasHeader(t *testing.T) {
	t.Parallel()

	sink, err := NewCSVSink(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, sink.Close())

	raw, err := os.ReadFile(sink.Path())
	require.NoError(t, err)
	assert.Equal(t, utf8BOM+"URL,Content,Chunk Number\n", string(raw))
}

func TestCSVSink_TruncatesPreviousRun(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	first, err := NewCSVSink(dir)
	require.NoError(t, err)
	require.NoError(t, first.Write(Row{URL: "u", Content: "old", ChunkNumber: 1}))
	require.NoError(t, first.Close())

	second, err := NewCSVSink(dir)
	require.NoError(t, err)
	require.NoError(t, second.Close())

	raw, err := os.ReadFile(second.Path())
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "old")
}
