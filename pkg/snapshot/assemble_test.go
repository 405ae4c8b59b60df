package snapshot

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestFenceForMinimumAndGrowth(t *testing.T) {
	assert.Equal(t, "```", fenceFor(""))
	assert.Equal(t, "```", fenceFor("no backticks"))
	assert.Equal(t, "```", fenceFor("a `single` tick"))
	assert.Equal(t, "````", fenceFor("code ``` fence"))
	assert.Equal(t, strings.Repeat("`", 11), fenceFor(strings.Repeat("`", 10)))
	assert.Equal(t, strings.Repeat("`", 111), fenceFor(strings.Repeat("`", 110)))
}

func TestCountLines(t *testing.T) {
	assert.Equal(t, 0, countLines(""))
	assert.Equal(t, 1, countLines("one"))
	assert.Equal(t, 1, countLines("one\n"))
	assert.Equal(t, 2, countLines("one\ntwo"))
	assert.Equal(t, 2, countLines("one\ntwo\n"))
}

func TestSpoolBufferStaysInMemoryBelowThreshold(t *testing.T) {
	s := newSpoolBuffer(64)
	defer s.Close()

	_, err := s.Write([]byte("small"))
	require.NoError(t, err)
	assert.Nil(t, s.file)

	var out bytes.Buffer
	_, err = s.WriteTo(&out)
	require.NoError(t, err)
	assert.Equal(t, "small", out.String())
}

func TestSpoolBufferSpillsToDiskPastThreshold(t *testing.T) {
	s := newSpoolBuffer(16)
	payload := bytes.Repeat([]byte("0123456789"), 10)

	for i := 0; i < 10; i++ {
		_, err := s.Write(payload)
		require.NoError(t, err)
	}
	require.NotNil(t, s.file)
	spillPath := s.file.Name()

	var out bytes.Buffer
	n, err := s.WriteTo(&out)
	require.NoError(t, err)
	assert.Equal(t, int64(len(payload)*10), n)
	assert.Equal(t, bytes.Repeat(payload, 10), out.Bytes())

	require.NoError(t, s.Close())
	_, err = os.Stat(spillPath)
	assert.True(t, os.IsNotExist(err))
}

func TestWriterRendersDocumentGrammar(t *testing.T) {
	root := testRoot(t)
	writer := NewWriter(root, zap.NewNop())
	defer writer.Close()

	require.NoError(t, writer.Add(Included{
		Path:    filepath.Join(root, "a.go"),
		Content: "package a\n",
		Size:    10,
	}))
	require.NoError(t, writer.Add(Included{
		Path:    filepath.Join(root, "sub", "b.md"),
		Content: "has ``` fence",
		Size:    13,
	}))
	require.NoError(t, writer.Add(Omitted{
		Path:   filepath.Join(root, "big.bin"),
		Reason: "Binary | detected",
		Size:   3 * 1024 * 1024,
	}))

	outPath := filepath.Join(root, "out.md")
	stats, err := writer.Finalize(Options{Root: root, Output: outPath}, []string{"locked: permission denied"})
	require.NoError(t, err)
	assert.Equal(t, outPath, stats.OutputPath)
	assert.Equal(t, 2, stats.FilesIncluded)
	assert.Equal(t, 1, stats.FilesOmitted)
	assert.Equal(t, int64(23), stats.TotalBytes)
	assert.Equal(t, 2, stats.TotalLines)

	doc, err := os.ReadFile(outPath)
	require.NoError(t, err)
	text := string(doc)

	assert.True(t, strings.HasPrefix(text, "# Project Snapshot\n"))
	assert.Contains(t, text, "**Base path:** `"+CleanPath(root)+"`\n")
	assert.Contains(t, text, "**Timestamp:** ")

	// TOC lists included files in arrival order.
	toc := strings.Index(text, "## Table of Contents")
	require.GreaterOrEqual(t, toc, 0)
	assert.Less(t, strings.Index(text, "- a.go"), strings.Index(text, "- sub/b.md"))

	// Body sections with fences; backtick content gets a longer fence.
	assert.Contains(t, text, "## a.go\n\n```go\npackage a\n```\n")
	assert.Contains(t, text, "## sub/b.md\n\n````md\nhas ``` fence\n````\n")

	assert.Contains(t, text, "## Discovery Errors\n\n- locked: permission denied\n")

	// Omission table with escaped pipe in the reason.
	assert.Contains(t, text, "| Path | Size (MB) | Reason |")
	assert.Contains(t, text, `| big.bin | 3.00 | Binary \| detected |`)

	assert.Contains(t, text, "- **Files included:** 2\n")
	assert.Contains(t, text, "- **Files omitted:** 1\n")
	assert.Contains(t, text, "### Composition")
	// md carries more bytes than go, so it sorts first.
	assert.Less(t, strings.Index(text, "| .md | 1 |"), strings.Index(text, "| .go | 1 |"))
}

func TestWriterOmittedOnlyDocumentSaysNone(t *testing.T) {
	root := testRoot(t)
	writer := NewWriter(root, zap.NewNop())
	defer writer.Close()

	outPath := filepath.Join(root, "out.md")
	_, err := writer.Finalize(Options{Root: root, Output: outPath}, nil)
	require.NoError(t, err)

	doc, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.Contains(t, string(doc), "## Omitted\n\n_None._\n")
}

func TestWriterRefusesExistingOutputWithoutForce(t *testing.T) {
	root := testRoot(t)
	outPath := filepath.Join(root, "out.md")
	require.NoError(t, os.WriteFile(outPath, []byte("precious"), 0o644))

	writer := NewWriter(root, zap.NewNop())
	defer writer.Close()
	_, err := writer.Finalize(Options{Root: root, Output: outPath}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "use --force")

	// The existing file is untouched.
	data, readErr := os.ReadFile(outPath)
	require.NoError(t, readErr)
	assert.Equal(t, "precious", string(data))

	forced := NewWriter(root, zap.NewNop())
	defer forced.Close()
	_, err = forced.Finalize(Options{Root: root, Output: outPath, Force: true}, nil)
	require.NoError(t, err)
}

func TestWriterTopOffendersSortedAndTruncated(t *testing.T) {
	root := testRoot(t)
	writer := NewWriter(root, zap.NewNop())
	defer writer.Close()

	sizes := []int64{10, 70, 30, 50, 20, 60, 40}
	for i, size := range sizes {
		require.NoError(t, writer.Add(Included{
			Path:    filepath.Join(root, string(rune('a'+i))+".txt"),
			Content: "x",
			Size:    size,
		}))
	}

	stats, err := writer.Finalize(Options{Root: root, Output: filepath.Join(root, "out.md")}, nil)
	require.NoError(t, err)

	require.Len(t, stats.TopOffenders, 5)
	assert.Equal(t, int64(70), stats.TopOffenders[0].Size)
	assert.Equal(t, int64(30), stats.TopOffenders[4].Size)
}
