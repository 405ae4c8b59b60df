package snapshot

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Writer consumes FileResults in discovery order and renders the final
// snapshot document. Body content goes straight into a spill-capable buffer
// so peak memory stays independent of snapshot size; everything else it
// tracks is small aggregate state.
type Writer struct {
	body          *spoolBuffer
	includedPaths []string // cleaned relative paths, in arrival order
	omitted       []OmittedEntry
	totalBytes    int64
	totalLines    int
	byExtension   map[string]ExtStat
	topOffenders  []FileSize

	root          string
	timestamp     string
	timestampFile string
	logger        *zap.Logger
}

// NewWriter returns a Writer rooted at the canonicalized scan root.
func NewWriter(root string, logger *zap.Logger) *Writer {
	if logger == nil {
		logger = zap.NewNop()
	}
	now := time.Now()
	return &Writer{
		body:          newSpoolBuffer(spoolThreshold),
		byExtension:   make(map[string]ExtStat),
		root:          root,
		timestamp:     now.Format("2006-01-02 15:04:05"),
		timestampFile: now.Format("20060102_150405"),
		logger:        logger,
	}
}

// Add records one FileResult. Included results are written to the body
// buffer immediately; omitted results only land in the report table.
func (w *Writer) Add(result FileResult) error {
	switch r := result.(type) {
	case Included:
		rel := relPath(w.root, r.Path)

		ext := extOf(r.Path)
		if ext == "" {
			ext = "(no-ext)"
		}
		stat := w.byExtension[ext]
		stat.Files++
		stat.Bytes += r.Size
		w.byExtension[ext] = stat

		// Sorted and truncated only at finalize; never reorders the body.
		w.topOffenders = append(w.topOffenders, FileSize{Path: rel, Size: r.Size})

		if err := w.writeFileSection(rel, extOf(r.Path), r.Content); err != nil {
			return err
		}
		w.includedPaths = append(w.includedPaths, rel)
		w.totalBytes += r.Size
		w.totalLines += countLines(r.Content)
	case Omitted:
		w.omitted = append(w.omitted, OmittedEntry{
			Path:   relPath(w.root, r.Path),
			Reason: r.Reason,
			Size:   r.Size,
		})
	}
	return nil
}

// writeFileSection appends one document section: heading, fenced body with
// a guaranteed trailing newline, closing fence.
func (w *Writer) writeFileSection(rel, ext, content string) error {
	fence := fenceFor(content)

	if _, err := fmt.Fprintf(w.body, "## %s\n\n", rel); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w.body, "%s%s\n", fence, ext); err != nil {
		return err
	}
	if _, err := io.WriteString(w.body, content); err != nil {
		return err
	}
	if !strings.HasSuffix(content, "\n") {
		if _, err := io.WriteString(w.body, "\n"); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(w.body, "%s\n\n", fence); err != nil {
		return err
	}
	return nil
}

// fenceFor returns a backtick fence one longer than the longest backtick
// run inside content, with a minimum of three, so the fence can never
// collide with the content.
func fenceFor(content string) string {
	maxRun, run := 0, 0
	for _, r := range content {
		if r == '`' {
			run++
			if run > maxRun {
				maxRun = run
			}
		} else {
			run = 0
		}
	}
	length := maxRun + 1
	if length < 3 {
		length = 3
	}
	return strings.Repeat("`", length)
}

// Finalize renders the complete document to its destination and returns the
// run statistics. The fixed section order is header, table of contents,
// bodies, discovery errors, omission table, summary.
func (w *Writer) Finalize(opts Options, discoveryErrors []string) (Stats, error) {
	sort.Slice(w.topOffenders, func(i, j int) bool {
		return w.topOffenders[i].Size > w.topOffenders[j].Size
	})
	if len(w.topOffenders) > 5 {
		w.topOffenders = w.topOffenders[:5]
	}

	var out *bufio.Writer
	var outputPath string
	if opts.DryRun {
		out = bufio.NewWriter(os.Stdout)
	} else {
		outputPath = opts.Output
		if outputPath == "" {
			outputPath = filepath.Join(w.root, "merged_"+w.timestampFile+".md")
		}
		f, err := w.createOutput(outputPath, opts.Force)
		if err != nil {
			return Stats{}, err
		}
		defer f.Close()
		out = bufio.NewWriterSize(f, 64*1024)
	}

	if err := w.render(out, discoveryErrors); err != nil {
		return Stats{}, fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := out.Flush(); err != nil {
		return Stats{}, fmt.Errorf("failed to flush snapshot: %w", err)
	}

	w.logger.Debug("Snapshot finalized",
		zap.String("output", outputPath),
		zap.Int("included", len(w.includedPaths)),
		zap.Int("omitted", len(w.omitted)))

	return Stats{
		OutputPath:    outputPath,
		FilesIncluded: len(w.includedPaths),
		FilesOmitted:  len(w.omitted),
		TotalBytes:    w.totalBytes,
		TotalLines:    w.totalLines,
		ByExtension:   w.byExtension,
		TopOffenders:  w.topOffenders,
		AccessErrors:  discoveryErrors,
	}, nil
}

// createOutput opens the destination file. Without force an existing file
// is a fatal condition, never silently overwritten.
func (w *Writer) createOutput(path string, force bool) (*os.File, error) {
	if force {
		f, err := os.Create(path)
		if err != nil {
			return nil, fmt.Errorf("failed to create output file %s: %w", path, err)
		}
		return f, nil
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return nil, fmt.Errorf("output file exists: %s (use --force)", path)
		}
		return nil, fmt.Errorf("failed to create output file %s: %w", path, err)
	}
	return f, nil
}

func (w *Writer) render(out io.Writer, discoveryErrors []string) error {
	fmt.Fprintf(out, "# Project Snapshot\n\n")
	fmt.Fprintf(out, "**Base path:** `%s`\n", CleanPath(w.root))
	fmt.Fprintf(out, "**Timestamp:** %s\n\n", w.timestamp)

	fmt.Fprintf(out, "## Table of Contents\n\n")
	for _, rel := range w.includedPaths {
		fmt.Fprintf(out, "- %s\n", rel)
	}
	fmt.Fprintln(out)

	if _, err := w.body.WriteTo(out); err != nil {
		return err
	}

	if len(discoveryErrors) > 0 {
		fmt.Fprintf(out, "## Discovery Errors\n\n")
		for _, e := range discoveryErrors {
			fmt.Fprintf(out, "- %s\n", e)
		}
		fmt.Fprintln(out)
	}

	fmt.Fprintf(out, "## Omitted\n\n")
	if len(w.omitted) == 0 {
		fmt.Fprintf(out, "_None._\n\n")
	} else {
		fmt.Fprintf(out, "| Path | Size (MB) | Reason |\n")
		fmt.Fprintf(out, "|---|---:|---|\n")
		for _, o := range w.omitted {
			reason := strings.ReplaceAll(o.Reason, "|", `\|`)
			fmt.Fprintf(out, "| %s | %.2f | %s |\n", o.Path, toMB(o.Size), reason)
		}
		fmt.Fprintln(out)
	}

	fmt.Fprintf(out, "---\n\n")
	fmt.Fprintf(out, "## Summary\n\n")
	fmt.Fprintf(out, "- **Files included:** %d\n", len(w.includedPaths))
	fmt.Fprintf(out, "- **Files omitted:** %d\n", len(w.omitted))
	fmt.Fprintf(out, "- **Total size included:** %.2f MB\n", toMB(w.totalBytes))
	fmt.Fprintf(out, "- **Total lines:** %d\n", w.totalLines)

	fmt.Fprintf(out, "\n### Composition\n\n")
	fmt.Fprintf(out, "| Extension | Files | Size (MB) |\n")
	fmt.Fprintf(out, "|---|---:|---:|\n")
	for _, row := range sortedComposition(w.byExtension) {
		fmt.Fprintf(out, "| .%s | %d | %.2f |\n", row.Ext, row.Files, toMB(row.Bytes))
	}

	return nil
}

// CompositionRow is one extension's aggregate in size-descending order.
type CompositionRow struct {
	Ext   string
	Files int
	Bytes int64
}

// Composition returns the per-extension breakdown sorted by included size
// descending, extension name breaking ties.
func (s Stats) Composition() []CompositionRow {
	return sortedComposition(s.ByExtension)
}

func sortedComposition(byExtension map[string]ExtStat) []CompositionRow {
	rows := make([]CompositionRow, 0, len(byExtension))
	for ext, stat := range byExtension {
		rows = append(rows, CompositionRow{Ext: ext, Files: stat.Files, Bytes: stat.Bytes})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Bytes != rows[j].Bytes {
			return rows[i].Bytes > rows[j].Bytes
		}
		return rows[i].Ext < rows[j].Ext
	})
	return rows
}

// Close releases the body buffer's backing storage.
func (w *Writer) Close() error {
	return w.body.Close()
}

// countLines counts lines the way the document statistics define them: a
// trailing newline does not open a new line.
func countLines(content string) int {
	if content == "" {
		return 0
	}
	n := strings.Count(content, "\n")
	if !strings.HasSuffix(content, "\n") {
		n++
	}
	return n
}

func toMB(bytes int64) float64 {
	return float64(bytes) / 1024.0 / 1024.0
}
