// Package snapshot turns a directory tree into one deterministic, text-safe
// Markdown document. Discovery produces an ordered candidate list; each
// candidate then passes, in order, through the budget gate, the content
// extractor, and the assembler. Processing is deliberately single-threaded
// so the document order always equals the discovery order.
package snapshot

import (
	"fmt"
	"os"

	"go.uber.org/zap"

	"ctxsnap/pkg/config"
)

// Run executes one complete snapshot: discovery, per-candidate processing
// in sorted order, and finalization. opts.Root must be canonicalized; the
// configuration is trusted as supplied.
func Run(opts Options, cfg *config.Config, logger *zap.Logger) (Stats, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	files, accessErrors := Discover(opts.Root, cfg, logger)
	fmt.Fprintf(os.Stderr, "Found:    %d files\n", len(files))
	logger.Debug("Discovery finished",
		zap.String("root", CleanPath(opts.Root)),
		zap.Int("candidates", len(files)))

	writer := NewWriter(opts.Root, logger)
	defer writer.Close()

	gate := newBudgetGate(cfg.MaxTotalMB * 1024 * 1024)

	for _, path := range files {
		result := classify(path, cfg, gate)
		if inc, ok := result.(Included); ok {
			gate.Commit(inc.Size)
		}
		if err := writer.Add(result); err != nil {
			return Stats{}, err
		}
	}

	return writer.Finalize(opts, accessErrors)
}

// classify runs one candidate through the budget gate and the extractor,
// yielding exactly one FileResult.
func classify(path string, cfg *config.Config, gate *budgetGate) FileResult {
	info, err := os.Stat(path)
	if err != nil {
		return Omitted{Path: path, Reason: "Metadata error: " + err.Error(), Size: 0}
	}

	// The gate rejects on the stat size without reading the file at all.
	if !gate.Admit(info.Size()) {
		return Omitted{
			Path:   path,
			Reason: fmt.Sprintf("Budget exceeded (limit=%d MB)", cfg.MaxTotalMB),
			Size:   info.Size(),
		}
	}

	return Extract(path, cfg)
}
