package snapshot

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"ctxsnap/pkg/config"
)

const (
	// sniffWindow is the fixed leading sample inspected for binary content.
	sniffWindow = 8 * 1024
	// controlCharThreshold is the control-character ratio above which the
	// sniff sample is classified as binary.
	controlCharThreshold = 0.02
	// fallbackControlThreshold is the stricter ratio applied to the full
	// text after a lossy single-byte fallback decode. The cheap sample
	// sniff can pass while the fallback decode reveals noise the sample
	// missed, hence the second check.
	fallbackControlThreshold = 0.01
	// maxStripSize is the ceiling above which comment stripping is skipped
	// and content passes through unmodified.
	maxStripSize = 1024 * 1024
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Extract classifies one candidate and returns exactly one FileResult.
// Every failure mode is local: it becomes an Omitted result, never an error.
func Extract(path string, cfg *config.Config) FileResult {
	info, err := os.Stat(path)
	if err != nil {
		return Omitted{Path: path, Reason: fmt.Sprintf("Failed to read metadata: %v", err), Size: 0}
	}

	size := info.Size()
	maxBytes := cfg.MaxFileMB * 1024 * 1024

	// Static gate on the reported size; nothing is read past this point
	// for oversized files.
	if size > maxBytes {
		return Omitted{
			Path:   path,
			Reason: fmt.Sprintf("Size %d MB exceeds limit of %d MB", size/1024/1024, cfg.MaxFileMB),
			Size:   size,
		}
	}

	if size == 0 {
		return Included{Path: path, Content: "", Size: 0}
	}

	f, err := os.Open(path)
	if err != nil {
		return Omitted{Path: path, Reason: fmt.Sprintf("Failed to open file: %v", err), Size: size}
	}
	defer f.Close()

	// Read one byte past the limit so a file that grew between stat and
	// read is caught instead of silently truncated.
	buf, err := io.ReadAll(io.LimitReader(f, saturatingAdd(maxBytes, 1)))
	if err != nil {
		return Omitted{Path: path, Reason: fmt.Sprintf("Failed to read file: %v", err), Size: size}
	}

	if int64(len(buf)) > maxBytes {
		return Omitted{
			Path:   path,
			Reason: fmt.Sprintf("File content exceeded limit of %d MB (detected during read)", cfg.MaxFileMB),
			Size:   int64(len(buf)),
		}
	}

	sample := buf
	if len(sample) > sniffWindow {
		sample = sample[:sniffWindow]
	}
	if !isMostlyText(sample) {
		return Omitted{Path: path, Reason: "Binary detected", Size: int64(len(buf))}
	}

	var content string
	if utf8.Valid(buf) {
		// A leading byte-order mark is an encoding artifact, not content.
		content = string(bytes.TrimPrefix(buf, utf8BOM))
	} else {
		// Legacy single-byte fallback. The decode itself cannot fail, so
		// text-safety is re-checked on the decoded result instead.
		decoded, _ := charmap.Windows1252.NewDecoder().Bytes(buf)
		content = string(decoded)

		ratio := controlRatio(content)
		if ratio > fallbackControlThreshold {
			return Omitted{
				Path:   path,
				Reason: fmt.Sprintf("Too many control chars: %.2f%%", ratio*100),
				Size:   int64(len(buf)),
			}
		}
	}

	if cfg.RemoveComments && int64(len(buf)) < maxStripSize {
		content = stripComments(content, extOf(path))
	}

	return Included{Path: path, Content: content, Size: int64(len(buf))}
}

// isMostlyText applies the binary heuristics to the sniff sample: any NUL
// byte means binary, otherwise the control-character ratio decides.
func isMostlyText(sample []byte) bool {
	if len(sample) == 0 {
		return true
	}
	if bytes.IndexByte(sample, 0) >= 0 {
		return false
	}

	if utf8.Valid(sample) {
		return controlRatio(string(sample)) < controlCharThreshold
	}

	// Not valid UTF-8; fall back to a byte-level heuristic over the sample.
	control := 0
	for _, b := range sample {
		if b < 0x09 || (b > 0x0D && b < 0x20 && b != 0x1B) || b == 0x7F {
			control++
		}
	}
	return float64(control)/float64(len(sample)) < controlCharThreshold
}

// controlRatio returns the fraction of control characters in s, not
// counting newline, carriage return, and tab.
func controlRatio(s string) float64 {
	total, control := 0, 0
	for _, r := range s {
		total++
		if unicode.IsControl(r) && r != '\n' && r != '\r' && r != '\t' {
			control++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(control) / float64(total)
}
