package snapshot

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"go.uber.org/zap"
)

// ignorePattern is one compiled line of an ignore file.
type ignorePattern struct {
	re     *regexp.Regexp
	negate bool
	line   string
}

// patternGroup holds the patterns of a single ignore file, scoped to the
// directory that contains it (slash-form path relative to the walk root,
// empty for the root itself).
type patternGroup struct {
	base     string
	patterns []*ignorePattern
}

// IgnoreMatcher applies gitignore-style rules collected from the ignore
// files encountered during a walk. Patterns match relative to the directory
// of the file that declared them; the last matching pattern wins, so a
// negated pattern can re-include a previously ignored path.
type IgnoreMatcher struct {
	groups []patternGroup
	logger *zap.Logger
}

// NewIgnoreMatcher returns an empty matcher.
func NewIgnoreMatcher(logger *zap.Logger) *IgnoreMatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IgnoreMatcher{logger: logger}
}

// AddFile compiles the ignore file at path into a group scoped at base.
// A missing file is not an error.
func (m *IgnoreMatcher) AddFile(path, base string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	m.AddLines(base, strings.Split(string(content), "\n")...)
	m.logger.Debug("Loaded ignore file", zap.String("path", path), zap.String("base", base))
	return nil
}

// AddLines compiles raw pattern lines into a group scoped at base.
func (m *IgnoreMatcher) AddLines(base string, lines ...string) {
	base = filepath.ToSlash(base)
	if base == "." {
		base = ""
	}

	var patterns []*ignorePattern
	for _, line := range lines {
		re, negate := compilePatternLine(line)
		if re == nil {
			continue
		}
		patterns = append(patterns, &ignorePattern{re: re, negate: negate, line: line})
	}
	if len(patterns) == 0 {
		return
	}
	m.groups = append(m.groups, patternGroup{base: base, patterns: patterns})
}

// Match reports whether the slash-form path relative to the walk root is
// ignored. Directories must be flagged so that trailing-slash patterns
// apply to them.
func (m *IgnoreMatcher) Match(relPath string, isDir bool) bool {
	relPath = filepath.ToSlash(relPath)
	if isDir && !strings.HasSuffix(relPath, "/") {
		relPath += "/"
	}

	matched := false
	for _, group := range m.groups {
		sub := relPath
		if group.base != "" {
			prefix := group.base + "/"
			if !strings.HasPrefix(relPath, prefix) {
				continue
			}
			sub = strings.TrimPrefix(relPath, prefix)
		}
		for _, p := range group.patterns {
			if p.re.MatchString(sub) {
				matched = !p.negate
			}
		}
	}
	return matched
}
