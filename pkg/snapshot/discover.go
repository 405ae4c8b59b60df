package snapshot

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"

	"ctxsnap/pkg/config"
)

// snapshotOutputPattern matches the tool's own timestamped output files,
// which are always excluded so a snapshot never swallows a previous one.
var snapshotOutputPattern = regexp.MustCompile(`^merged_\d{8}_\d{6}\.md$`)

// absoluteExcludedDirs are sensitive directory names that are pruned
// regardless of configuration. Deliberately not overridable: a permissive
// config must not be able to leak version-control metadata or credentials.
var absoluteExcludedDirs = map[string]struct{}{
	".git":    {},
	".ssh":    {},
	".aws":    {},
	".gnupg":  {},
	".kube":   {},
	".cargo":  {},
	".rustup": {},
}

// lockfileNames are well-known dependency lock files, excluded unless the
// configuration explicitly includes them.
var lockfileNames = map[string]struct{}{
	"Cargo.lock":        {},
	"package-lock.json": {},
	"yarn.lock":         {},
	"pnpm-lock.yaml":    {},
	"Gemfile.lock":      {},
	"poetry.lock":       {},
	"go.sum":            {},
}

// Discover walks the tree under root and returns the candidate files in
// deterministic order, together with any access errors collected along the
// way. Root must already be canonicalized. Symbolic links are never
// followed and never become candidates.
func Discover(root string, cfg *config.Config, logger *zap.Logger) ([]string, []string) {
	excludeDirs := lowercaseSet(cfg.ExcludeDir)
	excludeFiles := lowercaseSet(cfg.ExcludeFile)
	excludeExts := lowercaseSet(cfg.ExcludeExt)

	matcher := NewIgnoreMatcher(logger)

	var files []string
	var accessErrors []string

	// WalkDir's error contract fits the collect-and-continue model: a
	// callback error would abort the walk, so errors are recorded instead.
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			accessErrors = append(accessErrors, fmt.Sprintf("%s: %v", CleanPath(path), err))
			logger.Warn("Error accessing path", zap.String("path", path), zap.Error(err))
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			accessErrors = append(accessErrors, fmt.Sprintf("%s: %v", CleanPath(path), relErr))
			return nil
		}
		relSlash := filepath.ToSlash(rel)

		if d.IsDir() {
			// The root itself is never pruned, whatever its name.
			if rel != "." {
				nameLower := strings.ToLower(d.Name())
				if _, ok := excludeDirs[nameLower]; ok {
					logger.Debug("Skipping excluded directory", zap.String("path", path))
					return fs.SkipDir
				}
				if _, ok := absoluteExcludedDirs[nameLower]; ok {
					logger.Debug("Skipping sensitive directory", zap.String("path", path))
					return fs.SkipDir
				}
				if cfg.UseGitignore && matcher.Match(relSlash, true) {
					logger.Debug("Skipping gitignored directory", zap.String("path", path))
					return fs.SkipDir
				}
				if entryDepth(relSlash) >= cfg.Depth {
					// Children would exceed the configured depth.
					return fs.SkipDir
				}
			}
			if cfg.UseGitignore {
				base := relSlash
				if rel == "." {
					base = ""
				}
				if err := matcher.AddFile(filepath.Join(path, ".gitignore"), base); err != nil {
					logger.Warn("Failed to read ignore file",
						zap.String("dir", path), zap.Error(err))
				}
			}
			return nil
		}

		// Symlinks are treated as excluded: not traversed, not read.
		if d.Type()&fs.ModeSymlink != 0 {
			return nil
		}

		if cfg.UseGitignore && matcher.Match(relSlash, false) {
			return nil
		}
		if excluded(d.Name(), cfg, excludeFiles, excludeExts) {
			return nil
		}

		files = append(files, path)
		return nil
	})

	// Sole sort key for determinism: the cleaned relative path.
	sort.Slice(files, func(i, j int) bool {
		return relPath(root, files[i]) < relPath(root, files[j])
	})

	logger.Debug("Discovery complete",
		zap.Int("files", len(files)),
		zap.Int("accessErrors", len(accessErrors)))

	return files, accessErrors
}

// excluded applies the per-file exclusion rules in their fixed order;
// the first matching rule wins.
func excluded(name string, cfg *config.Config, excludeFiles, excludeExts map[string]struct{}) bool {
	nameLower := strings.ToLower(name)

	// 1. Own outputs and configuration, regardless of user configuration.
	if snapshotOutputPattern.MatchString(name) ||
		nameLower == config.LocalFileName || nameLower == config.GlobalFileName {
		return true
	}

	// 2. Dependency lock files.
	if !cfg.IncludeLockfiles {
		if _, ok := lockfileNames[name]; ok {
			return true
		}
	}

	// 3. Configured file names.
	if _, ok := excludeFiles[nameLower]; ok {
		return true
	}

	// 4. Secret-like env files, unless explicitly marked as a template.
	if strings.HasPrefix(nameLower, ".env") &&
		!strings.HasSuffix(nameLower, ".example") &&
		!strings.HasSuffix(nameLower, ".sample") &&
		!strings.HasSuffix(nameLower, ".template") &&
		nameLower != ".envrc" {
		return true
	}

	// 5. Configured extensions.
	if ext := strings.ToLower(extOf(name)); ext != "" {
		if _, ok := excludeExts[ext]; ok {
			return true
		}
	}

	return false
}

// entryDepth is the depth of a slash-form relative path, with entries
// directly under the root at depth 1.
func entryDepth(relSlash string) int {
	return strings.Count(relSlash, "/") + 1
}

func lowercaseSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[strings.ToLower(v)] = struct{}{}
	}
	return set
}
