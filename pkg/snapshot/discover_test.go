package snapshot

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ctxsnap/pkg/config"
)

func testConfig() *config.Config {
	return &config.Config{
		MaxFileMB:  10,
		MaxTotalMB: 200,
		Depth:      50,
	}
}

func testRoot(t *testing.T) string {
	t.Helper()
	root, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	return root
}

func writeFile(t *testing.T, root string, rel string, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func relPaths(root string, files []string) []string {
	rels := make([]string, 0, len(files))
	for _, f := range files {
		rels = append(rels, relPath(root, f))
	}
	return rels
}

func TestDiscoverSortOrderAndDeterminism(t *testing.T) {
	root := testRoot(t)
	writeFile(t, root, "z.txt", "z")
	writeFile(t, root, "a.txt", "a")
	writeFile(t, root, "subdir/m.txt", "m")

	files, errs := Discover(root, testConfig(), zap.NewNop())
	require.Empty(t, errs)
	assert.Equal(t, []string{"a.txt", "subdir/m.txt", "z.txt"}, relPaths(root, files))

	again, _ := Discover(root, testConfig(), zap.NewNop())
	assert.Equal(t, files, again)
}

func TestDiscoverPrunesConfiguredDirsCaseInsensitively(t *testing.T) {
	root := testRoot(t)
	writeFile(t, root, "keep.txt", "x")
	writeFile(t, root, "NODE_MODULES/dep/index.js", "x")

	cfg := testConfig()
	cfg.ExcludeDir = []string{"node_modules"}

	files, _ := Discover(root, cfg, zap.NewNop())
	assert.Equal(t, []string{"keep.txt"}, relPaths(root, files))
}

func TestDiscoverPrunesSensitiveDirsUnconditionally(t *testing.T) {
	root := testRoot(t)
	writeFile(t, root, "keep.txt", "x")
	writeFile(t, root, ".ssh/id_rsa", "secret")
	writeFile(t, root, ".aws/credentials", "secret")

	// No configured exclusions at all; the absolute list still applies.
	files, _ := Discover(root, testConfig(), zap.NewNop())
	assert.Equal(t, []string{"keep.txt"}, relPaths(root, files))
}

func TestDiscoverNeverPrunesTheRootItself(t *testing.T) {
	parent := testRoot(t)
	root := filepath.Join(parent, ".git")
	require.NoError(t, os.Mkdir(root, 0o755))
	writeFile(t, root, "inner.txt", "x")

	files, _ := Discover(root, testConfig(), zap.NewNop())
	assert.Equal(t, []string{"inner.txt"}, relPaths(root, files))
}

func TestDiscoverExcludesOwnOutputsAndConfig(t *testing.T) {
	root := testRoot(t)
	writeFile(t, root, "merged_20240101_123456.md", "old snapshot")
	writeFile(t, root, "merged_notes.md", "not a snapshot")
	writeFile(t, root, ".ctxsnap.yaml", "depth: 3")
	writeFile(t, root, "keep.txt", "x")

	files, _ := Discover(root, testConfig(), zap.NewNop())
	assert.Equal(t, []string{"keep.txt", "merged_notes.md"}, relPaths(root, files))
}

func TestDiscoverLockfileToggle(t *testing.T) {
	root := testRoot(t)
	writeFile(t, root, "package-lock.json", "{}")
	writeFile(t, root, "go.sum", "")
	writeFile(t, root, "main.go", "package main")

	cfg := testConfig()
	files, _ := Discover(root, cfg, zap.NewNop())
	assert.Equal(t, []string{"main.go"}, relPaths(root, files))

	cfg.IncludeLockfiles = true
	files, _ = Discover(root, cfg, zap.NewNop())
	assert.Equal(t, []string{"go.sum", "main.go", "package-lock.json"}, relPaths(root, files))
}

func TestDiscoverSecretPrefixAllowlist(t *testing.T) {
	root := testRoot(t)
	writeFile(t, root, ".env", "SECRET=1")
	writeFile(t, root, ".env.local", "SECRET=1")
	writeFile(t, root, ".env.production", "SECRET=1")
	writeFile(t, root, ".env.example", "SECRET=")
	writeFile(t, root, ".env.sample", "SECRET=")
	writeFile(t, root, ".env.template", "SECRET=")
	writeFile(t, root, ".envrc", "use nix")

	files, _ := Discover(root, testConfig(), zap.NewNop())
	assert.Equal(t,
		[]string{".env.example", ".env.sample", ".env.template", ".envrc"},
		relPaths(root, files))
}

func TestDiscoverConfiguredNameAndExtensionCaseInsensitive(t *testing.T) {
	root := testRoot(t)
	writeFile(t, root, "thumbs.DB", "x")
	writeFile(t, root, "logo.PNG", "x")
	writeFile(t, root, "readme.md", "x")

	cfg := testConfig()
	cfg.ExcludeFile = []string{"Thumbs.db"}
	cfg.ExcludeExt = []string{"png"}

	files, _ := Discover(root, cfg, zap.NewNop())
	assert.Equal(t, []string{"readme.md"}, relPaths(root, files))
}

func TestDiscoverDepthBound(t *testing.T) {
	root := testRoot(t)
	writeFile(t, root, "top.txt", "x")
	writeFile(t, root, "one/mid.txt", "x")
	writeFile(t, root, "one/two/deep.txt", "x")

	cfg := testConfig()
	cfg.Depth = 2

	files, _ := Discover(root, cfg, zap.NewNop())
	assert.Equal(t, []string{"one/mid.txt", "top.txt"}, relPaths(root, files))
}

func TestDiscoverSkipsSymlinks(t *testing.T) {
	root := testRoot(t)
	writeFile(t, root, "real.txt", "content")
	if err := os.Symlink(filepath.Join(root, "real.txt"), filepath.Join(root, "link.txt")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	files, _ := Discover(root, testConfig(), zap.NewNop())
	assert.Equal(t, []string{"real.txt"}, relPaths(root, files))
}

func TestDiscoverHonorsGitignoreWhenEnabled(t *testing.T) {
	root := testRoot(t)
	writeFile(t, root, ".gitignore", "*.log\n")
	writeFile(t, root, "app.log", "x")
	writeFile(t, root, "app.txt", "x")

	cfg := testConfig()
	cfg.UseGitignore = true
	files, _ := Discover(root, cfg, zap.NewNop())
	assert.Equal(t, []string{".gitignore", "app.txt"}, relPaths(root, files))

	cfg.UseGitignore = false
	files, _ = Discover(root, cfg, zap.NewNop())
	assert.Equal(t, []string{".gitignore", "app.log", "app.txt"}, relPaths(root, files))
}

func TestDiscoverNestedGitignoreScopedToItsDirectory(t *testing.T) {
	root := testRoot(t)
	writeFile(t, root, "local.txt", "kept at root")
	writeFile(t, root, "sub/.gitignore", "local.txt\n")
	writeFile(t, root, "sub/local.txt", "ignored")
	writeFile(t, root, "sub/other.txt", "kept")

	cfg := testConfig()
	cfg.UseGitignore = true

	files, _ := Discover(root, cfg, zap.NewNop())
	assert.Equal(t, []string{"local.txt", "sub/.gitignore", "sub/other.txt"}, relPaths(root, files))
}

func TestDiscoverCollectsAccessErrors(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("running as root; permission errors cannot be provoked")
	}
	root := testRoot(t)
	writeFile(t, root, "ok.txt", "x")
	locked := filepath.Join(root, "locked")
	require.NoError(t, os.Mkdir(locked, 0o000))
	t.Cleanup(func() { _ = os.Chmod(locked, 0o755) })

	files, errs := Discover(root, testConfig(), zap.NewNop())
	assert.Equal(t, []string{"ok.txt"}, relPaths(root, files))
	assert.NotEmpty(t, errs)
}
