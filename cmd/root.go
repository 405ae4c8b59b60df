package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ctxsnap/pkg/config"
	"ctxsnap/pkg/logging"
	"ctxsnap/pkg/snapshot"
	"ctxsnap/pkg/version"
)

var logger *zap.Logger

type rootFlags struct {
	run              bool
	dryRun           bool
	force            bool
	initConfig       bool
	verbose          bool
	output           string
	maxFileMB        int64
	maxTotalMB       int64
	depth            int
	noGitignore      bool
	includeLockfiles bool
	removeComments   bool
	excludeExt       []string
	excludeDir       []string
	excludeFile      []string
}

var flags rootFlags

// RootCmd is the base command; invoking it runs the snapshot itself.
var RootCmd = &cobra.Command{
	Use:   "ctxsnap [root]",
	Short: "ctxsnap concatenates project files into a single Markdown snapshot",
	Long: `ctxsnap walks a directory tree, filters out binaries, secrets and
oversized files, and assembles the remaining text into one deterministic
Markdown document suitable for feeding a whole project to an LLM.`,
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runSnapshot,
}

func init() {
	f := RootCmd.Flags()
	f.BoolVarP(&flags.run, "run", "r", false, "Actually generate the snapshot")
	f.BoolVar(&flags.dryRun, "dry-run", false, "Print the snapshot to stdout instead of writing a file")
	f.StringVarP(&flags.output, "output", "o", "", "Explicit output file path")
	f.BoolVar(&flags.force, "force", false, "Overwrite the output file if it already exists")
	f.Int64Var(&flags.maxFileMB, "max-file-mb", 0, "Maximum size per file in MB; larger files are omitted")
	f.Int64Var(&flags.maxTotalMB, "max-total-mb", 0, "Maximum total size of included content in MB")
	f.IntVar(&flags.depth, "depth", 0, "Maximum directory depth to scan")
	f.BoolVar(&flags.noGitignore, "no-gitignore", false, "Do not honor .gitignore files")
	f.BoolVar(&flags.includeLockfiles, "include-lockfiles", false, "Include dependency lock files")
	f.BoolVar(&flags.removeComments, "remove-comments", false, "Remove comments from supported file types")
	f.StringSliceVar(&flags.excludeExt, "exclude-ext", nil, "Additional file extensions to exclude")
	f.StringSliceVar(&flags.excludeDir, "exclude-dir", nil, "Additional directory names to exclude")
	f.StringSliceVar(&flags.excludeFile, "exclude-file", nil, "Additional file names to exclude")
	f.BoolVar(&flags.initConfig, "init", false, "Write the resolved config as "+config.LocalFileName+" at the root")
	f.BoolVarP(&flags.verbose, "verbose", "v", false, "Enable debug logging")
}

// Execute wires the supplied logger into the command tree and runs it.
func Execute(l *zap.Logger) error {
	logger = l
	return RootCmd.Execute()
}

func runSnapshot(cmd *cobra.Command, args []string) error {
	start := time.Now()

	if flags.verbose {
		if l, err := logging.Setup(true, "ctxsnap", version.Get().Version); err == nil {
			logger = l
		}
	}

	if err := validateFlags(cmd); err != nil {
		return err
	}

	rootArg := "."
	if len(args) > 0 {
		rootArg = args[0]
	}

	// Canonicalize once; everything downstream assumes a resolved root.
	root, err := filepath.Abs(rootArg)
	if err == nil {
		root, err = filepath.EvalSymlinks(root)
	}
	if err != nil {
		return fmt.Errorf("failed to canonicalize root %s: %w", rootArg, err)
	}

	cfg, err := resolveConfig(cmd, root)
	if err != nil {
		return err
	}

	if flags.initConfig {
		if err := cfg.SaveLocal(root); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Initialized local config: %s/%s\n",
			snapshot.CleanPath(root), config.LocalFileName)
		return nil
	}

	if !flags.run && !flags.dryRun {
		if err := cmd.Help(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "\nUse --run or -r to generate the snapshot, or --dry-run to preview.")
		return nil
	}

	fmt.Fprintf(os.Stderr, "Scanning: %s\n", snapshot.CleanPath(root))

	stats, err := snapshot.Run(snapshot.Options{
		Root:   root,
		Output: flags.output,
		DryRun: flags.dryRun,
		Force:  flags.force,
	}, cfg, logger)
	if err != nil {
		return err
	}

	printReport(stats, time.Since(start))
	return nil
}

// validateFlags bounds-checks the numeric flags, but only the ones the user
// actually set: the zero default is a "not given" marker, not a valid value.
func validateFlags(cmd *cobra.Command) error {
	f := cmd.Flags()
	if f.Changed("max-file-mb") && (flags.maxFileMB < 1 || flags.maxFileMB > 1024) {
		return fmt.Errorf("max-file-mb must be between 1 and 1024")
	}
	if f.Changed("max-total-mb") && (flags.maxTotalMB < 1 || flags.maxTotalMB > 10240) {
		return fmt.Errorf("max-total-mb must be between 1 and 10240")
	}
	if f.Changed("depth") && (flags.depth < 1 || flags.depth > 999) {
		return fmt.Errorf("depth must be between 1 and 999")
	}
	return nil
}

// resolveConfig layers the configuration sources: built-in defaults, the
// global file, a local file when present, then CLI overrides. The snapshot
// core receives the merged result and never re-reads any of them.
func resolveConfig(cmd *cobra.Command, root string) (*config.Config, error) {
	cfg, err := config.LoadGlobal(logger)
	if err != nil {
		return nil, err
	}

	local, err := config.LoadLocal(root)
	if err != nil {
		return nil, err
	}
	if local != nil {
		cfg = local
		logger.Debug("Using local config", zap.String("root", root))
	}

	if cmd.Flags().Changed("max-file-mb") {
		cfg.MaxFileMB = flags.maxFileMB
	}
	if cmd.Flags().Changed("max-total-mb") {
		cfg.MaxTotalMB = flags.maxTotalMB
	}
	if cmd.Flags().Changed("depth") {
		cfg.Depth = flags.depth
	}
	if flags.removeComments {
		cfg.RemoveComments = true
	}
	if flags.includeLockfiles {
		cfg.IncludeLockfiles = true
	}
	if flags.noGitignore {
		cfg.UseGitignore = false
	}
	cfg.ExcludeExt = append(cfg.ExcludeExt, flags.excludeExt...)
	cfg.ExcludeDir = append(cfg.ExcludeDir, flags.excludeDir...)
	cfg.ExcludeFile = append(cfg.ExcludeFile, flags.excludeFile...)

	return cfg, nil
}

// printReport writes the human-readable run summary to stderr. The Markdown
// document is the machine artifact; this is for the person running the tool.
func printReport(stats snapshot.Stats, elapsed time.Duration) {
	fmt.Fprintln(os.Stderr, "\n--- Snapshot Summary ---")
	if stats.OutputPath != "" {
		fmt.Fprintf(os.Stderr, "Output:   %s\n", snapshot.CleanPath(stats.OutputPath))
	} else {
		fmt.Fprintln(os.Stderr, "Output:   (Dry Run - Stdout)")
	}
	fmt.Fprintf(os.Stderr, "Stats:    %d included, %d omitted\n", stats.FilesIncluded, stats.FilesOmitted)
	fmt.Fprintf(os.Stderr, "Content:  %.2f MB (%d lines)\n",
		float64(stats.TotalBytes)/1024.0/1024.0, stats.TotalLines)

	if len(stats.ByExtension) > 0 {
		fmt.Fprintln(os.Stderr, "\nComposition by Type:")
		table := tablewriter.NewWriter(os.Stderr)
		table.SetHeader([]string{"Extension", "Files", "Size (MB)"})
		table.SetBorder(false)
		table.SetCenterSeparator("")
		table.SetColumnAlignment([]int{tablewriter.ALIGN_LEFT, tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_RIGHT})
		for _, row := range stats.Composition() {
			table.Append([]string{
				"." + row.Ext,
				fmt.Sprintf("%d", row.Files),
				fmt.Sprintf("%.2f", float64(row.Bytes)/1024.0/1024.0),
			})
		}
		table.Render()
	}

	if len(stats.TopOffenders) > 0 {
		fmt.Fprintln(os.Stderr, "\nTop 5 Largest Files:")
		for _, f := range stats.TopOffenders {
			fmt.Fprintf(os.Stderr, "  %10.2f MB  %s\n", float64(f.Size)/1024.0/1024.0, f.Path)
		}
	}

	if len(stats.AccessErrors) > 0 {
		fmt.Fprintf(os.Stderr, "\nErrors:   %d access errors\n", len(stats.AccessErrors))
	}

	fmt.Fprintf(os.Stderr, "\nTime:     %.3fs\n", elapsed.Seconds())
	fmt.Fprintln(os.Stderr, "------------------------")
}
