// main.go
package main

import (
	"os"
	"strings"

	"github.com/apex/log"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"SigMap/config"
	"SigMap/memory"
	"SigMap/offsets"
	"SigMap/output"
	"SigMap/utils"
)

var (
	configPath string
	process    string
	dumpDir    string
	outputDir  string
	formats    []string
	modules    []string
	debug      bool
)

var rootCmd = &cobra.Command{
	Use:          "sigmap",
	Short:        "Resolve game offsets by scanning module images for byte signatures",
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Load configuration
		cfg, err := config.LoadConfig(configPath)
		if err != nil {
			return err
		}
		applyFlags(cmd, cfg)

		fmts, err := output.ParseFormats(cfg.Formats)
		if err != nil {
			return err
		}

		// Initialize log file
		logFile, err := utils.InitializeAppLog(cfg.LogFile, cfg.Debug)
		if err != nil {
			return err
		}
		defer func() { utils.IfError(logFile.Close(), "closing log file") }()
		log.WithField("config", configPath).Debugf("configuration loaded: %+v", *cfg)

		proc, err := openSource(cfg)
		if err != nil {
			return err
		}
		defer func() { utils.IfError(proc.Close(), "closing process") }()

		targets, err := selectTargets(cfg.Modules)
		if err != nil {
			return err
		}
		m, err := offsets.Build(proc, targets, log.Log)
		if err != nil {
			return err
		}

		paths, err := output.WriteFiles(cfg.OutputDir, fmts, m)
		if err != nil {
			return err
		}
		for _, p := range paths {
			log.WithField("path", p).Info("wrote offsets")
		}

		printSummary(cmd.OutOrStdout(), m, targets)
		return nil
	},
}

func init() {
	defaults := config.Defaults()
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "settings.yaml", "Path to the YAML settings file")
	rootCmd.Flags().StringVarP(&process, "process", "p", defaults.Process, "Executable name of the running game")
	rootCmd.Flags().StringVarP(&dumpDir, "dump-dir", "d", defaults.DumpDir, "Read module files from this directory instead of a live process")
	rootCmd.Flags().StringVarP(&outputDir, "output-dir", "o", defaults.OutputDir, "Directory the offset files are written to")
	rootCmd.Flags().StringSliceVarP(&formats, "format", "f", defaults.Formats, "Output formats (json, yaml, hpp)")
	rootCmd.Flags().StringSliceVarP(&modules, "module", "m", nil, "Only resolve these modules (default all)")
	rootCmd.Flags().BoolVarP(&debug, "debug", "V", false, "Enable debug logging")
}

// applyFlags overrides cfg with every flag set on the command line.
func applyFlags(cmd *cobra.Command, cfg *config.Settings) {
	flags := cmd.Flags()
	if flags.Changed("process") {
		cfg.Process = process
	}
	if flags.Changed("dump-dir") {
		cfg.DumpDir = dumpDir
	}
	if flags.Changed("output-dir") {
		cfg.OutputDir = outputDir
	}
	if flags.Changed("format") {
		cfg.Formats = formats
	}
	if flags.Changed("module") {
		cfg.Modules = modules
	}
	if flags.Changed("debug") {
		cfg.Debug = debug
	}
}

// selectTargets picks the named modules in the order given, or every
// known module when names is empty.
func selectTargets(names []string) ([]offsets.Target, error) {
	if len(names) == 0 {
		return offsets.Targets(), nil
	}
	targets := make([]offsets.Target, 0, len(names))
	names = lo.Uniq(lo.Map(names, func(n string, _ int) string { return strings.ToLower(n) }))
	for _, name := range names {
		t, ok := offsets.LookupTarget(name)
		if !ok {
			return nil, errors.Errorf("unknown module %q", name)
		}
		targets = append(targets, t)
	}
	return targets, nil
}

func openSource(cfg *config.Settings) (memory.Process, error) {
	if cfg.DumpDir != "" {
		log.WithField("dir", cfg.DumpDir).Info("reading modules from dump directory")
		return memory.OpenDump(cfg.DumpDir)
	}
	return memory.OpenProcess(cfg.Process)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
