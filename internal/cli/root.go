package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/tacogips/modelres/internal/config"
	"github.com/tacogips/modelres/internal/debug"
)

// Global flags
var (
	globalConfig  string
	globalNoColor bool
	globalQuiet   bool
	globalDebug   bool
)

// activeConfig is loaded before any subcommand runs.
var activeConfig = config.DefaultConfig()

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "modelres",
	Short: "Resolve 3D model references into portable containers",
	Long: `modelres turns a reference to a 3D model into a self-contained zip.

A reference may be a local path, a file:// or http(s) URL, or an entry
inside an archive ("bundle.zip!/models/chair.obj"). The model is read
directly when possible; otherwise the reference is scanned as a zip archive
and the first readable model inside it is used. The result is repackaged
with its materials and textures into a flat container.

Use "modelres resolve <reference> -o out.zip" to produce a container and
"modelres inspect <archive>" to see what an archive holds.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadGlobalConfig,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			stop()
			os.Exit(130)
		}
		printError(err)
		stop()
		os.Exit(1)
	}
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&globalConfig, FlagConfig, "", DescConfig)
	rootCmd.PersistentFlags().BoolVar(&globalNoColor, FlagNoColor, false, DescNoColor)
	rootCmd.PersistentFlags().BoolVarP(&globalQuiet, FlagQuiet, "q", false, DescQuiet)
	rootCmd.PersistentFlags().BoolVar(&globalDebug, FlagDebug, false, DescDebug)

	// Add subcommands
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadGlobalConfig loads the configuration file and applies output settings.
// An explicit --config must exist; the default location is optional.
func loadGlobalConfig(cmd *cobra.Command, args []string) error {
	debug.SetDebug(globalDebug)

	loader := config.NewLoader()
	var (
		cfg *config.Config
		err error
	)
	if globalConfig != "" {
		path, expandErr := config.ExpandPath(globalConfig)
		if expandErr != nil {
			return expandErr
		}
		cfg, err = loader.Load(path)
	} else {
		cfg, err = loader.LoadOrDefault(config.DefaultConfigPath())
	}
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	activeConfig = cfg
	if !cfg.Output.Color {
		globalNoColor = true
	}
	if cfg.Output.Quiet {
		globalQuiet = true
	}
	debug.SetNoColor(globalNoColor)
	debug.DebugJSON("[cli] Configuration", cfg)
	return nil
}

// printError prints an error message to stderr
func printError(err error) {
	if globalQuiet {
		return
	}
	fmt.Fprintf(errOut, "Error: %v\n", err)
}
