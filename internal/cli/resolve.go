package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/tacogips/modelres/internal/app"
	"github.com/tacogips/modelres/internal/naming"
	"github.com/tacogips/modelres/internal/pipeline"
)

// resolveCmd represents the resolve command
var resolveCmd = &cobra.Command{
	Use:   "resolve [reference]",
	Short: "Resolve a model reference into a canonical container",
	Long: `Resolve a model reference and optionally write its canonical container.

The reference is first read as a model. If that fails because the content is
not a model, it is scanned as a zip archive and the first readable model
entry is used; every other entry must still be readable. The result is
repackaged as a flat zip holding one .obj with its materials and textures.

Without a reference, modelres asks for one interactively.

Examples:
  modelres resolve chair.obj
  modelres resolve furniture.zip -o chair.zip
  modelres resolve "furniture.zip!/chairs/office.obj" -o out/ --force
  modelres resolve https://example.com/models/lamp.zip --name "Desk Lamp"`,
	Args: cobra.MaximumNArgs(1),
	RunE: runResolve,
}

// Resolve command flags
var (
	resolveOutput     string
	resolveForce      bool
	resolveName       string
	resolveMaxEntries int
	resolveVerbose    bool
)

func init() {
	// Flags for resolve
	resolveCmd.Flags().StringVarP(&resolveOutput, FlagOutput, "o", "", DescOutput)
	resolveCmd.Flags().BoolVarP(&resolveForce, FlagForce, "f", false, DescForce)
	resolveCmd.Flags().StringVar(&resolveName, FlagName, "", DescName)
	resolveCmd.Flags().IntVar(&resolveMaxEntries, FlagMaxEntries, 0, DescMaxEntries)
	resolveCmd.Flags().BoolVarP(&resolveVerbose, FlagVerbose, "v", false, DescVerbose)
}

func runResolve(cmd *cobra.Command, args []string) error {
	ref, err := referenceArg(args)
	if err != nil {
		return err
	}

	cfg := *activeConfig
	if cmd.Flags().Changed(FlagMaxEntries) {
		if resolveMaxEntries < 0 {
			return fmt.Errorf("--%s cannot be negative", FlagMaxEntries)
		}
		cfg.Resolver.MaxEntries = resolveMaxEntries
	}
	verbose := resolveVerbose || cfg.Output.Verbose

	outputPath, overwrite, proceed, err := prepareOutput(ref)
	if err != nil {
		return err
	}
	if !proceed {
		printWarning("Output exists; nothing written")
		return nil
	}

	printProgress(fmt.Sprintf("Resolving %s", ref))
	result, err := app.Resolve(cmd.Context(), app.ResolveOptions{
		Reference:  ref,
		Config:     &cfg,
		OutputPath: outputPath,
		Overwrite:  overwrite,
		Name:       resolveName,
		Busy: pipeline.BusyFunc(func(busy bool) {
			if busy {
				printVerbose(verbose, "Reading...")
			} else {
				printVerbose(verbose, "Done reading")
			}
		}),
	})
	if err != nil {
		var failure *pipeline.Failure
		if errors.As(err, &failure) {
			switch failure.Class {
			case pipeline.FailureCancelled:
				return failure.Err
			case pipeline.FailureFormat:
				printWarning("The reference is neither a model nor an archive containing one")
			}
		}
		return err
	}

	printSuccess(fmt.Sprintf("Resolved %s", result.Name))
	printInfo(fmt.Sprintf("  Size:  %s", result.Size))
	printInfo(fmt.Sprintf("  Entry: %s", result.Entry))
	if result.OutputPath != "" {
		printInfo(fmt.Sprintf("  Wrote: %s (%s)", result.OutputPath, formatBytes(result.Bytes)))
	}
	return nil
}

// referenceArg returns the reference argument, prompting when it is missing.
func referenceArg(args []string) (string, error) {
	if len(args) == 1 {
		if err := ValidateReference(args[0]); err != nil {
			return "", err
		}
		return args[0], nil
	}
	if !isInteractive() {
		return "", fmt.Errorf("a reference is required")
	}
	return PromptForReference()
}

// prepareOutput settles the output path and whether it may be overwritten.
// proceed is false when the user declines to overwrite.
func prepareOutput(ref string) (path string, overwrite, proceed bool, err error) {
	if resolveOutput == "" {
		return "", false, true, nil
	}

	path = resolveOutput
	if info, statErr := os.Stat(path); statErr == nil && info.IsDir() {
		name := resolveName
		if name == "" {
			name = naming.DisplayName(ref)
		}
		path = filepath.Join(path, defaultOutputPath(name))
	}
	if err := ValidateOutputPath(path); err != nil {
		return "", false, false, err
	}

	if resolveForce {
		return path, true, true, nil
	}
	if _, statErr := os.Stat(path); statErr != nil {
		return path, false, true, nil
	}
	if !isInteractive() {
		return "", false, false, fmt.Errorf("%s already exists (use --%s to overwrite)", path, FlagForce)
	}
	ok, err := ConfirmOverwrite(path)
	if err != nil {
		return "", false, false, err
	}
	return path, ok, ok, nil
}
