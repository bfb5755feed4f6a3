package cli

import (
	"fmt"
	"os"

	"github.com/AlecAivazis/survey/v2"
	"github.com/mattn/go-isatty"
)

// askOne is survey.AskOne; tests replace it to answer prompts.
var askOne = survey.AskOne

// isInteractive reports whether prompts can be shown.
var isInteractive = func() bool {
	return isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd())
}

// PromptForReference asks for a model reference when none was given.
func PromptForReference() (string, error) {
	var ref string
	prompt := &survey.Input{
		Message: "Model reference",
		Help:    "A file path, a file:// or http(s) URL, or archive.zip!/path/to/model.obj",
	}
	if err := askOne(prompt, &ref, survey.WithValidator(referenceValidator)); err != nil {
		return "", err
	}
	return ref, nil
}

// ConfirmOverwrite asks before replacing an existing output file.
func ConfirmOverwrite(path string) (bool, error) {
	var ok bool
	prompt := &survey.Confirm{
		Message: fmt.Sprintf("%s already exists. Overwrite?", path),
		Default: false,
	}
	if err := askOne(prompt, &ok); err != nil {
		return false, err
	}
	return ok, nil
}

// referenceValidator adapts ValidateReference to survey.
func referenceValidator(val interface{}) error {
	str, ok := val.(string)
	if !ok {
		return fmt.Errorf("expected string, got %T", val)
	}
	return ValidateReference(str)
}
