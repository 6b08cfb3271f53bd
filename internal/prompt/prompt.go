// Package prompt asks the user to confirm wallet operations.
package prompt

import (
	"errors"
	"os"

	"github.com/manifoldco/promptui"
	"github.com/mattn/go-isatty"
)

const (
	Yes = "Yes"
	No  = "No"
)

// ErrNonInteractive is returned when a confirmation is needed but stdin is
// not a terminal and auto-confirm is off.
var ErrNonInteractive = errors.New("confirmation required but no terminal is attached; rerun with --yes")

// Confirmer answers yes/no questions.
type Confirmer interface {
	Confirm(label string) (bool, error)
}

// selectRunner is swapped in tests.
var selectRunner = func(sel promptui.Select) (int, string, error) {
	return sel.Run()
}

type interactive struct{}

func (interactive) Confirm(label string) (bool, error) {
	_, decision, err := selectRunner(promptui.Select{
		Label: label,
		Items: []string{Yes, No},
	})
	if err != nil {
		if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
			return false, nil
		}
		return false, err
	}
	return decision == Yes, nil
}

type auto struct{}

func (auto) Confirm(string) (bool, error) { return true, nil }

type nonInteractive struct{}

func (nonInteractive) Confirm(string) (bool, error) { return false, ErrNonInteractive }

func Interactive() Confirmer    { return interactive{} }
func Auto() Confirmer           { return auto{} }
func NonInteractive() Confirmer { return nonInteractive{} }

// ForMode picks the confirmer for the current process: --yes confirms
// everything, a terminal gets a prompt, anything else fails fast.
func ForMode(assumeYes bool) Confirmer {
	if assumeYes {
		return Auto()
	}
	if !stdinIsTTY() {
		return NonInteractive()
	}
	return Interactive()
}

func stdinIsTTY() bool {
	fd := os.Stdin.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
