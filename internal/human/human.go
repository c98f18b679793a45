// Package human is the operator side of the loop: answering ask_handler
// questions and authorising the next cycle.
package human

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/mattn/go-isatty"
)

// ErrNoAnswer is returned when the channel closes before an answer arrives
var ErrNoAnswer = errors.New("no answer from operator")

// Asker blocks until the operator answers prompt. There is no timeout; the
// wait ends only with an answer, a closed channel or ctx cancellation.
type Asker interface {
	Ask(ctx context.Context, prompt string) (string, error)
}

// Confirmer asks a yes/no question before the next cycle starts
type Confirmer interface {
	Confirm(ctx context.Context, message string) (bool, error)
}

// Channel is both an Asker and a Confirmer
type Channel interface {
	Asker
	Confirmer
}

// ConfirmPrompt is appended to every authorisation question
const ConfirmPrompt = "Proceed? [y/N]"

// Terminal picks the interactive huh form when in is a terminal and the
// plain line-based console otherwise (pipes, CI, scripted stdin).
func Terminal(in *os.File, out io.Writer) Channel {
	if isatty.IsTerminal(in.Fd()) || isatty.IsCygwinTerminal(in.Fd()) {
		return NewForm()
	}
	return NewConsole(in, out)
}
