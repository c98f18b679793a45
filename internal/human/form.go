package human

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"
)

// Form asks through huh terminal forms
type Form struct{}

func NewForm() *Form { return &Form{} }

func (f *Form) Ask(ctx context.Context, prompt string) (string, error) {
	var answer string
	input := huh.NewText().
		Title("The agent asks").
		Description(strings.TrimSpace(prompt)).
		Value(&answer)

	if err := runForm(ctx, input); err != nil {
		return "", err
	}
	return answer, nil
}

func (f *Form) Confirm(ctx context.Context, message string) (bool, error) {
	approved := false
	c := huh.NewConfirm().
		Title(ConfirmPrompt).
		Affirmative("Yes").
		Negative("No").
		Value(&approved)
	if message = strings.TrimSpace(message); message != "" {
		c = c.Description(message)
	}

	if err := runForm(ctx, c); err != nil {
		return false, err
	}
	return approved, nil
}

func runForm(ctx context.Context, fields ...huh.Field) error {
	err := huh.NewForm(huh.NewGroup(fields...)).WithShowHelp(true).RunWithContext(ctx)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, huh.ErrUserAborted):
		return ErrNoAnswer
	case ctx.Err() != nil:
		return ctx.Err()
	default:
		return fmt.Errorf("operator form: %w", err)
	}
}
