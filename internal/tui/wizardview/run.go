package wizardview

import (
	"context"
	"errors"
	"fmt"

	tea "charm.land/bubbletea/v2"

	"github.com/mark3labs/stepwise/internal/tui/theme"
	"github.com/mark3labs/stepwise/internal/wizard"
)

// ErrCancelled is returned by Run when the user quits early.
var ErrCancelled = errors.New("wizard cancelled by user")

// Run drives store interactively until it completes or the user quits.
func Run(ctx context.Context, store *wizard.Store, fields FieldSource, th *theme.Theme) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	m := New(ctx, store, fields, th)
	defer m.Close()

	final, err := tea.NewProgram(m).Run()
	if err != nil {
		return fmt.Errorf("wizard failed: %w", err)
	}

	result, ok := final.(*Model)
	if !ok {
		return fmt.Errorf("unexpected model type")
	}
	if !result.Completed() {
		return ErrCancelled
	}
	return nil
}
