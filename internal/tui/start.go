package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	app "lod-checker/internal/application"
	"lod-checker/internal/pkg/logger"
)

// sessionID у терминального интерфейса одна форма
const sessionID = "tui"

func Start(ctx context.Context, controller *app.Controller) error {
	ctx = logger.WithFrontEnd(ctx, "tui")
	model := NewModel(ctx, controller, sessionID)
	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := program.Run()
	return err
}
