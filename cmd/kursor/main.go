// Kursor TUI Application
// Основная точка входа для интерактивного интерфейса
package main

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ovchar/kursor/internal/app"
	"github.com/ovchar/kursor/internal/ui"
	"github.com/ovchar/kursor/pkg/config"
	"github.com/ovchar/kursor/pkg/utils"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := os.Getenv("KURSOR_CONFIG")
	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	appState, err := app.Initialize(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer utils.Close()
	defer appState.Emitter.Close()

	utils.Info("Starting TUI")

	p := tea.NewProgram(
		ui.InitialModel(appState),
		// Без AltScreen - позволяет выделять текст мышкой и копировать в буфер обмена
	)

	if _, err := p.Run(); err != nil {
		utils.Error("TUI crashed", "error", err)
		return fmt.Errorf("tui error: %w", err)
	}

	utils.Info("Application stopped")
	return nil
}
