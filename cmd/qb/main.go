// Package main is the entry point for the Quotabar TUI application.
// It initializes configuration, services, and runs the Bubble Tea program.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/quotabar/quotabar/internal/app"
	"github.com/quotabar/quotabar/internal/config"
	"github.com/quotabar/quotabar/internal/logger"
	"github.com/quotabar/quotabar/internal/services"
	"github.com/quotabar/quotabar/internal/ui/tabs/dashboard"
	"github.com/quotabar/quotabar/internal/ui/tabs/history"
	"github.com/quotabar/quotabar/internal/ui/tabs/providers"
	"github.com/quotabar/quotabar/internal/ui/tabs/settings"
	"github.com/quotabar/quotabar/internal/version"
)

func main() {
	if len(os.Args) > 1 && (os.Args[1] == "-v" || os.Args[1] == "--version") {
		fmt.Println(version.Info())
		os.Exit(0)
	}

	if len(os.Args) > 1 && (os.Args[1] == "-h" || os.Args[1] == "--help") {
		printUsage()
		os.Exit(0)
	}

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run contains the main application logic, separated for cleaner error handling.
func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// The TUI owns the terminal, so logs go to a file next to the database.
	logPath := filepath.Join(filepath.Dir(cfg.DatabasePath), "quotabar.log")
	if err := logger.InitFile(logPath); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: file logging disabled: %v\n", err)
	}
	defer func() {
		if closeErr := logger.Close(); closeErr != nil {
			fmt.Fprintf(os.Stderr, "Warning: error closing log file: %v\n", closeErr)
		}
	}()

	// Starts credential watching, the per-provider refresh machines, and
	// the background poll loop.
	svcManager, err := services.NewManager(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}

	defer func() {
		if closeErr := svcManager.Close(); closeErr != nil {
			fmt.Fprintf(os.Stderr, "Warning: error closing services: %v\n", closeErr)
		}
	}()

	model := app.NewModel(svcManager)

	// Each tab receives the shared application state for consistent data access.
	state := model.GetState()
	tabs := []app.Tab{
		dashboard.New(state),
		providers.New(state, svcManager),
		history.New(state, svcManager),
		settings.New(state, cfg, svcManager),
	}
	model.SetTabs(tabs)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	p := tea.NewProgram(
		model,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(), // status bar segments are clickable
		tea.WithReportFocus(),     // focus regain triggers a staleness check
	)

	go func() {
		<-sigChan
		p.Send(tea.Quit())
	}()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}

// printUsage prints the command-line usage information.
func printUsage() {
	fmt.Println(`Quotabar - AI coding assistant subscription usage tracker

Usage:
  qb [flags]

Flags:
  -h, --help      Show this help message
  -v, --version   Show version information

Keyboard Shortcuts:
  1-4             Switch between tabs (Dashboard, Providers, History, Settings)
  Tab/Shift+Tab   Navigate between tabs
  j/k, Up/Down    Navigate lists
  Enter           Select/confirm
  r               Refresh data
  ?               Toggle help
  q, Ctrl+C       Quit

Status Bar:
  Click a provider segment to refresh it; double-click opens Settings.

Environment Variables:
  QUOTABAR_DB_PATH           SQLite database path
  QUOTABAR_CREDENTIALS_PATH  Credentials JSON file path
  QUOTABAR_RULES_PATH        Quota parse rules YAML path
  QUOTABAR_REFRESH_INTERVAL  Background polling interval (default: 60s)

Configuration:
  The application looks for .env files in the following locations:
  - Current directory
  - ~/.config/quotabar/.env
  - ~/.quotabar/.env

For more information, visit: https://github.com/quotabar/quotabar`)
}
