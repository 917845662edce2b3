package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/acirtautas/genmetrika-gallery/config"
	"github.com/acirtautas/genmetrika-gallery/scraper"
	"github.com/acirtautas/genmetrika-gallery/tui"
)

func newViewCmd(opts *rootOptions) *cobra.Command {
	var logFile string

	cmd := &cobra.Command{
		Use:   "view <url>",
		Short: "Open a gallery in the interactive viewer",
		Long: `View crawls the gallery at <url> and opens it full screen. When <url> is an
image detail page the viewer starts on that image.

Keys: ←/→ navigate, +/- zoom, [ ] rotate, 0 reset, c copy link, esc close.
Mouse: wheel zooms towards the cursor, drag pans a zoomed image, click a
thumbnail to jump to it.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := opts.cfg
			if err := originFromArgs(cfg, args); err != nil {
				return err
			}
			return runView(cmd.Context(), cmd.OutOrStdout(), cfg, logFile)
		},
	}

	cmd.Flags().IntVar(&opts.flags.SidebarWidth, "sidebar-width", opts.flags.SidebarWidth, "Thumbnail column width in cells")
	cmd.Flags().StringVar(&logFile, "log-file", "", "Write logs to this file while the viewer is open")
	return cmd
}

func runView(ctx context.Context, out io.Writer, cfg *config.Config, logFile string) error {
	result, err := crawlGallery(ctx, cfg, scraper.NewMetrics(), out)
	if err != nil {
		return err
	}

	// the viewer owns the terminal from here on
	restore, err := redirectLogs(logFile, cfg.Verbose)
	if err != nil {
		return err
	}
	defer restore()

	loader := tui.NewImageLoader(nil, cfg.UserAgent, cfg.Timeout)
	model, err := tui.NewModel(ctx, result.Gallery, result.StartIndex, tui.Options{
		SidebarWidth: cfg.SidebarWidth,
		Loader:       loader,
	})
	if err != nil {
		return fmt.Errorf("open viewer: %w", err)
	}

	program := tea.NewProgram(model,
		tea.WithContext(ctx),
		tea.WithAltScreen(),
		tea.WithMouseAllMotion(),
	)
	if _, err := program.Run(); err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("viewer: %w", err)
	}
	return nil
}

// redirectLogs points the default logger at path, or discards logs when
// path is empty. The returned func restores the previous logger.
func redirectLogs(path string, verbose bool) (func(), error) {
	previous := slog.Default()
	if path == "" {
		slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
		return func() { slog.SetDefault(previous) }, nil
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	slog.SetDefault(newLogger(f, verbose))
	return func() {
		slog.SetDefault(previous)
		if err := f.Close(); err != nil {
			slog.Error("close log file", slog.Any("error", err))
		}
	}, nil
}
