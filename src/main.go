package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/contre95/soulfetch/src/features/acquisition"
	"github.com/contre95/soulfetch/src/features/config"
	"github.com/contre95/soulfetch/src/features/hosting"
	"github.com/contre95/soulfetch/src/features/jobs"
	"github.com/contre95/soulfetch/src/features/logging"
	"github.com/contre95/soulfetch/src/infra/files"
	"github.com/contre95/soulfetch/src/infra/watcher"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var configPath string

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("failed to load .env: %v", err)
	}

	root := &cobra.Command{
		Use:           "soulfetch",
		Short:         "Acquire the audio files of a music catalog",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to the configuration file")
	root.AddCommand(runCmd(), serveCmd(), failuresCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := root.ExecuteContext(ctx); err != nil {
		slog.Error("Command failed", "error", err)
		stop()
		os.Exit(1)
	}
}

// setup loads the configuration and installs the process logger.
func setup() (*config.Manager, error) {
	cfgManager, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	slog.SetDefault(logging.SetupLogger(cfgManager))
	return cfgManager, nil
}

func runCmd() *cobra.Command {
	var artists, tracks []string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one acquisition pass over the artists file or the given artists",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgManager, err := setup()
			if err != nil {
				return err
			}
			app, err := build(cfgManager)
			if err != nil {
				return err
			}
			defer app.close()

			if len(artists) == 0 {
				source := artistSource(cfgManager)
				if source == nil {
					return fmt.Errorf("no --artist given and no artistsFile configured")
				}
				if artists, err = source(); err != nil {
					return err
				}
			}

			report, err := app.acquisition.RunWithProgress(cmd.Context(), acquisition.RunRequest{Artists: artists, TrackIDs: tracks},
				func(done, total int, artist string) {
					slog.Info("Artist processed", "artist", artist, "done", done, "total", total)
				})
			fmt.Fprintln(cmd.OutOrStdout(), acquisition.Summary(report))
			if _, serr := app.metrics.Snapshot(context.Background()); serr != nil {
				slog.Warn("Failed to take metrics snapshot", "error", serr)
			}
			if errors.Is(err, context.Canceled) {
				slog.Info("Run interrupted")
				return nil
			}
			return err
		},
	}
	cmd.Flags().StringSliceVarP(&artists, "artist", "a", nil, "artist id or name to acquire (repeatable)")
	cmd.Flags().StringSliceVarP(&tracks, "track", "t", nil, "only acquire these track ids (repeatable)")
	return cmd
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP control plane, the job runner and the Telegram bot",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgManager, err := setup()
			if err != nil {
				return err
			}
			app, err := build(cfgManager)
			if err != nil {
				return err
			}
			defer app.close()
			return serve(cmd.Context(), app)
		},
	}
}

func serve(ctx context.Context, app *components) error {
	cfg := app.cfg.Get()

	app.jobs.OnFinish(func(job *jobs.Job) {
		if job.Type != acquisition.JobType {
			return
		}
		if _, err := app.metrics.Snapshot(context.Background()); err != nil {
			slog.Warn("Failed to take metrics snapshot", "error", err)
		}
	})
	if _, err := app.metrics.Snapshot(ctx); err != nil {
		slog.Warn("Failed to take metrics snapshot", "error", err)
	}

	var telegramBot *hosting.TelegramBot
	if cfg.Telegram.Enabled {
		var err error
		telegramBot, err = hosting.NewTelegramBot(app.cfg, app.acquisition, app.jobs, app.metrics)
		if err != nil {
			slog.Error("Failed to initialize Telegram bot", "error", err)
		} else {
			app.jobs.OnFinish(telegramBot.NotifyJob)
			go telegramBot.Start()
			slog.Info("Telegram bot started")
		}
	}

	var services []func(context.Context) error
	if cfg.Server.Enabled {
		server := hosting.NewServer(app.cfg, app.acquisition, app.jobs, app.metrics)
		services = append(services, func(ctx context.Context) error {
			errc := make(chan error, 1)
			go func() { errc <- server.Start() }()
			slog.Info("Server started. Press Ctrl+C to shut down.", "port", cfg.Server.Port)
			select {
			case err := <-errc:
				return fmt.Errorf("server stopped: %w", err)
			case <-ctx.Done():
				slog.Info("Shutting down server...")
				return server.Shutdown()
			}
		})
	}
	if cfg.Watch.Enabled && cfg.ArtistsFile != "" {
		services = append(services, func(ctx context.Context) error {
			return watchArtists(ctx, app, cfg.ArtistsFile)
		})
	}
	services = append(services, func(ctx context.Context) error {
		<-ctx.Done()
		return nil
	})

	err := runServices(ctx, services...)
	if telegramBot != nil {
		telegramBot.Stop()
		slog.Info("Telegram bot stopped")
	}
	slog.Info("Shut down gracefully.")
	return err
}

// watchArtists starts an acquisition job every time the artists file settles
// after a change.
func watchArtists(ctx context.Context, app *components, path string) error {
	events := make(chan watcher.FileEvent, 1)
	w, err := watcher.NewWatcher(events, app.cfg.Get().Watch.Debounce)
	if err != nil {
		return fmt.Errorf("failed to create artists file watcher: %w", err)
	}
	if err := w.Start(ctx, path); err != nil {
		return fmt.Errorf("failed to watch %s: %w", path, err)
	}
	defer w.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event := <-events:
			if event.EventType == watcher.FileRemoved {
				slog.Warn("Artists file removed", "path", event.Path)
				continue
			}
			artists, err := files.ReadArtistsFile(path)
			if err != nil {
				slog.Error("Failed to read artists file", "error", err)
				continue
			}
			jobID, err := acquisition.StartAcquireJob(app.jobs, acquisition.RunRequest{Artists: artists})
			if err != nil {
				continue
			}
			slog.Info("Artists file changed, acquisition queued", "jobID", jobID, "artists", len(artists))
		}
	}
}

func failuresCmd() *cobra.Command {
	var (
		asJSON bool
		reason string
	)
	cmd := &cobra.Command{
		Use:   "failures",
		Short: "List the tracks that need manual attention",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgManager, err := setup()
			if err != nil {
				return err
			}
			app, err := build(cfgManager)
			if err != nil {
				return err
			}
			defer app.close()

			records, err := app.acquisition.Failures(cmd.Context())
			if err != nil {
				return err
			}
			if reason != "" {
				filtered := records[:0]
				for _, r := range records {
					if r.Reason == reason {
						filtered = append(filtered, r)
					}
				}
				records = filtered
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(records)
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TRACK\tARTIST\tREASON\tSEARCH")
			for _, r := range records {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.TrackID, r.Artist, r.Reason, r.SearchName)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the records as JSON")
	cmd.Flags().StringVar(&reason, "reason", "", "only show records with this reason")
	return cmd
}
