package cmd

import (
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/smartdocfinder/smartdoc/internal/api"
	"github.com/smartdocfinder/smartdoc/internal/ingest"
)

// newServeCmd creates the serve command.
func newServeCmd() *cobra.Command {
	var host string
	var port int
	var watchDir string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the SmartDoc HTTP server",
		Long: `Start the HTTP server that accepts document uploads and answers
search queries. With a configured watch directory, files dropped there
are ingested automatically.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if host != "" {
				cfg.Server.Host = host
			}
			if port > 0 {
				cfg.Server.Port = port
			}
			if watchDir != "" {
				cfg.Ingest.WatchDir = watchDir
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := buildApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			server := api.NewServer(api.Config{
				Host:      cfg.Server.Host,
				Port:      cfg.Server.Port,
				UploadDir: cfg.Ingest.UploadDir,
			}, a.pipeline, a.ingester, a.registry)

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return server.ListenAndServe(gctx)
			})
			if cfg.Ingest.WatchDir != "" {
				watcher := ingest.NewWatcher(cfg.Ingest.WatchDir, cfg.Ingest.WatchDebounce, a.ingester)
				g.Go(func() error {
					err := watcher.Run(gctx)
					if err != nil && gctx.Err() != nil {
						return nil
					}
					return err
				})
			}

			slog.Info("smartdoc started",
				slog.String("host", cfg.Server.Host),
				slog.Int("port", cfg.Server.Port),
				slog.String("index", cfg.Index.Path))
			return g.Wait()
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "Bind address (overrides config)")
	cmd.Flags().IntVar(&port, "port", 0, "Listen port (overrides config)")
	cmd.Flags().StringVar(&watchDir, "watch", "", "Drop folder to ingest automatically")

	return cmd
}
