package commands

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/leapstack-labs/querycomposer/internal/server"
	"github.com/spf13/cobra"
)

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	var (
		addr    string
		noWatch bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the composer over HTTP",
		Long: `Serve the composer session over a JSON HTTP API.

Clients receive notices and remote query changes as server-sent events on
/api/updates. Changes other processes make to the state database are picked
up while the server runs.`,
		Example: `  composer serve
  composer serve --addr 127.0.0.1:9000 --no-watch`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, cleanup, err := NewApp(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			if addr == "" {
				addr = app.Cfg.Server.Addr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv := server.New(server.Config{
				Addr:      addr,
				Session:   app.Session,
				Engines:   app.Engines,
				State:     app.Store,
				Key:       app.Cfg.Environment,
				StatePath: app.Cfg.StatePath,
				Watch:     app.Cfg.Server.Watch && !noWatch,
				Logger:    app.Logger,

				SessionSecret: app.Cfg.Server.SessionSecret,
			})

			app.Renderer.Info("Serving composer %q on %s", app.Cfg.Environment, addr)
			if err := srv.Serve(ctx); err != nil && ctx.Err() == nil {
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config, :8765)")
	cmd.Flags().BoolVar(&noWatch, "no-watch", false, "Do not watch the state database for external changes")
	return cmd
}

