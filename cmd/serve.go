package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/bnema/grader/internal/adapters/httpapi"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(load appLoader) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Accept deliveries over HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := load()
			if err != nil {
				return err
			}
			defer func() { _ = app.close(context.Background()) }()

			addr := app.cfg.Server.Listen
			if listen != "" {
				addr = listen
			}

			server, err := httpapi.New(app.service, app.sessions,
				httpapi.WithLogger(app.log),
				httpapi.WithAdminToken(app.cfg.Server.AdminToken),
				httpapi.WithBodyLimit(httpapi.BodyLimitForUpload(app.cfg.MaxUploadKB)),
			)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				errCh <- server.Start(addr)
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			app.log.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "listen address, overrides server.listen")
	return cmd
}
