package commands

import (
	"context"
	"errors"
	"time"

	"github.com/DrSkyle/spendscope/pkg/api"
	"github.com/DrSkyle/spendscope/pkg/config"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the analytics as a JSON HTTP API",
	Long: `Start the dashboard API:

  GET /api/costs?timeRange=7d
  GET /api/instances
  GET /api/metrics?id=i-123&metric=cpu
  GET /api/fleet`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		rt, err := newRuntime(ctx)
		if err != nil {
			return err
		}
		defer rt.Close()

		srv := api.NewServer(rt.engine, rt.logger)
		errCh := make(chan error, 1)
		go func() {
			errCh <- srv.Start(cfg.Server.Addr)
		}()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}

		rt.logger.Info("Shutting down API")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return <-errCh
	},
}

func init() {
	serveCmd.Flags().String("addr", config.DefaultListenAddr, "Listen address")
	bindFlags(serveCmd.Flags(), map[string]string{"addr": "server.addr"})
	rootCmd.AddCommand(serveCmd)
}
