package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/MimeLyc/philby/pkg/log"
)

func serveCmd(c *cli) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve workspace status, history and a stop endpoint over HTTP",
		Long: `serve exposes a read-mostly JSON API next to a running loop:

  GET  /api/status     task, purpose, last outcome and whether a run holds the lock
  GET  /api/history    recent cycles (?limit=N)
  GET  /api/runs       recent runs (?limit=N)
  GET  /api/stream     server-sent events, one per recorded cycle
  POST /api/stop       drop the STOP marker
  GET|PUT /api/settings  the settings file, when SETTINGS_FILE is set`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := c.openService(cmd)
			if err != nil {
				return err
			}
			defer svc.Close()

			srv := svc.StatusServer()
			errCh := make(chan error, 1)
			go func() {
				errCh <- srv.ListenAndServe(addr)
			}()
			log.Info("Serving %s on %s", svc.Workspace().Root(), addr)
			fmt.Fprintf(cmd.OutOrStdout(), "Listening on %s\n", addr)

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-cmd.Context().Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Warn("HTTP shutdown: %v", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	return cmd
}
