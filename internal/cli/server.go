package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nishad/redbiom/internal/api"
	"github.com/nishad/redbiom/internal/xlog"
)

const shutdownGrace = 10 * time.Second

// NewServerCmd builds the server command: runs the gorilla/mux-based
// HTTP surface over the same App wiring the other commands use,
// following the teacher's serverCmd flag registration style.
func NewServerCmd() *cobra.Command {
	var (
		host       string
		port       int
		noCORS     bool
	)

	cmd := &cobra.Command{
		Use:   "server",
		Short: "Run the redbiom HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath, _ := cmd.Flags().GetString("config")
			level, _ := cmd.Flags().GetString("log-level")
			log := xlog.New(cmd.ErrOrStderr(), xlog.ParseLevel(level))

			srv, err := api.NewServer(&api.Config{
				Host:       host,
				Port:       port,
				ConfigPath: cfgPath,
				EnableCORS: !noCORS,
			}, log)
			if err != nil {
				return fmt.Errorf("start server: %w", err)
			}

			errCh := make(chan error, 1)
			go func() {
				if err := srv.Start(); err != nil && err != http.ErrServerClosed {
					errCh <- err
				}
			}()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

			select {
			case err := <-errCh:
				return err
			case <-sigCh:
				ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
				defer cancel()
				return srv.Shutdown(ctx)
			}
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Address to listen on")
	cmd.Flags().IntVar(&port, "port", 7379, "Port to listen on")
	cmd.Flags().BoolVar(&noCORS, "no-cors", false, "Disable CORS headers")
	return cmd
}
