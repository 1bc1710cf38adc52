package commands

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/pthm/bindery"
	"github.com/pthm/bindery/lib/bridge"
)

func serveCmd() *cobra.Command {
	var (
		addr     string
		document string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the configured routes over HTTP and a live websocket",
		Long: `Serve renders each GET request with a fresh App built from the config
and routes file. Browsers that connect to /_live keep one App per
connection and receive re-rendered bodies after every event.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openShared(document)
			if err != nil {
				return err
			}
			defer s.Close()

			mux := http.NewServeMux()
			mux.Handle("/_live", bridge.New(s.newApp, log.With("component", "bridge")))
			mux.Handle("/", bindery.NewServer(s.newApp, log.With("component", "server")))

			srv := &http.Server{
				Addr:              addr,
				Handler:           mux,
				ReadHeaderTimeout: 10 * time.Second,
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errc := make(chan error, 1)
			go func() {
				log.Info("listening", "addr", addr, "views", cfg.ViewsDir, "routes", cfg.RoutesFile)
				errc <- srv.ListenAndServe()
			}()

			select {
			case err := <-errc:
				if !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			case <-ctx.Done():
			}

			log.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	cmd.Flags().StringVar(&document, "document", "", "HTML shell every App starts from")
	return cmd
}
