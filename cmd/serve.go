package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/snf-deals/internal/api"
	"github.com/sells-group/snf-deals/internal/deal"
	"github.com/sells-group/snf-deals/internal/reconcile"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the deal API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if servePort != 0 {
			cfg.Server.Port = servePort
		}
		st, err := openStore(ctx, "serve")
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		recorder := newRecorder(st)
		srv := api.NewServer(
			deal.NewService(st),
			reconcile.NewCoordinator(st, nil, recorder),
			recorder,
			st,
		)

		httpSrv := &http.Server{
			Addr: fmt.Sprintf(":%d", cfg.Server.Port),
			Handler: srv.Router(api.Options{
				RateLimitRPS:   cfg.Server.RateLimitRPS,
				RateLimitBurst: cfg.Server.RateLimitBurst,
				CORSOrigins:    cfg.Server.CORSOrigins,
			}),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
			defer cancel()
			httpSrv.Shutdown(shutdownCtx) //nolint:errcheck
		}()

		zap.L().Info("starting server", zap.Int("port", cfg.Server.Port))
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
