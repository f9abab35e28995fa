package main

import (
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/acuworks/finops-cli/internal/mockapi"
)

var (
	servePort int
	serveLogs int
	serveSeed int64
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the local mock usage API",
	Long:  "Serves a deterministic, seeded usage log corpus over the paginated API contract, for development and pipeline testing without enterprise credentials.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("serve"); err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		logs := mockapi.GenerateLogs(serveLogs, serveSeed)
		server := mockapi.NewServer(logs)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: server.Handler(),
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx)
		}()

		zap.L().Info("starting mock usage API",
			zap.Int("port", port),
			zap.Int("logs", len(logs)),
			zap.Int64("seed", serveSeed),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	serveCmd.Flags().IntVar(&serveLogs, "logs", 1000, "number of usage logs to generate")
	serveCmd.Flags().Int64Var(&serveSeed, "seed", 42, "random seed for log generation")
	rootCmd.AddCommand(serveCmd)
}
