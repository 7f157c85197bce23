package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/greenspace/internal/dataset"
	"github.com/sells-group/greenspace/internal/server"
)

var (
	servePort int
	serveData string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the final dataset over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if servePort != 0 {
			cfg.Server.Port = servePort
		}
		if serveData != "" {
			cfg.Server.DataPath = serveData
		}
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		d, err := dataset.ReadFile(cfg.Server.DataPath)
		if err != nil {
			return err
		}
		zap.L().Info("serve: dataset loaded",
			zap.String("path", cfg.Server.DataPath),
			zap.Int("records", d.Len()),
			zap.Int("columns", len(d.Columns)),
		)

		srv, err := server.New(d, serverOptions(cfg))
		if err != nil {
			return err
		}
		return srv.ListenAndServe(ctx, fmt.Sprintf(":%d", cfg.Server.Port))
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	serveCmd.Flags().StringVar(&serveData, "data", "", "final dataset (default from config)")
	rootCmd.AddCommand(serveCmd)
}
