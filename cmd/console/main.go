package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"admin-console/internal/logger"
)

var rootCmd = &cobra.Command{
	Use:   "console",
	Short: "Admin console gateway and authority",
	Long: `console runs the admin console gateway (serve) or the identity and
verify authority it signs administrators in against (authd).`,
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(authdCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func setupLogger(format string, level string) {
	slog.SetDefault(logger.New(os.Stdout, format, level))
}
