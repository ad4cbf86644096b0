package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().Bool("scheduler", false, "Enable the reconciliation scheduler (overrides config)")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Start the HTTP API. With the scheduler enabled, daily reconciliation
runs once the configured time of day passes and weekly reconciliation runs
on the configured weekday.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	a, closeDB, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer closeDB()

	a.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	if cmd.Flags().Changed("scheduler") {
		a.Config.Scheduler.Enabled, _ = cmd.Flags().GetBool("scheduler")
	}
	scheduler := a.Scheduler()
	scheduler.Start()
	defer scheduler.Stop()

	read, write, idle := a.Config.Server.Timeouts()
	server := &http.Server{
		Addr:         a.Config.Addr(),
		Handler:      a.Router(),
		ReadTimeout:  read,
		WriteTimeout: write,
		IdleTimeout:  idle,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Server starting on http://%s (environment %q, timezone %s)",
			server.Addr, a.Config.Environment, a.Config.Timezone)
		log.Printf("API available at http://%s/api, metrics at /metrics", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case <-quit:
	}

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return err
	}

	log.Println("Server stopped")
	return nil
}
