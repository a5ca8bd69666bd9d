package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/chazu/xylem"
	"github.com/chazu/xylem/internal/api"
)

var serveFlags patientFlags

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API for one patient",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	serveFlags.register(serveCmd, false)
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	level, _ := cfg.Level()
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	xylem.SetLogger(log)
	if serveFlags.out != "" {
		cfg.OutputDir = serveFlags.out
	}

	app, err := serveFlags.load()
	if err != nil {
		return err
	}
	srv := api.NewServer(app, log, cfg)
	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("starting server", "port", cfg.Port, "patient", app.Patient().ID)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info("shutting down", "signal", sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Error("shutdown error", "error", err)
		return err
	}
	log.Info("server stopped")
	return nil
}
