// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/docbase/internal/server"
	"github.com/pdiddy/docbase/pkg/types"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the catalog and upload pipeline over HTTP",
	Long: `Serve starts an HTTP server exposing document uploads, catalog
listings, and group management. Uploads run through the same staging
pipeline as the ingest subcommand.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("addr", ":8100", "listen address")
	serveCmd.Flags().String("group", "", "group uploads attach to when the request names none")
	serveCmd.Flags().StringSlice("file-types", nil, "accepted file suffixes (default .docx,.pdf,.txt,.json)")
	serveCmd.Flags().Int("pool-size", 0, "number of concurrent staging workers")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	addr, _ := cmd.Flags().GetString("addr")
	if !cmd.Flags().Changed("addr") {
		if v := viper.GetString("addr"); v != "" {
			addr = v
		}
	}
	group, _ := cmd.Flags().GetString("group")
	if group == "" {
		group = viper.GetString("group")
	}
	fileTypes, _ := cmd.Flags().GetStringSlice("file-types")
	poolSize, _ := cmd.Flags().GetInt("pool-size")

	reg, cfg, err := openRegistry(cmd)
	if err != nil {
		return err
	}
	defer reg.Close()

	ctx := context.Background()
	if err := reg.InitTables(ctx); err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	srv := server.New(reg, cfg.Dir,
		types.ServerConfig{Addr: addr, Group: group},
		types.IngestConfig{FileTypes: fileTypes, PoolSize: poolSize},
		logger)

	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", addr, "dir", cfg.Dir)
		errCh <- httpSrv.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		logger.Info("shutting down", "signal", sig.String())
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down: %w", err)
		}
		return nil
	}
}
