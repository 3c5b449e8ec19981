package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/orian/querybuilder/models"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

var configFile string

var rootCmd = &cobra.Command{
	Use:   "querybuilder",
	Short: "Compose, send and inspect search API requests",
	Long: `querybuilder serves an editor for search API requests.

Parameters are edited as a typed tree that is kept in sync with the JSON
body (POST) or query string (GET) of the request. Sent requests and their
responses are kept in a request log that can be tagged and starred.`,
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE:  runServe,
}

var traceExportCmd = &cobra.Command{
	Use:   "trace-export [response.json]",
	Short: "Convert a traced search response into a Jaeger trace file",
	Long: `Reads a search response produced with trace.level set and writes a
Jaeger UI compatible trace document.

Example:
  querybuilder trace-export response.json -o trace.json`,
	Args: cobra.ExactArgs(1),
	RunE: runTraceExport,
}

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the parameter schema as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		return writeIndented(cmd.OutOrStdout(), models.Root())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default: ./querybuilder.yaml)")

	traceExportCmd.Flags().StringP("output", "o", "", "output file (default: stdout)")
	traceExportCmd.Flags().String("trace-id", "", "trace id (default: random)")

	rootCmd.AddCommand(serveCmd, traceExportCmd, schemaCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := LoadConfig(configFile)
	if err != nil {
		return err
	}

	logger := newLogger(cfg.Log)
	defer logger.Sync()

	storage, err := NewDuckDBStorage(cfg.History.Path, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer storage.Close()
	if cfg.History.Path == "" {
		logger.Info("request log kept in memory")
	} else {
		logger.Info("request log initialized", zap.String("path", cfg.History.Path))
	}

	var metrics *Metrics
	if cfg.Metrics.Enabled {
		metrics = NewMetrics()
	}

	submitter := NewSubmitter(cfg.Search.Timeout, logger)
	sessions := NewSessionManager(cfg.Search.DefaultURL, submitter, storage, metrics, logger)
	server := NewServer(cfg, sessions, storage, submitter, metrics, logger)

	httpServer := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           server.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting server",
			zap.String("addr", "http://localhost:"+cfg.Server.Port),
			zap.String("search_url", cfg.Search.DefaultURL),
		)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := httpServer.Shutdown(shutdownCtx)
		sessions.Shutdown()
		return err
	})

	return g.Wait()
}

func runTraceExport(cmd *cobra.Command, args []string) error {
	response, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}

	traceID, _ := cmd.Flags().GetString("trace-id")
	if traceID == "" {
		traceID = newTraceID()
	}

	doc, err := models.ExportTrace(response, traceID, time.Now())
	if err != nil {
		return err
	}

	output, _ := cmd.Flags().GetString("output")
	if output == "" {
		return writeIndented(cmd.OutOrStdout(), doc)
	}

	f, err := os.Create(output)
	if err != nil {
		return err
	}
	if err := writeIndented(f, doc); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func writeIndented(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = w.Write(append(b, '\n'))
	return err
}
