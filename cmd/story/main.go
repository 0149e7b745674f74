package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/joeblew999/plat-story/internal/server"
)

// Options defines all CLI flags and env vars for the story server.
// Flags: --host, --port, --deck, --data-dir, --web-dir, --db-name, --watch, --verbose, --session-ttl
// Env vars: SERVICE_HOST, SERVICE_PORT, SERVICE_DECK, SERVICE_DATA_DIR, ...
type Options struct {
	Host       string `doc:"Host to bind to" default:"0.0.0.0"`
	Port       int    `doc:"Port to listen on" short:"p" default:"8086"`
	Deck       string `doc:"Story deck YAML file" short:"d" default:"data/story.yaml"`
	DataDir    string `doc:"Directory dataset files are read from" default:"data"`
	WebDir     string `doc:"Path to web/ directory" default:"web"`
	DBName     string `doc:"DuckDB database for query datasets (empty disables)" default:"story"`
	Watch      bool   `doc:"Reload the deck when its file changes" short:"w"`
	Verbose    bool   `doc:"Enable debug logging" short:"v"`
	SessionTTL int    `doc:"Minutes an idle reader session is kept (0 keeps them forever)" default:"30"`
}

func newLogger(opts *Options) *log.Logger {
	level := log.InfoLevel
	if opts.Verbose {
		level = log.DebugLevel
	}
	return log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
	})
}

func newServer(ctx context.Context, opts *Options, logger *log.Logger) (*server.Server, error) {
	return server.New(ctx, server.Config{
		Host:       opts.Host,
		Port:       fmt.Sprintf("%d", opts.Port),
		Deck:       opts.Deck,
		DataDir:    opts.DataDir,
		WebDir:     opts.WebDir,
		DBName:     opts.DBName,
		SessionTTL: time.Duration(opts.SessionTTL) * time.Minute,
		Logger:     logger,
	})
}

// mustServer builds a server for a one-shot subcommand, exiting on failure.
func mustServer(opts *Options) (*server.Server, *log.Logger) {
	logger := newLogger(opts)
	srv, err := newServer(context.Background(), opts, logger)
	if err != nil {
		logger.Fatal("loading story", "deck", opts.Deck, "err", err)
	}
	return srv, logger
}

func output(v any, asYAML bool) error {
	var out []byte
	var err error
	if asYAML {
		out, err = yaml.Marshal(v)
	} else {
		out, err = json.MarshalIndent(v, "", "  ")
	}
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

// serve runs the story server until ctx is cancelled or the listener
// fails. The server and its deck are closed before serve returns.
func serve(ctx context.Context, opts *Options, logger *log.Logger) error {
	srv, err := newServer(ctx, opts, logger)
	if err != nil {
		return fmt.Errorf("loading story %s: %w", opts.Deck, err)
	}
	defer srv.Close()

	if opts.Watch {
		go func() {
			if err := srv.Decks().Watch(ctx); err != nil {
				logger.Error("deck watcher stopped", "err", err)
			}
		}()
	}

	addr := fmt.Sprintf("%s:%d", opts.Host, opts.Port)
	displayHost := opts.Host
	if displayHost == "0.0.0.0" {
		displayHost = "localhost"
	}
	baseURL := fmt.Sprintf("http://%s:%d", displayHost, opts.Port)

	fmt.Println()
	fmt.Printf("plat-story server starting...\n")
	fmt.Printf("  Server:  %s\n", baseURL)
	fmt.Printf("  Deck:    %s\n", opts.Deck)
	fmt.Println()
	fmt.Printf("  Story:   %s/story\n", baseURL)
	fmt.Printf("  Docs:    %s/docs\n", baseURL)
	fmt.Printf("  OpenAPI: %s/openapi.json\n", baseURL)
	fmt.Println()

	httpServer := &http.Server{Addr: addr, Handler: srv}
	errc := make(chan error, 1)
	go func() { errc <- httpServer.ListenAndServe() }()

	select {
	case err := <-errc:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
	defer done()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

func main() {
	cli := humacli.New(func(hooks humacli.Hooks, opts *Options) {
		logger := newLogger(opts)
		ctx, cancel := context.WithCancel(context.Background())
		stopped := make(chan struct{})

		hooks.OnStart(func() {
			defer close(stopped)
			defer cancel()
			if err := serve(ctx, opts, logger); err != nil {
				logger.Error("story server failed", "err", err)
				os.Exit(1)
			}
		})

		// The CLI exits once OnStop returns, so wait for serve to drain
		// connections and close the deck.
		hooks.OnStop(func() {
			cancel()
			<-stopped
		})
	})

	cli.Root().Use = "story"
	cli.Root().Short = "Scrollytelling map server"
	cli.Root().Version = "0.1.0"

	// spec subcommand: export OpenAPI spec
	specCmd := &cobra.Command{
		Use:   "spec",
		Short: "Export OpenAPI spec (JSON by default, --yaml for YAML)",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			srv, logger := mustServer(opts)
			defer srv.Close()
			useYAML, _ := cmd.Flags().GetBool("yaml")
			if err := output(srv.OpenAPI(), useYAML); err != nil {
				logger.Fatal("marshaling spec", "err", err)
			}
		}),
	}
	specCmd.Flags().BoolP("yaml", "y", false, "Output as YAML instead of JSON")
	cli.Root().AddCommand(specCmd)

	// validate subcommand: compile the deck and dry-run every slide
	cli.Root().AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Check that every slide of the deck renders",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			srv, logger := mustServer(opts)
			defer srv.Close()
			st := srv.Decks().Story()
			for _, w := range st.Warnings {
				logger.Warn(w)
			}
			if err := st.Check(logger); err != nil {
				logger.Error("deck has slides that cannot render", "err", err)
				os.Exit(1)
			}
			logger.Info("deck ok", "slides", len(st.Slides), "datasets", len(st.Datasets))
		}),
	})

	// plan subcommand: print the map commands one slide issues
	planCmd := &cobra.Command{
		Use:   "plan <slide-id>",
		Short: "Print the map commands a slide issues",
		Args:  cobra.ExactArgs(1),
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			srv, logger := mustServer(opts)
			defer srv.Close()
			width, _ := cmd.Flags().GetFloat64("width")
			useYAML, _ := cmd.Flags().GetBool("yaml")

			cmds, err := srv.Decks().Story().Plan(args[0], width, logger)
			if err != nil {
				logger.Error("planning slide", "slide", args[0], "err", err)
				os.Exit(1)
			}
			if err := output(cmds, useYAML); err != nil {
				logger.Fatal("marshaling plan", "err", err)
			}
		}),
	}
	planCmd.Flags().Float64("width", 1024, "Viewport width in pixels")
	planCmd.Flags().BoolP("yaml", "y", false, "Output as YAML instead of JSON")
	cli.Root().AddCommand(planCmd)

	cli.Run()
}
