package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/derm-match/internal/config"
	"github.com/kozaktomas/derm-match/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the analysis API server",
	Long: `Start the Derm Match API server.
The server accepts image uploads on /api/v1/analyze, runs the quality gate,
face localization, embedding and similarity search, and returns ranked
matches from the reference corpus.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 0, "Port to listen on (defaults to PORT or 8080)")
	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind to")
}

// resolveServeHostPort resolves port and host from flags and environment.
func resolveServeHostPort(cmd *cobra.Command, cfg *config.Config) (int, string) {
	port := mustGetInt(cmd, "port")
	host := mustGetString(cmd, "host")

	if port == 0 {
		port = cfg.Server.Port
	}
	if envHost := os.Getenv("WEB_HOST"); envHost != "" {
		host = envHost
	}
	return port, host
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p, err := newPipeline(ctx, cfg)
	if err != nil {
		return err
	}
	defer p.close()

	// A failed initial load is not fatal: the server starts degraded and
	// reports index_unavailable until a reload succeeds.
	if n, err := p.loader.Reload(ctx); err != nil {
		fmt.Printf("Warning: initial corpus load failed: %v\n", err)
		fmt.Printf("Serving degraded until /api/v1/index/reload succeeds\n")
	} else {
		fmt.Printf("Corpus loaded: %d records, dimension %d\n", n, p.index.Dim())
	}

	if cfg.Corpus.ReloadInterval > 0 {
		fmt.Printf("Periodic corpus reload every %s\n", cfg.Corpus.ReloadInterval)
		go p.loader.Run(ctx, cfg.Corpus.ReloadInterval)
	}

	port, host := resolveServeHostPort(cmd, cfg)
	server := web.NewServer(cfg, port, host, web.Deps{
		Analyzer:  p.analyzer,
		Index:     p.index,
		Localizer: p.localizer,
		Embedder:  p.embedder,
		Loader:    p.loader,
	})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	fmt.Printf("Starting Derm Match API on http://%s:%d\n", host, port)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
