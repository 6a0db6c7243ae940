package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/microlens-cli/internal/analysis"
	"github.com/KaramelBytes/microlens-cli/internal/render"
	"github.com/KaramelBytes/microlens-cli/internal/server"
)

var (
	servePort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the analysis pipeline over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		sc, err := serverConfig()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("port") {
			sc.Port = servePort
		}
		log := logger()

		h, err := server.NewHandler(sc, render.New(), log)
		if err != nil {
			return err
		}
		srv := server.New(sc, log, server.NewRouter(h, sc, log))

		errCh := make(chan error, 1)
		go func() { errCh <- srv.Start() }()

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "✓ Server running on http://localhost:%d\n", sc.Port)
		fmt.Fprintln(out, "\nAvailable endpoints:")
		fmt.Fprintln(out, "  GET  /health")
		fmt.Fprintln(out, "  POST /analyze")
		fmt.Fprintln(out, "  GET  /health-tips")
		fmt.Fprintln(out, "  GET  /food-sources")
		fmt.Fprintln(out, "\nPress Ctrl+C to stop")

		select {
		case err := <-errCh:
			return err
		case <-cmd.Context().Done():
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		log.Info("server stopped")
		return nil
	},
}

// serverConfig maps the global configuration onto the HTTP adapter settings.
func serverConfig() (server.Config, error) {
	sc := server.Config{
		Port:        5000,
		RateLimit:   5,
		RateBurst:   10,
		CacheSize:   64,
		MaxUploadMB: 16,
		Schema:      cfg.Schema(),
		Fidelity:    analysis.FidelityFull,
	}
	if cfg == nil {
		return sc, nil
	}
	sc.Port = cfg.ServerPort
	sc.RateLimit = cfg.ServerRateLimit
	sc.RateBurst = cfg.ServerRateBurst
	sc.CacheSize = cfg.CacheSize
	sc.MaxUploadMB = cfg.MaxUploadMB
	sc.AllowedOrigins = cfg.AllowedOrigins
	f, err := analysis.ParseFidelity(cfg.DefaultFidelity)
	if err != nil {
		return sc, err
	}
	sc.Fidelity = f
	return sc, nil
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 5000, "listen port (overrides config)")
}
