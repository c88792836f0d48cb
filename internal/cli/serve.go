package cli

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/geobr-tools/munimerge/pkg/httputil"
	"github.com/geobr-tools/munimerge/pkg/ibge"
	"github.com/geobr-tools/munimerge/pkg/pipeline"
	"github.com/geobr-tools/munimerge/pkg/server"
)

// newServeCmd creates the "serve" command: the pipeline behind an HTTP API.
func newServeCmd() *cobra.Command {
	var (
		configPath string
		addr       string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the merge pipeline over HTTP",
		Long: `Serve exposes the pipeline through an HTTP API: /status for run
metadata, /geojson/original and /geojson/merged for the feature
collections, and /refresh to force recomputation. Concurrent requests
for the same parameters share one pipeline run.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := loggerFromContext(ctx)

			cfg, err := server.LoadConfig(configPath)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Addr = addr
			}

			resultCache, err := cfg.Cache.OpenCache(ctx)
			if err != nil {
				return fmt.Errorf("open cache backend: %w", err)
			}
			defer resultCache.Close()

			httpCache, err := httputil.NewCache(cfg.Cache.Dir, responseTTL)
			if err != nil {
				return fmt.Errorf("open response cache: %w", err)
			}

			source := ibge.NewClient(httpCache, logger)
			runner := pipeline.NewRunner(source, resultCache, cfg.Cache.Keyer())
			runner.TTL = cfg.Cache.TTL.Duration

			srv := server.New(cfg, runner, logger)
			printInfo("Listening on %s", cfg.Addr)
			if err := srv.ListenAndServe(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			printSuccess("Server stopped")
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to TOML configuration file")
	cmd.Flags().StringVar(&addr, "addr", "", "listen address, overrides the config file")
	return cmd
}
