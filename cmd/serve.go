package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/capstone-impacta/engagement-cli/internal/config"
	"github.com/capstone-impacta/engagement-cli/internal/dashboard"
	"github.com/capstone-impacta/engagement-cli/internal/resilience"
	"github.com/capstone-impacta/engagement-cli/internal/server"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the engagement dashboard API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if servePort != 0 {
			cfg.Server.Port = servePort
		}
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		srv, closeStore, err := newDashboardServer(ctx, cfg)
		if err != nil {
			return err
		}
		defer closeStore() //nolint:errcheck

		return srv.ListenAndServe(ctx)
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// newDashboardServer wires the store, breaker, cache and HTTP server. The
// returned func closes the store.
func newDashboardServer(ctx context.Context, c *config.Config) (*server.Server, func() error, error) {
	be, err := openReadBackend(ctx, c)
	if err != nil {
		return nil, nil, err
	}

	guarded := dashboard.NewGuardedSource(dashboard.NewStoreSource(be.facts), resilience.CircuitBreakerConfig{
		FailureThreshold: c.Dashboard.BreakerThreshold,
		Cooldown:         c.Dashboard.BreakerCooldown(),
	})
	src := dashboard.NewCachedSource(guarded, c.Dashboard.CacheTTL())
	srv := server.New(dashboard.NewService(src), server.Config{
		Port:        c.Server.Port,
		CORSOrigins: c.Server.CORSOrigins,
	})
	return srv, be.Close, nil
}
