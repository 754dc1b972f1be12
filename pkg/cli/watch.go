package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/yorozuya-cybersecurity/vulnwatch/internal/config"
	"github.com/yorozuya-cybersecurity/vulnwatch/internal/poller"
	"github.com/yorozuya-cybersecurity/vulnwatch/internal/render"
)

func newWatchCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "watch",
		Short:   "Poll the index and report new records until interrupted",
		Example: "vulnwatch watch --interval 10s --top 5",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, st, err := loadStore(v)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			console := render.NewConsole(cmd.OutOrStdout())
			opts := []poller.Option{poller.WithNotifier(console)}

			if cfg.MetricsAddr != "" {
				metrics := poller.NewMetrics()
				opts = append(opts, poller.WithMetrics(metrics))
				go serveMetrics(ctx, cfg.MetricsAddr, metrics)
			}

			p, err := poller.New(st, cfg.PollerConfig(), opts...)
			if err != nil {
				return err
			}

			info, err := p.Check(ctx)
			if err != nil {
				return err
			}
			pc := p.Config()
			fmt.Fprintf(cmd.OutOrStdout(), "🚀 Watching %s/%s on %s %s (every %s, top %d). Press Ctrl+C to stop.\n",
				cfg.Endpoint, pc.Index, info.Distribution, info.Version, pc.Interval, pc.TopK)

			if err := p.Run(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "👋 Stopped watching")
			return nil
		},
	}

	cmd.Flags().Duration("interval", poller.DefaultInterval, "Time between polls")
	cmd.Flags().Duration("retry-delay", poller.DefaultRetryDelay, "Wait after a failed poll")
	cmd.Flags().Int("top", poller.DefaultTopK, "Number of recent records shown")
	cmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9108)")

	_ = v.BindPFlag(config.KeyInterval, cmd.Flags().Lookup("interval"))
	_ = v.BindPFlag(config.KeyRetryDelay, cmd.Flags().Lookup("retry-delay"))
	_ = v.BindPFlag(config.KeyTop, cmd.Flags().Lookup("top"))
	_ = v.BindPFlag(config.KeyMetricsAddr, cmd.Flags().Lookup("metrics-addr"))
	return cmd
}

func serveMetrics(ctx context.Context, addr string, metrics *poller.Metrics) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Infof("serving metrics on %s/metrics", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Errorf("metrics server: %v", err)
	}
}
