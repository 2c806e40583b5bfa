package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/mnemo/internal/metrics"
	"github.com/felixgeelhaar/mnemo/internal/server"
)

var (
	listenAddr string
	noMetrics  bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve conversations over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		e, err := openEnv(newObserver(os.Stderr))
		if err != nil {
			return err
		}
		defer e.close()

		m, err := e.model()
		if err != nil {
			return err
		}
		addr := e.cfg.Listen
		if listenAddr != "" {
			addr = listenAddr
		}

		opts := server.Options{Store: e.store, Observer: e.obs}
		if !noMetrics {
			opts.Metrics = metrics.New()
		}
		srv := server.New(e.registry(m), opts)
		return srv.ListenAndServe(ctx, addr)
	},
}

func init() {
	RootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVarP(&listenAddr, "listen", "l", "", "Listen address (default from config)")
	serveCmd.Flags().BoolVar(&noMetrics, "no-metrics", false, "Do not serve Prometheus metrics on /metrics")
}
