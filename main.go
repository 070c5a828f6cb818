package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

func main() {
	cfg, err := ParseConfig(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "pricehistoryd: %v\n", err)
		os.Exit(2)
	}

	log, err := newLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "pricehistoryd: %v\n", err)
		os.Exit(2)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatalw("Exiting", "error", err)
	}
}

func run(ctx context.Context, cfg *Config, log *zap.SugaredLogger) error {
	store, err := OpenStore(cfg.Store)
	if err != nil {
		return err
	}
	defer store.Close()

	if cfg.Auth.Owner == "" {
		log.Warn("No --auth.owner configured, every write will be rejected")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := NewMetrics(reg)

	broker := NewBroker()
	broker.OnDrop(metrics.DroppedEvents.Inc)

	host := NewHost(cfg.History, store, NewAuthorizer(cfg.Auth.Owner), broker, metrics, log)

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           newHandler(host, broker, reg, log),
		ReadHeaderTimeout: 10 * time.Second,
		// Event streams end when ctx is cancelled instead of holding up Shutdown.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	if cfg.TLS.Cert != "" {
		srv.TLSConfig, err = newTLSConfig(ctx, cfg.TLS, log)
		if err != nil {
			return err
		}
	}

	errc := make(chan error, 1)
	go func() {
		log.Infow("Serving", "addr", cfg.Listen, "tls", srv.TLSConfig != nil,
			"key", cfg.History.Key, "depth", cfg.History.Depth, "store", cfg.Store.Backend)
		if srv.TLSConfig != nil {
			errc <- srv.ListenAndServeTLS("", "")
		} else {
			errc <- srv.ListenAndServe()
		}
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "shutting down")
	}
	log.Info("Stopped")
	return nil
}
