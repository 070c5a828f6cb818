package main

import (
	"context"
	"crypto/tls"

	"github.com/matthewpi/certwatcher"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// newTLSConfig loads the configured key pair and keeps it fresh until ctx is
// done. A certificate that fails to load is an error here, not on the first
// handshake.
func newTLSConfig(ctx context.Context, cfg TLSConfig, log *zap.SugaredLogger) (*tls.Config, error) {
	watcher, err := certwatcher.New(certwatcher.Options{})
	if err != nil {
		return nil, errors.Wrap(err, "creating certificate watcher")
	}
	if err := watcher.Reconfigure(ctx, cfg.Cert, cfg.Key); err != nil {
		return nil, errors.Wrap(err, "loading TLS certificate")
	}
	go func() {
		watcher.Start(ctx)
		log.Debug("Certificate watcher stopped")
	}()

	return &tls.Config{
		MinVersion:     tls.VersionTLS12,
		GetCertificate: watcher.GetCertificate,
	}, nil
}
