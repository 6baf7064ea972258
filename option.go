package devicegate

import (
	"github.com/x402labs/devicegate/device"
	"github.com/x402labs/devicegate/logger"
	"github.com/x402labs/devicegate/metrics"
	"github.com/x402labs/devicegate/store"
)

// Option customizes a Gate at construction time.
type Option func(*Gate)

// WithLogger replaces the default noop logger.
func WithLogger(l logger.Logger) Option {
	return func(g *Gate) {
		g.log = l
	}
}

// WithMetrics replaces the default noop recorder.
func WithMetrics(r metrics.Recorder) Option {
	return func(g *Gate) {
		g.rec = r
	}
}

// WithStore replaces the default in-memory store backing challenges and
// the used-proofs set, e.g. with Redis for multi-instance deployments.
func WithStore(s store.Store) Option {
	return func(g *Gate) {
		g.kv = s
	}
}

// WithCatalog replaces the built-in device catalog.
func WithCatalog(c *device.Catalog) Option {
	return func(g *Gate) {
		g.catalog = c
	}
}

// WithCommandSender replaces the logging stub device transport.
func WithCommandSender(s device.CommandSender) Option {
	return func(g *Gate) {
		g.sender = s
	}
}
