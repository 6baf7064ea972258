// Package devicegate grants time-boxed access to physical devices
// contingent on verified cryptocurrency payments: challenge issuance,
// payment verification across EVM and Solana chains, session-credential
// issuance, and the device lock/unlock state machine.
package devicegate

import (
	"context"
	"time"

	"github.com/x402labs/devicegate/challenge"
	"github.com/x402labs/devicegate/clients"
	"github.com/x402labs/devicegate/device"
	"github.com/x402labs/devicegate/gateway"
	"github.com/x402labs/devicegate/logger"
	"github.com/x402labs/devicegate/metrics"
	"github.com/x402labs/devicegate/session"
	"github.com/x402labs/devicegate/settlement"
	"github.com/x402labs/devicegate/store"
	"github.com/x402labs/devicegate/types"
	"github.com/x402labs/devicegate/utils"
	"github.com/x402labs/devicegate/verification"
)

// Version information.
const (
	Version         = "1.0.0"
	ProtocolVersion = 1
)

// Config is the top-level service configuration.
type Config struct {
	// Methods lists the payment method variants to enable. Each variant
	// carries its chain family, RPC endpoint, token and strategy.
	Methods []types.MethodSpec

	// SessionSecret signs session credentials. Required.
	SessionSecret string

	SessionTTL    time.Duration
	ChallengeTTL  time.Duration
	DefaultUnlock time.Duration

	// Timeout bounds each outbound chain RPC call; Retries bounds
	// re-attempts after transient failures.
	Timeout time.Duration
	Retries int
}

// Gate is the assembled service facade.
type Gate struct {
	gateway *gateway.Gateway
	settler *settlement.Service
	chains  []clients.ChainClient

	// collaborators swappable via options, resolved before wiring
	kv      store.Store
	catalog *device.Catalog
	sender  device.CommandSender
	log     logger.Logger
	rec     metrics.Recorder
}

// New wires a Gate from configuration. Options override the default
// in-memory store, catalog, transport stub, logger and metrics.
func New(cfg Config, opts ...Option) (*Gate, error) {
	if cfg.SessionSecret == "" {
		return nil, types.E(types.CodeValidation, "session secret is required")
	}
	if cfg.Retries < 0 {
		cfg.Retries = verification.DefaultRetries
	}

	g := &Gate{
		kv:      store.NewMemoryStore(),
		catalog: device.DefaultCatalog(),
		log:     logger.Noop{},
		rec:     metrics.NoopRecorder{},
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.sender == nil {
		g.sender = device.LogSender{Log: g.log}
	}

	verifier := verification.NewService(g.kv, cfg.Timeout, cfg.Retries, g.log, g.rec)
	settler := settlement.NewService(cfg.Timeout, g.log)

	methods := make(map[types.PaymentMethod]types.MethodSpec, len(cfg.Methods))
	families := make(map[types.ChainFamily]clients.ChainClient)
	for _, spec := range cfg.Methods {
		if err := utils.ValidateStruct(spec); err != nil {
			return nil, types.E(types.CodeValidation, "method %s: %v", spec.Method, err)
		}
		methods[spec.Method] = spec

		if spec.Strategy == types.StrategyAlwaysApprove {
			continue
		}
		if _, ok := families[spec.Family]; ok {
			continue
		}
		chain, err := newChainClient(spec)
		if err != nil {
			return nil, err
		}
		families[spec.Family] = chain
		verifier.AddClient(chain)
		settler.AddClient(chain)
		g.chains = append(g.chains, chain)
	}

	g.settler = settler
	g.gateway = gateway.New(gateway.Config{
		Catalog:       g.catalog,
		Challenges:    challenge.NewStore(g.kv, cfg.ChallengeTTL, g.log),
		Verifier:      verifier,
		Sessions:      session.NewIssuer([]byte(cfg.SessionSecret), cfg.SessionTTL),
		States:        device.NewStateMachine(),
		Sender:        g.sender,
		Methods:       methods,
		SessionTTL:    cfg.SessionTTL,
		DefaultUnlock: cfg.DefaultUnlock,
		Logger:        g.log,
		Metrics:       g.rec,
	})
	return g, nil
}

func newChainClient(spec types.MethodSpec) (clients.ChainClient, error) {
	switch spec.Family {
	case types.ChainEVM:
		return clients.NewEVMClient(spec.Network, spec.RPCURL)
	case types.ChainSolana:
		return clients.NewSolanaClient(spec.Network, spec.RPCURL)
	default:
		return nil, types.E(types.CodeUnsupportedMethod, "unsupported chain family %q", spec.Family)
	}
}

// Device looks up a catalog entry.
func (g *Gate) Device(deviceID string) (device.Device, error) {
	return g.gateway.Device(deviceID)
}

// Devices lists the catalog.
func (g *Gate) Devices() []device.Device {
	return g.gateway.Devices()
}

// Supported lists the configured payment method variants.
func (g *Gate) Supported() []types.SupportedMethod {
	return g.gateway.Supported()
}

// RequestChallenge issues a single-use challenge for (device, wallet).
func (g *Gate) RequestChallenge(ctx context.Context, deviceID, wallet string) (types.Challenge, error) {
	return g.gateway.RequestChallenge(ctx, deviceID, wallet)
}

// VerifyAndIssue verifies a payment proof and mints a session credential.
func (g *Gate) VerifyAndIssue(ctx context.Context, p gateway.VerifyParams) (*gateway.IssueResult, error) {
	return g.gateway.VerifyAndIssue(ctx, p)
}

// Execute runs a credentialed device command.
func (g *Gate) Execute(ctx context.Context, deviceID, action string, duration time.Duration, credential string) (*gateway.CommandResult, error) {
	return g.gateway.Execute(ctx, deviceID, action, duration, credential)
}

// Status reads a device's reconciled lock state.
func (g *Gate) Status(ctx context.Context, deviceID, credential string) (*gateway.StatusResult, error) {
	return g.gateway.Status(ctx, deviceID, credential)
}

// Broadcast forwards a client-signed raw transaction to its chain.
func (g *Gate) Broadcast(ctx context.Context, family types.ChainFamily, rawTx string) (*settlement.Result, error) {
	return g.settler.Broadcast(ctx, family, rawTx)
}

// Close releases chain client connections.
func (g *Gate) Close() {
	for _, c := range g.chains {
		c.Close()
	}
}
