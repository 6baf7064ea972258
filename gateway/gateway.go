// Package gateway orchestrates the access-control flow: challenge
// issuance, payment verification, credential issuance, and gated device
// commands. It is the only component that knows all the others; data
// flows one direction per request and nothing calls back into it.
package gateway

import (
	"context"
	"time"

	"github.com/x402labs/devicegate/challenge"
	"github.com/x402labs/devicegate/device"
	"github.com/x402labs/devicegate/logger"
	"github.com/x402labs/devicegate/metrics"
	"github.com/x402labs/devicegate/session"
	"github.com/x402labs/devicegate/types"
	"github.com/x402labs/devicegate/verification"
)

// Device actions.
const (
	ActionLock   = "lock"
	ActionUnlock = "unlock"
	ActionBrew   = "brew"
)

// DefaultUnlockDuration applies when an unlock command carries no
// explicit duration.
const DefaultUnlockDuration = 5 * time.Minute

// Config wires the gateway's collaborators.
type Config struct {
	Catalog    *device.Catalog
	Challenges *challenge.Store
	Verifier   *verification.Service
	Sessions   *session.Issuer
	States     *device.StateMachine
	Sender     device.CommandSender
	Methods    map[types.PaymentMethod]types.MethodSpec

	SessionTTL    time.Duration
	DefaultUnlock time.Duration

	Logger  logger.Logger
	Metrics metrics.Recorder
}

// Gateway implements the request flow of the access protocol.
type Gateway struct {
	catalog    *device.Catalog
	challenges *challenge.Store
	verifier   *verification.Service
	sessions   *session.Issuer
	states     *device.StateMachine
	sender     device.CommandSender
	methods    map[types.PaymentMethod]types.MethodSpec

	sessionTTL    time.Duration
	defaultUnlock time.Duration

	log logger.Logger
	rec metrics.Recorder
}

// New creates a gateway from its collaborators.
func New(cfg Config) *Gateway {
	if cfg.Logger == nil {
		cfg.Logger = logger.Noop{}
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NoopRecorder{}
	}
	if cfg.DefaultUnlock <= 0 {
		cfg.DefaultUnlock = DefaultUnlockDuration
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = session.DefaultTTL
	}
	if cfg.Sender == nil {
		cfg.Sender = device.LogSender{Log: cfg.Logger}
	}
	return &Gateway{
		catalog:       cfg.Catalog,
		challenges:    cfg.Challenges,
		verifier:      cfg.Verifier,
		sessions:      cfg.Sessions,
		states:        cfg.States,
		sender:        cfg.Sender,
		methods:       cfg.Methods,
		sessionTTL:    cfg.SessionTTL,
		defaultUnlock: cfg.DefaultUnlock,
		log:           cfg.Logger,
		rec:           cfg.Metrics,
	}
}

// Device looks up a catalog entry.
func (g *Gateway) Device(deviceID string) (device.Device, error) {
	dev, ok := g.catalog.Get(deviceID)
	if !ok {
		return device.Device{}, types.E(types.CodeDeviceNotFound, "device %s not found", deviceID)
	}
	return dev, nil
}

// Devices lists the catalog.
func (g *Gateway) Devices() []device.Device {
	return g.catalog.All()
}

// Supported lists the configured payment method variants.
func (g *Gateway) Supported() []types.SupportedMethod {
	out := make([]types.SupportedMethod, 0, len(g.methods))
	for _, spec := range g.methods {
		out = append(out, spec.Supported())
	}
	return out
}

// RequestChallenge issues a fresh challenge for (device, wallet).
func (g *Gateway) RequestChallenge(ctx context.Context, deviceID, wallet string) (types.Challenge, error) {
	if wallet == "" {
		return types.Challenge{}, types.E(types.CodeValidation, "walletAddress is required")
	}
	if _, err := g.Device(deviceID); err != nil {
		return types.Challenge{}, err
	}

	ch, err := g.challenges.Create(ctx, deviceID, wallet)
	if err != nil {
		return types.Challenge{}, err
	}
	g.rec.IncCounter("challenge_issued", map[string]string{"method": ""})
	return ch, nil
}

// VerifyParams names the inputs of VerifyAndIssue. Method is optional;
// when present it must name the device's configured payment method.
type VerifyParams struct {
	DeviceID      string
	WalletAddress string
	ChallengeID   string
	TxID          string
	Action        string
	Method        types.PaymentMethod
}

// IssueResult is the outcome of a verification attempt. On failure the
// requirement descriptor tells the client exactly what to pay and where.
type IssueResult struct {
	Verified    bool
	Credential  string
	ExpiresAt   time.Time
	Requirement *types.PaymentRequirement
	Reason      string
	Code        string
}

// VerifyAndIssue consumes the challenge, verifies the payment under the
// device's configured method, and on success mints a session credential
// scoped to the device. Every failure path is fail-closed: no credential
// leaves here unless the verifier said yes.
func (g *Gateway) VerifyAndIssue(ctx context.Context, p VerifyParams) (*IssueResult, error) {
	if p.WalletAddress == "" || p.ChallengeID == "" {
		return nil, types.E(types.CodeValidation, "walletAddress and challengeId are required")
	}

	dev, err := g.Device(p.DeviceID)
	if err != nil {
		return nil, err
	}
	if p.Method != "" && p.Method != dev.Method {
		return nil, types.E(types.CodeValidation, "device %s accepts %s, not %s", dev.ID, dev.Method, p.Method)
	}

	// Consuming the challenge is atomic with the verification decision:
	// a second presentation of the same challenge fails here.
	if err := g.challenges.Consume(ctx, p.ChallengeID, p.DeviceID, p.WalletAddress); err != nil {
		return nil, err
	}

	action := g.resolveAction(dev, p.Action)
	requirement, spec, err := g.requirementFor(dev, action)
	if err != nil {
		return nil, err
	}

	proof := types.PaymentProof{WalletAddress: p.WalletAddress, TxID: p.TxID}
	result, err := g.verifier.Verify(ctx, proof, *requirement, spec)
	if err != nil {
		return nil, types.E(types.CodeExternalFailure, "verification infrastructure failure: %v", err)
	}

	if !result.Verified {
		if result.Code == types.CodeProofReused {
			return nil, types.E(types.CodeProofReused, "%s", result.Reason)
		}
		return &IssueResult{
			Verified:    false,
			Requirement: requirement,
			Reason:      result.Reason,
			Code:        result.Code,
		}, nil
	}

	credential, claims, err := g.sessions.Issue(p.WalletAddress, p.DeviceID, action, g.sessionTTL)
	if err != nil {
		return nil, err
	}

	g.rec.IncCounter("credential_issued", map[string]string{"method": string(spec.Method)})
	g.log.Info("session credential issued", map[string]any{
		"deviceId": p.DeviceID,
		"wallet":   p.WalletAddress,
		"action":   action,
		"method":   string(spec.Method),
	})

	return &IssueResult{
		Verified:   true,
		Credential: credential,
		ExpiresAt:  claims.ExpiresAt.Time,
	}, nil
}

// CommandResult reports an executed device command.
type CommandResult struct {
	Action           string
	DeviceID         string
	Timestamp        time.Time
	SessionExpiresAt time.Time
	UnlockExpiresAt  time.Time
}

// Execute validates the bearer credential against the device, applies
// the state transition, and dispatches the command to the device
// transport. Transport delivery is fire-and-forget: its failure is
// logged but does not roll back device state.
func (g *Gateway) Execute(ctx context.Context, deviceID, action string, duration time.Duration, credential string) (*CommandResult, error) {
	dev, err := g.Device(deviceID)
	if err != nil {
		return nil, err
	}
	if !dev.Supports(action) {
		return nil, types.E(types.CodeValidation, "device %s does not support action %q", deviceID, action)
	}

	claims, err := g.sessions.Validate(credential)
	if err != nil {
		return nil, err
	}
	// A credential is valid only for the device embedded in it.
	if claims.DeviceID() != deviceID {
		return nil, types.E(types.CodeWrongDevice, "credential was issued for device %s", claims.DeviceID())
	}
	if action != ActionLock && claims.Scope != action {
		return nil, types.E(types.CodeUnauthorized, "credential scope %q does not cover action %q", claims.Scope, action)
	}

	if duration <= 0 {
		duration = g.defaultUnlock
	}

	result := &CommandResult{
		Action:           action,
		DeviceID:         deviceID,
		Timestamp:        time.Now(),
		SessionExpiresAt: claims.ExpiresAt.Time,
	}

	switch action {
	case ActionLock:
		g.states.Lock(deviceID)
	case ActionUnlock:
		result.UnlockExpiresAt = g.states.Unlock(deviceID, duration)
	default:
		// Actions like brew use the device without moving the lock state.
	}

	if err := g.sender.Send(ctx, device.Command{DeviceID: deviceID, Action: action, Duration: duration}); err != nil {
		g.log.Warn("device transport failure", map[string]any{
			"deviceId": deviceID,
			"action":   action,
			"error":    err.Error(),
		})
	}

	g.rec.IncCounter("command_executed", map[string]string{"method": ""})
	return result, nil
}

// StatusResult is a reconciled device status, optionally annotated with
// the presenting session.
type StatusResult struct {
	types.DeviceStatus
	Session *session.Claims
}

// Status reads the device's reconciled lock state. A bearer credential
// is optional; when present and valid for this device, its claims ride
// along in the result.
func (g *Gateway) Status(_ context.Context, deviceID, credential string) (*StatusResult, error) {
	if _, err := g.Device(deviceID); err != nil {
		return nil, err
	}

	status := g.states.Read(deviceID)
	out := &StatusResult{DeviceStatus: status}

	if credential != "" {
		if claims, err := g.sessions.Validate(credential); err == nil && claims.DeviceID() == deviceID {
			out.Session = claims
		}
	}
	return out, nil
}

// resolveAction defaults a missing action to unlock when the device
// supports it, else the device's first capability.
func (g *Gateway) resolveAction(dev device.Device, action string) string {
	if action != "" {
		return action
	}
	if dev.Supports(ActionUnlock) {
		return ActionUnlock
	}
	if len(dev.Capabilities) > 0 {
		return dev.Capabilities[0]
	}
	return ActionUnlock
}

// requirementFor derives the immutable payment requirement for a
// (device, action) pair from the pricing table and the device's payment
// method configuration.
func (g *Gateway) requirementFor(dev device.Device, action string) (*types.PaymentRequirement, types.MethodSpec, error) {
	spec, ok := g.methods[dev.Method]
	if !ok {
		return nil, types.MethodSpec{}, types.E(types.CodeUnsupportedMethod, "payment method %s is not configured", dev.Method)
	}

	human, ok := dev.PriceFor(action)
	if !ok {
		return nil, types.MethodSpec{}, types.E(types.CodeValidation, "device %s has no price for action %q", dev.ID, action)
	}

	minor, err := minorUnits(human, spec.Decimals)
	if err != nil {
		return nil, types.MethodSpec{}, types.E(types.CodeValidation, "bad price for %s/%s: %v", dev.ID, action, err)
	}

	return &types.PaymentRequirement{
		Method:      spec.Method,
		Network:     spec.Network,
		Symbol:      spec.Symbol,
		Token:       spec.Token,
		Receiver:    spec.Receiver,
		AmountMinor: minor,
		AmountHuman: human,
		Decimals:    spec.Decimals,
	}, spec, nil
}
