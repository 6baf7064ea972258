// Package verification decides whether a payment requirement has been
// satisfied. It is polymorphic over two axes: the chain adapter (EVM or
// Solana) and the verification strategy (balance inspection, on-chain
// transaction inspection, or the explicit always-approve test variant).
//
// Every failure path (bad input, RPC timeout, malformed response,
// insufficient amount, replayed proof) resolves to a result with
// Verified=false and a diagnostic reason. Verification never crashes the
// request and never fails open.
package verification

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/x402labs/devicegate/clients"
	"github.com/x402labs/devicegate/logger"
	"github.com/x402labs/devicegate/metrics"
	"github.com/x402labs/devicegate/store"
	"github.com/x402labs/devicegate/types"
)

const (
	// DefaultTimeout bounds each outbound chain RPC call.
	DefaultTimeout = 30 * time.Second

	// DefaultRetries bounds re-attempts after transient RPC failures.
	DefaultRetries = 2

	retryDelay = 500 * time.Millisecond

	proofKeyPrefix = "proof:"
)

// Service verifies payments across the configured chain families and
// maintains the used-proofs set that prevents a transaction from
// satisfying more than one requirement.
type Service struct {
	chains  map[types.ChainFamily]clients.ChainClient
	proofs  store.Store
	timeout time.Duration
	retries int
	log     logger.Logger
	rec     metrics.Recorder
}

// NewService creates a verification service. The proofs store holds the
// used-proofs set; entries are kept without expiry.
func NewService(proofs store.Store, timeout time.Duration, retries int, log logger.Logger, rec metrics.Recorder) *Service {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if retries < 0 {
		retries = DefaultRetries
	}
	if log == nil {
		log = logger.Noop{}
	}
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}
	return &Service{
		chains:  make(map[types.ChainFamily]clients.ChainClient),
		proofs:  proofs,
		timeout: timeout,
		retries: retries,
		log:     log,
		rec:     rec,
	}
}

// AddClient registers a chain adapter. One client per family.
func (s *Service) AddClient(c clients.ChainClient) {
	s.chains[c.Family()] = c
}

// SupportsFamily reports whether a chain adapter is configured for the family.
func (s *Service) SupportsFamily(f types.ChainFamily) bool {
	_, ok := s.chains[f]
	return ok
}

// Verify decides whether proof satisfies requirement under the method's
// strategy. The returned error is only non-nil for infrastructure
// problems with the proofs store itself; every verification outcome,
// including chain RPC failures, is expressed in the result.
func (s *Service) Verify(
	ctx context.Context,
	proof types.PaymentProof,
	requirement types.PaymentRequirement,
	spec types.MethodSpec,
) (*types.VerificationResult, error) {
	start := time.Now()
	labels := map[string]string{"method": string(spec.Method)}
	defer func() {
		s.rec.ObserveLatency("verify", time.Since(start), labels)
	}()

	var result *types.VerificationResult
	var err error

	switch spec.Strategy {
	case types.StrategyAlwaysApprove:
		result = &types.VerificationResult{
			Verified: true,
			Reason:   "test mode: verification skipped by configuration",
			Payer:    proof.WalletAddress,
		}
	case types.StrategyBalance:
		result = s.verifyBalance(ctx, proof, requirement, spec)
	case types.StrategyTransaction:
		result, err = s.verifyTransaction(ctx, proof, requirement, spec)
	default:
		result = types.Unverified(types.CodeUnsupportedMethod, "unknown verification strategy %q", spec.Strategy)
	}
	if err != nil {
		return nil, err
	}

	outcome := "verification_failed"
	if result.Verified {
		outcome = "verification_ok"
	}
	s.rec.IncCounter(outcome, labels)
	s.log.Info("payment verification", map[string]any{
		"method":   string(spec.Method),
		"strategy": string(spec.Strategy),
		"verified": result.Verified,
		"code":     result.Code,
	})
	return result, nil
}

// verifyBalance checks the wallet's current token balance against the
// required amount. This proves present solvency, not a payment event to
// the configured receiver; the weakness is inherent to the strategy and
// deliberately not papered over.
func (s *Service) verifyBalance(
	ctx context.Context,
	proof types.PaymentProof,
	requirement types.PaymentRequirement,
	spec types.MethodSpec,
) *types.VerificationResult {
	if proof.WalletAddress == "" {
		return types.Unverified(types.CodeValidation, "balance check requires a wallet address")
	}

	chain, ok := s.chains[spec.Family]
	if !ok {
		return types.Unverified(types.CodeUnsupportedMethod, "no chain client configured for family %s", spec.Family)
	}

	required, ok := new(big.Int).SetString(requirement.AmountMinor, 10)
	if !ok {
		return types.Unverified(types.CodeValidation, "malformed required amount %q", requirement.AmountMinor)
	}

	var balance *big.Int
	rerr := s.withRetry(ctx, func(callCtx context.Context) error {
		var err error
		balance, err = chain.TokenBalance(callCtx, proof.WalletAddress, spec.Token)
		return err
	})
	if rerr != nil {
		return failClosed(rerr, "balance query")
	}

	if balance.Cmp(required) < 0 {
		return &types.VerificationResult{
			Verified:    false,
			Code:        types.CodeInsufficientPayment,
			Reason:      fmt.Sprintf("balance %s below required %s minor units", balance, required),
			AmountMinor: balance.String(),
		}
	}
	return &types.VerificationResult{
		Verified:    true,
		AmountMinor: balance.String(),
		Payer:       proof.WalletAddress,
	}
}

// verifyTransaction inspects the referenced on-chain transaction, sums
// the qualifying transfers to the receiver, and on success records the
// (chain, txId) pair in the used-proofs set. The replay check runs before
// the amount check and independently of it; the atomic insert decides
// races between concurrent submissions of the same transaction.
func (s *Service) verifyTransaction(
	ctx context.Context,
	proof types.PaymentProof,
	requirement types.PaymentRequirement,
	spec types.MethodSpec,
) (*types.VerificationResult, error) {
	if proof.TxID == "" {
		return types.Unverified(types.CodeValidation, "transaction check requires a transaction id"), nil
	}

	chain, ok := s.chains[spec.Family]
	if !ok {
		return types.Unverified(types.CodeUnsupportedMethod, "no chain client configured for family %s", spec.Family), nil
	}

	required, ok := new(big.Int).SetString(requirement.AmountMinor, 10)
	if !ok {
		return types.Unverified(types.CodeValidation, "malformed required amount %q", requirement.AmountMinor), nil
	}

	// Replay check first, independent of the amount comparison.
	key := proofKey(spec.Network, proof.TxID)
	if _, err := s.proofs.Get(ctx, key); err == nil {
		return types.Unverified(types.CodeProofReused, "transaction %s has already been used", proof.TxID), nil
	} else if !errors.Is(err, store.ErrKeyNotFound) {
		return nil, fmt.Errorf("used-proofs lookup: %w", err)
	}

	var transferred *big.Int
	rerr := s.withRetry(ctx, func(callCtx context.Context) error {
		var err error
		transferred, err = chain.TransferredAmount(callCtx, proof.TxID, spec.Token, requirement.Receiver)
		return err
	})
	if rerr != nil {
		return failClosed(rerr, "transaction query"), nil
	}

	if transferred.Cmp(required) < 0 {
		return &types.VerificationResult{
			Verified:    false,
			Code:        types.CodeInsufficientPayment,
			Reason:      fmt.Sprintf("transferred %s below required %s minor units", transferred, required),
			AmountMinor: transferred.String(),
		}, nil
	}

	// Claim the proof. Losing the SetNX race means another request
	// verified this transaction first.
	inserted, err := s.proofs.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), 0)
	if err != nil {
		return nil, fmt.Errorf("used-proofs insert: %w", err)
	}
	if !inserted {
		return types.Unverified(types.CodeProofReused, "transaction %s has already been used", proof.TxID), nil
	}

	return &types.VerificationResult{
		Verified:    true,
		AmountMinor: transferred.String(),
		Payer:       proof.WalletAddress,
	}, nil
}

// withRetry runs fn with a per-call timeout, retrying only transient
// chain failures up to the configured attempt budget. No lock is held
// across these calls; state mutation happens after the result is known.
func (s *Service) withRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt <= s.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return types.E(types.CodeExternalFailure, "verification cancelled: %v", ctx.Err())
			case <-time.After(retryDelay):
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, s.timeout)
		err := fn(callCtx)
		cancel()

		if err == nil {
			return nil
		}
		lastErr = err

		// Only transient failures are worth retrying.
		var coded *types.Error
		if errors.As(err, &coded) && coded.Code != types.CodeExternalFailure {
			return err
		}
	}
	return lastErr
}

// failClosed converts an adapter error into an unverified result,
// preserving the coded failure class so the client can tell "not yet
// paid" from "malformed proof" from "chain unreachable".
func failClosed(err error, op string) *types.VerificationResult {
	var coded *types.Error
	if errors.As(err, &coded) {
		return types.Unverified(coded.Code, "%s", coded.Message)
	}
	return types.Unverified(types.CodeExternalFailure, "%s failed: %v", op, err)
}

func proofKey(network, txID string) string {
	return proofKeyPrefix + network + ":" + txID
}
