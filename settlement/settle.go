// Package settlement is the thin broadcast pass-through: it hands a
// client-signed raw transaction to the configured chain adapter. No
// custody, no key management; the wallet signs, this forwards.
package settlement

import (
	"context"
	"errors"
	"time"

	"github.com/x402labs/devicegate/clients"
	"github.com/x402labs/devicegate/logger"
	"github.com/x402labs/devicegate/types"
)

// DefaultTimeout bounds the broadcast RPC call.
const DefaultTimeout = 30 * time.Second

// Result reports the outcome of a broadcast. Failures are values, not
// errors, so the transport layer can serialize them directly.
type Result struct {
	Success bool   `json:"success"`
	TxID    string `json:"txId,omitempty"`
	Network string `json:"network,omitempty"`
	Code    string `json:"code,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Service broadcasts raw transactions across the configured chain families.
type Service struct {
	chains  map[types.ChainFamily]clients.ChainClient
	timeout time.Duration
	log     logger.Logger
}

// NewService creates a broadcast service.
func NewService(timeout time.Duration, log logger.Logger) *Service {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if log == nil {
		log = logger.Noop{}
	}
	return &Service{
		chains:  make(map[types.ChainFamily]clients.ChainClient),
		timeout: timeout,
		log:     log,
	}
}

// AddClient registers a chain adapter. One client per family.
func (s *Service) AddClient(c clients.ChainClient) {
	s.chains[c.Family()] = c
}

// Broadcast submits a base64-encoded signed transaction on the given
// chain family and returns its identifier.
func (s *Service) Broadcast(ctx context.Context, family types.ChainFamily, rawTx string) (*Result, error) {
	chain, ok := s.chains[family]
	if !ok {
		return &Result{
			Success: false,
			Code:    types.CodeUnsupportedMethod,
			Error:   "no chain client configured for family " + string(family),
		}, nil
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	txID, err := chain.BroadcastRawTx(callCtx, rawTx)
	if err != nil {
		code := types.CodeExternalFailure
		var coded *types.Error
		if errors.As(err, &coded) {
			code = coded.Code
		}
		s.log.Warn("broadcast failed", map[string]any{
			"family": string(family),
			"error":  err.Error(),
		})
		return &Result{Success: false, Code: code, Error: err.Error()}, nil
	}

	s.log.Info("transaction broadcast", map[string]any{
		"family": string(family),
		"txId":   txID,
	})
	return &Result{Success: true, TxID: txID, Network: chain.Network()}, nil
}
