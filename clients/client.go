// Package clients implements the chain adapters the payment verifier and
// broadcaster dispatch to. Each adapter answers the same three questions
// for its chain family: what does this wallet hold, what did this
// transaction actually transfer to the receiver, and broadcast this
// client-signed raw transaction.
package clients

import (
	"context"
	"math/big"

	"github.com/x402labs/devicegate/types"
)

// ChainClient is the contract a chain family adapter satisfies. Amounts
// are integers in the token's smallest unit.
type ChainClient interface {
	// Family identifies the chain family this client serves.
	Family() types.ChainFamily

	// Network names the configured network, e.g. "base-sepolia".
	Network() string

	// TokenBalance returns the wallet's current balance of the token.
	TokenBalance(ctx context.Context, wallet, token string) (*big.Int, error)

	// TransferredAmount returns the total amount the transaction moved to
	// the receiver in the given token, summed across all qualifying
	// transfers. Coded errors distinguish a missing transaction, an
	// on-chain failure status, and an unreachable or malformed RPC.
	TransferredAmount(ctx context.Context, txID, token, receiver string) (*big.Int, error)

	// BroadcastRawTx submits a client-signed raw transaction (base64)
	// and returns its identifier. No signing happens server-side.
	BroadcastRawTx(ctx context.Context, rawTx string) (string, error)

	// Close releases any underlying connections.
	Close()
}
