package clients

import (
	"context"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/x402labs/devicegate/types"
)

var (
	testMint     = solana.MustPublicKeyFromBase58("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v")
	testRecvKey  = solana.NewWallet().PublicKey()
	testOtherKey = solana.NewWallet().PublicKey()
	testSig      = solana.Signature{}
)

// fakeSolanaBackend scripts transaction lookups.
type fakeSolanaBackend struct {
	txResult *rpc.GetTransactionResult
	txErr    error
}

func (f *fakeSolanaBackend) GetTransaction(context.Context, solana.Signature, *rpc.GetTransactionOpts) (*rpc.GetTransactionResult, error) {
	return f.txResult, f.txErr
}

func (f *fakeSolanaBackend) GetTokenAccountsByOwner(context.Context, solana.PublicKey, *rpc.GetTokenAccountsConfig, *rpc.GetTokenAccountsOpts) (*rpc.GetTokenAccountsResult, error) {
	return &rpc.GetTokenAccountsResult{}, nil
}

func (f *fakeSolanaBackend) SendTransaction(context.Context, *solana.Transaction) (solana.Signature, error) {
	return solana.Signature{}, nil
}

func tokenBalance(index uint16, mint solana.PublicKey, owner *solana.PublicKey, amount string) rpc.TokenBalance {
	return rpc.TokenBalance{
		AccountIndex:  index,
		Mint:          mint,
		Owner:         owner,
		UiTokenAmount: &rpc.UiTokenAmount{Amount: amount},
	}
}

func newTestSolanaClient(backend solanaBackend) *SolanaClient {
	return &SolanaClient{network: "testnet", backend: backend}
}

func TestSolanaTransferredAmountSumsReceiverDeltas(t *testing.T) {
	backend := &fakeSolanaBackend{
		txResult: &rpc.GetTransactionResult{
			Meta: &rpc.TransactionMeta{
				PreTokenBalances: []rpc.TokenBalance{
					tokenBalance(1, testMint, &testRecvKey, "1000"),
					tokenBalance(2, testMint, &testOtherKey, "5000"),
				},
				PostTokenBalances: []rpc.TokenBalance{
					// Receiver gained 1500000000.
					tokenBalance(1, testMint, &testRecvKey, "1500001000"),
					// Another owner's delta must not count.
					tokenBalance(2, testMint, &testOtherKey, "9000"),
				},
			},
		},
	}
	c := newTestSolanaClient(backend)

	total, err := c.TransferredAmount(context.Background(),
		testSig.String(), testMint.String(), testRecvKey.String())
	require.NoError(t, err)
	assert.Equal(t, "1500000000", total.String())
}

func TestSolanaTransferredAmountNoPriorAccount(t *testing.T) {
	// A token account created by the transfer has no pre snapshot; the
	// whole post balance is the delta.
	backend := &fakeSolanaBackend{
		txResult: &rpc.GetTransactionResult{
			Meta: &rpc.TransactionMeta{
				PostTokenBalances: []rpc.TokenBalance{
					tokenBalance(0, testMint, &testRecvKey, "1500000000"),
				},
			},
		},
	}
	c := newTestSolanaClient(backend)

	total, err := c.TransferredAmount(context.Background(),
		testSig.String(), testMint.String(), testRecvKey.String())
	require.NoError(t, err)
	assert.Equal(t, "1500000000", total.String())
}

func TestSolanaTransferredAmountIgnoresNegativeDelta(t *testing.T) {
	backend := &fakeSolanaBackend{
		txResult: &rpc.GetTransactionResult{
			Meta: &rpc.TransactionMeta{
				PreTokenBalances: []rpc.TokenBalance{
					tokenBalance(0, testMint, &testRecvKey, "5000"),
				},
				PostTokenBalances: []rpc.TokenBalance{
					tokenBalance(0, testMint, &testRecvKey, "1000"),
				},
			},
		},
	}
	c := newTestSolanaClient(backend)

	total, err := c.TransferredAmount(context.Background(),
		testSig.String(), testMint.String(), testRecvKey.String())
	require.NoError(t, err)
	assert.Equal(t, "0", total.String())
}

func TestSolanaTransferredAmountOnChainFailure(t *testing.T) {
	backend := &fakeSolanaBackend{
		txResult: &rpc.GetTransactionResult{
			Meta: &rpc.TransactionMeta{
				Err: map[string]any{"InstructionError": []any{}},
				PostTokenBalances: []rpc.TokenBalance{
					tokenBalance(0, testMint, &testRecvKey, "1500000000"),
				},
			},
		},
	}
	c := newTestSolanaClient(backend)

	_, err := c.TransferredAmount(context.Background(),
		testSig.String(), testMint.String(), testRecvKey.String())
	assertCode(t, err, types.CodeOnChainFailure)
}

func TestSolanaTransferredAmountNotFound(t *testing.T) {
	backend := &fakeSolanaBackend{txErr: rpc.ErrNotFound}
	c := newTestSolanaClient(backend)

	_, err := c.TransferredAmount(context.Background(),
		testSig.String(), testMint.String(), testRecvKey.String())
	assertCode(t, err, types.CodeTxNotFound)
}

func TestSolanaTransferredAmountBadInputs(t *testing.T) {
	c := newTestSolanaClient(&fakeSolanaBackend{})

	_, err := c.TransferredAmount(context.Background(),
		"not-a-signature", testMint.String(), testRecvKey.String())
	assertCode(t, err, types.CodeValidation)

	_, err = c.TransferredAmount(context.Background(),
		testSig.String(), "not-a-mint", testRecvKey.String())
	assertCode(t, err, types.CodeValidation)

	_, err = c.TransferredAmount(context.Background(),
		testSig.String(), testMint.String(), "not-a-receiver")
	assertCode(t, err, types.CodeValidation)
}

func TestSolanaTokenBalanceBadInputs(t *testing.T) {
	c := newTestSolanaClient(&fakeSolanaBackend{})

	_, err := c.TokenBalance(context.Background(), "bad-wallet", testMint.String())
	assertCode(t, err, types.CodeValidation)

	_, err = c.TokenBalance(context.Background(), testRecvKey.String(), "bad-mint")
	assertCode(t, err, types.CodeValidation)
}

func TestSolanaBroadcastRawTxRejectsGarbage(t *testing.T) {
	c := newTestSolanaClient(&fakeSolanaBackend{})

	_, err := c.BroadcastRawTx(context.Background(), "!!!not-base64!!!")
	assertCode(t, err, types.CodeValidation)

	_, err = c.BroadcastRawTx(context.Background(), "bm90LWEtdHJhbnNhY3Rpb24=")
	assertCode(t, err, types.CodeValidation)
}
