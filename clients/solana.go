package clients

import (
	"context"
	"encoding/base64"
	"errors"
	"math/big"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/gagliardetto/solana-go/rpc"

	"github.com/x402labs/devicegate/types"
)

// solanaBackend is the slice of the Solana RPC client this adapter
// depends on; tests substitute a fake.
type solanaBackend interface {
	GetTransaction(ctx context.Context, txSig solana.Signature, opts *rpc.GetTransactionOpts) (*rpc.GetTransactionResult, error)
	GetTokenAccountsByOwner(ctx context.Context, owner solana.PublicKey, conf *rpc.GetTokenAccountsConfig, opts *rpc.GetTokenAccountsOpts) (*rpc.GetTokenAccountsResult, error)
	SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error)
}

// SolanaClient adapts a Solana-style chain behind the ChainClient
// contract. Tokens are SPL mints identified by base58 address.
type SolanaClient struct {
	network string
	backend solanaBackend
}

var _ ChainClient = (*SolanaClient)(nil)

// NewSolanaClient creates a client against the given RPC endpoint.
func NewSolanaClient(network, rpcURL string) (*SolanaClient, error) {
	return &SolanaClient{network: network, backend: rpc.New(rpcURL)}, nil
}

func (c *SolanaClient) Family() types.ChainFamily { return types.ChainSolana }

func (c *SolanaClient) Network() string { return c.network }

// TokenBalance sums the balances of all of the wallet's token accounts
// for the mint.
func (c *SolanaClient) TokenBalance(ctx context.Context, wallet, mint string) (*big.Int, error) {
	owner, err := solana.PublicKeyFromBase58(wallet)
	if err != nil {
		return nil, types.E(types.CodeValidation, "invalid wallet address %q: %v", wallet, err)
	}
	mintPk, err := solana.PublicKeyFromBase58(mint)
	if err != nil {
		return nil, types.E(types.CodeValidation, "invalid token mint %q: %v", mint, err)
	}

	res, err := c.backend.GetTokenAccountsByOwner(ctx, owner,
		&rpc.GetTokenAccountsConfig{Mint: &mintPk},
		&rpc.GetTokenAccountsOpts{Encoding: solana.EncodingBase64},
	)
	if err != nil {
		return nil, types.E(types.CodeExternalFailure, "token accounts fetch: %v", err)
	}

	total := new(big.Int)
	for _, acc := range res.Value {
		if acc == nil || acc.Account.Data == nil {
			continue
		}
		var tokAcc token.Account
		if err := bin.NewBinDecoder(acc.Account.Data.GetBinary()).Decode(&tokAcc); err != nil {
			return nil, types.E(types.CodeExternalFailure, "token account decode: %v", err)
		}
		if !tokAcc.Mint.Equals(mintPk) {
			continue
		}
		total.Add(total, new(big.Int).SetUint64(tokAcc.Amount))
	}
	return total, nil
}

// TransferredAmount fetches the transaction and sums the positive
// post-minus-pre token balance deltas of the receiver's accounts for the
// mint. Accounts are correlated by mint and owner, with the account index
// only used to pair pre with post snapshots of the same account, never
// trusted on its own to identify the token.
func (c *SolanaClient) TransferredAmount(ctx context.Context, txID, mint, receiver string) (*big.Int, error) {
	sig, err := solana.SignatureFromBase58(txID)
	if err != nil {
		return nil, types.E(types.CodeValidation, "invalid transaction signature %q: %v", txID, err)
	}
	mintPk, err := solana.PublicKeyFromBase58(mint)
	if err != nil {
		return nil, types.E(types.CodeValidation, "invalid token mint %q: %v", mint, err)
	}
	recvPk, err := solana.PublicKeyFromBase58(receiver)
	if err != nil {
		return nil, types.E(types.CodeValidation, "invalid receiver %q: %v", receiver, err)
	}

	maxVersion := uint64(0)
	res, err := c.backend.GetTransaction(ctx, sig, &rpc.GetTransactionOpts{
		Encoding:                       solana.EncodingBase64,
		Commitment:                     rpc.CommitmentConfirmed,
		MaxSupportedTransactionVersion: &maxVersion,
	})
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return nil, types.E(types.CodeTxNotFound, "transaction %s not found", txID)
		}
		return nil, types.E(types.CodeExternalFailure, "transaction fetch: %v", err)
	}
	if res == nil || res.Meta == nil {
		return nil, types.E(types.CodeExternalFailure, "transaction %s has no metadata", txID)
	}
	if res.Meta.Err != nil {
		return nil, types.E(types.CodeOnChainFailure, "transaction %s failed on-chain: %v", txID, res.Meta.Err)
	}

	total := new(big.Int)
	for _, post := range res.Meta.PostTokenBalances {
		if !post.Mint.Equals(mintPk) || post.UiTokenAmount == nil {
			continue
		}
		if post.Owner == nil || !post.Owner.Equals(recvPk) {
			continue
		}
		postAmt, ok := new(big.Int).SetString(post.UiTokenAmount.Amount, 10)
		if !ok {
			return nil, types.E(types.CodeExternalFailure, "malformed post balance %q", post.UiTokenAmount.Amount)
		}

		preAmt := new(big.Int)
		for _, pre := range res.Meta.PreTokenBalances {
			if pre.AccountIndex != post.AccountIndex || !pre.Mint.Equals(mintPk) || pre.UiTokenAmount == nil {
				continue
			}
			amt, ok := new(big.Int).SetString(pre.UiTokenAmount.Amount, 10)
			if !ok {
				return nil, types.E(types.CodeExternalFailure, "malformed pre balance %q", pre.UiTokenAmount.Amount)
			}
			preAmt = amt
			break
		}

		delta := new(big.Int).Sub(postAmt, preAmt)
		if delta.Sign() > 0 {
			total.Add(total, delta)
		}
	}
	return total, nil
}

// BroadcastRawTx decodes a base64 signed transaction and submits it.
func (c *SolanaClient) BroadcastRawTx(ctx context.Context, rawTx string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(rawTx)
	if err != nil {
		return "", types.E(types.CodeValidation, "invalid base64 transaction: %v", err)
	}

	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(raw))
	if err != nil {
		return "", types.E(types.CodeValidation, "invalid signed transaction: %v", err)
	}

	sig, err := c.backend.SendTransaction(ctx, tx)
	if err != nil {
		return "", types.E(types.CodeExternalFailure, "broadcast failed: %v", err)
	}
	return sig.String(), nil
}

func (c *SolanaClient) Close() {}
