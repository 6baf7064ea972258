package clients

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
	"strings"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/x402labs/devicegate/types"
)

// erc20ABI carries only the read surface this adapter needs.
const erc20ABI = `
[
  {
    "name": "balanceOf",
    "type": "function",
    "stateMutability": "view",
    "inputs": [ { "name": "owner", "type": "address" } ],
    "outputs": [ { "name": "", "type": "uint256" } ]
  }
]
`

// transferTopic is keccak256("Transfer(address,address,uint256)"), the
// event signature of an ERC-20 value transfer.
var transferTopic = crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))

// evmBackend is the slice of ethclient this adapter depends on; tests
// substitute a fake.
type evmBackend interface {
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*ethtypes.Receipt, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	SendTransaction(ctx context.Context, tx *ethtypes.Transaction) error
	Close()
}

// EVMClient adapts an EVM-style chain behind the ChainClient contract.
type EVMClient struct {
	network  string
	backend  evmBackend
	tokenABI abi.ABI
}

var _ ChainClient = (*EVMClient)(nil)

// NewEVMClient dials the EVM RPC endpoint.
func NewEVMClient(network, rpcURL string) (*EVMClient, error) {
	backend, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("evm rpc dial: %w", err)
	}
	return newEVMClient(network, backend)
}

func newEVMClient(network string, backend evmBackend) (*EVMClient, error) {
	parsed, err := abi.JSON(strings.NewReader(erc20ABI))
	if err != nil {
		return nil, fmt.Errorf("erc20 abi: %w", err)
	}
	return &EVMClient{network: network, backend: backend, tokenABI: parsed}, nil
}

func (c *EVMClient) Family() types.ChainFamily { return types.ChainEVM }

func (c *EVMClient) Network() string { return c.network }

// TokenBalance reads balanceOf(wallet) on the token contract.
func (c *EVMClient) TokenBalance(ctx context.Context, wallet, token string) (*big.Int, error) {
	if !common.IsHexAddress(wallet) {
		return nil, types.E(types.CodeValidation, "invalid wallet address %q", wallet)
	}
	if !common.IsHexAddress(token) {
		return nil, types.E(types.CodeValidation, "invalid token contract %q", token)
	}

	callData, err := c.tokenABI.Pack("balanceOf", common.HexToAddress(wallet))
	if err != nil {
		return nil, types.E(types.CodeExternalFailure, "balanceOf pack: %v", err)
	}

	contract := common.HexToAddress(token)
	out, err := c.backend.CallContract(ctx, ethereum.CallMsg{To: &contract, Data: callData}, nil)
	if err != nil {
		return nil, types.E(types.CodeExternalFailure, "balanceOf call: %v", err)
	}

	results, err := c.tokenABI.Unpack("balanceOf", out)
	if err != nil || len(results) != 1 {
		return nil, types.E(types.CodeExternalFailure, "balanceOf decode: %v", err)
	}
	bal, ok := results[0].(*big.Int)
	if !ok {
		return nil, types.E(types.CodeExternalFailure, "balanceOf returned unexpected type")
	}
	return bal, nil
}

// TransferredAmount fetches the receipt for txID and sums the amounts of
// every Transfer log emitted by the token contract whose recipient equals
// receiver. A single transaction may carry several qualifying transfers.
// A receipt with a failure status never yields an amount, regardless of
// the logs it carries.
func (c *EVMClient) TransferredAmount(ctx context.Context, txID, token, receiver string) (*big.Int, error) {
	if !strings.HasPrefix(txID, "0x") || len(txID) != 66 {
		return nil, types.E(types.CodeValidation, "invalid transaction hash %q", txID)
	}

	receipt, err := c.backend.TransactionReceipt(ctx, common.HexToHash(txID))
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return nil, types.E(types.CodeTxNotFound, "transaction %s not found", txID)
		}
		return nil, types.E(types.CodeExternalFailure, "receipt fetch: %v", err)
	}
	if receipt.Status != ethtypes.ReceiptStatusSuccessful {
		return nil, types.E(types.CodeOnChainFailure, "transaction %s failed on-chain (status=%d)", txID, receipt.Status)
	}

	tokenAddr := common.HexToAddress(token)
	recvAddr := common.HexToAddress(receiver)

	total := new(big.Int)
	for _, log := range receipt.Logs {
		if log == nil || log.Address != tokenAddr {
			continue
		}
		// Transfer(address indexed from, address indexed to, uint256 value)
		if len(log.Topics) != 3 || log.Topics[0] != transferTopic {
			continue
		}
		// Indexed addresses are right-aligned in the 32-byte topic.
		to := common.BytesToAddress(log.Topics[2].Bytes()[12:])
		if to != recvAddr {
			continue
		}
		if len(log.Data) == 0 {
			continue
		}
		total.Add(total, new(big.Int).SetBytes(log.Data))
	}
	return total, nil
}

// BroadcastRawTx decodes a base64 RLP-encoded signed transaction and
// submits it. Pure pass-through: the client wallet did the signing.
func (c *EVMClient) BroadcastRawTx(ctx context.Context, rawTx string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(rawTx)
	if err != nil {
		return "", types.E(types.CodeValidation, "invalid base64 transaction: %v", err)
	}

	var tx ethtypes.Transaction
	if err := tx.UnmarshalBinary(raw); err != nil {
		return "", types.E(types.CodeValidation, "invalid signed transaction: %v", err)
	}

	if err := c.backend.SendTransaction(ctx, &tx); err != nil {
		return "", types.E(types.CodeExternalFailure, "broadcast failed: %v", err)
	}
	return tx.Hash().Hex(), nil
}

func (c *EVMClient) Close() {
	c.backend.Close()
}
