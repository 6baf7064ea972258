package types

// ChainFamily classifies a network into a blockchain family. The family
// selects the chain adapter used for verification and broadcast.
type ChainFamily string

const (
	ChainEVM    ChainFamily = "evm"
	ChainSolana ChainFamily = "solana"
)

// Strategy selects how a payment requirement is checked.
//
// StrategyBalance inspects the wallet's current token balance. It proves
// present solvency, not a payment to the configured receiver; it is kept
// as an explicit, weaker variant.
//
// StrategyTransaction inspects a settled on-chain transaction and sums
// the qualifying transfers to the receiver.
//
// StrategyAlwaysApprove short-circuits verification and is only meant for
// integration testing. It is a declared variant, never a hidden bypass.
type Strategy string

const (
	StrategyBalance       Strategy = "balance"
	StrategyTransaction   Strategy = "transaction"
	StrategyAlwaysApprove Strategy = "always-approve"
)

// PaymentMethod is a closed tag naming one (chain, token, strategy)
// variant. Adding a chain or token means adding a variant with its own
// MethodSpec, not branching on free-form strings.
type PaymentMethod string

const (
	MethodUSDCEVM    PaymentMethod = "usdc-evm"
	MethodTSESolana  PaymentMethod = "tse-solana"
	MethodAlwaysPass PaymentMethod = "test-mode"
)

// MethodSpec carries everything a payment method variant needs: the chain
// adapter selector, RPC endpoint, token identity and decimal configuration,
// the receiving address and the verification strategy.
type MethodSpec struct {
	Method   PaymentMethod `json:"paymentMethod" validate:"required"`
	Family   ChainFamily   `json:"chainFamily" validate:"required,oneof=evm solana"`
	Network  string        `json:"network" validate:"required"`
	RPCURL   string        `json:"rpcUrl"`
	Symbol   string        `json:"currency" validate:"required"`
	Token    string        `json:"token"`
	Decimals int           `json:"decimals" validate:"min=0,max=36"`
	Receiver string        `json:"receiver"`
	Strategy Strategy      `json:"strategy" validate:"required,oneof=balance transaction always-approve"`
}

// Supported converts the method configuration to its public advertisement.
func (m MethodSpec) Supported() SupportedMethod {
	return SupportedMethod{
		Method:   m.Method,
		Network:  m.Network,
		Family:   m.Family,
		Symbol:   m.Symbol,
		Token:    m.Token,
		Decimals: m.Decimals,
		Strategy: m.Strategy,
	}
}
