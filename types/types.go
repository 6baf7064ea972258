// Package types holds the shared data model of the devicegate service:
// challenges, payment requirements and proofs, verification results and
// device lock state.
package types

import (
	"fmt"
	"time"
)

// Challenge is a single-use, time-limited nonce binding a device and a
// wallet to one payment attempt. It is destroyed on consumption or left
// to expire.
type Challenge struct {
	ID            string    `json:"challengeId"`
	DeviceID      string    `json:"deviceId"`
	WalletAddress string    `json:"walletAddress"`
	Nonce         string    `json:"nonce"`
	CreatedAt     time.Time `json:"createdAt"`
	ExpiresAt     time.Time `json:"expiresAt"`
}

// Expired reports whether the challenge TTL has elapsed at the given instant.
func (c Challenge) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// PaymentRequirement describes what a client must pay to obtain a session
// for a device action. Amounts are carried both as an integer in the
// token's smallest unit and in human-readable form for the 402 descriptor.
// Immutable once computed for a (device, action) pair.
type PaymentRequirement struct {
	Method      PaymentMethod `json:"paymentMethod"`
	Network     string        `json:"network"`
	Symbol      string        `json:"currency"`
	Token       string        `json:"token,omitempty"`
	Receiver    string        `json:"receiver"`
	AmountMinor string        `json:"requiredAmountMinor"`
	AmountHuman string        `json:"requiredAmount"`
	Decimals    int           `json:"decimals"`
}

// PaymentProof is the evidence presented against a PaymentRequirement:
// a wallet address for balance checks, or a transaction identifier for
// on-chain transaction checks.
type PaymentProof struct {
	WalletAddress string `json:"walletAddress,omitempty"`
	TxID          string `json:"txId,omitempty"`
}

// VerificationResult is the outcome of a payment verification. Business
// failures are carried here as Verified=false with a machine-readable
// Code and a diagnostic Reason, never as a Go error.
type VerificationResult struct {
	Verified    bool   `json:"verified"`
	Reason      string `json:"reason,omitempty"`
	Code        string `json:"code,omitempty"`
	AmountMinor string `json:"amountMinor,omitempty"`
	Payer       string `json:"payer,omitempty"`
}

// Unverified builds a failed result with a formatted reason.
func Unverified(code, format string, args ...any) *VerificationResult {
	return &VerificationResult{
		Verified: false,
		Code:     code,
		Reason:   fmt.Sprintf(format, args...),
	}
}

// LockState is the lock position of a device.
type LockState string

const (
	StateLocked   LockState = "locked"
	StateUnlocked LockState = "unlocked"
)

// DeviceStatus is a reconciled read of a device's lock state. Remaining
// is zero when the device is locked.
type DeviceStatus struct {
	DeviceID  string        `json:"deviceId"`
	State     LockState     `json:"lockState"`
	Remaining time.Duration `json:"-"`
}

// SupportedMethod advertises one configured payment method variant.
type SupportedMethod struct {
	Method   PaymentMethod `json:"paymentMethod"`
	Network  string        `json:"network"`
	Family   ChainFamily   `json:"chainFamily"`
	Symbol   string        `json:"currency"`
	Token    string        `json:"token,omitempty"`
	Decimals int           `json:"decimals"`
	Strategy Strategy      `json:"strategy"`
}
