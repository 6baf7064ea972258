// Package http exposes the devicegate wire contract over gin. The JSON
// field names are the wire format; everything behind them lives in the
// gateway.
package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/x402labs/devicegate"
	"github.com/x402labs/devicegate/gateway"
	"github.com/x402labs/devicegate/types"
)

// Handlers serves the devicegate HTTP endpoints.
type Handlers struct {
	gate *devicegate.Gate
}

// NewHandlers creates the handler set.
func NewHandlers(gate *devicegate.Gate) *Handlers {
	return &Handlers{gate: gate}
}

// GetDevice returns the catalog descriptor of one device.
func (h *Handlers) GetDevice(c *gin.Context) {
	dev, err := h.gate.Device(c.Param("deviceId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dev)
}

// ListDevices returns the whole catalog.
func (h *Handlers) ListDevices(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"devices": h.gate.Devices()})
}

// Supported advertises the configured payment method variants.
func (h *Handlers) Supported(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"methods": h.gate.Supported()})
}

// Challenge issues a single-use challenge for the device and wallet.
func (h *Handlers) Challenge(c *gin.Context) {
	var req struct {
		WalletAddress string `json:"walletAddress" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "walletAddress is required"})
		return
	}

	ch, err := h.gate.RequestChallenge(c.Request.Context(), c.Param("deviceId"), req.WalletAddress)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"challengeId": ch.ID,
		"nonce":       ch.Nonce,
		"expiresAt":   ch.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

// Verify consumes a challenge, verifies the payment proof and returns a
// session credential, or a 402 payment-required descriptor.
func (h *Handlers) Verify(c *gin.Context) {
	var req struct {
		WalletAddress string `json:"walletAddress" binding:"required"`
		ChallengeID   string `json:"challengeId" binding:"required"`
		TxID          string `json:"txId"`
		Action        string `json:"action"`
		PaymentMethod string `json:"paymentMethod"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "walletAddress and challengeId are required"})
		return
	}

	result, err := h.gate.VerifyAndIssue(c.Request.Context(), gateway.VerifyParams{
		DeviceID:      c.Param("deviceId"),
		WalletAddress: req.WalletAddress,
		ChallengeID:   req.ChallengeID,
		TxID:          req.TxID,
		Action:        req.Action,
		Method:        types.PaymentMethod(req.PaymentMethod),
	})
	if err != nil {
		writeError(c, err)
		return
	}

	if !result.Verified {
		c.JSON(http.StatusPaymentRequired, paymentRequiredBody(result))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"verified":          true,
		"sessionCredential": result.Credential,
		"expiresAt":         result.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

// Command executes a credentialed device action.
func (h *Handlers) Command(c *gin.Context) {
	credential, ok := bearerToken(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing bearer credential"})
		return
	}

	var req struct {
		DurationSeconds int `json:"durationSeconds"`
	}
	// The body is optional; a bare POST means default duration.
	_ = c.ShouldBindJSON(&req)

	result, err := h.gate.Execute(
		c.Request.Context(),
		c.Param("deviceId"),
		c.Param("action"),
		time.Duration(req.DurationSeconds)*time.Second,
		credential,
	)
	if err != nil {
		writeError(c, err)
		return
	}

	body := gin.H{
		"success":          true,
		"action":           result.Action,
		"deviceId":         result.DeviceID,
		"timestamp":        result.Timestamp.UTC().Format(time.RFC3339),
		"sessionExpiresAt": result.SessionExpiresAt.UTC().Format(time.RFC3339),
	}
	if !result.UnlockExpiresAt.IsZero() {
		body["unlockExpiresAt"] = result.UnlockExpiresAt.UTC().Format(time.RFC3339)
	}
	c.JSON(http.StatusOK, body)
}

// Status returns the device's reconciled lock state. The bearer
// credential is optional.
func (h *Handlers) Status(c *gin.Context) {
	credential, _ := bearerToken(c)

	result, err := h.gate.Status(c.Request.Context(), c.Param("deviceId"), credential)
	if err != nil {
		writeError(c, err)
		return
	}

	body := gin.H{
		"deviceId":    result.DeviceID,
		"lockState":   result.State,
		"remainingMs": result.Remaining.Milliseconds(),
	}
	if result.Session != nil {
		body["session"] = gin.H{
			"walletAddress": result.Session.Subject,
			"scope":         result.Session.Scope,
			"expiresAt":     result.Session.ExpiresAt.Time.UTC().Format(time.RFC3339),
		}
	}
	c.JSON(http.StatusOK, body)
}

// Broadcast forwards a client-signed raw transaction to its chain.
func (h *Handlers) Broadcast(c *gin.Context) {
	var req struct {
		ChainFamily string `json:"chainFamily" binding:"required"`
		RawTx       string `json:"rawTx" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "chainFamily and rawTx are required"})
		return
	}

	result, err := h.gate.Broadcast(c.Request.Context(), types.ChainFamily(req.ChainFamily), req.RawTx)
	if err != nil {
		writeError(c, err)
		return
	}
	if !result.Success {
		status := http.StatusBadGateway
		if result.Code == types.CodeValidation || result.Code == types.CodeUnsupportedMethod {
			status = http.StatusBadRequest
		}
		c.JSON(status, result)
		return
	}
	c.JSON(http.StatusOK, result)
}

// paymentRequiredBody builds the 402 descriptor: everything the client
// needs to pay and retry.
func paymentRequiredBody(result *gateway.IssueResult) gin.H {
	body := gin.H{
		"verified": false,
		"reason":   result.Reason,
		"code":     result.Code,
	}
	if req := result.Requirement; req != nil {
		body["paymentMethod"] = req.Method
		body["chain"] = req.Network
		body["currency"] = req.Symbol
		body["receiver"] = req.Receiver
		body["requiredAmount"] = req.AmountHuman
		body["requiredAmountMinor"] = req.AmountMinor
		body["decimals"] = req.Decimals
		if req.Token != "" {
			body["token"] = req.Token
		}
	}
	return body
}

// bearerToken extracts the credential from the Authorization header.
func bearerToken(c *gin.Context) (string, bool) {
	auth := c.GetHeader("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	return token, token != ""
}

// writeError maps a coded service error onto its HTTP status.
func writeError(c *gin.Context, err error) {
	var coded *types.Error
	if errors.As(err, &coded) {
		c.JSON(statusFor(coded.Code), gin.H{"error": coded.Message, "code": coded.Code})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}

// statusFor is the error-code → HTTP status table of the wire contract.
func statusFor(code string) int {
	switch code {
	case types.CodeValidation, types.CodeUnsupportedMethod:
		return http.StatusBadRequest
	case types.CodeDeviceNotFound:
		return http.StatusNotFound
	case types.CodeChallengeMismatch:
		return http.StatusUnauthorized
	case types.CodeUnauthorized, types.CodeCredentialExpired:
		return http.StatusUnauthorized
	case types.CodeWrongDevice:
		return http.StatusForbidden
	case types.CodeProofReused, types.CodeChallengeConsumed:
		return http.StatusConflict
	case types.CodeChallengeExpired:
		return http.StatusGone
	case types.CodePaymentRequired, types.CodeInsufficientPayment,
		types.CodeTxNotFound, types.CodeOnChainFailure, types.CodeExternalFailure:
		return http.StatusPaymentRequired
	default:
		return http.StatusInternalServerError
	}
}
