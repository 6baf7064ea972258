// Package challenge issues and consumes single-use, time-limited
// challenges binding a device and wallet to one payment attempt.
package challenge

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/x402labs/devicegate/logger"
	"github.com/x402labs/devicegate/store"
	"github.com/x402labs/devicegate/types"
)

// DefaultTTL bounds how long a challenge stays consumable.
const DefaultTTL = 5 * time.Minute

const keyPrefix = "challenge:"

// Store issues challenges and enforces their exactly-once consumption.
// The claim step rides on the backing store's atomic GetDel, so two
// concurrent consumers of the same challenge id cannot both succeed.
type Store struct {
	kv  store.Store
	ttl time.Duration
	log logger.Logger
}

// NewStore creates a challenge store. A non-positive ttl falls back to
// DefaultTTL.
func NewStore(kv store.Store, ttl time.Duration, log logger.Logger) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if log == nil {
		log = logger.Noop{}
	}
	return &Store{kv: kv, ttl: ttl, log: log}
}

// Create mints a challenge for (deviceID, wallet) with a fresh random
// nonce. The wallet address is case-normalized before storage so later
// consumption is case-insensitive.
func (s *Store) Create(ctx context.Context, deviceID, wallet string) (types.Challenge, error) {
	nonce, err := randomNonce(32)
	if err != nil {
		return types.Challenge{}, types.E(types.CodeExternalFailure, "nonce generation failed: %v", err)
	}

	now := time.Now()
	ch := types.Challenge{
		ID:            uuid.New().String(),
		DeviceID:      deviceID,
		WalletAddress: normalizeWallet(wallet),
		Nonce:         nonce,
		CreatedAt:     now,
		ExpiresAt:     now.Add(s.ttl),
	}

	raw, err := json.Marshal(ch)
	if err != nil {
		return types.Challenge{}, types.E(types.CodeExternalFailure, "challenge encode failed: %v", err)
	}
	if err := s.kv.Set(ctx, keyPrefix+ch.ID, string(raw), s.ttl); err != nil {
		return types.Challenge{}, types.E(types.CodeExternalFailure, "challenge store failed: %v", err)
	}

	s.log.Debug("challenge created", map[string]any{
		"challengeId": ch.ID,
		"deviceId":    deviceID,
	})
	return ch, nil
}

// Consume validates and claims a challenge. Only a successful claim
// removes the record: a device/wallet mismatch leaves the challenge in
// place for the rightful caller, while expiry deletes it. At most one
// concurrent caller can win the claim.
func (s *Store) Consume(ctx context.Context, id, deviceID, wallet string) error {
	key := keyPrefix + id

	raw, err := s.kv.Get(ctx, key)
	if err != nil {
		if err == store.ErrKeyNotFound {
			return types.E(types.CodeChallengeConsumed, "challenge not found or already consumed")
		}
		return types.E(types.CodeExternalFailure, "challenge lookup failed: %v", err)
	}

	ch, derr := decode(raw)
	if derr != nil {
		return derr
	}
	if verr := validateRecord(ch, deviceID, wallet); verr != nil {
		if verr.Code == types.CodeChallengeExpired {
			_ = s.kv.Delete(ctx, key)
		}
		return verr
	}

	// Claim. The atomic GetDel decides the winner between racing callers.
	claimed, err := s.kv.GetDel(ctx, key)
	if err != nil {
		if err == store.ErrKeyNotFound {
			return types.E(types.CodeChallengeConsumed, "challenge already consumed")
		}
		return types.E(types.CodeExternalFailure, "challenge claim failed: %v", err)
	}

	// Re-validate the copy we actually claimed; the record could in
	// principle have been replaced between read and claim.
	ch, derr = decode(claimed)
	if derr != nil {
		return derr
	}
	if verr := validateRecord(ch, deviceID, wallet); verr != nil {
		return verr
	}

	s.log.Debug("challenge consumed", map[string]any{
		"challengeId": id,
		"deviceId":    deviceID,
	})
	return nil
}

func validateRecord(ch types.Challenge, deviceID, wallet string) *types.Error {
	if ch.Expired(time.Now()) {
		return types.E(types.CodeChallengeExpired, "challenge expired")
	}
	if ch.DeviceID != deviceID || ch.WalletAddress != normalizeWallet(wallet) {
		return types.E(types.CodeChallengeMismatch, "challenge was issued for a different device or wallet")
	}
	return nil
}

func decode(raw string) (types.Challenge, *types.Error) {
	var ch types.Challenge
	if err := json.Unmarshal([]byte(raw), &ch); err != nil {
		return types.Challenge{}, types.E(types.CodeExternalFailure, "challenge decode failed: %v", err)
	}
	return ch, nil
}

func normalizeWallet(wallet string) string {
	return strings.ToLower(strings.TrimSpace(wallet))
}

func randomNonce(length int) (string, error) {
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
