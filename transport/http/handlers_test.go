package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/x402labs/devicegate"
	"github.com/x402labs/devicegate/device"
	"github.com/x402labs/devicegate/types"
)

const (
	testDevice = "TEST-LOCK-001"
	testWallet = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
)

func newTestServer(t *testing.T) http.Handler {
	t.Helper()

	catalog := device.NewCatalog(device.Device{
		ID:           testDevice,
		Name:         "Test Lock",
		Model:        "SL-200",
		Capabilities: []string{"lock", "unlock"},
		Method:       types.MethodAlwaysPass,
		Pricing:      map[string]string{"unlock": "0.10", "lock": "0"},
	})

	gate, err := devicegate.New(devicegate.Config{
		Methods: []types.MethodSpec{{
			Method:   types.MethodAlwaysPass,
			Family:   types.ChainEVM,
			Network:  "test",
			Symbol:   "TEST",
			Decimals: 6,
			Strategy: types.StrategyAlwaysApprove,
		}},
		SessionSecret: "test-secret",
		SessionTTL:    time.Minute,
		ChallengeTTL:  time.Minute,
	}, devicegate.WithCatalog(catalog))
	require.NoError(t, err)

	return NewRouter(gate, nil)
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any, headers map[string]string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	var decoded map[string]any
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &decoded))
	}
	return w, decoded
}

func obtainCredential(t *testing.T, h http.Handler) string {
	t.Helper()

	w, body := doJSON(t, h, http.MethodPost, "/devices/"+testDevice+"/challenge",
		map[string]string{"walletAddress": testWallet}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	challengeID, _ := body["challengeId"].(string)
	require.NotEmpty(t, challengeID)

	w, body = doJSON(t, h, http.MethodPost, "/devices/"+testDevice+"/verify",
		map[string]string{
			"walletAddress": testWallet,
			"challengeId":   challengeID,
			"action":        "unlock",
		}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, true, body["verified"])
	credential, _ := body["sessionCredential"].(string)
	require.NotEmpty(t, credential)
	return credential
}

func TestUnlockFlowOverHTTP(t *testing.T) {
	h := newTestServer(t)
	credential := obtainCredential(t, h)

	w, body := doJSON(t, h, http.MethodPost, "/devices/"+testDevice+"/commands/unlock",
		map[string]int{"durationSeconds": 60},
		map[string]string{"Authorization": "Bearer " + credential})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "unlock", body["action"])
	assert.Equal(t, testDevice, body["deviceId"])
	assert.NotEmpty(t, body["sessionExpiresAt"])
	assert.NotEmpty(t, body["unlockExpiresAt"])

	w, body = doJSON(t, h, http.MethodGet, "/devices/"+testDevice+"/status", nil,
		map[string]string{"Authorization": "Bearer " + credential})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "unlocked", body["lockState"])
	assert.Greater(t, body["remainingMs"].(float64), float64(0))
	require.NotNil(t, body["session"])
}

func TestChallengeValidation(t *testing.T) {
	h := newTestServer(t)

	w, body := doJSON(t, h, http.MethodPost, "/devices/"+testDevice+"/challenge",
		map[string]string{}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.NotEmpty(t, body["error"])

	w, body = doJSON(t, h, http.MethodPost, "/devices/NO-SUCH/challenge",
		map[string]string{"walletAddress": testWallet}, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, types.CodeDeviceNotFound, body["code"])
}

func TestVerifyConsumedChallengeConflicts(t *testing.T) {
	h := newTestServer(t)

	w, body := doJSON(t, h, http.MethodPost, "/devices/"+testDevice+"/challenge",
		map[string]string{"walletAddress": testWallet}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	challengeID := body["challengeId"].(string)

	verifyBody := map[string]string{
		"walletAddress": testWallet,
		"challengeId":   challengeID,
		"action":        "unlock",
	}
	w, _ = doJSON(t, h, http.MethodPost, "/devices/"+testDevice+"/verify", verifyBody, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, body = doJSON(t, h, http.MethodPost, "/devices/"+testDevice+"/verify", verifyBody, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, types.CodeChallengeConsumed, body["code"])
}

func TestCommandRequiresBearer(t *testing.T) {
	h := newTestServer(t)

	w, body := doJSON(t, h, http.MethodPost, "/devices/"+testDevice+"/commands/unlock",
		nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.NotEmpty(t, body["error"])

	w, body = doJSON(t, h, http.MethodPost, "/devices/"+testDevice+"/commands/unlock",
		nil, map[string]string{"Authorization": "Bearer garbage"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, types.CodeUnauthorized, body["code"])
}

func TestSupportedAndDeviceListing(t *testing.T) {
	h := newTestServer(t)

	w, body := doJSON(t, h, http.MethodGet, "/supported", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	methods := body["methods"].([]any)
	require.Len(t, methods, 1)

	w, body = doJSON(t, h, http.MethodGet, "/devices/"+testDevice, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, testDevice, body["deviceId"])

	w, _ = doJSON(t, h, http.MethodGet, "/healthz", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
