// Command devicegate runs the payment-gated device access server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/x402labs/devicegate"
	"github.com/x402labs/devicegate/logger"
	"github.com/x402labs/devicegate/metrics"
	"github.com/x402labs/devicegate/store"
	transport "github.com/x402labs/devicegate/transport/http"
	"github.com/x402labs/devicegate/types"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	log := logger.NewZapLogger(envStr("LOG_LEVEL", "info"))

	secret := os.Getenv("SESSION_SECRET")
	if secret == "" {
		log.Error("SESSION_SECRET is required", nil)
		os.Exit(1)
	}

	cfg := devicegate.Config{
		Methods:       methodsFromEnv(),
		SessionSecret: secret,
		SessionTTL:    envDuration("SESSION_TTL", 30*time.Minute),
		ChallengeTTL:  envDuration("CHALLENGE_TTL", 5*time.Minute),
		DefaultUnlock: envDuration("DEFAULT_UNLOCK_DURATION", 5*time.Minute),
		Timeout:       envDuration("RPC_TIMEOUT", 30*time.Second),
		Retries:       envInt("RPC_RETRIES", 2),
	}

	opts := []devicegate.Option{
		devicegate.WithLogger(log),
		devicegate.WithMetrics(metrics.NewPrometheusRecorder()),
	}
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		kv, err := store.NewRedisStore(context.Background(), redisURL)
		if err != nil {
			log.Error("redis connect failed", map[string]any{"error": err.Error()})
			os.Exit(1)
		}
		opts = append(opts, devicegate.WithStore(kv))
		log.Info("using redis store", nil)
	}

	gate, err := devicegate.New(cfg, opts...)
	if err != nil {
		log.Error("gate init failed", map[string]any{"error": err.Error()})
		os.Exit(1)
	}
	defer gate.Close()

	addr := envStr("LISTEN_ADDR", ":8080")
	srv := &http.Server{
		Addr:              addr,
		Handler:           transport.NewRouter(gate, log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info("devicegate listening", map[string]any{"addr": addr, "version": devicegate.Version})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", map[string]any{"error": err.Error()})
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down", nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown failed", map[string]any{"error": err.Error()})
	}
}

// methodsFromEnv builds the enabled payment method variants. A variant is
// enabled when its RPC endpoint (or TEST_MODE for the always-approve
// variant) is configured.
func methodsFromEnv() []types.MethodSpec {
	var methods []types.MethodSpec

	if rpc := os.Getenv("EVM_RPC_URL"); rpc != "" {
		methods = append(methods, types.MethodSpec{
			Method:   types.MethodUSDCEVM,
			Family:   types.ChainEVM,
			Network:  envStr("EVM_NETWORK", "base"),
			RPCURL:   rpc,
			Symbol:   "USDC",
			Token:    envStr("EVM_USDC_CONTRACT", "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"),
			Decimals: envInt("EVM_USDC_DECIMALS", 6),
			Receiver: os.Getenv("EVM_RECEIVER"),
			Strategy: strategy("EVM_STRATEGY"),
		})
	}

	if rpc := os.Getenv("SOLANA_RPC_URL"); rpc != "" {
		methods = append(methods, types.MethodSpec{
			Method:   types.MethodTSESolana,
			Family:   types.ChainSolana,
			Network:  envStr("SOLANA_NETWORK", "mainnet-beta"),
			RPCURL:   rpc,
			Symbol:   "TSE",
			Token:    os.Getenv("SOLANA_TSE_MINT"),
			Decimals: envInt("SOLANA_TSE_DECIMALS", 9),
			Receiver: os.Getenv("SOLANA_RECEIVER"),
			Strategy: strategy("SOLANA_STRATEGY"),
		})
	}

	if envStr("TEST_MODE", "false") == "true" {
		methods = append(methods, types.MethodSpec{
			Method:   types.MethodAlwaysPass,
			Family:   types.ChainEVM,
			Network:  "test",
			Symbol:   "TEST",
			Strategy: types.StrategyAlwaysApprove,
		})
	}

	return methods
}

func strategy(key string) types.Strategy {
	switch os.Getenv(key) {
	case "balance":
		return types.StrategyBalance
	default:
		return types.StrategyTransaction
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
