// internal/wallet/wallet.go
package wallet

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/mr-tron/base58"
	"go.uber.org/zap"
)

const lamportsPerSOL = 1_000_000_000

// Wallet holds the trading keypair and answers balance queries against the
// Solana RPC node. It also signs and submits the base64 swap payloads the
// quote service produces; on-chain confirmation is the caller's concern.
type Wallet struct {
	PrivateKey solana.PrivateKey
	PublicKey  solana.PublicKey

	client *rpc.Client
	logger *zap.Logger

	mu            sync.RWMutex
	ataCache      map[string]solana.PublicKey
	decimalsCache map[string]uint8
}

// New creates a wallet from a base58-encoded private key.
func New(privateKeyBase58, rpcURL string, logger *zap.Logger) (*Wallet, error) {
	keyBytes, err := base58.Decode(privateKeyBase58)
	if err != nil {
		return nil, fmt.Errorf("failed to decode private key: %w", err)
	}
	if len(keyBytes) != 64 {
		return nil, fmt.Errorf("invalid private key length: expected 64 bytes, got %d", len(keyBytes))
	}

	privateKey := solana.PrivateKey(keyBytes)
	w := &Wallet{
		PrivateKey:    privateKey,
		PublicKey:     privateKey.PublicKey(),
		client:        rpc.New(rpcURL),
		logger:        logger.Named("wallet"),
		ataCache:      make(map[string]solana.PublicKey),
		decimalsCache: make(map[string]uint8),
	}

	w.logger.Info("wallet initialized", zap.String("public_key", w.PublicKey.String()))
	return w, nil
}

// PublicKeyString returns the wallet's public identity for quote requests.
func (w *Wallet) PublicKeyString() string { return w.PublicKey.String() }

// SOLBalance returns the native balance in SOL.
func (w *Wallet) SOLBalance(ctx context.Context) (float64, error) {
	out, err := w.client.GetBalance(ctx, w.PublicKey, rpc.CommitmentConfirmed)
	if err != nil {
		return 0, fmt.Errorf("failed to get SOL balance: %w", err)
	}
	return float64(out.Value) / lamportsPerSOL, nil
}

// TokenBalance returns the holding of the given mint in human units along
// with the mint's decimal precision. A missing token account reads as zero.
func (w *Wallet) TokenBalance(ctx context.Context, mint string) (float64, uint8, error) {
	mintKey, err := solana.PublicKeyFromBase58(mint)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid mint address %q: %w", mint, err)
	}

	ata, err := w.associatedTokenAccount(mintKey)
	if err != nil {
		return 0, 0, err
	}

	out, err := w.client.GetTokenAccountBalance(ctx, ata, rpc.CommitmentConfirmed)
	if err != nil {
		// The token account does not exist until the first transfer lands.
		w.logger.Debug("no token account found, treating as zero",
			zap.String("mint", mint), zap.Error(err))
		return 0, 0, nil
	}
	if out.Value == nil {
		return 0, 0, nil
	}

	decimals := out.Value.Decimals
	w.rememberDecimals(mint, decimals)

	amount := 0.0
	if out.Value.UiAmount != nil {
		amount = *out.Value.UiAmount
	} else if out.Value.Amount != "" {
		var raw float64
		if _, err := fmt.Sscanf(out.Value.Amount, "%f", &raw); err == nil {
			amount = raw / math.Pow10(int(decimals))
		}
	}
	return amount, decimals, nil
}

// Decimals reports the precision of a mint, querying the chain on a cache
// miss. ok=false means the precision could not be determined and the
// caller should apply its own default.
func (w *Wallet) Decimals(ctx context.Context, mint string) (uint8, bool) {
	w.mu.RLock()
	d, ok := w.decimalsCache[mint]
	w.mu.RUnlock()
	if ok {
		return d, true
	}

	if _, _, err := w.TokenBalance(ctx, mint); err != nil {
		return 0, false
	}

	w.mu.RLock()
	d, ok = w.decimalsCache[mint]
	w.mu.RUnlock()
	return d, ok
}

// SignAndSend decodes a base64 transaction payload, signs it with the
// wallet key and hands it to the network. Submission is never retried
// here: a failed submit surfaces to the caller, which leaves position
// state untouched for a later cycle.
func (w *Wallet) SignAndSend(ctx context.Context, payloadBase64 string) (string, error) {
	tx, err := solana.TransactionFromBase64(payloadBase64)
	if err != nil {
		return "", fmt.Errorf("failed to decode transaction payload: %w", err)
	}

	if _, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(w.PublicKey) {
			return &w.PrivateKey
		}
		return nil
	}); err != nil {
		return "", fmt.Errorf("failed to sign transaction: %w", err)
	}

	sig, err := w.client.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		SkipPreflight:       false,
		PreflightCommitment: rpc.CommitmentConfirmed,
	})
	if err != nil {
		return "", fmt.Errorf("failed to submit transaction: %w", err)
	}

	w.logger.Info("transaction submitted", zap.String("signature", sig.String()))
	return sig.String(), nil
}

func (w *Wallet) associatedTokenAccount(mint solana.PublicKey) (solana.PublicKey, error) {
	key := mint.String()

	w.mu.RLock()
	ata, ok := w.ataCache[key]
	w.mu.RUnlock()
	if ok {
		return ata, nil
	}

	ata, _, err := solana.FindAssociatedTokenAddress(w.PublicKey, mint)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("failed to derive token account: %w", err)
	}

	w.mu.Lock()
	w.ataCache[key] = ata
	w.mu.Unlock()
	return ata, nil
}

func (w *Wallet) rememberDecimals(mint string, decimals uint8) {
	w.mu.Lock()
	w.decimalsCache[mint] = decimals
	w.mu.Unlock()
}
