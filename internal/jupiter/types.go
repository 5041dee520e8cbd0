// internal/jupiter/types.go
package jupiter

import "encoding/json"

// WrappedSOLMint is the wrapped-SOL mint the quote API expects wherever a
// caller means native SOL.
const WrappedSOLMint = "So11111111111111111111111111111111111111112"

// SOL is the sentinel callers may pass instead of a mint address.
const SOL = "SOL"

// Quote is a priced, time-bounded offer to exchange one token for another.
// Raw preserves the full quote body; the swap endpoint requires it back
// verbatim as the routing payload.
type Quote struct {
	InputMint   string `json:"inputMint"`
	OutputMint  string `json:"outputMint"`
	InAmount    string `json:"inAmount"`
	OutAmount   string `json:"outAmount"`
	SlippageBps int    `json:"slippageBps"`

	Raw json.RawMessage `json:"-"`
}

// swapRequest is the body for the swap-transaction endpoint.
type swapRequest struct {
	QuoteResponse json.RawMessage `json:"quoteResponse"`
	UserPublicKey string          `json:"userPublicKey"`
	WrapUnwrapSOL bool            `json:"wrapAndUnwrapSol"`
}

// swapResponse carries the signable payload.
type swapResponse struct {
	SwapTransaction string `json:"swapTransaction"`
}
