package extraction

import (
	"context"
	"errors"
)

// Provider errors. Window-level retries wrap and retry all three before a
// window's contribution is dropped.
var (
	// ErrProviderUnavailable indicates the provider could not be reached
	// or did not answer in time.
	ErrProviderUnavailable = errors.New("extraction: provider unavailable")

	// ErrProviderRateLimited indicates the provider rejected the call due
	// to rate limiting.
	ErrProviderRateLimited = errors.New("extraction: provider rate limited")

	// ErrProviderMalformedOutput indicates the provider answered with
	// output that failed validation at the provider boundary.
	ErrProviderMalformedOutput = errors.New("extraction: provider returned malformed output")
)

// InvokeRequest carries one window of text plus the resolved extraction
// configuration to a provider.
type InvokeRequest struct {
	Text        string
	Prompt      string
	Examples    []WorkedExample
	ModelID     string
	Temperature float64
}

// Provider turns a window of text into raw labeled extractions. Offsets in
// the returned extractions are window-local. Implementations must validate
// their backend's output and return ErrProviderMalformedOutput (wrapped)
// instead of leaking untyped parse failures.
type Provider interface {
	Invoke(ctx context.Context, req InvokeRequest) ([]RawExtraction, error)
}
