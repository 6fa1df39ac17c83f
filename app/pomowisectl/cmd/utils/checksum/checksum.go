// Package checksum fetches and parses the published ".sha256" sidecar of a
// release archive.
//
// The sidecar holds "<64 hex chars>  <filename>" as written by sha256sum. Only
// the first whitespace-delimited token is used; the filename is ignored.
package checksum

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/pomowise/pomowise/app/pomowisectl/cmd/utils/fetcher"
)

const (
	// MaxBodySize caps how much of the sidecar is read.
	MaxBodySize = 64 << 10
	digestLen   = 64
)

// MalformedError reports a sidecar whose first token is not a SHA-256 hex digest.
type MalformedError struct {
	URL   string
	Token string
}

// Error implements the error interface for MalformedError.
func (e *MalformedError) Error() string {
	if e.Token == "" {
		return fmt.Sprintf("checksum file %s is empty", e.URL)
	}
	return fmt.Sprintf("checksum file %s is malformed: %q is not a 64-character hex digest", e.URL, e.Token)
}

// Parse extracts the digest from sidecar text, lowercased.
func Parse(text string) (string, error) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return "", &MalformedError{}
	}
	token := fields[0]
	if len(token) != digestLen {
		return "", &MalformedError{Token: token}
	}
	if _, err := hex.DecodeString(token); err != nil {
		return "", &MalformedError{Token: token}
	}
	return strings.ToLower(token), nil
}

type Option func(*Resolver)

func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) {
		r.logger = l
	}
}

// WithSignatureVerifier enables minisign verification of the sidecar body.
// The signature is fetched from "<checksum url>.minisig".
func WithSignatureVerifier(v *SignatureVerifier) Option {
	return func(r *Resolver) {
		r.verifier = v
	}
}

// Resolver turns a checksum URL into an expected digest.
type Resolver struct {
	fetcher  fetcher.Fetcher
	verifier *SignatureVerifier
	logger   *slog.Logger
}

func NewResolver(f fetcher.Fetcher, opts ...Option) *Resolver {
	r := &Resolver{fetcher: f, logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve fetches url and returns the lowercase hex digest it carries.
func (r *Resolver) Resolve(ctx context.Context, url string) (string, error) {
	body, err := r.fetch(ctx, url)
	if err != nil {
		return "", fmt.Errorf("failed to fetch checksum: %w", err)
	}

	if r.verifier != nil {
		sig, err := r.fetch(ctx, url+".minisig")
		if err != nil {
			return "", fmt.Errorf("failed to fetch checksum signature: %w", err)
		}
		if err := r.verifier.Verify(body, sig); err != nil {
			r.logger.Error("Checksum signature rejected", "url", url, "error", err)
			return "", err
		}
		r.logger.Debug("Checksum signature verified", "url", url)
	}

	digest, err := Parse(string(body))
	if err != nil {
		var malformed *MalformedError
		if errors.As(err, &malformed) {
			malformed.URL = url
		}
		return "", err
	}
	return digest, nil
}

func (r *Resolver) fetch(ctx context.Context, url string) ([]byte, error) {
	resp, err := r.fetcher.Get(ctx, url)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			r.logger.Error("Failed to close response body", "url", url, "error", err)
		}
	}()
	return io.ReadAll(io.LimitReader(resp.Body, MaxBodySize))
}
