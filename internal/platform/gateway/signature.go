// Package gateway verifies payment gateway callbacks before anything is read from them.
package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"hash"
	"strings"

	"github.com/savings-wallet-ledger/internal/config"
)

// GatewaySignatureHeader carries the generic HMAC-SHA256 signature
const GatewaySignatureHeader = "x-gateway-signature"

var ErrUnauthorizedSignature = errors.New("webhook signature is missing or invalid")

// SignatureHeaders holds the signature values presented with a callback
type SignatureHeaders struct {
	Provider string // provider-specific scheme, HMAC-SHA512 hex
	Gateway  string // x-gateway-signature, HMAC-SHA256 hex
}

// Verifier checks callback signatures over the exact raw body
type Verifier struct {
	providerSecret []byte
	gatewaySecret  []byte
	providerHeader string
}

func NewVerifier(cfg config.WebhookConfig) *Verifier {
	header := strings.ToLower(cfg.ProviderSignatureHeader)
	if header == "" {
		header = "x-paystack-signature"
	}
	return &Verifier{
		providerSecret: []byte(cfg.ProviderSecret),
		gatewaySecret:  []byte(cfg.GatewaySecret),
		providerHeader: header,
	}
}

// ProviderHeader is the header name of the provider-specific scheme
func (v *Verifier) ProviderHeader() string {
	return v.providerHeader
}

// Required reports whether any secret is configured
func (v *Verifier) Required() bool {
	return len(v.providerSecret) > 0 || len(v.gatewaySecret) > 0
}

// Verify accepts the body when one configured scheme matches. With no secret
// configured every body is accepted.
func (v *Verifier) Verify(raw []byte, headers SignatureHeaders) error {
	if !v.Required() {
		return nil
	}

	if len(v.providerSecret) > 0 && headers.Provider != "" &&
		matches(sha512.New, v.providerSecret, raw, headers.Provider) {
		return nil
	}
	if len(v.gatewaySecret) > 0 && headers.Gateway != "" &&
		matches(sha256.New, v.gatewaySecret, raw, headers.Gateway) {
		return nil
	}
	return ErrUnauthorizedSignature
}

func matches(h func() hash.Hash, secret, raw []byte, presented string) bool {
	got, err := hex.DecodeString(strings.TrimSpace(presented))
	if err != nil {
		return false
	}
	return hmac.Equal(got, sum(h, secret, raw))
}

func sum(h func() hash.Hash, secret, raw []byte) []byte {
	mac := hmac.New(h, secret)
	mac.Write(raw)
	return mac.Sum(nil)
}

// SignProvider computes the provider-scheme signature of raw
func SignProvider(secret string, raw []byte) string {
	return hex.EncodeToString(sum(sha512.New, []byte(secret), raw))
}

// SignGateway computes the x-gateway-signature of raw
func SignGateway(secret string, raw []byte) string {
	return hex.EncodeToString(sum(sha256.New, []byte(secret), raw))
}
