package paddle

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"strings"
)

// SignatureHeader is the request header carrying the webhook signature.
const SignatureHeader = "Paddle-Signature"

// Encoding reports which rendering of the HMAC matched a signature.
type Encoding int

const (
	EncodingNone Encoding = iota
	EncodingHex
	EncodingBase64
)

func (e Encoding) String() string {
	switch e {
	case EncodingHex:
		return "hex"
	case EncodingBase64:
		return "base64"
	default:
		return ""
	}
}

// ParseSignatureHeader splits a Paddle-Signature header into its key/value
// pairs. Pairs are separated by ';' or ','; only the first '=' splits a pair.
// Later duplicates win.
func ParseSignatureHeader(header string) map[string]string {
	parts := make(map[string]string)
	for _, chunk := range strings.FieldsFunc(header, func(r rune) bool { return r == ';' || r == ',' }) {
		key, value, ok := strings.Cut(strings.TrimSpace(chunk), "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			continue
		}
		parts[key] = strings.TrimSpace(value)
	}
	return parts
}

// Verify checks header against HMAC-SHA256(secret, "{ts}:{rawBody}").
// The signature may be lowercase/uppercase hex or standard base64.
// It returns the matched encoding and whether the signature is valid.
func Verify(rawBody []byte, header, secret string) (Encoding, bool) {
	if strings.TrimSpace(header) == "" {
		return EncodingNone, false
	}

	parts := ParseSignatureHeader(header)
	ts := firstNonEmpty(parts["ts"], parts["t"])
	sig := firstNonEmpty(parts["h1"], parts["v1"])
	if ts == "" || sig == "" {
		return EncodingNone, false
	}

	sum := computeMAC(rawBody, ts, secret)
	expectedHex := hex.EncodeToString(sum)
	expectedB64 := base64.StdEncoding.EncodeToString(sum)

	switch len(sig) {
	case len(expectedHex):
		if constantTimeEqual(expectedHex, strings.ToLower(sig)) {
			return EncodingHex, true
		}
		return EncodingNone, false
	case len(expectedB64):
		if constantTimeEqual(expectedB64, sig) {
			return EncodingBase64, true
		}
		return EncodingNone, false
	}

	if constantTimeEqual(expectedHex, strings.ToLower(sig)) {
		return EncodingHex, true
	}
	if constantTimeEqual(expectedB64, sig) {
		return EncodingBase64, true
	}
	return EncodingNone, false
}

// Sign builds a Paddle-Signature header value ("ts=..;h1=..") for body.
func Sign(rawBody []byte, ts, secret string) string {
	return "ts=" + ts + ";h1=" + hex.EncodeToString(computeMAC(rawBody, ts, secret))
}

func computeMAC(rawBody []byte, ts, secret string) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts))
	mac.Write([]byte(":"))
	mac.Write(rawBody)
	return mac.Sum(nil)
}

func constantTimeEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
