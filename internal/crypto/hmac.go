// Package crypto provides HMAC request signing for the exchange REST API and
// encrypted on-disk storage for API credentials.
package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"time"
)

// Signer signs REST requests with a credential's secret. The exchange expects
// HMAC-SHA256 over the canonical query string, hex-encoded, appended as the
// "signature" parameter, with a millisecond "timestamp" parameter included in
// the signed payload.
type Signer struct {
	secret []byte
}

// NewSigner creates a Signer for the given API secret.
func NewSigner(secret string) *Signer {
	return &Signer{secret: []byte(secret)}
}

// SignQuery adds timestamp and signature parameters to params and returns the
// encoded query string ready to send.
func (s *Signer) SignQuery(params url.Values) string {
	return s.SignQueryAt(params, time.Now())
}

// SignQueryAt is SignQuery with a caller-supplied time, for deterministic
// testing.
func (s *Signer) SignQueryAt(params url.Values, at time.Time) string {
	out := url.Values{}
	for k, vs := range params {
		for _, v := range vs {
			out.Add(k, v)
		}
	}
	out.Set("timestamp", strconv.FormatInt(at.UnixMilli(), 10))

	payload := canonicalEncode(out)
	out.Set("signature", hmacSHA256Hex(s.secret, payload))
	return canonicalEncode(out)
}

// canonicalEncode encodes values with sorted keys so the signed payload and
// the sent payload are byte-identical.
func canonicalEncode(v url.Values) string {
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	buf := make([]byte, 0, 128)
	for _, k := range keys {
		for _, val := range v[k] {
			if len(buf) > 0 {
				buf = append(buf, '&')
			}
			buf = append(buf, url.QueryEscape(k)...)
			buf = append(buf, '=')
			buf = append(buf, url.QueryEscape(val)...)
		}
	}
	return string(buf)
}

func hmacSHA256Hex(key []byte, message string) string {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(message))
	return hex.EncodeToString(mac.Sum(nil))
}

// String returns a redacted representation suitable for logging.
func (s *Signer) String() string {
	return fmt.Sprintf("Signer(secret=%d bytes)", len(s.secret))
}
