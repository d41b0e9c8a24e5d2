// Package webhook ingests the identity provider's and the payment
// provider's webhooks.
//
// Every delivery is verified against its raw body before anything is
// decoded; a delivery that fails verification never reaches the store.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sakif/codecraft/internal/apperror"
)

// Svix headers used by the identity provider.
const (
	HeaderSvixID        = "svix-id"
	HeaderSvixTimestamp = "svix-timestamp"
	HeaderSvixSignature = "svix-signature"

	// HeaderLemonSignature carries the payment provider's hex HMAC.
	HeaderLemonSignature = "X-Signature"
)

// SvixTolerance bounds how far the delivery timestamp may be from now.
const SvixTolerance = 5 * time.Minute

// VerifyClerk checks a Svix-signed delivery.
//
// The secret looks like "whsec_<base64 key>". The signed content is
// "<svix-id>.<svix-timestamp>.<body>", signed with HMAC-SHA256 and base64
// encoded. The signature header is a space separated list of
// "<version>,<signature>" entries (several during key rotation); one "v1"
// match is enough.
func VerifyClerk(secret string, headers http.Header, body []byte, now time.Time) error {
	if secret == "" {
		return apperror.InvalidSignature("webhook secret not configured")
	}

	id := headers.Get(HeaderSvixID)
	ts := headers.Get(HeaderSvixTimestamp)
	sigHeader := headers.Get(HeaderSvixSignature)
	if id == "" || ts == "" || sigHeader == "" {
		return apperror.InvalidSignature("missing svix headers")
	}

	unix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return apperror.InvalidSignature("malformed timestamp")
	}
	sent := time.Unix(unix, 0)
	if now.Sub(sent) > SvixTolerance || sent.Sub(now) > SvixTolerance {
		return apperror.InvalidSignature("timestamp outside tolerance")
	}

	key, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(secret, "whsec_"))
	if err != nil {
		return apperror.InvalidSignature("malformed signing secret")
	}

	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(id))
	mac.Write([]byte{'.'})
	mac.Write([]byte(ts))
	mac.Write([]byte{'.'})
	mac.Write(body)
	expected := mac.Sum(nil)

	for _, entry := range strings.Fields(sigHeader) {
		version, sig, ok := strings.Cut(entry, ",")
		if !ok || version != "v1" {
			continue
		}
		got, err := base64.StdEncoding.DecodeString(sig)
		if err != nil {
			continue
		}
		if hmac.Equal(got, expected) {
			return nil
		}
	}
	return apperror.InvalidSignature("no matching signature")
}

// SignClerk produces the svix-signature value for body. Used by tests and
// by the CLI to replay deliveries locally.
func SignClerk(secret, id string, ts time.Time, body []byte) (string, error) {
	key, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(secret, "whsec_"))
	if err != nil {
		return "", err
	}
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(id + "." + strconv.FormatInt(ts.Unix(), 10) + "."))
	mac.Write(body)
	return "v1," + base64.StdEncoding.EncodeToString(mac.Sum(nil)), nil
}

// VerifyLemonSqueezy checks the payment provider's signature: the hex
// encoded HMAC-SHA256 of the raw body under the shared secret.
func VerifyLemonSqueezy(secret, signature string, body []byte) error {
	if secret == "" {
		return apperror.InvalidSignature("webhook secret not configured")
	}
	if signature == "" {
		return apperror.InvalidSignature("missing signature header")
	}

	got, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil {
		return apperror.InvalidSignature("malformed signature")
	}
	if !hmac.Equal(got, lemonMAC(secret, body)) {
		return apperror.InvalidSignature("signature mismatch")
	}
	return nil
}

// SignLemonSqueezy returns the X-Signature value for body.
func SignLemonSqueezy(secret string, body []byte) string {
	return hex.EncodeToString(lemonMAC(secret, body))
}

func lemonMAC(secret string, body []byte) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return mac.Sum(nil)
}
