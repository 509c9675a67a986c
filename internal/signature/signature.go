// Package signature authenticates inbound Forge webhooks.
//
// A sender signs "<timestamp>.<raw body>" with HMAC-SHA256 under the shared
// secret and sends the hex digest alongside the Unix timestamp it used. A
// message is accepted only when the digest matches and the timestamp lies
// within Tolerance of the receiver's clock.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"
)

// Header names agreed with the upstream sender.
const (
	HeaderSignature = "X-Forge-Signature"
	HeaderTimestamp = "X-Forge-Timestamp"
)

// Tolerance is the replay window on either side of the receiver's clock.
const Tolerance = 300 * time.Second

// Verify reports whether signature is a valid digest of rawBody for the given
// timestamp and secret, and whether the timestamp is fresh relative to now.
// Malformed input of any kind yields false.
func Verify(rawBody []byte, secret, timestamp, signature string, now time.Time) bool {
	if signature == "" || timestamp == "" {
		return false
	}

	// Plain decimal digits only; ParseInt alone would take "+" or "-".
	if timestamp[0] < '0' || timestamp[0] > '9' {
		return false
	}
	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return false
	}
	// Bounds rather than |now-ts|, which overflows for extreme ts.
	n, tol := now.Unix(), int64(Tolerance/time.Second)
	if ts < n-tol || ts > n+tol {
		return false
	}

	claimed, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}

	return hmac.Equal(digest(rawBody, secret, timestamp), claimed)
}

// Sign returns the hex signature a sender attaches for rawBody at timestamp.
func Sign(rawBody []byte, secret, timestamp string) string {
	return hex.EncodeToString(digest(rawBody, secret, timestamp))
}

// Timestamp formats t the way senders put it in HeaderTimestamp.
func Timestamp(t time.Time) string {
	return strconv.FormatInt(t.Unix(), 10)
}

// digest is swapped out in tests to observe when an HMAC is computed.
var digest = compute

func compute(rawBody []byte, secret, timestamp string) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte{'.'})
	mac.Write(rawBody)
	return mac.Sum(nil)
}
