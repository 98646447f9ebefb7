package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Webhook signature scheme: the gateway sends
//
//	X-Gateway-Signature: t=<unix seconds>,v1=<hex hmac-sha256>
//
// where the MAC is computed over "<t>.<raw body>" with the shared
// secret. Verification failures carry no detail beyond the sentinel.
var (
	ErrInvalidSignature = errors.New("webhook signature verification failed")
	ErrStaleTimestamp   = errors.New("webhook timestamp outside tolerance")
)

// ComputeSignature computes the hex MAC over the timestamp and raw body
func ComputeSignature(secret string, timestamp int64, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", timestamp)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// SignatureHeader renders a signature header for an outbound request or
// a test fixture
func SignatureHeader(secret string, timestamp int64, body []byte) string {
	return fmt.Sprintf("t=%d,v1=%s", timestamp, ComputeSignature(secret, timestamp, body))
}

// VerifySignature checks a signature header against the raw body. The
// body must be the exact bytes read off the wire, before any JSON
// parsing. Timestamps older (or newer) than the tolerance are rejected
// to block replay.
func VerifySignature(secret, header string, body []byte, now time.Time, tolerance time.Duration) error {
	var timestamp int64 = -1
	var provided string

	for _, part := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			ts, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return ErrInvalidSignature
			}
			timestamp = ts
		case "v1":
			provided = v
		}
	}

	if timestamp < 0 || provided == "" {
		return ErrInvalidSignature
	}

	age := now.Sub(time.Unix(timestamp, 0))
	if age > tolerance || age < -tolerance {
		return ErrStaleTimestamp
	}

	expected := ComputeSignature(secret, timestamp, body)
	if !hmac.Equal([]byte(expected), []byte(provided)) {
		return ErrInvalidSignature
	}

	return nil
}
