// Package signcode implements the shared HMAC signing primitive behind
// redeemable QR payloads and dealer attribution links. A payload is a
// querystring-style canonical form (`name=value` pairs joined with `&` in a
// fixed order) with `&sign=<hex>` appended, where the signature is
// lowercase-hex HMAC-SHA256 over the canonical form.
package signcode

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
)

var (
	ErrSignInvalid = errors.New("signature invalid")
	ErrSignExpired = errors.New("signature expired")
)

// MaxClockSkewSeconds is the default acceptance window around a payload's
// embedded timestamp, in either direction.
const MaxClockSkewSeconds = 600

type Field struct {
	Name  string
	Value string
}

// Canonical joins the fields as `name=value&name=value...` in caller order.
// Values are embedded verbatim; callers must not pass values containing
// `&` or `=`.
func Canonical(fields []Field) string {
	var b strings.Builder
	for i, f := range fields {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(f.Name)
		b.WriteByte('=')
		b.WriteString(f.Value)
	}
	return b.String()
}

// Sign computes the lowercase-hex HMAC-SHA256 of the canonical form.
func Sign(secret string, fields []Field) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(Canonical(fields)))
	return hex.EncodeToString(mac.Sum(nil))
}

// BuildPayload returns the canonical form with the signature appended as a
// trailing `sign` field.
func BuildPayload(secret string, fields []Field) string {
	return Canonical(fields) + "&sign=" + Sign(secret, fields)
}

// VerifyPayload checks a payload produced by BuildPayload. order names the
// expected fields in canonical order; every named field plus `ts` and `sign`
// must be present. The timestamp window is checked before the signature, so
// an expired payload reports ErrSignExpired even when the signature matches.
// On success the parsed field values are returned keyed by name.
func VerifyPayload(secret, payload string, order []string, nowUnix, maxSkewSeconds int64) (map[string]string, error) {
	values, err := parsePayload(payload)
	if err != nil {
		return nil, err
	}

	fields := make([]Field, 0, len(order))
	for _, name := range order {
		v, ok := values[name]
		if !ok {
			return nil, ErrSignInvalid
		}
		fields = append(fields, Field{Name: name, Value: v})
	}

	ts, err := strconv.ParseInt(values["ts"], 10, 64)
	if err != nil {
		return nil, ErrSignInvalid
	}
	skew := nowUnix - ts
	if skew < 0 {
		skew = -skew
	}
	if skew > maxSkewSeconds {
		return nil, ErrSignExpired
	}

	expected := Sign(secret, fields)
	if !hmac.Equal([]byte(expected), []byte(values["sign"])) {
		return nil, ErrSignInvalid
	}
	return values, nil
}

func parsePayload(payload string) (map[string]string, error) {
	if payload == "" {
		return nil, ErrSignInvalid
	}
	values := make(map[string]string)
	for _, pair := range strings.Split(payload, "&") {
		name, value, ok := strings.Cut(pair, "=")
		if !ok || name == "" {
			return nil, ErrSignInvalid
		}
		values[name] = value
	}
	if _, ok := values["ts"]; !ok {
		return nil, ErrSignInvalid
	}
	if _, ok := values["sign"]; !ok {
		return nil, ErrSignInvalid
	}
	return values, nil
}
