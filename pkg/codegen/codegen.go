// Package codegen generates the human-readable numeric codes used across the
// platform (SHA numbers, visit/prescription/claim numbers, OTP codes).
// Uniqueness is owned by the storage constraint, not the generator, so
// Generate retries against a taken-check until it finds a free code.
package codegen

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
)

// maxAttempts bounds the regenerate-on-collision loop. With 6 random digits
// the space only gets tight near a million codes per prefix, at which point
// giving up loudly beats spinning.
const maxAttempts = 10

// ExistsFunc reports whether a candidate code is already taken.
type ExistsFunc func(ctx context.Context, code string) (bool, error)

// Digits returns n cryptographically random decimal digits.
func Digits(n int) string {
	buf := make([]byte, n)
	for i := range buf {
		v, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			// crypto/rand only fails when the platform source is broken;
			// nothing sensible to do but stop.
			panic(fmt.Sprintf("codegen: read random source: %v", err))
		}
		buf[i] = byte('0' + v.Int64())
	}
	return string(buf)
}

// Generate produces prefix + digits random decimal digits, retrying while the
// taken-check reports a collision.
func Generate(ctx context.Context, prefix string, digits int, taken ExistsFunc) (string, error) {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		code := prefix + Digits(digits)
		if taken == nil {
			return code, nil
		}
		exists, err := taken(ctx, code)
		if err != nil {
			return "", fmt.Errorf("codegen: check %q: %w", code, err)
		}
		if !exists {
			return code, nil
		}
	}
	return "", fmt.Errorf("codegen: exhausted %d attempts for prefix %q", maxAttempts, prefix)
}
