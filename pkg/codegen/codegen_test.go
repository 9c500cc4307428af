package codegen

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDigits(t *testing.T) {
	code := Digits(6)
	require.Len(t, code, 6)
	for _, r := range code {
		assert.True(t, r >= '0' && r <= '9', "non-digit %q in %q", r, code)
	}
}

func TestGenerateFormat(t *testing.T) {
	code, err := Generate(context.Background(), "SHA047", 6, nil)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(code, "SHA047"))
	assert.Len(t, code, len("SHA047")+6)
}

func TestGenerateRetriesOnCollision(t *testing.T) {
	calls := 0
	taken := func(ctx context.Context, code string) (bool, error) {
		calls++
		return calls < 3, nil // first two candidates collide
	}

	code, err := Generate(context.Background(), "VIS", 4, taken)
	require.NoError(t, err)
	assert.NotEmpty(t, code)
	assert.Equal(t, 3, calls)
}

func TestGenerateGivesUpEventually(t *testing.T) {
	taken := func(ctx context.Context, code string) (bool, error) { return true, nil }

	_, err := Generate(context.Background(), "CLM", 4, taken)
	require.Error(t, err)
}

func TestGeneratePropagatesCheckError(t *testing.T) {
	boom := errors.New("store down")
	taken := func(ctx context.Context, code string) (bool, error) { return false, boom }

	_, err := Generate(context.Background(), "RX", 4, taken)
	require.ErrorIs(t, err, boom)
}
