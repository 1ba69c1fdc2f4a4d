package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestErrorIsMatchesKind(t *testing.T) {
	err := fmt.Errorf("settle: %w", NewError(KindPriceUnavailable, "no price for AMZN"))
	assert.True(t, errors.Is(err, ErrPriceUnavailable))
	assert.False(t, errors.Is(err, ErrInvalidAmount))
	assert.Equal(t, KindPriceUnavailable, KindOf(err))
	assert.Equal(t, KindUnknown, KindOf(errors.New("plain")))
	assert.Equal(t, KindUnknown, KindOf(nil))
}

func TestLocked(t *testing.T) {
	at := time.Date(2025, 10, 2, 12, 0, 0, 0, time.UTC)
	err := Locked("AMZN", 686_301, 0, at)

	var le *Error
	assert.True(t, errors.As(error(err), &le))
	assert.Equal(t, KindAssetLocked, le.Kind)
	assert.Equal(t, int64(0), le.Available)
	assert.Equal(t, at, le.UnlockAt)
	assert.Contains(t, err.Error(), "2025-10-02T12:00:00Z")
	assert.Contains(t, err.Error(), "0.00686301")
}

func TestPersistence(t *testing.T) {
	assert.NoError(t, Persistence(nil))

	cause := errors.New("connection reset")
	err := Persistence(cause)
	assert.True(t, errors.Is(err, ErrPersistenceFailure))
	assert.True(t, errors.Is(err, cause))

	locked := Locked("GLD", 1, 0, time.Now())
	assert.Same(t, locked, Persistence(locked))
}

func TestKindStringsDistinct(t *testing.T) {
	seen := map[string]bool{}
	for k := KindInvalidAssetPair; k <= KindRequestConflict; k++ {
		s := k.String()
		assert.NotEqual(t, "unknown", s)
		assert.False(t, seen[s], s)
		seen[s] = true
	}
}
