package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"satstack.com/internal/ledger/domain"
	"satstack.com/internal/ledger/ledgertest"
)

func lot(amount int64, unlockIn time.Duration) domain.Purchase {
	return domain.Purchase{Asset: "AMZN", Amount: amount, UnlockAt: ledgertest.Epoch.Add(unlockIn)}
}

func TestComputeAvailability(t *testing.T) {
	now := ledgertest.Epoch
	tests := []struct {
		name        string
		holding     int64
		lots        []domain.Purchase
		wantLocked  int64
		wantAvail   int64
		wantNext    time.Duration
		wantClamped bool
	}{
		{"no lots", 100, nil, 0, 100, 0, false},
		{"all expired", 100, []domain.Purchase{lot(60, -time.Hour), lot(40, 0)}, 0, 100, 0, false},
		{"partly locked", 100, []domain.Purchase{lot(30, 2*time.Hour), lot(20, time.Hour), lot(50, -time.Hour)}, 50, 50, time.Hour, false},
		{"fully locked", 100, []domain.Purchase{lot(100, time.Second)}, 100, 0, time.Second, false},
		{"locked exceeds holding", 10, []domain.Purchase{lot(30, time.Hour)}, 30, 0, time.Hour, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			av := computeAvailability("AMZN", tt.holding, tt.lots, now)
			assert.Equal(t, tt.holding, av.Amount)
			assert.Equal(t, tt.wantLocked, av.Locked)
			assert.Equal(t, tt.wantAvail, av.Available)
			assert.Equal(t, tt.wantClamped, av.Clamped)
			if tt.wantNext == 0 {
				assert.Nil(t, av.NextUnlockAt)
			} else if assert.NotNil(t, av.NextUnlockAt) {
				assert.True(t, av.NextUnlockAt.Equal(now.Add(tt.wantNext)))
			}
		})
	}
}

func TestUnlockTimeFor(t *testing.T) {
	now := ledgertest.Epoch
	lots := []domain.Purchase{lot(10, -time.Hour), lot(20, time.Hour), lot(30, 2*time.Hour)}

	// holding 60: 10 available now
	assert.True(t, unlockTimeFor(60, 11, lots, now).Equal(now.Add(time.Hour)))
	assert.True(t, unlockTimeFor(60, 30, lots, now).Equal(now.Add(time.Hour)))
	assert.True(t, unlockTimeFor(60, 31, lots, now).Equal(now.Add(2*time.Hour)))

	// clamped: locked 50 > holding 40, the first unlock frees 10
	assert.True(t, unlockTimeFor(40, 1, lots, now).Equal(now.Add(time.Hour)))
	assert.True(t, unlockTimeFor(40, 10, lots, now).Equal(now.Add(time.Hour)))
	// the whole holding only after the last lot
	assert.True(t, unlockTimeFor(40, 40, lots, now).Equal(now.Add(2*time.Hour)))
}
