// Package ledgertest holds fixtures shared by ledger package tests.
package ledgertest

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"satstack.com/internal/ledger/domain"
	"satstack.com/pkg/orm"
)

// NewDB opens a migrated in-memory SQLite database. A single connection keeps
// every query on the same memory database, so queries issued inside a
// transaction must use the transaction handle.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), orm.GormConfig("silent"))
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(domain.Models()...))
	return db
}

// Epoch is the default start time of a Clock.
var Epoch = time.Date(2025, 10, 1, 12, 0, 0, 0, time.UTC)

// Clock is a manually advanced time source.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock(start time.Time) *Clock {
	if start.IsZero() {
		start = Epoch
	}
	return &Clock{now: start.UTC()}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}
