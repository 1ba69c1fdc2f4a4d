package mysql

import (
	"errors"

	gomysql "github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
)

const (
	errLockWaitTimeout = 1205
	errDeadlock        = 1213
)

// IsRetryable reports lock contention that a client may retry as is.
func IsRetryable(err error) bool {
	var me *gomysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == errDeadlock || me.Number == errLockWaitTimeout
	}
	return false
}

// IsDuplicate reports a unique key violation. Requires TranslateError.
func IsDuplicate(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
