// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as the
// booking service and handlers to distinguish between different failure
// scenarios. For example, ErrForbidden indicates that the current user is
// not allowed to act on a booking or property owned by someone else, while
// ErrDateTaken signals that the (property, day) unique key rejected a
// block because another booking got there first.
package repository

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when a property or booking row does not exist.
// Handlers should translate this into an HTTP 404 response.
var ErrNotFound = errors.New("not found")

// ErrForbidden is returned when the caller attempts an operation
// on a resource they do not own. Handlers should translate this
// into an HTTP 403 response.
var ErrForbidden = errors.New("forbidden")

// ErrDateTaken is returned when inserting a blocked day collides with an
// existing row for the same property and day.
var ErrDateTaken = errors.New("date already blocked")

// ErrDuplicateCode is returned when a generated confirmation code is
// already in use.
var ErrDuplicateCode = errors.New("duplicate confirmation code")

// MySQL server error numbers inspected by the repositories.
const (
	mysqlDuplicateEntry  = 1062
	mysqlLockWaitTimeout = 1205
	mysqlDeadlock        = 1213
)

// Unique key names declared in database/schema.go.
const (
	keyBlockedDay       = "uq_blocked_dates_property_day"
	keyConfirmationCode = "uq_bookings_confirmation_code"
)

// isDuplicate reports whether err is a MySQL duplicate-entry error on the
// given unique key.  An empty key matches any duplicate.
func isDuplicate(err error, key string) bool {
	var me *mysql.MySQLError
	if !errors.As(err, &me) || me.Number != mysqlDuplicateEntry {
		return false
	}
	return key == "" || strings.Contains(me.Message, key)
}

// IsRetryable reports whether err is a deadlock or lock wait timeout, both
// of which leave the transaction rolled back and safe to run again.
func IsRetryable(err error) bool {
	var me *mysql.MySQLError
	if !errors.As(err, &me) {
		return false
	}
	return me.Number == mysqlDeadlock || me.Number == mysqlLockWaitTimeout
}
