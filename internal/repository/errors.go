// Package repository defines the persistence layer for seat inventory and
// booking records together with the sentinel errors shared by every
// backend.  Higher layers use these values to tell a lost optimistic race
// or a missing booking apart from an infrastructure failure.
package repository

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// ErrBookingNotFound is returned when no booking matches the lookup.  A
// booking owned by another user is reported the same way so a ticket id
// alone reveals nothing.
var ErrBookingNotFound = errors.New("booking not found")

// ErrDuplicateTicket is returned when a generated ticket id already exists.
// Callers should generate a new id and try again.
var ErrDuplicateTicket = errors.New("duplicate ticket id")

// ErrDuplicateCheckout is returned when uid already has a booking for the
// checkout payment reference.  The existing booking is the one to use.
var ErrDuplicateCheckout = errors.New("booking already recorded for payment reference")

// ErrInventoryContention is returned when an inventory update kept losing
// optimistic races and gave up after the configured number of retries.
var ErrInventoryContention = errors.New("inventory update contention")

// errVersionConflict signals a lost optimistic race inside one attempt.
var errVersionConflict = errors.New("inventory version conflict")

// mysqlDuplicateEntry is the server error number for a unique key violation.
const mysqlDuplicateEntry = 1062

func isDuplicateKey(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}

// duplicateOn reports whether err is a unique key violation on index.
func duplicateOn(err error, index string) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry && strings.Contains(me.Message, index)
}
