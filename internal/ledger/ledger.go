// Package ledger implements the billing core: catalog, reading ledger,
// billing engine, payment ledger, settlement ledger and the read-only
// summary projections. Ledgers are the only writers of their entities;
// handlers and importers go through them.
package ledger

import (
	"errors"
	"strconv"

	"meter-billing/internal/apperr"
	"meter-billing/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// itoa formats a surrogate key for error context.
func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

// Caller identifies the authenticated operator performing a write.
type Caller struct {
	ID   uint
	Role string // models.RoleAdmin / models.RoleReader
}

// requireCaller rejects writes without an authenticated caller.
func requireCaller(caller *Caller, entity string) error {
	if caller == nil || caller.ID == 0 {
		return apperr.New(apperr.Unauthorized, entity, "", "未登录")
	}
	return nil
}

// requireAdmin gates operations reserved to administrators.
func requireAdmin(caller *Caller, entity string) error {
	if err := requireCaller(caller, entity); err != nil {
		return err
	}
	if caller.Role != models.RoleAdmin {
		return apperr.New(apperr.Unauthorized, entity, "", "需要管理员权限")
	}
	return nil
}

// round2 is the engine-wide rounding rule: half-up, 2 fractional digits.
func round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// storeErr maps a gorm error to a tagged domain error with context.
func storeErr(entity, key string, err error) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return apperr.Wrap(apperr.NotFound, entity, key, err)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return apperr.Wrap(apperr.Conflict, entity, key, err)
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return apperr.Wrap(apperr.Integrity, entity, key, err)
	default:
		return apperr.Wrap(apperr.Unavailable, entity, key, err)
	}
}
