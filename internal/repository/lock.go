package repository

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sort"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// ErrLockNotAcquired reports that a slot lock could not be obtained within
// the bounded wait. The enclosing transaction is poisoned by the Postgres
// error and must be rolled back.
var ErrLockNotAcquired = errors.New("advisory lock not acquired within timeout")

// pgLockNotAvailable is the Postgres SQLSTATE raised when lock_timeout
// expires while waiting.
const pgLockNotAvailable = "55P03"

// sweepLockKey serializes the automatic sweep across the fleet. It shares
// the advisory-lock keyspace with slot locks, so it is derived from a name
// no slot key can collide with.
var sweepLockKey = slotLockKey(0, "sweep", -1)

// LockManager hands out named transaction-scoped exclusive locks from
// Postgres. Locks taken with pg_advisory_xact_lock are released by the
// server at commit or rollback — never by an explicit unlock — so a crashed
// process cannot leak one.
type LockManager interface {
	AcquireSlotLocks(ctx context.Context, tx *gorm.DB, shopID uint, date time.Time, startMin, endMin, granularity int, timeout time.Duration) error
	TryAcquireSweepLock(ctx context.Context, tx *gorm.DB) (bool, error)
}

type lockManager struct{}

func NewLockManager() LockManager {
	return lockManager{}
}

// AcquireSlotLocks takes one exclusive lock per granularity-step granule the
// span [startMin, endMin) covers, so any two overlapping spans always
// contend on at least one shared key. Keys are acquired in sorted order to
// keep concurrent multi-granule bookings deadlock-free.
func (lockManager) AcquireSlotLocks(ctx context.Context, tx *gorm.DB, shopID uint, date time.Time, startMin, endMin, granularity int, timeout time.Duration) error {
	if granularity <= 0 {
		granularity = 30
	}

	day := date.Format("2006-01-02")
	first := (startMin / granularity) * granularity
	keys := make([]int64, 0, (endMin-first)/granularity+1)
	for g := first; g < endMin; g += granularity {
		keys = append(keys, slotLockKey(shopID, day, g))
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	// lock_timeout bounds the wait for every lock below; SET LOCAL scopes
	// it to this transaction.
	if err := tx.WithContext(ctx).
		Exec(fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", timeout.Milliseconds())).Error; err != nil {
		return err
	}

	for _, key := range keys {
		if err := tx.WithContext(ctx).
			Exec("SELECT pg_advisory_xact_lock(?)", key).Error; err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == pgLockNotAvailable {
				return ErrLockNotAcquired
			}
			return err
		}
	}
	return nil
}

// TryAcquireSweepLock attempts the sweep's exclusive lock without waiting.
// False means another sweep instance is already running.
func (lockManager) TryAcquireSweepLock(ctx context.Context, tx *gorm.DB) (bool, error) {
	var acquired bool
	err := tx.WithContext(ctx).
		Raw("SELECT pg_try_advisory_xact_lock(?)", sweepLockKey).
		Scan(&acquired).Error
	return acquired, err
}

// slotLockKey hashes (shop, date, slot start) into the signed 64-bit space
// Postgres advisory locks use. FNV-64a is stable across processes, which is
// all the keyspace needs.
func slotLockKey(shopID uint, date string, startMin int) int64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "shop:%d:date:%s:slot:%d", shopID, date, startMin)
	return int64(h.Sum64())
}
