// internal/oplock/guard.go
//
// Optimistic-concurrency guard for head writes.
//
// Context
// -------
// Every mutation of the head record must present the lock counter it last
// read.  This package is the single place where "zero affected rows" becomes
// a typed Conflict, so the versioning service never has to reason about the
// compare-and-bump mechanics, and no second write path can grow its own
// variant of the check.
package oplock

import (
	"context"
	"errors"
	"fmt"

	"github.com/yanizio/minisite/internal/database"
	"github.com/yanizio/minisite/internal/site"
)

// Conflict reports that the stored lock counter no longer matched the value
// the caller read.  User-facing layers translate it into "reload and retry".
type Conflict struct {
	SiteID   string
	Expected int64
}

func (c *Conflict) Error() string {
	return fmt.Sprintf("oplock: site %s modified concurrently (expected counter %d)", c.SiteID, c.Expected)
}

// IsConflict reports whether err is (or wraps) a lock-counter conflict.
func IsConflict(err error) bool {
	var c *Conflict
	return errors.As(err, &c)
}

// ApplyIfCurrent performs the guarded head write.  The mutation is applied
// only when the stored counter equals expectedLock; otherwise a *Conflict is
// returned and nothing changes.  Infrastructure errors pass through.
func ApplyIfCurrent(ctx context.Context, q database.Querier, siteID string, expectedLock int64, mut site.Mutation) error {
	affected, err := site.UpdateHead(ctx, q, siteID, expectedLock, mut)
	if err != nil {
		return err
	}
	if affected == 0 {
		return &Conflict{SiteID: siteID, Expected: expectedLock}
	}
	return nil
}
