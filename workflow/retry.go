package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/mmdatafocus/ledger_engine/config"
	"github.com/mmdatafocus/ledger_engine/models"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const maxPostingRetries = 3

// isRetryableConflict recognizes MySQL write conflicts that are safe to
// retry: deadlock (1213), lock wait timeout (1205), and duplicate key
// (1062). The latter covers an entry-number collision when a second poster
// reads MAX(id) between the first poster's lock release and commit; the
// unique index on entry_number turns that race into a retryable error.
func isRetryableConflict(err error) bool {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1213 || mysqlErr.Number == 1205 || mysqlErr.Number == 1062
	}
	return false
}

// runPostingTx executes fn inside one transaction serialized by the advisory
// posting lock for scope. Write conflicts are retried transparently up to
// maxPostingRetries before ErrConcurrentModification is surfaced; they are
// never silently dropped.
func runPostingTx(ctx context.Context, logger *logrus.Logger, scope string, fn func(tx *gorm.DB) error) error {
	db := config.GetDB()
	var lastErr error

	for attempt := 1; attempt <= maxPostingRetries; attempt++ {
		tx := db.WithContext(ctx).Begin()
		if tx.Error != nil {
			return tx.Error
		}
		if err := AcquirePostingLock(tx, scope); err != nil {
			tx.Rollback()
			lastErr = err
			time.Sleep(time.Duration(attempt) * 50 * time.Millisecond)
			continue
		}

		err := fn(tx)
		if err == nil {
			ReleasePostingLock(tx, scope)
			err = tx.Commit().Error
			if err == nil {
				return nil
			}
		} else {
			ReleasePostingLock(tx, scope)
			tx.Rollback()
		}

		if !isRetryableConflict(err) {
			return err
		}
		lastErr = err
		time.Sleep(time.Duration(attempt) * 50 * time.Millisecond)
	}

	config.LogError(logger, "retry.go", "runPostingTx", scope, nil, lastErr)
	return fmt.Errorf("%w (scope=%s): %v", models.ErrConcurrentModification, scope, lastErr)
}

func itemScope(itemId int) string {
	return fmt.Sprintf("item:%d", itemId)
}
