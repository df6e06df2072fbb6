package workflow

import (
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
)

func TestIsRetryableConflict(t *testing.T) {
	assert.True(t, isRetryableConflict(&mysql.MySQLError{Number: 1213}), "deadlock")
	assert.True(t, isRetryableConflict(&mysql.MySQLError{Number: 1205}), "lock wait timeout")
	assert.True(t, isRetryableConflict(&mysql.MySQLError{Number: 1062}), "duplicate key")

	wrapped := fmt.Errorf("commit: %w", &mysql.MySQLError{Number: 1213})
	assert.True(t, isRetryableConflict(wrapped), "wrapped conflict")

	assert.False(t, isRetryableConflict(&mysql.MySQLError{Number: 1064}), "syntax error")
	assert.False(t, isRetryableConflict(errors.New("boom")))
	assert.False(t, isRetryableConflict(nil))
}
