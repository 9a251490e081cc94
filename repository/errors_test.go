package repository

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"testing"

	"Soundcheck/model"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestClassify(t *testing.T) {
	assert.NoError(t, classify(nil))
	assert.ErrorIs(t, classify(gorm.ErrRecordNotFound), model.ErrNotFound)
	assert.ErrorIs(t, classify(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}), model.ErrConflict)
	assert.ErrorIs(t, classify(&mysql.MySQLError{Number: 1213, Message: "Deadlock found"}), model.ErrTransient)
	assert.ErrorIs(t, classify(fmt.Errorf("exec: %w", &mysql.MySQLError{Number: 1205})), model.ErrTransient)
	assert.ErrorIs(t, classify(driver.ErrBadConn), model.ErrTransient)

	plain := errors.New("syntax error")
	assert.Equal(t, plain, classify(plain))

	already := fmt.Errorf("%w: v3", model.ErrVersionConflict)
	assert.Equal(t, already, classify(already))
}
