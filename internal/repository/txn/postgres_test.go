package txn

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	for _, code := range []string{codeSerializationFailure, codeDeadlockDetected, codeLockNotAvailable} {
		err := classify(fmt.Errorf("exec: %w", &pgconn.PgError{Code: code, Message: "conflict"}))
		assert.ErrorIs(t, err, ErrConflict, code)
	}

	uniqueViolation := &pgconn.PgError{Code: "23505"}
	assert.Same(t, error(uniqueViolation), classify(uniqueViolation))

	plain := errors.New("boom")
	assert.Same(t, plain, classify(plain))
	assert.NoError(t, classify(nil))
}
