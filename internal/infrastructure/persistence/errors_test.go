package persistence

import (
	"errors"
	"fmt"
	"testing"

	"github.com/foncier/backend/internal/domain/shared"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestTranslateError(t *testing.T) {
	lockErr := fmt.Errorf("exec: %w", &pgconn.PgError{Code: "55P03", Message: "canceling statement due to lock timeout"})
	deadlock := &pgconn.PgError{Code: "40P01"}
	unique := &pgconn.PgError{Code: "23505", ConstraintName: "idx_documents_active_number"}

	tests := []struct {
		name     string
		err      error
		onUnique *shared.DomainError
		want     error
	}{
		{"nil", nil, nil, nil},
		{"record not found", gorm.ErrRecordNotFound, nil, shared.ErrNotFound},
		{"lock timeout", lockErr, nil, shared.ErrLockTimeout},
		{"deadlock", deadlock, nil, shared.ErrLockTimeout},
		{"unique violation", unique, shared.ErrDuplicateNumber, shared.ErrDuplicateNumber},
		{"translated duplicate", gorm.ErrDuplicatedKey, shared.ErrAlreadyExists, shared.ErrAlreadyExists},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := translateError(tt.err, tt.onUnique)
			if tt.want == nil {
				assert.NoError(t, got)
				return
			}
			assert.ErrorIs(t, got, tt.want)
		})
	}

	t.Run("unique violation without mapping passes through", func(t *testing.T) {
		got := translateError(unique, nil)
		var pgErr *pgconn.PgError
		assert.True(t, errors.As(got, &pgErr))
	})
}

func TestIsContention(t *testing.T) {
	assert.True(t, IsContention(&pgconn.PgError{Code: "55P03"}))
	assert.True(t, IsContention(gorm.ErrDuplicatedKey))
	assert.False(t, IsContention(errors.New("connection refused")))
	assert.False(t, IsContention(nil))

	assert.Equal(t, "idx_documents_active_number", violatedConstraint(&pgconn.PgError{Code: "23505", ConstraintName: "idx_documents_active_number"}))
	assert.Empty(t, violatedConstraint(gorm.ErrDuplicatedKey))
}
