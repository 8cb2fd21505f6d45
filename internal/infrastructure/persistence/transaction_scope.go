package persistence

import (
	"context"
	"time"

	"github.com/foncier/backend/internal/application/uow"
	"github.com/foncier/backend/internal/domain/document"
	"github.com/foncier/backend/internal/domain/dossier"
	"github.com/foncier/backend/internal/domain/geo"
	"gorm.io/gorm"
)

// GormTransactionScope implements TransactionScope using GORM transactions.
type GormTransactionScope struct {
	db *gorm.DB
}

// NewGormTransactionScope creates a new GormTransactionScope.
func NewGormTransactionScope(db *gorm.DB) *GormTransactionScope {
	return &GormTransactionScope{db: db}
}

// Execute runs the given function within a database transaction.
func (s *GormTransactionScope) Execute(ctx context.Context, fn func(repos uow.TransactionalRepositories) error) error {
	return s.ExecuteWithLockTimeout(ctx, 0, fn)
}

// ExecuteWithLockTimeout runs fn in a transaction whose row lock waits are bounded by timeout.
// On Postgres, SQLSTATE 55P03 raised by an expired wait is mapped to shared.ErrLockTimeout.
func (s *GormTransactionScope) ExecuteWithLockTimeout(ctx context.Context, timeout time.Duration, fn func(repos uow.TransactionalRepositories) error) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := setLockTimeout(tx, timeout); err != nil {
			return err
		}
		return fn(&gormTransactionalRepositories{tx: tx})
	})
	return translateError(err, nil)
}

// gormTransactionalRepositories provides access to all repositories within a transaction.
type gormTransactionalRepositories struct {
	tx *gorm.DB
}

func (r *gormTransactionalRepositories) DossierRepo() dossier.DossierRepository {
	return NewGormDossierRepository(r.tx)
}

func (r *gormTransactionalRepositories) PropertyRepo() dossier.PropertyRepository {
	return NewGormPropertyRepository(r.tx)
}

func (r *gormTransactionalRepositories) RequesterRepo() dossier.RequesterRepository {
	return NewGormRequesterRepository(r.tx)
}

func (r *gormTransactionalRepositories) AssociationRepo() dossier.AssociationRepository {
	return NewGormAssociationRepository(r.tx)
}

func (r *gormTransactionalRepositories) DocumentRepo() document.DocumentRepository {
	return NewGormDocumentRepository(r.tx)
}

func (r *gormTransactionalRepositories) SequenceRepo() document.SequenceRepository {
	return NewGormSequenceRepository(r.tx)
}

func (r *gormTransactionalRepositories) TariffRepo() geo.TariffRepository {
	return NewGormTariffRepository(r.tx)
}

// Ensure GormTransactionScope implements TransactionScope
var _ uow.TransactionScope = (*GormTransactionScope)(nil)

// Ensure gormTransactionalRepositories implements TransactionalRepositories
var _ uow.TransactionalRepositories = (*gormTransactionalRepositories)(nil)
