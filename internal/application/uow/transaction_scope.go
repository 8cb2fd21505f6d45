// Package uow defines the transactional unit of work shared by the ranking,
// numbering and pricing services.
package uow

import (
	"context"
	"time"

	"github.com/foncier/backend/internal/domain/document"
	"github.com/foncier/backend/internal/domain/dossier"
	"github.com/foncier/backend/internal/domain/geo"
)

// TransactionScope runs a function with repositories bound to one database transaction.
// If the function returns an error, the transaction is rolled back.
type TransactionScope interface {
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error

	// ExecuteWithLockTimeout is Execute with row lock waits bounded by timeout.
	// A wait that runs out surfaces as shared.ErrLockTimeout.
	ExecuteWithLockTimeout(ctx context.Context, timeout time.Duration, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories provides access to all repositories within a transaction.
// All repositories returned share the same underlying database transaction.
type TransactionalRepositories interface {
	DossierRepo() dossier.DossierRepository
	PropertyRepo() dossier.PropertyRepository
	RequesterRepo() dossier.RequesterRepository
	AssociationRepo() dossier.AssociationRepository
	DocumentRepo() document.DocumentRepository
	SequenceRepo() document.SequenceRepository
	TariffRepo() geo.TariffRepository
}

// Repositories is a plain bundle of repositories
type Repositories struct {
	Dossiers     dossier.DossierRepository
	Properties   dossier.PropertyRepository
	Requesters   dossier.RequesterRepository
	Associations dossier.AssociationRepository
	Documents    document.DocumentRepository
	Sequences    document.SequenceRepository
	Tariffs      geo.TariffRepository
}

// NoOpTransactionScope is a transaction scope that doesn't actually use transactions.
// This is useful for testing or when transaction support is not required.
type NoOpTransactionScope struct {
	repos Repositories
}

// NewNoOpTransactionScope creates a NoOpTransactionScope with the given repositories.
func NewNoOpTransactionScope(repos Repositories) *NoOpTransactionScope {
	return &NoOpTransactionScope{repos: repos}
}

// Execute runs the function without a real transaction
func (s *NoOpTransactionScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	return fn(s)
}

// ExecuteWithLockTimeout runs the function without a real transaction
func (s *NoOpTransactionScope) ExecuteWithLockTimeout(ctx context.Context, _ time.Duration, fn func(repos TransactionalRepositories) error) error {
	return s.Execute(ctx, fn)
}

func (s *NoOpTransactionScope) DossierRepo() dossier.DossierRepository         { return s.repos.Dossiers }
func (s *NoOpTransactionScope) PropertyRepo() dossier.PropertyRepository       { return s.repos.Properties }
func (s *NoOpTransactionScope) RequesterRepo() dossier.RequesterRepository     { return s.repos.Requesters }
func (s *NoOpTransactionScope) AssociationRepo() dossier.AssociationRepository { return s.repos.Associations }
func (s *NoOpTransactionScope) DocumentRepo() document.DocumentRepository      { return s.repos.Documents }
func (s *NoOpTransactionScope) SequenceRepo() document.SequenceRepository      { return s.repos.Sequences }
func (s *NoOpTransactionScope) TariffRepo() geo.TariffRepository               { return s.repos.Tariffs }

var _ TransactionScope = (*NoOpTransactionScope)(nil)
var _ TransactionalRepositories = (*NoOpTransactionScope)(nil)
