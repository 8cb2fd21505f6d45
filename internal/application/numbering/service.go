// Package numbering allocates document numbers that are unique within their
// scope under concurrent callers, and orchestrates document generation.
package numbering

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/foncier/backend/internal/application/uow"
	"github.com/foncier/backend/internal/domain/document"
	"github.com/foncier/backend/internal/domain/geo"
	"github.com/foncier/backend/internal/domain/shared"
	"github.com/foncier/backend/internal/infrastructure/config"
	"github.com/foncier/backend/internal/infrastructure/logger"
	"github.com/foncier/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AllocateRequest asks for the next document of a type in a dossier
type AllocateRequest struct {
	DossierID uuid.UUID
	Type      document.Type

	// EntityKey is the association the document is about
	EntityKey *uuid.UUID

	// ClientNumber is a caller-chosen number; empty means the next in sequence
	ClientNumber string

	// Discriminator is the number suffix; empty means the current year
	Discriminator string
}

// Service is the document numbering service
type Service struct {
	txScope     uow.TransactionScope
	documents   document.DocumentRepository
	section     uow.KeyedSection
	lockTimeout time.Duration
	location    *time.Location
	renderer    document.Renderer
	publisher   shared.EventPublisher
	metrics     *telemetry.ConsistencyMetrics
	logger      *zap.Logger
	now         func() time.Time
}

// NewService creates a new numbering Service
func NewService(txScope uow.TransactionScope, documents document.DocumentRepository, locker shared.KeyedLocker, cfg config.NumberingConfig, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		txScope:   txScope,
		documents: documents,
		section: uow.KeyedSection{
			Locker:    locker,
			Wait:      cfg.LockTimeout,
			RetryOnce: cfg.RetryOnce,
			Scope:     telemetry.LockScopeNumbering,
		},
		lockTimeout: cfg.LockTimeout,
		location:    cfg.YearLocation(),
		logger:      logger,
		now:         time.Now,
	}
}

// SetRenderer sets the document renderer used by Generate
func (s *Service) SetRenderer(r document.Renderer) {
	s.renderer = r
}

// SetEventPublisher sets the event publisher for publishing domain events
func (s *Service) SetEventPublisher(publisher shared.EventPublisher) {
	s.publisher = publisher
}

// SetMetrics sets the consistency metrics collector
func (s *Service) SetMetrics(m *telemetry.ConsistencyMetrics) {
	s.metrics = m
	s.section.Metrics = m
}

// AllocateNumber reserves a number and records the new active document.
// The scope key is held from the existence check until commit, so two
// callers never receive the same number. Prior active documents of the
// same (dossier, type, entity) are superseded unless the type allows duplicates.
func (s *Service) AllocateNumber(ctx context.Context, req AllocateRequest) (*document.GeneratedDocument, error) {
	actor, err := geo.RequireActor(ctx)
	if err != nil {
		return nil, err
	}
	spec, err := req.Type.Spec()
	if err != nil {
		return nil, err
	}
	if spec.RequiresEntity && req.EntityKey == nil {
		return nil, shared.ErrInvalidInput.WithMessage(spec.Label + " must name the association it is about")
	}
	clientNumber := strings.TrimSpace(req.ClientNumber)
	if clientNumber != "" {
		if err := spec.Validate(clientNumber); err != nil {
			return nil, err
		}
	}
	discriminator := strings.TrimSpace(req.Discriminator)
	if discriminator == "" {
		discriminator = strconv.Itoa(s.now().In(s.location).Year())
	} else if !isDigits(discriminator) {
		return nil, shared.ErrInvalidNumberFormat.WithMessage("Discriminator must be numeric")
	}

	var (
		allocated  *document.GeneratedDocument
		superseded []string
	)
	err = s.section.Run(ctx, spec.ScopeKey(req.DossierID), func() error {
		superseded = nil
		return s.txScope.ExecuteWithLockTimeout(ctx, s.lockTimeout, func(tx uow.TransactionalRepositories) error {
			d, err := tx.DossierRepo().FindByIDForShare(ctx, req.DossierID)
			if err != nil {
				return err
			}
			if err := actor.EnsureDistrict(d.DistrictID); err != nil {
				return err
			}
			if err := d.EnsureOpen(); err != nil {
				return err
			}

			var requesterID, propertyID *uuid.UUID
			if req.EntityKey != nil {
				a, err := tx.AssociationRepo().FindByID(ctx, *req.EntityKey)
				if err != nil {
					return err
				}
				if a.DossierID != d.ID {
					return shared.ErrInvalidInput.WithMessage("Association does not belong to the dossier")
				}
				requesterID, propertyID = &a.RequesterID, &a.PropertyID
			}

			number, sequence, err := s.reserve(ctx, tx, spec, req.DossierID, clientNumber, discriminator)
			if err != nil {
				return err
			}

			doc := document.NewGeneratedDocument(d.DistrictID, d.ID, spec, number, sequence, req.EntityKey, actor.UserID)
			doc.RequesterID, doc.PropertyID = requesterID, propertyID

			if !spec.AllowDuplicates {
				prior, err := tx.DocumentRepo().FindActive(ctx, d.ID, spec.Type, req.EntityKey)
				if err != nil {
					return err
				}
				for i := range prior {
					if err := prior[i].Supersede(doc.ID); err != nil {
						return err
					}
					if err := tx.DocumentRepo().Save(ctx, &prior[i]); err != nil {
						return err
					}
					superseded = append(superseded, prior[i].Number)
				}
			}

			if err := tx.DocumentRepo().Create(ctx, doc); err != nil {
				return err
			}
			doc.RecordAllocated(actor.UserID, superseded)
			allocated = doc
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordNumberAllocated(ctx, string(spec.Type), len(superseded))
	logger.WithLogger(ctx, s.logger).Info("Document number allocated",
		zap.String("document_id", allocated.ID.String()),
		zap.String("dossier_id", allocated.DossierID.String()),
		zap.String("type", string(allocated.Type)),
		zap.String("number", allocated.Number),
		zap.Strings("superseded", superseded),
	)
	s.publish(ctx, allocated)
	return allocated, nil
}

// reserve picks the number inside the allocating transaction
func (s *Service) reserve(ctx context.Context, tx uow.TransactionalRepositories, spec document.TypeSpec, dossierID uuid.UUID, clientNumber, discriminator string) (string, int64, error) {
	if clientNumber != "" {
		_, err := tx.DocumentRepo().FindActiveByNumber(ctx, spec.ScopeKey(dossierID), clientNumber)
		if err == nil {
			return "", 0, shared.ErrDuplicateNumber.WithMessage(
				fmt.Sprintf("Number %s is already used by an active %s", clientNumber, spec.Label))
		}
		if !errors.Is(err, shared.ErrNotFound) {
			return "", 0, err
		}
		sequence, err := spec.SequenceOf(clientNumber)
		if err != nil {
			return "", 0, err
		}
		if spec.Discriminated {
			discriminator = clientNumber[strings.LastIndexByte(clientNumber, '/')+1:]
		}
		if err := tx.SequenceRepo().Bump(ctx, spec.SequenceKey(dossierID, discriminator), sequence); err != nil {
			return "", 0, err
		}
		return clientNumber, sequence, nil
	}

	sequence, err := tx.SequenceRepo().Next(ctx, spec.SequenceKey(dossierID, discriminator))
	if err != nil {
		return "", 0, err
	}
	number := spec.Format(sequence, discriminator)
	if spec.Validate(number) != nil {
		return "", 0, shared.ErrSequenceExhausted.WithMessage(
			fmt.Sprintf("%s sequence %s is exhausted", spec.Label, spec.SequenceKey(dossierID, discriminator)))
	}
	return number, sequence, nil
}

// GetActive returns the current document of (dossier, type, entity).
// For types allowing duplicates the most recent one is returned.
func (s *Service) GetActive(ctx context.Context, dossierID uuid.UUID, docType document.Type, entityKey *uuid.UUID) (*document.GeneratedDocument, error) {
	actor, err := geo.RequireActor(ctx)
	if err != nil {
		return nil, err
	}
	docs, err := s.documents.FindActive(ctx, dossierID, docType, entityKey)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, shared.ErrNotFound.WithMessage("No active " + string(docType) + " document")
	}
	doc := &docs[len(docs)-1]
	if err := actor.EnsureDistrict(doc.DistrictID); err != nil {
		return nil, err
	}
	return doc, nil
}

// Get returns a document by id
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*document.GeneratedDocument, error) {
	actor, err := geo.RequireActor(ctx)
	if err != nil {
		return nil, err
	}
	doc, err := s.documents.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := actor.EnsureDistrict(doc.DistrictID); err != nil {
		return nil, err
	}
	return doc, nil
}

// ListByDossier returns every document of a dossier, superseded included
func (s *Service) ListByDossier(ctx context.Context, dossierID uuid.UUID) ([]document.GeneratedDocument, error) {
	actor, err := geo.RequireActor(ctx)
	if err != nil {
		return nil, err
	}
	docs, err := s.documents.FindByDossier(ctx, dossierID)
	if err != nil {
		return nil, err
	}
	if len(docs) > 0 {
		if err := actor.EnsureDistrict(docs[0].DistrictID); err != nil {
			return nil, err
		}
	}
	return docs, nil
}

func (s *Service) publish(ctx context.Context, doc *document.GeneratedDocument) {
	events := doc.GetDomainEvents()
	doc.ClearDomainEvents()
	if s.publisher == nil || len(events) == 0 {
		return
	}
	if err := s.publisher.Publish(ctx, events...); err != nil {
		logger.WithLogger(ctx, s.logger).Warn("Failed to publish document events",
			zap.String("document_id", doc.ID.String()),
			zap.Error(err),
		)
	}
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
