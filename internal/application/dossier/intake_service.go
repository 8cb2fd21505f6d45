package dossier

import (
	"context"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/foncier/backend/internal/application/lifecycle"
	"github.com/foncier/backend/internal/application/uow"
	"github.com/foncier/backend/internal/domain/dossier"
	"github.com/foncier/backend/internal/domain/geo"
	"github.com/foncier/backend/internal/domain/shared"
	csvimport "github.com/foncier/backend/internal/infrastructure/import"
	"github.com/foncier/backend/internal/infrastructure/logger"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrDuplicateCINInBatch is returned when two entries of one intake share a CIN
var ErrDuplicateCINInBatch = shared.NewDomainError("DUPLICATE_CIN_IN_BATCH", "The same CIN appears more than once in the intake")

// ErrInvalidIntake is returned when intake entries fail field validation
var ErrInvalidIntake = shared.NewDomainError("INVALID_INTAKE", "Intake entries failed validation")

// IntakeEntry is one requester submitted in an intake batch.
// Ref is the caller's identifier for the entry, echoed back in errors.
type IntakeEntry struct {
	Ref        string     `json:"ref" validate:"max=64"`
	CIN        string     `json:"cin" validate:"required,cin"`
	LastName   string     `json:"last_name" validate:"required,max=100"`
	FirstName  string     `json:"first_name" validate:"max=100"`
	BirthDate  *time.Time `json:"birth_date"`
	BirthPlace string     `json:"birth_place" validate:"max=100"`
	Address    string     `json:"address" validate:"max=255"`
}

func (e IntakeEntry) ref(i int) string {
	if e.Ref != "" {
		return e.Ref
	}
	return "#" + strconv.Itoa(i+1)
}

// NewIntakeValidator builds the validator used for intake entries, with the "cin" tag registered
func NewIntakeValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("cin", func(fl validator.FieldLevel) bool {
		return dossier.ValidCIN(dossier.NormalizeCIN(fl.Field().String()))
	})
	return v
}

// IntakeService registers requesters in batches and maintains them
type IntakeService struct {
	txScope    uow.TransactionScope
	requesters dossier.RequesterRepository
	validate   *validator.Validate
	dispatcher *lifecycle.Dispatcher
	publisher  shared.EventPublisher
	logger     *zap.Logger
}

// NewIntakeService creates a new IntakeService
func NewIntakeService(txScope uow.TransactionScope, requesters dossier.RequesterRepository, dispatcher *lifecycle.Dispatcher, logger *zap.Logger) *IntakeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IntakeService{
		txScope:    txScope,
		requesters: requesters,
		validate:   NewIntakeValidator(),
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// SetEventPublisher sets the event publisher for publishing domain events
func (s *IntakeService) SetEventPublisher(publisher shared.EventPublisher) {
	s.publisher = publisher
}

// Submit validates an intake batch and stores it as a whole. Nothing is
// stored when any entry is invalid or two entries share a CIN.
func (s *IntakeService) Submit(ctx context.Context, dossierID uuid.UUID, entries []IntakeEntry) ([]*dossier.Requester, error) {
	actor, err := geo.RequireActor(ctx)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, shared.ErrInvalidInput.WithMessage("Intake must contain at least one requester")
	}
	if err := s.check(entries); err != nil {
		return nil, err
	}

	var created []*dossier.Requester
	err = s.txScope.Execute(ctx, func(tx uow.TransactionalRepositories) error {
		d, err := tx.DossierRepo().FindByID(ctx, dossierID)
		if err != nil {
			return err
		}
		if err := actor.EnsureDistrict(d.DistrictID); err != nil {
			return err
		}

		batch := make([]*dossier.Requester, 0, len(entries))
		for i, e := range entries {
			r, err := dossier.NewRequester(d, dossier.RequesterInput{
				CIN:        e.CIN,
				LastName:   e.LastName,
				FirstName:  e.FirstName,
				BirthDate:  e.BirthDate,
				BirthPlace: e.BirthPlace,
				Address:    e.Address,
			}, actor.UserID)
			if err != nil {
				var de *shared.DomainError
				if errors.As(err, &de) {
					return de.WithMessage(e.ref(i) + ": " + de.Message)
				}
				return err
			}
			batch = append(batch, r)
		}
		if err := tx.RequesterRepo().SaveBatch(ctx, batch); err != nil {
			return fmt.Errorf("store intake of dossier %s: %w", dossierID, err)
		}
		created = batch
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.WithLogger(ctx, s.logger).Info("Requester intake stored",
		zap.String("dossier_id", dossierID.String()),
		zap.Int("count", len(created)),
	)
	for _, r := range created {
		publish(ctx, s.publisher, s.logger, r)
		dispatch(ctx, s.dispatcher, &lifecycle.Mutation{
			Entity:     lifecycle.EntityRequester,
			Phase:      lifecycle.PhaseCreated,
			EntityID:   r.ID,
			DistrictID: r.DistrictID,
		})
	}
	return created, nil
}

// SubmitCSV reads a requester list exported from a spreadsheet and submits it
// as one intake. Entries are referenced by their line number in errors.
func (s *IntakeService) SubmitCSV(ctx context.Context, dossierID uuid.UUID, r io.Reader) ([]*dossier.Requester, error) {
	rows, err := csvimport.ReadRequesters(r)
	if err != nil {
		var rowErrs csvimport.RowErrors
		if errors.As(err, &rowErrs) {
			return nil, ErrInvalidIntake.WithMessage(rowErrs.Error())
		}
		return nil, shared.ErrInvalidInput.WithMessage(err.Error())
	}
	entries := make([]IntakeEntry, len(rows))
	for i, row := range rows {
		entries[i] = IntakeEntry{
			Ref:        "line " + strconv.Itoa(row.Line),
			CIN:        row.CIN,
			LastName:   row.LastName,
			FirstName:  row.FirstName,
			BirthDate:  row.BirthDate,
			BirthPlace: row.BirthPlace,
			Address:    row.Address,
		}
	}
	return s.Submit(ctx, dossierID, entries)
}

// check runs field validation then the in-batch CIN uniqueness rule
func (s *IntakeService) check(entries []IntakeEntry) error {
	var problems []string
	for i, e := range entries {
		err := s.validate.Struct(e)
		if err == nil {
			continue
		}
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		for _, fe := range verrs {
			problems = append(problems, e.ref(i)+"."+fe.Field()+": "+fieldMessage(fe))
		}
	}
	if len(problems) > 0 {
		return ErrInvalidIntake.WithMessage(strings.Join(problems, "; "))
	}

	byCIN := make(map[string][]string)
	var order []string
	for i, e := range entries {
		cin := dossier.NormalizeCIN(e.CIN)
		if _, seen := byCIN[cin]; !seen {
			order = append(order, cin)
		}
		byCIN[cin] = append(byCIN[cin], e.ref(i))
	}
	var dups []string
	for _, cin := range order {
		if refs := byCIN[cin]; len(refs) > 1 {
			dups = append(dups, refs...)
		}
	}
	if len(dups) > 0 {
		return ErrDuplicateCINInBatch.WithMessage("Duplicate CIN in intake: " + strings.Join(dups, ", "))
	}
	return nil
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required"
	case "cin":
		return "Must be exactly 12 digits"
	case "max":
		return "Must be at most " + fe.Param() + " characters"
	default:
		return "Invalid value"
	}
}

// Rename updates the name of a requester
func (s *IntakeService) Rename(ctx context.Context, requesterID uuid.UUID, lastName, firstName string) (*dossier.Requester, error) {
	actor, err := geo.RequireActor(ctx)
	if err != nil {
		return nil, err
	}

	var updated *dossier.Requester
	err = s.txScope.Execute(ctx, func(tx uow.TransactionalRepositories) error {
		r, err := tx.RequesterRepo().FindByID(ctx, requesterID)
		if err != nil {
			return err
		}
		if err := actor.EnsureDistrict(r.DistrictID); err != nil {
			return err
		}
		if err := r.Rename(lastName, firstName, actor.UserID); err != nil {
			return err
		}
		if err := tx.RequesterRepo().Save(ctx, r); err != nil {
			return err
		}
		updated = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	publish(ctx, s.publisher, s.logger, updated)
	dispatch(ctx, s.dispatcher, &lifecycle.Mutation{
		Entity:     lifecycle.EntityRequester,
		Phase:      lifecycle.PhaseUpdated,
		EntityID:   updated.ID,
		DistrictID: updated.DistrictID,
	})
	return updated, nil
}

// Remove deletes a requester that holds no active association
func (s *IntakeService) Remove(ctx context.Context, requesterID uuid.UUID) error {
	actor, err := geo.RequireActor(ctx)
	if err != nil {
		return err
	}

	var removed *dossier.Requester
	err = s.txScope.Execute(ctx, func(tx uow.TransactionalRepositories) error {
		r, err := tx.RequesterRepo().FindByID(ctx, requesterID)
		if err != nil {
			return err
		}
		if err := actor.EnsureDistrict(r.DistrictID); err != nil {
			return err
		}
		active, err := tx.AssociationRepo().CountActiveByRequester(ctx, requesterID)
		if err != nil {
			return fmt.Errorf("count active associations of requester %s: %w", requesterID, err)
		}
		if active > 0 {
			return shared.ErrInvalidState.WithMessage(fmt.Sprintf("Requester still has %d active associations", active))
		}
		if err := tx.RequesterRepo().Delete(ctx, requesterID); err != nil {
			return err
		}
		r.AddDomainEvent(dossier.NewRequesterEvent(r, actor.UserID, dossier.EventTypeRequesterDeleted))
		removed = r
		return nil
	})
	if err != nil {
		return err
	}

	publish(ctx, s.publisher, s.logger, removed)
	dispatch(ctx, s.dispatcher, &lifecycle.Mutation{
		Entity:     lifecycle.EntityRequester,
		Phase:      lifecycle.PhaseDeleted,
		EntityID:   removed.ID,
		DistrictID: removed.DistrictID,
	})
	return nil
}

// ListByDossier returns the requesters of a dossier the actor can see
func (s *IntakeService) ListByDossier(ctx context.Context, dossierID uuid.UUID) ([]dossier.Requester, error) {
	actor, err := geo.RequireActor(ctx)
	if err != nil {
		return nil, err
	}
	items, err := s.requesters.FindByDossier(ctx, dossierID)
	if err != nil {
		return nil, err
	}
	for _, r := range items {
		if err := actor.EnsureDistrict(r.DistrictID); err != nil {
			return nil, err
		}
	}
	return items, nil
}
