package dossier

import (
	"regexp"
	"strings"
	"time"

	"github.com/foncier/backend/internal/domain/shared"
	"github.com/google/uuid"
)

var cinPattern = regexp.MustCompile(`^\d{12}$`)

// ValidCIN reports whether s is a well-formed 12-digit national identity number
func ValidCIN(s string) bool {
	return cinPattern.MatchString(s)
}

// NormalizeCIN strips the spaces and dots people type between digit groups
func NormalizeCIN(s string) string {
	r := strings.NewReplacer(" ", "", ".", "", "-", "")
	return r.Replace(strings.TrimSpace(s))
}

// Requester ("demandeur") is a person claiming an interest in properties of a dossier.
// CIN uniqueness is only enforced within one intake batch.
type Requester struct {
	shared.DistrictAggregateRoot
	DossierID  uuid.UUID
	CIN        string
	LastName   string
	FirstName  string
	BirthDate  *time.Time
	BirthPlace string
	Address    string
}

// RequesterInput carries the identity of a requester
type RequesterInput struct {
	CIN        string
	LastName   string
	FirstName  string
	BirthDate  *time.Time
	BirthPlace string
	Address    string
}

// NewRequester creates a requester attached to a dossier
func NewRequester(d *Dossier, in RequesterInput, actorID uuid.UUID) (*Requester, error) {
	if d == nil {
		return nil, shared.NewDomainError("INVALID_DOSSIER", "Dossier cannot be empty")
	}
	cin := NormalizeCIN(in.CIN)
	if !ValidCIN(cin) {
		return nil, shared.NewDomainError("INVALID_CIN", "CIN must be exactly 12 digits")
	}
	if strings.TrimSpace(in.LastName) == "" {
		return nil, shared.NewDomainError("INVALID_NAME", "Last name cannot be empty")
	}

	r := &Requester{
		DistrictAggregateRoot: shared.NewDistrictAggregateRoot(d.DistrictID),
		DossierID:             d.ID,
		CIN:                   cin,
		LastName:              strings.TrimSpace(in.LastName),
		FirstName:             strings.TrimSpace(in.FirstName),
		BirthDate:             in.BirthDate,
		BirthPlace:            strings.TrimSpace(in.BirthPlace),
		Address:               strings.TrimSpace(in.Address),
	}
	r.SetCreatedBy(actorID)
	r.AddDomainEvent(NewRequesterEvent(r, actorID, EventTypeRequesterCreated))
	return r, nil
}

// FullName returns "LASTNAME Firstname"
func (r *Requester) FullName() string {
	if r.FirstName == "" {
		return strings.ToUpper(r.LastName)
	}
	return strings.ToUpper(r.LastName) + " " + r.FirstName
}

// Rename updates the name fields
func (r *Requester) Rename(lastName, firstName string, actorID uuid.UUID) error {
	if strings.TrimSpace(lastName) == "" {
		return shared.NewDomainError("INVALID_NAME", "Last name cannot be empty")
	}
	r.LastName = strings.TrimSpace(lastName)
	r.FirstName = strings.TrimSpace(firstName)
	r.UpdatedAt = time.Now()
	r.IncrementVersion()
	r.AddDomainEvent(NewRequesterEvent(r, actorID, EventTypeRequesterUpdated))
	return nil
}
