// Package document holds generated documents and the closed set of document
// types with their numbering rules.
package document

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/foncier/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// Type is the closed set of document types
type Type string

const (
	TypeReceipt       Type = "RECEIPT"
	TypeSaleDeed      Type = "SALE_DEED"
	TypeFinancialCert Type = "FINANCIAL_CERT"
	TypeRequisition   Type = "REQUISITION"
)

// Scope is the uniqueness partition of a document number
type Scope string

const (
	ScopeDossier Scope = "dossier"
	ScopeGlobal  Scope = "global"
)

// TypeSpec carries the numbering constants of one document type
type TypeSpec struct {
	Type            Type
	Label           string
	Prefix          string
	SequenceWidth   int
	Discriminated   bool // number carries a "/DDD" suffix
	Pattern         *regexp.Regexp
	Scope           Scope
	AllowDuplicates bool // several active documents may coexist for one entity
	RequiresEntity  bool // an association must be named
}

var (
	receiptSpec = TypeSpec{
		Type:           TypeReceipt,
		Label:          "Reçu",
		SequenceWidth:  3,
		Discriminated:  true,
		Pattern:        regexp.MustCompile(`^\d{3}/\d+$`),
		Scope:          ScopeDossier,
		RequiresEntity: true,
	}
	saleDeedSpec = TypeSpec{
		Type:           TypeSaleDeed,
		Label:          "Acte de vente",
		Prefix:         "AV-",
		SequenceWidth:  4,
		Discriminated:  true,
		Pattern:        regexp.MustCompile(`^AV-\d{4}/\d+$`),
		Scope:          ScopeGlobal,
		RequiresEntity: true,
	}
	financialCertSpec = TypeSpec{
		Type:            TypeFinancialCert,
		Label:           "Certificat de situation financière",
		Prefix:          "CSF-",
		SequenceWidth:   3,
		Discriminated:   true,
		Pattern:         regexp.MustCompile(`^CSF-\d{3,}/\d+$`),
		Scope:           ScopeDossier,
		AllowDuplicates: true,
	}
	requisitionSpec = TypeSpec{
		Type:          TypeRequisition,
		Label:         "Réquisition",
		Prefix:        "RQ-",
		SequenceWidth: 5,
		Pattern:       regexp.MustCompile(`^RQ-\d{5,}$`),
		Scope:         ScopeGlobal,
	}
)

// Spec returns the numbering rules of t
func (t Type) Spec() (TypeSpec, error) {
	switch t {
	case TypeReceipt:
		return receiptSpec, nil
	case TypeSaleDeed:
		return saleDeedSpec, nil
	case TypeFinancialCert:
		return financialCertSpec, nil
	case TypeRequisition:
		return requisitionSpec, nil
	}
	return TypeSpec{}, shared.NewDomainError("INVALID_DOCUMENT_TYPE", fmt.Sprintf("Unknown document type %q", t))
}

// Types lists every document type
func Types() []Type {
	return []Type{TypeReceipt, TypeSaleDeed, TypeFinancialCert, TypeRequisition}
}

// ParseType parses a case-insensitive type name
func ParseType(s string) (Type, error) {
	t := Type(strings.ToUpper(strings.TrimSpace(s)))
	if _, err := t.Spec(); err != nil {
		return "", err
	}
	return t, nil
}

// Format renders a sequence number, e.g. 7 → "007/2024" for receipts
func (s TypeSpec) Format(sequence int64, discriminator string) string {
	n := fmt.Sprintf("%s%0*d", s.Prefix, s.SequenceWidth, sequence)
	if s.Discriminated {
		n += "/" + discriminator
	}
	return n
}

// Validate checks a client-supplied number against the type's format
func (s TypeSpec) Validate(number string) error {
	if !s.Pattern.MatchString(number) {
		return shared.ErrInvalidNumberFormat.WithMessage(
			fmt.Sprintf("Number %q does not match the %s format %s", number, s.Label, s.Pattern.String()))
	}
	return nil
}

// SequenceOf extracts the numeric sequence from a well-formed number
func (s TypeSpec) SequenceOf(number string) (int64, error) {
	if err := s.Validate(number); err != nil {
		return 0, err
	}
	digits := strings.TrimPrefix(number, s.Prefix)
	if i := strings.IndexByte(digits, '/'); i >= 0 {
		digits = digits[:i]
	}
	return strconv.ParseInt(digits, 10, 64)
}

// ScopeKey is the uniqueness partition key, also used as the lock key
func (s TypeSpec) ScopeKey(dossierID uuid.UUID) string {
	if s.Scope == ScopeGlobal {
		return "doc:" + string(s.Type)
	}
	return "doc:" + string(s.Type) + ":" + dossierID.String()
}

// SequenceKey is the counter row key; sequences restart per discriminator (usually the year)
func (s TypeSpec) SequenceKey(dossierID uuid.UUID, discriminator string) string {
	if !s.Discriminated {
		return s.ScopeKey(dossierID)
	}
	return s.ScopeKey(dossierID) + "/" + discriminator
}
