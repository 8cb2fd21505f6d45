package csvimport

import (
	"io"
	"time"
)

// Canonical requester columns
const (
	ColumnCIN        = "cin"
	ColumnLastName   = "last_name"
	ColumnFirstName  = "first_name"
	ColumnBirthDate  = "birth_date"
	ColumnBirthPlace = "birth_place"
	ColumnAddress    = "address"
)

// RequesterAliases maps the French headers found in field exports to canonical columns
var RequesterAliases = map[string]string{
	"nom":            ColumnLastName,
	"prenom":         ColumnFirstName,
	"prénom":         ColumnFirstName,
	"prenoms":        ColumnFirstName,
	"prénoms":        ColumnFirstName,
	"date_naissance": ColumnBirthDate,
	"né_le":          ColumnBirthDate,
	"ne_le":          ColumnBirthDate,
	"lieu_naissance": ColumnBirthPlace,
	"né_à":           ColumnBirthPlace,
	"ne_a":           ColumnBirthPlace,
	"adresse":        ColumnAddress,
	"domicile":       ColumnAddress,
	"num_cin":        ColumnCIN,
}

// dateLayouts are tried in order; day-first is the local convention
var dateLayouts = []string{"02/01/2006", "2006-01-02", "02-01-2006"}

// RequesterRow is one requester line of an intake file
type RequesterRow struct {
	Line       int
	CIN        string
	LastName   string
	FirstName  string
	BirthDate  *time.Time
	BirthPlace string
	Address    string
}

// ReadRequesters reads a requester list. CIN format is not checked here; a
// row error is only raised for what cannot be parsed at all (missing columns, dates).
func ReadRequesters(r io.Reader) ([]RequesterRow, error) {
	reader, err := NewReader(r, RequesterAliases)
	if err != nil {
		return nil, err
	}
	var missing RowErrors
	for _, c := range []string{ColumnCIN, ColumnLastName} {
		if !reader.Has(c) {
			missing = append(missing, RowError{Row: 1, Column: c, Message: "required column is missing"})
		}
	}
	if len(missing) > 0 {
		return nil, missing
	}

	records, err := reader.All()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrNoDataRows
	}

	rows := make([]RequesterRow, 0, len(records))
	var errs RowErrors
	for _, rec := range records {
		row := RequesterRow{
			Line:       rec.Line,
			CIN:        rec.Get(ColumnCIN),
			LastName:   rec.Get(ColumnLastName),
			FirstName:  rec.Get(ColumnFirstName),
			BirthPlace: rec.Get(ColumnBirthPlace),
			Address:    rec.Get(ColumnAddress),
		}
		if raw := rec.Get(ColumnBirthDate); raw != "" {
			d, ok := parseDate(raw)
			if !ok {
				errs = append(errs, RowError{Row: rec.Line, Column: ColumnBirthDate, Message: "expected a date like 31/12/1980", Value: raw})
				continue
			}
			row.BirthDate = &d
		}
		rows = append(rows, row)
	}
	if len(errs) > 0 {
		return nil, errs
	}
	return rows, nil
}

func parseDate(s string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
