package persistence

import (
	"strings"

	"github.com/foncier/backend/internal/domain/shared"
	"gorm.io/gorm"
)

// DossierSortFields lists the dossier columns a listing may order by
var DossierSortFields = map[string]bool{
	"id":         true,
	"created_at": true,
	"updated_at": true,
	"number":     true,
	"label":      true,
	"is_closed":  true,
	"closed_at":  true,
}

// sortDirection normalizes a requested direction to ASC or DESC, DESC by default
func sortDirection(dir string) string {
	if strings.EqualFold(strings.TrimSpace(dir), "asc") {
		return "ASC"
	}
	return "DESC"
}

// sortColumn returns field when the whitelist holds it, fallback otherwise.
// The column name reaches the SQL verbatim, so nothing outside the whitelist passes.
func sortColumn(field string, allowed map[string]bool, fallback string) string {
	trimmed := strings.TrimSpace(field)
	if allowed[trimmed] {
		return trimmed
	}
	return fallback
}

// applyPage orders and pages a listing. Rows tied on the sort column keep a
// stable order by id so consecutive pages neither repeat nor skip rows.
func applyPage(query *gorm.DB, filter shared.Filter, allowed map[string]bool, fallback string) *gorm.DB {
	column := sortColumn(filter.OrderBy, allowed, fallback)
	query = query.Order(column + " " + sortDirection(filter.OrderDir))
	if column != "id" {
		query = query.Order("id ASC")
	}
	if filter.Page > 0 && filter.PageSize > 0 {
		query = query.Offset(filter.Offset()).Limit(filter.Limit())
	}
	return query
}
