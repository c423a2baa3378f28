package repository

import (
	"strings"

	"github.com/google/uuid"
	"github.com/lunarhue/linkmark/internal/app/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LinkListSortOption selects the column a link listing is ordered by.
type LinkListSortOption int8

const (
	// SortByID is the default: insertion/identity order, always ascending.
	SortByID LinkListSortOption = iota
	SortByTitle
	SortByURL
	SortByCreationDate
	SortByUpdateDate
)

// ParseSortOption maps the wire value of the sort query parameter.
func ParseSortOption(raw string) LinkListSortOption {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "title":
		return SortByTitle
	case "url":
		return SortByURL
	case "creationdate", "creation_date":
		return SortByCreationDate
	case "updatedate", "update_date":
		return SortByUpdateDate
	default:
		return SortByID
	}
}

// LinkListQueryModel turns loosely-typed request parameters into a
// deterministic filtered, sorted and paged query over the links table.
//
// Every stage is a standalone method that leaves the query untouched when its
// field is unset, so each can be exercised in isolation. Apply chains them in
// a fixed order.
type LinkListQueryModel struct {
	UserID         *uuid.UUID
	URLContains    string
	TitleContains  string
	ShowPrivate    bool
	ShowPublic     bool
	SortBy         LinkListSortOption
	SortDescending bool
	Skip           int
	Take           int
}

// NewLinkListQueryModel returns a model with the listing defaults: public
// links visible, private hidden.
func NewLinkListQueryModel() *LinkListQueryModel {
	return &LinkListQueryModel{ShowPublic: true}
}

// Apply runs the whole pipeline. idsLimit restricts the result to the given
// link ids when non-nil (an empty, non-nil set yields no rows).
func (q *LinkListQueryModel) Apply(tx *gorm.DB, idsLimit []uuid.UUID) *gorm.DB {
	q.Sanitize()
	tx = q.FilterOwner(tx)
	tx = q.FilterURLContains(tx)
	tx = q.FilterTitleContains(tx)
	tx = q.FilterVisibility(tx)
	tx = q.Sort(tx)
	tx = q.Paginate(tx)
	tx = q.RestrictTo(tx, idsLimit)
	return tx
}

// Sanitize trims the string filters and corrects impossible combinations.
// Requesting private links without identifying an owner is silently reduced
// to public-only rather than rejected.
func (q *LinkListQueryModel) Sanitize() {
	q.URLContains = strings.TrimSpace(q.URLContains)
	q.TitleContains = strings.TrimSpace(q.TitleContains)
	if q.UserID == nil {
		q.ShowPrivate = false
	}
	if q.Skip < 0 {
		q.Skip = 0
	}
	if q.Take < 0 {
		q.Take = 0
	}
}

// FilterOwner keeps links the requesting user may see: their own plus
// everything public. Without a user id it is a no-op; the visibility filter
// then guarantees no private rows leak.
func (q *LinkListQueryModel) FilterOwner(tx *gorm.DB) *gorm.DB {
	if q.UserID == nil {
		return tx
	}
	return tx.Where("creating_user_id = ? OR privacy = ?", *q.UserID, model.PrivacyPublic)
}

// FilterURLContains matches the normalized searchable URL, never the raw one,
// so lookups are case-insensitive and scheme-agnostic.
func (q *LinkListQueryModel) FilterURLContains(tx *gorm.DB) *gorm.DB {
	if q.URLContains == "" {
		return tx
	}
	return tx.Where("searchable_url LIKE ? ESCAPE '\\'", containsPattern(model.NormalizeURL(q.URLContains)))
}

// FilterTitleContains matches the title case-insensitively.
func (q *LinkListQueryModel) FilterTitleContains(tx *gorm.DB) *gorm.DB {
	if q.TitleContains == "" {
		return tx
	}
	return tx.Where("UPPER(title) LIKE ? ESCAPE '\\'", containsPattern(strings.ToUpper(q.TitleContains)))
}

// FilterVisibility applies the show-private/show-public flags. Both false
// yields an empty result on purpose.
func (q *LinkListQueryModel) FilterVisibility(tx *gorm.DB) *gorm.DB {
	if !q.ShowPrivate {
		tx = tx.Where("privacy <> ?", model.PrivacyPrivate)
	}
	if !q.ShowPublic {
		tx = tx.Where("privacy <> ?", model.PrivacyPublic)
	}
	return tx
}

// Sort orders by the selected column. The id default ignores the descending
// flag and doubles as the stable identity order.
func (q *LinkListQueryModel) Sort(tx *gorm.DB) *gorm.DB {
	var column string
	switch q.SortBy {
	case SortByTitle:
		column = "title"
	case SortByURL:
		column = "searchable_url"
	case SortByCreationDate:
		column = "creation_date"
	case SortByUpdateDate:
		column = "last_update"
	default:
		return tx.Order(clause.OrderByColumn{Column: clause.Column{Name: "id"}})
	}
	return tx.Order(clause.OrderByColumn{Column: clause.Column{Name: column}, Desc: q.SortDescending})
}

// Paginate applies skip/take; zero values leave the window unbounded.
func (q *LinkListQueryModel) Paginate(tx *gorm.DB) *gorm.DB {
	if q.Skip > 0 {
		tx = tx.Offset(q.Skip)
	}
	if q.Take > 0 {
		tx = tx.Limit(q.Take)
	}
	return tx
}

// RestrictTo intersects the result with an externally resolved id set, e.g.
// links carrying a requested tag. A nil set means no restriction.
func (q *LinkListQueryModel) RestrictTo(tx *gorm.DB, ids []uuid.UUID) *gorm.DB {
	if ids == nil {
		return tx
	}
	return tx.Where("id IN ?", ids)
}

func containsPattern(needle string) string {
	escaper := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + escaper.Replace(needle) + "%"
}
