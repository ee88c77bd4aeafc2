package engine

import (
	"github.com/incisive-io/tabled/internal/policy"
	"github.com/incisive-io/tabled/internal/storage"
)

// TableInfo is one entry of the table listing.
type TableInfo struct {
	Name        string `json:"name"`
	Label       string `json:"label"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	RowCount    int    `json:"rowCount"`
}

// Option is one choice of a select column.
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// Column is the presentational description of one table column.
type Column struct {
	Key        string   `json:"key"`
	Label      string   `json:"label"`
	Type       string   `json:"type"`
	Sortable   bool     `json:"sortable"`
	Filterable bool     `json:"filterable"`
	Editable   bool     `json:"editable"`
	Required   bool     `json:"required"`
	Options    []Option `json:"options,omitempty"`
}

// Sort reports the ordering a listing was produced with.
type Sort struct {
	Column    string `json:"column"`
	Direction string `json:"direction"`
}

// TableConfig is the full UI configuration for one table.
type TableConfig struct {
	Name                   string              `json:"name"`
	Label                  string              `json:"label"`
	Columns                []Column            `json:"columns"`
	Permissions            policy.Capabilities `json:"permissions"`
	DefaultSort            Sort                `json:"defaultSort"`
	PrimaryKey             []string            `json:"primaryKey"`
	HasCompositePrimaryKey bool                `json:"hasCompositePrimaryKey"`
}

// PageMeta is the pagination envelope of a row listing.
type PageMeta struct {
	Total      int `json:"total"`
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	TotalPages int `json:"totalPages"`
}

// RowPage is one page of rows plus the effective query echoed back.
type RowPage struct {
	Data           []storage.Row  `json:"data"`
	Meta           PageMeta       `json:"meta"`
	FiltersApplied map[string]any `json:"filtersApplied"`
	SearchApplied  any            `json:"searchApplied"`
	Sort           *Sort          `json:"sort"`
}

func pageMeta(total, page, limit int) PageMeta {
	totalPages := 0
	if limit > 0 {
		totalPages = (total + limit - 1) / limit
	}
	return PageMeta{Total: total, Page: page, Limit: limit, TotalPages: totalPages}
}
