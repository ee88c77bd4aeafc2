// Package policy decides table visibility and per-action permission by role.
// The rule set is loaded once at startup and never mutated.
package policy

import (
	"strings"

	"github.com/incisive-io/tabled/internal/errs"
)

// Role is a caller role. Unknown role strings are treated as viewer —
// least privilege.
type Role string

const (
	RoleAdmin  Role = "ADMIN"
	RoleUser   Role = "USER"
	RoleViewer Role = "VIEWER"
)

// ParseRole normalises a role string, defaulting unknown values to viewer.
func ParseRole(s string) Role {
	switch Role(strings.ToUpper(strings.TrimSpace(s))) {
	case RoleAdmin:
		return RoleAdmin
	case RoleUser:
		return RoleUser
	default:
		return RoleViewer
	}
}

// Action is one of the four table operations.
type Action string

const (
	ActionRead   Action = "read"
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Capabilities is the presentational capability record for one table+role.
type Capabilities struct {
	Read    bool     `json:"read"`
	Create  bool     `json:"create"`
	Update  bool     `json:"update"`
	Delete  bool     `json:"delete"`
	Actions []string `json:"actions"`
}

// Config is the immutable exposure rule set. Table names are matched
// case-insensitively.
type Config struct {
	Allowed   []string
	Excluded  []string
	AdminOnly []string
	ReadOnly  []string
}

// Policy evaluates the exposure rules.
type Policy struct {
	allowed   map[string]bool
	excluded  map[string]bool
	adminOnly map[string]bool
	readOnly  map[string]bool
}

// specialActions maps a table to the extra UI actions admins get on it.
var specialActions = map[string][]string{
	"users": {"activate", "deactivate"},
}

// New builds a Policy from configuration.
func New(cfg Config) *Policy {
	return &Policy{
		allowed:   toSet(cfg.Allowed),
		excluded:  toSet(cfg.Excluded),
		adminOnly: toSet(cfg.AdminOnly),
		readOnly:  toSet(cfg.ReadOnly),
	}
}

// IsExposed reports whether the table is served by the API at all: present
// in the allow-list and not excluded.
func (p *Policy) IsExposed(table string) bool {
	key := strings.ToLower(table)
	return p.allowed[key] && !p.excluded[key]
}

// IsAdminOnly reports whether the table is restricted to the admin role.
func (p *Policy) IsAdminOnly(table string) bool {
	return p.adminOnly[strings.ToLower(table)]
}

// Authorize decides whether role may perform action on table. The rules
// apply in order; an unexposed table is NotFound, never Forbidden, so its
// existence is not revealed.
func (p *Policy) Authorize(table string, role Role, action Action) error {
	key := strings.ToLower(table)

	if !p.allowed[key] || p.excluded[key] {
		return errs.NotFound("Table '%s' not found", table)
	}
	if p.adminOnly[key] && role != RoleAdmin {
		return errs.Forbidden("Access denied to table '%s'", table)
	}
	if p.readOnly[key] && action != ActionRead {
		return errs.Forbidden("Table '%s' is read-only", table)
	}
	if role == RoleViewer && action != ActionRead {
		return errs.Forbidden("You don't have permission to %s in this table", action)
	}
	return nil
}

// CapabilitiesFor derives the capability record from the same rules as
// Authorize, so the two can never disagree.
func (p *Policy) CapabilitiesFor(table string, role Role) Capabilities {
	caps := Capabilities{
		Read:    p.Authorize(table, role, ActionRead) == nil,
		Create:  p.Authorize(table, role, ActionCreate) == nil,
		Update:  p.Authorize(table, role, ActionUpdate) == nil,
		Delete:  p.Authorize(table, role, ActionDelete) == nil,
		Actions: []string{},
	}
	if role == RoleAdmin {
		if actions, ok := specialActions[strings.ToLower(table)]; ok {
			caps.Actions = actions
		}
	}
	return caps
}

// Visible reports whether the table appears in role's table listing.
// Admin-only tables are masked from the list for other roles (a direct
// request to them gets Forbidden instead — existence is masked from the
// list, not from a direct name).
func (p *Policy) Visible(table string, role Role) bool {
	if !p.IsExposed(table) {
		return false
	}
	return role == RoleAdmin || !p.IsAdminOnly(table)
}

func toSet(names []string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[strings.ToLower(n)] = true
	}
	return set
}
