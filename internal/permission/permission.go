// Package permission maps the reserved role strings to allowed actions. It
// wires a Casbin RBAC enforcer whose matcher is a plain role/action
// equality; the model is in-memory (CoValue-level group membership from
// GroupOps is the enforcement's source of truth, not a database policy
// table) but the enforcement call itself is the same
// casbin.Enforcer.Enforce API. CRUD does not call the Enforcer; GroupOps
// uses IsKnownRole to validate role strings.
package permission

import (
	"fmt"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"

	"github.com/maia-os/covalue-core/internal/covalue"
)

// Action names the mutating operation being authorised.
type Action string

const (
	ActionRead   Action = "read"
	ActionWrite  Action = "write"
	ActionAdmin  Action = "admin" // group membership/role mutation
)

// modelText is a minimal RBAC-with-roles Casbin model: a subject's role
// must be in the allowed set for the requested action.
const modelText = `
[request_definition]
r = role, act

[policy_definition]
p = role, act

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = r.role == p.role && r.act == p.act
`

// Enforcer wraps a casbin.Enforcer seeded with the fixed role/action
// policy implied byrole strings.
type Enforcer struct {
	e *casbin.Enforcer
}

// New constructs an Enforcer with the standard policy:
//   - admin:   read, write, admin
//   - manager: read, write, admin (group-management roles act as admin)
//   - writer:  read, write
//   - reader:  read
//   - extend:  read (parent-group extension visibility only)
//   - revoked: nothing (never surfaced by GroupOps, kept for completeness)
func New() (*Enforcer, error) {
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, fmt.Errorf("permission: load model: %w", err)
	}
	e, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("permission: new enforcer: %w", err)
	}

	policies := [][]string{
		{covalue.RoleAdmin, string(ActionRead)},
		{covalue.RoleAdmin, string(ActionWrite)},
		{covalue.RoleAdmin, string(ActionAdmin)},
		{covalue.RoleManager, string(ActionRead)},
		{covalue.RoleManager, string(ActionWrite)},
		{covalue.RoleManager, string(ActionAdmin)},
		{covalue.RoleWriter, string(ActionRead)},
		{covalue.RoleWriter, string(ActionWrite)},
		{covalue.RoleReader, string(ActionRead)},
		{covalue.RoleExtend, string(ActionRead)},
	}
	for _, p := range policies {
		if _, err := e.AddPolicy(p[0], p[1]); err != nil {
			return nil, fmt.Errorf("permission: add policy %v: %w", p, err)
		}
	}
	return &Enforcer{e: e}, nil
}

// Allowed reports whether role may perform action.
func (p *Enforcer) Allowed(role string, action Action) bool {
	ok, err := p.e.Enforce(role, string(action))
	if err != nil {
		return false
	}
	return ok
}

// RequireWrite reports whether role can write.
func (p *Enforcer) RequireWrite(role string) bool { return p.Allowed(role, ActionWrite) }

// RequireAdmin returns whether role can perform group-admin mutations
// (addMember/removeMember/setRole).
func (p *Enforcer) RequireAdmin(role string) bool { return p.Allowed(role, ActionAdmin) }

// knownRoles is the fixed six-string role vocabulary. GroupOps uses this
// to reject a malformed role string before it ever reaches a group's
// members map, independent of any actor-level authorization decision,
// which this package does not make.
var knownRoles = map[string]bool{
	covalue.RoleAdmin:   true,
	covalue.RoleWriter:  true,
	covalue.RoleReader:  true,
	covalue.RoleManager: true,
	covalue.RoleRevoked: true,
	covalue.RoleExtend:  true,
}

// IsKnownRole reports whether role is one of the six reserved role strings.
func IsKnownRole(role string) bool { return knownRoles[role] }
