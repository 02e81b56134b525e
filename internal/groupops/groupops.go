// Package groupops implements group discovery and mutation over the
// CoValue graph: members are enumerated, revoked roles are dropped, and
// "everyone" is consulted as a broadcast fallback.
package groupops

import (
	"context"

	"github.com/maia-os/covalue-core/internal/covalue"
	"github.com/maia-os/covalue-core/internal/errs"
	"github.com/maia-os/covalue-core/internal/loader"
	"github.com/maia-os/covalue-core/internal/permission"
	"github.com/maia-os/covalue-core/internal/runtime"
)

// Member is one resolved account membership.
type Member struct {
	AccountID string
	Role      string
}

// ParentGroup is a parent-group extension as seen by the child group.
type ParentGroup struct {
	GroupID string
	Role    string
}

// Discovery is the result of resolving an arbitrary core's owning group.
type Discovery struct {
	GroupID       string
	AccountMembers []Member
	GroupMembers   []ParentGroup
}

// Discover resolves core's owning group.
//
//   - If core IS a group (ruleset.type == "group"), the owner is itself.
//   - Otherwise its content is inspected for a `group` reference (a co-id
//     string or an object with an `id`), which is loaded and validated to
//     be a group.
func Discover(ctx context.Context, backend runtime.BackendHandle, core *covalue.Core) (*Discovery, error) {
	if core == nil {
		return nil, errs.New(errs.Structural, "groupops.Discover", errs.Errorf("nil core"))
	}

	groupCore := core
	if !core.Header.IsGroupRuleset() {
		ref, ok := groupReference(core)
		if !ok {
			return nil, errs.New(errs.Structural, "groupops.Discover", errs.Errorf("no group reference on %s", core.ID))
		}
		loaded, err := loader.Ensure(ctx, backend, ref, loader.Options{WaitForAvailable: true})
		if err != nil {
			return nil, err
		}
		if loaded == nil || !loaded.Header.IsGroupRuleset() {
			return nil, errs.New(errs.Structural, "groupops.Discover", errs.Errorf("%s is not a group", ref))
		}
		groupCore = loaded
	}

	group, ok := groupCore.AsGroup()
	if !ok {
		return nil, errs.New(errs.Structural, "groupops.Discover", errs.Errorf("%s has no group content", groupCore.ID))
	}

	members := enumerateMembers(group)
	parents := make([]ParentGroup, 0, len(group.GetParentGroups()))
	for _, p := range group.GetParentGroups() {
		role := p.Role
		if role == "" {
			role = covalue.RoleAdmin
		}
		parents = append(parents, ParentGroup{GroupID: p.GroupID, Role: role})
	}

	return &Discovery{GroupID: groupCore.ID, AccountMembers: members, GroupMembers: parents}, nil
}

// enumerateMembers drops revoked roles and appends the "everyone" broadcast
// role if not already present.
func enumerateMembers(group *covalue.GroupContent) []Member {
	seenEveryone := false
	var out []Member
	for _, m := range group.Members() {
		if m.Role == covalue.RoleRevoked {
			continue
		}
		if m.MemberID == covalue.EveryoneMember {
			seenEveryone = true
		}
		out = append(out, Member{AccountID: m.MemberID, Role: m.Role})
	}
	if !seenEveryone {
		if role, ok := group.GetRoleOf(covalue.EveryoneMember); ok && role != covalue.RoleRevoked {
			out = append(out, Member{AccountID: covalue.EveryoneMember, Role: role})
		}
	}
	return out
}

// groupReference extracts a `group` reference from core's content, either a
// bare co-id string or an object carrying `id`.
func groupReference(core *covalue.Core) (string, bool) {
	m, ok := core.AsMap()
	if !ok {
		return "", false
	}
	raw, ok := m.Get("group")
	if !ok {
		return "", false
	}
	switch v := raw.(type) {
	case string:
		return v, v != ""
	case map[string]any:
		if id, ok := v["id"].(string); ok {
			return id, id != ""
		}
	}
	return "", false
}

// AddMember adds memberID with role to group and persists the group. It
// rejects a role outside the reserved role vocabulary and a core that is
// not a group. The bare memberID is stored as given; there is no fallback
// that dereferences the member core for an account reference.
func AddMember(ctx context.Context, backend runtime.BackendHandle, groupCore *covalue.Core, memberID, role string) error {
	if !permission.IsKnownRole(role) {
		return errs.New(errs.Structural, "groupops.AddMember", errs.Errorf("unknown role %q", role))
	}
	group, ok := groupCore.AsGroup()
	if !ok {
		return errs.New(errs.Structural, "groupops.AddMember", errs.Errorf("%s is not a group", groupCore.ID))
	}
	group.AddMember(memberID, role)
	if err := backend.Persist(ctx, groupCore); err != nil {
		return errs.New(errs.Transient, "groupops.AddMember", err)
	}
	return nil
}

// RemoveMember sets memberID's role to revoked.
func RemoveMember(ctx context.Context, backend runtime.BackendHandle, groupCore *covalue.Core, memberID string) error {
	group, ok := groupCore.AsGroup()
	if !ok {
		return errs.New(errs.Structural, "groupops.RemoveMember", errs.Errorf("%s is not a group", groupCore.ID))
	}
	group.RemoveMember(memberID)
	if err := backend.Persist(ctx, groupCore); err != nil {
		return errs.New(errs.Transient, "groupops.RemoveMember", err)
	}
	return nil
}

// SetRole reassigns memberID's role by delegating to AddMember, which
// overwrites the member's existing role.
func SetRole(ctx context.Context, backend runtime.BackendHandle, groupCore *covalue.Core, memberID, role string) error {
	return AddMember(ctx, backend, groupCore, memberID, role)
}
