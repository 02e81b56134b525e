package covalue

// Variant identifies the shape of a CoValue's content.
type Variant string

const (
	VariantMap     Variant = "map"
	VariantList    Variant = "list"
	VariantStream  Variant = "stream"
	VariantGroup   Variant = "group"
	VariantAccount Variant = "account"
	VariantUnknown Variant = "unknown"
)

// ExtractedType is the `type` tag CoValueExtractor attaches to a flat
// extraction: one of comap, colist, costream, unknown.
type ExtractedType string

const (
	TypeMap     ExtractedType = "comap"
	TypeList    ExtractedType = "colist"
	TypeStream  ExtractedType = "costream"
	TypeUnknown ExtractedType = "unknown"
)

// Reserved $schema strings. Any other non-co-id value is
// invalid for header.Schema.
const (
	SchemaGroup      = "@group"
	SchemaAccount    = "@account"
	SchemaGenesis    = "GenesisSchema"
	SchemaMetaAlias  = "@meta-schema"
	SchemaMetaAlias2 = "@metaSchema"
)

// Role strings observed on group members. Revoked is observed
// but never surfaced by GroupOps.
const (
	RoleAdmin   = "admin"
	RoleWriter  = "writer"
	RoleReader  = "reader"
	RoleManager = "manager"
	RoleRevoked = "revoked"
	RoleExtend  = "extend"
)

// EveryoneMember is the pseudo-member id carrying a broadcast role.
const EveryoneMember = "everyone"

// ReservedSchema reports whether s is one of the three header-level reserved
// strings (not counting the inspector-only aliases).
func ReservedSchema(s string) bool {
	switch s {
	case SchemaGroup, SchemaAccount, SchemaGenesis:
		return true
	default:
		return false
	}
}

// Header carries the immutable metadata fixed at CoValue creation.
type Header struct {
	// Schema is either a co-id or one of the reserved strings above.
	Schema string
	// RulesetType is "group" for group-variant CoValues, empty otherwise.
	RulesetType string
	// Meta carries auxiliary header metadata (e.g. account/profile markers
	// used by SyncValidationHook to recognise profiles without a $schema).
	Meta map[string]any
}

// IsGroupRuleset reports whether the header marks its owner as a group.
func (h Header) IsGroupRuleset() bool {
	return h.RulesetType == "group"
}

// HasSchema reports whether the header carries a non-empty $schema.
func (h Header) HasSchema() bool {
	return h.Schema != ""
}
