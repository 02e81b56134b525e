package extractor

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/maia-os/covalue-core/internal/covalue"
)

var errDummy = errors.New("dummy")

func TestExtractFlat_Map(t *testing.T) {
	content := covalue.NewMapContent()
	content.Set("text", "buy milk")
	content.Set("done", false)
	core := covalue.NewCore("co_zItem1", covalue.VariantMap, covalue.Header{Schema: "co_zTodoSchema"}, content)

	flat := ExtractFlat(core, HintNone, nil)
	require.Equal(t, covalue.TypeMap, flat.Type)
	require.Equal(t, "co_zTodoSchema", flat.Schema)
	require.Equal(t, "buy milk", flat.Fields["text"])
	require.Equal(t, false, flat.Fields["done"])
}

func TestExtractFlat_GroupHint(t *testing.T) {
	group := covalue.NewGroupContent()
	group.AddMember("co_zAccount1", covalue.RoleAdmin)
	core := covalue.NewCore("co_zGroup1", covalue.VariantGroup, covalue.Header{RulesetType: "group"}, group)

	flat := ExtractFlat(core, HintNone, nil)
	require.Equal(t, covalue.SchemaGroup, flat.Schema)
	members := flat.Fields["members"].(map[string]string)
	require.Equal(t, covalue.RoleAdmin, members["co_zAccount1"])
}

func TestExtractFlat_List(t *testing.T) {
	list := covalue.NewListContent()
	list.Append("a")
	list.Append("b")
	core := covalue.NewCore("co_zList1", covalue.VariantList, covalue.Header{Schema: "co_zIndexSchema"}, list)

	flat := ExtractFlat(core, HintNone, nil)
	require.Equal(t, covalue.TypeList, flat.Type)
	require.Equal(t, []any{"a", "b"}, flat.Items)
}

func TestExtractFlat_StreamFlattensSessions(t *testing.T) {
	stream := covalue.NewStreamContent()
	stream.Append("s1", "x")
	stream.Append("s2", "y")
	stream.Append("s1", "z")
	core := covalue.NewCore("co_zStream1", covalue.VariantStream, covalue.Header{}, stream)

	flat := ExtractFlat(core, HintNone, nil)
	require.Equal(t, covalue.TypeStream, flat.Type)
	require.Equal(t, []any{"x", "z", "y"}, flat.Items)
}

func TestExtractFlat_PrefersInHandAccount(t *testing.T) {
	acct := &Account{ID: "co_zAccount1", Fields: map[string]any{"profile": "p1"}}
	flat := ExtractFlat(nil, HintNone, acct)
	require.Equal(t, "co_zAccount1", flat.ID)
	require.Equal(t, covalue.SchemaAccount, flat.Schema)
	require.Equal(t, "p1", flat.Fields["profile"])
}

func TestExtractFlat_NilCoreWithoutAccountIsUnknown(t *testing.T) {
	flat := ExtractFlat(nil, HintNone, nil)
	require.Equal(t, covalue.TypeUnknown, flat.Type)
	require.False(t, flat.Ready())
}

func TestFlat_ReadyPredicate(t *testing.T) {
	ready := Flat{Type: covalue.TypeMap}
	require.True(t, ready.Ready())

	loading := Flat{Type: covalue.TypeMap, Loading: true}
	require.False(t, loading.Ready())

	errored := Flat{Type: covalue.TypeMap, Err: errDummy}
	require.False(t, errored.Ready())
}

func TestExtractNormalised_TagsCoID(t *testing.T) {
	content := covalue.NewMapContent()
	content.Set("group", "co_zGroup1")
	content.Set("note", "sealed_abcxyz")
	content.Set("blank", nil)
	core := covalue.NewCore("co_zItem2", covalue.VariantMap, covalue.Header{Schema: "co_zSchema"}, content)

	norm := ExtractNormalised(core, HintNone)
	tags := make(map[string]string)
	for _, p := range norm.Properties {
		tags[p.Key] = p.Type
	}
	require.Equal(t, "co-id", tags["group"])
	require.Equal(t, "sealed", tags["note"])
	require.Equal(t, "null", tags["blank"])
}
