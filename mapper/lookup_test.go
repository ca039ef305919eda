package mapper

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collectFields(t *testing.T, p *Parser, typeName, src string) []*FieldNode {
	m, err := p.ParseMapping(typeName, []byte(src))
	require.NoError(t, err)
	_, fields := m.Collect()
	return fields
}

func TestLookupAddAll(t *testing.T) {
	p := NewParser()
	l := NewFieldTypeLookup()
	fields := collectFields(t, p, "t1", `{"properties":{"a":{"type":"keyword"},"b":{"properties":{"c":{"type":"long"}}}}}`)

	require.NoError(t, l.CheckCompatibility("t1", fields, false))
	l1 := l.CopyAndAddAll("t1", fields)
	assert.NotSame(t, l, l1)
	assert.Equal(t, 0, l.Len())
	assert.Equal(t, len(MetaFields)+2, l1.Len())
	assert.Equal(t, "long", l1.Get("b.c").Type)
	assert.Equal(t, "keyword", l1.GetByIndexName("a").Type)
	assert.Nil(t, l1.Get("b"))
	assert.Equal(t, []string{"t1"}, l1.Types("a"))

	// adding the same fields again changes nothing
	assert.Same(t, l1, l1.CopyAndAddAll("t1", fields))

	l2 := l1.CopyAndAddAll("t2", collectFields(t, p, "t2", `{"properties":{"a":{"type":"keyword"}}}`))
	assert.Equal(t, []string{"t1", "t2"}, l2.Types("a"))
	assert.Equal(t, []string{"t1"}, l1.Types("a"))
}

func TestLookupCompatibility(t *testing.T) {
	p := NewParser()
	l := NewFieldTypeLookup().CopyAndAddAll("t1", collectFields(t, p, "t1", `{"properties":{"a":{"type":"keyword"}}}`))

	boosted := collectFields(t, p, "t2", `{"properties":{"a":{"type":"keyword","boost":2}}}`)
	err := l.CheckCompatibility("t2", boosted, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Set update_all_types to true to update [boost] across all types.")
	assert.NoError(t, l.CheckCompatibility("t2", boosted, true))
	// the only type using the field may change soft properties
	assert.NoError(t, l.CheckCompatibility("t1", collectFields(t, p, "t1", `{"properties":{"a":{"type":"keyword","boost":2}}}`), false))

	err = l.CheckCompatibility("t2", collectFields(t, p, "t2", `{"properties":{"a":{"type":"long"}}}`), true)
	var cerr *FieldConflictError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "a", cerr.Field)
}

func TestLookupSimpleMatch(t *testing.T) {
	p := NewParser()
	l := NewFieldTypeLookup().CopyAndAddAll("t1", collectFields(t, p, "t1",
		`{"properties":{"user":{"properties":{"name":{"type":"text"},"age":{"type":"long"}}},"username":{"type":"keyword"},"title":{"type":"text"}}}`))

	assert.Equal(t, []string{"user.age", "user.name"}, l.SimpleMatchToIndexNames("user.*"))
	assert.Equal(t, []string{"user.age", "user.name", "username"}, l.SimpleMatchToIndexNames("user*"))
	assert.Equal(t, []string{"_type", "title"}, l.SimpleMatchToIndexNames("*t*e"))
	assert.Empty(t, l.SimpleMatchToIndexNames("missing*"))
}
