package registry

import (
	"fmt"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tiglabs/baudschema/config"
	"github.com/tiglabs/baudschema/mapper"
)

func newTestRegistry(t *testing.T, opts ...func(*config.Config)) *Registry {
	cfg := config.DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	r, err := New(cfg)
	require.NoError(t, err)
	return r
}

func mustMerge(t *testing.T, r *Registry, typeName, source string) *mapper.TypeMapping {
	tm, err := r.Merge(typeName, []byte(source), true, false)
	require.NoError(t, err, "merge [%s] %s", typeName, source)
	return tm
}

func TestMergeCreatesType(t *testing.T) {
	r := newTestRegistry(t)
	tm := mustMerge(t, r, "doc", `{"doc":{"properties":{"title":{"type":"text"},"user":{"properties":{"age":{"type":"integer"}}}}}}`)

	assert.Equal(t, "doc", tm.Type())
	assert.Equal(t, []string{"doc"}, r.Types())
	assert.True(t, r.HasMapping("doc"))
	assert.Same(t, tm, r.TypeMapping("doc"))
	assert.Equal(t, uint64(1), r.Version())
	assert.Equal(t, "integer", r.FullName("user.age").Type)
	assert.Equal(t, "text", r.SmartNameFieldType("title").Type)
	assert.Equal(t, "keyword", r.IndexName("_uid").Type)
	assert.Nil(t, r.FullName("user"))
	assert.Equal(t, "user", r.ObjectMapper("user").FullPath())
	assert.Equal(t, []string{"user.age"}, r.SimpleMatchToIndexNames("user.*"))
	assert.Equal(t, []string{"missing"}, r.SimpleMatchToIndexNames("missing"))
	assert.False(t, r.HasNested())
}

func TestMergeIdempotent(t *testing.T) {
	r := newTestRegistry(t)
	source := `{"properties":{"a":{"type":"keyword"},"o":{"type":"nested","properties":{"b":{"type":"long"}}}}}`
	first := mustMerge(t, r, "doc", source)
	snap := r.Snapshot()

	second := mustMerge(t, r, "doc", source)
	assert.Same(t, first, second)
	assert.Same(t, snap, r.Snapshot(), "an identical merge must not publish")

	third := mustMerge(t, r, "doc", first.Source().String())
	assert.Same(t, first, third)
	assert.Same(t, snap, r.Snapshot())
}

func TestMergeExistingKeepsIdentity(t *testing.T) {
	r := newTestRegistry(t)
	tm := mustMerge(t, r, "doc", `{"properties":{"a":{"type":"keyword"}}}`)
	before := tm.Source()

	updated := mustMerge(t, r, "doc", `{"properties":{"b":{"type":"nested","properties":{"c":{"type":"long"}}}}}`)
	assert.Same(t, tm, updated)
	assert.False(t, tm.Source().Equal(before))
	assert.Equal(t, "keyword", r.FullName("a").Type)
	assert.Equal(t, "long", r.FullName("b.c").Type)
	assert.True(t, r.HasNested())
	assert.Equal(t, uint64(2), r.Version())
}

func TestMergeUniqueness(t *testing.T) {
	groups := []struct {
		source string
		reason string
	}{
		{`{"properties":{"a.b":{"type":"keyword"},"a":{"properties":{"b":{"type":"long"}}}}}`,
			"Field [a.b] is defined twice in [doc]"},
		{`{"properties":{"a.b":{"type":"keyword"},"a":{"properties":{"b":{"properties":{"c":{"type":"long"}}}}}}}`,
			"Field [a.b] is defined both as an object and a field in [doc]"},
		{`{"properties":{"a.b":{"properties":{"c":{"type":"long"}}},"a":{"properties":{"b":{"properties":{"d":{"type":"long"}}}}}}}`,
			"Object mapper [a.b] is defined twice in mapping for type [doc]"},
		{`{"properties":{"_id":{"type":"keyword"}}}`,
			"Field [_id] is defined twice in [doc]"},
	}
	for _, g := range groups {
		r := newTestRegistry(t)
		_, err := r.Merge("doc", []byte(g.source), true, false)
		var cerr *mapper.FieldConflictError
		require.ErrorAs(t, err, &cerr, g.source)
		assert.Equal(t, g.reason, cerr.Error())
		assert.False(t, r.HasMapping("doc"))
	}
}

func TestMergeUniquenessOnUpdate(t *testing.T) {
	r := newTestRegistry(t)
	mustMerge(t, r, "doc", `{"properties":{"a.b":{"type":"keyword"}}}`)
	snap := r.Snapshot()
	_, err := r.Merge("doc", []byte(`{"properties":{"a":{"properties":{"b":{"type":"keyword"}}}}}`), true, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Field [a.b] is defined twice in [doc]")
	assert.Same(t, snap, r.Snapshot())
	assert.Nil(t, r.ObjectMapper("a"))
}

func TestMergeAcrossTypes(t *testing.T) {
	r := newTestRegistry(t)
	mustMerge(t, r, "t1", `{"properties":{"user":{"properties":{"name":{"type":"text"}}},"x":{"type":"keyword"},"n":{"type":"nested"}}}`)

	groups := []struct {
		source string
		reason string
	}{
		{`{"properties":{"user":{"type":"keyword"}}}`, "Field [user] is defined as a field in mapping [t2] but this name is already used for an object in other types"},
		{`{"properties":{"x":{"properties":{"y":{"type":"long"}}}}}`, "Object [x] is defined as an object in mapping [t2] but this name is already used for a field in other types"},
		{`{"properties":{"user":{"properties":{"name":{"type":"long"}}}}}`, "mapper [user.name] cannot be changed from type [text] to [long]"},
		{`{"properties":{"n":{"type":"object"}}}`, "object mapping [n] can't be changed from nested to non-nested"},
		{`{"properties":{"x":{"type":"keyword","boost":2}}}`, "Set update_all_types to true to update [boost] across all types."},
	}
	for _, g := range groups {
		snap := r.Snapshot()
		_, err := r.Merge("t2", []byte(g.source), true, false)
		var cerr *mapper.FieldConflictError
		require.ErrorAs(t, err, &cerr, g.source)
		assert.Contains(t, cerr.Error(), g.reason)
		assert.Same(t, snap, r.Snapshot(), "failed merge must not publish")
	}

	tm, err := r.Merge("t2", []byte(`{"properties":{"x":{"type":"keyword","boost":2}}}`), true, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"t1", "t2"}, r.Types())
	assert.Equal(t, 2.0, r.FullName("x").Boost)
	assert.Equal(t, []string{"t1", "t2"}, r.Snapshot().FieldTypes().Types("x"))
	assert.Equal(t, "t2", tm.Type())
}

func TestMergeParseError(t *testing.T) {
	r := newTestRegistry(t)
	_, err := r.Merge("doc", []byte(`{"properties":{"a":{}}}`), true, false)
	var perr *mapper.MappingParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, uint64(0), r.Version())
}

func TestDefaultMapping(t *testing.T) {
	r := newTestRegistry(t)
	assert.Equal(t, `{"_default_":{}}`, r.DefaultMappingSource().String())

	def := mustMerge(t, r, mapper.DefaultMappingType, `{"_default_":{"_all":{"enabled":false},"properties":{"created":{"type":"date"}}}}`)
	assert.Equal(t, def.Source().String(), r.DefaultMappingSource().String())
	assert.Empty(t, r.Types())
	assert.True(t, r.HasMapping(mapper.DefaultMappingType))
	assert.Nil(t, r.FullName("created"), "default mapping fields are not registered")

	doc := mustMerge(t, r, "doc", `{"properties":{"title":{"type":"text"}}}`)
	assert.False(t, doc.Mapping().Metadata().AllEnabled())
	assert.Equal(t, "date", r.FullName("created").Type)

	_, err := r.Merge("raw", []byte(`{"properties":{"title":{"type":"text"}}}`), false, false)
	require.NoError(t, err)
	assert.True(t, r.TypeMapping("raw").Mapping().Metadata().AllEnabled())

	mappers := r.DocMappers(true)
	require.Len(t, mappers, 3)
	assert.Equal(t, mapper.DefaultMappingType, mappers[0].Type())
	assert.Len(t, r.DocMappers(false), 2)
}

func TestDefaultMappingNotReappliedOnUpdate(t *testing.T) {
	r := newTestRegistry(t)
	mustMerge(t, r, "doc", `{"properties":{"a":{"type":"keyword"}}}`)
	mustMerge(t, r, mapper.DefaultMappingType, `{"properties":{"created":{"type":"date"}}}`)
	mustMerge(t, r, "doc", `{"properties":{"b":{"type":"keyword"}}}`)
	assert.Nil(t, r.FullName("created"))
}

func TestScriptIndexDefaultMapping(t *testing.T) {
	r := newTestRegistry(t, func(cfg *config.Config) { cfg.IndexCfg.Name = config.ScriptIndexName })
	assert.Equal(t, scriptDefaultMappingSource, r.DefaultMappingSource().String())
	tm := mustMerge(t, r, "groovy", `{}`)
	objects, _ := tm.Mapping().Collect()
	require.Len(t, objects, 2)
	assert.False(t, objects[0].Enabled())
	assert.Equal(t, "script", objects[0].FullPath())
}

func TestPercolatorDefaultMapping(t *testing.T) {
	r := newTestRegistry(t)
	tm := mustMerge(t, r, mapper.PercolatorTypeName, `{}`)
	assert.Equal(t, `{".percolator":{"properties":{"query":{"enabled":false,"type":"object"}}}}`, tm.Source().String())
	assert.Equal(t, []string{mapper.PercolatorTypeName}, r.Types())
}

func TestParentTypes(t *testing.T) {
	r := newTestRegistry(t)
	mustMerge(t, r, "question", `{}`)
	mustMerge(t, r, "answer", `{"_parent":{"type":"question"}}`)
	mustMerge(t, r, "comment", `{"_parent":{"type":"answer"}}`)
	mustMerge(t, r, "vote", `{"_parent":{"type":"answer"}}`)
	assert.Equal(t, []string{"answer", "question"}, r.ParentTypes())

	_, err := r.Merge("vote", []byte(`{"_parent":{"type":"question"}}`), true, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "The _parent field's type option can't be changed: [answer]->[question]")
}

func TestResolveClosestNestedObjectMapper(t *testing.T) {
	r := newTestRegistry(t)
	mustMerge(t, r, "doc", `{"properties":{
		"comments":{"type":"nested","properties":{
			"author":{"properties":{"name":{"type":"text"}}},
			"replies":{"type":"nested","properties":{"text":{"type":"text"}}}}},
		"title":{"type":"text"}}}`)

	assert.True(t, r.HasNested())
	assert.Equal(t, "comments", r.ResolveClosestNestedObjectMapper("comments.author.name").FullPath())
	assert.Equal(t, "comments.replies", r.ResolveClosestNestedObjectMapper("comments.replies.text").FullPath())
	assert.Nil(t, r.ResolveClosestNestedObjectMapper("title"))
	assert.Nil(t, r.ResolveClosestNestedObjectMapper("comments"))
	assert.Nil(t, r.ResolveClosestNestedObjectMapper("other.field"))
}

func TestDocumentMapperWithAutoCreate(t *testing.T) {
	r := newTestRegistry(t)
	mustMerge(t, r, mapper.DefaultMappingType, `{"properties":{"created":{"type":"date"}}}`)
	existing := mustMerge(t, r, "doc", `{}`)

	m, err := r.DocumentMapperWithAutoCreate("doc")
	require.NoError(t, err)
	assert.Same(t, existing, m.Mapper)
	assert.Nil(t, m.Update)

	m, err = r.DocumentMapperWithAutoCreate("auto")
	require.NoError(t, err)
	require.NotNil(t, m.Update)
	assert.Equal(t, "auto", m.Mapper.Type())
	assert.Contains(t, m.Mapper.Source().String(), "created")
	assert.False(t, r.HasMapping("auto"), "auto created mappings are not registered")

	static := newTestRegistry(t, func(cfg *config.Config) { cfg.IndexCfg.Dynamic = false })
	_, err = static.DocumentMapperWithAutoCreate("auto")
	var merr *TypeMissingError
	require.ErrorAs(t, err, &merr)
	assert.Equal(t, "[baud] type[[auto]] missing: trying to auto create mapping, but dynamic mapping is disabled", merr.Error())
}

func TestTypeListeners(t *testing.T) {
	r := newTestRegistry(t)
	var calls []string
	first := r.AddTypeListener(TypeListenerFunc(func(tm *mapper.TypeMapping) error {
		calls = append(calls, "first:"+tm.Type())
		return nil
	}))
	reject := errors.New("rejected")
	second := r.AddTypeListener(TypeListenerFunc(func(tm *mapper.TypeMapping) error {
		calls = append(calls, "second:"+tm.Type())
		if tm.Type() == "bad" {
			return reject
		}
		return nil
	}))

	mustMerge(t, r, "good", `{"properties":{"a":{"type":"keyword"}}}`)
	assert.Equal(t, []string{"first:good", "second:good"}, calls)

	_, err := r.Merge("bad", []byte(`{"properties":{"b":{"type":"keyword"}}}`), true, false)
	assert.True(t, errors.Is(err, reject))
	assert.False(t, r.HasMapping("bad"))
	assert.Nil(t, r.FullName("b"), "a rejected type must not leak its fields")

	// listeners only see new types
	calls = nil
	mustMerge(t, r, "good", `{"properties":{"c":{"type":"keyword"}}}`)
	assert.Empty(t, calls)

	assert.True(t, r.RemoveTypeListener(second))
	assert.False(t, r.RemoveTypeListener(second))
	mustMerge(t, r, "bad", `{}`)
	assert.Equal(t, []string{"first:bad"}, calls)
	assert.True(t, r.RemoveTypeListener(first))
}

func TestUnmappedFieldType(t *testing.T) {
	r := newTestRegistry(t)
	ft, err := r.UnmappedFieldType("keyword")
	require.NoError(t, err)
	assert.Equal(t, "__anonymous_keyword", ft.Name)
	assert.Equal(t, "keyword", ft.Type)

	again, err := r.UnmappedFieldType("keyword")
	require.NoError(t, err)
	assert.Same(t, ft, again)

	_, err = r.UnmappedFieldType("bogus")
	assert.True(t, errors.Is(err, ErrUnknownFieldType))
}

func TestClose(t *testing.T) {
	r := newTestRegistry(t)
	tm := mustMerge(t, r, "doc", `{}`)
	r.Close()
	r.Close()
	assert.True(t, r.Closed())
	assert.True(t, tm.Closed())

	_, err := r.Merge("other", []byte(`{}`), true, false)
	assert.True(t, errors.Is(err, ErrRegistryClosed))
	assert.Equal(t, []string{"doc"}, r.Types())
}

func TestReservedFields(t *testing.T) {
	expected := []string{"_uid", "_id", "_type", "_all", "_parent", "_routing", "_index", "_size", "_timestamp", "_ttl"}
	assert.Equal(t, expected, AllMetaFields())
	for _, name := range expected {
		assert.True(t, IsMetadataField(name), name)
	}
	for _, name := range []string{"_source", "_version", "uid", "", "_ID"} {
		assert.False(t, IsMetadataField(name), name)
	}
	fields := AllMetaFields()
	fields[0] = "changed"
	assert.Equal(t, "_uid", AllMetaFields()[0])
}

type unstableParser struct {
	calls int
}

func (p *unstableParser) Parse(fullName string, params map[string]interface{}) (*mapper.FieldType, error) {
	p.calls++
	return &mapper.FieldType{Name: fullName, IndexName: fullName, Type: "unstable", Indexed: true, DocValues: true, Boost: float64(p.calls)}, nil
}

func TestRoundTripViolation(t *testing.T) {
	r := newTestRegistry(t)
	r.Parser().RegisterTypeParser("unstable", &unstableParser{})

	// logged only
	_, err := r.Merge("lenient", []byte(`{"properties":{"a":{"type":"unstable"}}}`), true, false)
	require.NoError(t, err)

	r.cfg.MapperCfg.AssertSerialization = true
	defer func() {
		v := recover()
		require.NotNil(t, v)
		violation, ok := v.(*InvariantViolationError)
		require.True(t, ok, fmt.Sprintf("unexpected panic %v", v))
		assert.Equal(t, "strict", violation.Type)
	}()
	r.Merge("strict", []byte(`{"properties":{"b":{"type":"unstable"}}}`), true, false)
}

func TestMergeRepublishesUpdatedObjects(t *testing.T) {
	r := newTestRegistry(t)
	mustMerge(t, r, "t1", `{"properties":{"user":{"properties":{"name":{"type":"keyword"}}}}}`)
	tm := mustMerge(t, r, "t1", `{"properties":{"user":{"dynamic":"strict","enabled":false,"properties":{"addr":{"properties":{"city":{"type":"keyword"}}}}}}}`)

	user := r.ObjectMapper("user")
	require.NotNil(t, user)
	assert.Same(t, tm.Mapping().Root().Objects()[0], user)
	assert.Equal(t, "strict", user.Dynamic())
	assert.False(t, user.Enabled())
	assert.Len(t, user.Objects(), 1)
	assert.NotNil(t, r.ObjectMapper("user.addr"))

	version := r.Version()
	_, err := r.Merge("t2", []byte(`{"properties":{"user":{"enabled":true}}}`), true, false)
	var cerr *mapper.FieldConflictError
	require.ErrorAs(t, err, &cerr)
	assert.Contains(t, err.Error(), "can't update attribute for type [user.enabled]")
	assert.Equal(t, []string{"t1"}, r.Types())
	assert.Equal(t, version, r.Version())
}

func TestUpdateAllTypesRewritesSharedFields(t *testing.T) {
	r := newTestRegistry(t)
	t1 := mustMerge(t, r, "t1", `{"properties":{"x":{"type":"keyword"},"y":{"type":"long"}}}`)

	_, err := r.Merge("t2", []byte(`{"properties":{"x":{"type":"keyword","boost":2}}}`), true, true)
	require.NoError(t, err)
	assert.Equal(t, 2.0, r.FullName("x").Boost)
	assert.Same(t, t1, r.TypeMapping("t1"))
	assert.Contains(t, t1.Source().String(), `"x":{"boost":2,"type":"keyword"}`)
	assert.Contains(t, t1.Source().String(), `"y":{"type":"long"}`)

	// a type declaring the field like the others is admitted without the flag
	mustMerge(t, r, "t3", `{"properties":{"x":{"type":"keyword","boost":2}}}`)
	_, err = r.Merge("t4", []byte(`{"properties":{"x":{"type":"keyword"}}}`), true, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "update_all_types")

	// updating an existing type rewrites the others too
	_, err = r.Merge("t1", []byte(`{"properties":{"x":{"type":"keyword","boost":3}}}`), true, true)
	require.NoError(t, err)
	for _, typeName := range []string{"t1", "t2", "t3"} {
		assert.Contains(t, r.TypeMapping(typeName).Source().String(), `"x":{"boost":3,"type":"keyword"}`, typeName)
	}
	assert.Equal(t, []string{"t1", "t2", "t3"}, r.Snapshot().FieldTypes().Types("x"))
}

func TestMergeCompressed(t *testing.T) {
	r := newTestRegistry(t)
	source := mapper.NewCompressedSource([]byte(`{"doc":{"properties":{"title":{"type":"text"}}}}`))
	tm, err := r.MergeCompressed("doc", source, true, false)
	require.NoError(t, err)
	assert.Same(t, tm, r.TypeMapping("doc"))
	assert.Equal(t, "text", r.FullName("title").Type)

	again, err := r.MergeCompressed("doc", tm.Source(), true, false)
	require.NoError(t, err)
	assert.Same(t, tm, again)
	assert.Equal(t, uint64(1), r.Version())
}

func TestTypeFieldIndexing(t *testing.T) {
	r := newTestRegistry(t)
	raw := mustMerge(t, r, "raw", `{"_type":{"index":false}}`)
	assert.False(t, raw.TypeFieldIndexed())
	assert.False(t, r.FullName(mapper.TypeFieldName).Indexed)

	// types may choose differently
	doc := mustMerge(t, r, "doc", `{}`)
	assert.True(t, doc.TypeFieldIndexed())
	assert.Equal(t, []string{"doc", "raw"}, r.Types())
}
