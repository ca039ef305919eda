package mapper

import (
	"errors"
	"strings"
	"testing"
)

func mustParse(t *testing.T, p *Parser, typeName, src string) *TypeMapping {
	tm, err := p.Parse(typeName, []byte(src), nil)
	if err != nil {
		t.Fatalf("parse %s failed %v", src, err)
	}
	return tm
}

func TestMergeAddsFields(t *testing.T) {
	p := NewParser()
	tm := mustParse(t, p, "doc", `{"properties":{"a":{"type":"keyword"}}}`)
	_, before := tm.Mapping().Collect()
	var aID uint64
	for _, f := range before {
		if f.Name() == "a" {
			aID = f.ID()
		}
	}

	candidate := mustParse(t, p, "doc", `{"properties":{"a":{"type":"keyword","boost":2},"obj":{"properties":{"x":{"type":"long"}}}}}`)
	res, err := tm.Merge(candidate.Mapping(), false)
	if err != nil {
		t.Fatalf("merge failed %v", err)
	}
	if !res.Changed() {
		t.Fatal("expected a change")
	}
	if len(res.NewObjects) != 1 || res.NewObjects[0].FullPath() != "obj" {
		t.Fatalf("invalid new objects %v", res.NewObjects)
	}
	if len(res.ChangedFields) != 2 {
		t.Fatalf("invalid changed fields %v", res.ChangedFields)
	}
	// nothing is visible before Apply
	if strings.Contains(tm.Source().String(), "obj") {
		t.Fatal("merge must not modify the mapping")
	}
	if err := tm.Apply(res); err != nil {
		t.Fatalf("apply failed %v", err)
	}
	if tm.Source().String() != `{"doc":{"properties":{"a":{"boost":2,"type":"keyword"},"obj":{"properties":{"x":{"type":"long"}}}}}}` {
		t.Fatalf("invalid merged source %s", tm.Source().String())
	}
	_, after := tm.Mapping().Collect()
	for _, f := range after {
		if f.Name() == "a" && f.ID() != aID {
			t.Fatal("merged field must keep its id")
		}
	}
	if err := tm.Apply(res); !errors.Is(err, ErrStaleMerge) {
		t.Fatalf("expected stale merge, got %v", err)
	}
}

func TestMergeNoop(t *testing.T) {
	p := NewParser()
	tm := mustParse(t, p, "doc", `{"properties":{"a":{"type":"keyword"},"o":{"properties":{"b":{"type":"long"}}}}}`)
	candidate := mustParse(t, p, "doc", tm.Source().String())
	res, err := tm.Merge(candidate.Mapping(), false)
	if err != nil {
		t.Fatalf("merge failed %v", err)
	}
	if res.Changed() {
		t.Fatal("identical merge must not change the mapping")
	}
}

func TestMergeKeepsExplicitOptions(t *testing.T) {
	p := NewParser()
	tm := mustParse(t, p, "doc", `{"_all":{"enabled":false},"properties":{"a":{"type":"keyword","fields":{"t":{"type":"text"}}}}}`)
	candidate := mustParse(t, p, "doc", `{"properties":{"a":{"type":"keyword"}}}`)
	res, err := tm.Merge(candidate.Mapping(), false)
	if err != nil {
		t.Fatalf("merge failed %v", err)
	}
	if res.Changed() {
		t.Fatalf("omitted options must not change the mapping: %s", res.Source().String())
	}
}

func TestMergeConflicts(t *testing.T) {
	p := NewParser()
	groups := []struct {
		existing  string
		candidate string
		conflict  string
	}{
		{`{"properties":{"a":{"type":"keyword"}}}`, `{"properties":{"a":{"type":"long"}}}`, "mapper [a] cannot be changed from type [keyword] to [long]"},
		{`{"properties":{"a":{"type":"keyword"}}}`, `{"properties":{"a":{"properties":{"b":{"type":"long"}}}}}`, "can't merge a non object mapping [a] with an object mapping [a]"},
		{`{"properties":{"a":{"properties":{"b":{"type":"long"}}}}}`, `{"properties":{"a":{"type":"keyword"}}}`, "can't merge an object mapping [a] with a non object mapping [a]"},
		{`{"properties":{"a":{"type":"nested"}}}`, `{"properties":{"a":{"type":"object"}}}`, "object mapping [a] can't be changed from nested to non-nested"},
		{`{"properties":{"a":{"type":"keyword","store":true}}}`, `{"properties":{"a":{"type":"keyword"}}}`, "mapper [a] has different [store] values"},
		{`{"_parent":{"type":"p1"}}`, `{"_parent":{"type":"p2"}}`, "The _parent field's type option can't be changed: [p1]->[p2]"},
	}
	for _, g := range groups {
		tm := mustParse(t, p, "doc", g.existing)
		source := tm.Source()
		candidate := mustParse(t, p, "doc", g.candidate)
		_, err := tm.Merge(candidate.Mapping(), false)
		var cerr *FieldConflictError
		if !errors.As(err, &cerr) {
			t.Fatalf("expected conflict for %s, got %v", g.candidate, err)
		}
		if !strings.Contains(cerr.Error(), g.conflict) {
			t.Fatalf("expected %q in %q", g.conflict, cerr.Error())
		}
		if !tm.Source().Equal(source) {
			t.Fatal("failed merge must not modify the mapping")
		}
	}
}

func TestTypeFilter(t *testing.T) {
	p := NewParser()
	indexed := mustParse(t, p, "doc", `{}`)
	if indexed.TypeFilter().(interface{ Field() string }).Field() != TypeFieldName {
		t.Fatal("expected a filter on _type")
	}
	unindexed := mustParse(t, p, "doc", `{"_type":{"index":false}}`)
	if unindexed.TypeFilter().(interface{ Field() string }).Field() != UIDFieldName {
		t.Fatal("expected a filter on _uid")
	}
}
