package registry

import (
	"github.com/blevesearch/bleve/search/query"

	"github.com/tiglabs/baudschema/mapper"
)

// nested documents carry a _type starting with this prefix
const nestedTypePrefix = "__"

// NonNestedFilter matches every document that is not a nested document.
func NonNestedFilter() query.Query {
	nested := query.NewPrefixQuery(nestedTypePrefix)
	nested.SetField(mapper.TypeFieldName)
	return query.NewBooleanQuery([]query.Query{query.NewMatchAllQuery()}, nil, []query.Query{nested})
}

// SearchFilter returns the filter restricting a search to types, or nil
// when no filtering is needed. Nested documents are only excluded when no
// type is requested. Percolator documents are excluded unless requested.
func (s *Snapshot) SearchFilter(types ...string) query.Query {
	var percolatorFilter query.Query
	if p, ok := s.types[mapper.PercolatorTypeName]; ok && !contains(types, mapper.PercolatorTypeName) {
		percolatorFilter = p.TypeFilter()
	}

	if len(types) == 0 {
		switch {
		case s.hasNested && percolatorFilter != nil:
			return query.NewBooleanQuery([]query.Query{NonNestedFilter()}, nil, []query.Query{percolatorFilter})
		case s.hasNested:
			return NonNestedFilter()
		case percolatorFilter != nil:
			return query.NewBooleanQuery(nil, nil, []query.Query{percolatorFilter})
		}
		return nil
	}

	if len(types) == 1 {
		return excludePercolator(s.typeFilter(types[0]), percolatorFilter)
	}

	fast := true
	for _, t := range types {
		if tm, ok := s.types[t]; !ok || !tm.TypeFieldIndexed() {
			fast = false
			break
		}
	}
	if fast {
		terms := make([]query.Query, 0, len(types))
		for _, t := range types {
			terms = append(terms, mapper.NewTypeTermFilter(t))
		}
		return excludePercolator(query.NewDisjunctionQuery(terms), percolatorFilter)
	}

	filters := make([]query.Query, 0, len(types))
	for _, t := range types {
		filters = append(filters, s.typeFilter(t))
	}
	var mustNot []query.Query
	if percolatorFilter != nil {
		mustNot = []query.Query{percolatorFilter}
	}
	return query.NewBooleanQuery([]query.Query{query.NewDisjunctionQuery(filters)}, nil, mustNot)
}

func (s *Snapshot) typeFilter(typeName string) query.Query {
	if tm, ok := s.types[typeName]; ok {
		return tm.TypeFilter()
	}
	return mapper.NewTypeTermFilter(typeName)
}

func excludePercolator(filter, percolatorFilter query.Query) query.Query {
	if percolatorFilter == nil {
		return filter
	}
	return query.NewBooleanQuery([]query.Query{filter}, nil, []query.Query{percolatorFilter})
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
