package mapper

import (
	"sort"
	"strings"

	"github.com/google/btree"
)

const lookupDegree = 16

type lookupEntry struct {
	name  string
	ft    *FieldType
	types map[string]struct{}
}

func (e *lookupEntry) usedOnlyBy(typeName string) bool {
	_, ok := e.types[typeName]
	return ok && len(e.types) == 1
}

func (e *lookupEntry) with(typeName string, ft *FieldType) *lookupEntry {
	n := &lookupEntry{name: e.name, ft: ft, types: make(map[string]struct{}, len(e.types)+1)}
	for t := range e.types {
		n.types[t] = struct{}{}
	}
	n.types[typeName] = struct{}{}
	return n
}

func entryLess(a, b *lookupEntry) bool {
	return a.name < b.name
}

// FieldTypeLookup maps full field names and index names to the field types
// of every admitted type. It is never modified once published; the Copy
// methods return a new lookup sharing unchanged nodes.
type FieldTypeLookup struct {
	byName  *btree.BTreeG[*lookupEntry]
	byIndex *btree.BTreeG[*lookupEntry]
}

func NewFieldTypeLookup() *FieldTypeLookup {
	return &FieldTypeLookup{
		byName:  btree.NewG(lookupDegree, entryLess),
		byIndex: btree.NewG(lookupDegree, entryLess),
	}
}

func (l *FieldTypeLookup) getEntry(tree *btree.BTreeG[*lookupEntry], name string) (*lookupEntry, bool) {
	return tree.Get(&lookupEntry{name: name})
}

func (l *FieldTypeLookup) Get(fullName string) *FieldType {
	if e, ok := l.getEntry(l.byName, fullName); ok {
		return e.ft
	}
	return nil
}

func (l *FieldTypeLookup) GetByIndexName(indexName string) *FieldType {
	if e, ok := l.getEntry(l.byIndex, indexName); ok {
		return e.ft
	}
	return nil
}

// Types returns the sorted names of the types using fullName.
func (l *FieldTypeLookup) Types(fullName string) []string {
	e, ok := l.getEntry(l.byName, fullName)
	if !ok {
		return nil
	}
	types := make([]string, 0, len(e.types))
	for t := range e.types {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

func (l *FieldTypeLookup) Len() int {
	return l.byName.Len()
}

// CheckCompatibility reports the first field of typeName that cannot be
// added. Fields used only by typeName, or any field when updateAllTypes is
// set, are checked leniently.
func (l *FieldTypeLookup) CheckCompatibility(typeName string, fields []*FieldNode, updateAllTypes bool) error {
	for _, f := range fields {
		ft := f.FieldType()
		if ft.Name == TypeFieldName {
			// indexing _type is a per-type choice, type filters handle mixed settings
			continue
		}
		if e, ok := l.getEntry(l.byName, ft.Name); ok {
			strict := !updateAllTypes && !e.usedOnlyBy(typeName)
			if conflicts := e.ft.CheckCompatibility(ft, strict); len(conflicts) > 0 {
				return NewFieldConflictError(typeName, ft.Name, conflicts...)
			}
		}
		if e, ok := l.getEntry(l.byIndex, ft.IndexName); ok {
			strict := !updateAllTypes && !e.usedOnlyBy(typeName)
			if conflicts := e.ft.CheckCompatibility(ft, strict); len(conflicts) > 0 {
				return NewFieldConflictError(typeName, ft.Name, conflicts...)
			}
		}
	}
	return nil
}

// CopyAndAddAll returns a lookup that also holds fields of typeName. The
// receiver itself is returned when nothing would change.
func (l *FieldTypeLookup) CopyAndAddAll(typeName string, fields []*FieldNode) *FieldTypeLookup {
	var next *FieldTypeLookup
	for _, f := range fields {
		ft := f.FieldType()
		cur, curOK := l.getEntry(l.byName, ft.Name)
		idx, idxOK := l.getEntry(l.byIndex, ft.IndexName)
		if next != nil {
			cur, curOK = next.getEntry(next.byName, ft.Name)
			idx, idxOK = next.getEntry(next.byIndex, ft.IndexName)
		}
		if curOK && idxOK && cur.ft.Equal(ft) && idx.ft.Equal(ft) {
			if _, ok := cur.types[typeName]; ok {
				if _, ok := idx.types[typeName]; ok {
					continue
				}
			}
		}
		if next == nil {
			next = &FieldTypeLookup{byName: l.byName.Clone(), byIndex: l.byIndex.Clone()}
		}
		if !curOK {
			cur = &lookupEntry{name: ft.Name}
		}
		if !idxOK {
			idx = &lookupEntry{name: ft.IndexName}
		}
		next.byName.ReplaceOrInsert(cur.with(typeName, ft))
		next.byIndex.ReplaceOrInsert(idx.with(typeName, ft))
	}
	if next == nil {
		return l
	}
	return next
}

// SimpleMatchToIndexNames expands a '*' pattern against full names and
// index names. Matches are returned as index names, sorted.
func (l *FieldTypeLookup) SimpleMatchToIndexNames(pattern string) []string {
	seen := make(map[string]struct{})
	prefix := literalPrefix(pattern)
	scan := func(tree *btree.BTreeG[*lookupEntry]) {
		tree.AscendGreaterOrEqual(&lookupEntry{name: prefix}, func(e *lookupEntry) bool {
			if !strings.HasPrefix(e.name, prefix) {
				return false
			}
			if SimpleMatch(pattern, e.name) {
				seen[e.ft.IndexName] = struct{}{}
			}
			return true
		})
	}
	scan(l.byName)
	scan(l.byIndex)
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
