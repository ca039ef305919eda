package mapper

import (
	"fmt"
	"sort"
)

const (
	UIDFieldName       = "_uid"
	IDFieldName        = "_id"
	TypeFieldName      = "_type"
	AllFieldName       = "_all"
	ParentFieldName    = "_parent"
	RoutingFieldName   = "_routing"
	IndexFieldName     = "_index"
	SizeFieldName      = "_size"
	TimestampFieldName = "_timestamp"
	TTLFieldName       = "_ttl"

	// separates the type from the id inside _uid terms
	UIDDelimiter = "#"
)

// MetaFields is the fixed set of reserved metadata field names.
var MetaFields = []string{
	UIDFieldName, IDFieldName, TypeFieldName, AllFieldName, ParentFieldName,
	RoutingFieldName, IndexFieldName, SizeFieldName, TimestampFieldName, TTLFieldName,
}

var metaFieldSet = func() map[string]struct{} {
	m := make(map[string]struct{}, len(MetaFields))
	for _, name := range MetaFields {
		m[name] = struct{}{}
	}
	return m
}()

func IsMetadataField(name string) bool {
	_, ok := metaFieldSet[name]
	return ok
}

// MetadataFields holds the per type options of the metadata fields. Options
// left nil were not given in the source and never override an explicit
// value during a merge.
type MetadataFields struct {
	typeIndexed      *bool
	parentType       string
	routingRequired  *bool
	allEnabled       *bool
	allAnalyzer      string
	sizeEnabled      *bool
	timestampEnabled *bool
	timestampFormat  string
	ttlEnabled       *bool
	ttlDefault       string
	indexEnabled     *bool

	nodes []*FieldNode
}

func (m *MetadataFields) TypeIndexed() bool {
	return m.typeIndexed == nil || *m.typeIndexed
}

func (m *MetadataFields) ParentType() string {
	return m.parentType
}

func (m *MetadataFields) RoutingRequired() bool {
	return m.routingRequired != nil && *m.routingRequired
}

func (m *MetadataFields) AllEnabled() bool {
	return m.allEnabled == nil || *m.allEnabled
}

func (m *MetadataFields) SizeEnabled() bool {
	return m.sizeEnabled != nil && *m.sizeEnabled
}

func (m *MetadataFields) TimestampEnabled() bool {
	return m.timestampEnabled != nil && *m.timestampEnabled
}

func (m *MetadataFields) TTLEnabled() bool {
	return m.ttlEnabled != nil && *m.ttlEnabled
}

func (m *MetadataFields) IndexEnabled() bool {
	return m.indexEnabled != nil && *m.indexEnabled
}

// Nodes returns one field node per metadata field, in MetaFields order.
func (m *MetadataFields) Nodes() []*FieldNode {
	return m.nodes
}

func (m *MetadataFields) parse(typeName, name string, val interface{}) error {
	params, ok := val.(map[string]interface{})
	if !ok {
		return newParseError(typeName, nil, "[%s] must be an object", name)
	}
	var err error
	for _, key := range sortedKeys(params) {
		v := params[key]
		switch name + "." + key {
		case "_type.index":
			var indexed bool
			indexed, _, err = parseIndex(v)
			m.typeIndexed = &indexed
		case "_parent.type":
			m.parentType, err = parseString(v)
		case "_routing.required":
			m.routingRequired, err = parseBoolPtr(v)
		case "_all.enabled":
			m.allEnabled, err = parseBoolPtr(v)
		case "_all.analyzer":
			m.allAnalyzer, err = parseString(v)
		case "_size.enabled":
			m.sizeEnabled, err = parseBoolPtr(v)
		case "_timestamp.enabled":
			m.timestampEnabled, err = parseBoolPtr(v)
		case "_timestamp.format":
			m.timestampFormat, err = parseString(v)
		case "_ttl.enabled":
			m.ttlEnabled, err = parseBoolPtr(v)
		case "_ttl.default":
			m.ttlDefault, err = parseString(v)
		case "_index.enabled":
			m.indexEnabled, err = parseBoolPtr(v)
		default:
			return newParseError(typeName, nil, "[%s] has unsupported parameters: [%s]", name, key)
		}
		if err != nil {
			return newParseError(typeName, err, "invalid value for [%s.%s]", name, key)
		}
	}
	return nil
}

// toMap returns the explicit options keyed by metadata field name.
func (m *MetadataFields) toMap() map[string]interface{} {
	out := make(map[string]interface{})
	put := func(field, key string, v interface{}) {
		sub, ok := out[field].(map[string]interface{})
		if !ok {
			sub = make(map[string]interface{})
			out[field] = sub
		}
		sub[key] = v
	}
	if m.typeIndexed != nil {
		put(TypeFieldName, "index", *m.typeIndexed)
	}
	if m.parentType != "" {
		put(ParentFieldName, "type", m.parentType)
	}
	if m.routingRequired != nil {
		put(RoutingFieldName, "required", *m.routingRequired)
	}
	if m.allEnabled != nil {
		put(AllFieldName, "enabled", *m.allEnabled)
	}
	if m.allAnalyzer != "" {
		put(AllFieldName, "analyzer", m.allAnalyzer)
	}
	if m.sizeEnabled != nil {
		put(SizeFieldName, "enabled", *m.sizeEnabled)
	}
	if m.timestampEnabled != nil {
		put(TimestampFieldName, "enabled", *m.timestampEnabled)
	}
	if m.timestampFormat != "" {
		put(TimestampFieldName, "format", m.timestampFormat)
	}
	if m.ttlEnabled != nil {
		put(TTLFieldName, "enabled", *m.ttlEnabled)
	}
	if m.ttlDefault != "" {
		put(TTLFieldName, "default", m.ttlDefault)
	}
	if m.indexEnabled != nil {
		put(IndexFieldName, "enabled", *m.indexEnabled)
	}
	return out
}

func (m *MetadataFields) merge(other *MetadataFields) (*MetadataFields, []string) {
	var conflicts []string
	merged := *m
	merged.nodes = nil

	if other.parentType != m.parentType && other.parentType != "" {
		from := m.parentType
		if from == "" {
			from = "null"
		}
		conflicts = append(conflicts, fmt.Sprintf("The _parent field's type option can't be changed: [%s]->[%s]", from, other.parentType))
	}
	if other.typeIndexed != nil && m.typeIndexed != nil && *other.typeIndexed != *m.typeIndexed {
		conflicts = append(conflicts, "mapper [_type] has different [index] values")
	}
	if other.allEnabled != nil && m.allEnabled != nil && *other.allEnabled != *m.allEnabled {
		conflicts = append(conflicts, fmt.Sprintf("mapper [_all] enabled is %v now encountering %v", *m.allEnabled, *other.allEnabled))
	}
	if other.allAnalyzer != "" && other.allAnalyzer != m.allAnalyzer {
		conflicts = append(conflicts, "mapper [_all] has different [analyzer]")
	}
	if other.timestampFormat != "" && other.timestampFormat != m.timestampFormat {
		conflicts = append(conflicts, "mapper [_timestamp] has different [format] values")
	}

	mergeBool(&merged.typeIndexed, other.typeIndexed)
	mergeBool(&merged.allEnabled, other.allEnabled)
	mergeBool(&merged.routingRequired, other.routingRequired)
	mergeBool(&merged.sizeEnabled, other.sizeEnabled)
	mergeBool(&merged.timestampEnabled, other.timestampEnabled)
	mergeBool(&merged.ttlEnabled, other.ttlEnabled)
	mergeBool(&merged.indexEnabled, other.indexEnabled)
	if other.ttlDefault != "" {
		merged.ttlDefault = other.ttlDefault
	}
	// the field types of the metadata fields never change on merge, keep the nodes
	merged.nodes = m.nodes
	return &merged, conflicts
}

func mergeBool(dst **bool, src *bool) {
	if src != nil {
		v := *src
		*dst = &v
	}
}

func (m *MetadataFields) buildNodes() {
	keyword := func(name string, indexed, stored, docValues bool) *FieldType {
		return &FieldType{
			Name: name, IndexName: name, Type: "keyword",
			Indexed: indexed, Stored: stored, DocValues: docValues, Boost: defaultBoost,
		}
	}
	format := m.timestampFormat
	if format == "" {
		format = defaultDateFormat
	}
	types := []*FieldType{
		keyword(UIDFieldName, true, true, false),
		keyword(IDFieldName, false, false, false),
		keyword(TypeFieldName, m.TypeIndexed(), false, false),
		{Name: AllFieldName, IndexName: AllFieldName, Type: "text", Indexed: true, Tokenized: true, Boost: defaultBoost, Analyzer: m.allAnalyzer},
		keyword(ParentFieldName, true, false, true),
		keyword(RoutingFieldName, true, true, false),
		keyword(IndexFieldName, true, false, false),
		{Name: SizeFieldName, IndexName: SizeFieldName, Type: "integer", Indexed: true, Stored: true, DocValues: true, Boost: defaultBoost},
		{Name: TimestampFieldName, IndexName: TimestampFieldName, Type: "date", Indexed: true, DocValues: true, Boost: defaultBoost, Format: format},
		{Name: TTLFieldName, IndexName: TTLFieldName, Type: "long", Indexed: true, Stored: true, DocValues: true, Boost: defaultBoost},
	}
	m.nodes = make([]*FieldNode, 0, len(types))
	for _, ft := range types {
		m.nodes = append(m.nodes, newFieldNode(ft.Name, ft, nil))
	}
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
