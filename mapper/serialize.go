package mapper

import (
	"github.com/tiglabs/baudschema/util/json"
)

// serialize renders m as {"<type>": {...}} with sorted keys. Only options
// that differ from their defaults are written, so the output parses back
// to the same tree and serializes to the same bytes.
func serialize(typeName string, m *Mapping) ([]byte, error) {
	return json.MarshalCanonical(map[string]interface{}{typeName: m.toMap()})
}

func (m *Mapping) toMap() map[string]interface{} {
	out := m.meta.toMap()
	root := m.root
	if props := propertiesMap(root); len(props) > 0 {
		out["properties"] = props
	}
	if root.dynamic != "" {
		out["dynamic"] = dynamicValue(root.dynamic)
	}
	if root.enabled != nil {
		out["enabled"] = *root.enabled
	}
	if root.includeInAll != nil {
		out["include_in_all"] = *root.includeInAll
	}
	if m.metaMap != nil {
		out["_meta"] = deepCopyMap(m.metaMap)
	}
	return out
}

func propertiesMap(o *ObjectNode) map[string]interface{} {
	props := make(map[string]interface{}, len(o.objects)+len(o.fields))
	for leaf, obj := range o.objects {
		props[leaf] = objectMap(obj)
	}
	for leaf, f := range o.fields {
		props[leaf] = fieldMap(f)
	}
	return props
}

func objectMap(o *ObjectNode) map[string]interface{} {
	out := make(map[string]interface{})
	props := propertiesMap(o)
	if o.nested {
		out["type"] = "nested"
	} else if len(props) == 0 {
		out["type"] = "object"
	}
	if len(props) > 0 {
		out["properties"] = props
	}
	if o.enabled != nil {
		out["enabled"] = *o.enabled
	}
	if o.dynamic != "" {
		out["dynamic"] = dynamicValue(o.dynamic)
	}
	if o.includeInAll != nil {
		out["include_in_all"] = *o.includeInAll
	}
	if o.includeInParent != nil {
		out["include_in_parent"] = *o.includeInParent
	}
	if o.includeInRoot != nil {
		out["include_in_root"] = *o.includeInRoot
	}
	return out
}

func fieldMap(f *FieldNode) map[string]interface{} {
	ft := f.fieldType
	out := map[string]interface{}{"type": ft.Type}
	if v, ok := indexValue(ft); ok {
		out["index"] = v
	}
	if ft.Stored {
		out["store"] = true
	}
	if ft.DocValues != defaultDocValues(ft) {
		out["doc_values"] = ft.DocValues
	}
	if ft.Boost != defaultBoost {
		out["boost"] = ft.Boost
	}
	if ft.Analyzer != "" {
		out["analyzer"] = ft.Analyzer
	}
	if ft.SearchAnalyzer != "" {
		out["search_analyzer"] = ft.SearchAnalyzer
	}
	if ft.SearchQuoteAnalyzer != "" {
		out["search_quote_analyzer"] = ft.SearchQuoteAnalyzer
	}
	if ft.NullValue != nil {
		out["null_value"] = ft.NullValue
	}
	if ft.Type == "date" && ft.Format != defaultDateFormat {
		out["format"] = ft.Format
	}
	if ft.IgnoreAbove != 0 {
		out["ignore_above"] = ft.IgnoreAbove
	}
	if ft.IncludeInAll != nil {
		out["include_in_all"] = *ft.IncludeInAll
	}
	for k, v := range ft.Extra {
		out[k] = deepCopyValue(v)
	}
	if len(f.fields) > 0 {
		fields := make(map[string]interface{}, len(f.fields))
		for leaf, sub := range f.fields {
			fields[leaf] = fieldMap(sub)
		}
		out["fields"] = fields
	}
	return out
}

func indexValue(ft *FieldType) (interface{}, bool) {
	if ft.Type == "string" {
		switch {
		case !ft.Indexed:
			return "no", true
		case !ft.Tokenized:
			return "not_analyzed", true
		}
		return nil, false
	}
	if ft.Indexed != (ft.Type != "binary") {
		return ft.Indexed, true
	}
	return nil, false
}

func dynamicValue(d string) interface{} {
	switch d {
	case "true":
		return true
	case "false":
		return false
	}
	return d
}
