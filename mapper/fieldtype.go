package mapper

import (
	"fmt"
	"reflect"
)

const (
	defaultBoost      = 1.0
	defaultDateFormat = "strict_date_optional_time||epoch_millis"

	KeywordAnalyzer = "keyword"
)

// FieldType describes how one field is indexed, stored and analyzed.
// A FieldType is never modified once it is reachable from a published mapping.
type FieldType struct {
	Name                string                 `json:"name"`
	IndexName           string                 `json:"index_name"`
	Type                string                 `json:"type"`
	Indexed             bool                   `json:"indexed"`
	Tokenized           bool                   `json:"tokenized"`
	Stored              bool                   `json:"stored"`
	DocValues           bool                   `json:"doc_values"`
	Boost               float64                `json:"boost"`
	Analyzer            string                 `json:"analyzer,omitempty"`
	SearchAnalyzer      string                 `json:"search_analyzer,omitempty"`
	SearchQuoteAnalyzer string                 `json:"search_quote_analyzer,omitempty"`
	NullValue           interface{}            `json:"null_value,omitempty"`
	Format              string                 `json:"format,omitempty"`
	IgnoreAbove         int64                  `json:"ignore_above,omitempty"`
	IncludeInAll        *bool                  `json:"include_in_all,omitempty"`
	Extra               map[string]interface{} `json:"extra,omitempty"`
}

func (ft *FieldType) Clone() *FieldType {
	c := *ft
	if ft.IncludeInAll != nil {
		v := *ft.IncludeInAll
		c.IncludeInAll = &v
	}
	if ft.Extra != nil {
		c.Extra = deepCopyMap(ft.Extra)
	}
	return &c
}

func (ft *FieldType) Equal(other *FieldType) bool {
	if ft == other {
		return true
	}
	if ft == nil || other == nil {
		return false
	}
	return reflect.DeepEqual(ft, other)
}

// IndexAnalyzerName returns the analyzer used at index time, or "" when the
// index default applies.
func (ft *FieldType) IndexAnalyzerName() string {
	if ft.Analyzer != "" {
		return ft.Analyzer
	}
	if ft.Indexed && !ft.Tokenized {
		return KeywordAnalyzer
	}
	return ""
}

func (ft *FieldType) SearchAnalyzerName() string {
	if ft.SearchAnalyzer != "" {
		return ft.SearchAnalyzer
	}
	return ft.IndexAnalyzerName()
}

func (ft *FieldType) SearchQuoteAnalyzerName() string {
	if ft.SearchQuoteAnalyzer != "" {
		return ft.SearchQuoteAnalyzer
	}
	return ft.SearchAnalyzerName()
}

// CheckCompatibility lists the reasons other cannot replace ft. Properties
// that shape the index always conflict; the remaining ones only conflict
// when strict, i.e. when the field is shared with other types and the
// caller did not ask to update all of them.
func (ft *FieldType) CheckCompatibility(other *FieldType, strict bool) []string {
	var conflicts []string
	if ft.Type != other.Type {
		return append(conflicts, fmt.Sprintf("mapper [%s] cannot be changed from type [%s] to [%s]", ft.Name, ft.Type, other.Type))
	}
	if ft.Indexed != other.Indexed || (ft.Indexed && ft.Tokenized != other.Tokenized) {
		conflicts = append(conflicts, fmt.Sprintf("mapper [%s] has different [index] values", ft.Name))
	}
	if ft.Stored != other.Stored {
		conflicts = append(conflicts, fmt.Sprintf("mapper [%s] has different [store] values", ft.Name))
	}
	if ft.DocValues != other.DocValues {
		conflicts = append(conflicts, fmt.Sprintf("mapper [%s] has different [doc_values] values", ft.Name))
	}
	if ft.IndexAnalyzerName() != other.IndexAnalyzerName() {
		conflicts = append(conflicts, fmt.Sprintf("mapper [%s] has different [analyzer]", ft.Name))
	}
	if ft.Format != other.Format {
		conflicts = append(conflicts, fmt.Sprintf("mapper [%s] has different [format] values", ft.Name))
	}
	if ft.IndexName != other.IndexName {
		conflicts = append(conflicts, fmt.Sprintf("mapper [%s] has different [index_name]", ft.Name))
	}

	if strict {
		if ft.Boost != other.Boost {
			conflicts = append(conflicts, sharedConflict(ft.Name, "boost"))
		}
		if ft.SearchAnalyzerName() != other.SearchAnalyzerName() {
			conflicts = append(conflicts, sharedConflict(ft.Name, "search_analyzer"))
		}
		if ft.SearchQuoteAnalyzerName() != other.SearchQuoteAnalyzerName() {
			conflicts = append(conflicts, sharedConflict(ft.Name, "search_quote_analyzer"))
		}
		if fmt.Sprint(ft.NullValue) != fmt.Sprint(other.NullValue) {
			conflicts = append(conflicts, sharedConflict(ft.Name, "null_value"))
		}
	}
	return conflicts
}

func sharedConflict(name, property string) string {
	return fmt.Sprintf("mapper [%s] is used by multiple types. Set update_all_types to true to update [%s] across all types.", name, property)
}

func defaultDocValues(ft *FieldType) bool {
	switch ft.Type {
	case "text", "binary":
		return false
	case "string":
		return ft.Indexed && !ft.Tokenized
	default:
		return true
	}
}

func deepCopyMap(m map[string]interface{}) map[string]interface{} {
	c := make(map[string]interface{}, len(m))
	for k, v := range m {
		c[k] = deepCopyValue(v)
	}
	return c
}

func deepCopyValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		return deepCopyMap(t)
	case []interface{}:
		c := make([]interface{}, len(t))
		for i := range t {
			c[i] = deepCopyValue(t[i])
		}
		return c
	default:
		return v
	}
}
