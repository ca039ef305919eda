package mapper

import (
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/tiglabs/baudschema/util/json"
)

const (
	// DefaultMappingType names the template every new type is built on.
	DefaultMappingType = "_default_"
	// PercolatorTypeName is the reserved type holding stored queries.
	PercolatorTypeName = ".percolator"
)

// TypeParser builds the FieldType of one field from its mapping parameters.
// The "type" and "fields" parameters are handled by the Parser.
type TypeParser interface {
	Parse(fullName string, params map[string]interface{}) (*FieldType, error)
}

type TypeParserFunc func(fullName string, params map[string]interface{}) (*FieldType, error)

func (f TypeParserFunc) Parse(fullName string, params map[string]interface{}) (*FieldType, error) {
	return f(fullName, params)
}

var coreTypes = []string{
	"text", "string", "keyword", "long", "integer", "short", "byte",
	"double", "float", "half_float", "date", "boolean", "binary", "ip", "geo_point",
}

// Parser turns mapping sources into TypeMappings.
type Parser struct {
	lock        sync.RWMutex
	typeParsers map[string]TypeParser
}

func NewParser() *Parser {
	p := &Parser{typeParsers: make(map[string]TypeParser)}
	for _, t := range coreTypes {
		p.typeParsers[t] = coreTypeParser(t)
	}
	return p
}

func (p *Parser) TypeParser(fieldType string) (TypeParser, bool) {
	p.lock.RLock()
	defer p.lock.RUnlock()
	tp, ok := p.typeParsers[fieldType]
	return tp, ok
}

func (p *Parser) RegisterTypeParser(fieldType string, tp TypeParser) {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.typeParsers[fieldType] = tp
}

// Parse builds the mapping of typeName from source. When defaultSource is
// not empty its body is used as a template for keys the source omits.
func (p *Parser) Parse(typeName string, source []byte, defaultSource []byte) (*TypeMapping, error) {
	body, err := decodeMapping(typeName, typeName, source)
	if err != nil {
		return nil, err
	}
	if len(defaultSource) > 0 {
		defaults, err := decodeMapping(typeName, DefaultMappingType, defaultSource)
		if err != nil {
			return nil, err
		}
		mergeDefaults(body, defaults)
	}
	mapping, err := p.parseMapping(typeName, body)
	if err != nil {
		return nil, err
	}
	return newTypeMapping(typeName, mapping)
}

func (p *Parser) ParseCompressed(typeName string, source CompressedSource, defaultSource []byte) (*TypeMapping, error) {
	return p.Parse(typeName, source.Uncompressed(), defaultSource)
}

// ParseMapping parses source into a bare Mapping without building a
// TypeMapping around it.
func (p *Parser) ParseMapping(typeName string, source []byte) (*Mapping, error) {
	body, err := decodeMapping(typeName, typeName, source)
	if err != nil {
		return nil, err
	}
	return p.parseMapping(typeName, body)
}

func decodeMapping(typeName, rootKey string, source []byte) (map[string]interface{}, error) {
	if len(strings.TrimSpace(string(source))) == 0 {
		return make(map[string]interface{}), nil
	}
	root, err := json.UnmarshalObject(source)
	if err != nil {
		return nil, newParseError(typeName, err, "malformed mapping source")
	}
	if len(root) == 1 {
		if inner, ok := root[rootKey]; ok {
			body, ok := inner.(map[string]interface{})
			if !ok {
				return nil, newParseError(typeName, nil, "mapping of [%s] must be an object", rootKey)
			}
			return body, nil
		}
	}
	return root, nil
}

// mergeDefaults copies every key of defaults absent from body. Nested
// objects are merged recursively and body wins on everything else.
func mergeDefaults(body, defaults map[string]interface{}) {
	for k, dv := range defaults {
		bv, ok := body[k]
		if !ok {
			body[k] = deepCopyValue(dv)
			continue
		}
		bm, bok := bv.(map[string]interface{})
		dm, dok := dv.(map[string]interface{})
		if bok && dok {
			mergeDefaults(bm, dm)
		}
	}
}

func (p *Parser) parseMapping(typeName string, body map[string]interface{}) (*Mapping, error) {
	root := newObjectNode("", "")
	meta := &MetadataFields{}
	mapping := &Mapping{root: root, meta: meta}

	var unsupported []string
	for _, key := range sortedKeys(body) {
		val := body[key]
		switch {
		case key == "properties":
			if err := p.parseProperties(typeName, root, val); err != nil {
				return nil, err
			}
		case key == "dynamic":
			d, err := parseDynamic(val)
			if err != nil {
				return nil, newParseError(typeName, err, "invalid [dynamic] value")
			}
			root.dynamic = d
		case key == "enabled":
			b, err := parseBoolPtr(val)
			if err != nil {
				return nil, newParseError(typeName, err, "invalid [enabled] value")
			}
			root.enabled = b
		case key == "include_in_all":
			b, err := parseBoolPtr(val)
			if err != nil {
				return nil, newParseError(typeName, err, "invalid [include_in_all] value")
			}
			root.includeInAll = b
		case key == "_meta":
			m, ok := val.(map[string]interface{})
			if !ok {
				return nil, newParseError(typeName, nil, "[_meta] must be an object")
			}
			mapping.metaMap = deepCopyMap(m)
		case IsMetadataField(key):
			if err := meta.parse(typeName, key, val); err != nil {
				return nil, err
			}
		default:
			unsupported = append(unsupported, key)
		}
	}
	if len(unsupported) > 0 {
		return nil, newParseError(typeName, nil, "Root mapping definition has unsupported parameters: [%s]", strings.Join(unsupported, ", "))
	}
	meta.buildNodes()
	return mapping, nil
}

func (p *Parser) parseProperties(typeName string, parent *ObjectNode, val interface{}) error {
	props, ok := val.(map[string]interface{})
	if !ok {
		return newParseError(typeName, nil, "[properties] of [%s] must be an object", parent.fullPath)
	}
	for _, leaf := range sortedKeys(props) {
		if strings.TrimSpace(leaf) == "" {
			return newParseError(typeName, nil, "field name cannot be empty in [%s]", parent.fullPath)
		}
		fullName := childPath(parent.fullPath, leaf)
		params, ok := props[leaf].(map[string]interface{})
		if !ok {
			return newParseError(typeName, nil, "expected map for property [fields] on field [%s]", fullName)
		}
		if isObjectDefinition(params) {
			obj, err := p.parseObject(typeName, fullName, leaf, params)
			if err != nil {
				return err
			}
			parent.objects[leaf] = obj
			continue
		}
		field, err := p.parseField(typeName, fullName, leaf, params)
		if err != nil {
			return err
		}
		parent.fields[leaf] = field
	}
	return nil
}

var objectParams = map[string]bool{
	"enabled":           true,
	"dynamic":           true,
	"include_in_all":    true,
	"include_in_parent": true,
	"include_in_root":   true,
}

func isObjectDefinition(params map[string]interface{}) bool {
	if t, ok := params["type"]; ok {
		return t == "object" || t == "nested"
	}
	if _, ok := params["properties"]; ok {
		return true
	}
	if len(params) == 0 {
		return false
	}
	for k := range params {
		if !objectParams[k] {
			return false
		}
	}
	return true
}

func (p *Parser) parseObject(typeName, fullPath, leaf string, params map[string]interface{}) (*ObjectNode, error) {
	obj := newObjectNode(fullPath, leaf)
	var unsupported []string
	for _, key := range sortedKeys(params) {
		val := params[key]
		var err error
		switch key {
		case "type":
			obj.nested = val == "nested"
		case "properties":
			err = p.parseProperties(typeName, obj, val)
			if err != nil {
				return nil, err
			}
		case "enabled":
			obj.enabled, err = parseBoolPtr(val)
		case "dynamic":
			obj.dynamic, err = parseDynamic(val)
		case "include_in_all":
			obj.includeInAll, err = parseBoolPtr(val)
		case "include_in_parent":
			obj.includeInParent, err = parseBoolPtr(val)
		case "include_in_root":
			obj.includeInRoot, err = parseBoolPtr(val)
		default:
			unsupported = append(unsupported, key)
		}
		if err != nil {
			return nil, newParseError(typeName, err, "invalid [%s] value on object [%s]", key, fullPath)
		}
	}
	if len(unsupported) > 0 {
		return nil, newParseError(typeName, nil, "Mapping definition for [%s] has unsupported parameters: [%s]", fullPath, strings.Join(unsupported, ", "))
	}
	if !obj.nested && (obj.includeInParent != nil || obj.includeInRoot != nil) {
		return nil, newParseError(typeName, nil, "[include_in_parent] and [include_in_root] are only allowed on nested object [%s]", fullPath)
	}
	return obj, nil
}

func (p *Parser) parseField(typeName, fullName, leaf string, params map[string]interface{}) (*FieldNode, error) {
	rawType, ok := params["type"]
	if !ok {
		return nil, newParseError(typeName, nil, "No type specified for field [%s]", fullName)
	}
	fieldType, err := parseString(rawType)
	if err != nil {
		return nil, newParseError(typeName, err, "invalid [type] on field [%s]", fullName)
	}
	tp, ok := p.TypeParser(fieldType)
	if !ok {
		return nil, newParseError(typeName, nil, "No handler for type [%s] declared on field [%s]", fieldType, fullName)
	}
	ft, err := tp.Parse(fullName, params)
	if err != nil {
		return nil, newParseError(typeName, err, "failed to parse field [%s]", fullName)
	}

	var fields map[string]*FieldNode
	if rawFields, ok := params["fields"]; ok {
		sub, ok := rawFields.(map[string]interface{})
		if !ok {
			return nil, newParseError(typeName, nil, "[fields] of [%s] must be an object", fullName)
		}
		fields = make(map[string]*FieldNode, len(sub))
		for _, subLeaf := range sortedKeys(sub) {
			subParams, ok := sub[subLeaf].(map[string]interface{})
			if !ok {
				return nil, newParseError(typeName, nil, "expected map for multi field [%s] of [%s]", subLeaf, fullName)
			}
			f, err := p.parseField(typeName, fullName+pathSeparator+subLeaf, subLeaf, subParams)
			if err != nil {
				return nil, err
			}
			fields[subLeaf] = f
		}
	}
	return newFieldNode(leaf, ft, fields), nil
}

// parameters kept verbatim on the field type
var passthroughParams = map[string]bool{
	"norms":                  true,
	"similarity":             true,
	"term_vector":            true,
	"index_options":          true,
	"position_increment_gap": true,
	"copy_to":                true,
	"coerce":                 true,
	"ignore_malformed":       true,
	"fielddata":              true,
	"eager_global_ordinals":  true,
	"precision_step":         true,
	"normalizer":             true,
}

func defaultTokenized(fieldType string) bool {
	return fieldType == "text" || fieldType == "string"
}

func coreTypeParser(fieldType string) TypeParser {
	return TypeParserFunc(func(fullName string, params map[string]interface{}) (*FieldType, error) {
		ft := &FieldType{
			Name:      fullName,
			IndexName: fullName,
			Type:      fieldType,
			Indexed:   fieldType != "binary",
			Tokenized: defaultTokenized(fieldType),
			Boost:     defaultBoost,
		}
		if fieldType == "date" {
			ft.Format = defaultDateFormat
		}

		var docValues *bool
		var unsupported []string
		for _, key := range sortedKeys(params) {
			val := params[key]
			var err error
			switch key {
			case "type", "fields":
			case "index":
				var tokenized *bool
				ft.Indexed, tokenized, err = parseIndex(val)
				if err == nil && tokenized != nil {
					if fieldType == "string" {
						ft.Tokenized = *tokenized
					} else if *tokenized != defaultTokenized(fieldType) {
						err = fmt.Errorf("index value [%v] is not supported for type [%s]", val, fieldType)
					}
				}
			case "store":
				ft.Stored, err = parseBool(val)
			case "doc_values":
				docValues, err = parseBoolPtr(val)
			case "boost":
				ft.Boost, err = parseFloat(val)
			case "analyzer":
				ft.Analyzer, err = parseString(val)
			case "search_analyzer":
				ft.SearchAnalyzer, err = parseString(val)
			case "search_quote_analyzer":
				ft.SearchQuoteAnalyzer, err = parseString(val)
			case "null_value":
				ft.NullValue = val
			case "include_in_all":
				ft.IncludeInAll, err = parseBoolPtr(val)
			case "format":
				if fieldType != "date" {
					unsupported = append(unsupported, key)
					continue
				}
				ft.Format, err = parseString(val)
			case "ignore_above":
				if fieldType != "keyword" && fieldType != "string" {
					unsupported = append(unsupported, key)
					continue
				}
				ft.IgnoreAbove, err = parseInt(val)
			default:
				if !passthroughParams[key] {
					unsupported = append(unsupported, key)
					continue
				}
				if ft.Extra == nil {
					ft.Extra = make(map[string]interface{})
				}
				ft.Extra[key] = deepCopyValue(val)
			}
			if err != nil {
				return nil, fmt.Errorf("invalid [%s]: %v", key, err)
			}
		}
		if len(unsupported) > 0 {
			return nil, fmt.Errorf("unsupported parameters: [%s]", strings.Join(unsupported, ", "))
		}
		if !ft.Indexed {
			ft.Tokenized = false
		}
		if docValues != nil {
			ft.DocValues = *docValues
		} else {
			ft.DocValues = defaultDocValues(ft)
		}
		return ft, nil
	})
}

// parseIndex accepts the boolean form and the legacy string form. The
// returned tokenized is nil when the value does not decide it.
func parseIndex(val interface{}) (bool, *bool, error) {
	if s, ok := val.(string); ok {
		switch s {
		case "no":
			return false, nil, nil
		case "not_analyzed":
			t := false
			return true, &t, nil
		case "analyzed":
			t := true
			return true, &t, nil
		}
	}
	b, err := parseBool(val)
	if err != nil {
		return false, nil, err
	}
	return b, nil, nil
}

func parseDynamic(val interface{}) (string, error) {
	if s, ok := val.(string); ok && s == "strict" {
		return s, nil
	}
	b, err := parseBool(val)
	if err != nil {
		return "", err
	}
	return strconv.FormatBool(b), nil
}

func parseBool(val interface{}) (bool, error) {
	if val == nil {
		return false, fmt.Errorf("invalid bool value null")
	}
	_val := reflect.ValueOf(val)
	switch _val.Kind() {
	case reflect.String:
		switch _val.String() {
		case "true":
			return true, nil
		case "false":
			return false, nil
		}
		return false, fmt.Errorf("invalid bool value %s", _val.String())
	case reflect.Bool:
		return _val.Bool(), nil
	default:
		return false, fmt.Errorf("invalid bool value %v", val)
	}
}

func parseBoolPtr(val interface{}) (*bool, error) {
	b, err := parseBool(val)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func parseString(val interface{}) (string, error) {
	s, ok := val.(string)
	if !ok {
		return "", fmt.Errorf("invalid string value %v", val)
	}
	return s, nil
}

func parseFloat(val interface{}) (float64, error) {
	switch v := val.(type) {
	case json.Number:
		return v.Float64()
	case string:
		return strconv.ParseFloat(v, 64)
	}
	if val == nil {
		return 0, fmt.Errorf("invalid value null")
	}
	_val := reflect.ValueOf(val)
	switch _val.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(_val.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(_val.Uint()), nil
	case reflect.Float64, reflect.Float32:
		return _val.Float(), nil
	default:
		return 0, fmt.Errorf("invalid value type %s", _val.Kind().String())
	}
}

func parseInt(val interface{}) (int64, error) {
	switch v := val.(type) {
	case json.Number:
		return v.Int64()
	case string:
		return strconv.ParseInt(v, 10, 64)
	}
	if val == nil {
		return 0, fmt.Errorf("invalid value null")
	}
	_val := reflect.ValueOf(val)
	switch _val.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return _val.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int64(_val.Uint()), nil
	case reflect.Float64, reflect.Float32:
		return int64(_val.Float()), nil
	default:
		return 0, fmt.Errorf("invalid value type %s", _val.Kind().String())
	}
}

// FieldTypes lists the field types the parser has handlers for.
func (p *Parser) FieldTypes() []string {
	p.lock.RLock()
	defer p.lock.RUnlock()
	types := make([]string, 0, len(p.typeParsers))
	for t := range p.typeParsers {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
