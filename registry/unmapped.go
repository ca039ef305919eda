package registry

import (
	"github.com/pkg/errors"

	"github.com/tiglabs/baudschema/mapper"
)

const unmappedFieldPrefix = "__anonymous_"

// UnmappedFieldType returns a field type of the given kind that belongs to
// no mapping, used to query fields no type declares. Results are memoized;
// racing callers may each build one and the last stored wins.
func (r *Registry) UnmappedFieldType(fieldType string) (*mapper.FieldType, error) {
	if ft, ok := r.unmapped.Load(fieldType); ok {
		return ft, nil
	}
	tp, ok := r.parser.TypeParser(fieldType)
	if !ok {
		return nil, errors.Wrapf(ErrUnknownFieldType, "no mapper found for type [%s]", fieldType)
	}
	ft, err := tp.Parse(unmappedFieldPrefix+fieldType, map[string]interface{}{"type": fieldType})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to build unmapped field type [%s]", fieldType)
	}
	r.unmapped.Store(fieldType, ft)
	return ft, nil
}
