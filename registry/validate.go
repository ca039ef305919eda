package registry

import (
	"strings"
	"unicode/utf8"

	"github.com/tiglabs/baudschema/config"
	"github.com/tiglabs/baudschema/mapper"
	"github.com/tiglabs/baudschema/util/log"
)

const maxTypeNameLength = 255

func (r *Registry) validateTypeName(tm *mapper.TypeMapping) error {
	name := tm.Type()
	strict := r.cfg.IndexCfg.CreatedVersion.OnOrAfter(config.V2_0_0_Beta1)
	if name == "" {
		return typeNameError(name, "mapping type name is empty")
	}
	if n := utf8.RuneCountInString(name); strict && n > maxTypeNameLength {
		return typeNameError(name, "mapping type name [%s] is too long; limit is length %d but was [%d]", name, maxTypeNameLength, n)
	}
	if name[0] == '_' {
		return typeNameError(name, "mapping type name [%s] can't start with '_'", name)
	}
	if strings.Contains(name, "#") {
		return typeNameError(name, "mapping type name [%s] should not include '#' in it", name)
	}
	if strings.Contains(name, ",") {
		return typeNameError(name, "mapping type name [%s] should not include ',' in it", name)
	}
	if strict && tm.ParentType() == name {
		return typeNameError(name, "The [_parent.type] option can't point to the same type")
	}
	if name[0] == '.' && name != mapper.PercolatorTypeName {
		if strict {
			return typeNameError(name, "mapping type name [%s] must not start with a '.'", name)
		}
		log.Warn("Type [%s] starts with a '.', it is recommended not to start a type name with a '.'", name)
		DotTypeWarnings.WithLabelValues(r.cfg.IndexCfg.Name).Inc()
	}
	return nil
}

// checkFieldUniqueness rejects a tree declaring an object path twice, a
// field twice, or one name as both.
func checkFieldUniqueness(typeName string, objects []*mapper.ObjectNode, fields []*mapper.FieldNode) error {
	objectPaths := make(map[string]struct{}, len(objects))
	for _, o := range objects {
		if _, ok := objectPaths[o.FullPath()]; ok {
			return mapper.NewFieldConflictError(typeName, o.FullPath(),
				"Object mapper ["+o.FullPath()+"] is defined twice in mapping for type ["+typeName+"]")
		}
		objectPaths[o.FullPath()] = struct{}{}
	}
	seen := make(map[uint64]struct{}, len(fields))
	names := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if _, ok := seen[f.ID()]; ok {
			continue
		}
		seen[f.ID()] = struct{}{}
		if _, ok := objectPaths[f.Name()]; ok {
			return mapper.NewFieldConflictError(typeName, f.Name(),
				"Field ["+f.Name()+"] is defined both as an object and a field in ["+typeName+"]")
		}
		if _, ok := names[f.Name()]; ok {
			return mapper.NewFieldConflictError(typeName, f.Name(),
				"Field ["+f.Name()+"] is defined twice in ["+typeName+"]")
		}
		names[f.Name()] = struct{}{}
	}
	return nil
}

// checkObjectsCompatibility simulates merging objects into the objects
// already registered at the same paths and rejects names used as an object
// in one type and as a field in another.
func checkObjectsCompatibility(s *Snapshot, typeName string, objects []*mapper.ObjectNode, fields []*mapper.FieldNode) error {
	for _, o := range objects {
		if cur, ok := s.objectPaths[o.FullPath()]; ok {
			if err := cur.CheckMerge(o); err != nil {
				err.(*mapper.FieldConflictError).Type = typeName
				return err
			}
		}
		if s.fieldTypes.Get(o.FullPath()) != nil {
			return mapper.NewFieldConflictError(typeName, o.FullPath(),
				"Object ["+o.FullPath()+"] is defined as an object in mapping ["+typeName+"] but this name is already used for a field in other types")
		}
	}
	for _, f := range fields {
		if _, ok := s.objectPaths[f.Name()]; ok {
			return mapper.NewFieldConflictError(typeName, f.Name(),
				"Field ["+f.Name()+"] is defined as a field in mapping ["+typeName+"] but this name is already used for an object in other types")
		}
	}
	return nil
}
