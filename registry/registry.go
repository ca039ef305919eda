package registry

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/blevesearch/bleve/search/query"
	"github.com/pkg/errors"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/tiglabs/baudschema/config"
	"github.com/tiglabs/baudschema/mapper"
	atomic2 "github.com/tiglabs/baudschema/util/atomic"
	"github.com/tiglabs/baudschema/util/log"
)

const (
	defaultMappingSource           = `{"_default_":{}}`
	percolatorDefaultMappingSource = `{"_default_":{"properties":{"query":{"type":"object","enabled":false}}}}`
	scriptDefaultMappingSource     = `{"_default_":{"properties":{"script":{"enabled":false},"template":{"enabled":false}}}}`
)

// Registry holds the mappings of every type of one index. Merges are
// serialized; reads go to the last published Snapshot without locking.
type Registry struct {
	cfg    *config.Config
	parser *mapper.Parser

	lock   sync.Mutex
	snap   atomic.Pointer[Snapshot]
	closed *atomic2.AtomicBool

	percolatorDefault []byte

	listenerLock   sync.Mutex
	listeners      atomic.Pointer[[]listenerEntry]
	nextListenerID ListenerID

	unmapped *xsync.MapOf[string, *mapper.FieldType]
}

// MapperForType is the answer of DocumentMapperWithAutoCreate. Update is
// set when the mapping was generated and still has to be merged.
type MapperForType struct {
	Mapper *mapper.TypeMapping
	Update *mapper.Mapping
}

func New(cfg *config.Config) (*Registry, error) {
	r := &Registry{
		cfg:               cfg,
		parser:            mapper.NewParser(),
		closed:            atomic2.NewAtomicBool(false),
		percolatorDefault: []byte(percolatorDefaultMappingSource),
		unmapped:          xsync.NewMapOf[string, *mapper.FieldType](),
	}
	source := defaultMappingSource
	if cfg.IndexCfg.Name == config.ScriptIndexName {
		source = scriptDefaultMappingSource
	}
	for _, template := range []string{source, percolatorDefaultMappingSource} {
		if _, err := r.parser.Parse(mapper.DefaultMappingType, []byte(template), nil); err != nil {
			return nil, errors.Wrap(err, "invalid default mapping")
		}
	}
	r.snap.Store(emptySnapshot(mapper.NewCompressedSource([]byte(source))))

	log.Debug("index[%s] using dynamic[%v]", cfg.IndexCfg.Name, cfg.IndexCfg.Dynamic)
	if log.IsDebugEnabled() {
		log.Debug("index[%s] using default mapping source [%s], percolator mapping source [%s]", cfg.IndexCfg.Name, source, percolatorDefaultMappingSource)
	}
	return r, nil
}

// Parser returns the parser the registry builds mappings with.
func (r *Registry) Parser() *mapper.Parser {
	return r.parser
}

// Snapshot returns the current state. Callers needing several consistent
// reads should take one snapshot and query it.
func (r *Registry) Snapshot() *Snapshot {
	return r.snap.Load()
}

// Merge adds or updates the mapping of typeName. On success the returned
// mapping is the registered one: for an existing type the same pointer as
// before. On failure nothing is published.
func (r *Registry) Merge(typeName string, source []byte, applyDefault, updateAllTypes bool) (tm *mapper.TypeMapping, err error) {
	start := time.Now()
	result := resultFailed
	defer func() { r.observeMerge(result, err, start) }()

	if r.closed.Get() {
		return nil, ErrRegistryClosed
	}
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.closed.Get() {
		return nil, ErrRegistryClosed
	}

	snap := r.snap.Load()
	if typeName == mapper.DefaultMappingType {
		tm, err = r.parser.Parse(typeName, source, nil)
		if err != nil {
			return nil, err
		}
		next := snap.next()
		next.withType(tm)
		next.defaultSource = tm.Source()
		r.publish(next)
		result = resultUpdated
		return tm, nil
	}

	applyDefault = applyDefault && !snap.HasMapping(typeName)
	var template []byte
	if applyDefault {
		template = r.templateFor(snap, typeName)
	}
	candidate, err := r.parser.Parse(typeName, source, template)
	if err != nil {
		return nil, err
	}
	tm, result, err = r.mergeInternal(snap, candidate, updateAllTypes)
	return tm, err
}

func (r *Registry) MergeCompressed(typeName string, source mapper.CompressedSource, applyDefault, updateAllTypes bool) (*mapper.TypeMapping, error) {
	return r.Merge(typeName, source.Uncompressed(), applyDefault, updateAllTypes)
}

func (r *Registry) templateFor(snap *Snapshot, typeName string) []byte {
	if typeName == mapper.PercolatorTypeName {
		return r.percolatorDefault
	}
	return snap.defaultSource.Uncompressed()
}

func (r *Registry) mergeInternal(snap *Snapshot, candidate *mapper.TypeMapping, updateAllTypes bool) (*mapper.TypeMapping, string, error) {
	if err := r.validateTypeName(candidate); err != nil {
		return nil, resultFailed, err
	}
	typeName := candidate.Type()

	if existing := snap.TypeMapping(typeName); existing != nil {
		res, err := existing.Merge(candidate.Mapping(), updateAllTypes)
		if err != nil {
			return nil, resultFailed, err
		}
		if !res.Changed() {
			return existing, resultNoop, nil
		}
		objects, fields := res.Mapping().Collect()
		if err := checkFieldUniqueness(typeName, objects, fields); err != nil {
			return nil, resultFailed, err
		}
		touched := append(append([]*mapper.ObjectNode(nil), res.NewObjects...), res.UpdatedObjects...)
		if err := checkObjectsCompatibility(snap, typeName, touched, res.ChangedFields); err != nil {
			return nil, resultFailed, err
		}
		if err := snap.fieldTypes.CheckCompatibility(typeName, res.ChangedFields, updateAllTypes); err != nil {
			return nil, resultFailed, err
		}
		next := snap.next()
		next.withObjects(touched)
		next.withFields(typeName, res.ChangedFields)
		var others []*mapper.TypeMapping
		if updateAllTypes {
			var err error
			if others, err = r.propagateFieldTypes(next, typeName, res.ChangedFields); err != nil {
				return nil, resultFailed, err
			}
		}
		if err := existing.Apply(res); err != nil {
			return nil, resultFailed, err
		}
		r.publish(next)
		r.checkRoundTrip(existing)
		for _, tm := range others {
			r.checkRoundTrip(tm)
		}
		return existing, resultUpdated, nil
	}

	objects, fields := candidate.Mapping().Collect()
	if err := checkFieldUniqueness(typeName, objects, fields); err != nil {
		return nil, resultFailed, err
	}
	if err := checkObjectsCompatibility(snap, typeName, objects, fields); err != nil {
		return nil, resultFailed, err
	}
	if err := snap.fieldTypes.CheckCompatibility(typeName, fields, updateAllTypes); err != nil {
		return nil, resultFailed, err
	}

	next := snap.next()
	next.withObjects(objects)
	next.withFields(typeName, fields)
	if err := r.beforeCreate(candidate); err != nil {
		return nil, resultFailed, err
	}
	var others []*mapper.TypeMapping
	if updateAllTypes {
		var err error
		if others, err = r.propagateFieldTypes(next, typeName, fields); err != nil {
			return nil, resultFailed, err
		}
	}
	next.withType(candidate)
	r.publish(next)
	r.checkRoundTrip(candidate)
	for _, tm := range others {
		r.checkRoundTrip(tm)
	}
	return candidate, resultCreated, nil
}

// propagateFieldTypes rewrites the fields that other types share with the
// changed fields of typeName, so that every type agrees with the lookup of
// next. The rewritten types are returned; their new objects go into next.
func (r *Registry) propagateFieldTypes(next *Snapshot, typeName string, changed []*mapper.FieldNode) ([]*mapper.TypeMapping, error) {
	byName := make(map[string]*mapper.FieldType, len(changed))
	affected := make(map[string]struct{})
	for _, f := range changed {
		if mapper.IsMetadataField(f.Name()) {
			continue
		}
		byName[f.Name()] = f.FieldType()
		for _, t := range next.fieldTypes.Types(f.Name()) {
			if t != typeName {
				affected[t] = struct{}{}
			}
		}
	}
	if len(affected) == 0 {
		return nil, nil
	}
	names := make([]string, 0, len(affected))
	for t := range affected {
		names = append(names, t)
	}
	sort.Strings(names)

	var results []*mapper.MergeResult
	var updated []*mapper.TypeMapping
	for _, t := range names {
		tm := next.types[t]
		res, err := tm.UpdateFieldTypes(func(name string) *mapper.FieldType { return byName[name] })
		if err != nil {
			return nil, err
		}
		if res.Changed() {
			results = append(results, res)
			updated = append(updated, tm)
		}
	}
	for i, tm := range updated {
		if err := tm.Apply(results[i]); err != nil {
			return nil, err
		}
		next.withObjects(results[i].UpdatedObjects)
		log.Info("index[%s] updated shared field types of type[%s] from type[%s]", r.cfg.IndexCfg.Name, tm.Type(), typeName)
	}
	return updated, nil
}

func (r *Registry) publish(next *Snapshot) {
	r.snap.Store(next)
	RegisteredTypes.WithLabelValues(r.cfg.IndexCfg.Name).Set(float64(len(next.Types())))
}

// checkRoundTrip verifies that the source of an admitted mapping parses
// back into a mapping with the same source.
func (r *Registry) checkRoundTrip(tm *mapper.TypeMapping) {
	source := tm.Source()
	reparsed, err := r.parser.ParseCompressed(tm.Type(), source, nil)
	var result string
	if err != nil {
		result = err.Error()
	} else {
		if reparsed.Source().Equal(source) {
			return
		}
		result = reparsed.Source().String()
	}
	violation := &InvariantViolationError{Type: tm.Type(), Source: source.String(), Result: result}
	if r.cfg.MapperCfg.AssertSerialization {
		panic(violation)
	}
	log.Error("%v", violation)
}

// DocumentMapperWithAutoCreate returns the mapping of typeName. A missing
// type is generated from the default mapping but not registered; the
// caller merges Update when it wants to keep it.
func (r *Registry) DocumentMapperWithAutoCreate(typeName string) (*MapperForType, error) {
	snap := r.snap.Load()
	if tm := snap.TypeMapping(typeName); tm != nil {
		return &MapperForType{Mapper: tm}, nil
	}
	if !r.cfg.IndexCfg.Dynamic {
		return nil, &TypeMissingError{
			Index:  r.cfg.IndexCfg.Name,
			Type:   typeName,
			Reason: "trying to auto create mapping, but dynamic mapping is disabled",
		}
	}
	tm, err := r.parser.Parse(typeName, nil, r.templateFor(snap, typeName))
	if err != nil {
		return nil, err
	}
	return &MapperForType{Mapper: tm, Update: tm.Mapping()}, nil
}

// Close closes every mapping. Later merges fail with ErrRegistryClosed,
// reads keep answering from the last snapshot.
func (r *Registry) Close() {
	if !r.closed.CompareAndSet(false, true) {
		return
	}
	r.lock.Lock()
	defer r.lock.Unlock()
	for _, tm := range r.snap.Load().types {
		tm.Close()
	}
}

func (r *Registry) Closed() bool {
	return r.closed.Get()
}

func (r *Registry) HasMapping(typeName string) bool {
	return r.Snapshot().HasMapping(typeName)
}

func (r *Registry) Types() []string {
	return r.Snapshot().Types()
}

func (r *Registry) TypeMapping(typeName string) *mapper.TypeMapping {
	return r.Snapshot().TypeMapping(typeName)
}

func (r *Registry) DocMappers(includeDefault bool) []*mapper.TypeMapping {
	return r.Snapshot().DocMappers(includeDefault)
}

func (r *Registry) FullName(fullName string) *mapper.FieldType {
	return r.Snapshot().FullName(fullName)
}

func (r *Registry) IndexName(indexName string) *mapper.FieldType {
	return r.Snapshot().IndexName(indexName)
}

func (r *Registry) SmartNameFieldType(name string) *mapper.FieldType {
	return r.Snapshot().SmartNameFieldType(name)
}

func (r *Registry) SimpleMatchToIndexNames(pattern string) []string {
	return r.Snapshot().SimpleMatchToIndexNames(pattern)
}

func (r *Registry) ObjectMapper(path string) *mapper.ObjectNode {
	return r.Snapshot().ObjectMapper(path)
}

func (r *Registry) ResolveClosestNestedObjectMapper(fieldName string) *mapper.ObjectNode {
	return r.Snapshot().ResolveClosestNestedObjectMapper(fieldName)
}

func (r *Registry) ParentTypes() []string {
	return r.Snapshot().ParentTypes()
}

func (r *Registry) HasNested() bool {
	return r.Snapshot().HasNested()
}

func (r *Registry) DefaultMappingSource() mapper.CompressedSource {
	return r.Snapshot().DefaultMappingSource()
}

func (r *Registry) Version() uint64 {
	return r.Snapshot().Version()
}

func (r *Registry) SearchFilter(types ...string) query.Query {
	return r.Snapshot().SearchFilter(types...)
}

func IsMetadataField(name string) bool {
	return mapper.IsMetadataField(name)
}

// AllMetaFields returns a copy of the reserved metadata field names.
func AllMetaFields() []string {
	return append([]string(nil), mapper.MetaFields...)
}
