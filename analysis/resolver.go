package analysis

import (
	"sync"

	"github.com/blevesearch/bleve/analysis"
	_ "github.com/blevesearch/bleve/analysis/analyzer/keyword"
	_ "github.com/blevesearch/bleve/analysis/analyzer/simple"
	_ "github.com/blevesearch/bleve/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/registry"
	"github.com/pkg/errors"

	"github.com/tiglabs/baudschema/config"
	"github.com/tiglabs/baudschema/mapper"
)

var (
	ErrUnknownAnalyzer = errors.New("unknown analyzer")
	ErrAnalyzerExists  = errors.New("analyzer already registered")
)

type Analyzer interface {
	Analyze(input []byte) analysis.TokenStream
}

// FieldTypeSource resolves a field name to its current field type.
type FieldTypeSource interface {
	SmartNameFieldType(name string) *mapper.FieldType
}

// Resolver picks the analyzer of a field at index, search or phrase search
// time. The field type is looked up on every call so that merged mappings
// take effect immediately.
type Resolver struct {
	fields FieldTypeSource
	cfg    config.AnalysisConfig
	cache  *registry.Cache

	lock   sync.RWMutex
	custom map[string]Analyzer
}

func NewResolver(fields FieldTypeSource, cfg config.AnalysisConfig) *Resolver {
	return &Resolver{
		fields: fields,
		cfg:    cfg,
		cache:  registry.NewCache(),
		custom: make(map[string]Analyzer),
	}
}

// RegisterAnalyzer adds an analyzer next to the built in ones.
func (r *Resolver) RegisterAnalyzer(name string, a Analyzer) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	if _, ok := r.custom[name]; ok {
		return errors.Wrapf(ErrAnalyzerExists, "analyzer[%s]", name)
	}
	r.custom[name] = a
	return nil
}

func (r *Resolver) AnalyzerNamed(name string) (Analyzer, error) {
	r.lock.RLock()
	a, ok := r.custom[name]
	r.lock.RUnlock()
	if ok {
		return a, nil
	}
	ba, err := r.cache.AnalyzerNamed(name)
	if err != nil {
		return nil, errors.Wrapf(ErrUnknownAnalyzer, "analyzer[%s]: %v", name, err)
	}
	return ba, nil
}

func (r *Resolver) IndexAnalyzer(field string) (Analyzer, error) {
	return r.resolve(field, (*mapper.FieldType).IndexAnalyzerName, r.cfg.DefaultAnalyzer)
}

func (r *Resolver) SearchAnalyzer(field string) (Analyzer, error) {
	return r.resolve(field, (*mapper.FieldType).SearchAnalyzerName, r.cfg.DefaultSearchAnalyzer)
}

func (r *Resolver) SearchQuoteAnalyzer(field string) (Analyzer, error) {
	return r.resolve(field, (*mapper.FieldType).SearchQuoteAnalyzerName, r.cfg.DefaultSearchQuoteAnalyzer)
}

func (r *Resolver) resolve(field string, extract func(*mapper.FieldType) string, fallback string) (Analyzer, error) {
	name := fallback
	if ft := r.fields.SmartNameFieldType(field); ft != nil {
		if n := extract(ft); n != "" {
			name = n
		}
	}
	return r.AnalyzerNamed(name)
}
