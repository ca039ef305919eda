// Package httpd exposes the mapping registry of one index over HTTP.
package httpd

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tiglabs/baudschema/config"
	"github.com/tiglabs/baudschema/mapper"
	"github.com/tiglabs/baudschema/registry"
	"github.com/tiglabs/baudschema/util/build"
	"github.com/tiglabs/baudschema/util/json"
	"github.com/tiglabs/baudschema/util/log"
	"github.com/tiglabs/baudschema/util/netutil"
)

const maxMappingBytes = 8 << 20

type Service struct {
	index    string
	registry *registry.Registry
	server   *netutil.Server
}

// New builds the admin API. gatherer backs /metrics, the default
// prometheus gatherer is used when nil.
func New(cfg *config.Config, reg *registry.Registry, gatherer prometheus.Gatherer) *Service {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	s := &Service{
		index:    cfg.IndexCfg.Name,
		registry: reg,
		server: netutil.NewServer(&netutil.ServerConfig{
			Name:      "mapping-admin",
			Addr:      cfg.HttpCfg.Addr,
			Version:   build.GetInfo().Short(),
			ConnLimit: cfg.HttpCfg.ConnLimit,
		}),
	}

	s.server.Handle(http.MethodPut, "/_mapping/type/:type", s.handlePutMapping)
	s.server.Handle(http.MethodGet, "/_mapping", s.handleGetMappings)
	s.server.Handle(http.MethodGet, "/_mapping/type/:type", s.handleGetMapping)
	s.server.Handle(http.MethodGet, "/_mapping/field/:pattern", s.handleGetFields)
	s.server.Handle(http.MethodGet, "/_types", s.handleTypes)
	s.server.Handle(http.MethodGet, "/_search_filter", s.handleSearchFilter)
	s.server.HandleHTTP(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return s
}

func (s *Service) Handler() http.Handler {
	return s.server.Handler()
}

// Run serves until Close.
func (s *Service) Run() error {
	return s.server.Run()
}

func (s *Service) Close() {
	s.server.Close()
}

func (s *Service) handlePutMapping(w http.ResponseWriter, r *http.Request, params netutil.UriParams) {
	typeName := params.ByName("type")
	applyDefault, err := queryBool(r, "apply_default", true)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	updateAllTypes, err := queryBool(r, "update_all_types", false)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxMappingBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.Wrap(err, "fail to read mapping"))
		return
	}

	tm, err := s.registry.Merge(typeName, body, applyDefault, updateAllTypes)
	if err != nil {
		log.Warn("index[%s] put mapping [%s] failed: %v", s.index, typeName, err)
		writeError(w, statusOf(err), err)
		return
	}
	source, err := decodeSource(tm)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"acknowledged": true,
		"version":      s.registry.Version(),
		"mapping":      source,
	})
}

func (s *Service) handleGetMappings(w http.ResponseWriter, r *http.Request, _ netutil.UriParams) {
	mappings := make(map[string]interface{})
	for _, tm := range s.registry.DocMappers(true) {
		source, err := decodeSource(tm)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		for k, v := range source {
			mappings[k] = v
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		s.index: map[string]interface{}{"mappings": mappings},
	})
}

func (s *Service) handleGetMapping(w http.ResponseWriter, r *http.Request, params netutil.UriParams) {
	typeName := params.ByName("type")
	tm := s.registry.TypeMapping(typeName)
	if tm == nil {
		writeError(w, http.StatusNotFound, &registry.TypeMissingError{Index: s.index, Type: typeName, Reason: "no such type"})
		return
	}
	source, err := decodeSource(tm)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, source)
}

func (s *Service) handleGetFields(w http.ResponseWriter, r *http.Request, params netutil.UriParams) {
	snap := s.registry.Snapshot()
	fields := make(map[string]*mapper.FieldType)
	for _, name := range snap.SimpleMatchToIndexNames(params.ByName("pattern")) {
		if ft := snap.SmartNameFieldType(name); ft != nil {
			fields[ft.Name] = ft
		}
	}
	writeJSON(w, http.StatusOK, fields)
}

func (s *Service) handleTypes(w http.ResponseWriter, r *http.Request, _ netutil.UriParams) {
	snap := s.registry.Snapshot()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"types":        snap.Types(),
		"parent_types": snap.ParentTypes(),
		"has_nested":   snap.HasNested(),
		"version":      snap.Version(),
	})
}

func (s *Service) handleSearchFilter(w http.ResponseWriter, r *http.Request, _ netutil.UriParams) {
	var types []string
	for _, t := range strings.Split(r.URL.Query().Get("types"), ",") {
		if t = strings.TrimSpace(t); t != "" {
			types = append(types, t)
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"types":  types,
		"filter": s.registry.SearchFilter(types...),
	})
}

func decodeSource(tm *mapper.TypeMapping) (map[string]interface{}, error) {
	source, err := json.UnmarshalObject(tm.Source().Uncompressed())
	if err != nil {
		return nil, errors.Wrapf(err, "fail to decode mapping of [%s]", tm.Type())
	}
	return source, nil
}

func queryBool(r *http.Request, name string, def bool) (bool, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, errors.Errorf("invalid value [%s] for parameter [%s]", v, name)
	}
	return b, nil
}

func statusOf(err error) int {
	var (
		nameErr     *registry.TypeNameError
		missingErr  *registry.TypeMissingError
		conflictErr *mapper.FieldConflictError
		parseErr    *mapper.MappingParseError
	)
	switch {
	case errors.Is(err, registry.ErrRegistryClosed):
		return http.StatusServiceUnavailable
	case errors.As(err, &missingErr):
		return http.StatusNotFound
	case errors.As(err, &nameErr), errors.As(err, &conflictErr), errors.As(err, &parseErr):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]interface{}{
		"error":  err.Error(),
		"status": code,
	})
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Error("fail to encode response: %v", err)
		netutil.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	w.Write(data)
}
