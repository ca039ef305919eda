package registry

import (
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/tiglabs/baudschema/mapper"
)

const (
	resultCreated = "created"
	resultUpdated = "updated"
	resultNoop    = "noop"
	resultFailed  = "failed"
)

var MergeResults = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "baud",
	Subsystem: "mapping",
	Name:      "merges",
}, []string{"index", "result"})

var MergeFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "baud",
	Subsystem: "mapping",
	Name:      "merge_failures",
}, []string{"index", "kind"})

var MergeDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "baud",
	Subsystem: "mapping",
	Name:      "merge_duration_seconds",
	Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
}, []string{"index"})

var RegisteredTypes = prometheus.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "baud",
	Subsystem: "mapping",
	Name:      "types",
}, []string{"index"})

var DotTypeWarnings = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "baud",
	Subsystem: "mapping",
	Name:      "dot_type_warnings",
}, []string{"index"})

// RegisterMetrics registers the mapping metrics with reg.
func RegisterMetrics(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{MergeResults, MergeFailures, MergeDuration, RegisteredTypes, DotTypeWarnings} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func failureKind(err error) string {
	var (
		parseErr    *mapper.MappingParseError
		conflictErr *mapper.FieldConflictError
		nameErr     *TypeNameError
		missingErr  *TypeMissingError
		listenerErr *listenerError
	)
	switch {
	case errors.Is(err, ErrRegistryClosed):
		return "closed"
	case errors.As(err, &parseErr):
		return "parse"
	case errors.As(err, &conflictErr):
		return "conflict"
	case errors.As(err, &nameErr):
		return "type_name"
	case errors.As(err, &missingErr):
		return "missing"
	case errors.As(err, &listenerErr):
		return "listener"
	}
	return "other"
}

func (r *Registry) observeMerge(result string, err error, start time.Time) {
	index := r.cfg.IndexCfg.Name
	MergeDuration.WithLabelValues(index).Observe(time.Since(start).Seconds())
	if err != nil {
		MergeResults.WithLabelValues(index, resultFailed).Inc()
		MergeFailures.WithLabelValues(index, failureKind(err)).Inc()
		return
	}
	MergeResults.WithLabelValues(index, result).Inc()
}
