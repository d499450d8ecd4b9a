package metric

import (
	"io"
	"log/slog"
	"unicode/utf8"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"github.com/prometheus/common/model"

	"github.com/c360/pulse/errors"
)

// ContentType is the exposition content type served on the metrics endpoint
const ContentType = "text/plain; version=0.0.4; charset=utf-8"

// Exposer serializes registry snapshots into the Prometheus text exposition
// format. Series whose label content cannot be represented in the format are
// skipped with a warning instead of failing the whole exposition.
type Exposer struct {
	registry *Registry
	logger   *slog.Logger
}

// NewExposer creates an exposition adapter over a registry
func NewExposer(registry *Registry, logger *slog.Logger) *Exposer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exposer{
		registry: registry,
		logger:   logger,
	}
}

// Write serializes a full registry snapshot to w in text format 0.0.4
func (e *Exposer) Write(w io.Writer) error {
	families, err := e.registry.Snapshot()
	if err != nil {
		return errors.WrapTransient(err, "Exposer", "Write", "snapshot registry")
	}

	encoder := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, family := range families {
		sanitized := e.sanitizeFamily(family)
		if sanitized == nil {
			continue
		}
		if err := encoder.Encode(sanitized); err != nil {
			return errors.WrapTransient(err, "Exposer", "Write", "encode metric family")
		}
	}

	return nil
}

// sanitizeFamily drops series that cannot be serialized. It returns nil when
// the whole family must be skipped, the original family when everything is
// clean, and a filtered copy otherwise.
func (e *Exposer) sanitizeFamily(family *dto.MetricFamily) *dto.MetricFamily {
	name := family.GetName()
	if !model.IsValidMetricName(model.LabelValue(name)) {
		e.logger.Warn("skipping metric family with invalid name",
			"metric", name, "error", errors.ErrSerialization)
		return nil
	}

	clean := make([]*dto.Metric, 0, len(family.Metric))
	for _, m := range family.Metric {
		if serializable(m) {
			clean = append(clean, m)
		} else {
			e.logger.Warn("skipping series with unserializable labels",
				"metric", name, "error", errors.ErrSerialization)
		}
	}

	if len(clean) == len(family.Metric) {
		return family
	}
	if len(clean) == 0 && len(family.Metric) > 0 {
		return nil
	}

	return &dto.MetricFamily{
		Name:   family.Name,
		Help:   family.Help,
		Type:   family.Type,
		Unit:   family.Unit,
		Metric: clean,
	}
}

// serializable reports whether a series' labels survive the text format's
// quoting rules. Backslash, quote, and newline are escapable; invalid UTF-8
// is not.
func serializable(m *dto.Metric) bool {
	for _, lp := range m.Label {
		if !model.LabelName(lp.GetName()).IsValid() {
			return false
		}
		if !utf8.ValidString(lp.GetValue()) {
			return false
		}
	}
	return true
}
