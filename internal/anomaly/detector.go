// Package anomaly flags numeric outliers and rare categorical values in the extracted dataset.
package anomaly

import (
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strconv"

	"github.com/joseph-ayodele/contracts-analyzer/internal/entity"
)

// MissingCategory is the bucket sentinel values fall into for categorical analysis.
const MissingCategory = "(missing)"

type Config struct {
	StdDevs           float64  // outlier band half-width in standard deviations, default 2
	RareThreshold     float64  // categories below this relative frequency are rare, default 0.10
	MinRows           int      // categorical analysis needs more rows than this, default 5
	MissingDominance  float64  // above this share the missing category is never flagged, default 0.5
	CategoricalFields []string // explicit list; empty means every ternary/category column
}

// DefaultConfig returns the thresholds used when none are configured.
func DefaultConfig() Config {
	return Config{StdDevs: 2, RareThreshold: 0.10, MinRows: 5, MissingDominance: 0.5}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.StdDevs <= 0 {
		c.StdDevs = d.StdDevs
	}
	if c.RareThreshold <= 0 {
		c.RareThreshold = d.RareThreshold
	}
	if c.MinRows <= 0 {
		c.MinRows = d.MinRows
	}
	if c.MissingDominance <= 0 {
		c.MissingDominance = d.MissingDominance
	}
	return c
}

type Detector struct {
	cfg    Config
	logger *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{cfg: cfg.withDefaults(), logger: logger}
}

// Detect is a pure function of records. It never returns an empty slice: a run without
// findings yields a single informational entry.
func (d *Detector) Detect(records []entity.ExtractedRecord) []entity.AnomalyFinding {
	keys := columnOrder(records)

	var findings []entity.AnomalyFinding
	for _, key := range keys {
		if isNumericColumn(records, key) {
			findings = append(findings, d.numeric(records, key)...)
		}
	}
	for _, key := range d.categoricalColumns(records, keys) {
		findings = append(findings, d.categorical(records, key)...)
	}

	anomalies := 0
	for _, f := range findings {
		if f.Severity == entity.SeverityAnomaly {
			anomalies++
		}
	}
	d.logger.Info("anomaly.detect.ok", "records", len(records), "findings", len(findings), "anomalies", anomalies)

	if len(findings) == 0 {
		return []entity.AnomalyFinding{{
			Kind:     entity.FindingInfo,
			Severity: entity.SeverityInfo,
			Message:  "no anomalies",
		}}
	}
	return findings
}

func (d *Detector) numeric(records []entity.ExtractedRecord, key string) []entity.AnomalyFinding {
	type obs struct {
		source string
		value  float64
	}
	var xs []obs
	for _, r := range records {
		if f, ok := r.Get(key).Float(); ok {
			xs = append(xs, obs{r.SourceID, f})
		}
	}

	switch len(xs) {
	case 0:
		return nil
	case 1:
		return []entity.AnomalyFinding{{
			Kind:     entity.FindingInfo,
			Severity: entity.SeverityInfo,
			FieldKey: key,
			SourceID: xs[0].source,
			Observed: formatFloat(xs[0].value),
			Message:  fmt.Sprintf("field %q has a single numeric observation; no deviation test possible", key),
		}}
	}

	values := make([]float64, len(xs))
	for i, o := range xs {
		values[i] = o.value
	}
	mean, std := MeanStd(values)
	if std == 0 {
		return nil
	}

	lo, hi := mean-d.cfg.StdDevs*std, mean+d.cfg.StdDevs*std
	ref := fmt.Sprintf("mean=%s std=%s band=[%s, %s]", formatFloat(mean), formatFloat(std), formatFloat(lo), formatFloat(hi))

	var out []entity.AnomalyFinding
	for _, o := range xs {
		if o.value >= lo && o.value <= hi {
			continue
		}
		out = append(out, entity.AnomalyFinding{
			Kind:      entity.FindingNumeric,
			Severity:  entity.SeverityAnomaly,
			FieldKey:  key,
			SourceID:  o.source,
			Observed:  formatFloat(o.value),
			Reference: ref,
			Message: fmt.Sprintf("%s = %s is %.1f standard deviations from the mean",
				key, formatFloat(o.value), math.Abs(o.value-mean)/std),
		})
	}
	return out
}

func (d *Detector) categorical(records []entity.ExtractedRecord, key string) []entity.AnomalyFinding {
	total := len(records)
	if total <= d.cfg.MinRows {
		return nil
	}

	counts := map[string]int{}
	var order []string
	for _, r := range records {
		v := r.Get(key)
		cat := v.String()
		if v.IsSentinel() || cat == "" {
			cat = MissingCategory
		}
		if _, ok := counts[cat]; !ok {
			order = append(order, cat)
		}
		counts[cat]++
	}

	missingShare := float64(counts[MissingCategory]) / float64(total)

	var out []entity.AnomalyFinding
	for _, cat := range order {
		share := float64(counts[cat]) / float64(total)
		if share >= d.cfg.RareThreshold {
			continue
		}
		if cat == MissingCategory && missingShare > d.cfg.MissingDominance {
			continue
		}
		ref := fmt.Sprintf("frequency=%.1f%% threshold=%.1f%%", share*100, d.cfg.RareThreshold*100)
		for _, r := range records {
			v := r.Get(key)
			rc := v.String()
			if v.IsSentinel() || rc == "" {
				rc = MissingCategory
			}
			if rc != cat {
				continue
			}
			out = append(out, entity.AnomalyFinding{
				Kind:      entity.FindingCategorical,
				Severity:  entity.SeverityAnomaly,
				FieldKey:  key,
				SourceID:  r.SourceID,
				Observed:  cat,
				Reference: ref,
				Message:   fmt.Sprintf("%s = %q appears in %d of %d documents", key, cat, counts[cat], total),
			})
		}
	}
	return out
}

func (d *Detector) categoricalColumns(records []entity.ExtractedRecord, keys []string) []string {
	if len(d.cfg.CategoricalFields) > 0 {
		return d.cfg.CategoricalFields
	}
	var out []string
	for _, key := range keys {
		for _, r := range records {
			if r.Get(key).Kind == entity.KindCategory {
				out = append(out, key)
				break
			}
		}
	}
	return out
}

// MeanStd returns the mean and sample standard deviation (n-1) of xs.
func MeanStd(xs []float64) (mean, std float64) {
	n := float64(len(xs))
	if n == 0 {
		return 0, 0
	}
	for _, x := range xs {
		mean += x
	}
	mean /= n
	if n < 2 {
		return mean, 0
	}
	var ss float64
	for _, x := range xs {
		ss += (x - mean) * (x - mean)
	}
	return mean, math.Sqrt(ss / (n - 1))
}

// columnOrder is the union of record keys in first-seen order.
func columnOrder(records []entity.ExtractedRecord) []string {
	seen := map[string]struct{}{}
	var keys []string
	for _, r := range records {
		rk := r.Keys
		if len(rk) == 0 {
			for k := range r.Values {
				rk = append(rk, k)
			}
			sort.Strings(rk)
		}
		for _, k := range rk {
			if _, ok := seen[k]; !ok {
				seen[k] = struct{}{}
				keys = append(keys, k)
			}
		}
	}
	return keys
}

func isNumericColumn(records []entity.ExtractedRecord, key string) bool {
	for _, r := range records {
		if r.Get(key).IsNumeric() {
			return true
		}
	}
	return false
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
