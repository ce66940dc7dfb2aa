package entity

// ExtractedRecord is one row of the tabular dataset: a typed value per FieldSpec key.
type ExtractedRecord struct {
	SourceID        string           `json:"source_id"`
	Keys            []string         `json:"keys"`
	Values          map[string]Value `json:"values"`
	ValidationError string           `json:"validation_error,omitempty"`
}

// NewRecord returns an empty record whose column order follows specs.
func NewRecord(sourceID string, specs []FieldSpec) ExtractedRecord {
	keys := make([]string, len(specs))
	for i, s := range specs {
		keys[i] = s.Key
	}
	return ExtractedRecord{SourceID: sourceID, Keys: keys, Values: make(map[string]Value, len(specs))}
}

// Get returns the value for key, or a not-found sentinel when absent.
func (r ExtractedRecord) Get(key string) Value {
	if v, ok := r.Values[key]; ok {
		return v
	}
	return NotFound()
}

// FindingKind classifies an AnomalyFinding.
type FindingKind string

const (
	FindingNumeric     FindingKind = "numeric"
	FindingCategorical FindingKind = "categorical"
	FindingInfo        FindingKind = "info"
)

// Severity separates real outliers from informational notes.
type Severity string

const (
	SeverityAnomaly Severity = "anomaly"
	SeverityInfo    Severity = "info"
)

// AnomalyFinding is one flagged cell or informational note over the dataset.
type AnomalyFinding struct {
	Kind      FindingKind `json:"kind"`
	Severity  Severity    `json:"severity"`
	FieldKey  string      `json:"field_key,omitempty"`
	SourceID  string      `json:"source_id,omitempty"`
	Observed  string      `json:"observed_value,omitempty"`
	Reference string      `json:"reference_stat,omitempty"`
	Message   string      `json:"message"`
}
