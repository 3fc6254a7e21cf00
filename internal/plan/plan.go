// Package plan reduces engine-specific EXPLAIN output to a comparable,
// engine-neutral summary.
package plan

// Report summarizes one plan capture for a single query variant.
type Report struct {
	Engine        string   `json:"engine"`
	Variant       string   `json:"variant,omitempty"`
	Indexed       bool     `json:"indexed"`
	NodeTypes     []string `json:"node_types,omitempty"`
	IndexesUsed   []string `json:"indexes_used,omitempty"`
	TableScans    []string `json:"table_scans,omitempty"`
	EstimatedRows int64    `json:"estimated_rows,omitempty"`
	ActualRows    int64    `json:"actual_rows,omitempty"`
	// PeakActualRows is the largest actual row count seen on any plan node.
	// The shared-column join shows up here as row multiplication long before
	// the aggregate collapses it back to one row.
	PeakActualRows int64   `json:"peak_actual_rows,omitempty"`
	PlanningMS     float64 `json:"planning_ms,omitempty"`
	ExecutionMS    float64 `json:"execution_ms,omitempty"`
	Raw            string  `json:"raw,omitempty"`
}

// UsesIndex reports whether the plan touched the named index.
func (r *Report) UsesIndex(name string) bool {
	for _, idx := range r.IndexesUsed {
		if idx == name {
			return true
		}
	}
	return false
}

// ScansTable reports whether the plan contains a full scan of the named table.
func (r *Report) ScansTable(name string) bool {
	for _, t := range r.TableScans {
		if t == name {
			return true
		}
	}
	return false
}

// Insight levels.
const (
	LevelInfo    = "INFO"
	LevelWarning = "WARNING"
	LevelSuccess = "SUCCESS"
)

// Insight categories.
const (
	CategoryIndexUsage  = "index_usage"
	CategoryUnusedIndex = "unused_index"
	CategorySeqScan     = "seq_scan"
	CategoryRowFanout   = "row_fanout"
	CategorySpeedup     = "speedup"
)

// Insight is a human-readable observation derived from plan summaries or
// benchmark results.
type Insight struct {
	Level    string `json:"level"`
	Category string `json:"category"`
	Message  string `json:"message"`
}

func appendUnique(list []string, v string) []string {
	if v == "" {
		return list
	}
	for _, have := range list {
		if have == v {
			return list
		}
	}
	return append(list, v)
}
