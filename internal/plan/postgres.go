package plan

import (
	"encoding/json"
	"errors"
	"fmt"
)

type pgExplain []struct {
	Plan          pgNode  `json:"Plan"`
	PlanningTime  float64 `json:"Planning Time"`
	ExecutionTime float64 `json:"Execution Time"`
}

type pgNode struct {
	NodeType     string   `json:"Node Type"`
	RelationName string   `json:"Relation Name"`
	IndexName    string   `json:"Index Name"`
	PlanRows     int64    `json:"Plan Rows"`
	ActualRows   int64    `json:"Actual Rows"`
	Plans        []pgNode `json:"Plans"`
}

// ParsePostgres parses the output of EXPLAIN (ANALYZE, FORMAT JSON).
func ParsePostgres(raw []byte) (*Report, error) {
	var doc pgExplain
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse postgres explain: %w", err)
	}
	if len(doc) == 0 {
		return nil, errors.New("parse postgres explain: empty document")
	}

	root := doc[0]
	r := &Report{
		Engine:        "postgres",
		EstimatedRows: root.Plan.PlanRows,
		ActualRows:    root.Plan.ActualRows,
		PlanningMS:    root.PlanningTime,
		ExecutionMS:   root.ExecutionTime,
		Raw:           string(raw),
	}
	walkPGNode(root.Plan, r)
	return r, nil
}

func walkPGNode(node pgNode, r *Report) {
	r.NodeTypes = appendUnique(r.NodeTypes, node.NodeType)
	r.IndexesUsed = appendUnique(r.IndexesUsed, node.IndexName)
	if node.NodeType == "Seq Scan" {
		r.TableScans = appendUnique(r.TableScans, node.RelationName)
	}
	if node.ActualRows > r.PeakActualRows {
		r.PeakActualRows = node.ActualRows
	}
	for _, child := range node.Plans {
		walkPGNode(child, r)
	}
}
