package plan

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
)

var (
	mysqlIndexRE  = regexp.MustCompile(`\busing ([A-Za-z0-9_]+)`)
	mysqlScanRE   = regexp.MustCompile(`\bTable scan on ([A-Za-z0-9_]+)`)
	mysqlCostRE   = regexp.MustCompile(`\(cost=[0-9.eE+]+ rows=([0-9.]+)\)`)
	mysqlActualRE = regexp.MustCompile(`\(actual time=[0-9.]+\.\.([0-9.]+) rows=([0-9]+) loops=([0-9]+)\)`)
)

// ParseMySQL parses the tree text emitted by MySQL 8's EXPLAIN ANALYZE.
func ParseMySQL(text string) (*Report, error) {
	r := &Report{Engine: "mysql", Raw: text}

	sawNode := false
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "-> ") {
			continue
		}
		node := strings.TrimPrefix(trimmed, "-> ")

		// The node header is everything before the cost/actual annotations.
		header := node
		if cut := strings.Index(header, "  ("); cut >= 0 {
			header = strings.TrimSpace(header[:cut])
		} else if cut := strings.Index(header, " (cost="); cut >= 0 {
			header = strings.TrimSpace(header[:cut])
		}
		r.NodeTypes = appendUnique(r.NodeTypes, header)

		if m := mysqlIndexRE.FindStringSubmatch(node); m != nil {
			r.IndexesUsed = appendUnique(r.IndexesUsed, m[1])
		}
		if m := mysqlScanRE.FindStringSubmatch(node); m != nil {
			r.TableScans = appendUnique(r.TableScans, m[1])
		}

		if m := mysqlActualRE.FindStringSubmatch(node); m != nil {
			rows, _ := strconv.ParseInt(m[2], 10, 64)
			if !sawNode {
				r.ActualRows = rows
				if t, err := strconv.ParseFloat(m[1], 64); err == nil {
					r.ExecutionMS = t
				}
			}
			if rows > r.PeakActualRows {
				r.PeakActualRows = rows
			}
		}
		if m := mysqlCostRE.FindStringSubmatch(node); m != nil && !sawNode {
			if est, err := strconv.ParseFloat(m[1], 64); err == nil {
				r.EstimatedRows = int64(est)
			}
		}
		sawNode = true
	}

	if !sawNode {
		return nil, errors.New("parse mysql explain: no plan nodes in output")
	}
	return r, nil
}
