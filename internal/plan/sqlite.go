package plan

import (
	"regexp"
	"strings"
)

var (
	sqliteIndexRE = regexp.MustCompile(`USING (?:COVERING )?INDEX ([A-Za-z0-9_]+)`)
	sqliteScanRE  = regexp.MustCompile(`^SCAN (?:TABLE )?([A-Za-z0-9_]+)`)
)

// ParseSQLite summarizes the detail rows returned by EXPLAIN QUERY PLAN.
// SQLite reports no row counts or timings, only access paths.
func ParseSQLite(details []string) *Report {
	r := &Report{Engine: "sqlite", Raw: strings.Join(details, "\n")}
	for _, detail := range details {
		detail = strings.TrimSpace(detail)
		if detail == "" {
			continue
		}
		r.NodeTypes = appendUnique(r.NodeTypes, detail)
		if m := sqliteIndexRE.FindStringSubmatch(detail); m != nil {
			r.IndexesUsed = appendUnique(r.IndexesUsed, m[1])
		}
		if m := sqliteScanRE.FindStringSubmatch(detail); m != nil {
			r.TableScans = appendUnique(r.TableScans, m[1])
		}
	}
	return r
}
