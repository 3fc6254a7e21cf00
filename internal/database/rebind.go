package database

import "strings"

// Rebind converts $1-style placeholders to the ? form understood by the MySQL
// and SQLite drivers. Placeholders must appear in argument order, which holds
// for every query in this repository; Rebind never reorders arguments.
func Rebind(query string) string {
	var b strings.Builder
	b.Grow(len(query))
	for i := 0; i < len(query); i++ {
		c := query[i]
		if c != '$' {
			b.WriteByte(c)
			continue
		}
		j := i + 1
		for j < len(query) && query[j] >= '0' && query[j] <= '9' {
			j++
		}
		if j == i+1 {
			// A bare dollar sign, not a placeholder.
			b.WriteByte(c)
			continue
		}
		b.WriteByte('?')
		i = j - 1
	}
	return b.String()
}
