package dependency

import (
	"regexp"
	"strings"
)

var (
	tableRef    = regexp.MustCompile(`(?i)\b(?:FROM|JOIN)\s+([a-zA-Z_][a-zA-Z0-9_]*)`)
	selectList  = regexp.MustCompile(`(?is)\bSELECT\s+(.*?)\s+FROM\b`)
	whereClause = regexp.MustCompile(`(?i)\bWHERE\b`)
	joinClause  = regexp.MustCompile(`(?i)\bJOIN\b`)
)

// scanTables extracts every table name following FROM or JOIN, in the
// order they appear, deduplicated.
func scanTables(sql string) []string {
	matches := tableRef.FindAllStringSubmatch(sql, -1)
	seen := make(map[string]struct{}, len(matches))
	var out []string
	for _, m := range matches {
		name := m[1]
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}

// scanSelectColumns extracts the SELECT list's column names, stripping
// table qualifiers and aliases. A "*" or "table.*" select list yields no
// columns, so the caller falls back to whole-table/related-table
// classification.
func scanSelectColumns(sql string) []string {
	m := selectList.FindStringSubmatch(sql)
	if m == nil {
		return nil
	}
	list := m[1]
	parts := strings.Split(list, ",")
	var out []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		// Drop an " AS alias" or bare trailing alias.
		if i := indexKeyword(p, "AS"); i >= 0 {
			p = strings.TrimSpace(p[:i])
		} else if fields := strings.Fields(p); len(fields) > 1 {
			p = fields[0]
		}
		if p == "*" || strings.HasSuffix(p, ".*") {
			return nil
		}
		if i := strings.LastIndex(p, "."); i >= 0 {
			p = p[i+1:]
		}
		out = append(out, p)
	}
	return out
}

func indexKeyword(s, kw string) int {
	re := regexp.MustCompile(`(?i)\s` + kw + `\s`)
	loc := re.FindStringIndex(" " + s + " ")
	if loc == nil {
		return -1
	}
	return loc[0] - 1
}

func scanHasWhere(sql string) bool { return whereClause.MatchString(sql) }
func scanHasJoin(sql string) bool  { return joinClause.MatchString(sql) }
