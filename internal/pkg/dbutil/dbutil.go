package dbutil

import (
	"regexp"
	"strings"

	"github.com/jmoiron/sqlx"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

var limitRegex = regexp.MustCompile(`(?i)LIMIT\s+\?\s*,\s*\?`)

// Finalize rewrites a gendry query for driver: "LIMIT ?,?" becomes
// "LIMIT ? OFFSET ?" and placeholders are rebound to the driver's style.
func Finalize(driver string, query string, args []interface{}) (string, []interface{}) {
	loc := limitRegex.FindStringIndex(query)
	if loc != nil {
		prefix := query[:loc[0]]
		qCount := strings.Count(prefix, "?")
		if qCount+1 < len(args) {
			args[qCount], args[qCount+1] = args[qCount+1], args[qCount]
			query = limitRegex.ReplaceAllString(query, "LIMIT ? OFFSET ?")
		}
	}
	return sqlx.Rebind(BindType(driver), query), args
}

func BindType(driver string) int {
	switch driver {
	case DriverPostgres:
		return sqlx.DOLLAR
	default:
		return sqlx.QUESTION
	}
}
