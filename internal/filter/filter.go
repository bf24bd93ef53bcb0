// Package filter builds SQL predicates from query parameters against a static
// per-entity declaration of filterable fields. Parameters that do not match a
// declared field, or whose values fail to parse, are ignored.
package filter

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

type Kind int

const (
	// Text matches with a case-insensitive substring (ILIKE).
	Text Kind = iota
	// Date matches a calendar day exactly; "<name>_from" and "<name>_to"
	// parameters add half-open range bounds on the same column.
	Date
	// Bool matches exactly.
	Bool
)

type Field struct {
	Column string
	Kind   Kind
}

// Config declares the filterable fields of one entity, keyed by the query
// parameter name exposed to clients.
type Config struct {
	Fields map[string]Field
}

const dateLayout = "2006-01-02"

// Apply renders "AND ..." clauses for every declared field present in params.
// Placeholders start at startIndex so callers can prepend their own
// predicates. The returned args line up with the placeholders.
func Apply(cfg Config, params url.Values, startIndex int) (string, []interface{}) {
	names := make([]string, 0, len(cfg.Fields))
	for name := range cfg.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	var clauses []string
	var args []interface{}
	index := startIndex

	add := func(clause string, value interface{}) {
		clauses = append(clauses, fmt.Sprintf(clause, index))
		args = append(args, value)
		index++
	}

	for _, name := range names {
		field := cfg.Fields[name]
		switch field.Kind {
		case Text:
			if v := params.Get(name); v != "" {
				add("AND "+field.Column+" ILIKE $%d", "%"+v+"%")
			}
		case Bool:
			if v := params.Get(name); v != "" {
				if parsed, err := strconv.ParseBool(v); err == nil {
					add("AND "+field.Column+" = $%d", parsed)
				}
			}
		case Date:
			if v := params.Get(name); v != "" {
				if day, err := time.Parse(dateLayout, v); err == nil {
					add("AND "+field.Column+" >= $%d", day)
					add("AND "+field.Column+" < $%d", day.Add(24*time.Hour))
				}
			}
			if v := params.Get(name + "_from"); v != "" {
				if from, err := time.Parse(dateLayout, v); err == nil {
					add("AND "+field.Column+" >= $%d", from)
				}
			}
			if v := params.Get(name + "_to"); v != "" {
				if to, err := time.Parse(dateLayout, v); err == nil {
					add("AND "+field.Column+" < $%d", to.Add(24*time.Hour))
				}
			}
		}
	}

	return strings.Join(clauses, "\n"), args
}
