package store

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	apperrors "github.com/foreman-dev/foreman/pkg/errors"
)

var placeholderPattern = regexp.MustCompile(`!p[0-9]+`)

// Sanitize renders an argument for direct substitution into a SQL query.
// Integers pass through verbatim, empty strings become NULL, and single
// quotes are doubled.
func Sanitize(arg any) (string, error) {
	switch v := arg.(type) {
	case int:
		return strconv.Itoa(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case string:
		if v == "" {
			return "NULL", nil
		}
		return "'" + strings.ReplaceAll(v, "'", "''") + "'", nil
	default:
		return "", apperrors.New(apperrors.ErrCodeQueryFormat,
			fmt.Sprintf("unsupported query argument type %T", arg), nil)
	}
}

// Format substitutes sanitized arguments into a query.
//
// For argument i (1-based), every occurrence of !pi in the query string is
// replaced with the sanitized rendering of that argument:
//
//	// Equivalent to "SELECT * FROM t WHERE id = 5 AND count = 5"
//	Format("SELECT * FROM t WHERE id = !p1 AND count = !p1", 5)
//
// The distinct placeholders must be exactly !p1 through !pN for N arguments.
func Format(query string, args ...any) (string, error) {
	distinct := map[string]struct{}{}
	for _, m := range placeholderPattern.FindAllString(query, -1) {
		distinct[m] = struct{}{}
	}
	if len(distinct) != len(args) {
		return "", apperrors.New(apperrors.ErrCodeQueryFormat,
			fmt.Sprintf("expected %d query arguments but received %d", len(distinct), len(args)), nil)
	}
	for i := 1; i <= len(args); i++ {
		if _, ok := distinct[fmt.Sprintf("!p%d", i)]; !ok {
			return "", apperrors.New(apperrors.ErrCodeQueryFormat,
				fmt.Sprintf("query placeholders are not contiguous: !p%d is missing", i), nil)
		}
	}

	// Substitute higher-numbered placeholders first so !p1 never eats the
	// prefix of !p10
	formatted := query
	for i := len(args) - 1; i >= 0; i-- {
		sanitized, err := Sanitize(args[i])
		if err != nil {
			return "", err
		}
		formatted = strings.ReplaceAll(formatted, fmt.Sprintf("!p%d", i+1), sanitized)
	}

	return formatted, nil
}
