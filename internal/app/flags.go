package app

import (
	"fmt"
	"strings"

	"github.com/AsociacionCA/aca-indice-climatico/internal/domain"
)

// Select resolves a comma-separated -variable flag against known names.
// "all" or "" selects every known name in order.
func Select(value string, known []string) ([]string, error) {
	value = strings.TrimSpace(value)
	if value == "" || value == "all" {
		return known, nil
	}
	var out []string
	for _, v := range strings.Split(value, ",") {
		v = strings.TrimSpace(v)
		found := false
		for _, k := range known {
			if k == v {
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("%w: unknown variable %q (want one of %s)", domain.ErrMalformedInput, v, strings.Join(known, ", "))
		}
		out = append(out, v)
	}
	return out, nil
}

// OptionalPeriod parses a period flag, allowing an empty value.
func OptionalPeriod(s string) (domain.Period, error) {
	if strings.TrimSpace(s) == "" {
		return domain.Period{}, nil
	}
	return domain.ParsePeriod(s)
}
