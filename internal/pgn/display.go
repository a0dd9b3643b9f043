package pgn

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// NormalizeTimeControl turns a bare seconds value into "<minutes> min".
// Anything else ("600+5", "1/259200", "-") is returned unchanged.
func NormalizeTimeControl(tc string) string {
	v := strings.TrimSpace(tc)
	if v == "" {
		return tc
	}
	for i := 0; i < len(v); i++ {
		if v[i] < '0' || v[i] > '9' {
			return tc
		}
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return tc
	}
	return fmt.Sprintf("%d min", n/60)
}

// AnonymizeTermination replaces every username key of aliases with its alias,
// ignoring case. Longer names are replaced first so a name that contains
// another one is not split.
func AnonymizeTermination(termination string, aliases map[string]string) string {
	if strings.TrimSpace(termination) == "" || len(aliases) == 0 {
		return termination
	}
	names := make([]string, 0, len(aliases))
	for name := range aliases {
		if strings.TrimSpace(name) != "" {
			names = append(names, name)
		}
	}
	sort.Slice(names, func(i, j int) bool {
		if len(names[i]) != len(names[j]) {
			return len(names[i]) > len(names[j])
		}
		return names[i] < names[j]
	})
	out := termination
	for _, name := range names {
		re := regexp.MustCompile(`(?i)` + regexp.QuoteMeta(strings.TrimSpace(name)))
		out = re.ReplaceAllLiteralString(out, aliases[name])
	}
	return out
}
