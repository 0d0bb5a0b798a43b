package services

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/Reutertu3/lolisafe/repositories"

	"gorm.io/gorm"
)

// userResolver is the external user lookup consumed during filter
// translation.
type userResolver interface {
	IDsByUsernames(ctx context.Context, tx *gorm.DB, usernames []string) (map[string]uint, error)
}

var filterValueKeywords = map[string]struct{}{
	"user": {},
	"ip":   {},
}

var filterRangeKeywords = map[string]struct{}{
	"date":   {},
	"expiry": {},
}

type orderByAlias struct {
	column    string
	nullsLast bool
}

// orderByAliases remaps filter-language column names to storage fields.
// Nullable columns get null-last placement.
var orderByAliases = map[string]orderByAlias{
	"id":       {column: "id"},
	"name":     {column: "name"},
	"original": {column: "original"},
	"size":     {column: "size"},
	"date":     {column: "timestamp"},
	"expiry":   {column: "expires_at", nullsLast: true},
	"user":     {column: "user_id", nullsLast: true},
	"ip":       {column: "ip", nullsLast: true},
}

// Matches [YYYY][/MM][/DD] [HH][:MM][:SS], every component after the year
// optional left-to-right.
var filterDatePattern = regexp.MustCompile(
	`^(\d{4})(?:/(\d{1,2})(?:/(\d{1,2}))?)?(?: (\d{1,2})(?::(\d{1,2})(?::(\d{1,2}))?)?)?$`)

var rangeContinuation = regexp.MustCompile(`^[\d:/-]+$`)

// translateFilter parses the listing filter language into a FilterPredicate.
// Malformed range endpoints become nil (unbounded); the only hard failure is
// a username that matches no account.
func translateFilter(ctx context.Context, text string, clientOffsetMinutes int, users userResolver) (repositories.FilterPredicate, error) {
	var pred repositories.FilterPredicate

	includeValues := map[string]map[string]struct{}{}
	excludeValues := map[string]map[string]struct{}{}
	matchNil := map[string]bool{}
	excludeNil := map[string]bool{}
	seenPatterns := map[string]struct{}{}
	seenSortColumns := map[string]struct{}{}

	tokens := strings.Fields(text)
	for i := 0; i < len(tokens); i++ {
		token := tokens[i]
		negated := strings.HasPrefix(token, "-") && len(token) > 1
		body := strings.TrimPrefix(token, "-")

		key, value, isPair := strings.Cut(body, ":")
		if !isPair || key == "" {
			addPattern(&pred, seenPatterns, body, negated)
			continue
		}

		if _, ok := filterRangeKeywords[key]; ok {
			// Range values may carry a space-separated time component that
			// the whitespace tokenizer split off.
			for i+1 < len(tokens) && rangeContinuation.MatchString(tokens[i+1]) {
				value += " " + tokens[i+1]
				i++
			}
			if negated {
				continue
			}
			r := parseFilterRange(value, clientOffsetMinutes)
			if key == "date" {
				pred.Date = r
			} else {
				pred.Expiry = r
			}
			continue
		}

		if _, ok := filterValueKeywords[key]; ok {
			if value == "-" {
				if negated {
					excludeNil[key] = true
				} else {
					matchNil[key] = true
				}
				continue
			}
			target := includeValues
			if negated {
				target = excludeValues
			}
			if target[key] == nil {
				target[key] = map[string]struct{}{}
			}
			target[key][value] = struct{}{}
			continue
		}

		if key == "orderby" && !negated {
			if sortKey, ok := parseOrderBy(value); ok {
				if _, dup := seenSortColumns[sortKey.Column]; !dup {
					seenSortColumns[sortKey.Column] = struct{}{}
					pred.Sort = append(pred.Sort, sortKey)
				}
			}
			continue
		}

		// Unknown keyword: the whole token is a filename pattern.
		addPattern(&pred, seenPatterns, body, negated)
	}

	pred.MatchNilUser = matchNil["user"]
	pred.ExcludeNilUser = excludeNil["user"]
	pred.MatchNilIP = matchNil["ip"]
	pred.ExcludeNilIP = excludeNil["ip"]
	pred.IPs = sortedKeys(includeValues["ip"])
	pred.ExcludeIPs = sortedKeys(excludeValues["ip"])

	includeNames := sortedKeys(includeValues["user"])
	excludeNames := sortedKeys(excludeValues["user"])
	if len(includeNames) > 0 || len(excludeNames) > 0 {
		all := append(append([]string(nil), includeNames...), excludeNames...)
		resolved, err := users.IDsByUsernames(ctx, nil, all)
		if err != nil {
			return pred, newStoreError("failed to resolve usernames", err)
		}

		var unmatched []string
		for _, name := range all {
			if _, ok := resolved[name]; !ok {
				unmatched = append(unmatched, name)
			}
		}
		if len(unmatched) > 0 {
			return pred, newPolicyError("no users found with username(s): " + strings.Join(unmatched, ", "))
		}

		for _, name := range includeNames {
			pred.UserIDs = append(pred.UserIDs, resolved[name])
		}
		for _, name := range excludeNames {
			pred.ExcludeUserIDs = append(pred.ExcludeUserIDs, resolved[name])
		}
	}

	return pred, nil
}

func addPattern(pred *repositories.FilterPredicate, seen map[string]struct{}, pattern string, negated bool) {
	if pattern == "" {
		return
	}
	dedupeKey := pattern
	if negated {
		dedupeKey = "-" + pattern
	}
	if _, dup := seen[dedupeKey]; dup {
		return
	}
	seen[dedupeKey] = struct{}{}

	if negated {
		pred.ExcludeNamePatterns = append(pred.ExcludeNamePatterns, pattern)
	} else {
		pred.NamePatterns = append(pred.NamePatterns, pattern)
	}
}

func parseOrderBy(value string) (repositories.SortKey, bool) {
	column, direction, _ := strings.Cut(value, ":")
	alias, ok := orderByAliases[strings.ToLower(column)]
	if !ok {
		return repositories.SortKey{}, false
	}
	return repositories.SortKey{
		Column:    alias.column,
		Desc:      strings.HasPrefix(strings.ToLower(direction), "d"),
		NullsLast: alias.nullsLast,
	}, true
}

func parseFilterRange(value string, clientOffsetMinutes int) repositories.DateRange {
	fromStr, toStr, _ := strings.Cut(value, "-")
	return repositories.DateRange{
		From: parseFilterDate(fromStr, clientOffsetMinutes, false),
		To:   parseFilterDate(toStr, clientOffsetMinutes, true),
	}
}

// parseFilterDate resolves one range endpoint to epoch seconds. Missing
// trailing components default to the start of the implied period; for the
// "to" endpoint they are instead maxed out within their class, at day
// granularity when no time is given. Strings that do not match the pattern
// yield nil, meaning unbounded.
func parseFilterDate(value string, clientOffsetMinutes int, toEndpoint bool) *int64 {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}

	m := filterDatePattern.FindStringSubmatch(value)
	if m == nil {
		return nil
	}

	year := atoiDefault(m[1], 0)
	month := atoiDefault(m[2], pick(toEndpoint, 12, 1))
	if month < 1 || month > 12 {
		return nil
	}

	lastDay := time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
	day := atoiDefault(m[3], pick(toEndpoint, lastDay, 1))
	if day < 1 || day > lastDay {
		return nil
	}

	hour, minute, second := 0, 0, 0
	if m[4] != "" {
		hour = atoiDefault(m[4], 0)
		minute = atoiDefault(m[5], pick(toEndpoint, 59, 0))
		second = atoiDefault(m[6], pick(toEndpoint, 59, 0))
		if hour > 23 || minute > 59 || second > 59 {
			return nil
		}
	}

	epoch := time.Date(year, time.Month(month), day, hour, minute, second, 0, time.UTC).Unix()
	epoch += int64(clientOffsetMinutes) * 60
	return &epoch
}

func atoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n := 0
	if _, err := fmt.Sscanf(s, "%d", &n); err != nil {
		return def
	}
	return n
}

func pick(cond bool, a, b int) int {
	if cond {
		return a
	}
	return b
}

func sortedKeys(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
