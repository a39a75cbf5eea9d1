package parser

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

type timePattern struct {
	re    *regexp.Regexp
	parse func(groups []string) (time.Time, bool)
}

var timePatterns = []timePattern{
	// 3/14/2025 7:05 PM
	{
		re: regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})/(\d{4})\s+(\d{1,2}):(\d{2})(?:\s*([AaPp][Mm]))?\b`),
		parse: func(g []string) (time.Time, bool) {
			return buildTime(atoi(g[3]), atoi(g[1]), atoi(g[2]), atoi(g[4]), atoi(g[5]), g[6])
		},
	},
	// 2025-03-14 19:05
	{
		re: regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})[ T](\d{2}):(\d{2})\b`),
		parse: func(g []string) (time.Time, bool) {
			return buildTime(atoi(g[1]), atoi(g[2]), atoi(g[3]), atoi(g[4]), atoi(g[5]), "")
		},
	},
	// March 14, 2025 7:05 PM
	{
		re: regexp.MustCompile(`\b([A-Za-z]{3,9})\.?\s+(\d{1,2}),\s+(\d{4})\s+(?:at\s+)?(\d{1,2}):(\d{2})(?:\s*([AaPp][Mm]))?\b`),
		parse: func(g []string) (time.Time, bool) {
			month, ok := monthByName(g[1])
			if !ok {
				return time.Time{}, false
			}
			return buildTime(atoi(g[3]), month, atoi(g[2]), atoi(g[4]), atoi(g[5]), g[6])
		},
	},
}

type timeMatch struct {
	pos int
	at  time.Time
}

// extractTimes returns every date-time that parses cleanly, in document order.
// Values are wall-clock times carried in UTC; the caller decides their zone.
func extractTimes(text string) []time.Time {
	var matches []timeMatch
	for _, p := range timePatterns {
		for _, idx := range p.re.FindAllStringSubmatchIndex(text, -1) {
			groups := make([]string, len(idx)/2)
			for i := range groups {
				if idx[2*i] >= 0 {
					groups[i] = text[idx[2*i]:idx[2*i+1]]
				}
			}
			if at, ok := p.parse(groups); ok {
				matches = append(matches, timeMatch{pos: idx[0], at: at})
			}
		}
	}

	sort.SliceStable(matches, func(i, j int) bool { return matches[i].pos < matches[j].pos })

	times := make([]time.Time, 0, len(matches))
	for _, m := range matches {
		times = append(times, m.at)
	}
	return times
}

// departureArrival picks the first time as departure and the next one not
// before it as arrival. Either may be nil.
func departureArrival(times []time.Time) (*time.Time, *time.Time) {
	if len(times) == 0 {
		return nil, nil
	}
	dep := times[0]
	for _, t := range times[1:] {
		if !t.Before(dep) {
			arr := t
			return &dep, &arr
		}
	}
	return &dep, nil
}

func buildTime(year, month, day, hour, minute int, meridiem string) (time.Time, bool) {
	if month < 1 || month > 12 || day < 1 || minute > 59 {
		return time.Time{}, false
	}

	switch strings.ToUpper(meridiem) {
	case "AM", "PM":
		if hour < 1 || hour > 12 {
			return time.Time{}, false
		}
		hour %= 12
		if strings.EqualFold(meridiem, "PM") {
			hour += 12
		}
	default:
		if hour > 23 {
			return time.Time{}, false
		}
	}

	t := time.Date(year, time.Month(month), day, hour, minute, 0, 0, time.UTC)
	if t.Day() != day {
		// time.Date normalized an impossible day such as Feb 30
		return time.Time{}, false
	}
	return t, true
}

var monthNames = []string{
	"january", "february", "march", "april", "may", "june",
	"july", "august", "september", "october", "november", "december",
}

// monthByName accepts full names and prefixes of at least three letters ("Sept" included)
func monthByName(name string) (int, bool) {
	n := strings.ToLower(name)
	for i, full := range monthNames {
		if strings.HasPrefix(full, n) && len(n) >= 3 {
			return i + 1, true
		}
	}
	return 0, false
}

func atoi(s string) int {
	v, _ := strconv.Atoi(s)
	return v
}
