// Package extract turns raw text fragments scraped from an indexer into typed values.
package extract

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// ErrFieldNotFound is returned when a required fragment is missing from its field.
var ErrFieldNotFound = errors.New("field not found")

// ParseError reports text that could not be converted.
type ParseError struct {
	Field string
	Input string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: unrecognized input %q", e.Field, e.Input)
}

var sizePattern = regexp.MustCompile(`(?i)^\d+(?:\.\d+)?\s*[KMGTPE]?i?B$`)

// ParseSize converts "<number><sep><unit>" into bytes. Units follow SI
// (GB = 1000^3); the IEC forms (GiB) are binary. ok is false on non-match.
func ParseSize(text, sep string) (int64, bool) {
	s := strings.TrimSpace(text)
	if sep != "" {
		s = strings.ReplaceAll(s, sep, "")
	}
	if !sizePattern.MatchString(s) {
		return 0, false
	}
	n, err := humanize.ParseBytes(s)
	if err != nil || n > 1<<62 {
		return 0, false
	}
	return int64(n), true
}

var ageUnits = map[string]time.Duration{
	"s": time.Second, "sec": time.Second, "secs": time.Second, "second": time.Second, "seconds": time.Second,
	"m": time.Minute, "min": time.Minute, "mins": time.Minute, "minute": time.Minute, "minutes": time.Minute,
	"h": time.Hour, "hr": time.Hour, "hrs": time.Hour, "hour": time.Hour, "hours": time.Hour,
	"d": 24 * time.Hour, "day": 24 * time.Hour, "days": 24 * time.Hour,
	"w": 7 * 24 * time.Hour, "wk": 7 * 24 * time.Hour, "wks": 7 * 24 * time.Hour, "week": 7 * 24 * time.Hour, "weeks": 7 * 24 * time.Hour,
}

// maxAge is the largest representable age.
const maxAge = time.Duration(math.MaxInt64)

var (
	ageTerm      = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*([a-z]+)`)
	ageSeparator = regexp.MustCompile(`(?i)^[\s,]*(?:and)?[\s,]*$`)
)

// ParseRelativeAge parses phrases like "2 days", "5 hrs", "3d" or
// "1 day, 4 hours", with an optional trailing "ago". A bare integer is
// taken as seconds.
func ParseRelativeAge(text string) (time.Duration, error) {
	s := strings.TrimSpace(text)
	if len(s) > 3 && strings.EqualFold(s[len(s)-3:], "ago") {
		s = strings.TrimSpace(s[:len(s)-3])
	}
	if s == "" {
		return 0, &ParseError{Field: "age", Input: text}
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil && n >= 0 {
		if n > int64(maxAge/time.Second) {
			return 0, &ParseError{Field: "age", Input: text}
		}
		return time.Duration(n) * time.Second, nil
	}

	matches := ageTerm.FindAllStringSubmatchIndex(s, -1)
	if len(matches) == 0 {
		return 0, &ParseError{Field: "age", Input: text}
	}

	var total time.Duration
	prev := 0
	for _, m := range matches {
		// Anything between terms must be whitespace, commas or "and".
		if !ageSeparator.MatchString(s[prev:m[0]]) {
			return 0, &ParseError{Field: "age", Input: text}
		}
		unit, ok := ageUnits[strings.ToLower(s[m[4]:m[5]])]
		if !ok {
			return 0, &ParseError{Field: "age", Input: text}
		}
		v, err := strconv.ParseFloat(s[m[2]:m[3]], 64)
		if err != nil {
			return 0, &ParseError{Field: "age", Input: text}
		}
		d := v * float64(unit)
		if d >= float64(maxAge) || time.Duration(d) > maxAge-total {
			return 0, &ParseError{Field: "age", Input: text}
		}
		total += time.Duration(d)
		prev = m[1]
	}
	if strings.TrimSpace(s[prev:]) != "" {
		return 0, &ParseError{Field: "age", Input: text}
	}
	return total, nil
}

// titleSuffixes are applied in order; .nfo must go before the par2 and
// part-counter rules because those can sit in front of it.
var titleSuffixes = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\.nfo$`),
	regexp.MustCompile(`(?i)\.vol\d+[+-]\d+\.par2$`),
	regexp.MustCompile(`(?i)\.par2$`),
	regexp.MustCompile(`(?i)\.(?:zip|rar|nzb|sfv)$`),
	regexp.MustCompile(`(?i)[\s-]*yEnc\s*\(\d+/\d+\)$`),
	regexp.MustCompile(`[\s-]*\[\d+/\d+\]$`),
	regexp.MustCompile(`[\s-]*\(\d+/\d+\)$`),
}

// CleanTitle strips trailing noise (file extensions, yEnc markers, part
// counters) until nothing more matches.
func CleanTitle(raw string) string {
	title := strings.TrimSpace(raw)
	for {
		before := title
		for _, re := range titleSuffixes {
			title = strings.TrimSpace(re.ReplaceAllString(title, ""))
		}
		if title == before {
			return title
		}
	}
}

var innerPartCounter = regexp.MustCompile(` \[\d+/\d+\] `)

// StripPartCounters removes " [n/m] " tokens embedded inside a subject.
func StripPartCounters(s string) string {
	return innerPartCounter.ReplaceAllString(s, " ")
}

var quoted = regexp.MustCompile(`"([^"]+)"`)

// QuotedTitle returns the first double-quoted segment of a subject line.
func QuotedTitle(subject string) (string, error) {
	m := quoted.FindStringSubmatch(subject)
	if m == nil {
		return "", fmt.Errorf("quoted title in %q: %w", subject, ErrFieldNotFound)
	}
	return m[1], nil
}
