package certnum

import (
	"fmt"
	"math/rand"
	"regexp"
	"strings"
	"time"
)

// DefaultOrg is the organization tag used when none is configured.
const DefaultOrg = "AMSAT-ID"

// sequenceMod keeps sequence numbers at exactly 5 digits.
const sequenceMod = 100000

// Pre-compiled regex patterns for better performance
var (
	whitespaceRegex = regexp.MustCompile(`\s+`)
	slugCharsRegex  = regexp.MustCompile(`[^A-Z0-9-]`)
	yearRegex       = regexp.MustCompile(`\b(\d{4})\b`)
)

// Generator produces certificate numbers with the grammar
// SEQ/EVENTSLUG/ORG/YEAR, e.g. "00001/WORKSHOP-SATELLITE/AMSAT-ID/2024".
//
// The random-integer primitive is a field so tests can pin it.
type Generator struct {
	Org string

	// randInt returns a uniform value in [0, n). Defaults to math/rand.
	randInt func(n int) int
}

// New creates a Generator for the given organization tag.
func New(org string) *Generator {
	if org == "" {
		org = DefaultOrg
	}
	return &Generator{
		Org:     org,
		randInt: rand.Intn,
	}
}

// SetRandInt overrides the random-integer source. Used by tests.
func (g *Generator) SetRandInt(fn func(n int) int) {
	g.randInt = fn
}

// DeriveSequence builds a 5-digit pseudo-sequence from the event date plus one
// random digit. Two certificates sharing an event date can collide; callers
// issuing a batch must pass explicit sequences (see GenerateBatch).
func (g *Generator) DeriveSequence(date time.Time) int {
	yy := date.Year() % 100
	m := int(date.Month()) % 10
	d := date.Day() % 10
	r := g.randInt(10)
	return (yy*1000 + m*100 + d*10 + r) % sequenceMod
}

// FormatEventName turns an event name into the EVENTSLUG segment: uppercased,
// whitespace runs replaced with "-", every character outside [A-Z0-9-]
// stripped, truncated to 20 characters. An all-punctuation name degrades to an
// empty segment; that is accepted, not an error.
func FormatEventName(eventName string) string {
	s := strings.ToUpper(strings.TrimSpace(eventName))
	s = whitespaceRegex.ReplaceAllString(s, "-")
	s = slugCharsRegex.ReplaceAllString(s, "")
	if len(s) > 20 {
		s = s[:20]
	}
	return s
}

// Format is the pure grammar formatter: no randomness, no clock.
func (g *Generator) Format(sequence int, eventName string, year int) string {
	seq := sequence % sequenceMod
	if seq < 0 {
		seq += sequenceMod
	}
	return fmt.Sprintf("%05d/%s/%s/%04d", seq, FormatEventName(eventName), g.Org, year)
}

// Generate produces a complete certificate number. When sequence is nil a
// pseudo-sequence is derived from the event date.
func (g *Generator) Generate(eventName string, eventDate time.Time, sequence *int) string {
	seq := 0
	if sequence != nil {
		seq = *sequence
	} else {
		seq = g.DeriveSequence(eventDate)
	}
	return g.Format(seq, eventName, eventDate.Year())
}

// BatchConfig holds the shared inputs for one batch of certificate numbers.
type BatchConfig struct {
	EventName string
	EventDate time.Time

	// Sequence, when set, is the base for the batch. Otherwise a base is
	// derived from EventDate.
	Sequence *int
}

// GenerateBatch produces count certificate numbers starting at a single base
// sequence and incrementing modulo 100000, so the SEQ segments are pairwise
// distinct within one run (up to wraparound).
func (g *Generator) GenerateBatch(cfg BatchConfig, count int) []string {
	base := 0
	if cfg.Sequence != nil {
		base = *cfg.Sequence
	} else {
		base = g.DeriveSequence(cfg.EventDate)
	}

	numbers := make([]string, 0, count)
	for i := 0; i < count; i++ {
		seq := (base + i) % sequenceMod
		numbers = append(numbers, g.Format(seq, cfg.EventName, cfg.EventDate.Year()))
	}
	return numbers
}

// Components are the four segments of a certificate number.
type Components struct {
	Sequence  string
	EventSlug string
	Org       string
	Year      string
}

// Parse splits a certificate number back into its components. It is a
// best-effort inverse: it returns nil when the part count is not 4 and does
// not validate that Sequence or Year are numeric.
func Parse(certificateNumber string) *Components {
	parts := strings.Split(certificateNumber, "/")
	if len(parts) != 4 {
		return nil
	}
	return &Components{
		Sequence:  parts[0],
		EventSlug: parts[1],
		Org:       parts[2],
		Year:      parts[3],
	}
}

// eventDateLayouts are tried in order when parsing free-form event dates.
var eventDateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"02 January 2006",
	"2 January 2006",
	"02/01/2006",
}

// ParseEventDate parses the free-form event date strings the participant
// registry stores. Unparseable strings keep at least a 4-digit year found in
// the text; otherwise the current time is returned.
func ParseEventDate(s string) time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range eventDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	if m := yearRegex.FindStringSubmatch(s); m != nil {
		var year int
		fmt.Sscanf(m[1], "%d", &year)
		return time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	}
	return time.Now()
}
