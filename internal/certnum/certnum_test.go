package certnum

import (
	"fmt"
	"regexp"
	"strings"
	"testing"
	"time"
)

var grammarRegex = regexp.MustCompile(`^\d{5}/[A-Z0-9-]{0,20}/AMSAT-ID/\d{4}$`)

func fixedRand(v int) func(int) int {
	return func(n int) int { return v % n }
}

func TestGenerateGrammar(t *testing.T) {
	g := New("")
	g.SetRandInt(fixedRand(7))

	date := time.Date(2024, time.March, 15, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		eventName string
		sequence  *int
	}{
		{"plain", "Workshop Satellite Tracking 2024", nil},
		{"explicit sequence", "Annual Meeting", intPtr(1)},
		{"punctuation only", "!!! ???", nil},
		{"empty", "", nil},
		{"unicode", "Pelatihan Radio Amatir #3", intPtr(42)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := g.Generate(tt.eventName, date, tt.sequence)
			if !grammarRegex.MatchString(got) {
				t.Errorf("Generate(%q) = %q, does not match grammar", tt.eventName, got)
			}
		})
	}
}

func TestParseRoundTrip(t *testing.T) {
	g := New("")
	date := time.Date(2024, time.March, 15, 0, 0, 0, 0, time.UTC)

	seq := 1
	num := g.Generate("Workshop Satellite Tracking 2024", date, &seq)

	c := Parse(num)
	if c == nil {
		t.Fatalf("Parse(%q) = nil", num)
	}
	if c.Sequence != "00001" {
		t.Errorf("Sequence = %q, want %q", c.Sequence, "00001")
	}
	if c.EventSlug != "WORKSHOP-SATELLITE-T" {
		t.Errorf("EventSlug = %q, want %q", c.EventSlug, "WORKSHOP-SATELLITE-T")
	}
	if c.Org != "AMSAT-ID" {
		t.Errorf("Org = %q, want %q", c.Org, "AMSAT-ID")
	}
	if c.Year != "2024" {
		t.Errorf("Year = %q, want %q", c.Year, "2024")
	}
}

func TestParseInvalid(t *testing.T) {
	tests := []string{
		"",
		"00001/EVENT/AMSAT-ID",
		"00001/EVENT/AMSAT-ID/2024/EXTRA",
		"no separators at all",
	}
	for _, in := range tests {
		if got := Parse(in); got != nil {
			t.Errorf("Parse(%q) = %+v, want nil", in, got)
		}
	}
}

func TestParseIsBestEffort(t *testing.T) {
	// Four parts always parse, even when segments are not well-formed.
	c := Parse("abc/lower case/X/notayear")
	if c == nil {
		t.Fatal("Parse returned nil for a 4-part string")
	}
	if c.Sequence != "abc" || c.Year != "notayear" {
		t.Errorf("unexpected components: %+v", c)
	}
}

func TestFormatEventName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Workshop Satellite Tracking 2024", "WORKSHOP-SATELLITE-T"},
		{strings.Repeat("A", 40), strings.Repeat("A", 20)},
		{"a  b\tc", "A-B-C"},
		{"!!! ???", "-"},
		{"", ""},
		{"...", ""},
		{"ham radio", "HAM-RADIO"},
	}
	for _, tt := range tests {
		if got := FormatEventName(tt.in); got != tt.want {
			t.Errorf("FormatEventName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDeriveSequence(t *testing.T) {
	g := New("")
	g.SetRandInt(fixedRand(3))

	date := time.Date(2024, time.March, 15, 0, 0, 0, 0, time.UTC)

	seq := g.DeriveSequence(date)
	if seq < 0 || seq > 99999 {
		t.Fatalf("DeriveSequence = %d, out of 5-digit range", seq)
	}

	// Deterministic given a pinned random source.
	if again := g.DeriveSequence(date); again != seq {
		t.Errorf("DeriveSequence not deterministic with pinned rand: %d != %d", again, seq)
	}
}

func TestGenerateBatchDistinct(t *testing.T) {
	g := New("")

	cfg := BatchConfig{
		EventName: "Workshop Satellite Tracking 2024",
		EventDate: time.Date(2024, time.March, 15, 0, 0, 0, 0, time.UTC),
	}
	numbers := g.GenerateBatch(cfg, 100)
	if len(numbers) != 100 {
		t.Fatalf("got %d numbers, want 100", len(numbers))
	}

	seen := make(map[string]bool, 100)
	for i, num := range numbers {
		c := Parse(num)
		if c == nil {
			t.Fatalf("numbers[%d] = %q does not parse", i, num)
		}
		if seen[c.Sequence] {
			t.Errorf("duplicate SEQ segment %q at index %d", c.Sequence, i)
		}
		seen[c.Sequence] = true
	}
}

func TestGenerateBatchExplicitBase(t *testing.T) {
	g := New("")
	base := 99998
	cfg := BatchConfig{
		EventName: "Wraparound",
		EventDate: time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
		Sequence:  &base,
	}

	numbers := g.GenerateBatch(cfg, 3)
	want := []string{"99998", "99999", "00000"}
	for i, w := range want {
		c := Parse(numbers[i])
		if c.Sequence != w {
			t.Errorf("numbers[%d] SEQ = %q, want %q", i, c.Sequence, w)
		}
	}
}

func TestCustomOrg(t *testing.T) {
	g := New("ORARI")
	seq := 12
	num := g.Generate("Field Day", time.Date(2023, time.June, 1, 0, 0, 0, 0, time.UTC), &seq)
	if want := "00012/FIELD-DAY/ORARI/2023"; num != want {
		t.Errorf("Generate = %q, want %q", num, want)
	}
}

func TestParseEventDate(t *testing.T) {
	tests := []struct {
		in       string
		wantYear int
	}{
		{"2024-03-15", 2024},
		{"15 Maret 2024", 2024}, // unparseable month name, year recovered
		{"02 January 2023", 2023},
	}
	for _, tt := range tests {
		if got := ParseEventDate(tt.in); got.Year() != tt.wantYear {
			t.Errorf("ParseEventDate(%q).Year() = %d, want %d", tt.in, got.Year(), tt.wantYear)
		}
	}
}

func intPtr(v int) *int { return &v }

func ExampleGenerator_Generate() {
	g := New("")
	seq := 1
	fmt.Println(g.Generate("Workshop Satellite Tracking 2024", time.Date(2024, time.March, 15, 0, 0, 0, 0, time.UTC), &seq))
	// Output: 00001/WORKSHOP-SATELLITE-T/AMSAT-ID/2024
}
