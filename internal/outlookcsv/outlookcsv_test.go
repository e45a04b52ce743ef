package outlookcsv

import (
	"reflect"
	"strings"
	"testing"

	"github.com/Napageneral/bubble/internal/contact"
)

func TestRoundTripCuratedAndFull(t *testing.T) {
	in := []contact.Contact{
		{
			ID: "1", FirstName: "Ann", LastName: "Lee", Phone: "+1 555 123 4567",
			Email: "ann@example.com", Birthday: "1990-05-01", Company: "Acme, Inc.",
			Title: `The "Boss"`, Tags: []string{"Work", "Gym"},
		},
		{ID: "2", FirstName: "Bo", Phone: "5550001111", Tags: []string{}},
	}
	for name, headers := range map[string][]string{"curated": CuratedHeaders, "full": FullHeaders} {
		t.Run(name, func(t *testing.T) {
			out := Decode(Encode(in, headers))
			if len(out) != 2 {
				t.Fatalf("expected 2 records, got %d: %+v", len(out), out)
			}
			a := out[0]
			if a.FirstName != "Ann" || a.LastName != "Lee" || a.Phone != "+1 555 123 4567" || a.Email != "ann@example.com" {
				t.Fatalf("identity fields lost: %+v", a)
			}
			if a.Birthday != "1990-05-01" || a.Company != "Acme, Inc." || a.Title != `The "Boss"` {
				t.Fatalf("detail fields lost: %+v", a)
			}
			if !reflect.DeepEqual(a.Tags, []string{"Work", "Gym"}) {
				t.Fatalf("tags=%v", a.Tags)
			}
			if out[1].FirstName != "Bo" || len(out[1].Tags) != 0 {
				t.Fatalf("second record: %+v", out[1])
			}
		})
	}
}

func TestTagDelimitersDoNotSplitTags(t *testing.T) {
	in := []contact.Contact{{FirstName: "Ann", Tags: []string{"Smith, Jones LLP", "a;b", "Gym", ";,"}}}
	out := Decode(Encode(in, CuratedHeaders))
	if len(out) != 1 {
		t.Fatalf("expected 1 record, got %+v", out)
	}
	if want := []string{"Smith Jones LLP", "a b", "Gym"}; !reflect.DeepEqual(out[0].Tags, want) {
		t.Fatalf("tags=%q, want %q", out[0].Tags, want)
	}
}

func TestEncodeEscaping(t *testing.T) {
	got := Encode([]contact.Contact{{FirstName: `Say "hi", ok`, LastName: "multi\nline"}}, CuratedHeaders)
	lines := strings.SplitN(got, "\n", 2)
	if lines[0] != "First Name,Last Name,Company,Job Title,Mobile Phone,E-mail Address,Birthday,Categories" {
		t.Fatalf("header=%q", lines[0])
	}
	if !strings.HasPrefix(lines[1], `"Say ""hi"", ok","multi`) {
		t.Fatalf("row=%q", lines[1])
	}
}

func TestDetectDelimiter(t *testing.T) {
	cases := []struct {
		in   string
		want rune
	}{
		{"First Name;Last Name;Phone", ';'},
		{"a,b,c", ','},
		{"a\tb\tc", '\t'},
		{"nodelimiters", ','},
		{"", ','},
		{"\n\n  \nx;y", ';'},
		{`"a,b,c";d`, ';'},
		{"a;b\tc", ','},
	}
	for _, tc := range cases {
		if got := DetectDelimiter(tc.in); got != tc.want {
			t.Fatalf("DetectDelimiter(%q)=%q want %q", tc.in, got, tc.want)
		}
	}
}

func TestParseLineEndingsAndQuotes(t *testing.T) {
	text := "\ufeffa,b\r\n\"x,1\",\"line\nbreak\"\r\"q\"\"uote\",z\n\n,\n"
	got := Parse(text)
	want := [][]string{
		{"a", "b"},
		{"x,1", "line\nbreak"},
		{`q"uote`, "z"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Parse=%q want %q", got, want)
	}
}

func TestDecodeSemicolonFile(t *testing.T) {
	text := "First Name;Last Name;Phone\nAnn;Lee;555-1234567\n"
	got := Decode(text)
	if len(got) != 1 || got[0].FirstName != "Ann" || got[0].Phone != "555-1234567" {
		t.Fatalf("got %+v", got)
	}
}

func TestDecodePhonePrecedence(t *testing.T) {
	text := "First Name,Home Phone,Business Phone,Mobile Phone,Other Phone\n" +
		"Ann,111,222,333,444\n" +
		"Bo,111,222,,444\n" +
		"Cy,,,,444\n"
	got := Decode(text)
	if len(got) != 3 {
		t.Fatalf("got %+v", got)
	}
	for i, want := range []string{"333", "222", "444"} {
		if got[i].Phone != want {
			t.Fatalf("row %d phone=%q want %q", i, got[i].Phone, want)
		}
	}
}

func TestDecodeEmailFallbackAndSkips(t *testing.T) {
	text := "First Name,E-mail Address,E-mail 2 Address,Categories,Company\n" +
		"Ann,,ann2@example.com,Work; Gym,Acme\n" +
		",,,Work,Acme\n" +
		"Bo,bo@example.com,bo2@example.com,,\n"
	got := Decode(text)
	if len(got) != 2 {
		t.Fatalf("rows without identity must be skipped, got %+v", got)
	}
	if got[0].Email != "ann2@example.com" || !reflect.DeepEqual(got[0].Tags, []string{"Work", "Gym"}) {
		t.Fatalf("first=%+v", got[0])
	}
	if got[1].Email != "bo@example.com" {
		t.Fatalf("primary email must win, got %+v", got[1])
	}
}

func TestParseBirthday(t *testing.T) {
	cases := map[string]string{
		"5/1/1990":   "1990-05-01",
		"05-01-90":   "2090-05-01",
		"1990-05-01": "1990-05-01",
		"2/30/2001":  "",
		"not a date": "",
		"":           "",
	}
	for in, want := range cases {
		if got := ParseBirthday(in); got != want {
			t.Fatalf("ParseBirthday(%q)=%q want %q", in, got, want)
		}
	}
}

func TestDecodeEmpty(t *testing.T) {
	if got := Decode(""); len(got) != 0 {
		t.Fatalf("got %+v", got)
	}
	if got := Decode("First Name,Last Name\n"); len(got) != 0 {
		t.Fatalf("got %+v", got)
	}
}
