package cache

import (
	"strings"
	"testing"
)

func TestNormalizeQuery_StopwordsAndSorting(t *testing.T) {
	cases := map[string]string{
		"What is the dress code?":          "code dress",
		"dress code":                       "code dress",
		"DRESS   code!!":                   "code dress",
		"Qual é o dress code da festa?":    "code dress festa",
		"¿Dónde es la ceremonia?":          "ceremonia",
		"where is the ceremony":            "ceremony",
		"":                                 "",
		"the a an of":                      "",
		"it is on at to":                   "",
		"hotel near venue, hotel parking!": "hotel hotel near parking venue",
	}
	for in, want := range cases {
		if got := NormalizeQuery(in); got != want {
			t.Errorf("NormalizeQuery(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNormalizeQuery_DropsShortWords(t *testing.T) {
	if got := NormalizeQuery("go to rj"); got != "" {
		t.Errorf("short words survived: %q", got)
	}
}

func TestQueryHash_StableAcrossPhrasings(t *testing.T) {
	h1 := QueryHash("What is the dress code?")
	h2 := QueryHash("dress code")
	h3 := QueryHash("wedding venue address")

	if h1 != h2 {
		t.Errorf("equivalent queries hash differently: %s vs %s", h1, h2)
	}
	if h1 == h3 {
		t.Errorf("distinct queries collide")
	}
	if len(h1) != 64 || strings.ToLower(h1) != h1 {
		t.Errorf("hash not lowercase sha-256 hex: %q", h1)
	}
}
