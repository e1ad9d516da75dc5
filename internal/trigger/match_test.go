package trigger

import "testing"

func TestFindWordBoundary(t *testing.T) {
	cases := []struct {
		name    string
		text    string
		trigger string
		want    int
	}{
		{"end of text", "hello @gemini", "@gemini", 6},
		{"followed by space", "@gemini write a poem", "@gemini", 0},
		{"followed by newline", "x @gemini\nmore", "@gemini", 2},
		{"followed by tab", "@g\tfoo", "@g", 0},
		{"prefix of longer word", "ping @govind now", "@g", -1},
		{"later bounded occurrence", "@govind and @g please", "@g", 12},
		{"absent", "nothing here", "@gemini", -1},
		{"empty trigger", "anything", "", -1},
		{"trigger longer than text", "@g", "@gemini", -1},
		{"multibyte neighbour", "héllo @g", "@g", 7},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := Find(tc.text, tc.trigger); got != tc.want {
				t.Fatalf("Find(%q, %q) = %d, want %d", tc.text, tc.trigger, got, tc.want)
			}
		})
	}
}

func TestContainsRejectsPrefixMatch(t *testing.T) {
	if Contains("@gemini2 do it", "@gemini") {
		t.Fatalf("expected @gemini2 not to match @gemini")
	}
	if !Contains("please @gemini", "@gemini") {
		t.Fatalf("expected trailing trigger to match")
	}
}

func TestSuffix(t *testing.T) {
	got, ok := Suffix("Dear team, @gemini   draft a reply  ", "@gemini")
	if !ok {
		t.Fatalf("expected trigger to be found")
	}
	if got != "draft a reply" {
		t.Fatalf("unexpected suffix %q", got)
	}

	if _, ok := Suffix("no trigger", "@gemini"); ok {
		t.Fatalf("expected no suffix without trigger")
	}
}
