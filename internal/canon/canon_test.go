package canon

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestCanonicalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "fragment removed and params sorted",
			in:   "https://x/e?b=2&a=1#frag",
			want: "https://x/e?a=1&b=2",
		},
		{
			name: "already canonical",
			in:   "https://x/e?a=1&b=2",
			want: "https://x/e?a=1&b=2",
		},
		{
			name: "repeated keys keep relative order",
			in:   "https://x/e?b=2&a=3&b=1&a=1",
			want: "https://x/e?a=3&a=1&b=2&b=1",
		},
		{
			name: "blank values kept",
			in:   "https://x/e?z&y=",
			want: "https://x/e?y=&z=",
		},
		{
			name: "no query",
			in:   "https://ticket.example.com/ActivityInfo/Details/39125#top",
			want: "https://ticket.example.com/ActivityInfo/Details/39125",
		},
		{
			name: "surrounding whitespace trimmed",
			in:   "  https://x/e?b=1&a=2  ",
			want: "https://x/e?a=2&b=1",
		},
		{
			name: "unparseable returned unchanged",
			in:   "http://[::1",
			want: "http://[::1",
		},
		{
			name: "empty",
			in:   "",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Canonicalize(tt.in)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Canonicalize(%q) mismatch (-want +got):\n%s", tt.in, diff)
			}
		})
	}
}

func TestCanonicalizeIdempotent(t *testing.T) {
	inputs := []string{
		"https://x/e?b=2&a=1#frag",
		"https://x/e?q=hello%20world&a=%zz",
		"https://x/e?q=a+b&&c=",
		"https://x/e?",
		"http://[::1",
		"not a url at all",
		"/relative/path?b=1&a=2",
	}
	for _, in := range inputs {
		once := Canonicalize(in)
		twice := Canonicalize(once)
		if once != twice {
			t.Errorf("Canonicalize not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}
