package sub

import (
	"strings"
	"testing"
)

func FuzzExpand(f *testing.F) {
	seed := []string{
		"",
		"   \n",
		"# comment\nss://YWVzLTEyOC1nY206cGFzcw==@example.com:8388#Node%201\n",
		"dmxlc3M6Ly9hQGI6MQo=",
		"\uFEFFvmess://eyJhIjoxfQ",
	}
	for _, s := range seed {
		f.Add(s)
	}

	f.Fuzz(func(t *testing.T, content string) {
		b, err := Expand("https://example.com/sub", content)
		if err != nil {
			return
		}
		if len(b.Lines) == 0 {
			t.Fatalf("lines is empty on nil error")
		}
		for _, l := range b.Lines {
			if l == "" || l != strings.TrimSpace(l) || strings.HasPrefix(l, "#") {
				t.Fatalf("unexpected line %q", l)
			}
		}
	})
}
