package httpapi

import "testing"

func TestContentDispositionAttachment(t *testing.T) {
	cases := map[string]string{
		"good_vless.txt": `attachment; filename="good_vless.txt"; filename*=UTF-8''good_vless.txt`,
		`a"b c.txt`:      `attachment; filename="a\"b c.txt"; filename*=UTF-8''a%22b%20c.txt`,
	}
	for in, want := range cases {
		if got := contentDispositionAttachment(in); got != want {
			t.Fatalf("contentDispositionAttachment(%q)=%q, want=%q", in, got, want)
		}
	}
}
