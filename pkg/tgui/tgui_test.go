package tgui

import (
	"strings"
	"testing"
)

func TestInlineRows(t *testing.T) {
	kb := NewInline().Row(Btn("a", "x"), Btn("b", "y")).Column(URLBtn("c", "https://t.me/c"), Btn("d", "z"))
	rows := kb.Rows()
	if kb.Len() != 3 || len(rows[0]) != 2 || len(rows[1]) != 1 {
		t.Fatalf("rows = %+v", rows)
	}
	if rows[1][0].URL != "https://t.me/c" || rows[2][0].Data != "z" {
		t.Fatalf("buttons = %+v", rows)
	}
	if kb.Markup() == nil {
		t.Fatalf("nil markup")
	}
}

func TestFitsCallbackData(t *testing.T) {
	if !FitsCallbackData("Movies") {
		t.Fatalf("short data rejected")
	}
	if FitsCallbackData("") || FitsCallbackData(strings.Repeat("x", MaxCallbackDataLen+1)) {
		t.Fatalf("invalid data accepted")
	}
}

func TestHTMLEscapes(t *testing.T) {
	if got := Link("a<b", `https://x/?q="1"`); got != `<a href="https://x/?q=&#34;1&#34;">a&lt;b</a>` {
		t.Fatalf("Link = %q", got)
	}
	if got := JoinH("\n", B("x"), "", Code("1")); got != "<b>x</b>\n<code>1</code>" {
		t.Fatalf("JoinH = %q", got)
	}
}

func TestPreview(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"hello\nworld", 20, "hello world"},
		{"héllo wörld", 5, "héllo…"},
		{"abc", 3, "abc"},
		{"abc", 0, ""},
	}
	for _, tt := range tests {
		if got := Preview(tt.in, tt.n); got != tt.want {
			t.Fatalf("Preview(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}
