package security

import (
	"strings"
	"testing"
)

// TestSanitize_PlainNames はマークアップを含まない商品名が変化しないことを検証する。
func TestSanitize_PlainNames(t *testing.T) {
	sanitizer := NewNameSanitizer()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "英字", input: "Milk", want: "Milk"},
		{name: "日本語", input: "牛乳 1L", want: "牛乳 1L"},
		{name: "アンパサンドが保持される", input: "M&M's", want: "M&M's"},
		{name: "区切り文字が保持される", input: "A||B", want: "A||B"},
		{name: "不等号のみ", input: "pH < 7", want: "pH < 7"},
		{name: "閉じられない山括弧", input: "Cheese <Brie", want: "Cheese <Brie"},
		{name: "空白なしの不等号", input: "a<b", want: "a<b"},
		{name: "エンティティ文字列はそのまま", input: "AT&amp;T", want: "AT&amp;T"},
		{name: "タグにならないエンティティ", input: "&lt;3 chocolate", want: "&lt;3 chocolate"},
		{name: "前後の空白が除去される", input: "  Bread \t", want: "Bread"},
		{name: "空文字列", input: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sanitizer.Sanitize(tt.input)
			if got != tt.want {
				t.Errorf("Sanitize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

// TestSanitize_StripsMarkup はタグが除去されテキストだけが残ることを検証する。
func TestSanitize_StripsMarkup(t *testing.T) {
	sanitizer := NewNameSanitizer()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "強調タグ", input: "<b>Milk</b>", want: "Milk"},
		{name: "リンク", input: `<a href="https://example.com">Cheese</a>`, want: "Cheese"},
		{name: "scriptは中身ごと除去", input: `Jam<script>alert("x")</script>`, want: "Jam"},
		{name: "イベント属性付き画像", input: `<img src=x onerror="alert(1)">Eggs`, want: "Eggs"},
		{name: "タグのみ", input: "<br/>", want: ""},
		{name: "エンティティで隠したタグ", input: "&lt;b&gt;Milk&lt;/b&gt;", want: "Milk"},
		{name: "エンティティで隠したscript", input: "Jam&lt;script&gt;alert(1)&lt;/script&gt;", want: "Jam"},
		{name: "除去後に現れるタグ", input: "<b>&lt;i&gt;Tea&lt;/i&gt;</b>", want: "Tea"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sanitizer.Sanitize(tt.input)
			if got != tt.want {
				t.Errorf("Sanitize(%q) = %q, want %q", tt.input, got, tt.want)
			}
			if strings.Contains(got, "<script") {
				t.Errorf("Sanitize(%q) still contains script tag: %q", tt.input, got)
			}
		})
	}
}

// TestSanitize_Idempotent は同一入力に対して常に同一出力を返すことを検証する。
func TestSanitize_Idempotent(t *testing.T) {
	sanitizer := NewNameSanitizer()

	inputs := []string{
		"Milk", "<i>Yogurt</i>", "Tom & Jerry", "  spaced  ",
		"&lt;b&gt;Milk&lt;/b&gt;", "&amp;lt;b&amp;gt;Oats", "Cheese <Brie", "a<b", "AT&amp;T",
	}
	for _, in := range inputs {
		first := sanitizer.Sanitize(in)
		second := sanitizer.Sanitize(first)
		if first != second {
			t.Errorf("Sanitize not idempotent for %q: %q then %q", in, first, second)
		}
		if tagPattern.MatchString(first) {
			t.Errorf("Sanitize(%q) = %q still contains a tag", in, first)
		}
	}
}
