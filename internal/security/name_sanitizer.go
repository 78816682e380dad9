// Package security はアプリケーションのセキュリティ機能を提供する。
//
// NameSanitizer は利用者が入力した商品名からマークアップを取り除く。
// 商品名はプレーンテキストとして保存され、HTTP API経由で任意のUIに返されるため、
// 保存前にbluemondayのStrictPolicyですべてのタグを除去する。
package security

import (
	"html"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// tagPattern はHTMLタグ、コメント、宣言の開始から終了までに一致する。
// "<" の直後が英字か "/", "!", "?" でなければタグとみなさない。
var tagPattern = regexp.MustCompile(`<[a-zA-Z/!?][^<>]*>`)

// maxSanitizePasses はタグ除去とエンティティデコードを繰り返す上限。
const maxSanitizePasses = 8

// NameSanitizer は商品名のサニタイズ機能のインターフェースを定義する。
type NameSanitizer interface {
	// Sanitize はタグを除去し、前後の空白を取り除いたプレーンテキストを返す。
	// script, styleなどの要素は中身ごと除去される。
	// 出力を再度渡しても変化しない（冪等）。
	Sanitize(raw string) string
}

// nameSanitizer はNameSanitizerの実装。
// bluemondayのポリシーはスレッドセーフに共有できる。
type nameSanitizer struct {
	policy *bluemonday.Policy
}

// NewNameSanitizer はNameSanitizerの新しいインスタンスを生成する。
func NewNameSanitizer() NameSanitizer {
	return &nameSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Sanitize はタグを除去したプレーンテキストを返す。
// タグを含まない名前は前後の空白を除いてそのまま返す。"pH < 7" や "AT&amp;T" は変化しない。
// エンティティで隠されたタグはデコードしてから除去し、タグがなくなるまで繰り返す。
func (s *nameSanitizer) Sanitize(raw string) string {
	name := raw
	for pass := 0; pass < maxSanitizePasses; pass++ {
		if tagPattern.MatchString(name) {
			// StrictPolicyは '&' などをエンティティに変換するため、元の文字に戻す
			name = html.UnescapeString(s.policy.Sanitize(name))
			continue
		}
		if decoded := html.UnescapeString(name); decoded != name && tagPattern.MatchString(decoded) {
			name = decoded
			continue
		}
		return strings.TrimSpace(name)
	}
	// 収束しない入力は保存しない
	return ""
}
