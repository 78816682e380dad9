// Package expiry は賞味期限日の解析とリスク区分の判定を提供する。
//
// 日付は dd/mm/yyyy 形式の文字列として保存される。解析に失敗した日付は
// エラーにせず MaxDate に置き換え、並び替えでは常に末尾、分類では Safe になる。
package expiry

import (
	"math"
	"time"
)

// DateLayout は受け付ける唯一の日付書式（dd/mm/yyyy）。
const DateLayout = "02/01/2006"

// MaxDate は解析できなかった日付の代わりに使う番兵値。
// 4桁の年で表せるどの日付よりも後になる。
var MaxDate = time.Date(math.MaxInt32, time.December, 31, 0, 0, 0, 0, time.UTC)

// ParseDate は dd/mm/yyyy 形式の文字列を日付に変換する。
// 書式不一致、範囲外の日・月、数字以外の文字、空文字列の場合は MaxDate を返す。
// すべての文字列入力に対して値を返し、エラーは発生しない。
func ParseDate(text string) time.Time {
	// time.Parse は桁数の足りない年を受け付けないが、長さで先に弾いておく
	if len(text) != len(DateLayout) {
		return MaxDate
	}
	t, err := time.Parse(DateLayout, text)
	if err != nil {
		return MaxDate
	}
	return t
}

// FormatDate は日付を dd/mm/yyyy 形式に整形する。
// ParseDate で解析できた文字列に対しては元の文字列が復元される。
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// IsMaxDate は t が番兵値 MaxDate かを返す。
func IsMaxDate(t time.Time) bool {
	return t.Equal(MaxDate)
}

// DateParser は期限日文字列を日付に変換するインターフェース。
type DateParser interface {
	Parse(text string) time.Time
}

// ParseFunc は関数をDateParserとして扱うためのアダプタ。
type ParseFunc func(text string) time.Time

// Parse は f(text) を返す。
func (f ParseFunc) Parse(text string) time.Time {
	return f(text)
}

// defaultParser はキャッシュを持たない ParseDate そのもの。
var defaultParser DateParser = ParseFunc(ParseDate)

func parserOrDefault(p DateParser) DateParser {
	if p == nil {
		return defaultParser
	}
	return p
}
