package expiry

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// FailureRecorder は日付解析の失敗を記録するインターフェース。
// metrics.Collector が実装する。
type FailureRecorder interface {
	RecordDateParseFailure()
}

// Parser は解析結果をLRUキャッシュする DateParser。
// スナップショットのたびに同じ期限日文字列が再解析されるため、結果を使い回す。
// 並行利用に対して安全。
type Parser struct {
	cache    *lru.Cache[string, time.Time]
	failures FailureRecorder
}

// NewParser は最大 size 件をキャッシュする Parser を生成する。
// size が0以下の場合はキャッシュせず毎回解析する。recorder は nil でもよい。
func NewParser(size int, recorder FailureRecorder) (*Parser, error) {
	p := &Parser{failures: recorder}
	if size <= 0 {
		return p, nil
	}

	cache, err := lru.New[string, time.Time](size)
	if err != nil {
		return nil, err
	}
	p.cache = cache
	return p, nil
}

// Parse は text を解析する。解析失敗時は MaxDate を返す。
// 失敗の記録はキャッシュミス時のみ行う。
func (p *Parser) Parse(text string) time.Time {
	if p.cache != nil {
		if t, ok := p.cache.Get(text); ok {
			return t
		}
	}

	t := ParseDate(text)
	if IsMaxDate(t) && p.failures != nil {
		p.failures.RecordDateParseFailure()
	}

	if p.cache != nil {
		p.cache.Add(text, t)
	}
	return t
}

// Len はキャッシュされている件数を返す。
func (p *Parser) Len() int {
	if p.cache == nil {
		return 0
	}
	return p.cache.Len()
}
