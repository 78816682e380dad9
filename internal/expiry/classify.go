package expiry

import (
	"math"
	"slices"
	"time"

	"github.com/hitoshi/shelflife/internal/model"
)

const (
	secondsPerDay = 24 * 60 * 60

	// atRiskMaxDays 以下は AtRisk、warningMaxDays 以下は Warning。
	atRiskMaxDays  = 14
	warningMaxDays = 30
)

// DaysUntil は today から expiry までの日数を返す。
// 両者の時刻部分は切り捨て、暦日の差を整数で返す（丸めは行わない）。
// today はそのタイムゾーンでの日付、expiry は解析結果の日付をそのまま使う。
func DaysUntil(today, expiry time.Time) int {
	ty, tm, td := today.Date()
	ey, em, ed := expiry.Date()
	from := time.Date(ty, tm, td, 0, 0, 0, 0, time.UTC).Unix()
	to := time.Date(ey, em, ed, 0, 0, 0, 0, time.UTC).Unix()

	days := (to - from) / secondsPerDay
	switch {
	case days > math.MaxInt32:
		return math.MaxInt32
	case days < math.MinInt32:
		return math.MinInt32
	}
	return int(days)
}

// CategoryForDays は残り日数をリスク区分に変換する。
// 下限側の区分に境界値を含める: -1→Expired, 0..14→AtRisk, 15..30→Warning, 31以上→Safe。
func CategoryForDays(days int) model.RiskCategory {
	switch {
	case days < 0:
		return model.RiskExpired
	case days <= atRiskMaxDays:
		return model.RiskAtRisk
	case days <= warningMaxDays:
		return model.RiskWarning
	default:
		return model.RiskSafe
	}
}

// Classify は today 時点での expiry のリスク区分を返す。
// MaxDate は常に Safe になる。
func Classify(today, expiry time.Time) model.RiskCategory {
	return CategoryForDays(DaysUntil(today, expiry))
}

// Summarize は各商品の期限日を解析・分類し、区分ごとの件数を集計する。
// 解析に失敗した期限日は MaxDate として扱われるため Safe に数えられる。
// parser が nil の場合は ParseDate を使う。
func Summarize(items []model.ExpiryItem, today time.Time, parser DateParser) model.Summary {
	parser = parserOrDefault(parser)

	s := model.Summary{Total: len(items)}
	for _, it := range items {
		switch Classify(today, parser.Parse(it.ExpiryDate)) {
		case model.RiskExpired:
			s.Expired++
		case model.RiskAtRisk:
			s.AtRisk++
		case model.RiskWarning:
			s.Warning++
		default:
			s.Safe++
		}
	}
	return s
}

// SortByExpiry は期限日の昇順に並べた新しいスライスを返す。
// 同じ日付の商品は元の順序を保つ（安定ソート）。解析できない日付は末尾になる。
func SortByExpiry(items []model.ExpiryItem, parser DateParser) []model.ExpiryItem {
	parser = parserOrDefault(parser)

	type keyed struct {
		item model.ExpiryItem
		date time.Time
	}
	ks := make([]keyed, len(items))
	for i, it := range items {
		ks[i] = keyed{item: it, date: parser.Parse(it.ExpiryDate)}
	}
	slices.SortStableFunc(ks, func(a, b keyed) int {
		return a.date.Compare(b.date)
	})

	sorted := make([]model.ExpiryItem, len(ks))
	for i, k := range ks {
		sorted[i] = k.item
	}
	return sorted
}

// Views は並び替え済みの商品に分類結果を付与する。
func Views(items []model.ExpiryItem, today time.Time, parser DateParser) []model.ItemView {
	parser = parserOrDefault(parser)

	views := make([]model.ItemView, len(items))
	for i, it := range items {
		date := parser.Parse(it.ExpiryDate)
		days := DaysUntil(today, date)
		views[i] = model.ItemView{
			ExpiryItem: it,
			Category:   CategoryForDays(days),
			DaysUntil:  days,
			DateValid:  !IsMaxDate(date),
		}
	}
	return views
}
