// Package model はドメインモデルを定義する。
package model

// ExpiryItem は賞味期限を管理する商品1件を表す。
// 作成後は不変として扱い、編集は削除と追加の組み合わせで表現する。
type ExpiryItem struct {
	ID         string // 作成時に採番される安定した識別子
	Name       string
	ExpiryDate string // dd/mm/yyyy
}

// SameValue はIDを除いた名前と期限日が一致するかを返す。
func (i ExpiryItem) SameValue(other ExpiryItem) bool {
	return i.Name == other.Name && i.ExpiryDate == other.ExpiryDate
}

// RiskCategory は期限までの残り日数から導かれるリスク区分を表す。
type RiskCategory string

const (
	// RiskExpired は期限切れ（残り日数 < 0）。
	RiskExpired RiskCategory = "expired"
	// RiskAtRisk は期限間近（0 <= 残り日数 <= 14）。
	RiskAtRisk RiskCategory = "at_risk"
	// RiskWarning は注意（15 <= 残り日数 <= 30）。
	RiskWarning RiskCategory = "warning"
	// RiskSafe は安全（残り日数 > 30）。
	RiskSafe RiskCategory = "safe"
)

// Summary はリスク区分ごとの件数集計。
// Expired+AtRisk+Warning+Safe は常に Total と一致する。
type Summary struct {
	Total   int
	Expired int
	AtRisk  int
	Warning int
	Safe    int
}

// MaxCount は4区分の中で最大の件数を返す。
// 棒グラフの幅計算でゼロ除算にならないよう、最小値は1。
func (s Summary) MaxCount() int {
	m := 1
	for _, n := range []int{s.Expired, s.AtRisk, s.Warning, s.Safe} {
		if n > m {
			m = n
		}
	}
	return m
}

// ItemView は一覧表示用に分類結果を付与した商品。
type ItemView struct {
	ExpiryItem
	Category  RiskCategory
	DaysUntil int
	DateValid bool // 期限日の解析に成功したか
}
