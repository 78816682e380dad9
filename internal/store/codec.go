package store

import (
	"strings"

	"github.com/google/uuid"

	"github.com/hitoshi/shelflife/internal/model"
)

// Separator は保存文字列内のフィールド区切り。
const Separator = "||"

// escapeChar はフィールド内の '|' と '\' をエスケープする文字。
const escapeChar = '\\'

// legacyIDNamespace は旧形式（IDなし）のエントリからIDを導出するためのUUID名前空間。
var legacyIDNamespace = uuid.MustParse("5d0c9a52-7a7e-4f0e-9f5b-3c1f2a6d8e41")

// EncodeItem は商品を "name||date||id" 形式の1文字列に変換する。
// 各フィールドの '\' と '|' はエスケープされるため、区切り文字を含む名前も復元できる。
// IDが空の場合はエスケープしない旧形式 "name||date" を書く。
func EncodeItem(item model.ExpiryItem) string {
	if item.ID == "" {
		return item.Name + Separator + item.ExpiryDate
	}
	var b strings.Builder
	b.WriteString(escapeField(item.Name))
	b.WriteString(Separator)
	b.WriteString(escapeField(item.ExpiryDate))
	b.WriteString(Separator)
	b.WriteString(escapeField(item.ID))
	return b.String()
}

// DecodeItem は保存文字列を商品に戻す。
// エスケープを解除して3要素に分かれるものを現行形式として読む。
// それ以外は旧形式とみなし、エスケープを解釈せずに区切りで分割する。
// 旧形式のエントリには、元の文字列から決定的に導出したIDを与える。
func DecodeItem(raw string) model.ExpiryItem {
	if parts := splitFields(raw); len(parts) == 3 {
		item := model.ExpiryItem{Name: parts[0], ExpiryDate: parts[1], ID: parts[2]}
		if item.ID == "" {
			item.ID = LegacyID(raw)
		}
		return item
	}

	// 旧形式の名前に含まれる '\' はエスケープではない
	parts := strings.Split(raw, Separator)
	item := model.ExpiryItem{Name: parts[0], ID: LegacyID(raw)}
	if len(parts) > 1 {
		item.ExpiryDate = parts[1]
	}
	return item
}

// LegacyID は旧形式の保存文字列に対応する安定したIDを返す。
func LegacyID(raw string) string {
	return uuid.NewSHA1(legacyIDNamespace, []byte(raw)).String()
}

// EncodeItems はコレクション全体を保存用の文字列集合に変換する。
func EncodeItems(items []model.ExpiryItem) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = EncodeItem(it)
	}
	return out
}

// DecodeItems は保存用の文字列集合をコレクションに戻す。
func DecodeItems(raw []string) []model.ExpiryItem {
	out := make([]model.ExpiryItem, len(raw))
	for i, r := range raw {
		out[i] = DecodeItem(r)
	}
	return out
}

func escapeField(s string) string {
	if !strings.ContainsAny(s, `\|`) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 4)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == escapeChar || c == '|' {
			b.WriteByte(escapeChar)
		}
		b.WriteByte(c)
	}
	return b.String()
}

// splitFields はエスケープされていない区切りで分割し、各フィールドのエスケープを解除する。
// 末尾の単独の '\' はそのまま残す。
func splitFields(raw string) []string {
	var (
		fields []string
		cur    strings.Builder
	)
	for i := 0; i < len(raw); {
		c := raw[i]
		switch {
		case c == escapeChar && i+1 < len(raw):
			cur.WriteByte(raw[i+1])
			i += 2
		case strings.HasPrefix(raw[i:], Separator):
			fields = append(fields, cur.String())
			cur.Reset()
			i += len(Separator)
		default:
			cur.WriteByte(c)
			i++
		}
	}
	return append(fields, cur.String())
}
