// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
)

// PreferenceRepository は名前空間付きのキーバリュー永続化インターフェース。
// 1つのキーに文字列の集合を丸ごと保存する。名前空間はインスタンス生成時に固定される。
type PreferenceRepository interface {
	// Load は指定キーの値を取得する。
	// キーが未初期化の場合は nil, false, nil を返す。
	Load(ctx context.Context, key string) ([]string, bool, error)

	// Save は指定キーの値を丸ごと置き換える。
	// 置き換えはアトミックに行われ、途中状態は読み出されない。
	Save(ctx context.Context, key string, values []string) error

	// Ping はバックエンドが応答可能かを確認する。ヘルスチェックで使用する。
	Ping(ctx context.Context) error
}
