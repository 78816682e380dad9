package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
)

// PostgresPreferenceRepo はPostgreSQLを使用したPreferenceRepository。
// preferencesテーブルの (namespace, key) 1行に text[] として値を保存する。
type PostgresPreferenceRepo struct {
	db        *sql.DB
	namespace string
}

// NewPostgresPreferenceRepo はPostgresPreferenceRepoを生成する。
func NewPostgresPreferenceRepo(db *sql.DB, namespace string) *PostgresPreferenceRepo {
	return &PostgresPreferenceRepo{db: db, namespace: namespace}
}

// Load は指定キーの値を取得する。行が存在しない場合はnil, falseを返す。
func (r *PostgresPreferenceRepo) Load(ctx context.Context, key string) ([]string, bool, error) {
	var values []string

	err := r.db.QueryRowContext(ctx,
		`SELECT value FROM preferences WHERE namespace = $1 AND key = $2`,
		r.namespace, key,
	).Scan(pq.Array(&values))

	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("設定値の取得に失敗しました: %w", err)
	}

	if values == nil {
		values = []string{}
	}
	return values, true, nil
}

// Save は指定キーの値をUPSERTで置き換える。
// 1文で行全体を書き換えるため、読み出し側が途中状態を観測することはない。
func (r *PostgresPreferenceRepo) Save(ctx context.Context, key string, values []string) error {
	if values == nil {
		values = []string{}
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO preferences (namespace, key, value, updated_at)
		 VALUES ($1, $2, $3, NOW())
		 ON CONFLICT (namespace, key)
		 DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`,
		r.namespace, key, pq.Array(values),
	)
	if err != nil {
		return fmt.Errorf("設定値の保存に失敗しました: %w", err)
	}
	return nil
}

// Ping はデータベース接続を確認する。
func (r *PostgresPreferenceRepo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
