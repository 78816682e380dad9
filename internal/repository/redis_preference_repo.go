package repository

import (
	"context"
	"fmt"
	"slices"

	"github.com/redis/go-redis/v9"
)

// RedisPreferenceRepo はRedisを使用したPreferenceRepository。
// 1つのキーを "<namespace>:<key>" のRedis SETとして保存する。
type RedisPreferenceRepo struct {
	rdb   *redis.Client
	keyNS string
}

// NewRedisPreferenceRepo はRedisPreferenceRepoを生成する。
func NewRedisPreferenceRepo(rdb *redis.Client, namespace string) *RedisPreferenceRepo {
	return &RedisPreferenceRepo{rdb: rdb, keyNS: namespace + ":"}
}

func (r *RedisPreferenceRepo) key(k string) string { return r.keyNS + k }

// Load は指定キーのSETメンバーを取得する。
// SETは順序を持たないため、毎回同じ順序になるよう辞書順に並べて返す。
// 空のSETはRedis上に存在しないため、未初期化と同じ扱いになる。
func (r *RedisPreferenceRepo) Load(ctx context.Context, key string) ([]string, bool, error) {
	members, err := r.rdb.SMembers(ctx, r.key(key)).Result()
	if err != nil {
		return nil, false, fmt.Errorf("設定値の取得に失敗しました: %w", err)
	}
	if len(members) == 0 {
		return nil, false, nil
	}
	slices.Sort(members)
	return members, true, nil
}

// Save はMULTI/EXECトランザクション内でSETを削除して作り直す。
func (r *RedisPreferenceRepo) Save(ctx context.Context, key string, values []string) error {
	k := r.key(key)

	_, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, k)
		if len(values) > 0 {
			members := make([]interface{}, len(values))
			for i, v := range values {
				members[i] = v
			}
			pipe.SAdd(ctx, k, members...)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("設定値の保存に失敗しました: %w", err)
	}
	return nil
}

// Ping はRedisへの接続を確認する。
func (r *RedisPreferenceRepo) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}
