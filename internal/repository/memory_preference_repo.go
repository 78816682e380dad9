package repository

import (
	"context"
	"slices"
	"sync"
)

// MemoryPreferenceRepo はプロセス内メモリに保持するPreferenceRepository。
// プロセス終了で内容は失われる。テストと一時的な起動で使用する。
type MemoryPreferenceRepo struct {
	mu     sync.RWMutex
	values map[string][]string
}

// NewMemoryPreferenceRepo はMemoryPreferenceRepoを生成する。
func NewMemoryPreferenceRepo() *MemoryPreferenceRepo {
	return &MemoryPreferenceRepo{values: make(map[string][]string)}
}

// Load は指定キーの値のコピーを返す。
func (r *MemoryPreferenceRepo) Load(_ context.Context, key string) ([]string, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	v, ok := r.values[key]
	if !ok {
		return nil, false, nil
	}
	return slices.Clone(v), true, nil
}

// Save は指定キーの値を置き換える。
func (r *MemoryPreferenceRepo) Save(_ context.Context, key string, values []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.values[key] = slices.Clone(values)
	return nil
}

// Ping は常に成功する。
func (r *MemoryPreferenceRepo) Ping(_ context.Context) error {
	return nil
}
