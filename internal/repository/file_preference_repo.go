package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sync"
)

// preferenceFileVersion は保存ファイルの書式バージョン。
const preferenceFileVersion = 1

// preferenceFile は名前空間1つ分の保存ファイルの内容。
type preferenceFile struct {
	Version   int                 `json:"version"`
	Namespace string              `json:"namespace"`
	Values    map[string][]string `json:"values"`
}

// FilePreferenceRepo はJSONファイルに保存するPreferenceRepository。
// 名前空間ごとに <dir>/<namespace>.json を1つ使い、書き込みは
// 一時ファイル → fsync → rename の順で行うため、再起動後も途中状態は残らない。
type FilePreferenceRepo struct {
	mu        sync.Mutex
	dir       string
	namespace string
}

// NewFilePreferenceRepo はFilePreferenceRepoを生成する。
// ディレクトリが存在しない場合は作成する。
func NewFilePreferenceRepo(dir, namespace string) (*FilePreferenceRepo, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("データディレクトリの作成に失敗しました %s: %w", dir, err)
	}
	return &FilePreferenceRepo{dir: dir, namespace: namespace}, nil
}

// Path は保存ファイルのパスを返す。
func (r *FilePreferenceRepo) Path() string {
	return filepath.Join(r.dir, r.namespace+".json")
}

// Load は指定キーの値を取得する。ファイルが存在しない場合は未初期化として扱う。
func (r *FilePreferenceRepo) Load(_ context.Context, key string) ([]string, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.read()
	if err != nil {
		return nil, false, err
	}
	v, ok := doc.Values[key]
	if !ok {
		return nil, false, nil
	}
	return slices.Clone(v), true, nil
}

// Save は指定キーの値を置き換え、ファイル全体をアトミックに書き直す。
func (r *FilePreferenceRepo) Save(_ context.Context, key string, values []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.read()
	if err != nil {
		return err
	}
	if values == nil {
		values = []string{}
	}
	doc.Values[key] = values

	return r.write(doc)
}

// Ping はデータディレクトリにアクセスできるかを確認する。
func (r *FilePreferenceRepo) Ping(_ context.Context) error {
	info, err := os.Stat(r.dir)
	if err != nil {
		return fmt.Errorf("データディレクトリにアクセスできません: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("データディレクトリではありません: %s", r.dir)
	}
	return nil
}

func (r *FilePreferenceRepo) read() (*preferenceFile, error) {
	doc := &preferenceFile{
		Version:   preferenceFileVersion,
		Namespace: r.namespace,
		Values:    make(map[string][]string),
	}

	data, err := os.ReadFile(r.Path())
	if errors.Is(err, fs.ErrNotExist) {
		return doc, nil
	}
	if err != nil {
		return nil, fmt.Errorf("設定ファイルの読み込みに失敗しました: %w", err)
	}

	if err := json.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("設定ファイルの解析に失敗しました: %w", err)
	}
	if doc.Values == nil {
		doc.Values = make(map[string][]string)
	}
	return doc, nil
}

func (r *FilePreferenceRepo) write(doc *preferenceFile) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("設定のシリアライズに失敗しました: %w", err)
	}

	path := r.Path()
	tmpPath := path + ".tmp"

	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("一時ファイルの作成に失敗しました: %w", err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("一時ファイルへの書き込みに失敗しました: %w", err)
	}

	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("fsyncに失敗しました: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("一時ファイルのクローズに失敗しました: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("設定ファイルの置き換えに失敗しました: %w", err)
	}

	return nil
}
