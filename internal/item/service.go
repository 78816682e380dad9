// Package item は賞味期限つき商品の一覧・集計・追加・削除を提供する。
package item

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/shelflife/internal/expiry"
	"github.com/hitoshi/shelflife/internal/model"
	"github.com/hitoshi/shelflife/internal/security"
	"github.com/hitoshi/shelflife/internal/store"
)

// ItemStore はサービスが利用する商品コレクションのストア。
// store.ItemStore が実装する。
type ItemStore interface {
	Observe(ctx context.Context) (<-chan []model.ExpiryItem, error)
	Snapshot(ctx context.Context) ([]model.ExpiryItem, error)
	AddItem(ctx context.Context, item model.ExpiryItem) error
	RemoveItem(ctx context.Context, item model.ExpiryItem) error
}

// RiskRecorder はリスク区分ごとの件数を記録するインターフェース。
// metrics.Collector が実装する。
type RiskRecorder interface {
	SetRiskCounts(summary model.Summary)
}

// Service は商品コレクションを期限日順の一覧とリスク集計に変換するサービス。
// 「今日」は評価のたびに時計と設定されたタイムゾーンから求める。
type Service struct {
	store     ItemStore
	parser    expiry.DateParser
	sanitizer security.NameSanitizer
	location  *time.Location
	metrics   RiskRecorder
	logger    *slog.Logger

	now func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
// parser が nil の場合はキャッシュなしの解析、location が nil の場合はUTCを使う。metrics は nil でもよい。
func NewService(
	itemStore ItemStore,
	parser expiry.DateParser,
	sanitizer security.NameSanitizer,
	location *time.Location,
	metrics RiskRecorder,
	logger *slog.Logger,
) *Service {
	if parser == nil {
		parser = expiry.ParseFunc(expiry.ParseDate)
	}
	if location == nil {
		location = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:     itemStore,
		parser:    parser,
		sanitizer: sanitizer,
		location:  location,
		metrics:   metrics,
		logger:    logger.With(slog.String("component", "item_service")),
		now:       time.Now,
	}
}

// Today は設定されたタイムゾーンでの現在日時を返す。
func (s *Service) Today() time.Time {
	return s.now().In(s.location)
}

// Items は期限日の昇順に並べたコレクションを、変更のたびに送るチャネルを返す。
// 同じ日付の商品は保存順を保ち、解析できない日付は末尾になる。
// チャネルは ctx のキャンセルまたはストアの停止で閉じられる。
func (s *Service) Items(ctx context.Context) (<-chan []model.ExpiryItem, error) {
	return pipe(ctx, s, func(items []model.ExpiryItem) []model.ExpiryItem {
		return expiry.SortByExpiry(items, s.parser)
	})
}

// ItemViews は Items と同じ順序の一覧に分類結果を付与して、変更のたびに送るチャネルを返す。
func (s *Service) ItemViews(ctx context.Context) (<-chan []model.ItemView, error) {
	return pipe(ctx, s, s.views)
}

// Summary はリスク区分ごとの件数を、変更のたびに送るチャネルを返す。
func (s *Service) Summary(ctx context.Context) (<-chan model.Summary, error) {
	return pipe(ctx, s, s.summarize)
}

// List は現在のコレクションを期限日順に並べ、分類結果を付与して返す。
func (s *Service) List(ctx context.Context) ([]model.ItemView, error) {
	items, err := s.store.Snapshot(ctx)
	if err != nil {
		return nil, storeError(err)
	}
	return s.views(items), nil
}

// CurrentSummary は現在のコレクションのリスク集計を返す。
func (s *Service) CurrentSummary(ctx context.Context) (model.Summary, error) {
	items, err := s.store.Snapshot(ctx)
	if err != nil {
		return model.Summary{}, storeError(err)
	}
	return s.summarize(items), nil
}

// Add は商品を追加する。
// 名前はマークアップを除去して前後の空白を取り除き、期限日は前後の空白を取り除く。
// どちらかが空になった場合は何もせず nil, nil を返す。
// 期限日の書式は検証しない（解析できない日付は一覧の末尾に並ぶ）。
func (s *Service) Add(ctx context.Context, name, date string) (*model.ExpiryItem, error) {
	name = strings.TrimSpace(name)
	if s.sanitizer != nil {
		name = s.sanitizer.Sanitize(name)
	}
	date = strings.TrimSpace(date)
	if name == "" || date == "" {
		s.logger.Debug("ignoring item with blank field",
			slog.Bool("name_blank", name == ""),
			slog.Bool("date_blank", date == ""),
		)
		return nil, nil
	}

	item := model.ExpiryItem{
		ID:         uuid.NewString(),
		Name:       name,
		ExpiryDate: date,
	}
	if err := s.store.AddItem(ctx, item); err != nil {
		return nil, storeError(err)
	}
	return &item, nil
}

// Delete は商品を削除する。該当する商品がない場合も成功とする。
func (s *Service) Delete(ctx context.Context, item model.ExpiryItem) error {
	if err := s.store.RemoveItem(ctx, item); err != nil {
		return storeError(err)
	}
	return nil
}

// DeleteByID はIDで指定された商品を削除する。
// 該当する商品がない場合は ITEM_NOT_FOUND を返す。
func (s *Service) DeleteByID(ctx context.Context, id string) error {
	items, err := s.store.Snapshot(ctx)
	if err != nil {
		return storeError(err)
	}
	for _, it := range items {
		if it.ID == id {
			return s.Delete(ctx, it)
		}
	}
	return model.NewItemNotFoundError(id)
}

func (s *Service) views(items []model.ExpiryItem) []model.ItemView {
	return expiry.Views(expiry.SortByExpiry(items, s.parser), s.Today(), s.parser)
}

func (s *Service) summarize(items []model.ExpiryItem) model.Summary {
	summary := expiry.Summarize(items, s.Today(), s.parser)
	if s.metrics != nil {
		s.metrics.SetRiskCounts(summary)
	}
	return summary
}

// pipe はストアのスナップショットを変換して送るチャネルを返す。
// 上流のチャネルが閉じるまで読み続けるため、ctx のキャンセル後もgoroutineは残らない。
func pipe[T any](ctx context.Context, s *Service, transform func([]model.ExpiryItem) T) (<-chan T, error) {
	in, err := s.store.Observe(ctx)
	if err != nil {
		return nil, storeError(err)
	}

	out := make(chan T, 1)
	go func() {
		defer close(out)
		for items := range in {
			select {
			case out <- transform(items):
			case <-ctx.Done():
			}
		}
	}()
	return out, nil
}

// storeError は停止したストアのエラーをAPIエラーに変換する。
func storeError(err error) error {
	if errors.Is(err, store.ErrClosed) {
		return model.NewStoreClosedError()
	}
	return err
}
