// Package store は商品コレクションの永続化と変更通知を提供する。
//
// コレクション全体は名前空間付きキーバリューストアの1キー（ItemsKey）に
// まとめて保存される。すべての読み書きは1つのgoroutineに直列化されるため、
// 同時に発行された追加・削除の間で更新が失われることはない。
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/hitoshi/shelflife/internal/model"
	"github.com/hitoshi/shelflife/internal/repository"
)

// ItemsKey はコレクションを保存するキー。
const ItemsKey = "expiry_items"

// ErrClosed は停止したストアを操作した場合に返される。
var ErrClosed = errors.New("store: closed")

// MetricsRecorder はストア操作のメトリクスを記録するインターフェース。
// metrics.Collector が実装する。
type MetricsRecorder interface {
	RecordStoreOperation(op string, err error)
	SetStoredItems(n int)
}

type opKind int

const (
	opSnapshot opKind = iota
	opObserve
	opAdd
	opRemove
	opUnsubscribe
)

func (k opKind) String() string {
	switch k {
	case opSnapshot:
		return "snapshot"
	case opObserve:
		return "observe"
	case opAdd:
		return "add"
	case opRemove:
		return "remove"
	default:
		return "unsubscribe"
	}
}

// request は書き込みgoroutineに渡される1操作。
type request struct {
	kind  opKind
	ctx   context.Context
	item  model.ExpiryItem
	sub   *subscriber
	reply chan result
}

type result struct {
	items []model.ExpiryItem
	sub   *subscriber
	err   error
}

// subscriber は Observe の購読者1件。
// ch への送信とクローズは書き込みgoroutineだけが行う。
type subscriber struct {
	ch chan []model.ExpiryItem
}

// push は最新のスナップショットを送る。受信が追いついていない場合は古い値を捨てる。
func (s *subscriber) push(items []model.ExpiryItem) {
	select {
	case s.ch <- items:
		return
	default:
	}
	select {
	case <-s.ch:
	default:
	}
	s.ch <- items
}

// ItemStore は商品コレクションの非同期・永続ストア。
type ItemStore struct {
	repo    repository.PreferenceRepository
	logger  *slog.Logger
	metrics MetricsRecorder

	requests  chan request
	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once

	// 以下は書き込みgoroutineのみが触る
	subscribers map[*subscriber]struct{}
}

// New はItemStoreを生成し、書き込みgoroutineを起動する。
// metrics は nil でもよい。使い終わったら Close を呼ぶこと。
func New(repo repository.PreferenceRepository, logger *slog.Logger, metrics MetricsRecorder) *ItemStore {
	if logger == nil {
		logger = slog.Default()
	}
	s := &ItemStore{
		repo:        repo,
		logger:      logger.With(slog.String("component", "item_store")),
		metrics:     metrics,
		requests:    make(chan request),
		quit:        make(chan struct{}),
		done:        make(chan struct{}),
		subscribers: make(map[*subscriber]struct{}),
	}
	go s.loop()
	return s
}

// Close は書き込みgoroutineを停止し、すべての購読チャネルを閉じる。
// 複数回呼んでも安全。
func (s *ItemStore) Close() {
	s.closeOnce.Do(func() {
		close(s.quit)
	})
	<-s.done
}

// Ping はバックエンドの疎通を確認する。
func (s *ItemStore) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

// Observe は現在のコレクションを即座に1回送り、以降は変更のたびに最新のコレクションを送るチャネルを返す。
// チャネルは ctx のキャンセルまたはストアの停止で閉じられる。
// 購読ごとに最初のスナップショットを新たに読み込む。キーが未初期化なら空のコレクションを送る。
func (s *ItemStore) Observe(ctx context.Context) (<-chan []model.ExpiryItem, error) {
	res, err := s.do(ctx, request{kind: opObserve, ctx: ctx})
	if err != nil {
		return nil, err
	}

	sub := res.sub
	go func() {
		select {
		case <-ctx.Done():
		case <-s.done:
			return
		}
		select {
		case s.requests <- request{kind: opUnsubscribe, ctx: context.Background(), sub: sub, reply: make(chan result, 1)}:
		case <-s.done:
		}
	}()
	return sub.ch, nil
}

// Snapshot は現在のコレクションを1回だけ読み込んで返す。
func (s *ItemStore) Snapshot(ctx context.Context) ([]model.ExpiryItem, error) {
	res, err := s.do(ctx, request{kind: opSnapshot, ctx: ctx})
	if err != nil {
		return nil, err
	}
	return res.items, nil
}

// AddItem はコレクション末尾に商品を追加し、コレクション全体を保存する。
func (s *ItemStore) AddItem(ctx context.Context, item model.ExpiryItem) error {
	_, err := s.do(ctx, request{kind: opAdd, ctx: ctx, item: item})
	return err
}

// RemoveItem は商品を1件削除し、コレクション全体を保存する。
// IDが一致する商品を削除する。IDが空の場合は名前と期限日が一致する最初の1件を削除する。
// 該当する商品がない場合は何も保存しないが、購読者には現在のコレクションを再送する。
func (s *ItemStore) RemoveItem(ctx context.Context, item model.ExpiryItem) error {
	_, err := s.do(ctx, request{kind: opRemove, ctx: ctx, item: item})
	return err
}

// do は操作を書き込みgoroutineに渡し、完了を待つ。
// 受け付けられた操作は ctx がキャンセルされても完了まで待つ（I/O自体は ctx で中断される）。
func (s *ItemStore) do(ctx context.Context, req request) (result, error) {
	req.reply = make(chan result, 1)

	select {
	case s.requests <- req:
	case <-ctx.Done():
		return result{}, ctx.Err()
	case <-s.done:
		return result{}, ErrClosed
	}

	select {
	case res := <-req.reply:
		return res, res.err
	case <-s.done:
		return result{}, ErrClosed
	}
}

func (s *ItemStore) loop() {
	defer close(s.done)

	for {
		select {
		case req := <-s.requests:
			req.reply <- s.handle(req)
		case <-s.quit:
			for sub := range s.subscribers {
				close(sub.ch)
				delete(s.subscribers, sub)
			}
			return
		}
	}
}

func (s *ItemStore) handle(req request) result {
	switch req.kind {
	case opUnsubscribe:
		if _, ok := s.subscribers[req.sub]; ok {
			delete(s.subscribers, req.sub)
			close(req.sub.ch)
		}
		return result{}

	case opSnapshot:
		items, err := s.load(req.ctx)
		if err != nil {
			return s.fail(req, err)
		}
		return result{items: items}

	case opObserve:
		items, err := s.load(req.ctx)
		if err != nil {
			return s.fail(req, err)
		}
		sub := &subscriber{ch: make(chan []model.ExpiryItem, 1)}
		sub.push(items)
		s.subscribers[sub] = struct{}{}
		s.logger.Debug("subscriber added", slog.Int("subscribers", len(s.subscribers)))
		return result{sub: sub}

	case opAdd:
		items, err := s.load(req.ctx)
		if err != nil {
			return s.fail(req, err)
		}
		items = append(items, req.item)
		if err := s.save(req.ctx, items); err != nil {
			return s.fail(req, err)
		}
		s.record(req.kind, nil)
		s.broadcast(items)
		return result{}

	case opRemove:
		items, err := s.load(req.ctx)
		if err != nil {
			return s.fail(req, err)
		}
		if i := indexOf(items, req.item); i >= 0 {
			items = slices.Delete(items, i, i+1)
			if err := s.save(req.ctx, items); err != nil {
				return s.fail(req, err)
			}
		}
		s.record(req.kind, nil)
		s.broadcast(items)
		return result{}
	}

	return result{err: fmt.Errorf("unsupported store operation %d", req.kind)}
}

// indexOf は削除対象の位置を返す。見つからない場合は -1。
func indexOf(items []model.ExpiryItem, target model.ExpiryItem) int {
	if target.ID != "" {
		return slices.IndexFunc(items, func(it model.ExpiryItem) bool { return it.ID == target.ID })
	}
	return slices.IndexFunc(items, func(it model.ExpiryItem) bool { return it.SameValue(target) })
}

func (s *ItemStore) load(ctx context.Context) ([]model.ExpiryItem, error) {
	raw, _, err := s.repo.Load(ctx, ItemsKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load expiry items: %w", err)
	}
	items := DecodeItems(raw)
	if s.metrics != nil {
		s.metrics.SetStoredItems(len(items))
	}
	return items, nil
}

func (s *ItemStore) save(ctx context.Context, items []model.ExpiryItem) error {
	if err := s.repo.Save(ctx, ItemsKey, EncodeItems(items)); err != nil {
		return fmt.Errorf("failed to save expiry items: %w", err)
	}
	if s.metrics != nil {
		s.metrics.SetStoredItems(len(items))
	}
	return nil
}

func (s *ItemStore) broadcast(items []model.ExpiryItem) {
	for sub := range s.subscribers {
		sub.push(slices.Clone(items))
	}
}

func (s *ItemStore) fail(req request, err error) result {
	s.logger.Error("item store operation failed",
		slog.String("op", req.kind.String()),
		slog.String("error", err.Error()),
	)
	s.record(req.kind, err)
	return result{err: err}
}

func (s *ItemStore) record(kind opKind, err error) {
	if s.metrics != nil {
		s.metrics.RecordStoreOperation(kind.String(), err)
	}
}
