package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/shelflife/internal/model"
)

const (
	// maxRequestBodyBytes は商品追加リクエストのボディ上限。
	maxRequestBodyBytes = 16 << 10

	// defaultKeepAliveInterval はイベントストリームのコメント送信間隔。
	// プロキシがアイドル接続を切らないようにする。
	defaultKeepAliveInterval = 25 * time.Second
)

// ItemServiceInterface は商品ハンドラーが必要とするサービスインターフェース。
// item.Service が実装する。
type ItemServiceInterface interface {
	// List は期限日順に並べた一覧を分類結果つきで返す。
	List(ctx context.Context) ([]model.ItemView, error)
	// CurrentSummary は現在のリスク集計を返す。
	CurrentSummary(ctx context.Context) (model.Summary, error)
	// Add は商品を追加する。名前か期限日が空の場合は nil, nil を返す。
	Add(ctx context.Context, name, date string) (*model.ExpiryItem, error)
	// DeleteByID はIDで指定された商品を削除する。
	DeleteByID(ctx context.Context, id string) error
	// ItemViews は一覧を変更のたびに送るチャネルを返す。
	ItemViews(ctx context.Context) (<-chan []model.ItemView, error)
	// Summary はリスク集計を変更のたびに送るチャネルを返す。
	Summary(ctx context.Context) (<-chan model.Summary, error)
}

// ItemHandler は商品管理のHTTPハンドラー。
type ItemHandler struct {
	service   ItemServiceInterface
	logger    *slog.Logger
	keepAlive time.Duration
}

// NewItemHandler はItemHandlerを生成する。
func NewItemHandler(service ItemServiceInterface, logger *slog.Logger) *ItemHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ItemHandler{
		service:   service,
		logger:    logger,
		keepAlive: defaultKeepAliveInterval,
	}
}

// --- リクエスト・レスポンス型 ---

// addItemRequest は商品追加リクエストのボディ。
type addItemRequest struct {
	Name       string `json:"name"`
	ExpiryDate string `json:"expiry_date"`
}

// itemResponse は商品1件のレスポンス。
type itemResponse struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	ExpiryDate string `json:"expiry_date"`
	Category   string `json:"category,omitempty"`
	DaysUntil  *int   `json:"days_until,omitempty"`
	DateValid  *bool  `json:"date_valid,omitempty"`
}

// itemListResponse は商品一覧のレスポンス。
type itemListResponse struct {
	Items []itemResponse `json:"items"`
}

// summaryResponse はリスク集計のレスポンス。
type summaryResponse struct {
	Total    int `json:"total"`
	Expired  int `json:"expired"`
	AtRisk   int `json:"at_risk"`
	Warning  int `json:"warning"`
	Safe     int `json:"safe"`
	MaxCount int `json:"max_count"`
}

func toItemResponse(item model.ExpiryItem) itemResponse {
	return itemResponse{
		ID:         item.ID,
		Name:       item.Name,
		ExpiryDate: item.ExpiryDate,
	}
}

func toItemViewResponse(view model.ItemView) itemResponse {
	resp := toItemResponse(view.ExpiryItem)
	days := view.DaysUntil
	valid := view.DateValid
	resp.Category = string(view.Category)
	resp.DaysUntil = &days
	resp.DateValid = &valid
	// 解析できない日付の残り日数は意味を持たない
	if !valid {
		resp.DaysUntil = nil
	}
	return resp
}

func toItemListResponse(views []model.ItemView) itemListResponse {
	items := make([]itemResponse, len(views))
	for i, v := range views {
		items[i] = toItemViewResponse(v)
	}
	return itemListResponse{Items: items}
}

func toSummaryResponse(s model.Summary) summaryResponse {
	return summaryResponse{
		Total:    s.Total,
		Expired:  s.Expired,
		AtRisk:   s.AtRisk,
		Warning:  s.Warning,
		Safe:     s.Safe,
		MaxCount: s.MaxCount(),
	}
}

// ListItems は期限日順の商品一覧を返す。
// GET /api/items
func (h *ItemHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	views, err := h.service.List(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toItemListResponse(views))
}

// AddItem は商品を追加する。
// POST /api/items
// 名前か期限日が空の場合は何も保存せず 204 を返す。
func (h *ItemHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBodyBytes))
	if err := dec.Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("リクエストボディの解析に失敗しました"))
		return
	}

	created, err := h.service.Add(r.Context(), req.Name, req.ExpiryDate)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if created == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	w.Header().Set("Location", "/api/items/"+created.ID)
	writeJSON(w, http.StatusCreated, toItemResponse(*created))
}

// DeleteItem は商品を削除する。
// DELETE /api/items/{id}
func (h *ItemHandler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "id")
	if itemID == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("商品IDが指定されていません"))
		return
	}

	if err := h.service.DeleteByID(r.Context(), itemID); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetSummary は現在のリスク集計を返す。
// GET /api/summary
func (h *ItemHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.CurrentSummary(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSummaryResponse(summary))
}

// StreamItems は商品一覧の変更をServer-Sent Eventsで送り続ける。
// GET /api/items/stream
// 接続直後に現在の一覧を "items" イベントとして送り、以降は変更のたびに送る。
func (h *ItemHandler) StreamItems(w http.ResponseWriter, r *http.Request) {
	ch, err := h.service.ItemViews(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	streamEvents(h, w, r, "items", ch, toItemListResponse)
}

// StreamSummary はリスク集計の変更をServer-Sent Eventsで送り続ける。
// GET /api/summary/stream
func (h *ItemHandler) StreamSummary(w http.ResponseWriter, r *http.Request) {
	ch, err := h.service.Summary(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	streamEvents(h, w, r, "summary", ch, toSummaryResponse)
}

// streamEvents はチャネルの値をSSEイベントとして書き込む。
// クライアントの切断またはチャネルのクローズで終了する。
func streamEvents[T, R any](h *ItemHandler, w http.ResponseWriter, r *http.Request, event string, ch <-chan T, convert func(T) R) {
	rc := http.NewResponseController(w)
	// ストリームはサーバーの書き込みタイムアウトの対象外にする
	if err := rc.SetWriteDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
		h.logger.Warn("failed to clear write deadline", slog.String("error", err.Error()))
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		h.logger.Error("event stream not supported", slog.String("error", err.Error()))
		return
	}

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			if _, err := io.WriteString(w, ": keep-alive\n\n"); err != nil {
				return
			}
			rc.Flush()
		case v, ok := <-ch:
			if !ok {
				return
			}
			data, err := json.Marshal(convert(v))
			if err != nil {
				h.logger.Error("failed to encode event", slog.String("event", event), slog.String("error", err.Error()))
				return
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}
