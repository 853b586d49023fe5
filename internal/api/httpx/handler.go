package httpx

import (
	"encoding/json"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jcmexdev/shoe-market/internal/api/ports"
	"github.com/jcmexdev/shoe-market/internal/marketplace/domain"
	"github.com/jcmexdev/shoe-market/internal/marketplace/orders"
	"github.com/jcmexdev/shoe-market/internal/pkg/interceptors"
)

// Handler serves the catalog, order and payment endpoints.
type Handler struct {
	catalog ports.CatalogService
	orders  ports.OrderService
	ledger  ports.LedgerTransferer // nil-safe: transfer route is not mounted if nil
}

// NewHandler wires the handler. ledger may be nil; it is only set when the
// service runs its own in-process ledger.
func NewHandler(catalog ports.CatalogService, orderSvc ports.OrderService, ledger ports.LedgerTransferer) *Handler {
	return &Handler{catalog: catalog, orders: orderSvc, ledger: ledger}
}

func caller(r *http.Request) domain.Principal {
	return domain.Principal(interceptors.GetPrincipal(r.Context()))
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return false
	}
	return true
}

func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- items ---

// ListItems applies at most one filter, picked in the order name, location,
// seller, price range.
func (h *Handler) ListItems(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	var (
		items []domain.Item
		err   error
	)
	switch {
	case q.Has("name"):
		items, err = h.catalog.SearchByName(ctx, q.Get("name"))
	case q.Has("location"):
		items, err = h.catalog.FilterByLocation(ctx, q.Get("location"))
	case q.Has("seller"):
		items, err = h.catalog.FilterBySeller(ctx, domain.Principal(q.Get("seller")))
	case q.Has("min_price") || q.Has("max_price"):
		minPrice, ok := parseUint(w, q.Get("min_price"), 0)
		if !ok {
			return
		}
		maxPrice, ok := parseUint(w, q.Get("max_price"), math.MaxUint64)
		if !ok {
			return
		}
		items, err = h.catalog.FilterByPriceRange(ctx, minPrice, maxPrice)
	default:
		items, err = h.catalog.ListItems(ctx)
	}
	if err != nil {
		writeDomainError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, mapItems(items))
}

func parseUint(w http.ResponseWriter, s string, fallback uint64) (uint64, bool) {
	if s == "" {
		return fallback, true
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_query", err.Error())
		return 0, false
	}
	return n, true
}

func (h *Handler) CountItems(w http.ResponseWriter, r *http.Request) {
	n, err := h.catalog.CountItems(r.Context())
	if err != nil {
		writeDomainError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, CountResponse{Count: n})
}

func (h *Handler) GetItem(w http.ResponseWriter, r *http.Request) {
	item, err := h.catalog.GetItem(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, mapItem(item))
}

func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req ItemRequest
	if !decode(w, r, &req) {
		return
	}
	item, err := h.catalog.AddItem(r.Context(), caller(r), req.payload())
	if err != nil {
		writeDomainError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusCreated, mapItem(item))
}

func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	var req ItemRequest
	if !decode(w, r, &req) {
		return
	}
	item, err := h.catalog.UpdateItem(r.Context(), caller(r), chi.URLParam(r, "id"), req.payload())
	if err != nil {
		writeDomainError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, mapItem(item))
}

func (h *Handler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	if err := h.catalog.DeleteItem(r.Context(), caller(r), chi.URLParam(r, "id")); err != nil {
		writeDomainError(r.Context(), w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) LikeItem(w http.ResponseWriter, r *http.Request) {
	item, err := h.catalog.LikeItem(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, mapItem(item))
}

func (h *Handler) AddComment(w http.ResponseWriter, r *http.Request) {
	var req CommentRequest
	if !decode(w, r, &req) {
		return
	}
	comments, err := h.catalog.AddComment(r.Context(), chi.URLParam(r, "id"), req.Text)
	if err != nil {
		writeDomainError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusCreated, CommentsResponse{Comments: comments})
}

func (h *Handler) Comments(w http.ResponseWriter, r *http.Request) {
	comments, err := h.catalog.Comments(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, CommentsResponse{Comments: comments})
}

// --- orders ---

// CreateOrder reserves an item. The returned correlation_id must be used as
// the memo of the ledger transfer.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	if !decode(w, r, &req) {
		return
	}
	if req.ItemID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "item_id is required")
		return
	}

	order, err := h.orders.CreateOrder(r.Context(), caller(r), req.ItemID)
	if err != nil {
		writeDomainError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusCreated, h.mapOrder(order))
}

func (h *Handler) CompleteOrder(w http.ResponseWriter, r *http.Request) {
	var req CompleteOrderRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Seller == "" || req.ItemID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "seller and item_id are required")
		return
	}

	slog.InfoContext(r.Context(), "completing order",
		"request_id", interceptors.GetRequestID(r.Context()),
		"correlation_id", req.CorrelationID,
		"block", req.Block,
	)

	order, err := h.orders.CompleteOrder(r.Context(), caller(r), orders.CompleteOrderInput{
		Seller:        domain.Principal(req.Seller),
		ItemID:        req.ItemID,
		Price:         req.Price,
		Block:         req.Block,
		CorrelationID: req.CorrelationID,
	})
	if err != nil {
		writeDomainError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.mapOrder(order))
}

func (h *Handler) CompletedOrders(w http.ResponseWriter, r *http.Request) {
	list, err := h.orders.CompletedOrders(r.Context())
	if err != nil {
		writeDomainError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.mapOrders(list))
}

func (h *Handler) PendingOrders(w http.ResponseWriter, r *http.Request) {
	list, err := h.orders.PendingOrders(r.Context())
	if err != nil {
		writeDomainError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.mapOrders(list))
}

func (h *Handler) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	var req VerifyPaymentRequest
	if !decode(w, r, &req) {
		return
	}
	ok, err := h.orders.VerifyPayment(r.Context(), caller(r), domain.Principal(req.Receiver), req.Amount, req.Block, req.Memo)
	if err != nil {
		writeDomainError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, VerifyPaymentResponse{Verified: ok})
}

// Transfer posts a payment on the in-process ledger from the caller.
func (h *Handler) Transfer(w http.ResponseWriter, r *http.Request) {
	var req TransferRequest
	if !decode(w, r, &req) {
		return
	}
	if req.To == "" || req.Amount == 0 {
		writeError(w, http.StatusBadRequest, "invalid_request", "to and a positive amount are required")
		return
	}
	block, err := h.ledger.Transfer(r.Context(), caller(r), domain.Principal(req.To), req.Amount, req.Memo)
	if err != nil {
		writeError(w, http.StatusBadRequest, "transfer_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, TransferResponse{Block: block})
}

// --- mapping ---

func (req ItemRequest) payload() domain.ItemPayload {
	return domain.ItemPayload{
		Name:        req.Name,
		Description: req.Description,
		Location:    req.Location,
		Price:       req.Price,
		Size:        req.Size,
		ImageURL:    req.ImageURL,
	}
}

func mapItem(it domain.Item) ItemResponse {
	return ItemResponse{
		ID:          it.ID,
		Name:        it.Name,
		Description: it.Description,
		Location:    it.Location,
		Price:       it.Price,
		Size:        it.Size,
		Seller:      it.Seller.String(),
		ImageURL:    it.ImageURL,
		SoldAmount:  it.SoldAmount,
		Likes:       it.Likes,
		Comments:    it.Comments,
	}
}

func mapItems(items []domain.Item) []ItemResponse {
	out := make([]ItemResponse, len(items))
	for i, it := range items {
		out[i] = mapItem(it)
	}
	return out
}

func (h *Handler) mapOrder(o domain.Order) OrderResponse {
	resp := OrderResponse{
		ItemID:        o.ItemID,
		Price:         o.Price,
		Status:        string(o.Status),
		Seller:        o.Seller.String(),
		PaidAtBlock:   o.PaidAtBlock,
		CorrelationID: o.CorrelationID,
		Buyer:         o.Buyer.String(),
		CreatedAt:     o.CreatedAt.Format(time.RFC3339Nano),
	}
	if o.IsPending() {
		resp.ExpiresAt = o.ExpiresAt(h.orders.Window()).Format(time.RFC3339Nano)
	}
	return resp
}

func (h *Handler) mapOrders(list []domain.Order) []OrderResponse {
	out := make([]OrderResponse, len(list))
	for i, o := range list {
		out[i] = h.mapOrder(o)
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, ErrorResponse{
		Error:   code,
		Message: msg,
	})
}
