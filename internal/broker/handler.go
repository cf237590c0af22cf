package broker

import (
	"net/http"
	"strconv"
	"strings"

	"lv-finbroker/internal/httputil"
	"lv-finbroker/internal/types"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

type Handler struct {
	b *Broker
}

func NewHandler(b *Broker) *Handler {
	return &Handler{b: b}
}

type placeOrderRequest struct {
	Board      string `json:"board"`
	Symbol     string `json:"symbol"`
	Side       string `json:"side"`
	Kind       string `json:"kind"`
	Size       string `json:"size"`
	Price      string `json:"price"`
	LimitPrice string `json:"limit_price"`
	OCORef     int64  `json:"oco_ref"`
	ParentRef  int64  `json:"parent_ref"`
	Transmit   *bool  `json:"transmit"`
}

func (h *Handler) Place(w http.ResponseWriter, r *http.Request) {
	var req placeOrderRequest
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	board := strings.ToUpper(strings.TrimSpace(req.Board))
	symbol := strings.ToUpper(strings.TrimSpace(req.Symbol))
	if board == "" || symbol == "" {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "board and symbol are required"})
		return
	}
	side := types.OrderSide(strings.ToLower(strings.TrimSpace(req.Side)))
	if side != types.OrderSideBuy && side != types.OrderSideSell {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "invalid side"})
		return
	}
	size, err := decimal.NewFromString(req.Size)
	if err != nil || !size.IsPositive() {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "invalid size"})
		return
	}
	intent := OrderIntent{
		Board:     board,
		Symbol:    symbol,
		Size:      size,
		Kind:      types.OrderKind(strings.ToLower(strings.TrimSpace(req.Kind))),
		OCORef:    req.OCORef,
		ParentRef: req.ParentRef,
		Transmit:  true,
	}
	if req.Transmit != nil {
		intent.Transmit = *req.Transmit
	}
	if req.Price != "" {
		p, err := decimal.NewFromString(req.Price)
		if err != nil {
			httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "invalid price"})
			return
		}
		intent.Price = &p
	}
	if req.LimitPrice != "" {
		p, err := decimal.NewFromString(req.LimitPrice)
		if err != nil {
			httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "invalid limit_price"})
			return
		}
		intent.LimitPrice = &p
	}
	var order = h.b.Sell
	if side == types.OrderSideBuy {
		order = h.b.Buy
	}
	httputil.WriteJSON(w, http.StatusOK, order(r.Context(), intent))
}

func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	ref, err := strconv.ParseInt(chi.URLParam(r, "ref"), 10, 64)
	if err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "invalid ref"})
		return
	}
	if _, ok := h.b.GetOrder(ref); !ok {
		httputil.WriteJSON(w, http.StatusNotFound, httputil.ErrorResponse{Error: "order not found"})
		return
	}
	h.b.Cancel(r.Context(), ref)
	httputil.WriteJSON(w, http.StatusAccepted, map[string]string{"status": "cancel requested"})
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, h.b.Orders())
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	ref, err := strconv.ParseInt(chi.URLParam(r, "ref"), 10, 64)
	if err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "invalid ref"})
		return
	}
	order, ok := h.b.GetOrder(ref)
	if !ok {
		httputil.WriteJSON(w, http.StatusNotFound, httputil.ErrorResponse{Error: "order not found"})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, order)
}

func (h *Handler) Positions(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, h.b.Positions())
}

func (h *Handler) Account(w http.ResponseWriter, r *http.Request) {
	cash, err := h.b.GetCash(r.Context())
	if err != nil {
		httputil.WriteJSON(w, http.StatusBadGateway, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	value, err := h.b.GetValue(r.Context())
	if err != nil {
		httputil.WriteJSON(w, http.StatusBadGateway, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"client_id": h.b.clientID,
		"cash":      cash.String(),
		"value":     value.String(),
	})
}

// Notification pops one pending notification. An empty object body with
// status 204 marks an empty queue or a cycle boundary.
func (h *Handler) Notification(w http.ResponseWriter, r *http.Request) {
	n := h.b.PollNotification()
	if n == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, n)
}
