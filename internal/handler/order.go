package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/xenking/laundry-billing/internal/domain/order"
)

const dayLayout = "2006-01-02"

func (h *Handler) getMeta(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	snap, err := h.orders.Snapshot(ctx, identity(r).BranchID)
	if err != nil {
		writeDomainError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, toMeta(snap))
}

func (h *Handler) quote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req quoteRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	q, err := h.orders.Quote(ctx, identity(r).BranchID, req.toDomain())
	if err != nil {
		writeDomainError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, quoteResponse{
		Lines:      toLines(q.Lines),
		Subtotal:   q.Subtotal.InexactFloat64(),
		PieceCount: q.PieceCount,
	})
}

func (h *Handler) submitOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req submitRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	id := identity(r)
	res, err := h.orders.Submit(ctx, id.BranchID, id.StaffID, req.toDomain())
	if err != nil {
		writeDomainError(ctx, w, err)
		return
	}

	p := res.Payload
	writeJSON(w, http.StatusCreated, submitResponse{
		ID:                  res.Created.ID,
		ReadableBillID:      res.Created.ReadableBillID,
		Subtotal:            p.Subtotal.InexactFloat64(),
		Discount:            p.Discount.InexactFloat64(),
		FinalAmount:         p.Final.InexactFloat64(),
		AmountPaid:          p.AmountPaid.InexactFloat64(),
		PaymentStatus:       string(p.PaymentStatus),
		PieceCount:          p.PieceCount,
		SuggestedPieceCount: res.Expected,
		DueAt:               p.DueAt,
		CreatedAt:           res.Created.CreatedAt,
	})
}

// branchOrder loads an order and hides orders of other branches.
func (h *Handler) branchOrder(w http.ResponseWriter, r *http.Request) (*order.Order, bool) {
	ctx := r.Context()
	o, err := h.orders.Get(ctx, strings.TrimSpace(chi.URLParam(r, "orderID")))
	if err == nil && o.BranchID != identity(r).BranchID {
		err = order.ErrNotFound
	}
	if err != nil {
		writeDomainError(ctx, w, err)
		return nil, false
	}
	return o, true
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	o, ok := h.branchOrder(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

func (h *Handler) handover(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req handoverRequest
	if !decodeOptionalJSON(w, r, &req) {
		return
	}

	o, ok := h.branchOrder(w, r)
	if !ok {
		return
	}

	updated, err := h.orders.Handover(ctx, o.ID, order.PaymentMethod(strings.ToUpper(req.PaymentMethod)))
	if err != nil {
		writeDomainError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(updated))
}

func (h *Handler) recentOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(ctx, w, newError("invalid_request", "limit must be a non-negative integer", http.StatusBadRequest))
			return
		}
		limit = n
	}

	list, err := h.orders.Recent(ctx, identity(r).BranchID, limit)
	if err != nil {
		writeDomainError(ctx, w, err)
		return
	}

	resp := recentResponse{Orders: make([]summaryJSON, len(list))}
	for i, s := range list {
		resp.Orders[i] = summaryJSON{
			ID:             s.ID,
			ReadableBillID: s.ReadableBillID,
			CustomerName:   s.CustomerName,
			CustomerPhone:  s.CustomerPhone,
			FinalAmount:    s.Final.InexactFloat64(),
			PaymentStatus:  string(s.PaymentStatus),
			Status:         string(s.Status),
			DueAt:          s.DueAt,
			CreatedAt:      s.CreatedAt,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) dailyStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	day := h.orders.Today()
	if raw := strings.TrimSpace(r.URL.Query().Get("day")); raw != "" {
		d, err := time.ParseInLocation(dayLayout, raw, h.orders.Location())
		if err != nil {
			writeError(ctx, w, newError("invalid_request", "day must be YYYY-MM-DD", http.StatusBadRequest))
			return
		}
		day = d
	}

	st, err := h.orders.DailyStats(ctx, identity(r).BranchID, day)
	if err != nil {
		writeDomainError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, statsResponse{
		Day:         st.Day,
		Created:     st.Created,
		TotalWeight: st.TotalWeight.InexactFloat64(),
		Cleared:     st.Cleared,
		DueToday:    st.DueToday,
	})
}

func (h *Handler) findCustomer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	phone := strings.TrimSpace(chi.URLParam(r, "phone"))

	c, err := h.orders.FindCustomer(ctx, identity(r).BranchID, phone)
	if err != nil {
		writeDomainError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCustomer(*c))
}
