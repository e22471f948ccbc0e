// Package rest exposes the order service HTTP API.
package rest

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"order-pipeline/internal/order/application"
	"order-pipeline/internal/order/domain"
	"order-pipeline/internal/transport/httpmw"
	"order-pipeline/internal/transport/rest/response"
)

type orderService interface {
	CreateOrder(ctx context.Context, cmd application.CreateOrderCommand) (*domain.Order, bool, error)
	GetOrder(ctx context.Context, orderID string) (*domain.Order, error)
}

type Handler struct {
	svc      orderService
	validate *validator.Validate
}

func NewHandler(svc orderService) *Handler {
	return &Handler{
		svc:      svc,
		validate: validator.New(),
	}
}

// CreateOrder answers 201 on first creation, 200 when the order_id was
// seen before (the stored order comes back unchanged), 422 on a payload
// that fails validation.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		fail(w, r, http.StatusUnprocessableEntity, "request.invalid", "invalid body", nil)
		return
	}

	if err := h.validate.Struct(req); err != nil {
		fail(w, r, http.StatusUnprocessableEntity, "validation.failed", "invalid order", validationMeta(err))
		return
	}

	order, created, err := h.svc.CreateOrder(r.Context(), application.CreateOrderCommand{
		OrderID:    req.OrderID,
		CustomerID: req.CustomerID,
		Items:      req.domainItems(),
	})
	if err != nil {
		handleErr(w, r, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	response.Data(w, status, toOrderResponse(order))
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")

	order, err := h.svc.GetOrder(r.Context(), orderID)
	if err != nil {
		handleErr(w, r, err)
		return
	}
	response.Data(w, http.StatusOK, toOrderResponse(order))
}

func handleErr(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		fail(w, r, http.StatusUnprocessableEntity, "validation.failed", err.Error(), nil)
	case errors.Is(err, domain.ErrNotFound):
		fail(w, r, http.StatusNotFound, "order.not_found", "order not found", nil)
	default:
		fail(w, r, http.StatusInternalServerError, "internal", "internal error", nil)
	}
}

func fail(w http.ResponseWriter, r *http.Request, status int, code, message string, meta map[string]string) {
	reqID := httpmw.GetRequestID(r.Context())
	if reqID == "" {
		reqID = "no-request-id"
	}
	response.Fail(w, status, code, message, meta, reqID)
}

func validationMeta(err error) map[string]string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	meta := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		meta[strings.ToLower(fe.Field())] = fe.Tag()
	}
	return meta
}
