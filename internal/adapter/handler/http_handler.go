package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/core/service"
)

const (
	HeaderIdempotencyKey = "Idempotency-Key"

	msgInvalidData     = "Invalid data"
	msgProductNotFound = "Product not found"
	msgDuplicate       = "duplicate request"
	msgInternal        = "internal error"
)

type HTTPHandler struct {
	cartService    *service.CartService
	catalogService *service.CatalogService
	identity       IdentityResolver
	timeout        time.Duration
	logger         *zap.Logger
}

type AddItemHTTPRequest struct {
	ProductID string `json:"productId"`
	Qty       *int   `json:"qty"`
}

type ProductHTTPResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Price       int64  `json:"price"`
	Image       string `json:"image"`
	Description string `json:"description,omitempty"`
}

type CartLineHTTPResponse struct {
	ProductID   string               `json:"productId"`
	Qty         int                  `json:"qty"`
	Product     *ProductHTTPResponse `json:"product"`
	LineTotal   int64                `json:"lineTotal"`
	Unavailable bool                 `json:"unavailable,omitempty"`
}

type CartHTTPResponse struct {
	UserID    string                 `json:"userId"`
	Items     []CartLineHTTPResponse `json:"items"`
	Total     int64                  `json:"total"`
	CreatedAt time.Time              `json:"createdAt"`
}

type ErrorHTTPResponse struct {
	Error string `json:"error"`
}

func NewHTTPHandler(cartService *service.CartService, catalogService *service.CatalogService, identity IdentityResolver, timeout time.Duration, logger *zap.Logger) *HTTPHandler {
	return &HTTPHandler{
		cartService:    cartService,
		catalogService: catalogService,
		identity:       identity,
		timeout:        timeout,
		logger:         logger,
	}
}

func (h *HTTPHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.requestContext(r)
	defer cancel()

	products, err := h.catalogService.ListProducts(ctx)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	resp := make([]ProductHTTPResponse, 0, len(products))
	for _, p := range products {
		resp = append(resp, toProductResponse(p))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *HTTPHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.requestContext(r)
	defer cancel()

	view, err := h.cartService.GetCart(ctx, h.identity.UserID(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartResponse(view))
}

func (h *HTTPHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req AddItemHTTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorHTTPResponse{Error: msgInvalidData})
		return
	}

	qty := 1
	if req.Qty != nil {
		qty = *req.Qty
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()

	userID := h.identity.UserID(r)
	view, err := h.cartService.AddItemOnce(ctx, r.Header.Get(HeaderIdempotencyKey), userID, req.ProductID, qty)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	h.logger.Info("cart item added",
		zap.String("user_id", userID),
		zap.String("product_id", req.ProductID),
		zap.Int("qty", qty),
		zap.Int64("total", view.Total),
	)
	writeJSON(w, http.StatusCreated, toCartResponse(view))
}

func (h *HTTPHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "id")

	ctx, cancel := h.requestContext(r)
	defer cancel()

	userID := h.identity.UserID(r)
	view, err := h.cartService.RemoveItem(ctx, userID, productID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	h.logger.Info("cart item removed",
		zap.String("user_id", userID),
		zap.String("product_id", productID),
		zap.Int64("total", view.Total),
	)
	writeJSON(w, http.StatusOK, toCartResponse(view))
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HTTPHandler) requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	if h.timeout <= 0 {
		return context.WithCancel(r.Context())
	}
	return context.WithTimeout(r.Context(), h.timeout)
}

func (h *HTTPHandler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	message := msgInternal

	switch {
	case errors.Is(err, service.ErrInvalidData):
		status = http.StatusBadRequest
		message = msgInvalidData
	case errors.Is(err, service.ErrProductNotFound):
		status = http.StatusNotFound
		message = msgProductNotFound
	case errors.Is(err, service.ErrDuplicateRequest):
		status = http.StatusConflict
		message = msgDuplicate
	}

	if status == http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}

	writeJSON(w, status, ErrorHTTPResponse{Error: message})
}

func toProductResponse(p domain.Product) ProductHTTPResponse {
	return ProductHTTPResponse{
		ID:          p.ID,
		Name:        p.Name,
		Price:       p.Price,
		Image:       p.Image,
		Description: p.Description,
	}
}

func toCartResponse(view domain.CartView) CartHTTPResponse {
	resp := CartHTTPResponse{
		UserID:    view.UserID,
		Items:     make([]CartLineHTTPResponse, 0, len(view.Items)),
		Total:     view.Total,
		CreatedAt: view.CreatedAt,
	}
	for _, line := range view.Items {
		item := CartLineHTTPResponse{
			ProductID:   line.ProductID,
			Qty:         line.Qty,
			LineTotal:   line.LineTotal,
			Unavailable: line.Unavailable,
		}
		if line.Product != nil {
			p := toProductResponse(*line.Product)
			item.Product = &p
		}
		resp.Items = append(resp.Items, item)
	}
	return resp
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
