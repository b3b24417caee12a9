package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"go.uber.org/zap"
)

const HeaderUserID = "X-User-Id"

// IdentityResolver maps a request to the user whose cart it operates on.
type IdentityResolver interface {
	UserID(r *http.Request) string
}

// HeaderIdentity reads X-User-Id and falls back to a fixed mock user.
type HeaderIdentity struct {
	DefaultUserID string
}

func (h HeaderIdentity) UserID(r *http.Request) string {
	if uid := strings.TrimSpace(r.Header.Get(HeaderUserID)); uid != "" {
		return uid
	}
	return h.DefaultUserID
}

func NewRouter(h *HTTPHandler, allowedOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(accessLog(h.logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", HeaderUserID, HeaderIdempotencyKey},
	}).Handler)

	r.Get("/health", h.HealthCheck)

	r.Route("/api", func(r chi.Router) {
		r.Get("/products", h.ListProducts)

		r.Get("/cart", h.GetCart)
		r.Post("/cart", h.AddItem)
		r.Delete("/cart/{id}", h.RemoveItem)
	})

	return r
}

func accessLog(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			logger.Info("http request",
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration", time.Since(start)),
			)
		})
	}
}
