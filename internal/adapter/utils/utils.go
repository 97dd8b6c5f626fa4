package utils

import (
	"net/http"
	"sync"

	_ "github.com/akolanti/PDFChat/cmd/api/docs"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/swaggo/http-swagger"
)

var (
	once   sync.Once
	router *chi.Mux
)

// GetNewUUID is used for session, job, document and segment ids.
func GetNewUUID() string {
	return uuid.New().String()
}

type RouterClient struct {
	Router *chi.Mux
}

func GetChiURLParam(request *http.Request, key string) string {
	return chi.URLParam(request, key)
}

// GetRouter returns the process router with the operational endpoints
// already mounted: /metrics and the swagger UI. API routes are added by the
// server package.
func GetRouter() RouterClient {
	once.Do(func() {
		router = NewRouter()
	})
	return RouterClient{Router: router}
}

func NewRouter() *chi.Mux {
	r := chi.NewRouter()
	// the rate limiter keys on RemoteAddr, so resolve proxies first
	r.Use(chimw.RealIP, chimw.CleanPath)
	InitSwagger(r)
	r.Handle("/metrics", promhttp.Handler())
	return r
}

func InitSwagger(r *chi.Mux) {
	r.Get("/swagger", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/swagger/index.html", http.StatusMovedPermanently)
	})
	r.Get("/swagger/*", httpSwagger.WrapHandler)
}
