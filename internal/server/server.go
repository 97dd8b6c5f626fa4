package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"sync"

	"github.com/akolanti/PDFChat/internal/adapter/utils"
	"github.com/akolanti/PDFChat/internal/config"
	"github.com/akolanti/PDFChat/internal/middleware"
	"github.com/akolanti/PDFChat/pkg/logger_i"
	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

var (
	server  *http.Server
	_logger = sync.OnceValue(func() *logger_i.Logger { return logger_i.NewLogger("Server") })
)

type ShutdownParams struct {
	GracefulShutdown chan os.Signal
	StopExecution    chan bool
	WorkerStop       chan bool
	Group            *sync.WaitGroup
	CloseServices    context.CancelFunc
}

// RegisterRoutes mounts the API on r.
func RegisterRoutes(r chi.Router) {
	r.Get("/", middleware.GetHandler)
	r.Get("/health", middleware.HealthHandler)
	r.Get("/status/{id}", middleware.GetStatusHandler)

	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", middleware.CreateSessionHandler)
		r.Route("/{sessionId}", func(r chi.Router) {
			r.Get("/", middleware.GetSessionHandler)
			r.Delete("/", middleware.DeleteSessionHandler)
			r.Post("/clear", middleware.ClearSessionHandler)
			r.Get("/history", middleware.GetHistoryHandler)
			r.Delete("/history", middleware.ClearHistoryHandler)
			r.Post("/chat", middleware.ChatHandler)
			r.Post("/documents", middleware.PostDocumentsHandler)
			r.Get("/documents", middleware.GetDocumentsHandler)
			r.Delete("/documents/{name}", middleware.DeleteDocumentHandler)
		})
	})
}

func CreateServer(listenAddr string) {
	r := utils.GetRouter()
	RegisterRoutes(r.Router)

	server = &http.Server{
		Addr:         listenAddr,
		Handler:      otelhttp.NewHandler(r.Router, "pdfchat"),
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}

	_logger().Info("Server is listening at", "address", listenAddr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		_logger().Error("Server crashed", "error", err.Error(), "addr", listenAddr)
	}
}

func ShutDownHandler(shutdownParams ShutdownParams) {
	state := <-shutdownParams.GracefulShutdown
	_logger().Info("Server is shutting down", "signal", state.String())

	ctx, cancel := context.WithTimeout(context.Background(), config.ShutdownContextTimeout)
	defer cancel()

	done := make(chan struct{})

	go func() {
		if server != nil {
			server.SetKeepAlivesEnabled(false)
			if err := server.Shutdown(ctx); err != nil {
				_logger().Error("Could not shutdown gracefully", "error", err)
			}
		}

		//close workers
		close(shutdownParams.WorkerStop)
		shutdownParams.Group.Wait()
		shutdownParams.CloseServices()
		close(shutdownParams.StopExecution)
		close(done)
	}()

	select {
	case <-done:
		_logger().Info("Gracefully shut down")
	case <-ctx.Done():
		_logger().Info("Force Shut down")
		os.Exit(1)
	}
}
