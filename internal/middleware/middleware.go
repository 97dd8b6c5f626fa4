package middleware

import (
	"net/http"
	"strconv"

	"github.com/akolanti/PDFChat/internal/handlers"
	"github.com/akolanti/PDFChat/internal/metrics"
	"github.com/akolanti/PDFChat/pkg/logger_i"
)

type requestResponseStruct struct {
	writer     http.ResponseWriter
	req        *http.Request
	badRequest failureStruct
	logger     *logger_i.Logger
}

type failureStruct struct {
	isBadRequest bool
	httpCode     int
	errorMessage string
}

// stage inspects or decorates a request. Setting badRequest stops the chain.
type stage func(requestResponseStruct) requestResponseStruct

var (
	protectedStages = []stage{injectTrace, authenticate, rateLimiter}
	publicStages    = []stage{injectTrace, rateLimiter}
)

// health checks and the landing page stay reachable without a token
var GetHandler = WrapPublic(handlers.GetHandler)
var HealthHandler = WrapPublic(handlers.HealthHandler)

var CreateSessionHandler = Wrap(handlers.CreateSessionHandler)
var GetSessionHandler = Wrap(handlers.GetSessionHandler)
var DeleteSessionHandler = Wrap(handlers.DeleteSessionHandler)
var ClearSessionHandler = Wrap(handlers.ClearSessionHandler)
var ClearHistoryHandler = Wrap(handlers.ClearHistoryHandler)
var GetHistoryHandler = Wrap(handlers.GetHistoryHandler)

var ChatHandler = Wrap(handlers.ChatHandler)
var GetStatusHandler = Wrap(handlers.GetStatusHandler)
var PostDocumentsHandler = Wrap(handlers.PostDocumentsHandler)
var GetDocumentsHandler = Wrap(handlers.GetDocumentsHandler)
var DeleteDocumentHandler = Wrap(handlers.DeleteDocumentHandler)

// Wrap runs trace, bearer auth and rate limiting before next.
func Wrap(next http.HandlerFunc) http.HandlerFunc {
	return chain(next, protectedStages)
}

// WrapPublic is Wrap without the auth check.
func WrapPublic(next http.HandlerFunc) http.HandlerFunc {
	return chain(next, publicStages)
}

func chain(next http.HandlerFunc, stages []stage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec := &metrics.HttpStatusRecorder{ResponseWriter: w, Status: http.StatusOK}
		defer func() {
			metrics.HttpRequestsTotal.WithLabelValues(routePattern(r), strconv.Itoa(rec.Status)).Inc()
		}()

		re := requestResponseStruct{req: r, writer: rec, logger: logger()}
		for _, s := range stages {
			re = s(re)
			if !handleBadRequest(re) {
				return
			}
		}
		re.logger.Debug("New request received", "method", re.req.Method, "path", re.req.URL.Path)

		defer recoverPanic(re)
		next(rec, re.req)
	}
}

// recoverPanic turns a handler panic into a 500 envelope.
func recoverPanic(re requestResponseStruct) {
	if p := recover(); p != nil {
		re.logger.Error("Handler panicked", "panic", p, "path", re.req.URL.Path)
		handlers.WriteErrorResponse(re.writer, http.StatusInternalServerError, "", "Internal server error")
	}
}
