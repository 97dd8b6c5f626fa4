package handlers

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/akolanti/PDFChat/internal/adapter"
	"github.com/akolanti/PDFChat/internal/adapter/utils"
	"github.com/akolanti/PDFChat/internal/api"
	"github.com/akolanti/PDFChat/internal/config"
	"github.com/akolanti/PDFChat/internal/events"
	"github.com/akolanti/PDFChat/internal/rag"
)

// CreateSessionHandler godoc
// @Summary      Start a session
// @Description  Creates an empty session. Documents and questions are scoped to it.
// @Tags         Sessions
// @Produce      json
// @Success      201  {object}  api.SessionCreatedResponse
// @Failure      500  {object}  api.JobResponse "History store unavailable"
// @Security     BearerAuth
// @Router       /sessions [post]
func CreateSessionHandler(w http.ResponseWriter, r *http.Request) {
	sess, err := createSession(r.Context())
	if err != nil {
		logRH.WithContext(r.Context()).Error("Could not create session", "error", err)
		WriteErrorResponse(w, http.StatusInternalServerError, "", "Could not create session")
		return
	}
	logRH.WithContext(r.Context()).Info("Session created", "sessionId", sess.Id())
	writeJsonResponse(w, http.StatusCreated, api.SessionCreatedResponse{SessionId: sess.Id()})
}

// GetSessionHandler godoc
// @Summary      Session state
// @Tags         Sessions
// @Produce      json
// @Param        sessionId  path      string  true  "Session ID"
// @Success      200  {object}  rag.SessionInfo
// @Failure      404  {object}  api.JobResponse "Session not found"
// @Security     BearerAuth
// @Router       /sessions/{sessionId} [get]
func GetSessionHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionOr404(w, r)
	if !ok {
		return
	}
	writeJsonResponse(w, http.StatusOK, sess.Info())
}

// DeleteSessionHandler godoc
// @Summary      End a session
// @Description  Drops the session's documents, index and persisted history.
// @Tags         Sessions
// @Param        sessionId  path  string  true  "Session ID"
// @Success      204
// @Failure      404  {object}  api.JobResponse "Session not found"
// @Security     BearerAuth
// @Router       /sessions/{sessionId} [delete]
func DeleteSessionHandler(w http.ResponseWriter, r *http.Request) {
	sessionId := utils.GetChiURLParam(r, "sessionId")
	if !deleteSession(withSession(r, sessionId), sessionId) {
		WriteErrorResponse(w, http.StatusNotFound, sessionId, "Session not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ClearSessionHandler godoc
// @Summary      Clear documents and history
// @Description  Returns the session to its empty state. Work still in flight from before the clear is discarded.
// @Tags         Sessions
// @Produce      json
// @Param        sessionId  path      string  true  "Session ID"
// @Success      200  {object}  api.ClearResponse
// @Failure      404  {object}  api.JobResponse "Session not found"
// @Security     BearerAuth
// @Router       /sessions/{sessionId}/clear [post]
func ClearSessionHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionOr404(w, r)
	if !ok {
		return
	}
	ctx := withSession(r, sess.Id())
	svc := handlerInstance.service
	svc.Rag.Clear(ctx, sess)
	if err := svc.MessageStore.InitNewSession(ctx, sess.Id()); err != nil {
		logRH.WithContext(ctx).Error("Could not reset persisted history", "error", err)
	}
	events.Emit(ctx, svc.Events, config.NatsSubjectCleared, events.Event{SessionId: sess.Id()})

	writeJsonResponse(w, http.StatusOK, api.ClearResponse{SessionId: sess.Id(), IndexReady: sess.IndexReady()})
}

// ClearHistoryHandler godoc
// @Summary      Clear conversation history
// @Description  Starts a new conversation over the same documents. Answers still in flight from before the reset are not recorded.
// @Tags         Sessions
// @Produce      json
// @Param        sessionId  path      string  true  "Session ID"
// @Success      200  {object}  api.ClearResponse
// @Failure      404  {object}  api.JobResponse "Session not found"
// @Security     BearerAuth
// @Router       /sessions/{sessionId}/history [delete]
func ClearHistoryHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionOr404(w, r)
	if !ok {
		return
	}
	ctx := withSession(r, sess.Id())
	svc := handlerInstance.service
	svc.Rag.ClearHistory(ctx, sess)
	if err := svc.MessageStore.InitNewSession(ctx, sess.Id()); err != nil {
		logRH.WithContext(ctx).Error("Could not reset persisted history", "error", err)
	}
	events.Emit(ctx, svc.Events, config.NatsSubjectCleared, events.Event{
		SessionId: sess.Id(),
		Data:      map[string]any{"scope": "history"},
	})

	writeJsonResponse(w, http.StatusOK, api.ClearResponse{SessionId: sess.Id(), IndexReady: sess.IndexReady()})
}

// GetHistoryHandler godoc
// @Summary      Conversation history
// @Description  Returns the persisted turns, oldest first. limit keeps only the newest turns.
// @Tags         Sessions
// @Produce      json
// @Param        sessionId  path      string  true   "Session ID"
// @Param        limit      query     int     false  "Maximum number of turns"
// @Success      200  {object}  api.HistoryResponse
// @Failure      404  {object}  api.JobResponse "Session not found"
// @Security     BearerAuth
// @Router       /sessions/{sessionId}/history [get]
func GetHistoryHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionOr404(w, r)
	if !ok {
		return
	}
	limit := handlerInstance.service.HistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			WriteErrorResponse(w, http.StatusBadRequest, sess.Id(), "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	ctx := withSession(r, sess.Id())
	turns, err := handlerInstance.service.MessageStore.GetHistory(ctx, sess.Id(), limit)
	if err != nil {
		// history may be gone from the store (expiry, restart); the session still answers
		logRH.WithContext(ctx).Warn("History unavailable, serving in-memory turns", "error", err)
		turns = sess.History()
		if limit > 0 && len(turns) > limit {
			turns = turns[len(turns)-limit:]
		}
	}
	writeJsonResponse(w, http.StatusOK, adapter.ToHistoryResponse(sess.Id(), turns))
}

// GetDocumentsHandler godoc
// @Summary      List documents
// @Tags         Ingestion
// @Produce      json
// @Param        sessionId  path      string  true  "Session ID"
// @Success      200  {object}  api.DocumentsResponse
// @Failure      404  {object}  api.JobResponse "Session not found"
// @Security     BearerAuth
// @Router       /sessions/{sessionId}/documents [get]
func GetDocumentsHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionOr404(w, r)
	if !ok {
		return
	}
	writeJsonResponse(w, http.StatusOK, adapter.ToDocumentsResponse(sess.Info()))
}

// DeleteDocumentHandler godoc
// @Summary      Remove a document
// @Description  Drops every segment of the named document and rebuilds the index from the remaining vectors.
// @Tags         Ingestion
// @Produce      json
// @Param        sessionId  path      string  true  "Session ID"
// @Param        name       path      string  true  "Document file name"
// @Success      200  {object}  api.DocumentsResponse
// @Failure      404  {object}  api.JobResponse "Session or document not found"
// @Failure      409  {object}  api.JobResponse "Session was cleared meanwhile"
// @Security     BearerAuth
// @Router       /sessions/{sessionId}/documents/{name} [delete]
func DeleteDocumentHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionOr404(w, r)
	if !ok {
		return
	}
	name, err := url.PathUnescape(utils.GetChiURLParam(r, "name"))
	if err != nil || name == "" {
		WriteErrorResponse(w, http.StatusBadRequest, sess.Id(), "Invalid document name")
		return
	}

	ctx := withSession(r, sess.Id())
	_, err = handlerInstance.service.Rag.RemoveDocument(ctx, sess, name)
	switch {
	case errors.Is(err, rag.ErrDocumentNotFound):
		WriteErrorResponse(w, http.StatusNotFound, sess.Id(), "Document not found")
		return
	case errors.Is(err, rag.ErrSessionCleared):
		WriteErrorResponse(w, http.StatusConflict, sess.Id(), "Session was cleared")
		return
	case err != nil:
		logRH.WithContext(ctx).Error("Could not remove document", "document", name, "error", err)
		WriteErrorResponse(w, http.StatusInternalServerError, sess.Id(), "Could not remove document")
		return
	}
	writeJsonResponse(w, http.StatusOK, adapter.ToDocumentsResponse(sess.Info()))
}

func sessionOr404(w http.ResponseWriter, r *http.Request) (*rag.Session, bool) {
	sessionId := utils.GetChiURLParam(r, "sessionId")
	sess, ok := lookupSession(sessionId)
	if !ok {
		WriteErrorResponse(w, http.StatusNotFound, sessionId, "Session not found")
	}
	return sess, ok
}
