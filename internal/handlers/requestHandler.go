package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/akolanti/PDFChat/internal/adapter"
	"github.com/akolanti/PDFChat/internal/adapter/utils"
	"github.com/akolanti/PDFChat/internal/api"
	"github.com/akolanti/PDFChat/internal/config"
	"github.com/akolanti/PDFChat/internal/domain/jobModel"
	"github.com/akolanti/PDFChat/internal/worker"
	"github.com/akolanti/PDFChat/pkg/logger_i"
)

var logRH *logger_i.Logger

type newJobData struct {
	id               string
	sessionId        string
	message          string
	traceId          string
	isDocumentIngest bool
	files            []jobModel.IngestFile
}

func GetHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// ChatHandler godoc
// @Summary      Ask a question
// @Description  Queues a question against the session's documents and returns a job ID to track the answer.
// @Tags         Messaging
// @Accept       json
// @Produce      json
// @Param        sessionId  path      string               true  "Session ID"
// @Param        request    body      api.ChatRequest      true  "Question"
// @Success      202        {object}  api.InitJobResponse  "Job successfully created"
// @Failure      400        {object}  api.JobResponse      "Empty or malformed message"
// @Failure      404        {object}  api.JobResponse      "Session not found"
// @Security     BearerAuth
// @Router       /sessions/{sessionId}/chat [post]
func ChatHandler(w http.ResponseWriter, request *http.Request) {
	if !validateContext(request.Context()) {
		logRH.Warn("Invalid Context by request", "remote", request.RemoteAddr)
		return
	}

	sessionId := utils.GetChiURLParam(request, "sessionId")
	if _, ok := lookupSession(sessionId); !ok {
		WriteErrorResponse(w, http.StatusNotFound, sessionId, "Session not found")
		return
	}

	var requestData api.ChatRequest
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			logRH.Error("Couldn't close the Chat handler reader", "error", err)
		}
	}(request.Body)
	err := json.NewDecoder(request.Body).Decode(&requestData)
	if err != nil || strings.TrimSpace(requestData.Message) == "" {
		logRH.WithContext(request.Context()).Warn("Bad Chat Request", "error", err)
		WriteErrorResponse(w, http.StatusBadRequest, sessionId, "Bad Request")
		return
	}

	processNewJobData(w, request.WithContext(withSession(request, sessionId)), newJobData{
		sessionId: sessionId,
		message:   requestData.Message,
	})
}

// GetStatusHandler godoc
// @Summary      Get job status
// @Description  Retrieves the current status of a specific job using its ID.
// @Tags         Job Status
// @Accept       json
// @Produce      json
// @Param        id   path      string  true  "Job ID "
// @Success      200  {object}  api.JobResponse   "Successful retrieval of job status"
// @Failure      404  {object}  api.JobResponse   "Job not found (returns Error object within JobResponse)"
// @Security     BearerAuth
// @Router       /status/{id} [get]
func GetStatusHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r.Context()) {
		return
	}
	idString := utils.GetChiURLParam(r, "id")
	if idString == "" {
		WriteErrorResponse(w, http.StatusNotFound, idString, "Job not found")
		return
	}
	result, isFound := GetJobStatus(r.Context(), idString)
	if !isFound {
		WriteErrorResponse(w, http.StatusNotFound, idString, "Job not found")
		return
	}

	writeJsonResponse(w, http.StatusOK, adapter.ToAPIResponse(result))
}

// PostDocumentsHandler handles the uploading of PDF documents into a session.
// @Summary      Upload PDF documents
// @Description  Receives one or more PDFs via multipart/form-data, spools them and queues an ingestion job. Per-file errors are reported in the job result.
// @Tags         Ingestion
// @Accept       multipart/form-data
// @Produce      json
// @Param        sessionId  path      string  true  "Session ID"
// @Param        files      formData  file    true  "PDF files"
// @Success      202  {object}  api.InitJobResponse "Accepted - returns job id"
// @Failure      400  {object}  api.JobResponse "No files provided"
// @Failure      404  {object}  api.JobResponse "Session not found"
// @Failure      413  {object}  api.JobResponse "Upload larger than 32 MiB"
// @Failure      500  {object}  api.JobResponse "Storage or Write Error"
// @Security     BearerAuth
// @Router       /sessions/{sessionId}/documents [post]
func PostDocumentsHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r.Context()) {
		logRH.Warn("Invalid Context by request", "remote", r.RemoteAddr)
		return
	}

	sessionId := utils.GetChiURLParam(r, "sessionId")
	if _, ok := lookupSession(sessionId); !ok {
		WriteErrorResponse(w, http.StatusNotFound, sessionId, "Session not found")
		return
	}
	log := logRH.WithContext(withSession(r, sessionId))

	r.Body = http.MaxBytesReader(w, r.Body, config.MaxUploadSize)
	if err := r.ParseMultipartForm(config.MaxUploadSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			WriteErrorResponse(w, http.StatusRequestEntityTooLarge, sessionId, "File too large")
			return
		}
		WriteErrorResponse(w, http.StatusBadRequest, sessionId, "No files provided")
		return
	}
	defer func() {
		if err := r.MultipartForm.RemoveAll(); err != nil {
			log.Warn("Could not remove multipart temp files", "error", err)
		}
	}()

	headers := r.MultipartForm.File[config.UploadFormField]
	if len(headers) == 0 {
		WriteErrorResponse(w, http.StatusBadRequest, sessionId, "No files provided")
		return
	}

	targetDir, errString := getTargetDirectory()
	if errString != "" {
		log.Error("Couldn't get target directory", "err", errString)
		WriteErrorResponse(w, http.StatusInternalServerError, sessionId, errString)
		return
	}

	spooled, err := spoolUploads(targetDir, headers)
	if err != nil {
		log.Error("Could not spool upload", "error", err)
		WriteErrorResponse(w, http.StatusInternalServerError, sessionId, "Write error")
		return
	}
	if len(spooled) == 0 {
		WriteErrorResponse(w, http.StatusBadRequest, sessionId, "No files selected")
		return
	}

	log.Debug("Upload spooled", "files", len(spooled))
	queued := processNewJobData(w, r.WithContext(withSession(r, sessionId)), newJobData{
		sessionId:        sessionId,
		isDocumentIngest: true,
		files:            spooled,
	})
	if !queued {
		for _, f := range spooled {
			_ = removeSpooled(f.Path)
		}
	}
}

// HealthHandler godoc
// @Summary      Service health
// @Description  Reports which embedding provider was selected at startup and whether answer generation is configured, plus pool and session load.
// @Tags         Health
// @Produce      json
// @Success      200  {object}  api.HealthResponse
// @Router       /health [get]
func HealthHandler(w http.ResponseWriter, r *http.Request) {
	svc := handlerInstance.service
	res := api.HealthResponse{
		Status:         "ok",
		Embedding:      svc.Embedding,
		ActiveSessions: svc.Sessions.Len(),
		ActiveWorkers:  worker.ActiveWorkers(),
		QueuedJobs:     len(svc.JobChannel),
	}
	if svc.Rag != nil {
		res.EmbeddingAvailable = svc.Rag.EmbeddingAvailable()
		res.GenerationAvailable = svc.Rag.GenerationAvailable()
	}
	if !res.EmbeddingAvailable || !res.GenerationAvailable {
		res.Status = "degraded"
	}
	writeJsonResponse(w, http.StatusOK, res)
}
