package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"github.com/akolanti/PDFChat/internal/adapter"
	"github.com/akolanti/PDFChat/internal/adapter/utils"
	"github.com/akolanti/PDFChat/internal/config"
	"github.com/akolanti/PDFChat/internal/domain/jobModel"
)

func writeJsonResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Log the error but can't send a clean status code now
		logRH.Error("Error encoding response", "error", err)
	}
}

func traceOf(ctx context.Context) string {
	trace, _ := ctx.Value(config.TRACE_ID_KEY).(string)
	return trace
}

func validateContext(ctx context.Context) bool {
	if err := ctx.Err(); err != nil {
		logRH.WithContext(ctx).Warn("context error", "error", err)
		return false
	}
	return true
}

// withSession tags ctx with the session id for downstream logging.
func withSession(r *http.Request, sessionId string) context.Context {
	return context.WithValue(r.Context(), config.SESSION_ID_KEY, sessionId)
}

func WriteErrorResponse(w http.ResponseWriter, httpCode int, id string, error string) {
	writeJsonResponse(w, httpCode, adapter.BadRequest(id, error, httpCode))
}

func getTargetDirectory() (string, string) {
	root, err := os.Getwd()
	if err != nil {
		return "", "Storage Error"
	}

	targetDir := filepath.Join(root, config.TemporaryDataDir)
	if err := os.MkdirAll(targetDir, 0750); err != nil {
		return "", "Storage Error"
	}
	return targetDir, ""
}

// spoolUploads copies every named part to targetDir. On failure the files
// written so far are removed.
func spoolUploads(targetDir string, headers []*multipart.FileHeader) ([]jobModel.IngestFile, error) {
	spooled := make([]jobModel.IngestFile, 0, len(headers))
	cleanup := func() {
		for _, f := range spooled {
			_ = os.Remove(f.Path)
		}
	}

	for _, header := range headers {
		if header.Filename == "" {
			continue
		}
		name := filepath.Base(header.Filename)
		path := filepath.Join(targetDir, fmt.Sprintf("%s-%s", utils.GetNewUUID(), name))
		size, err := copyPart(header, path)
		if err != nil {
			_ = os.Remove(path)
			cleanup()
			return nil, err
		}
		spooled = append(spooled, jobModel.IngestFile{Name: name, Path: path, Size: size})
	}
	return spooled, nil
}

func copyPart(header *multipart.FileHeader, path string) (int64, error) {
	src, err := header.Open()
	if err != nil {
		return 0, err
	}
	defer src.Close()

	dst, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(dst, src)
	if closeErr := dst.Close(); err == nil {
		err = closeErr
	}
	return n, err
}

// processNewJobData queues the job and answers 202, or 503 when the queue
// stays full for the life of the request.
func processNewJobData(w http.ResponseWriter, request *http.Request, newJob newJobData) bool {
	newJob.id = utils.GetNewUUID()
	newJob.traceId = traceOf(request.Context())

	if err := CreateNewJob(request.Context(), newJob); err != nil {
		logRH.WithContext(request.Context()).Warn("Job not queued", "error", err)
		WriteErrorResponse(w, http.StatusServiceUnavailable, newJob.id, "Server busy, try again")
		return false
	}
	writeJsonResponse(w, http.StatusAccepted, adapter.ToInitJobResponse(newJob.id))
	return true
}

func removeSpooled(path string) error {
	err := os.Remove(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
