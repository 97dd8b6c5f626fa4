package adapter

import (
	"fmt"
	"time"

	"github.com/akolanti/PDFChat/internal/api"
	"github.com/akolanti/PDFChat/internal/domain/commonModels"
	"github.com/akolanti/PDFChat/internal/domain/jobModel"
	"github.com/akolanti/PDFChat/internal/rag"
)

func ToInitJobResponse(id string) api.InitJobResponse {
	return api.InitJobResponse{
		Id:        id,
		StatusURL: fmt.Sprintf("/status/%s", id),
	}
}

func ToAPIResponse(job jobModel.Job) api.JobResponse {

	var errorPtr *api.JobOutgoingError
	if job.Error.Message != "" || job.Error.Code != 0 {
		errorPtr = &api.JobOutgoingError{
			Code:    job.Error.Code,
			Message: job.Error.Message,
			Retry:   job.Error.Retry,
		}
	}

	result := api.Result{
		Status:              string(job.Status),
		Step:                string(job.CurrentStep),
		RAGExternalResponse: ToRAGExternalStatus(job.JobPayload),
		Upload:              job.JobPayload.Upload,
	}

	return api.JobResponse{
		Id:        job.Id,
		SessionId: job.SessionId,
		StartTime: job.CreatedTime,
		EndTime:   job.EndTime,
		Error:     errorPtr,
		Result:    result,
	}
}

func ToRAGExternalStatus(ragData jobModel.JobPayload) *api.RAGResponse {
	if ragData.Answer == "" && len(ragData.Sources) == 0 {
		return nil
	}

	answeredAt := ""
	if !ragData.AnsweredAt.IsZero() {
		answeredAt = ragData.AnsweredAt.UTC().Format(time.RFC3339)
	}
	return &api.RAGResponse{
		Question:   ragData.Question,
		Answer:     ragData.Answer,
		AnsweredAt: answeredAt,
		Sources:    ragData.Sources,
		Grounded:   ragData.Grounded,
		Cached:     ragData.Cached,
	}
}

func ToHistoryResponse(sessionId string, turns []commonModels.Turn) api.HistoryResponse {
	out := api.HistoryResponse{SessionId: sessionId, Turns: make([]api.TurnResponse, 0, len(turns))}
	for _, t := range turns {
		out.Turns = append(out.Turns, api.TurnResponse{Role: string(t.Role), Content: t.Content, Timestamp: t.Timestamp})
	}
	return out
}

func ToDocumentsResponse(info rag.SessionInfo) api.DocumentsResponse {
	return api.DocumentsResponse{
		SessionId:  info.SessionId,
		CorpusSize: info.CorpusSize,
		Documents:  info.Documents,
	}
}

func BadRequest(id string, error string, code int) api.JobResponse {
	return api.JobResponse{
		Id: id,
		Result: api.Result{
			Status: string(api.JobStatusError),
		},
		Error: &api.JobOutgoingError{
			Code:    code,
			Message: error,
			Retry:   code >= 500 || code == 429,
		},
	}
}
