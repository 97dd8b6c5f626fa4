package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/akolanti/PDFChat/internal/config"
	"github.com/akolanti/PDFChat/internal/domain/commonModels"
	"github.com/akolanti/PDFChat/internal/metrics"
	"github.com/akolanti/PDFChat/internal/rag/embedding"
	"github.com/akolanti/PDFChat/internal/rag/ingest"
	"github.com/akolanti/PDFChat/internal/rag/llm"
	"github.com/akolanti/PDFChat/internal/rag/vectorDB"
	"github.com/akolanti/PDFChat/pkg/logger_i"
)

var ErrDocumentNotFound = errors.New("document not found in session")

/*
The worker and the MCP server only see Service. The private service holds
the model clients and the optional answer cache, so tests swap them for
mocks through NewService without touching callers.
*/

// Service is the chat engine. Every call names the session it works on.
type Service interface {
	ProcessUpload(ctx context.Context, sess *Session, files []ingest.UploadFile) commonModels.UploadReport
	AddDocuments(ctx context.Context, sess *Session, segments []commonModels.Segment) (int, error)
	RemoveDocument(ctx context.Context, sess *Session, name string) (int, error)
	Ask(ctx context.Context, sess *Session, question string) commonModels.Reply
	Clear(ctx context.Context, sess *Session)
	ClearHistory(ctx context.Context, sess *Session)
	EmbeddingAvailable() bool
	GenerationAvailable() bool
}

type Options struct {
	TopK         int
	ChunkSize    int
	ChunkOverlap int
	Generator    GeneratorOptions
}

func OptionsFromSettings(settings *config.Settings) Options {
	return Options{
		TopK:         settings.Retrieval.TopK,
		ChunkSize:    settings.Chunking.Size,
		ChunkOverlap: settings.Chunking.Overlap,
		Generator: GeneratorOptions{
			SystemInstruction:  config.ModelContext,
			MaxContextSegments: settings.Retrieval.MaxContextSegments,
			MaxHistoryTurns:    settings.History.MaxTurns,
			MaxHistoryChars:    settings.History.MaxChars,
		},
	}
}

type service struct {
	embedder  embedding.Embedder
	generator *Generator
	cache     vectorDB.AnswerCache
	processor *ingest.Processor
	topK      int
	logger    *logger_i.Logger
}

// NewService wires the engine. embedder, provider and cache may each be nil;
// the engine then degrades instead of failing.
func NewService(em embedding.Embedder, provider llm.Provider, cache vectorDB.AnswerCache, opts Options) (Service, error) {
	processor, err := ingest.NewProcessor(opts.ChunkSize, opts.ChunkOverlap)
	if err != nil {
		return nil, err
	}
	if opts.TopK <= 0 {
		opts.TopK = config.DefaultTopK
	}
	return &service{
		embedder:  em,
		generator: NewGenerator(provider, opts.Generator),
		cache:     cache,
		processor: processor,
		topK:      opts.TopK,
		logger:    logger_i.NewLogger("RAG Service"),
	}, nil
}

func (s *service) EmbeddingAvailable() bool {
	return s.embedder != nil
}

func (s *service) GenerationAvailable() bool {
	return s.generator.Available()
}

func (s *service) ProcessUpload(ctx context.Context, sess *Session, files []ingest.UploadFile) commonModels.UploadReport {
	log := s.logger.WithContext(ctx).With("sessionId", sess.Id())
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("document_ingestion", time.Since(start)) }()
	sess.Touch()

	_, segments, reports := s.processor.ProcessBatch(ctx, files)
	report := commonModels.UploadReport{Files: reports}

	var errs []string
	for _, r := range reports {
		metrics.CaptureFileOutcome(r.Processed)
		if r.Processed {
			report.FilesProcessed++
			continue
		}
		errs = append(errs, r.Error)
	}

	if len(segments) > 0 {
		if _, err := s.AddDocuments(ctx, sess, segments); err != nil {
			log.Error("Indexing upload failed", "error", err, "segments", len(segments))
			for i := range report.Files {
				if report.Files[i].Processed {
					report.Files[i].Processed = false
					report.Files[i].ChunkCount = 0
					report.Files[i].Error = fmt.Sprintf("Error indexing %s: %v", report.Files[i].FileName, err)
				}
			}
			report.FilesProcessed = 0
			report.Error = err.Error()
			errs = append([]string{fmt.Sprintf("Error indexing documents: %v", err)}, errs...)
		} else {
			report.TotalChunks = len(segments)
		}
	}

	report.CorpusSize = sess.CorpusSize()
	report.IndexReady = sess.IndexReady()
	report.Message = uploadMessage(report.FilesProcessed, errs)
	log.Info("Upload processed", "files", len(files), "processed", report.FilesProcessed, "corpus", report.CorpusSize)
	return report
}

func uploadMessage(processed int, errs []string) string {
	shown := errs
	if len(shown) > 3 {
		shown = shown[:3]
	}
	switch {
	case processed > 0:
		msg := fmt.Sprintf("Successfully processed %d files with AI capabilities", processed)
		if len(errs) > 0 {
			msg += ". Errors: " + strings.Join(shown, "; ")
		}
		return msg
	case len(errs) > 0:
		return "Failed to process files: " + strings.Join(shown, "; ")
	default:
		return "No valid PDF files found"
	}
}

// AddDocuments embeds only the new segments, in one batch, and swaps in an
// index over the whole accumulated corpus. On failure the previous index
// stays in place. It returns the corpus size afterwards.
func (s *service) AddDocuments(ctx context.Context, sess *Session, segments []commonModels.Segment) (int, error) {
	if len(segments) == 0 {
		return sess.CorpusSize(), nil
	}
	if s.embedder == nil {
		return 0, embedding.ErrEmbeddingUnavailable
	}

	sess.writeMu.Lock()
	defer sess.writeMu.Unlock()

	corpus, vectors, generation := sess.corpusSnapshot()

	texts := make([]string, len(segments))
	for i, seg := range segments {
		texts[i] = seg.Text
	}
	newVectors, err := s.executeBatchEmbeddingStep(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embedding segments: %w", err)
	}
	if len(newVectors) != len(segments) {
		return 0, fmt.Errorf("%w: %d segments, %d vectors", vectorDB.ErrLengthMismatch, len(segments), len(newVectors))
	}

	allSegments := make([]commonModels.Segment, 0, len(corpus)+len(segments))
	allSegments = append(append(allSegments, corpus...), segments...)
	allVectors := make([][]float32, 0, len(vectors)+len(newVectors))
	allVectors = append(append(allVectors, vectors...), newVectors...)

	index, err := s.executeIndexBuildStep(allSegments, allVectors)
	if err != nil {
		return 0, err
	}
	if err := sess.swap(generation, allSegments, allVectors, index); err != nil {
		return 0, err
	}
	s.invalidateCache(ctx, sess.Id())
	return len(allSegments), nil
}

// RemoveDocument drops every segment of the named source and rebuilds the
// index from the stored vectors. No embedding call is made.
func (s *service) RemoveDocument(ctx context.Context, sess *Session, name string) (int, error) {
	sess.writeMu.Lock()
	defer sess.writeMu.Unlock()

	corpus, vectors, generation := sess.corpusSnapshot()
	keptSegments := make([]commonModels.Segment, 0, len(corpus))
	keptVectors := make([][]float32, 0, len(vectors))
	for i, seg := range corpus {
		if seg.Source == name {
			continue
		}
		keptSegments = append(keptSegments, seg)
		keptVectors = append(keptVectors, vectors[i])
	}
	if len(keptSegments) == len(corpus) {
		return len(corpus), fmt.Errorf("%w: %s", ErrDocumentNotFound, name)
	}

	index, err := s.executeIndexBuildStep(keptSegments, keptVectors)
	if err != nil {
		return 0, err
	}
	if err := sess.swap(generation, keptSegments, keptVectors, index); err != nil {
		return 0, err
	}
	s.invalidateCache(ctx, sess.Id())
	s.logger.WithContext(ctx).Info("Document removed", "sessionId", sess.Id(), "document", name, "corpus", len(keptSegments))
	return len(keptSegments), nil
}

// Ask never fails. Whatever it answers, placeholder or not, is recorded as a
// user and assistant turn pair unless the history was reset meanwhile.
func (s *service) Ask(ctx context.Context, sess *Session, question string) commonModels.Reply {
	log := s.logger.WithContext(ctx).With("sessionId", sess.Id())
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("ask", time.Since(start)) }()

	sess.Touch()
	snap := sess.snapshot()

	var reply commonModels.Reply
	if snap.empty {
		reply.Text = EmptyCorpusMessage
		metrics.CaptureAnswer("empty")
	} else {
		reply = s.answer(ctx, log, sess.Id(), snap, question)
	}
	reply.Timestamp = time.Now()

	reply.Recorded = sess.appendTurns(snap.epoch,
		commonModels.Turn{Role: commonModels.RoleUser, Content: question, Timestamp: start},
		commonModels.Turn{Role: commonModels.RoleAssistant, Content: reply.Text, Timestamp: reply.Timestamp},
	)
	if !reply.Recorded {
		log.Info("History reset while answering, turns dropped")
	}
	return reply
}

func (s *service) answer(ctx context.Context, log *logger_i.Logger, sessionId string, snap snapshot, question string) commonModels.Reply {
	if s.embedder == nil {
		metrics.CaptureAnswer("unavailable")
		return commonModels.Reply{Text: UnavailableMessage}
	}

	vec, err := s.executeEmbeddingStep(ctx, question)
	if err != nil {
		log.Error("EMBEDDING_FAILURE", "error", err)
		metrics.CaptureAnswer("unavailable")
		return commonModels.Reply{Text: ApologyMessage}
	}

	sources, err := s.executeVectorSearchStep(snap.index, vec)
	if err != nil {
		log.Error("VECTOR_SEARCH_FAILURE", "error", err)
		metrics.CaptureAnswer("unavailable")
		return commonModels.Reply{Text: ApologyMessage}
	}
	if len(sources) > s.generator.opts.MaxContextSegments {
		sources = sources[:s.generator.opts.MaxContextSegments]
	}

	// only opening questions go through the cache; a follow-up depends on the
	// exchange before it
	cacheable := len(snap.history) == 0
	scope := vectorDB.CacheScope{SessionId: sessionId, Revision: snap.revision}
	if cacheable {
		if cached, found := s.executeCacheCheckStep(ctx, log, scope, vec); found {
			metrics.CaptureAnswer("cached")
			return commonModels.Reply{Text: cached, Sources: sources, Grounded: len(sources) > 0, Cached: true}
		}
	}

	text, err := s.executeLLMStep(ctx, question, sources, snap.history)
	if err != nil {
		log.Error("LLM_GENERATION_FAILURE", "error", err)
		metrics.CaptureAnswer("unavailable")
		return commonModels.Reply{Text: text, Sources: sources}
	}

	if cacheable {
		s.executeCacheSaveStep(ctx, log, scope, vec, text)
	}
	metrics.CaptureAnswer("generated")
	return commonModels.Reply{Text: text, Sources: sources, Grounded: len(sources) > 0}
}

// Clear empties the session. Uploads or answers still in flight from before
// the clear are discarded when they finish.
func (s *service) Clear(ctx context.Context, sess *Session) {
	sess.clear()
	s.invalidateCache(ctx, sess.Id())
	s.logger.WithContext(ctx).Info("Session cleared", "sessionId", sess.Id())
}

// ClearHistory starts a new conversation over the same documents. Answers in
// flight from before the reset are returned but not recorded.
func (s *service) ClearHistory(ctx context.Context, sess *Session) {
	dropped := sess.clearHistory()
	sess.Touch()
	s.logger.WithContext(ctx).Info("Conversation reset", "sessionId", sess.Id(), "droppedTurns", dropped)
}
