package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/akolanti/PDFChat/internal/adapter/utils"
	"github.com/akolanti/PDFChat/internal/domain/commonModels"
	"github.com/akolanti/PDFChat/pkg/logger_i"
)

var ErrNoText = errors.New("no text could be extracted")

var logger = sync.OnceValue(func() *logger_i.Logger { return logger_i.NewLogger("Document Ingestion") })

// UploadFile is one already validated upload. Opening the bytes is the
// caller's job; the processor only sees a stream.
type UploadFile struct {
	Name   string
	Reader io.ReaderAt
	Size   int64
}

type Processor struct {
	splitter *Splitter
}

func NewProcessor(chunkSize, chunkOverlap int) (*Processor, error) {
	s, err := NewSplitter(chunkSize, chunkOverlap)
	if err != nil {
		return nil, err
	}
	return &Processor{splitter: s}, nil
}

// ProcessFile extracts and chunks a single file.
func (p *Processor) ProcessFile(f UploadFile) (commonModels.Document, []commonModels.Segment, error) {
	doc := commonModels.Document{
		Id:                  utils.GetNewUUID(),
		Name:                f.Name,
		LastIngestTimestamp: time.Now(),
		ContentType:         commonModels.PDF,
	}

	text, err := ExtractText(f.Reader, f.Size)
	if err != nil {
		return doc, nil, err
	}
	if strings.TrimSpace(text) == "" {
		return doc, nil, ErrNoText
	}

	segments := p.splitter.Chunk(text, f.Name, doc.Id)
	if len(segments) == 0 {
		return doc, nil, ErrNoText
	}
	doc.TextLength = utf8.RuneCountInString(text)
	doc.ChunkCount = len(segments)
	return doc, segments, nil
}

// ProcessBatch handles files in order. A failing file is reported and the
// rest of the batch continues.
func (p *Processor) ProcessBatch(ctx context.Context, files []UploadFile) ([]commonModels.Document, []commonModels.Segment, []commonModels.FileReport) {
	log := logger().WithContext(ctx)

	var (
		docs     []commonModels.Document
		segments []commonModels.Segment
	)
	reports := make([]commonModels.FileReport, 0, len(files))

	for _, f := range files {
		report := commonModels.FileReport{FileName: f.Name}
		if err := ctx.Err(); err != nil {
			report.Error = fmt.Sprintf("Error processing %s: %v", f.Name, err)
			reports = append(reports, report)
			continue
		}

		if msg := validate(f); msg != "" {
			log.Warn("Document rejected", "filename", f.Name, "reason", msg)
			report.Error = msg
			reports = append(reports, report)
			continue
		}

		log.Debug("Processing document", "filename", f.Name, "size", f.Size)
		doc, segs, err := p.ProcessFile(f)
		switch {
		case errors.Is(err, ErrNoText):
			report.Error = fmt.Sprintf("%s: No text could be extracted", f.Name)
		case err != nil:
			report.Error = fmt.Sprintf("Error processing %s: %v", f.Name, err)
		default:
			report.Processed = true
			report.ChunkCount = len(segs)
			report.TextLength = doc.TextLength
			docs = append(docs, doc)
			segments = append(segments, segs...)
		}
		if err != nil {
			log.Warn("Document rejected", "filename", f.Name, "error", err)
		}
		reports = append(reports, report)
	}
	return docs, segments, reports
}

// validate returns the user facing rejection for files that never reach the
// extractor, or "" when the file may be processed.
func validate(f UploadFile) string {
	if DetectDocType(f.Name, nil) != commonModels.PDF {
		return fmt.Sprintf("%s: Only PDF files are allowed", f.Name)
	}
	if f.Size <= 0 || f.Reader == nil {
		return fmt.Sprintf("%s: File is empty", f.Name)
	}
	header := make([]byte, len(pdfMagic))
	n, _ := f.Reader.ReadAt(header, 0)
	if DetectDocType(f.Name, header[:n]) != commonModels.PDF {
		return fmt.Sprintf("%s: Only PDF files are allowed", f.Name)
	}
	return ""
}
