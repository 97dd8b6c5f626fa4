package ingest

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/akolanti/PDFChat/internal/config"
	"github.com/dslipak/pdf"
)

var (
	ErrExtraction = errors.New("pdf extraction failed")
	ErrEncrypted  = fmt.Errorf("%w: document is encrypted", ErrExtraction)
)

// ExtractText returns the text of every page of the PDF in r, pages joined by
// a newline. Pages without text are skipped. An image-only PDF yields an
// empty or whitespace string and no error.
func ExtractText(r io.ReaderAt, size int64) (text string, err error) {
	if r == nil || size <= 0 {
		return "", fmt.Errorf("%w: empty input", ErrExtraction)
	}

	// the parser panics on some malformed xref tables
	defer func() {
		if rec := recover(); rec != nil {
			text = ""
			err = fmt.Errorf("%w: %v", ErrExtraction, rec)
		}
	}()

	reader, err := pdf.NewReader(r, size)
	if err != nil {
		if errors.Is(err, pdf.ErrInvalidPassword) {
			return "", ErrEncrypted
		}
		return "", fmt.Errorf("%w: %v", ErrExtraction, err)
	}

	numPages := reader.NumPage()
	logger().Debug("extractPDF", "number of pages", numPages)

	pages := make([]string, 0, numPages)
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			logger().Debug("extractPDF", "page value is null", i)
			continue
		}

		content, err := protectExtract(page, config.PageExtractTimeout)
		if err != nil {
			// Log warning but continue with other pages
			logger().Warn("Error parsing page content", "page", i, "error", err)
			continue
		}
		if strings.TrimSpace(content) == "" {
			continue
		}
		pages = append(pages, content)
	}
	return strings.Join(pages, "\n"), nil
}

func protectExtract(page pdf.Page, timeout time.Duration) (string, error) {
	type result struct {
		content string
		err     error
	}
	resChan := make(chan result, 1)

	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				resChan <- result{"", fmt.Errorf("page extraction panic: %v", rec)}
			}
		}()
		content, err := page.GetPlainText(nil)
		resChan <- result{content, err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case r := <-resChan:
		return r.content, r.err
	case <-timer.C:
		return "", errors.New("page extraction timed out")
	}
}
