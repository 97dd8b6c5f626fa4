package ingest

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/akolanti/PDFChat/internal/adapter/utils"
	"github.com/akolanti/PDFChat/internal/domain/commonModels"
)

var ErrChunking = errors.New("invalid chunking configuration")

//splitter

// Separators ordered from "best" to "worst" for semantic meaning
var defaultSeparators = []string{"\n\n", "\n", " ", ""}

// Splitter cuts text into chunks of at most size runes. It tries the coarsest
// separator first and only recurses into finer ones for pieces that are still
// too long. Separators stay attached to the start of the piece that follows.
type Splitter struct {
	size       int
	overlap    int
	separators []string
}

func NewSplitter(size, overlap int) (*Splitter, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: size must be positive, got %d", ErrChunking, size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("%w: overlap must be in [0, %d), got %d", ErrChunking, size, overlap)
	}
	return &Splitter{size: size, overlap: overlap, separators: defaultSeparators}, nil
}

// Split never fails on content; whitespace-only chunks are dropped.
func (s *Splitter) Split(text string) []string {
	return s.splitRecursive(text, s.separators)
}

// Chunk splits text and tags every kept chunk with its source metadata.
func (s *Splitter) Chunk(text, source, documentId string) []commonModels.Segment {
	chunks := s.Split(text)
	segments := make([]commonModels.Segment, 0, len(chunks))
	for i, c := range chunks {
		segments = append(segments, commonModels.Segment{
			Id:            utils.GetNewUUID(),
			DocumentId:    documentId,
			Source:        source,
			Text:          c,
			Position:      i,
			TotalSegments: len(chunks),
			SizeChars:     utf8.RuneCountInString(c),
		})
	}
	return segments
}

func (s *Splitter) splitRecursive(text string, separators []string) []string {
	separator := separators[len(separators)-1]
	var finer []string
	for i, sep := range separators {
		if sep == "" {
			separator = sep
			break
		}
		if strings.Contains(text, sep) {
			separator = sep
			finer = separators[i+1:]
			break
		}
	}

	var final, good []string
	for _, piece := range splitKeepingSeparator(text, separator) {
		if runeLen(piece) < s.size {
			good = append(good, piece)
			continue
		}
		if len(good) > 0 {
			final = append(final, s.merge(good)...)
			good = nil
		}
		if len(finer) == 0 {
			if c := strings.TrimSpace(piece); c != "" {
				final = append(final, c)
			}
		} else {
			final = append(final, s.splitRecursive(piece, finer)...)
		}
	}
	if len(good) > 0 {
		final = append(final, s.merge(good)...)
	}
	return final
}

// merge packs consecutive pieces into chunks, carrying up to overlap runes of
// trailing pieces into the next chunk.
func (s *Splitter) merge(pieces []string) []string {
	var (
		chunks  []string
		current []string
		total   int
	)
	for _, p := range pieces {
		l := runeLen(p)
		if total+l > s.size && len(current) > 0 {
			if c := joinChunk(current); c != "" {
				chunks = append(chunks, c)
			}
			for total > s.overlap || (total+l > s.size && total > 0) {
				total -= runeLen(current[0])
				current = current[1:]
			}
		}
		current = append(current, p)
		total += l
	}
	if c := joinChunk(current); c != "" {
		chunks = append(chunks, c)
	}
	return chunks
}

func splitKeepingSeparator(text, separator string) []string {
	var parts []string
	if separator == "" {
		parts = make([]string, 0, utf8.RuneCountInString(text))
		for _, r := range text {
			parts = append(parts, string(r))
		}
		return parts
	}

	raw := strings.Split(text, separator)
	parts = make([]string, 0, len(raw))
	if raw[0] != "" {
		parts = append(parts, raw[0])
	}
	for _, r := range raw[1:] {
		parts = append(parts, separator+r)
	}
	return parts
}

func joinChunk(pieces []string) string {
	return strings.TrimSpace(strings.Join(pieces, ""))
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}

var pdfMagic = []byte("%PDF-")

// DetectDocType accepts a file as PDF when the name carries the .pdf
// extension and, if a header is given, the bytes start with the PDF marker.
func DetectDocType(name string, header []byte) commonModels.DocType {
	if strings.ToLower(filepath.Ext(name)) != ".pdf" {
		return commonModels.ERR
	}
	if header != nil && !bytes.HasPrefix(header, pdfMagic) {
		return commonModels.ERR
	}
	return commonModels.PDF
}
