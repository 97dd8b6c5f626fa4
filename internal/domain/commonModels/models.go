package commonModels

import "time"

type Document struct {
	Id                  string    `json:"source_doc_id"`
	Name                string    `json:"doc_name"`
	LastIngestTimestamp time.Time `json:"ingested_at"`
	ContentType         DocType   `json:"contentType"`
	TextLength          int       `json:"text_length"`
	ChunkCount          int       `json:"chunk_count"`
}

// Segment is a bounded span of document text. Position is the ordinal among
// the kept segments of Source; SizeChars counts runes.
type Segment struct {
	Id            string `json:"chunk_id"`
	DocumentId    string `json:"source_doc_id"`
	Source        string `json:"source"`
	Text          string `json:"content"`
	Position      int    `json:"position"`
	TotalSegments int    `json:"total_segments"`
	SizeChars     int    `json:"size_chars"`
}

type DocType string

var PDF DocType = "PDF"
var ERR DocType = "ERROR"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Turn struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

type FileReport struct {
	FileName   string `json:"file_name"`
	Processed  bool   `json:"processed"`
	ChunkCount int    `json:"chunk_count"`
	TextLength int    `json:"text_length,omitempty"`
	Error      string `json:"error,omitempty"`
}

type UploadReport struct {
	Files          []FileReport `json:"files"`
	FilesProcessed int          `json:"files_processed"`
	TotalChunks    int          `json:"total_chunks"`
	CorpusSize     int          `json:"corpus_size"`
	IndexReady     bool         `json:"index_ready"`
	Message        string       `json:"message"`
	Error          string       `json:"error,omitempty"`
}

// Reply is the outcome of one question. Grounded is false when no document
// context reached the model. Recorded is false when the turn pair was dropped
// because the history was reset while answering.
type Reply struct {
	Text      string    `json:"answer"`
	Timestamp time.Time `json:"answered_at"`
	Sources   []Segment `json:"sources,omitempty"`
	Grounded  bool      `json:"grounded"`
	Cached    bool      `json:"cached"`
	Recorded  bool      `json:"-"`
}
