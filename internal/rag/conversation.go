package rag

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/akolanti/PDFChat/internal/domain/commonModels"
	"github.com/akolanti/PDFChat/internal/rag/vectorDB"
)

// ErrSessionCleared is returned when a document change raced with Clear and
// was dropped.
var ErrSessionCleared = errors.New("session was cleared during the operation")

type State string

const (
	StateEmpty   State = "empty"
	StateIndexed State = "indexed"
)

// Session is the conversation state of one user: the accumulated corpus, its
// vectors, the current index and the chat history. The index is immutable and
// replaced wholesale, so readers take a snapshot and search without the lock.
type Session struct {
	id        string
	createdAt time.Time

	// writeMu serialises corpus changes; mu guards the fields below.
	writeMu sync.Mutex
	mu      sync.RWMutex

	corpus  []commonModels.Segment
	vectors [][]float32
	index   *vectorDB.FlatIndex
	history []commonModels.Turn

	// generation moves on Clear, revision on every corpus change and epoch
	// whenever the history is reset.
	generation uint64
	revision   uint64
	epoch      uint64

	lastActive atomic.Int64
}

type DocumentInfo struct {
	Name     string `json:"name"`
	Segments int    `json:"segments"`
}

type SessionInfo struct {
	SessionId  string         `json:"session_id"`
	State      State          `json:"state"`
	CorpusSize int            `json:"corpus_size"`
	IndexReady bool           `json:"index_ready"`
	Turns      int            `json:"turns"`
	Documents  []DocumentInfo `json:"documents"`
	CreatedAt  time.Time      `json:"created_at"`
	LastActive time.Time      `json:"last_active"`
}

func NewSession(id string) *Session {
	s := &Session{id: id, createdAt: time.Now()}
	s.Touch()
	return s
}

func (s *Session) Id() string {
	return s.id
}

func (s *Session) Touch() {
	s.lastActive.Store(time.Now().UnixNano())
}

func (s *Session) LastActive() time.Time {
	return time.Unix(0, s.lastActive.Load())
}

func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stateLocked()
}

func (s *Session) stateLocked() State {
	if len(s.corpus) == 0 {
		return StateEmpty
	}
	return StateIndexed
}

func (s *Session) CorpusSize() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.corpus)
}

func (s *Session) IndexReady() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.Len() > 0
}

func (s *Session) History() []commonModels.Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]commonModels.Turn(nil), s.history...)
}

// Documents lists the sources in the corpus in upload order.
func (s *Session) Documents() []DocumentInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return documentsOf(s.corpus)
}

func (s *Session) Info() SessionInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return SessionInfo{
		SessionId:  s.id,
		State:      s.stateLocked(),
		CorpusSize: len(s.corpus),
		IndexReady: s.index.Len() > 0,
		Turns:      len(s.history),
		Documents:  documentsOf(s.corpus),
		CreatedAt:  s.createdAt,
		LastActive: s.LastActive(),
	}
}

func documentsOf(corpus []commonModels.Segment) []DocumentInfo {
	docs := make([]DocumentInfo, 0)
	at := make(map[string]int)
	for _, seg := range corpus {
		i, ok := at[seg.Source]
		if !ok {
			i = len(docs)
			at[seg.Source] = i
			docs = append(docs, DocumentInfo{Name: seg.Source})
		}
		docs[i].Segments++
	}
	return docs
}

type snapshot struct {
	index    *vectorDB.FlatIndex
	history  []commonModels.Turn
	revision uint64
	epoch    uint64
	empty    bool
}

func (s *Session) snapshot() snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshot{
		index:    s.index,
		history:  append([]commonModels.Turn(nil), s.history...),
		revision: s.revision,
		epoch:    s.epoch,
		empty:    len(s.corpus) == 0,
	}
}

// corpusSnapshot returns the corpus and vectors for a rebuild. The caller must
// hold writeMu, so the slices cannot change underneath it.
func (s *Session) corpusSnapshot() ([]commonModels.Segment, [][]float32, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.corpus, s.vectors, s.generation
}

// swap installs a rebuilt corpus unless a Clear happened since generation was
// read.
func (s *Session) swap(generation uint64, corpus []commonModels.Segment, vectors [][]float32, index *vectorDB.FlatIndex) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != generation {
		return ErrSessionCleared
	}
	s.corpus = corpus
	s.vectors = vectors
	s.index = index
	s.revision++
	return nil
}

// appendTurns records a question and its answer together. Turns from before
// the last history reset are dropped.
func (s *Session) appendTurns(epoch uint64, turns ...commonModels.Turn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch {
		return false
	}
	s.history = append(s.history, turns...)
	return true
}

func (s *Session) clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.corpus = nil
	s.vectors = nil
	s.index = nil
	s.history = nil
	s.generation++
	s.revision++
	s.epoch++
}

// clearHistory forgets the conversation but keeps the corpus and its index.
func (s *Session) clearHistory() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	dropped := len(s.history)
	s.history = nil
	s.epoch++
	return dropped
}
