package ingestion

import (
	"fmt"
	"maps"
	"strconv"

	"github.com/google/uuid"
	"github.com/tmc/langchaingo/textsplitter"

	"github.com/54b3r/docqa-go/internal/rag"
)

const (
	// DefaultChunkSize is the maximum chunk length in runes.
	DefaultChunkSize = 1000
	// DefaultChunkOverlap is the number of runes shared by neighbouring chunks.
	DefaultChunkOverlap = 200
)

// separators are tried in order, coarsest first.
var separators = []string{"\n\n", "\n", " ", ""}

// Splitter cuts page text into overlapping chunks with a recursive
// character splitter.
type Splitter struct {
	inner textsplitter.RecursiveCharacter
}

// NewSplitter returns a Splitter producing chunks of at most size runes that
// overlap their predecessor by up to overlap runes.
func NewSplitter(size, overlap int) (*Splitter, error) {
	if size <= 0 {
		return nil, fmt.Errorf("ingestion: chunk size must be positive, got %d", size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("ingestion: chunk overlap must be in [0, %d), got %d", size, overlap)
	}
	return &Splitter{
		inner: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(size),
			textsplitter.WithChunkOverlap(overlap),
			textsplitter.WithSeparators(separators),
		),
	}, nil
}

// Split returns the chunks of text in document order.
func (s *Splitter) Split(text string) ([]string, error) {
	chunks, err := s.inner.SplitText(text)
	if err != nil {
		return nil, fmt.Errorf("ingestion: split: %w", err)
	}
	out := chunks[:0]
	for _, c := range chunks {
		if c != "" {
			out = append(out, c)
		}
	}
	return out, nil
}

// SplitPages splits every page and returns the chunks as documents. Each
// chunk carries its page's metadata plus chunk_index, and a deterministic ID
// derived from the page URL and the chunk position.
func (s *Splitter) SplitPages(pages []Page) ([]rag.Document, error) {
	var docs []rag.Document
	for _, p := range pages {
		chunks, err := s.Split(p.Text)
		if err != nil {
			return nil, fmt.Errorf("ingestion: split %s: %w", p.URL, err)
		}
		for i, c := range chunks {
			meta := maps.Clone(p.Metadata)
			if meta == nil {
				meta = make(map[string]string, 1)
			}
			meta["chunk_index"] = strconv.Itoa(i)
			docs = append(docs, rag.Document{
				ID:       chunkID(p.URL, i),
				Content:  c,
				Source:   p.URL,
				Metadata: meta,
			})
		}
	}
	return docs, nil
}

// chunkID returns a name-based UUID (v5) for the chunk at index of sourceURL,
// so re-ingesting the same page yields the same IDs.
func chunkID(sourceURL string, index int) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(sourceURL+"#"+strconv.Itoa(index))).String()
}
