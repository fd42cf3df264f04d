package engine

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"

	"github.com/blevesearch/bleve"
)

// pageChunk is one indexed slice of a fetched page.
type pageChunk struct {
	DocID string `json:"doc_id"`
	URL   string `json:"url"`
	Title string `json:"title"`
	Text  string `json:"text"`
}

// Notebook is the per-execution scratch index of fetched page text. Pages are
// chunked and indexed in a memory-only bleve index so the summarize step can
// pull back the fragments most relevant to the scout's queries instead of
// stuffing whole pages into the prompt.
type Notebook struct {
	index bleve.Index
	meta  map[string]pageChunk
	mu    sync.RWMutex
}

func NewNotebook() (*Notebook, error) {
	index, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return nil, err
	}
	return &Notebook{index: index, meta: make(map[string]pageChunk)}, nil
}

// Add chunks and indexes one page of text.
func (n *Notebook) Add(url, title, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	sum := sha1.Sum([]byte(url))
	hash := hex.EncodeToString(sum[:])
	for i, part := range makeChunks(text, 1000, 200) {
		chunk := pageChunk{
			DocID: fmt.Sprintf("%s#%03d", hash, i),
			URL:   url,
			Title: title,
			Text:  part,
		}
		if err := n.index.Index(chunk.DocID, chunk); err != nil {
			return err
		}
		n.meta[chunk.DocID] = chunk
	}
	return nil
}

// Recall returns up to k chunks matching the query, best first.
func (n *Notebook) Recall(q string, k int) []pageChunk {
	n.mu.RLock()
	defer n.mu.RUnlock()
	query := bleve.NewQueryStringQuery(q)
	searchReq := bleve.NewSearchRequestOptions(query, k, 0, false)
	res, err := n.index.Search(searchReq)
	if err != nil {
		return nil
	}
	var out []pageChunk
	for _, hit := range res.Hits {
		if c, ok := n.meta[hit.ID]; ok {
			out = append(out, c)
		}
	}
	return out
}

// Close releases the in-memory index.
func (n *Notebook) Close() error { return n.index.Close() }

func makeChunks(text string, approx, overlap int) []string {
	if len(text) <= approx {
		return []string{text}
	}
	var chunks []string
	for start := 0; start < len(text); {
		end := start + approx
		if end > len(text) {
			end = len(text)
		}
		chunks = append(chunks, text[start:end])
		if end == len(text) {
			break
		}
		start = end - overlap
	}
	return chunks
}
