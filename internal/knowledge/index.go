package knowledge

import (
	"sync"

	"github.com/blevesearch/bleve"
	"github.com/google/uuid"
)

// Item is one piece of gathered knowledge: a search snippet, a visited
// page, or a reflected sub-answer.
type Item struct {
	DocID   string `json:"doc_id"`
	Source  string `json:"source"`
	Title   string `json:"title"`
	URL     string `json:"url"`
	Content string `json:"content"`
}

// Hit is one scored result of a knowledge lookup.
type Hit struct {
	Item
	Score float64 `json:"score"`
	Rank  int     `json:"rank"`
}

// Index is a per-task in-memory BM25 index over everything the loop has
// gathered so far. The loop writes, the answer step reads.
type Index struct {
	mu    sync.RWMutex
	bleve bleve.Index
	meta  map[string]Item
}

func New() (*Index, error) {
	index, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return nil, err
	}
	return &Index{bleve: index, meta: make(map[string]Item)}, nil
}

// Add indexes an item, assigning a doc ID when the caller left it empty.
func (ix *Index) Add(item Item) (string, error) {
	if item.DocID == "" {
		item.DocID = uuid.NewString()
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.meta[item.DocID] = item
	if err := ix.bleve.Index(item.DocID, item); err != nil {
		delete(ix.meta, item.DocID)
		return "", err
	}
	return item.DocID, nil
}

// Search runs a BM25 lookup and returns at most k hits.
func (ix *Index) Search(q string, k int) ([]Hit, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	query := bleve.NewQueryStringQuery(q)
	searchReq := bleve.NewSearchRequestOptions(query, k*3, 0, false)
	res, err := ix.bleve.Search(searchReq)
	if err != nil {
		return nil, err
	}
	var out []Hit
	for i, hit := range res.Hits {
		item, ok := ix.meta[hit.ID]
		if !ok {
			continue
		}
		out = append(out, Hit{Item: item, Score: hit.Score, Rank: i + 1})
		if len(out) >= k {
			break
		}
	}
	return out, nil
}

// Items returns everything indexed so far, unordered.
func (ix *Index) Items() []Item {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	out := make([]Item, 0, len(ix.meta))
	for _, item := range ix.meta {
		out = append(out, item)
	}
	return out
}

func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.meta)
}

func (ix *Index) Close() error {
	return ix.bleve.Close()
}
