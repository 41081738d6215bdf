package store

import (
	"fmt"
	"strings"
	"sync"

	"github.com/blevesearch/bleve"
)

// summaryDoc is the indexable projection of a summary row.
type summaryDoc struct {
	Ticker   string `json:"ticker"`
	Industry string `json:"industry"`
	Headline string `json:"headline"`
	Body     string `json:"body"`
}

// SearchHit is one scored match from the summary index.
type SearchHit struct {
	ID      string
	Score   float64
	Summary SummaryRecord
}

// SummaryIndex is an in-memory full-text index over stored summaries,
// rebuilt from recent rows at startup and updated on every save.
type SummaryIndex struct {
	mu    sync.RWMutex
	index bleve.Index
	meta  map[string]SummaryRecord
}

func NewSummaryIndex() (*SummaryIndex, error) {
	index, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return nil, err
	}
	return &SummaryIndex{index: index, meta: make(map[string]SummaryRecord)}, nil
}

func docFor(rec SummaryRecord) summaryDoc {
	return summaryDoc{
		Ticker:   rec.Ticker,
		Industry: rec.Industry,
		Headline: rec.Headline,
		Body:     strings.Join(rec.Bullets, " "),
	}
}

// Add indexes one summary keyed by its row id.
func (si *SummaryIndex) Add(rec SummaryRecord) error {
	if rec.ID == "" {
		return fmt.Errorf("summary id must be provided")
	}
	si.mu.Lock()
	defer si.mu.Unlock()
	si.meta[rec.ID] = rec
	return si.index.Index(rec.ID, docFor(rec))
}

// Search runs a query-string query and resolves hits back to their rows.
func (si *SummaryIndex) Search(q string, k int) ([]SearchHit, error) {
	if k <= 0 {
		k = 10
	}
	query := bleve.NewQueryStringQuery(q)
	searchReq := bleve.NewSearchRequestOptions(query, k, 0, false)

	si.mu.RLock()
	defer si.mu.RUnlock()
	res, err := si.index.Search(searchReq)
	if err != nil {
		return nil, err
	}
	var out []SearchHit
	for _, hit := range res.Hits {
		rec, ok := si.meta[hit.ID]
		if !ok {
			continue
		}
		out = append(out, SearchHit{ID: hit.ID, Score: hit.Score, Summary: rec})
	}
	return out, nil
}

// Rebuild replaces the index contents with the given rows.
func (si *SummaryIndex) Rebuild(recs []SummaryRecord) error {
	index, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return err
	}
	meta := make(map[string]SummaryRecord, len(recs))
	for _, rec := range recs {
		if rec.ID == "" {
			continue
		}
		meta[rec.ID] = rec
		if err := index.Index(rec.ID, docFor(rec)); err != nil {
			return err
		}
	}

	si.mu.Lock()
	defer si.mu.Unlock()
	old := si.index
	si.index = index
	si.meta = meta
	if old != nil {
		_ = old.Close()
	}
	return nil
}
