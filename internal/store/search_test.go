package store

import "testing"

func mustIndex(t *testing.T) *SummaryIndex {
	t.Helper()
	si, err := NewSummaryIndex()
	if err != nil {
		t.Fatalf("new index: %v", err)
	}
	return si
}

func TestSummaryIndexSearchResolvesRows(t *testing.T) {
	si := mustIndex(t)

	if err := si.Add(SummaryRecord{
		ID:       "s-1",
		Ticker:   "TSLA",
		Industry: "autos",
		Headline: "Parking density rose at the Austin plant",
		Bullets:  []string{"NDVI fell around the new lot"},
	}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := si.Add(SummaryRecord{
		ID:       "s-2",
		Ticker:   "CAT",
		Industry: "machinery",
		Headline: "Yard inventory stable quarter over quarter",
		Bullets:  []string{"No visible change at the Peoria yard"},
	}); err != nil {
		t.Fatalf("add: %v", err)
	}

	hits, err := si.Search("parking", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("expected 1 hit, got %d", len(hits))
	}
	if hits[0].ID != "s-1" || hits[0].Summary.Ticker != "TSLA" {
		t.Fatalf("unexpected hit %+v", hits[0])
	}
	if hits[0].Score <= 0 {
		t.Fatalf("expected positive score, got %v", hits[0].Score)
	}

	hits, err = si.Search("peoria", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) != 1 || hits[0].ID != "s-2" {
		t.Fatalf("bullet text must be searchable, got %+v", hits)
	}
}

func TestSummaryIndexSearchLimit(t *testing.T) {
	si := mustIndex(t)
	for _, id := range []string{"a", "b", "c"} {
		if err := si.Add(SummaryRecord{ID: id, Ticker: "DE", Headline: "harvest equipment utilization"}); err != nil {
			t.Fatalf("add %s: %v", id, err)
		}
	}

	hits, err := si.Search("harvest", 2)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected limit of 2 hits, got %d", len(hits))
	}
}

func TestSummaryIndexAddRequiresID(t *testing.T) {
	si := mustIndex(t)
	if err := si.Add(SummaryRecord{Ticker: "TSLA"}); err == nil {
		t.Fatalf("expected error for missing id")
	}
}

func TestSummaryIndexRebuildReplaces(t *testing.T) {
	si := mustIndex(t)
	if err := si.Add(SummaryRecord{ID: "old", Ticker: "TSLA", Headline: "gigafactory expansion"}); err != nil {
		t.Fatalf("add: %v", err)
	}

	err := si.Rebuild([]SummaryRecord{
		{ID: "new", Ticker: "CAT", Headline: "smelter heat signatures"},
	})
	if err != nil {
		t.Fatalf("rebuild: %v", err)
	}

	hits, err := si.Search("gigafactory", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) != 0 {
		t.Fatalf("rebuild must drop stale entries, got %+v", hits)
	}

	hits, err = si.Search("smelter", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) != 1 || hits[0].ID != "new" {
		t.Fatalf("rebuilt rows must be searchable, got %+v", hits)
	}
}
