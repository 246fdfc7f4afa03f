package search

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync/atomic"
	"time"

	meili "github.com/meilisearch/meilisearch-go"
)

const idxDocuments = "sitebook_documents"

// Meili indexes document metadata in Meilisearch. The index carries no access
// grants, so its hits are always returned unverified.
type Meili struct {
	client  meili.ServiceManager
	healthy atomic.Bool
	done    chan struct{}
}

// NewMeili creates a Meilisearch client and configures the document index.
// The caller should proceed without it if the initial connection fails.
func NewMeili(url, apiKey string) *Meili {
	client := meili.New(url, meili.WithAPIKey(apiKey))

	m := &Meili{
		client: client,
		done:   make(chan struct{}),
	}

	if _, err := client.Health(); err != nil {
		log.Printf("search: meilisearch unavailable at %s: %v", url, err)
		m.healthy.Store(false)
	} else {
		m.healthy.Store(true)
		m.configureIndex()
	}

	go m.healthLoop()
	return m
}

func (m *Meili) configureIndex() {
	if _, err := m.client.CreateIndex(&meili.IndexConfig{
		Uid:        idxDocuments,
		PrimaryKey: "id",
	}); err != nil {
		log.Printf("search: create index %s (may already exist): %v", idxDocuments, err)
	}

	index := m.client.Index(idxDocuments)
	filterable := []interface{}{"category", "projectId", "status"}
	if _, err := index.UpdateFilterableAttributes(&filterable); err != nil {
		log.Printf("search: update filterable attrs: %v", err)
	}
	searchable := []string{"name", "description"}
	if _, err := index.UpdateSearchableAttributes(&searchable); err != nil {
		log.Printf("search: update searchable attrs: %v", err)
	}
}

func (m *Meili) healthLoop() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			_, err := m.client.Health()
			wasHealthy := m.healthy.Load()
			m.healthy.Store(err == nil)
			if err == nil && !wasHealthy {
				log.Println("search: meilisearch recovered, reconfiguring index")
				m.configureIndex()
			}
		}
	}
}

// Close stops the background health monitor.
func (m *Meili) Close() {
	close(m.done)
}

// Healthy reports whether Meilisearch is reachable.
func (m *Meili) Healthy() bool {
	return m.healthy.Load()
}

// Search queries the document index.
func (m *Meili) Search(q Query) ([]Result, int, error) {
	if !m.healthy.Load() {
		return nil, 0, fmt.Errorf("meilisearch unhealthy")
	}

	limit := int64(q.Limit)
	if limit == 0 {
		limit = 20
	}

	sr := &meili.SearchRequest{
		Limit:                 limit,
		Offset:                int64(q.Offset),
		AttributesToHighlight: []string{"*"},
		HighlightPreTag:       "<mark>",
		HighlightPostTag:      "</mark>",
	}

	var filters []string
	if q.Category != "" {
		filters = append(filters, fmt.Sprintf("category = %q", q.Category))
	}
	if q.ProjectID != "" {
		filters = append(filters, fmt.Sprintf("projectId = %q", q.ProjectID))
	}
	if len(filters) > 0 {
		sr.Filter = filters
	}

	resp, err := m.client.Index(idxDocuments).Search(q.Text, sr)
	if err != nil {
		m.healthy.Store(false)
		return nil, 0, fmt.Errorf("meilisearch search: %w", err)
	}

	results := make([]Result, 0, len(resp.Hits))
	for _, hit := range resp.Hits {
		results = append(results, hitToResult(hit))
	}
	return results, int(resp.EstimatedTotalHits), nil
}

// IndexDocument upserts one document record.
func (m *Meili) IndexDocument(doc DocumentRecord) error {
	if _, err := m.client.Index(idxDocuments).AddDocuments([]DocumentRecord{doc}, nil); err != nil {
		return fmt.Errorf("index document %s: %w", doc.ID, err)
	}
	return nil
}

// IndexDocuments bulk-indexes document records.
func (m *Meili) IndexDocuments(docs []DocumentRecord) error {
	if _, err := m.client.Index(idxDocuments).AddDocuments(docs, nil); err != nil {
		return fmt.Errorf("index documents: %w", err)
	}
	return nil
}

// DeleteDocument removes a document from the index.
func (m *Meili) DeleteDocument(id string) error {
	if _, err := m.client.Index(idxDocuments).DeleteDocument(id, nil); err != nil {
		return fmt.Errorf("delete document %s from index: %w", id, err)
	}
	return nil
}

func hitToResult(hit meili.Hit) Result {
	return Result{
		ID:        decodeString(hit, "id"),
		Name:      firstNonBlank(decodeFormattedString(hit, "name"), decodeString(hit, "name")),
		Snippet:   firstNonBlank(decodeFormattedString(hit, "description"), decodeString(hit, "description")),
		Category:  decodeString(hit, "category"),
		ProjectID: decodeString(hit, "projectId"),
	}
}

func decodeString(hit meili.Hit, key string) string {
	raw, ok := hit[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return ""
}

func decodeFormattedString(hit meili.Hit, key string) string {
	raw, ok := hit["_formatted"]
	if !ok {
		return ""
	}
	var formatted map[string]string
	if err := json.Unmarshal(raw, &formatted); err != nil {
		return ""
	}
	return strings.TrimSpace(formatted[key])
}

func firstNonBlank(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
