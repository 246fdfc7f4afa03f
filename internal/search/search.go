package search

// Result is a single document hit returned to the caller.
type Result struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Snippet   string `json:"snippet"`
	Category  string `json:"category"`
	ProjectID string `json:"projectId,omitempty"`
}

// Query describes a search request. Category and ProjectID are the
// caller-supplied filters; access restriction is handled by the backend
// (Postgres) or by per-object re-verification in the caller (Meilisearch).
type Query struct {
	Text      string
	Category  string
	ProjectID string
	Limit     int
	Offset    int
}

// Response is the envelope returned by the search endpoint. Unverified hits
// came from an index that knows nothing about access grants; the caller must
// re-check each one against the policy evaluator before returning it.
type Response struct {
	Results    []Result `json:"results"`
	Total      int      `json:"total"`
	Query      string   `json:"query"`
	Unverified bool     `json:"-"`
}

// DocumentRecord is the data we index for a document.
type DocumentRecord struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
	ProjectID   string `json:"projectId"`
	Status      string `json:"status"`
}
