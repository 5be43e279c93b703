// Package match answers "which part of the script talks about this" queries.
// Section dialogue is indexed in an embedded chromem-go vector collection so
// that user questions can be routed to the most relevant scripted answer,
// e.g. when the flow engine reports a REQUEST_INFO turn.
package match

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"math"
	"strings"

	chromem "github.com/philippgille/chromem-go"

	"github.com/keshavmahale005/ScriptAgent-CHATBOT/internal/script"
)

const collectionName = "script-sections"

// embeddingDims is the hashed term-frequency vector width. Wide enough that
// section-sized texts rarely collide.
const embeddingDims = 256

// Result is one matched section with its similarity in [0,1].
type Result struct {
	Section    string  `json:"section"`
	Dialogue   string  `json:"dialogue"`
	Similarity float32 `json:"similarity"`
}

// Matcher indexes one parsed document. Build it once per script; queries are
// safe to run concurrently.
type Matcher struct {
	db         *chromem.DB
	collection *chromem.Collection
	indexed    int
}

// New builds a matcher over every section of the document that has dialogue.
func New(ctx context.Context, doc *script.Document) (*Matcher, error) {
	db := chromem.NewDB()
	col, err := db.GetOrCreateCollection(collectionName, nil, termFrequencyEmbedding)
	if err != nil {
		return nil, fmt.Errorf("failed to create collection: %w", err)
	}
	m := &Matcher{db: db, collection: col}

	var docs []chromem.Document
	for i, sec := range doc.Sections {
		if sec.Dialogue == "" {
			continue
		}
		docs = append(docs, chromem.Document{
			ID:      fmt.Sprintf("section-%d", i),
			Content: sec.Dialogue,
			Metadata: map[string]string{
				"section": sec.Name,
			},
		})
	}
	if len(docs) > 0 {
		if err := m.collection.AddDocuments(ctx, docs, 1); err != nil {
			return nil, fmt.Errorf("failed to index sections: %w", err)
		}
	}
	m.indexed = len(docs)
	slog.Debug("match.New: matcher built", "indexedSections", m.indexed)
	return m, nil
}

// Count reports how many sections were indexed.
func (m *Matcher) Count() int {
	return m.indexed
}

// Best returns the single most relevant section for the query, or false when
// the index is empty or nothing matched.
func (m *Matcher) Best(ctx context.Context, query string) (Result, bool) {
	results, err := m.Query(ctx, query, 1)
	if err != nil || len(results) == 0 {
		return Result{}, false
	}
	return results[0], true
}

// Query returns up to limit sections ranked by similarity to the query text.
func (m *Matcher) Query(ctx context.Context, query string, limit int) ([]Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	count := m.collection.Count()
	if count == 0 {
		return nil, nil
	}
	if limit <= 0 || limit > count {
		limit = count
	}
	hits, err := m.collection.Query(ctx, query, limit, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query sections: %w", err)
	}
	out := make([]Result, 0, len(hits))
	for _, h := range hits {
		out = append(out, Result{
			Section:    h.Metadata["section"],
			Dialogue:   h.Content,
			Similarity: h.Similarity,
		})
	}
	return out, nil
}

// termFrequencyEmbedding is a deterministic local embedding: tokens are
// hashed into a fixed-width term-frequency vector which is then
// L2-normalized. No network dependency, stable across runs.
func termFrequencyEmbedding(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, embeddingDims)
	for _, tok := range embedTokens(text) {
		h := fnv.New32a()
		h.Write([]byte(tok))
		vec[h.Sum32()%embeddingDims]++
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		// chromem rejects zero vectors; mark the first dimension so empty
		// text still embeds.
		vec[0] = 1
		return vec, nil
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec, nil
}

func embedTokens(text string) []string {
	lower := strings.ToLower(text)
	return strings.FieldsFunc(lower, func(r rune) bool {
		return !(r >= 'a' && r <= 'z') && !(r >= '0' && r <= '9')
	})
}
