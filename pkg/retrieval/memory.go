package retrieval

import (
	"context"
	"math"
	"sort"
	"strings"

	"github.com/brettr7388/n8n-flow-maker-rag/pkg/models"
	"github.com/brettr7388/n8n-flow-maker-rag/pkg/patterns"
	"github.com/brettr7388/n8n-flow-maker-rag/pkg/registry"
)

var stopWords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "from": true, "into": true,
	"type": true, "words": true, "that": true, "this": true, "when": true, "then": true,
}

// Corpus is every fragment the pipeline can retrieve: the pattern library plus
// one snippet per catalog kind.
func Corpus(lib *patterns.Library, reg *registry.Registry) []*models.Fragment {
	return append(lib.All(), reg.Snippets()...)
}

// MemorySearcher scores fragments by set-cosine similarity between query terms
// and fragment text. It is immutable after construction.
type MemorySearcher struct {
	docs []memoryDoc
}

type memoryDoc struct {
	fragment *models.Fragment
	terms    map[string]bool
}

func NewMemorySearcher(fragments []*models.Fragment) *MemorySearcher {
	s := &MemorySearcher{docs: make([]memoryDoc, 0, len(fragments))}

	for _, f := range fragments {
		s.docs = append(s.docs, memoryDoc{fragment: f, terms: terms(f.Text())})
	}

	return s
}

func (s *MemorySearcher) Search(ctx context.Context, q Query) ([]Hit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	query := terms(q.Text)

	var hits []Hit

	for _, doc := range s.docs {
		if doc.fragment.Tier != q.Tier || doc.fragment.NodeCount() < q.MinNodes {
			continue
		}

		if sim := similarity(query, doc.terms); sim > 0 {
			hits = append(hits, Hit{Fragment: doc.fragment, Similarity: sim})
		}
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Similarity != hits[j].Similarity {
			return hits[i].Similarity > hits[j].Similarity
		}

		return hits[i].Fragment.ID < hits[j].Fragment.ID
	})

	if q.K > 0 && len(hits) > q.K {
		hits = hits[:q.K]
	}

	return hits, nil
}

func terms(text string) map[string]bool {
	out := map[string]bool{}

	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return (r < 'a' || r > 'z') && (r < '0' || r > '9')
	})

	for _, f := range fields {
		if len(f) < 3 || stopWords[f] {
			continue
		}

		out[f] = true
	}

	return out
}

func similarity(a, b map[string]bool) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	overlap := 0

	for t := range a {
		if b[t] {
			overlap++
		}
	}

	return float64(overlap) / math.Sqrt(float64(len(a)*len(b)))
}
