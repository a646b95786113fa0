// Package vector is a Weaviate-backed Searcher. Fragment bodies stay in
// process; Weaviate stores their embeddings keyed by fragment id.
package vector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/brettr7388/n8n-flow-maker-rag/pkg/models"
	"github.com/brettr7388/n8n-flow-maker-rag/pkg/retrieval"
	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	wmodels "github.com/weaviate/weaviate/entities/models"
)

const ClassName = "WorkflowFragment"

var (
	ErrInvalidURL     = errors.New("invalid weaviate url")
	ErrUnexpectedData = errors.New("unexpected weaviate response shape")
)

// Embedder turns texts into vectors of a fixed dimension.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// NewClient builds a Weaviate client from a URL such as http://localhost:8080.
func NewClient(rawURL string) (*weaviate.Client, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
	}

	client, err := weaviate.NewClient(weaviate.Config{
		Host:   parsed.Host,
		Scheme: parsed.Scheme,
	})
	if err != nil {
		return nil, fmt.Errorf("create weaviate client: %w", err)
	}

	return client, nil
}

// Searcher runs near-vector queries filtered by tier and node count.
type Searcher struct {
	client    *weaviate.Client
	embedder  Embedder
	fragments map[string]*models.Fragment
	order     []*models.Fragment
	logger    *slog.Logger
}

func NewSearcher(client *weaviate.Client, embedder Embedder, fragments []*models.Fragment, logger *slog.Logger) *Searcher {
	s := &Searcher{
		client:    client,
		embedder:  embedder,
		fragments: make(map[string]*models.Fragment, len(fragments)),
		order:     fragments,
		logger:    logger.With("module", "vector_searcher"),
	}

	for _, f := range fragments {
		s.fragments[f.ID] = f
	}

	return s
}

// Schema is the class definition the searcher expects. Vectors are supplied by
// the caller.
func Schema() *wmodels.Class {
	filterable := true

	return &wmodels.Class{
		Class:       ClassName,
		Description: "Workflow fragments available to generation",
		Vectorizer:  "none",
		Properties: []*wmodels.Property{
			{Name: "fragment_id", DataType: []string{"text"}, IndexFilterable: &filterable},
			{Name: "tier", DataType: []string{"text"}, IndexFilterable: &filterable},
			{Name: "node_count", DataType: []string{"int"}, IndexFilterable: &filterable},
			{Name: "content", DataType: []string{"text"}},
		},
	}
}

// EnsureSchema creates the fragment class when it does not exist yet.
func (s *Searcher) EnsureSchema(ctx context.Context) error {
	if _, err := s.client.Schema().ClassGetter().WithClassName(ClassName).Do(ctx); err == nil {
		return nil
	}

	s.logger.InfoContext(ctx, "creating weaviate class", "class", ClassName)

	if err := s.client.Schema().ClassCreator().WithClass(Schema()).Do(ctx); err != nil {
		return fmt.Errorf("create class %s: %w", ClassName, err)
	}

	return nil
}

// ObjectID is the deterministic object id of a fragment, so re-indexing
// overwrites instead of duplicating.
func ObjectID(fragmentID string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("flowmaker:fragment:"+fragmentID)).String()
}

// Index embeds every fragment and upserts it in one batch.
func (s *Searcher) Index(ctx context.Context) (int, error) {
	if len(s.order) == 0 {
		return 0, nil
	}

	texts := make([]string, 0, len(s.order))
	for _, f := range s.order {
		texts = append(texts, f.Text())
	}

	vectors, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embed fragments: %w", err)
	}

	if len(vectors) != len(s.order) {
		return 0, fmt.Errorf("%w: %d vectors for %d fragments", ErrUnexpectedData, len(vectors), len(s.order))
	}

	objects := make([]*wmodels.Object, 0, len(s.order))

	for i, f := range s.order {
		objects = append(objects, &wmodels.Object{
			Class:  ClassName,
			ID:     strfmt.UUID(ObjectID(f.ID)),
			Vector: vectors[i],
			Properties: map[string]any{
				"fragment_id": f.ID,
				"tier":        string(f.Tier),
				"node_count":  f.NodeCount(),
				"content":     texts[i],
			},
		})
	}

	resp, err := s.client.Batch().ObjectsBatcher().WithObjects(objects...).Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("batch import: %w", err)
	}

	indexed := 0

	for _, item := range resp {
		if item.Result != nil && item.Result.Errors != nil {
			s.logger.WarnContext(ctx, "fragment not indexed", "object_id", item.ID)

			continue
		}

		indexed++
	}

	return indexed, nil
}

func (s *Searcher) Search(ctx context.Context, q retrieval.Query) ([]retrieval.Hit, error) {
	vectors, err := s.embedder.Embed(ctx, []string{q.Text})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	if len(vectors) != 1 {
		return nil, fmt.Errorf("%w: %d query vectors", ErrUnexpectedData, len(vectors))
	}

	where := filters.Where().
		WithOperator(filters.And).
		WithOperands([]*filters.WhereBuilder{
			filters.Where().
				WithPath([]string{"tier"}).
				WithOperator(filters.Equal).
				WithValueString(string(q.Tier)),
			filters.Where().
				WithPath([]string{"node_count"}).
				WithOperator(filters.GreaterThanEqual).
				WithValueInt(int64(q.MinNodes)),
		})

	nearVector := s.client.GraphQL().NearVectorArgBuilder().WithVector(vectors[0])

	// certainty is always in [0,1] unlike distance
	fields := []graphql.Field{
		{Name: "fragment_id"},
		{Name: "_additional", Fields: []graphql.Field{{Name: "certainty"}}},
	}

	result, err := s.client.GraphQL().Get().
		WithClassName(ClassName).
		WithFields(fields...).
		WithWhere(where).
		WithNearVector(nearVector).
		WithLimit(q.K).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("weaviate search: %w", err)
	}

	if len(result.Errors) > 0 {
		return nil, fmt.Errorf("weaviate search: %s", result.Errors[0].Message)
	}

	return s.parse(result.Data)
}

func (s *Searcher) parse(data map[string]wmodels.JSONObject) ([]retrieval.Hit, error) {
	get, ok := data["Get"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: missing Get", ErrUnexpectedData)
	}

	rows, ok := get[ClassName].([]any)
	if !ok {
		return nil, nil
	}

	hits := make([]retrieval.Hit, 0, len(rows))

	for _, row := range rows {
		obj, ok := row.(map[string]any)
		if !ok {
			continue
		}

		id, _ := obj["fragment_id"].(string)

		frag, known := s.fragments[id]
		if !known {
			s.logger.Debug("ignoring unknown fragment in index", "fragment_id", id)

			continue
		}

		var certainty float64
		if additional, ok := obj["_additional"].(map[string]any); ok {
			certainty, _ = additional["certainty"].(float64)
		}

		hits = append(hits, retrieval.Hit{Fragment: frag, Similarity: certainty})
	}

	return hits, nil
}

var _ retrieval.Searcher = (*Searcher)(nil)
