package knowledge

import (
	"context"
	"sort"

	"github.com/ylsdamxssjxxdd/wunder-sub004/internal/config"
	"github.com/ylsdamxssjxxdd/wunder-sub004/internal/coreerr"
)

// Router routes knowledge lookups: vector bases fork into a
// separate path that embeds and queries a vector store; everything else
// delegates to a text-search collaborator.
type Router struct {
	Embedding  EmbeddingModel
	Vectors    VectorStore
	TextSearch TextSearcher
}

// Route dispatches base per its Vector flag. keywords is the caller's
// `keywords` argument (one query or several; every query is embedded
// separately).
func (r *Router) Route(ctx context.Context, knowledgeCfg config.Knowledge, base config.KnowledgeBase, keywords []string) (*Result, error) {
	if len(keywords) == 0 {
		return nil, coreerr.New(coreerr.PathRequired, "knowledge base %s: at least one keyword is required", base.Name)
	}

	if base.Vector {
		return r.routeVector(ctx, knowledgeCfg, base, keywords)
	}
	return r.routeText(ctx, base, keywords)
}

func (r *Router) routeVector(ctx context.Context, knowledgeCfg config.Knowledge, base config.KnowledgeBase, keywords []string) (*Result, error) {
	if r.Embedding == nil || r.Vectors == nil {
		return nil, coreerr.New(coreerr.ConfigurationError, "knowledge base %s is vector-backed but no embedding model or vector store is configured", base.Name)
	}

	topK := base.TopK
	if topK <= 0 {
		topK = knowledgeCfg.DefaultTopK
	}
	if topK <= 0 {
		topK = 10
	}

	queries := make([]QueryResult, 0, len(keywords))
	for _, keyword := range keywords {
		vector, err := r.Embedding.Embed(ctx, base.EmbeddingModel, keyword)
		if err != nil {
			return nil, coreerr.Wrap(coreerr.TransportError, err, "embed query %q for knowledge base %s", keyword, base.Name)
		}

		docs, err := r.Vectors.Query(ctx, base.Name, vector, topK)
		if err != nil {
			return nil, coreerr.Wrap(coreerr.TransportError, err, "query vector store for knowledge base %s", base.Name)
		}

		if base.ScoreThreshold > 0 {
			docs = filterByThreshold(docs, base.ScoreThreshold)
		}
		sort.SliceStable(docs, func(i, j int) bool { return docs[i].Score > docs[j].Score })
		if len(docs) > topK {
			docs = docs[:topK]
		}

		queries = append(queries, QueryResult{Keyword: keyword, Documents: docs})
	}

	return &Result{Queries: queries}, nil
}

func (r *Router) routeText(ctx context.Context, base config.KnowledgeBase, keywords []string) (*Result, error) {
	if r.TextSearch == nil {
		return &Result{}, nil
	}

	docs, err := r.TextSearch.Search(ctx, base.Name, keywords)
	if err != nil {
		return nil, coreerr.Wrap(coreerr.TransportError, err, "text search knowledge base %s", base.Name)
	}
	return &Result{Documents: docs}, nil
}

func filterByThreshold(docs []Document, threshold float64) []Document {
	out := make([]Document, 0, len(docs))
	for _, d := range docs {
		if d.Score >= threshold {
			out = append(out, d)
		}
	}
	return out
}
