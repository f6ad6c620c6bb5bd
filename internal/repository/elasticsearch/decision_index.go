package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/banking/regional-compliance/internal/config"
	"github.com/banking/regional-compliance/internal/domain"
	elastic "github.com/elastic/go-elasticsearch/v8"
)

type DecisionIndex struct {
	client *elastic.Client
	index  string
}

// NewClient creates an Elasticsearch client and verifies the connection
func NewClient(cfg config.ElasticsearchConfig) (*elastic.Client, error) {
	client, err := elastic.NewClient(elastic.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create elasticsearch client: %w", err)
	}

	res, err := client.Info()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to elasticsearch: %w", err)
	}
	res.Body.Close()

	return client, nil
}

// NewDecisionIndex creates a decision index over an existing client
func NewDecisionIndex(client *elastic.Client, index string) *DecisionIndex {
	return &DecisionIndex{client: client, index: index}
}

// IndexDecision indexes a decision for search. The decision ID is the
// document ID, so re-indexing replaces rather than duplicates.
func (r *DecisionIndex) IndexDecision(ctx context.Context, rec *domain.DecisionRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal decision: %w", err)
	}

	res, err := r.client.Index(
		r.index,
		bytes.NewReader(data),
		r.client.Index.WithContext(ctx),
		r.client.Index.WithDocumentID(rec.DecisionID.String()),
	)
	if err != nil {
		return fmt.Errorf("failed to index decision: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("elasticsearch error: %s", res.String())
	}
	return nil
}

type searchResponse struct {
	Hits struct {
		Total struct {
			Value int64 `json:"value"`
		} `json:"total"`
		Hits []struct {
			Source domain.DecisionRecord `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

func searchBody(query string, from, size int) map[string]interface{} {
	q := map[string]interface{}{"match_all": map[string]interface{}{}}
	if query != "" {
		q = map[string]interface{}{
			"query_string": map[string]interface{}{"query": query},
		}
	}
	return map[string]interface{}{
		"from":  from,
		"size":  size,
		"query": q,
		"sort": []map[string]interface{}{
			{"decided_at": "desc"},
		},
	}
}

// SearchDecisions runs a query string search, newest first
func (r *DecisionIndex) SearchDecisions(ctx context.Context, query string, from, size int) (*domain.DecisionPage, error) {
	if size <= 0 {
		size = 50
	}
	if from < 0 {
		from = 0
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(searchBody(query, from, size)); err != nil {
		return nil, fmt.Errorf("failed to encode query: %w", err)
	}

	res, err := r.client.Search(
		r.client.Search.WithContext(ctx),
		r.client.Search.WithIndex(r.index),
		r.client.Search.WithBody(&buf),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to perform search: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("elasticsearch search error: %s", res.String())
	}

	var parsed searchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	decisions := make([]*domain.DecisionRecord, 0, len(parsed.Hits.Hits))
	for i := range parsed.Hits.Hits {
		decisions = append(decisions, &parsed.Hits.Hits[i].Source)
	}

	total := parsed.Hits.Total.Value
	return &domain.DecisionPage{
		Decisions:  decisions,
		TotalCount: total,
		Page:       from/size + 1,
		PageSize:   size,
		HasMore:    total > int64(from+size),
	}, nil
}
