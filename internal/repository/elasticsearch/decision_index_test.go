package elasticsearch

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/banking/regional-compliance/internal/domain"
	elastic "github.com/elastic/go-elasticsearch/v8"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTransport struct {
	requests []*http.Request
	bodies   []string
	status   int
	response string
}

func (f *fakeTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	body := ""
	if req.Body != nil {
		b, _ := io.ReadAll(req.Body)
		body = string(b)
	}
	f.requests = append(f.requests, req)
	f.bodies = append(f.bodies, body)

	status := f.status
	if status == 0 {
		status = http.StatusOK
	}
	header := http.Header{}
	header.Set("Content-Type", "application/json")
	header.Set("X-Elastic-Product", "Elasticsearch")
	return &http.Response{
		StatusCode: status,
		Header:     header,
		Body:       io.NopCloser(strings.NewReader(f.response)),
	}, nil
}

func newIndex(t *testing.T, transport *fakeTransport) *DecisionIndex {
	t.Helper()
	client, err := elastic.NewClient(elastic.Config{
		Addresses: []string{"http://localhost:9200"},
		Transport: transport,
	})
	require.NoError(t, err)
	return NewDecisionIndex(client, "compliance-decisions")
}

func TestIndexDecision_UsesDecisionIDAsDocumentID(t *testing.T) {
	transport := &fakeTransport{response: `{"result":"created"}`, status: http.StatusCreated}
	idx := newIndex(t, transport)
	id := uuid.New()

	err := idx.IndexDecision(context.Background(), &domain.DecisionRecord{
		DecisionID: id,
		Kind:       domain.DecisionAML,
		Provider:   "usa-compliance",
		Outcome:    "reject",
		Result:     json.RawMessage(`{"score":80}`),
	})
	require.NoError(t, err)

	require.Len(t, transport.requests, 1)
	assert.Equal(t, "/compliance-decisions/_doc/"+id.String(), transport.requests[0].URL.Path)
	assert.Contains(t, transport.bodies[0], `"outcome":"reject"`)
}

func TestIndexDecision_ErrorResponse(t *testing.T) {
	transport := &fakeTransport{status: http.StatusBadRequest, response: `{"error":"mapper_parsing_exception"}`}
	idx := newIndex(t, transport)

	err := idx.IndexDecision(context.Background(), &domain.DecisionRecord{DecisionID: uuid.New()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "elasticsearch error")
}

func TestSearchDecisions_ParsesHits(t *testing.T) {
	id := uuid.New()
	transport := &fakeTransport{response: `{
		"hits": {
			"total": {"value": 3},
			"hits": [
				{"_source": {"decision_id": "` + id.String() + `", "kind": "aml", "provider": "canada-compliance", "outcome": "review", "risk_score": 55, "result": {}}}
			]
		}
	}`}
	idx := newIndex(t, transport)

	page, err := idx.SearchDecisions(context.Background(), "provider:canada-compliance", 0, 1)
	require.NoError(t, err)

	require.Len(t, page.Decisions, 1)
	assert.Equal(t, id, page.Decisions[0].DecisionID)
	assert.Equal(t, 55, page.Decisions[0].RiskScore)
	assert.Equal(t, int64(3), page.TotalCount)
	assert.True(t, page.HasMore)
	assert.Equal(t, 1, page.Page)

	assert.Contains(t, transport.bodies[0], "query_string")
	assert.Contains(t, transport.bodies[0], "decided_at")
}

func TestSearchBody_EmptyQueryMatchesAll(t *testing.T) {
	body := searchBody("", 10, 5)
	assert.Contains(t, body["query"], "match_all")
	assert.Equal(t, 10, body["from"])
}
