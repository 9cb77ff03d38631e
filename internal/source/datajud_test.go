package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lexwatch/monitor-service/internal/model"
)

const datajudHitJSON = `{
	"_id": "doc-1",
	"_source": {
		"numeroProcesso": "00012345620258260100",
		"tribunal": "TJSP",
		"classe": {"nome": "Apelação Cível"},
		"orgaoJulgador": {"nome": "5ª Câmara de Direito Privado"},
		"movimentos": [
			{"nome": "Conclusão", "dataHora": "2025-01-08T10:00:00Z"},
			{"nome": "Publicação de acórdão", "dataHora": "2025-01-12T09:00:00Z"}
		]
	}
}`

func newDataJudServer(t *testing.T, handler http.HandlerFunc) *DataJudFetcher {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewDataJudFetcher(srv.URL, "test-key")
}

// ── Query ──────────────────────────────────────────────────────────────────

func TestDataJudQuery_MapsLatestMovement(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody datajudQuery
	f := newDataJudServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		fmt.Fprintf(w, `{"hits":{"total":{"value":1},"hits":[%s]}}`, datajudHitJSON)
	})

	res, err := f.Query(context.Background(), testFilter, 1)
	require.NoError(t, err)

	assert.Equal(t, "/api_publica_tjsp/_search", gotPath)
	assert.Equal(t, "APIKey test-key", gotAuth)
	assert.Equal(t, 0, gotBody.From)
	assert.Equal(t, datajudPageSize, gotBody.Size)

	require.Len(t, res.Items, 1)
	p := res.Items[0]
	assert.Equal(t, "doc-1", p.ID)
	assert.Equal(t, "00012345620258260100", p.CaseNumber)
	assert.Equal(t, "MOVIMENTACAO", p.CommunicationType)
	assert.Equal(t, "Publicação de acórdão", p.BodyText, "most recent movement wins")
	assert.Equal(t, time.Date(2025, 1, 12, 0, 0, 0, 0, time.UTC), p.PublicationDate)
	assert.Equal(t, model.SourceDataJud, p.Source)
	// The queried identity is carried as the recipient.
	require.Len(t, p.Recipients, 1)
	assert.Equal(t, "129021", p.Recipients[0].OABNumber)
	assert.Equal(t, "SP", p.Recipients[0].OABState)
}

func TestDataJudQuery_Pagination(t *testing.T) {
	f := newDataJudServer(t, func(w http.ResponseWriter, r *http.Request) {
		var q datajudQuery
		require.NoError(t, json.NewDecoder(r.Body).Decode(&q))
		assert.Equal(t, datajudPageSize, q.From, "page 2 starts after one full page")
		fmt.Fprintf(w, `{"hits":{"total":{"value":150},"hits":[%s]}}`, datajudHitJSON)
	})

	res, err := f.Query(context.Background(), testFilter, 2)
	require.NoError(t, err)
	assert.Equal(t, 150, res.TotalCount)
	assert.False(t, res.HasMore, "2×100 ≥ 150")
}

func TestDataJudQuery_DropsDocumentWithoutMovements(t *testing.T) {
	f := newDataJudServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"hits":{"total":{"value":1},"hits":[
			{"_id":"doc-2","_source":{"numeroProcesso":"1","tribunal":"TJSP","movimentos":[]}}
		]}}`)
	})

	res, err := f.Query(context.Background(), testFilter, 1)
	require.NoError(t, err)
	assert.Empty(t, res.Items)
}

func TestDataJudQuery_MissingAPIKeySkips(t *testing.T) {
	f := NewDataJudFetcher("http://unreachable.invalid", "")
	res, err := f.Query(context.Background(), testFilter, 1)
	require.NoError(t, err)
	assert.Empty(t, res.Items)
	assert.False(t, res.HasMore)
}

func TestDataJudQuery_RateLimit(t *testing.T) {
	var calls int
	f := newDataJudServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := f.Query(context.Background(), testFilter, 1)
	var rle *RateLimitError
	require.ErrorAs(t, err, &rle)
	assert.Equal(t, "datajud", rle.Source)
	assert.Equal(t, 1, calls)
}
