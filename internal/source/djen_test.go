package source

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lexwatch/monitor-service/internal/model"
)

func TestMain(m *testing.M) {
	retryBaseWait = 10 * time.Millisecond
	os.Exit(m.Run())
}

var testFilter = Filter{
	Identity: model.TrackedIdentity{OABNumber: "129021", OABState: "SP"},
	Tribunal: "TJSP",
	From:     time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	To:       time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC),
}

const djenItemJSON = `{
	"id": 101,
	"data_disponibilizacao": "2025-01-10",
	"siglaTribunal": "TJSP",
	"tipoComunicacao": "Intimação",
	"nomeOrgao": "2ª Vara Cível",
	"texto": "Fica intimado o advogado…",
	"numero_processo": "00012345620258260100",
	"numeroprocessocommascara": "0001234-56.2025.8.26.0100",
	"link": "https://comunica.pje.jus.br/101",
	"destinatarioadvogados": [
		{"advogado": {"nome": "Fulano", "numero_oab": "129021", "uf_oab": "sp"}}
	]
}`

// newDJENServer serves a canned Comunica response.
func newDJENServer(t *testing.T, handler http.HandlerFunc) *DJENFetcher {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewDJENFetcher(srv.URL)
}

// ── Query ──────────────────────────────────────────────────────────────────

func TestDJENQuery_MapsItems(t *testing.T) {
	var gotQuery map[string]string
	f := newDJENServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = map[string]string{
			"numeroOab":      r.URL.Query().Get("numeroOab"),
			"ufOab":          r.URL.Query().Get("ufOab"),
			"siglaTribunal":  r.URL.Query().Get("siglaTribunal"),
			"pagina":         r.URL.Query().Get("pagina"),
			"itensPorPagina": r.URL.Query().Get("itensPorPagina"),
		}
		fmt.Fprintf(w, `{"status":"success","count":1,"items":[%s]}`, djenItemJSON)
	})

	res, err := f.Query(context.Background(), testFilter, 1)
	require.NoError(t, err)

	assert.Equal(t, "129021", gotQuery["numeroOab"])
	assert.Equal(t, "SP", gotQuery["ufOab"])
	assert.Equal(t, "TJSP", gotQuery["siglaTribunal"])
	assert.Equal(t, "1", gotQuery["pagina"])
	assert.Equal(t, "100", gotQuery["itensPorPagina"])

	assert.Equal(t, 1, res.TotalCount)
	assert.False(t, res.HasMore)
	require.Len(t, res.Items, 1)

	p := res.Items[0]
	assert.Equal(t, "101", p.ID)
	assert.Equal(t, "0001234-56.2025.8.26.0100", p.CaseNumber)
	assert.Equal(t, "TJSP", p.Tribunal)
	assert.Equal(t, "2ª Vara Cível", p.CourtBody)
	assert.Equal(t, time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC), p.PublicationDate)
	assert.Equal(t, "Intimação", p.CommunicationType)
	assert.Equal(t, model.SourceDJEN, p.Source)
	assert.NotEmpty(t, p.ContentHash)
	require.Len(t, p.Recipients, 1)
	assert.Equal(t, "SP", p.Recipients[0].OABState, "UF must be upper-cased")
}

func TestDJENQuery_DropsRecordMissingMandatoryFields(t *testing.T) {
	f := newDJENServer(t, func(w http.ResponseWriter, r *http.Request) {
		// Second item has no case number at all; only the first survives.
		fmt.Fprintf(w, `{"status":"success","count":2,"items":[%s,
			{"id":102,"data_disponibilizacao":"2025-01-10","siglaTribunal":"TJSP","texto":"x"}
		]}`, djenItemJSON)
	})

	res, err := f.Query(context.Background(), testFilter, 1)
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, "101", res.Items[0].ID)
}

func TestDJENQuery_RateLimitNotRetried(t *testing.T) {
	var calls int
	f := newDJENServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Retry-After", "120")
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := f.Query(context.Background(), testFilter, 1)
	var rle *RateLimitError
	require.ErrorAs(t, err, &rle)
	assert.Equal(t, "djen", rle.Source)
	assert.Equal(t, 2*time.Minute, rle.RetryAfter)
	assert.Equal(t, 1, calls, "429 must not be retried within the cycle")
}

func TestDJENQuery_RetriesServerErrors(t *testing.T) {
	var calls int
	f := newDJENServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprintf(w, `{"status":"success","count":1,"items":[%s]}`, djenItemJSON)
	})

	res, err := f.Query(context.Background(), testFilter, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Len(t, res.Items, 1)
}

func TestDJENQuery_RetriesExhausted(t *testing.T) {
	var calls int
	f := newDJENServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := f.Query(context.Background(), testFilter, 1)
	require.Error(t, err)
	assert.Equal(t, maxRetries+1, calls)
	var rle *RateLimitError
	assert.False(t, errors.As(err, &rle))
}

// ── parseDJENDate ──────────────────────────────────────────────────────────

func TestParseDJENDate(t *testing.T) {
	d, err := parseDJENDate("2025-01-10")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC), d)

	d, err = parseDJENDate("2025-01-10T14:30:00Z")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC), d)

	_, err = parseDJENDate("10/01/2025")
	assert.Error(t, err)
}
