package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"lexwatch/monitor-service/internal/model"
)

const (
	djenPageSize = 100 // documented maximum per request
	djenTimeout  = 30 * time.Second
	djenPath     = "/api/v1/comunicacao"
)

// DJENFetcher queries the national communications feed (DJEN Comunica API).
// The feed filters by OAB number server-side; records still pass through the
// aggregator's recipient filter afterwards.
type DJENFetcher struct {
	BaseURL string
	client  *http.Client
}

// NewDJENFetcher constructs a fetcher with a shared HTTP client.
func NewDJENFetcher(baseURL string) *DJENFetcher {
	return &DJENFetcher{
		BaseURL: baseURL,
		client:  &http.Client{Timeout: djenTimeout},
	}
}

// Name implements Adapter.
func (f *DJENFetcher) Name() string { return "djen" }

// djenResponse mirrors the top-level Comunica API JSON response.
type djenResponse struct {
	Status  string     `json:"status"`
	Message string     `json:"message"`
	Count   int        `json:"count"`
	Items   []djenItem `json:"items"`
}

// djenItem mirrors a single communication.
type djenItem struct {
	ID                   int64         `json:"id"`
	DataDisponibilizacao string        `json:"data_disponibilizacao"`
	SiglaTribunal        string        `json:"siglaTribunal"`
	TipoComunicacao      string        `json:"tipoComunicacao"`
	NomeOrgao            string        `json:"nomeOrgao"`
	Texto                string        `json:"texto"`
	NumeroProcesso       string        `json:"numero_processo"`
	Link                 string        `json:"link"`
	NomeClasse           string        `json:"nomeClasse"`
	Hash                 string        `json:"hash"`
	NumeroComMascara     string        `json:"numeroprocessocommascara"`
	Destinatarios        []djenParty   `json:"destinatarios"`
	DestAdvogados        []djenDestAdv `json:"destinatarioadvogados"`
}

type djenParty struct {
	Nome string `json:"nome"`
	Polo string `json:"polo"`
}

type djenDestAdv struct {
	Advogado djenAdvogado `json:"advogado"`
}

type djenAdvogado struct {
	Nome      string `json:"nome"`
	NumeroOAB string `json:"numero_oab"`
	UFOAB     string `json:"uf_oab"`
}

// Query fetches one page of communications for the filter, retrying
// transient failures up to maxRetries with exponential backoff. A 429 is
// surfaced as *RateLimitError and never retried here.
func (f *DJENFetcher) Query(ctx context.Context, flt Filter, page int) (*PageResult, error) {
	return queryWithRetry(ctx, f.Name(), func() (*PageResult, error) {
		return f.fetchPage(ctx, flt, page)
	})
}

func (f *DJENFetcher) fetchPage(ctx context.Context, flt Filter, page int) (*PageResult, error) {
	params := url.Values{}
	params.Set("numeroOab", flt.Identity.OABNumber)
	params.Set("ufOab", flt.Identity.OABState)
	if flt.Tribunal != "" {
		params.Set("siglaTribunal", flt.Tribunal)
	}
	params.Set("dataDisponibilizacaoInicio", flt.From.Format("2006-01-02"))
	params.Set("dataDisponibilizacaoFim", flt.To.Format("2006-01-02"))
	params.Set("pagina", strconv.Itoa(page))
	params.Set("itensPorPagina", strconv.Itoa(djenPageSize))

	reqURL := f.BaseURL + djenPath + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http GET: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, &RateLimitError{Source: f.Name(), RetryAfter: parseRetryAfter(resp)}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("djen returned %d: %s", resp.StatusCode, string(body))
	}

	var apiResp djenResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, fmt.Errorf("json unmarshal: %w", err)
	}

	items := mapDJENItems(apiResp.Items)
	fetched := page * djenPageSize
	return &PageResult{
		Items:      items,
		TotalCount: apiResp.Count,
		HasMore:    len(apiResp.Items) == djenPageSize && fetched < apiResp.Count,
	}, nil
}

// mapDJENItems converts API items to the common record shape. A record
// missing a mandatory field is dropped with a warning, never failing the
// page.
func mapDJENItems(items []djenItem) []model.Publication {
	out := make([]model.Publication, 0, len(items))
	for _, it := range items {
		caseNumber := it.NumeroComMascara
		if caseNumber == "" {
			caseNumber = it.NumeroProcesso
		}
		if caseNumber == "" || it.SiglaTribunal == "" || it.DataDisponibilizacao == "" {
			log.Printf("[djen] Dropping record %d: missing mandatory field (case=%q tribunal=%q date=%q)",
				it.ID, caseNumber, it.SiglaTribunal, it.DataDisponibilizacao)
			continue
		}
		date, err := parseDJENDate(it.DataDisponibilizacao)
		if err != nil {
			log.Printf("[djen] Dropping record %d: bad date %q: %v", it.ID, it.DataDisponibilizacao, err)
			continue
		}

		recipients := make([]model.Recipient, 0, len(it.DestAdvogados))
		for _, da := range it.DestAdvogados {
			recipients = append(recipients, model.Recipient{
				Name:      da.Advogado.Nome,
				OABNumber: da.Advogado.NumeroOAB,
				OABState:  strings.ToUpper(da.Advogado.UFOAB),
			})
		}

		p := model.Publication{
			ID:                strconv.FormatInt(it.ID, 10),
			CaseNumber:        caseNumber,
			Tribunal:          it.SiglaTribunal,
			CourtBody:         it.NomeOrgao,
			PublicationDate:   date,
			CommunicationType: it.TipoComunicacao,
			BodyText:          it.Texto,
			SourceURL:         it.Link,
			Source:            model.SourceDJEN,
			Recipients:        recipients,
		}
		p.Finalize()
		out = append(out, p)
	}
	return out
}

// parseDJENDate accepts both the plain date and the timestamped forms the
// feed emits.
func parseDJENDate(s string) (time.Time, error) {
	if len(s) >= 10 {
		if d, err := time.Parse("2006-01-02", s[:10]); err == nil {
			return d, nil
		}
	}
	return time.Parse(time.RFC3339, s)
}

func parseRetryAfter(resp *http.Response) time.Duration {
	s := resp.Header.Get("Retry-After")
	if s == "" {
		return 0
	}
	secs, err := strconv.Atoi(s)
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
