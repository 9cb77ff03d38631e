package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"lexwatch/monitor-service/internal/model"
)

const (
	datajudPageSize = 100 // documented maximum "size" per search
	datajudTimeout  = 30 * time.Second
)

// DataJudFetcher queries the national case-metadata index. Each tribunal has
// its own index alias (api_publica_tjsp, api_publica_trf3, …) searched with
// an Elasticsearch-style request body.
//
// The index matches the registration number server-side via a query_string
// over the full document; it carries no recipient lists, so mapped records
// declare the queried identity as their recipient.
type DataJudFetcher struct {
	BaseURL string
	APIKey  string
	client  *http.Client
}

// NewDataJudFetcher constructs a fetcher with a shared HTTP client.
func NewDataJudFetcher(baseURL, apiKey string) *DataJudFetcher {
	return &DataJudFetcher{
		BaseURL: baseURL,
		APIKey:  apiKey,
		client:  &http.Client{Timeout: datajudTimeout},
	}
}

// Name implements Adapter.
func (f *DataJudFetcher) Name() string { return "datajud" }

type datajudQuery struct {
	From  int              `json:"from"`
	Size  int              `json:"size"`
	Query map[string]any   `json:"query"`
	Sort  []map[string]any `json:"sort"`
}

// datajudResponse mirrors the search response envelope.
type datajudResponse struct {
	Hits struct {
		Total struct {
			Value int `json:"value"`
		} `json:"total"`
		Hits []struct {
			ID     string         `json:"_id"`
			Source datajudProcess `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// datajudProcess mirrors a case document.
type datajudProcess struct {
	NumeroProcesso string `json:"numeroProcesso"`
	Tribunal       string `json:"tribunal"`
	Classe         struct {
		Nome string `json:"nome"`
	} `json:"classe"`
	OrgaoJulgador struct {
		Nome string `json:"nome"`
	} `json:"orgaoJulgador"`
	Movimentos []struct {
		Nome     string `json:"nome"`
		DataHora string `json:"dataHora"`
	} `json:"movimentos"`
}

// Query fetches one page of case documents whose movements fall in the
// filter's date range and which mention the tracked registration. Transient
// failures are retried; HTTP 429 is surfaced as *RateLimitError.
func (f *DataJudFetcher) Query(ctx context.Context, flt Filter, page int) (*PageResult, error) {
	return queryWithRetry(ctx, f.Name(), func() (*PageResult, error) {
		return f.search(ctx, flt, page)
	})
}

func (f *DataJudFetcher) search(ctx context.Context, flt Filter, page int) (*PageResult, error) {
	if f.APIKey == "" {
		log.Println("[datajud] DATAJUD_API_KEY not set — skipping source")
		return &PageResult{}, nil
	}

	oab := fmt.Sprintf("%s/%s", flt.Identity.OABNumber, flt.Identity.OABState)
	q := datajudQuery{
		From: (page - 1) * datajudPageSize,
		Size: datajudPageSize,
		Query: map[string]any{
			"bool": map[string]any{
				"must": []map[string]any{
					{"query_string": map[string]any{"query": fmt.Sprintf("%q", oab)}},
					{"range": map[string]any{
						"movimentos.dataHora": map[string]any{
							"gte": flt.From.Format("2006-01-02"),
							"lte": flt.To.Format("2006-01-02"),
						},
					}},
				},
			},
		},
		Sort: []map[string]any{{"numeroProcesso": map[string]any{"order": "asc"}}},
	}

	body, err := json.Marshal(q)
	if err != nil {
		return nil, fmt.Errorf("marshal query: %w", err)
	}

	endpoint := fmt.Sprintf("%s/api_publica_%s/_search", f.BaseURL, strings.ToLower(flt.Tribunal))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "APIKey "+f.APIKey)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http POST: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, &RateLimitError{Source: f.Name(), RetryAfter: parseRetryAfter(resp)}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("datajud returned %d: %s", resp.StatusCode, string(respBody))
	}

	var apiResp datajudResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return nil, fmt.Errorf("json unmarshal: %w", err)
	}

	items := make([]model.Publication, 0, len(apiResp.Hits.Hits))
	for _, hit := range apiResp.Hits.Hits {
		p, ok := mapDataJudProcess(hit.ID, hit.Source, flt.Identity)
		if !ok {
			continue
		}
		items = append(items, p)
	}

	total := apiResp.Hits.Total.Value
	return &PageResult{
		Items:      items,
		TotalCount: total,
		HasMore:    page*datajudPageSize < total,
	}, nil
}

// mapDataJudProcess converts a case document into the common record shape
// using its most recent movement. Documents missing mandatory fields are
// dropped with a warning.
func mapDataJudProcess(id string, p datajudProcess, identity model.TrackedIdentity) (model.Publication, bool) {
	if p.NumeroProcesso == "" || p.Tribunal == "" {
		log.Printf("[datajud] Dropping document %s: missing case number or tribunal", id)
		return model.Publication{}, false
	}
	if len(p.Movimentos) == 0 {
		log.Printf("[datajud] Dropping document %s: no movements", id)
		return model.Publication{}, false
	}

	latest := p.Movimentos[0]
	latestAt, _ := parseDJENDate(latest.DataHora)
	for _, m := range p.Movimentos[1:] {
		at, err := parseDJENDate(m.DataHora)
		if err != nil {
			continue
		}
		if at.After(latestAt) {
			latest, latestAt = m, at
		}
	}
	if latestAt.IsZero() {
		log.Printf("[datajud] Dropping document %s: no parseable movement date", id)
		return model.Publication{}, false
	}

	pub := model.Publication{
		ID:                id,
		CaseNumber:        p.NumeroProcesso,
		Tribunal:          strings.ToUpper(p.Tribunal),
		CourtBody:         p.OrgaoJulgador.Nome,
		PublicationDate:   latestAt,
		CommunicationType: "MOVIMENTACAO",
		BodyText:          latest.Nome,
		Source:            model.SourceDataJud,
		Recipients: []model.Recipient{{
			OABNumber: identity.OABNumber,
			OABState:  identity.OABState,
		}},
	}
	pub.Finalize()
	return pub, true
}
