package report

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"lexwatch/monitor-service/internal/model"
)

func pub(caseNumber, tribunal, commType, text string, day int) model.Publication {
	p := model.Publication{
		CaseNumber:        caseNumber,
		Tribunal:          tribunal,
		PublicationDate:   time.Date(2025, 3, day, 0, 0, 0, 0, time.UTC),
		CommunicationType: commType,
		BodyText:          text,
	}
	p.Finalize()
	return p
}

var identity = model.TrackedIdentity{OABNumber: "129021", OABState: "SP"}

func TestRender_GroupsByCase(t *testing.T) {
	pubs := []model.Publication{
		pub("2000-77", "TJRJ", "Intimação", "despacho", 10),
		pub("1000-42", "TJSP", "Intimação", "sentença", 12),
		pub("1000-42", "TJSP", "Citação", "citação inicial", 11),
	}

	out := Render(identity, "12/03/2025", pubs)

	assert.Contains(t, out, "OAB 129021/SP")
	assert.Contains(t, out, "**Data:** 12/03/2025")
	assert.Contains(t, out, "**Total de publicações:** 3")

	// One heading per case, ordered lexically.
	first := strings.Index(out, "## 1000-42")
	second := strings.Index(out, "## 2000-77")
	assert.True(t, first >= 0 && second > first, "cases out of order: %s", out)
	assert.Equal(t, 1, strings.Count(out, "## 1000-42"))

	// Within a case, publications appear in date order.
	citacao := strings.Index(out, "### Citação — 11/03/2025")
	sentenca := strings.Index(out, "### Intimação — 12/03/2025")
	assert.True(t, citacao >= 0 && sentenca > citacao, "publications out of date order")
}

func TestRender_Deterministic(t *testing.T) {
	pubs := []model.Publication{
		pub("b", "TJSP", "Intimação", "x", 10),
		pub("a", "TJSP", "Intimação", "y", 10),
		pub("c", "TJMG", "Intimação", "z", 10),
	}
	reversed := []model.Publication{pubs[2], pubs[1], pubs[0]}

	assert.Equal(t, Render(identity, "10/03/2025", pubs), Render(identity, "10/03/2025", reversed))
}

func TestRender_OptionalFields(t *testing.T) {
	p := pub("1000-42", "TJSP", "Intimação", "", 10)
	out := Render(identity, "10/03/2025", []model.Publication{p})
	assert.NotContains(t, out, "**Órgão:**")
	assert.NotContains(t, out, "**Link:**")

	p.CourtBody = "3ª Vara Cível"
	p.SourceURL = "https://example.invalid/pub/1"
	out = Render(identity, "10/03/2025", []model.Publication{p})
	assert.Contains(t, out, "**Órgão:** 3ª Vara Cível")
	assert.Contains(t, out, "**Link:** https://example.invalid/pub/1")
}

func TestRender_Empty(t *testing.T) {
	out := Render(identity, "10/03/2025", nil)
	assert.Contains(t, out, "**Total de publicações:** 0")
}

func TestRenderSummary(t *testing.T) {
	runs := []model.SyncRun{
		{
			StartedAt:             time.Date(2025, 3, 12, 9, 0, 0, 0, time.UTC),
			SourcesQueried:        []string{"datajud", "djen"},
			TotalFetched:          40,
			NewRecords:            3,
			CrossSourceDuplicates: 2,
			Errors:                []string{"djen/TJRJ: timeout"},
		},
	}

	out := RenderSummary(runs)
	assert.Contains(t, out, "| Início |")
	assert.Contains(t, out, "| 2025-03-12 09:00 | datajud, djen | 40 | 3 | 2 | 1 |")
}
