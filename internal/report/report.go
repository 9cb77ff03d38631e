// Package report renders new-publication sets as Markdown. Rendering is
// pure: the scheduler invokes it and hands the text to an external
// collaborator for delivery.
package report

import (
	"fmt"
	"sort"
	"strings"

	"lexwatch/monitor-service/internal/model"
)

// Render produces a Markdown report of publications for one tracked
// identity, grouped by case number. Output is deterministic: cases are
// ordered lexically and publications by date.
func Render(identity model.TrackedIdentity, runDate string, pubs []model.Publication) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Publicações DJEN — OAB %s\n\n", identity)
	fmt.Fprintf(&b, "**Data:** %s\n", runDate)
	fmt.Fprintf(&b, "**Total de publicações:** %d\n\n---\n\n", len(pubs))

	byCase := make(map[string][]model.Publication)
	for _, p := range pubs {
		byCase[p.CaseNumber] = append(byCase[p.CaseNumber], p)
	}

	cases := make([]string, 0, len(byCase))
	for c := range byCase {
		cases = append(cases, c)
	}
	sort.Strings(cases)

	for _, c := range cases {
		group := byCase[c]
		sort.Slice(group, func(i, j int) bool {
			if !group[i].PublicationDate.Equal(group[j].PublicationDate) {
				return group[i].PublicationDate.Before(group[j].PublicationDate)
			}
			return group[i].ContentHash < group[j].ContentHash
		})

		first := group[0]
		fmt.Fprintf(&b, "## %s\n\n", c)
		fmt.Fprintf(&b, "**Tribunal:** %s\n", first.Tribunal)
		if first.CourtBody != "" {
			fmt.Fprintf(&b, "**Órgão:** %s\n", first.CourtBody)
		}
		b.WriteString("\n")

		for _, p := range group {
			fmt.Fprintf(&b, "### %s — %s\n\n", p.CommunicationType, p.PublicationDate.Format("02/01/2006"))
			if p.BodyText != "" {
				b.WriteString(p.BodyText)
				b.WriteString("\n\n")
			}
			if p.SourceURL != "" {
				fmt.Fprintf(&b, "**Link:** %s\n\n", p.SourceURL)
			}
			b.WriteString("---\n\n")
		}
	}

	return b.String()
}

// RenderSummary produces a Markdown table of recent sync runs, newest first.
func RenderSummary(runs []model.SyncRun) string {
	var b strings.Builder

	b.WriteString("# Histórico de sincronizações\n\n")
	b.WriteString("| Início | Fontes | Obtidas | Novas | Duplicadas | Erros |\n")
	b.WriteString("|--------|--------|---------|-------|------------|-------|\n")

	for _, r := range runs {
		fmt.Fprintf(&b, "| %s | %s | %d | %d | %d | %d |\n",
			r.StartedAt.Format("2006-01-02 15:04"),
			strings.Join(r.SourcesQueried, ", "),
			r.TotalFetched,
			r.NewRecords,
			r.CrossSourceDuplicates,
			len(r.Errors),
		)
	}

	return b.String()
}
