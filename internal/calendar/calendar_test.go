package calendar

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func writeDataset(t *testing.T, yaml string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "calendar.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))
	return path
}

// ── Load ───────────────────────────────────────────────────────────────────

func TestLoad_ParsesHolidaysAndSuspensions(t *testing.T) {
	path := writeDataset(t, `
holidays:
  - date: 2025-12-25
    scope: NACIONAL
    label: Natal
  - date: 2025-07-09
    scope: TJSP
    label: Revolução Constitucionalista
suspensions:
  - start: 2025-12-20
    end: 2026-01-20
    scope: NACIONAL
    reason: Recesso forense
`)
	cal, err := Load(path)
	require.NoError(t, err)

	h, ok := cal.HolidayOn(date(2025, 12, 25), "TJRJ")
	require.True(t, ok)
	assert.Equal(t, "Natal", h.Label)

	s, ok := cal.SuspensionOn(date(2026, 1, 10), "TJSP")
	require.True(t, ok)
	assert.Equal(t, "Recesso forense", s.Reason)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/calendar.yaml")
	assert.Error(t, err)
}

func TestLoad_RejectsBadDate(t *testing.T) {
	path := writeDataset(t, "holidays:\n  - date: 25/12/2025\n    label: Natal\n")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_RejectsInvertedSuspension(t *testing.T) {
	path := writeDataset(t, `
suspensions:
  - start: 2025-02-01
    end: 2025-01-01
    reason: inverted
`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestDefault_Loads(t *testing.T) {
	cal, err := Default()
	require.NoError(t, err)

	_, ok := cal.HolidayOn(date(2025, 12, 25), "TJSP")
	assert.True(t, ok, "embedded dataset carries Christmas")
	_, ok = cal.SuspensionOn(date(2026, 1, 5), "TJMG")
	assert.True(t, ok, "embedded dataset carries the year-end recess")
}

// ── IsBusinessDay ──────────────────────────────────────────────────────────

func TestIsBusinessDay_Weekends(t *testing.T) {
	cal, err := Default()
	require.NoError(t, err)

	assert.False(t, cal.IsBusinessDay(date(2025, 1, 25), "TJSP")) // Saturday
	assert.False(t, cal.IsBusinessDay(date(2025, 1, 26), "TJSP")) // Sunday
	assert.True(t, cal.IsBusinessDay(date(2025, 1, 27), "TJSP"))  // Monday
}

func TestIsBusinessDay_TribunalScope(t *testing.T) {
	path := writeDataset(t, `
holidays:
  - date: 2025-07-09
    scope: TJSP
    label: Revolução Constitucionalista
`)
	cal, err := Load(path)
	require.NoError(t, err)

	// 2025-07-09 is a Wednesday.
	assert.False(t, cal.IsBusinessDay(date(2025, 7, 9), "TJSP"))
	assert.True(t, cal.IsBusinessDay(date(2025, 7, 9), "TJRJ"))
}

func TestIsBusinessDay_SuspensionBounds(t *testing.T) {
	path := writeDataset(t, `
suspensions:
  - start: 2025-06-10
    end: 2025-06-12
    scope: TJMG
    reason: suspensão local
`)
	cal, err := Load(path)
	require.NoError(t, err)

	// Tue–Thu window, inclusive on both ends.
	assert.True(t, cal.IsBusinessDay(date(2025, 6, 9), "TJMG"))
	assert.False(t, cal.IsBusinessDay(date(2025, 6, 10), "TJMG"))
	assert.False(t, cal.IsBusinessDay(date(2025, 6, 12), "TJMG"))
	assert.True(t, cal.IsBusinessDay(date(2025, 6, 13), "TJMG"))

	// Other tribunals unaffected.
	assert.True(t, cal.IsBusinessDay(date(2025, 6, 11), "TJSP"))
}

func TestIsBusinessDay_IgnoresClockAndZone(t *testing.T) {
	cal, err := Default()
	require.NoError(t, err)

	saoPaulo := time.FixedZone("BRT", -3*60*60)
	noon := time.Date(2025, 12, 25, 12, 30, 0, 0, saoPaulo)
	assert.False(t, cal.IsBusinessDay(noon, "TJSP"))
}

func TestDateOnly(t *testing.T) {
	saoPaulo := time.FixedZone("BRT", -3*60*60)
	got := DateOnly(time.Date(2025, 3, 10, 23, 59, 59, 0, saoPaulo))
	assert.Equal(t, date(2025, 3, 10), got)
}
