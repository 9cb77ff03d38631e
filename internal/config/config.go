// Package config loads and validates environment variables at startup.
// Fail-fast: if a required variable is missing, the process exits.
package config

import (
	"fmt"
	"os"
	"strings"

	"lexwatch/monitor-service/internal/model"
)

// Config holds all runtime configuration for the monitor service.
type Config struct {
	Port        string
	DatabaseURL string
	RedisURL    string

	DJENBaseURL    string
	DataJudBaseURL string
	DataJudAPIKey  string // empty disables the DataJud source

	Identities    []model.TrackedIdentity // tracked OAB registrations
	Tribunals     []string                // court feeds to poll
	ScheduleTimes []string                // "HH:MM" times-of-day, local time
	CalendarPath  string                  // optional YAML holiday/suspension dataset
}

// Load reads environment variables and returns a validated Config.
func Load() (*Config, error) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		return nil, fmt.Errorf("REDIS_URL is required")
	}

	identities, err := parseIdentities(os.Getenv("TRACKED_OABS"))
	if err != nil {
		return nil, err
	}
	if len(identities) == 0 {
		return nil, fmt.Errorf("TRACKED_OABS is required (e.g. \"129021/SP,234567/RJ\")")
	}

	tribunals, err := parseTribunals(os.Getenv("TRIBUNALS"))
	if err != nil {
		return nil, err
	}

	times, err := parseScheduleTimes(os.Getenv("SCHEDULE_TIMES"))
	if err != nil {
		return nil, err
	}

	port := os.Getenv("MONITOR_PORT")
	if port == "" {
		port = "8083"
	}

	djenURL := os.Getenv("DJEN_API_URL")
	if djenURL == "" {
		djenURL = "https://comunicaapi.pje.jus.br"
	}

	datajudURL := os.Getenv("DATAJUD_API_URL")
	if datajudURL == "" {
		datajudURL = "https://api-publica.datajud.cnj.jus.br"
	}

	return &Config{
		Port:           port,
		DatabaseURL:    dbURL,
		RedisURL:       redisURL,
		DJENBaseURL:    djenURL,
		DataJudBaseURL: datajudURL,
		DataJudAPIKey:  os.Getenv("DATAJUD_API_KEY"),
		Identities:     identities,
		Tribunals:      tribunals,
		ScheduleTimes:  times,
		CalendarPath:   os.Getenv("CALENDAR_PATH"),
	}, nil
}

// parseIdentities parses a comma-separated list of "NUMBER/UF" entries.
func parseIdentities(s string) ([]model.TrackedIdentity, error) {
	if s == "" {
		return nil, nil
	}
	var out []model.TrackedIdentity
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		num, uf, ok := strings.Cut(part, "/")
		if !ok || num == "" || len(uf) != 2 {
			return nil, fmt.Errorf("invalid TRACKED_OABS entry %q, want NUMBER/UF", part)
		}
		out = append(out, model.TrackedIdentity{
			OABNumber: num,
			OABState:  strings.ToUpper(uf),
		})
	}
	return out, nil
}

// parseTribunals validates the comma-separated tribunal list. Defaults to
// the courts most commonly carrying publications for tracked identities.
func parseTribunals(s string) ([]string, error) {
	if s == "" {
		return []string{"TJSP", "TJRJ", "TJMG", "TRF3", "TRT2", "TRT15", "TST", "STJ"}, nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		sigla := strings.ToUpper(strings.TrimSpace(part))
		if sigla == "" {
			continue
		}
		if !model.KnownTribunal(sigla) {
			return nil, fmt.Errorf("unknown tribunal %q in TRIBUNALS", sigla)
		}
		out = append(out, sigla)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("TRIBUNALS must name at least one tribunal")
	}
	return out, nil
}

// parseScheduleTimes validates the comma-separated "HH:MM" list.
func parseScheduleTimes(s string) ([]string, error) {
	if s == "" {
		return []string{"09:00", "15:00"}, nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		t := strings.TrimSpace(part)
		if t == "" {
			continue
		}
		var h, m int
		if _, err := fmt.Sscanf(t, "%d:%d", &h, &m); err != nil || h < 0 || h > 23 || m < 0 || m > 59 {
			return nil, fmt.Errorf("invalid SCHEDULE_TIMES entry %q, want HH:MM", t)
		}
		out = append(out, fmt.Sprintf("%02d:%02d", h, m))
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("SCHEDULE_TIMES must name at least one time of day")
	}
	return out, nil
}
