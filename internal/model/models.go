// Package model defines shared data structures for the monitor service.
package model

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Source identifiers for the external APIs we poll.
const (
	SourceDJEN    = "djen"
	SourceDataJud = "datajud"
)

// Recipient is an advocate listed as a destination of a publication.
// Used by the aggregator to post-filter records for sources that cannot
// filter by OAB server-side.
type Recipient struct {
	Name      string `json:"name,omitempty"`
	OABNumber string `json:"oabNumber"`
	OABState  string `json:"oabState"`
}

// Publication is a normalised court communication fetched from an external
// source. It is immutable once created; ContentHash is the dedup key.
type Publication struct {
	ID                string      `json:"id"` // source-stable identifier
	CaseNumber        string      `json:"caseNumber"`
	Tribunal          string      `json:"tribunal"`
	CourtBody         string      `json:"courtBody,omitempty"`
	PublicationDate   time.Time   `json:"publicationDate"`
	CommunicationType string      `json:"communicationType"`
	BodyText          string      `json:"bodyText"`
	SourceURL         string      `json:"sourceUrl,omitempty"`
	Source            string      `json:"source"`
	Recipients        []Recipient `json:"recipients,omitempty"`
	ContentHash       string      `json:"contentHash"`
}

// ComputeContentHash derives the dedup key from the immutable fields.
// Two records with the same case number, tribunal, date, type and text hash
// identically regardless of which source supplied them. Fields are joined
// with NUL separators under a domain prefix so no field concatenation can
// collide with another.
func ComputeContentHash(caseNumber, tribunal string, date time.Time, commType, text string) string {
	h := sha256.New()
	h.Write([]byte("publication\x00"))
	h.Write([]byte(caseNumber))
	h.Write([]byte{0})
	h.Write([]byte(tribunal))
	h.Write([]byte{0})
	h.Write([]byte(date.Format("2006-01-02")))
	h.Write([]byte{0})
	h.Write([]byte(commType))
	h.Write([]byte{0})
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))
}

// Finalize fills ContentHash from the record's immutable fields.
func (p *Publication) Finalize() {
	p.ContentHash = ComputeContentHash(p.CaseNumber, p.Tribunal, p.PublicationDate, p.CommunicationType, p.BodyText)
}

// TrackedIdentity is the OAB registration used to filter publications.
// Configuration input; never mutated by the core.
type TrackedIdentity struct {
	OABNumber string
	OABState  string // "SP", "RJ", …
}

// String renders the identity in the conventional "129021/SP" form.
func (t TrackedIdentity) String() string {
	return t.OABNumber + "/" + t.OABState
}

// Matches reports whether the recipient list names this identity.
func (t TrackedIdentity) Matches(recipients []Recipient) bool {
	for _, r := range recipients {
		if r.OABNumber == t.OABNumber && r.OABState == t.OABState {
			return true
		}
	}
	return false
}

// SyncRun records one scheduler cycle. Append-only history.
type SyncRun struct {
	ID                    string
	StartedAt             time.Time
	FinishedAt            time.Time
	SourcesQueried        []string
	TotalFetched          int
	NewRecords            int
	CrossSourceDuplicates int
	Errors                []string
}
