// Package custody implements the tamper-evident chain of custody kept for
// every evidence item.
//
// Events are hash-chained: each event's hash covers the evidence ID, the
// evidence content fingerprint, the previous event's hash, and the event's
// own fields. Editing any stored event breaks the link recorded by its
// successor, so tampering is locally detectable without an external root
// of trust.
//
// Two stores are provided: MemoryStore for tests and single-process use,
// and Store backed by PostgreSQL for production.
package custody

import (
	"fmt"
	"strings"
	"time"

	"github.com/casetrace/casetrace/internal/hashing"
)

// EventType classifies a custody event.
type EventType string

const (
	Collection EventType = "COLLECTION"
	Transfer   EventType = "TRANSFER"
	Analysis   EventType = "ANALYSIS"
	Other      EventType = "OTHER"
)

// ActorRef identifies a party handling the evidence.
type ActorRef struct {
	UserID       string `json:"userId"`
	Name         string `json:"name,omitempty"`
	Organization string `json:"organization,omitempty"`
}

// Integrity carries the hash-chain fields of an event.
//
// Signature is currently derived the same way as EventHash. It is a
// placeholder slot for a future asymmetric signing scheme and offers no
// protection beyond the hash chain against a writer with direct database
// access.
type Integrity struct {
	PreviousEventHash *string `json:"previousEventHash"`
	EventHash         string  `json:"eventHash"`
	Signature         string  `json:"signature"`
}

// Event is a single append-only custody record. Once appended it is never
// mutated or deleted, even if the evidence itself is soft-deleted.
type Event struct {
	Type      EventType `json:"eventType"`
	From      *ActorRef `json:"from,omitempty"`
	To        *ActorRef `json:"to,omitempty"`
	Purpose   string    `json:"purpose"`
	Notes     string    `json:"notes,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Integrity Integrity `json:"integrity"`
}

func actorString(a *ActorRef) string {
	if a == nil {
		return ""
	}
	return a.UserID + "/" + a.Name + "/" + a.Organization
}

// canonical renders the hashed fields of an event as a stable string.
// Timestamps are formatted RFC3339Nano after truncation to microseconds,
// so a round trip through PostgreSQL (microsecond precision) does not
// change the hash.
func canonical(e Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s|%s|%s|%s|%s|%s",
		e.Type,
		actorString(e.From),
		actorString(e.To),
		e.Purpose,
		e.Notes,
		e.Timestamp.UTC().Format(time.RFC3339Nano),
	)
	return b.String()
}

func eventHash(evidenceID, dataHash string, prev *string, e Event) string {
	prevField := "null"
	if prev != nil {
		prevField = *prev
	}
	payload := evidenceID + "|" + dataHash + "|" + prevField + "|" + canonical(e)
	return hashing.MustDigest([]byte(payload), hashing.SHA256)
}

// BuildEvent completes base with its integrity fields: the chained event
// hash over (evidenceID, dataHash, prev, event fields) and the placeholder
// signature. The first event in a chain must be built with prev == nil.
// A zero Timestamp is filled with the current time.
func BuildEvent(evidenceID, dataHash string, prev *string, base Event) Event {
	if base.Timestamp.IsZero() {
		base.Timestamp = time.Now()
	}
	base.Timestamp = base.Timestamp.UTC().Truncate(time.Microsecond)

	h := eventHash(evidenceID, dataHash, prev, base)
	base.Integrity = Integrity{
		PreviousEventHash: prev,
		EventHash:         h,
		Signature:         h,
	}
	return base
}
