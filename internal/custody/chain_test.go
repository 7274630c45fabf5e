package custody_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/casetrace/casetrace/internal/custody"
)

var ctx = context.Background()

const (
	evidenceID = "9f2c6f7e-5f62-4df0-9d3a-0c5b4b1a2e33"
	dataHash   = "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
)

func buildChain(t *testing.T, n int) []custody.Event {
	t.Helper()
	store := custody.NewMemoryStore()

	types := []custody.EventType{custody.Collection, custody.Transfer, custody.Analysis, custody.Other}
	for i := 0; i < n; i++ {
		_, err := store.Append(ctx, evidenceID, dataHash, custody.Event{
			Type:    types[i%len(types)],
			From:    &custody.ActorRef{UserID: "u-100", Name: "Det. Rivera", Organization: "Metro PD"},
			To:      &custody.ActorRef{UserID: "u-200", Name: "Forensics Lab"},
			Purpose: "handling step",
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	events, err := store.Load(ctx, evidenceID)
	if err != nil {
		t.Fatal(err)
	}
	return events
}

func TestBuildEvent_firstEventHasNilPrev(t *testing.T) {
	e := custody.BuildEvent(evidenceID, dataHash, nil, custody.Event{
		Type:    custody.Collection,
		Purpose: "initial seizure",
	})
	if e.Integrity.PreviousEventHash != nil {
		t.Errorf("first event previousEventHash = %v, want nil", *e.Integrity.PreviousEventHash)
	}
	if e.Integrity.EventHash == "" {
		t.Error("eventHash must be set")
	}
	if e.Integrity.Signature != e.Integrity.EventHash {
		t.Error("signature is derived identically to eventHash in the current scheme")
	}
}

func TestAppend_linksToPredecessor(t *testing.T) {
	events := buildChain(t, 3)
	for i := 1; i < len(events); i++ {
		prev := events[i].Integrity.PreviousEventHash
		if prev == nil || *prev != events[i-1].Integrity.EventHash {
			t.Errorf("event %d does not link to event %d", i, i-1)
		}
	}
}

func TestVerifyChain_valid(t *testing.T) {
	events := buildChain(t, 5)
	report := custody.VerifyChain(evidenceID, dataHash, events)
	if !report.Valid {
		t.Errorf("valid chain reported invalid: %v", report.Issues)
	}
	if len(report.Issues) != 0 {
		t.Errorf("expected no issues, got %v", report.Issues)
	}
}

func TestVerifyChain_emptyChainIsVacuouslyValid(t *testing.T) {
	report := custody.VerifyChain(evidenceID, dataHash, nil)
	if !report.Valid {
		t.Errorf("empty chain should be valid, got issues %v", report.Issues)
	}
}

func TestVerifyChain_detectsFieldMutation(t *testing.T) {
	events := buildChain(t, 4)
	events[1].Purpose = "retroactively edited"

	report := custody.VerifyChain(evidenceID, dataHash, events)
	if report.Valid {
		t.Fatal("mutated chain reported valid")
	}
	if !hasIssueFor(report, "event 1") {
		t.Errorf("expected an issue at event 1, got %v", report.Issues)
	}
}

func TestVerifyChain_detectsRecomputedHashViaSuccessorLink(t *testing.T) {
	events := buildChain(t, 4)

	// An attacker edits event 1 and recomputes its hash to cover the edit.
	// The chain must still break at event 2, whose recorded link now
	// points at the old hash.
	k := 1
	mutated := events[k]
	mutated.Purpose = "covered-up edit"
	events[k] = custody.BuildEvent(evidenceID, dataHash, mutated.Integrity.PreviousEventHash, custody.Event{
		Type:      mutated.Type,
		From:      mutated.From,
		To:        mutated.To,
		Purpose:   mutated.Purpose,
		Notes:     mutated.Notes,
		Timestamp: mutated.Timestamp,
	})

	report := custody.VerifyChain(evidenceID, dataHash, events)
	if report.Valid {
		t.Fatal("chain with recomputed event hash reported valid")
	}
	if !hasIssueFor(report, "event 2") {
		t.Errorf("expected the break to surface at event 2, got %v", report.Issues)
	}
}

func TestVerifyChain_detectsDataHashSubstitution(t *testing.T) {
	events := buildChain(t, 2)
	report := custody.VerifyChain(evidenceID, strings.Repeat("0", 64), events)
	if report.Valid {
		t.Error("chain verified against a different content fingerprint")
	}
}

func TestVerifyChain_firstEventWithPrevIsAnIssue(t *testing.T) {
	bogus := "deadbeef"
	first := custody.BuildEvent(evidenceID, dataHash, &bogus, custody.Event{
		Type:    custody.Collection,
		Purpose: "initial seizure",
	})
	report := custody.VerifyChain(evidenceID, dataHash, []custody.Event{first})
	if report.Valid {
		t.Fatal("first event referencing a previous hash should be an issue")
	}
	if !hasIssueFor(report, "event 0") {
		t.Errorf("expected an issue at event 0, got %v", report.Issues)
	}
}

func TestVerifyChain_enumeratesAllBreaks(t *testing.T) {
	events := buildChain(t, 6)
	events[1].Notes = "edit one"
	events[3].Purpose = "edit two"

	report := custody.VerifyChain(evidenceID, dataHash, events)
	if report.Valid {
		t.Fatal("chain with two edits reported valid")
	}
	if !hasIssueFor(report, "event 1") || !hasIssueFor(report, "event 3") {
		t.Errorf("expected issues at events 1 and 3, got %v", report.Issues)
	}
}

func TestBuildEvent_timestampTruncatedToMicroseconds(t *testing.T) {
	ts := time.Date(2026, 3, 14, 9, 26, 53, 589793238, time.UTC)
	e := custody.BuildEvent(evidenceID, dataHash, nil, custody.Event{
		Type:      custody.Analysis,
		Purpose:   "ai analysis attach",
		Timestamp: ts,
	})
	if e.Timestamp.Nanosecond()%1000 != 0 {
		t.Errorf("timestamp not truncated to microseconds: %v", e.Timestamp)
	}

	// The hash must be reproducible from the stored (truncated) timestamp,
	// as happens after a database round trip.
	report := custody.VerifyChain(evidenceID, dataHash, []custody.Event{e})
	if !report.Valid {
		t.Errorf("event does not re-verify from its stored fields: %v", report.Issues)
	}
}

func hasIssueFor(r custody.Report, prefix string) bool {
	for _, issue := range r.Issues {
		if strings.HasPrefix(issue, prefix) {
			return true
		}
	}
	return false
}
