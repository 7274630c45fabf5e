package custody

import "fmt"

// Report is the outcome of a chain verification walk. Tamper findings are
// returned here rather than as errors so a single report can enumerate
// every break in the chain.
type Report struct {
	Valid  bool     `json:"valid"`
	Issues []string `json:"issues"`
}

// VerifyChain walks events in stored order and checks the hash chain for
// the given evidence. For each event it recomputes the expected hash from
// the recorded fields and checks the link to its predecessor. It collects
// one human-readable issue per discrepancy instead of failing fast.
//
// An empty chain is vacuously valid.
func VerifyChain(evidenceID, dataHash string, events []Event) Report {
	report := Report{Valid: true, Issues: []string{}}

	for i, e := range events {
		prev := e.Integrity.PreviousEventHash

		if i == 0 {
			if prev != nil {
				report.Issues = append(report.Issues,
					fmt.Sprintf("event 0: first event must not reference a previous hash, got %q", *prev))
			}
		} else {
			want := events[i-1].Integrity.EventHash
			switch {
			case prev == nil:
				report.Issues = append(report.Issues,
					fmt.Sprintf("event %d: missing previousEventHash, expected hash of event %d", i, i-1))
			case *prev != want:
				report.Issues = append(report.Issues,
					fmt.Sprintf("event %d: previousEventHash does not match hash of event %d", i, i-1))
			}
		}

		if recomputed := eventHash(evidenceID, dataHash, prev, e); recomputed != e.Integrity.EventHash {
			report.Issues = append(report.Issues,
				fmt.Sprintf("event %d: stored eventHash does not match recomputed hash", i))
		}
	}

	report.Valid = len(report.Issues) == 0
	return report
}
