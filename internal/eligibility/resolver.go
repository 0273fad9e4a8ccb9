// Package eligibility decides which events an account may still enter.
package eligibility

import (
	"slices"
	"time"

	"github.com/tomohito-hyodo01/jujo-discord-app/internal/models"
)

// ResolveAvailable returns the events accountID can still apply to.
//
// An event is excluded when any entry for it was submitted by accountID, or
// names the account's participant as primary or as a partner. participant is
// nil for accounts that never registered a person; only the submitter rule
// applies then. Events whose deadline is before today are dropped; a deadline
// on today is still open. Input order is kept.
func ResolveAvailable(events []models.Event, entries []models.Entry, participant *models.Participant, accountID string, today time.Time) []models.Event {
	excluded := map[string]bool{}
	for _, e := range entries {
		if e.AccountID == accountID {
			excluded[e.EventID] = true
			continue
		}
		if participant == nil {
			continue
		}
		if e.PrimaryID == participant.ID || slices.Contains(e.SecondaryIDs, participant.ID) {
			excluded[e.EventID] = true
		}
	}

	out := []models.Event{}
	for _, ev := range events {
		if excluded[ev.ID] {
			continue
		}
		if dateKey(ev.Deadline) < dateKey(today) {
			continue
		}
		out = append(out, ev)
	}
	return out
}

// dateKey compares calendar dates as written, ignoring time and zone.
func dateKey(t time.Time) int {
	y, m, d := t.Date()
	return y*10000 + int(m)*100 + d
}
