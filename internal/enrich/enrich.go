// Package enrich joins raw entries with the participants they reference.
package enrich

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tomohito-hyodo01/jujo-discord-app/internal/models"
	"github.com/tomohito-hyodo01/jujo-discord-app/internal/records"
)

// ParticipantLookup resolves a participant by id. Implementations return an
// error wrapping records.ErrNotFound for unknown ids.
type ParticipantLookup interface {
	ParticipantByID(ctx context.Context, id int64) (models.Participant, error)
}

// Slot says which side of an entry a missing participant was referenced from.
type Slot string

const (
	SlotPrimary Slot = "primary"
	SlotPartner Slot = "partner"
)

// MissingParticipantError records a participant id an entry references but
// the record store does not know.
type MissingParticipantError struct {
	EventID       string
	EntryID       int64
	ParticipantID int64
	Slot          Slot
}

func (e MissingParticipantError) Error() string {
	return fmt.Sprintf("event %s entry %d: %s participant %d not found", e.EventID, e.EntryID, e.Slot, e.ParticipantID)
}

func (e MissingParticipantError) Unwrap() error { return records.ErrNotFound }

type Result struct {
	Entries []models.EnrichedEntry
	Missing []MissingParticipantError
}

type Enricher struct {
	logger *slog.Logger
}

func New(logger *slog.Logger) *Enricher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Enricher{logger: logger}
}

// Enrich resolves the primary and, for doubles, the first partner of every
// entry. Entries whose primary cannot be resolved are dropped; an unresolved
// partner leaves the entry as a singles line. Lookup failures other than
// not-found abort the whole call.
func (en *Enricher) Enrich(ctx context.Context, event models.Event, raw []models.Entry, lookup ParticipantLookup) (Result, error) {
	res := Result{Entries: make([]models.EnrichedEntry, 0, len(raw))}
	for _, e := range raw {
		primary, err := lookup.ParticipantByID(ctx, e.PrimaryID)
		if err != nil {
			if !errors.Is(err, records.ErrNotFound) {
				return Result{}, fmt.Errorf("enrich entry %d: %w", e.ID, err)
			}
			res.Missing = append(res.Missing, en.missing(event, e, e.PrimaryID, SlotPrimary))
			continue
		}

		out := models.EnrichedEntry{Entry: e, Primary: primary}
		out.SecondaryIDs = append([]int64(nil), e.SecondaryIDs...)

		if pid, ok := e.PartnerID(); ok {
			partner, err := lookup.ParticipantByID(ctx, pid)
			switch {
			case err == nil:
				out.Partner = &partner
			case errors.Is(err, records.ErrNotFound):
				res.Missing = append(res.Missing, en.missing(event, e, pid, SlotPartner))
			default:
				return Result{}, fmt.Errorf("enrich entry %d partner: %w", e.ID, err)
			}
		}
		res.Entries = append(res.Entries, out)
	}
	return res, nil
}

func (en *Enricher) missing(event models.Event, e models.Entry, pid int64, slot Slot) MissingParticipantError {
	m := MissingParticipantError{EventID: event.ID, EntryID: e.ID, ParticipantID: pid, Slot: slot}
	en.logger.Warn("participant not found",
		"event_id", event.ID, "entry_id", e.ID, "participant_id", pid, "slot", string(slot))
	return m
}

// ParticipantIndex is an in-memory ParticipantLookup.
type ParticipantIndex map[int64]models.Participant

func NewParticipantIndex(ps []models.Participant) ParticipantIndex {
	idx := make(ParticipantIndex, len(ps))
	for _, p := range ps {
		idx[p.ID] = p
	}
	return idx
}

func (idx ParticipantIndex) ParticipantByID(_ context.Context, id int64) (models.Participant, error) {
	p, ok := idx[id]
	if !ok {
		return models.Participant{}, fmt.Errorf("participant %d: %w", id, records.ErrNotFound)
	}
	return p, nil
}
