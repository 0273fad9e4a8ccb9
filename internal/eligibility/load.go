package eligibility

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/tomohito-hyodo01/jujo-discord-app/internal/models"
	"github.com/tomohito-hyodo01/jujo-discord-app/internal/records"
)

// Source is the slice of records.Store the resolver reads.
type Source interface {
	Events(ctx context.Context) ([]models.Event, error)
	Entries(ctx context.Context) ([]models.Entry, error)
	ParticipantByAccount(ctx context.Context, accountID string) (models.Participant, error)
}

// Available loads a snapshot from src and resolves it for accountID.
func Available(ctx context.Context, src Source, accountID string, today time.Time) ([]models.Event, error) {
	events, err := src.Events(ctx)
	if err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}
	entries, err := src.Entries(ctx)
	if err != nil {
		return nil, fmt.Errorf("load entries: %w", err)
	}
	var participant *models.Participant
	p, err := src.ParticipantByAccount(ctx, accountID)
	switch {
	case err == nil:
		participant = &p
	case errors.Is(err, records.ErrNotFound):
	default:
		return nil, fmt.Errorf("load participant: %w", err)
	}
	return ResolveAvailable(events, entries, participant, accountID, today), nil
}

// ByDeadline returns a copy of events ordered by deadline, earliest first.
func ByDeadline(events []models.Event) []models.Event {
	out := slices.Clone(events)
	slices.SortStableFunc(out, func(a, b models.Event) int {
		return dateKey(a.Deadline) - dateKey(b.Deadline)
	})
	return out
}
