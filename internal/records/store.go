// Package records reads events, entries and participants from the external
// record store. The service never writes entry or participant data.
package records

import (
	"context"
	"errors"

	"github.com/tomohito-hyodo01/jujo-discord-app/internal/models"
)

var ErrNotFound = errors.New("record not found")

// Store is the read surface the eligibility and generation paths need:
// equality lookups and full scans.
type Store interface {
	Events(ctx context.Context) ([]models.Event, error)
	// EventByID returns ErrNotFound when the event does not exist.
	EventByID(ctx context.Context, id string) (models.Event, error)

	Entries(ctx context.Context) ([]models.Entry, error)
	EntriesByEvent(ctx context.Context, eventID string) ([]models.Entry, error)

	// Participants returns every participant, the snapshot a generation run
	// resolves entries against.
	Participants(ctx context.Context) ([]models.Participant, error)
	// ParticipantByID returns ErrNotFound when the participant does not exist.
	ParticipantByID(ctx context.Context, id int64) (models.Participant, error)
	// ParticipantByAccount returns ErrNotFound for accounts that never
	// registered a participant.
	ParticipantByAccount(ctx context.Context, accountID string) (models.Participant, error)

	Close() error
}
