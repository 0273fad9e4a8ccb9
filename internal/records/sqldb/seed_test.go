package sqldb

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tomohito-hyodo01/jujo-discord-app/internal/models"
)

// The service never writes records; these seed test databases.

// CreateEvent seeds an event row.
func (s *Store) CreateEvent(ctx context.Context, ev models.Event) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`INSERT INTO events (`+eventColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		ev.ID, ev.Name, ev.RegionID, formatDate(ev.Deadline), formatDate(ev.EventDate),
		int(ev.Classification), boolInt(ev.Mixed), strings.Join(ev.Categories, ","),
	)
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}
	return nil
}

// CreateEntry seeds an entry with its partners and returns the assigned id.
func (s *Store) CreateEntry(ctx context.Context, e models.Entry) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var id int64
	err = tx.QueryRowContext(ctx, s.rebind(`INSERT INTO entries (account_id, event_id, category, gender, primary_id) VALUES (?, ?, ?, ?, ?) RETURNING entry_id`),
		e.AccountID, e.EventID, e.Category, int(e.Gender), e.PrimaryID,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert entry: %w", err)
	}
	for i, pid := range e.SecondaryIDs {
		if _, err := tx.ExecContext(ctx, s.rebind(`INSERT INTO entry_partners (entry_id, slot, participant_id) VALUES (?, ?, ?)`), id, i, pid); err != nil {
			return 0, fmt.Errorf("failed to insert entry partner: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit entry: %w", err)
	}
	return id, nil
}

// CreateParticipant seeds a participant and returns the assigned id.
func (s *Store) CreateParticipant(ctx context.Context, p models.Participant) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, s.rebind(`INSERT INTO participants (account_id, name, birth_date, gender, postal_code, address, phone, membership_no, locally_registered, club) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING participant_id`),
		p.AccountID, p.Name, formatDate(p.BirthDate), int(p.Gender), p.PostalCode, p.Address, p.Phone, p.MembershipNo, boolInt(p.LocallyRegistered), p.Club,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert participant: %w", err)
	}
	return id, nil
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
