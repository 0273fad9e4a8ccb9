// Package memory implements records.Store in process memory for tests and
// local runs.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/tomohito-hyodo01/jujo-discord-app/internal/models"
	"github.com/tomohito-hyodo01/jujo-discord-app/internal/records"
)

var _ records.Store = (*Store)(nil)

type Store struct {
	mu           sync.RWMutex
	events       []models.Event
	entries      []models.Entry
	participants []models.Participant

	// Err, when set, is returned by every read.
	Err error
}

func New() *Store { return &Store{} }

func (s *Store) AddEvent(ev models.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

func (s *Store) AddEntry(e models.Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.ID == 0 {
		e.ID = int64(len(s.entries) + 1)
	}
	s.entries = append(s.entries, e)
}

func (s *Store) AddParticipant(p models.Participant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.participants = append(s.participants, p)
}

func (s *Store) Events(_ context.Context) ([]models.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.Err != nil {
		return nil, s.Err
	}
	return append([]models.Event{}, s.events...), nil
}

func (s *Store) EventByID(_ context.Context, id string) (models.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.Err != nil {
		return models.Event{}, s.Err
	}
	for _, ev := range s.events {
		if ev.ID == id {
			return ev, nil
		}
	}
	return models.Event{}, fmt.Errorf("event %s: %w", id, records.ErrNotFound)
}

func (s *Store) Entries(_ context.Context) ([]models.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.Err != nil {
		return nil, s.Err
	}
	return append([]models.Entry{}, s.entries...), nil
}

func (s *Store) EntriesByEvent(_ context.Context, eventID string) ([]models.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.Err != nil {
		return nil, s.Err
	}
	out := []models.Entry{}
	for _, e := range s.entries {
		if e.EventID == eventID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *Store) Participants(_ context.Context) ([]models.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.Err != nil {
		return nil, s.Err
	}
	return append([]models.Participant{}, s.participants...), nil
}

func (s *Store) ParticipantByID(_ context.Context, id int64) (models.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.Err != nil {
		return models.Participant{}, s.Err
	}
	for _, p := range s.participants {
		if p.ID == id {
			return p, nil
		}
	}
	return models.Participant{}, fmt.Errorf("participant %d: %w", id, records.ErrNotFound)
}

func (s *Store) ParticipantByAccount(_ context.Context, accountID string) (models.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.Err != nil {
		return models.Participant{}, s.Err
	}
	if accountID != "" {
		for _, p := range s.participants {
			if p.AccountID == accountID {
				return p, nil
			}
		}
	}
	return models.Participant{}, fmt.Errorf("participant for account %s: %w", accountID, records.ErrNotFound)
}

func (s *Store) Close() error { return nil }
