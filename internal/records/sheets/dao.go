package sheets

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tomohito-hyodo01/jujo-discord-app/internal/models"
	"github.com/tomohito-hyodo01/jujo-discord-app/internal/records"
	"github.com/tomohito-hyodo01/jujo-discord-app/internal/util"
)

var _ records.Store = (*Client)(nil)

const (
	SheetEvents       = "Events"
	SheetEntries      = "Entries"
	SheetParticipants = "Participants"
)

func (c *Client) readAll(ctx context.Context, sheet string) ([][]interface{}, error) {
	resp, err := c.srv.Spreadsheets.Values.Get(c.spreadsheetID, sheet+"!A:Z").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", sheet, err)
	}
	return resp.Values, nil
}

// ---------- Events ----------
// event_id | name | region_id | deadline | event_date | classification | mixed | categories

func (c *Client) Events(ctx context.Context) ([]models.Event, error) {
	values, err := c.readAll(ctx, SheetEvents)
	if err != nil {
		return nil, err
	}
	events := []models.Event{}
	// header row at index 0
	for i := 1; i < len(values); i++ {
		ev, ok := parseEvent(values[i], c.loc)
		if !ok {
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}

func (c *Client) EventByID(ctx context.Context, id string) (models.Event, error) {
	events, err := c.Events(ctx)
	if err != nil {
		return models.Event{}, err
	}
	for _, ev := range events {
		if ev.ID == id {
			return ev, nil
		}
	}
	return models.Event{}, fmt.Errorf("event %s: %w", id, records.ErrNotFound)
}

func parseEvent(row []interface{}, loc *time.Location) (models.Event, bool) {
	id := strings.TrimSpace(get(row, 0))
	if id == "" {
		return models.Event{}, false
	}
	region, _ := strconv.Atoi(strings.TrimSpace(get(row, 2)))
	deadline, err := util.ParseDate(get(row, 3), loc)
	if err != nil {
		// an event without a readable deadline can never be open
		return models.Event{}, false
	}
	eventDate, _ := util.ParseDate(get(row, 4), loc)
	class, _ := strconv.Atoi(strings.TrimSpace(get(row, 5)))
	return models.Event{
		ID:             id,
		Name:           get(row, 1),
		RegionID:       region,
		Deadline:       deadline,
		EventDate:      eventDate,
		Classification: models.Classification(class),
		Mixed:          util.NormalizeBool(get(row, 6)),
		Categories:     util.SplitList(get(row, 7)),
	}, true
}

// ---------- Entries ----------
// entry_id | account_id | event_id | category | gender | primary_id | secondary_ids

func (c *Client) Entries(ctx context.Context) ([]models.Entry, error) {
	values, err := c.readAll(ctx, SheetEntries)
	if err != nil {
		return nil, err
	}
	entries := []models.Entry{}
	for i := 1; i < len(values); i++ {
		e, ok := parseEntry(values[i])
		if !ok {
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (c *Client) EntriesByEvent(ctx context.Context, eventID string) ([]models.Entry, error) {
	all, err := c.Entries(ctx)
	if err != nil {
		return nil, err
	}
	out := []models.Entry{}
	for _, e := range all {
		if e.EventID == eventID {
			out = append(out, e)
		}
	}
	return out, nil
}

func parseEntry(row []interface{}) (models.Entry, bool) {
	if len(row) == 0 {
		return models.Entry{}, false
	}
	eventID := strings.TrimSpace(get(row, 2))
	primary, err := strconv.ParseInt(strings.TrimSpace(get(row, 5)), 10, 64)
	if eventID == "" || err != nil {
		return models.Entry{}, false
	}
	id, _ := strconv.ParseInt(strings.TrimSpace(get(row, 0)), 10, 64)
	gender, _ := strconv.Atoi(strings.TrimSpace(get(row, 4)))
	return models.Entry{
		ID:           id,
		AccountID:    strings.TrimSpace(get(row, 1)),
		EventID:      eventID,
		Category:     strings.TrimSpace(get(row, 3)),
		Gender:       models.Gender(gender),
		PrimaryID:    primary,
		SecondaryIDs: util.ParseIDs(get(row, 6)),
	}, true
}

// ---------- Participants ----------
// participant_id | account_id | name | birth_date | gender | postal_code |
// address | phone | membership_no | locally_registered | club

func (c *Client) Participants(ctx context.Context) ([]models.Participant, error) {
	values, err := c.readAll(ctx, SheetParticipants)
	if err != nil {
		return nil, err
	}
	out := []models.Participant{}
	for i := 1; i < len(values); i++ {
		p, ok := parseParticipant(values[i], c.loc)
		if !ok {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (c *Client) ParticipantByID(ctx context.Context, id int64) (models.Participant, error) {
	all, err := c.Participants(ctx)
	if err != nil {
		return models.Participant{}, err
	}
	for _, p := range all {
		if p.ID == id {
			return p, nil
		}
	}
	return models.Participant{}, fmt.Errorf("participant %d: %w", id, records.ErrNotFound)
}

func (c *Client) ParticipantByAccount(ctx context.Context, accountID string) (models.Participant, error) {
	if accountID != "" {
		all, err := c.Participants(ctx)
		if err != nil {
			return models.Participant{}, err
		}
		for _, p := range all {
			if p.AccountID == accountID {
				return p, nil
			}
		}
	}
	return models.Participant{}, fmt.Errorf("participant for account %s: %w", accountID, records.ErrNotFound)
}

func parseParticipant(row []interface{}, loc *time.Location) (models.Participant, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(get(row, 0)), 10, 64)
	if err != nil {
		return models.Participant{}, false
	}
	birth, _ := util.ParseDate(get(row, 3), loc)
	gender, _ := strconv.Atoi(strings.TrimSpace(get(row, 4)))
	return models.Participant{
		ID:                id,
		AccountID:         strings.TrimSpace(get(row, 1)),
		Name:              get(row, 2),
		BirthDate:         birth,
		Gender:            models.Gender(gender),
		PostalCode:        get(row, 5),
		Address:           get(row, 6),
		Phone:             get(row, 7),
		MembershipNo:      get(row, 8),
		LocallyRegistered: util.NormalizeBool(get(row, 9)),
		Club:              get(row, 10),
	}, true
}

// ---------- helpers ----------

func get(row []interface{}, idx int) string {
	if idx < 0 || idx >= len(row) || row[idx] == nil {
		return ""
	}
	return fmt.Sprint(row[idx])
}
