// Package sqldb implements records.Store over database/sql for Postgres (pgx)
// and SQLite (modernc, no CGO).
package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers "pgx"
	_ "modernc.org/sqlite"             // registers "sqlite"

	"github.com/tomohito-hyodo01/jujo-discord-app/internal/models"
	"github.com/tomohito-hyodo01/jujo-discord-app/internal/records"
	"github.com/tomohito-hyodo01/jujo-discord-app/internal/util"
)

var _ records.Store = (*Store)(nil)

type dialect struct {
	driver      string
	serial      string
	placeholder func(n int) string
}

var (
	Postgres = dialect{
		driver:      "pgx",
		serial:      "BIGSERIAL PRIMARY KEY",
		placeholder: func(n int) string { return "$" + strconv.Itoa(n) },
	}
	SQLite = dialect{
		driver:      "sqlite",
		serial:      "INTEGER PRIMARY KEY",
		placeholder: func(int) string { return "?" },
	}
)

type Store struct {
	db  *sql.DB
	d   dialect
	loc *time.Location
}

// OpenPostgres connects with a pgx DSN and ensures the schema exists.
func OpenPostgres(ctx context.Context, dsn string, loc *time.Location) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres dsn required")
	}
	return open(ctx, Postgres, dsn, loc)
}

// OpenSQLite opens (creating if needed) a SQLite database file.
func OpenSQLite(ctx context.Context, path string, loc *time.Location) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	return open(ctx, SQLite, path, loc)
}

func open(ctx context.Context, d dialect, dsn string, loc *time.Location) (*Store, error) {
	db, err := sql.Open(d.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", d.driver, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", d.driver, err)
	}
	if err := runMigrations(ctx, db, d); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	if loc == nil {
		loc = time.Local
	}
	return &Store{db: db, d: d, loc: loc}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// rebind rewrites ? placeholders for the store's dialect.
func (s *Store) rebind(q string) string {
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteString(s.d.placeholder(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// ---------- Events ----------

const eventColumns = `event_id, name, region_id, deadline, event_date, classification, mixed, categories`

func (s *Store) Events(ctx context.Context) ([]models.Event, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+eventColumns+` FROM events ORDER BY deadline, event_id`)
	if err != nil {
		return nil, fmt.Errorf("select events: %w", err)
	}
	defer rows.Close()
	out := []models.Event{}
	for rows.Next() {
		ev, err := s.scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (s *Store) EventByID(ctx context.Context, id string) (models.Event, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+eventColumns+` FROM events WHERE event_id = ?`), id)
	ev, err := s.scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Event{}, fmt.Errorf("event %s: %w", id, records.ErrNotFound)
	}
	return ev, err
}

type scanner interface {
	Scan(dest ...any) error
}

func (s *Store) scanEvent(sc scanner) (models.Event, error) {
	var (
		ev                  models.Event
		deadline, eventDate string
		class, mixed        int
		categories          string
	)
	if err := sc.Scan(&ev.ID, &ev.Name, &ev.RegionID, &deadline, &eventDate, &class, &mixed, &categories); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ev, err
		}
		return ev, fmt.Errorf("scan event: %w", err)
	}
	var err error
	if ev.Deadline, err = util.ParseDate(deadline, s.loc); err != nil {
		return ev, fmt.Errorf("event %s deadline: %w", ev.ID, err)
	}
	ev.EventDate, _ = util.ParseDate(eventDate, s.loc)
	ev.Classification = models.Classification(class)
	ev.Mixed = mixed != 0
	ev.Categories = util.SplitList(categories)
	return ev, nil
}

// ---------- Entries ----------

const entryColumns = `entry_id, account_id, event_id, category, gender, primary_id`

func (s *Store) Entries(ctx context.Context) ([]models.Entry, error) {
	return s.queryEntries(ctx,
		`SELECT `+entryColumns+` FROM entries ORDER BY entry_id`,
		`SELECT entry_id, participant_id FROM entry_partners ORDER BY entry_id, slot`,
	)
}

func (s *Store) EntriesByEvent(ctx context.Context, eventID string) ([]models.Entry, error) {
	return s.queryEntries(ctx,
		`SELECT `+entryColumns+` FROM entries WHERE event_id = ? ORDER BY entry_id`,
		`SELECT p.entry_id, p.participant_id FROM entry_partners p
		 JOIN entries e ON e.entry_id = p.entry_id
		 WHERE e.event_id = ? ORDER BY p.entry_id, p.slot`,
		eventID,
	)
}

func (s *Store) queryEntries(ctx context.Context, entriesQ, partnersQ string, args ...any) ([]models.Entry, error) {
	partners := map[int64][]int64{}
	prow, err := s.db.QueryContext(ctx, s.rebind(partnersQ), args...)
	if err != nil {
		return nil, fmt.Errorf("select entry partners: %w", err)
	}
	for prow.Next() {
		var entryID, pid int64
		if err := prow.Scan(&entryID, &pid); err != nil {
			prow.Close()
			return nil, fmt.Errorf("scan entry partner: %w", err)
		}
		partners[entryID] = append(partners[entryID], pid)
	}
	prow.Close()
	if err := prow.Err(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(entriesQ), args...)
	if err != nil {
		return nil, fmt.Errorf("select entries: %w", err)
	}
	defer rows.Close()
	out := []models.Entry{}
	for rows.Next() {
		var (
			e      models.Entry
			gender int
		)
		if err := rows.Scan(&e.ID, &e.AccountID, &e.EventID, &e.Category, &gender, &e.PrimaryID); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		e.Gender = models.Gender(gender)
		e.SecondaryIDs = partners[e.ID]
		out = append(out, e)
	}
	return out, rows.Err()
}

// ---------- Participants ----------

const participantColumns = `participant_id, account_id, name, birth_date, gender, postal_code, address, phone, membership_no, locally_registered, club`

func (s *Store) Participants(ctx context.Context) ([]models.Participant, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+participantColumns+` FROM participants ORDER BY participant_id`)
	if err != nil {
		return nil, fmt.Errorf("select participants: %w", err)
	}
	defer rows.Close()
	out := []models.Participant{}
	for rows.Next() {
		p, err := s.scanParticipant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) ParticipantByID(ctx context.Context, id int64) (models.Participant, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+participantColumns+` FROM participants WHERE participant_id = ?`), id)
	p, err := s.scanParticipant(row)
	if errors.Is(err, sql.ErrNoRows) {
		return p, fmt.Errorf("participant %d: %w", id, records.ErrNotFound)
	}
	return p, err
}

func (s *Store) ParticipantByAccount(ctx context.Context, accountID string) (models.Participant, error) {
	if accountID == "" {
		return models.Participant{}, fmt.Errorf("participant for empty account: %w", records.ErrNotFound)
	}
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+participantColumns+` FROM participants WHERE account_id = ? ORDER BY participant_id LIMIT 1`), accountID)
	p, err := s.scanParticipant(row)
	if errors.Is(err, sql.ErrNoRows) {
		return p, fmt.Errorf("participant for account %s: %w", accountID, records.ErrNotFound)
	}
	return p, err
}

func (s *Store) scanParticipant(sc scanner) (models.Participant, error) {
	var (
		p             models.Participant
		birth         string
		gender, local int
	)
	err := sc.Scan(&p.ID, &p.AccountID, &p.Name, &birth, &gender, &p.PostalCode, &p.Address, &p.Phone, &p.MembershipNo, &local, &p.Club)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return p, err
		}
		return p, fmt.Errorf("scan participant: %w", err)
	}
	p.BirthDate, _ = util.ParseDate(birth, s.loc)
	p.Gender = models.Gender(gender)
	p.LocallyRegistered = local != 0
	return p, nil
}
