package models

import "time"

type Gender int

const (
	Male   Gender = 0
	Female Gender = 1
)

// Label returns the short Japanese label used on the roster.
func (g Gender) Label() string {
	if g == Female {
		return "女"
	}
	return "男"
}

// DivisionLabel returns the label appended to a category on the entry form.
func (g Gender) DivisionLabel() string {
	if g == Female {
		return "女子"
	}
	return "男子"
}

type Classification int

const (
	Individual Classification = 0
	Team       Classification = 1
)

type Event struct {
	ID             string
	Name           string
	RegionID       int
	Deadline       time.Time
	EventDate      time.Time
	Classification Classification
	Mixed          bool
	Categories     []string
}

type Participant struct {
	ID                int64
	AccountID         string // empty when added through someone else's entry
	Name              string
	BirthDate         time.Time
	Gender            Gender
	PostalCode        string
	Address           string
	Phone             string
	MembershipNo      string
	LocallyRegistered bool
	Club              string
}

type Entry struct {
	ID           int64
	AccountID    string
	EventID      string
	Category     string
	Gender       Gender
	PrimaryID    int64
	SecondaryIDs []int64
}

// PartnerID returns the first secondary participant id. Doubles carry exactly
// one partner; ids past the first are not used.
func (e Entry) PartnerID() (int64, bool) {
	if len(e.SecondaryIDs) == 0 {
		return 0, false
	}
	return e.SecondaryIDs[0], true
}

// EnrichedEntry is an Entry joined with its resolved participants. It only
// lives for the duration of a document generation.
type EnrichedEntry struct {
	Entry
	Primary Participant
	Partner *Participant
}

// Players returns the primary participant followed by the partner, if any.
func (e EnrichedEntry) Players() []Participant {
	out := []Participant{e.Primary}
	if e.Partner != nil {
		out = append(out, *e.Partner)
	}
	return out
}

// SameDay reports whether a falls on the same calendar date as b.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// DateOnly truncates t to midnight in its own location.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
