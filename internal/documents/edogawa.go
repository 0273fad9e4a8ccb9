package documents

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/tomohito-hyodo01/jujo-discord-app/internal/models"
	"github.com/tomohito-hyodo01/jujo-discord-app/internal/regions"
	"github.com/tomohito-hyodo01/jujo-discord-app/internal/workbook"
)

const (
	edogawaSheet           = "Sheet1"
	edogawaRosterTemplate  = "会員登録表フォーマット.xlsx"
	edogawaFormTemplate    = "個人戦_申込書フォーマット.xlsx"
	edogawaRosterOutput    = "会員登録表.xlsx"
	edogawaFiscalYearToken = "⚪︎"

	rosterFirstRow = 6
	formFirstRow   = 10
	// rows per entry on the entry form: the applicant and the partner line
	formSlotRows = 2
)

// categoryRank orders entries on the entry form. Unlisted categories sort
// after every listed one.
var categoryRank = map[string]int{
	"一般": 0,
	"35": 1,
	"45": 2,
	"55": 3,
	"65": 4,
}

const unrankedCategory = 999

func rankOf(category string) int {
	if r, ok := categoryRank[category]; ok {
		return r
	}
	return unrankedCategory
}

// Edogawa renders the 江戸川区 roster and individual entry form.
type Edogawa struct {
	env Env
}

func NewEdogawa(env Env) *Edogawa { return &Edogawa{env: env} }

func (s *Edogawa) RegionID() int { return regions.Edogawa }

// GenerateRoster lists every participant not yet registered with the region,
// once, in order of first appearance. It returns nil when nobody needs
// registering.
func (s *Edogawa) GenerateRoster(_ string, entries []models.EnrichedEntry, ts time.Time) (*FileHandle, error) {
	players := unregisteredPlayers(entries)
	if len(players) == 0 {
		return nil, nil
	}

	path, err := copyTemplate(s.env, regions.Edogawa, edogawaRosterTemplate, edogawaRosterOutput)
	if err != nil {
		return nil, err
	}
	sh, err := workbook.Open(path, edogawaSheet)
	if err != nil {
		return nil, err
	}
	defer sh.Close()

	if _, err := sh.ReplaceToken(workbook.At("A", 2), edogawaFiscalYearToken, fmt.Sprint(FiscalReiwaYear(ts))); err != nil {
		return nil, err
	}

	for i, p := range players {
		row := rosterFirstRow + i
		// column E carries the template's age formula
		cells := []struct {
			col string
			v   any
		}{
			{"A", i + 1},
			{"B", p.Name},
			{"D", dateValue(p.BirthDate)},
			{"F", p.Gender.Label()},
			{"G", p.PostalCode},
			{"H", p.Address},
			{"K", p.Phone},
		}
		for _, c := range cells {
			if _, err := sh.Set(workbook.At(c.col, row), c.v); err != nil {
				return nil, err
			}
		}
	}

	if err := sh.Save(); err != nil {
		return nil, err
	}
	return &FileHandle{Key: KeyRoster, Path: path}, nil
}

// GenerateEntryForm writes one two-row slot per entry, sorted by gender and
// then category rank. A singles entry leaves the second row blank.
func (s *Edogawa) GenerateEntryForm(event models.Event, entries []models.EnrichedEntry, ts time.Time) (*FileHandle, error) {
	if len(entries) == 0 {
		return nil, nil
	}

	path, err := copyTemplate(s.env, regions.Edogawa, edogawaFormTemplate, safeFileName(event.Name)+"_申込書.xlsx")
	if err != nil {
		return nil, err
	}
	sh, err := workbook.Open(path, edogawaSheet)
	if err != nil {
		return nil, err
	}
	defer sh.Close()

	if _, err := sh.Set(workbook.At("A", 1), event.Name+"　申込書"); err != nil {
		return nil, err
	}
	if _, err := sh.Set(workbook.At("F", 3), "申　込　日　"+ReiwaDate(ts)); err != nil {
		return nil, err
	}

	for i, e := range SortEntries(entries) {
		row := formFirstRow + i*formSlotRows
		if _, err := sh.Set(workbook.At("A", row), i+1); err != nil {
			return nil, err
		}
		division := e.Category + e.Gender.DivisionLabel()
		for j, p := range e.Players() {
			r := row + j
			cells := []struct {
				col string
				v   any
			}{
				{"B", division},
				{"C", p.Name},
				{"D", dateValue(p.BirthDate)},
				{"E", p.Club},
			}
			for _, c := range cells {
				if _, err := sh.Set(workbook.At(c.col, r), c.v); err != nil {
					return nil, err
				}
			}
		}
	}

	if err := sh.Save(); err != nil {
		return nil, err
	}
	return &FileHandle{Key: KeyEntryForm, Path: path}, nil
}

// SortEntries returns entries stable-sorted by gender, then category rank.
func SortEntries(entries []models.EnrichedEntry) []models.EnrichedEntry {
	out := slices.Clone(entries)
	slices.SortStableFunc(out, func(a, b models.EnrichedEntry) int {
		if a.Gender != b.Gender {
			return int(a.Gender) - int(b.Gender)
		}
		return rankOf(a.Category) - rankOf(b.Category)
	})
	return out
}

func unregisteredPlayers(entries []models.EnrichedEntry) []models.Participant {
	seen := map[int64]bool{}
	var out []models.Participant
	for _, e := range entries {
		for _, p := range e.Players() {
			if p.LocallyRegistered || seen[p.ID] {
				continue
			}
			seen[p.ID] = true
			out = append(out, p)
		}
	}
	return out
}

func dateValue(t time.Time) any {
	if t.IsZero() {
		return ""
	}
	return t
}

func safeFileName(name string) string {
	r := strings.NewReplacer("/", "_", `\`, "_", ":", "_", "*", "_", "?", "_", `"`, "_", "<", "_", ">", "_", "|", "_")
	name = strings.TrimSpace(r.Replace(name))
	if name == "" {
		return "event"
	}
	return name
}
