package documents

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/tomohito-hyodo01/jujo-discord-app/internal/models"
	"github.com/tomohito-hyodo01/jujo-discord-app/internal/regions"
)

// writeTemplates builds minimal copies of the 江戸川区 templates: the same
// sheet, tokens and merged ranges as the real assets.
func writeTemplates(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	dir := filepath.Join(root, "23_江戸川区")
	require.NoError(t, os.MkdirAll(dir, 0o755))

	roster := excelize.NewFile()
	defer roster.Close()
	require.NoError(t, roster.SetCellValue("Sheet1", "A2", "令和⚪︎年度　江戸川区ソフトテニス連盟　会員登録表"))
	for row := rosterFirstRow; row < rosterFirstRow+10; row++ {
		require.NoError(t, roster.MergeCell("Sheet1", fmt.Sprintf("B%d", row), fmt.Sprintf("C%d", row)))
		require.NoError(t, roster.MergeCell("Sheet1", fmt.Sprintf("H%d", row), fmt.Sprintf("J%d", row)))
		require.NoError(t, roster.MergeCell("Sheet1", fmt.Sprintf("K%d", row), fmt.Sprintf("L%d", row)))
		require.NoError(t, roster.SetCellFormula("Sheet1", fmt.Sprintf("E%d", row), fmt.Sprintf(`IF(D%d="","",2025-YEAR(D%d))`, row, row)))
	}
	require.NoError(t, roster.SaveAs(filepath.Join(dir, edogawaRosterTemplate)))

	form := excelize.NewFile()
	defer form.Close()
	require.NoError(t, form.SetCellValue("Sheet1", "A1", "大会名　申込書"))
	for row := formFirstRow; row < formFirstRow+20; row += formSlotRows {
		require.NoError(t, form.MergeCell("Sheet1", fmt.Sprintf("A%d", row), fmt.Sprintf("A%d", row+1)))
	}
	require.NoError(t, form.SaveAs(filepath.Join(dir, edogawaFormTemplate)))

	return root
}

func cell(t *testing.T, path, ref string) string {
	t.Helper()
	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	v, err := f.GetCellValue("Sheet1", ref)
	require.NoError(t, err)
	return v
}

func player(id int64, name string, g models.Gender, registered bool) models.Participant {
	return models.Participant{
		ID:                id,
		Name:              name,
		Gender:            g,
		BirthDate:         time.Date(1980, 1, 2, 0, 0, 0, 0, time.UTC),
		PostalCode:        "134-0088",
		Address:           "江戸川区西葛西" + name,
		Phone:             "03-0000-0000",
		Club:              "十条クラブ",
		LocallyRegistered: registered,
	}
}

func entry(id int64, category string, g models.Gender, primary models.Participant, partner *models.Participant) models.EnrichedEntry {
	e := models.EnrichedEntry{
		Entry:   models.Entry{ID: id, EventID: "ev-1", Category: category, Gender: g, PrimaryID: primary.ID},
		Primary: primary,
		Partner: partner,
	}
	if partner != nil {
		e.SecondaryIDs = []int64{partner.ID}
	}
	return e
}

var genTime = time.Date(2026, 2, 10, 15, 0, 0, 0, time.UTC)

func TestEra(t *testing.T) {
	assert.Equal(t, 7, FiscalReiwaYear(time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 8, FiscalReiwaYear(time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 8, ReiwaYear(genTime))
	assert.Equal(t, "令和8年02月10日", ReiwaDate(genTime))
}

func TestFactory(t *testing.T) {
	f := NewFactory(Env{})
	s, err := f.Create(regions.Edogawa)
	require.NoError(t, err)
	assert.Equal(t, regions.Edogawa, s.RegionID())

	_, err = f.Create(regions.Kita)
	assert.ErrorIs(t, err, regions.ErrUnsupported)
	_, err = f.Create(99)
	assert.ErrorIs(t, err, regions.ErrUnsupported)

	assert.Equal(t, []int{regions.Edogawa}, f.SupportedRegions())
}

func TestSortEntries(t *testing.T) {
	p := player(1, "a", models.Male, true)
	in := []models.EnrichedEntry{
		entry(1, "一般", models.Female, p, nil),
		entry(2, "ミックス", models.Male, p, nil),
		entry(3, "55", models.Male, p, nil),
		entry(4, "一般", models.Male, p, nil),
		entry(5, "45", models.Male, p, nil),
		entry(6, "一般", models.Male, p, nil),
	}
	var got []int64
	for _, e := range SortEntries(in) {
		got = append(got, e.ID)
	}
	assert.Equal(t, []int64{4, 6, 5, 3, 2, 1}, got)
	assert.Equal(t, int64(1), in[0].ID, "input order is left alone")
}

func TestUnregisteredPlayers(t *testing.T) {
	a := player(1, "一郎", models.Male, false)
	b := player(2, "二郎", models.Male, true)
	c := player(3, "三郎", models.Male, false)
	entries := []models.EnrichedEntry{
		entry(1, "一般", models.Male, a, &b),
		entry(2, "45", models.Male, c, &a),
		entry(3, "55", models.Male, b, nil),
	}
	got := unregisteredPlayers(entries)
	require.Len(t, got, 2)
	assert.Equal(t, "一郎", got[0].Name)
	assert.Equal(t, "三郎", got[1].Name)
}

func TestEdogawa_Roster(t *testing.T) {
	env := Env{TemplateRoot: writeTemplates(t), OutputDir: t.TempDir()}
	s := NewEdogawa(env)

	a := player(1, "一郎", models.Male, false)
	b := player(2, "花子", models.Female, false)
	c := player(3, "登録済", models.Male, true)
	entries := []models.EnrichedEntry{
		entry(1, "一般", models.Male, a, &c),
		entry(2, "45", models.Female, b, nil),
		entry(3, "55", models.Male, a, nil),
	}

	h, err := s.GenerateRoster("区民大会", entries, genTime)
	require.NoError(t, err)
	require.NotNil(t, h)
	assert.Equal(t, KeyRoster, h.Key)
	assert.Equal(t, "会員登録表.xlsx", filepath.Base(h.Path))

	assert.Equal(t, "令和7年度　江戸川区ソフトテニス連盟　会員登録表", cell(t, h.Path, "A2"))
	assert.Equal(t, "1", cell(t, h.Path, "A6"))
	assert.Equal(t, "一郎", cell(t, h.Path, "B6"))
	assert.Empty(t, cell(t, h.Path, "C6"))
	assert.NotEmpty(t, cell(t, h.Path, "D6"))
	assert.Equal(t, "男", cell(t, h.Path, "F6"))
	assert.Equal(t, "134-0088", cell(t, h.Path, "G6"))
	assert.Equal(t, "江戸川区西葛西一郎", cell(t, h.Path, "H6"))
	assert.Equal(t, "03-0000-0000", cell(t, h.Path, "K6"))
	assert.Equal(t, "2", cell(t, h.Path, "A7"))
	assert.Equal(t, "花子", cell(t, h.Path, "B7"))
	assert.Equal(t, "女", cell(t, h.Path, "F7"))
	assert.Empty(t, cell(t, h.Path, "A8"), "registered and repeated players are not listed")

	f, err := excelize.OpenFile(h.Path)
	require.NoError(t, err)
	defer f.Close()
	formula, err := f.GetCellFormula("Sheet1", "E6")
	require.NoError(t, err)
	assert.Equal(t, `IF(D6="","",2025-YEAR(D6))`, formula)

	tmpl := filepath.Join(env.TemplateRoot, "23_江戸川区", edogawaRosterTemplate)
	assert.Contains(t, cell(t, tmpl, "A2"), "⚪︎", "template asset is not modified")
}

func TestEdogawa_RosterSkippedWhenEveryoneRegistered(t *testing.T) {
	s := NewEdogawa(Env{TemplateRoot: writeTemplates(t), OutputDir: t.TempDir()})
	c := player(3, "登録済", models.Male, true)
	h, err := s.GenerateRoster("区民大会", []models.EnrichedEntry{entry(1, "一般", models.Male, c, nil)}, genTime)
	require.NoError(t, err)
	assert.Nil(t, h)
}

func TestEdogawa_EntryForm(t *testing.T) {
	s := NewEdogawa(Env{TemplateRoot: writeTemplates(t), OutputDir: t.TempDir()})

	m1 := player(1, "一郎", models.Male, true)
	m2 := player(2, "二郎", models.Male, false)
	f1 := player(3, "花子", models.Female, true)
	entries := []models.EnrichedEntry{
		entry(1, "一般", models.Female, f1, nil),
		entry(2, "55", models.Male, m1, &m2),
		entry(3, "一般", models.Male, m2, nil),
	}
	event := models.Event{ID: "ev-1", Name: "区民大会", RegionID: regions.Edogawa}

	h, err := s.GenerateEntryForm(event, entries, genTime)
	require.NoError(t, err)
	require.NotNil(t, h)
	assert.Equal(t, KeyEntryForm, h.Key)

	assert.Equal(t, "区民大会　申込書", cell(t, h.Path, "A1"))
	assert.Equal(t, "申　込　日　令和8年02月10日", cell(t, h.Path, "F3"))

	// slot 1: 一般男子 singles
	assert.Equal(t, "1", cell(t, h.Path, "A10"))
	assert.Equal(t, "一般男子", cell(t, h.Path, "B10"))
	assert.Equal(t, "二郎", cell(t, h.Path, "C10"))
	assert.Equal(t, "十条クラブ", cell(t, h.Path, "E10"))
	assert.Empty(t, cell(t, h.Path, "B11"))
	assert.Empty(t, cell(t, h.Path, "C11"))

	// slot 2: 55男子 doubles
	assert.Equal(t, "2", cell(t, h.Path, "A12"))
	assert.Equal(t, "55男子", cell(t, h.Path, "B12"))
	assert.Equal(t, "一郎", cell(t, h.Path, "C12"))
	assert.Empty(t, cell(t, h.Path, "A13"))
	assert.Equal(t, "55男子", cell(t, h.Path, "B13"))
	assert.Equal(t, "二郎", cell(t, h.Path, "C13"))

	// slot 3: 一般女子
	assert.Equal(t, "3", cell(t, h.Path, "A14"))
	assert.Equal(t, "一般女子", cell(t, h.Path, "B14"))
	assert.Equal(t, "花子", cell(t, h.Path, "C14"))
}

func TestGenerate_Bundle(t *testing.T) {
	s := NewEdogawa(Env{TemplateRoot: writeTemplates(t), OutputDir: t.TempDir()})
	p := player(1, "一郎", models.Male, true)
	event := models.Event{ID: "ev-1", Name: "区民大会", RegionID: regions.Edogawa}

	b, err := Generate(s, event, []models.EnrichedEntry{entry(1, "一般", models.Male, p, nil)}, genTime)
	require.NoError(t, err)
	assert.Nil(t, b.Roster)
	require.NotNil(t, b.EntryForm)
	files := b.Files()
	assert.Len(t, files, 1)
	assert.Contains(t, files, KeyEntryForm)

	empty, err := Generate(s, event, nil, genTime)
	require.NoError(t, err)
	assert.True(t, empty.Empty())
}

func TestGenerate_TemplateMissing(t *testing.T) {
	s := NewEdogawa(Env{TemplateRoot: t.TempDir(), OutputDir: t.TempDir()})
	p := player(1, "一郎", models.Male, false)
	_, err := Generate(s, models.Event{Name: "x"}, []models.EnrichedEntry{entry(1, "一般", models.Male, p, nil)}, genTime)
	assert.ErrorIs(t, err, ErrTemplateMissing)
}

func TestSafeFileName(t *testing.T) {
	assert.Equal(t, "春季_秋季大会", safeFileName("春季/秋季大会"))
	assert.Equal(t, "event", safeFileName("  "))
}
