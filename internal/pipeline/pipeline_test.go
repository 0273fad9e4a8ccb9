package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/tomohito-hyodo01/jujo-discord-app/internal/documents"
	"github.com/tomohito-hyodo01/jujo-discord-app/internal/models"
	"github.com/tomohito-hyodo01/jujo-discord-app/internal/records"
	"github.com/tomohito-hyodo01/jujo-discord-app/internal/records/memory"
	"github.com/tomohito-hyodo01/jujo-discord-app/internal/regions"
	"github.com/tomohito-hyodo01/jujo-discord-app/internal/storage"
	memstorage "github.com/tomohito-hyodo01/jujo-discord-app/internal/storage/memory"
)

var jst = time.FixedZone("JST", 9*60*60)

func writeTemplates(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	dir := filepath.Join(root, "23_江戸川区")
	require.NoError(t, os.MkdirAll(dir, 0o755))

	roster := excelize.NewFile()
	defer roster.Close()
	require.NoError(t, roster.SetCellValue("Sheet1", "A2", "令和⚪︎年度　会員登録表"))
	for row := 6; row < 16; row++ {
		require.NoError(t, roster.MergeCell("Sheet1", fmt.Sprintf("B%d", row), fmt.Sprintf("C%d", row)))
		require.NoError(t, roster.MergeCell("Sheet1", fmt.Sprintf("H%d", row), fmt.Sprintf("J%d", row)))
		require.NoError(t, roster.MergeCell("Sheet1", fmt.Sprintf("K%d", row), fmt.Sprintf("L%d", row)))
	}
	require.NoError(t, roster.SaveAs(filepath.Join(dir, "会員登録表フォーマット.xlsx")))

	form := excelize.NewFile()
	defer form.Close()
	for row := 10; row < 30; row += 2 {
		require.NoError(t, form.MergeCell("Sheet1", fmt.Sprintf("A%d", row), fmt.Sprintf("A%d", row+1)))
	}
	require.NoError(t, form.SaveAs(filepath.Join(dir, "個人戦_申込書フォーマット.xlsx")))
	return root
}

type captureNotifier struct {
	mu   sync.Mutex
	msgs []string
	err  error
}

func (n *captureNotifier) Notify(_ context.Context, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, text)
	return n.err
}

type captureRecorder struct {
	mu       sync.Mutex
	statuses []string
	missing  []string
}

func (r *captureRecorder) ObserveGeneration(_ int, status string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, status)
}

func (r *captureRecorder) MissingParticipant(slot string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.missing = append(r.missing, slot)
}

type fixture struct {
	store    *memory.Store
	backend  *memstorage.Backend
	notifier *captureNotifier
	recorder *captureRecorder
	gen      *Generator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	now := func() time.Time { return time.Date(2026, 6, 9, 10, 0, 0, 0, jst) }
	f := &fixture{
		store:    memory.New(),
		backend:  memstorage.New(),
		notifier: &captureNotifier{},
		recorder: &captureRecorder{},
	}
	up := storage.NewUploader(f.backend, storage.Options{RootID: "root", Logger: logger, Now: now})
	f.gen = New(f.store, up, Options{
		TemplateRoot: writeTemplates(t),
		WorkDir:      t.TempDir(),
		Location:     jst,
		Now:          now,
		Logger:       logger,
		Notifier:     f.notifier,
		Recorder:     f.recorder,
	})
	return f
}

func (f *fixture) seedEvent(id string, region int, deadline time.Time) {
	f.store.AddEvent(models.Event{ID: id, Name: "区民大会" + id, RegionID: region, Deadline: deadline})
}

func openArchived(t *testing.T, b *memstorage.Backend, url string) *excelize.File {
	t.Helper()
	id := url[len("memory://files/"):]
	data, ok := b.Content(id)
	require.True(t, ok)
	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	return f
}

func value(t *testing.T, f *excelize.File, ref string) string {
	t.Helper()
	v, err := f.GetCellValue("Sheet1", ref)
	require.NoError(t, err)
	return v
}

func TestGenerate_EndToEnd(t *testing.T) {
	f := newFixture(t)
	f.seedEvent("ev-1", regions.Edogawa, time.Date(2026, 6, 10, 0, 0, 0, 0, jst))
	f.store.AddParticipant(models.Participant{ID: 1, Name: "一郎", Club: "十条"})
	f.store.AddParticipant(models.Participant{ID: 2, Name: "二郎", LocallyRegistered: true})
	f.store.AddParticipant(models.Participant{ID: 3, Name: "三郎", LocallyRegistered: true})
	f.store.AddEntry(models.Entry{EventID: "ev-1", Category: "一般", PrimaryID: 1})
	f.store.AddEntry(models.Entry{EventID: "ev-1", Category: "45", PrimaryID: 2, SecondaryIDs: []int64{3}})
	f.store.AddEntry(models.Entry{EventID: "ev-2", Category: "一般", PrimaryID: 1})

	out, err := f.gen.Generate(context.Background(), "ev-1")
	require.NoError(t, err)
	assert.Equal(t, StatusGenerated, out.Status)
	assert.Equal(t, 2, out.EntryCount)
	assert.NotEmpty(t, out.RunID)
	require.Len(t, out.URLs, 2)

	roster := openArchived(t, f.backend, out.URLs[documents.KeyRoster])
	assert.Equal(t, "令和8年度　会員登録表", value(t, roster, "A2"))
	assert.Equal(t, "一郎", value(t, roster, "B6"))
	assert.Empty(t, value(t, roster, "B7"))

	form := openArchived(t, f.backend, out.URLs[documents.KeyEntryForm])
	assert.Equal(t, "区民大会ev-1　申込書", value(t, form, "A1"))
	assert.Equal(t, "1", value(t, form, "A10"))
	assert.Equal(t, "一郎", value(t, form, "C10"))
	assert.Empty(t, value(t, form, "C11"))
	assert.Equal(t, "2", value(t, form, "A12"))
	assert.Equal(t, "二郎", value(t, form, "C12"))
	assert.Equal(t, "三郎", value(t, form, "C13"))
	assert.Equal(t, "45男子", value(t, form, "B13"))

	folder, ok := f.backend.Lookup("root", "登録申請書・大会申込書", "江戸川区", "2026年", "区民大会ev-1")
	require.True(t, ok)
	assert.Len(t, f.backend.Files(folder), 2)

	require.Len(t, f.notifier.msgs, 1)
	assert.Contains(t, f.notifier.msgs[0], "申込件数: 2件")
	assert.Contains(t, f.notifier.msgs[0], out.URLs[documents.KeyRoster])
	assert.Equal(t, []string{"generated"}, f.recorder.statuses)

	// a second run reuses the folders
	before := f.backend.FolderCreations()
	_, err = f.gen.Generate(context.Background(), "ev-1")
	require.NoError(t, err)
	assert.Equal(t, before, f.backend.FolderCreations())
}

// countingStore counts participant reads against the wrapped store.
type countingStore struct {
	*memory.Store
	mu       sync.Mutex
	scans    int
	byIDHits int
}

func (c *countingStore) Participants(ctx context.Context) ([]models.Participant, error) {
	c.mu.Lock()
	c.scans++
	c.mu.Unlock()
	return c.Store.Participants(ctx)
}

func (c *countingStore) ParticipantByID(ctx context.Context, id int64) (models.Participant, error) {
	c.mu.Lock()
	c.byIDHits++
	c.mu.Unlock()
	return c.Store.ParticipantByID(ctx, id)
}

func TestGenerate_ReadsParticipantsOnce(t *testing.T) {
	f := newFixture(t)
	store := &countingStore{Store: f.store}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	now := func() time.Time { return time.Date(2026, 6, 9, 10, 0, 0, 0, jst) }
	gen := New(store, storage.NewUploader(f.backend, storage.Options{RootID: "root", Logger: logger, Now: now}), Options{
		TemplateRoot: writeTemplates(t),
		WorkDir:      t.TempDir(),
		Location:     jst,
		Now:          now,
		Logger:       logger,
	})

	f.seedEvent("ev-1", regions.Edogawa, time.Date(2026, 6, 10, 0, 0, 0, 0, jst))
	for i := int64(1); i <= 40; i++ {
		f.store.AddParticipant(models.Participant{ID: i, Name: fmt.Sprintf("選手%d", i), LocallyRegistered: true})
	}
	for i := int64(1); i <= 40; i += 2 {
		f.store.AddEntry(models.Entry{EventID: "ev-1", Category: "一般", PrimaryID: i, SecondaryIDs: []int64{i + 1}})
	}

	out, err := gen.Generate(context.Background(), "ev-1")
	require.NoError(t, err)
	assert.Equal(t, StatusGenerated, out.Status)
	assert.Equal(t, 20, out.EntryCount)
	assert.Zero(t, out.Missing)
	assert.Equal(t, 1, store.scans)
	assert.Zero(t, store.byIDHits)
}

func TestGenerate_ParticipantScanError(t *testing.T) {
	f := newFixture(t)
	f.seedEvent("ev-1", regions.Edogawa, time.Date(2026, 6, 10, 0, 0, 0, 0, jst))
	f.store.AddEntry(models.Entry{EventID: "ev-1", Category: "一般", PrimaryID: 1})
	store := &failingScan{Store: f.store, err: errors.New("429 quota exceeded")}
	gen := New(store, storage.NewUploader(f.backend, storage.Options{RootID: "root"}), Options{TemplateRoot: writeTemplates(t)})

	_, err := gen.Generate(context.Background(), "ev-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load participants")
	assert.Zero(t, f.backend.FolderLookups())
}

type failingScan struct {
	*memory.Store
	err error
}

func (s *failingScan) Participants(context.Context) ([]models.Participant, error) { return nil, s.err }

func TestGenerate_NothingToGenerate(t *testing.T) {
	f := newFixture(t)
	f.seedEvent("empty", regions.Edogawa, time.Date(2026, 6, 10, 0, 0, 0, 0, jst))
	f.seedEvent("ghosts", regions.Edogawa, time.Date(2026, 6, 10, 0, 0, 0, 0, jst))
	f.store.AddEntry(models.Entry{EventID: "ghosts", Category: "一般", PrimaryID: 404})

	out, err := f.gen.Generate(context.Background(), "empty")
	require.NoError(t, err)
	assert.Equal(t, StatusNothingToGenerate, out.Status)
	assert.Equal(t, "no entries", out.Reason)

	out, err = f.gen.Generate(context.Background(), "ghosts")
	require.NoError(t, err)
	assert.Equal(t, StatusNothingToGenerate, out.Status)
	assert.Equal(t, 1, out.Missing)
	assert.Equal(t, []string{"primary"}, f.recorder.missing)

	assert.Zero(t, f.backend.FolderCreations())
	assert.Empty(t, f.notifier.msgs)
}

func TestGenerate_Errors(t *testing.T) {
	f := newFixture(t)
	f.seedEvent("kita", regions.Kita, time.Date(2026, 6, 10, 0, 0, 0, 0, jst))
	f.store.AddParticipant(models.Participant{ID: 1, Name: "一郎"})
	f.store.AddEntry(models.Entry{EventID: "kita", Category: "一般", PrimaryID: 1})

	_, err := f.gen.Generate(context.Background(), "missing")
	assert.ErrorIs(t, err, records.ErrNotFound)

	_, err = f.gen.Generate(context.Background(), "kita")
	assert.ErrorIs(t, err, regions.ErrUnsupported)
	assert.Equal(t, []string{"failed"}, f.recorder.statuses)
}

func TestGenerate_NotificationFailureIsNotFatal(t *testing.T) {
	f := newFixture(t)
	f.notifier.err = errors.New("telegram down")
	f.seedEvent("ev-1", regions.Edogawa, time.Date(2026, 6, 10, 0, 0, 0, 0, jst))
	f.store.AddParticipant(models.Participant{ID: 1, Name: "一郎"})
	f.store.AddEntry(models.Entry{EventID: "ev-1", Category: "一般", PrimaryID: 1})

	out, err := f.gen.Generate(context.Background(), "ev-1")
	require.NoError(t, err)
	assert.Equal(t, StatusGenerated, out.Status)
}

func TestGenerate_PartialUpload(t *testing.T) {
	f := newFixture(t)
	f.backend.FailCreateFile = func(name string) error {
		if name == "会員登録表.xlsx" {
			return errors.New("quota")
		}
		return nil
	}
	f.seedEvent("ev-1", regions.Edogawa, time.Date(2026, 6, 10, 0, 0, 0, 0, jst))
	f.store.AddParticipant(models.Participant{ID: 1, Name: "一郎"})
	f.store.AddEntry(models.Entry{EventID: "ev-1", Category: "一般", PrimaryID: 1})

	out, err := f.gen.Generate(context.Background(), "ev-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, storage.ErrUpload)
	assert.Contains(t, out.URLs, documents.KeyEntryForm)
	assert.NotContains(t, out.URLs, documents.KeyRoster)
	assert.Empty(t, f.notifier.msgs)
}

func TestProcessDeadlines(t *testing.T) {
	f := newFixture(t)
	tomorrow := time.Date(2026, 6, 10, 0, 0, 0, 0, jst)
	f.seedEvent("a", regions.Edogawa, tomorrow)
	f.seedEvent("b", regions.Edogawa, tomorrow)
	f.seedEvent("c", regions.Kita, tomorrow)
	f.seedEvent("today", regions.Edogawa, time.Date(2026, 6, 9, 0, 0, 0, 0, jst))
	f.store.AddParticipant(models.Participant{ID: 1, Name: "一郎"})
	f.store.AddEntry(models.Entry{EventID: "a", Category: "一般", PrimaryID: 1})
	f.store.AddEntry(models.Entry{EventID: "c", Category: "一般", PrimaryID: 1})
	f.store.AddEntry(models.Entry{EventID: "today", Category: "一般", PrimaryID: 1})

	report, err := f.gen.ProcessDeadlines(context.Background(), time.Date(2026, 6, 9, 23, 30, 0, 0, jst))
	require.NoError(t, err)
	assert.Equal(t, "2026-06-10", report.Deadline)
	require.Len(t, report.Results, 3)
	assert.Equal(t, 1, report.Processed())

	byID := map[string]DeadlineResult{}
	for _, r := range report.Results {
		byID[r.EventID] = r
	}
	assert.Equal(t, StatusGenerated, byID["a"].Status)
	assert.Equal(t, StatusNothingToGenerate, byID["b"].Status)
	assert.Equal(t, StatusFailed, byID["c"].Status)
	assert.NotEmpty(t, byID["c"].Error)
	assert.NotContains(t, byID, "today")
}

func TestProcessDeadlines_StoreError(t *testing.T) {
	f := newFixture(t)
	f.store.Err = errors.New("sheets unavailable")
	_, err := f.gen.ProcessDeadlines(context.Background(), time.Now())
	assert.Error(t, err)
}

func TestFormatNotification(t *testing.T) {
	msg := FormatNotification(Outcome{
		EventName:  "区民大会",
		EntryCount: 3,
		URLs:       map[string]string{documents.KeyEntryForm: "https://example.test/f"},
	})
	assert.Contains(t, msg, "大会名: 区民大会")
	assert.Contains(t, msg, "申込件数: 3件")
	assert.Contains(t, msg, "個人戦申込書: https://example.test/f")
	assert.NotContains(t, msg, "会員登録表:")
	assert.NotContains(t, msg, "未登録")
}

func TestKeyLock(t *testing.T) {
	k := newKeyLock()
	var (
		mu      sync.Mutex
		active  int
		maxSeen int
		wg      sync.WaitGroup
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := k.Lock("23/ev-1")
			mu.Lock()
			active++
			if active > maxSeen {
				maxSeen = active
			}
			mu.Unlock()
			time.Sleep(time.Millisecond)
			mu.Lock()
			active--
			mu.Unlock()
			unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, maxSeen)
	assert.Zero(t, k.size())

	// distinct keys do not block each other
	u1 := k.Lock("a")
	u2 := k.Lock("b")
	u1()
	u2()
}
