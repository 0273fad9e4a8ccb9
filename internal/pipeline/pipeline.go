// Package pipeline turns an event's entries into archived paperwork: load,
// enrich, render, upload, notify.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tomohito-hyodo01/jujo-discord-app/internal/documents"
	"github.com/tomohito-hyodo01/jujo-discord-app/internal/enrich"
	"github.com/tomohito-hyodo01/jujo-discord-app/internal/models"
	"github.com/tomohito-hyodo01/jujo-discord-app/internal/records"
)

type Status string

const (
	StatusGenerated         Status = "generated"
	StatusNothingToGenerate Status = "nothing_to_generate"
	StatusFailed            Status = "failed"
)

// Uploader archives generated files and returns their public URLs by key.
type Uploader interface {
	Upload(ctx context.Context, regionID int, eventName string, files map[string]string) (map[string]string, error)
}

type Notifier interface {
	Notify(ctx context.Context, text string) error
}

type Recorder interface {
	ObserveGeneration(regionID int, status string, d time.Duration)
	MissingParticipant(slot string)
}

type Outcome struct {
	RunID      string            `json:"run_id"`
	EventID    string            `json:"event_id"`
	EventName  string            `json:"event_name"`
	RegionID   int               `json:"region_id"`
	Status     Status            `json:"status"`
	Reason     string            `json:"reason,omitempty"`
	URLs       map[string]string `json:"urls,omitempty"`
	EntryCount int               `json:"entry_count"`
	Missing    int               `json:"missing_participants"`
}

type Options struct {
	TemplateRoot string
	// WorkDir is the parent of per-run scratch directories; empty means the
	// system temp dir.
	WorkDir  string
	Location *time.Location
	Now      func() time.Time
	Logger   *slog.Logger
	Notifier Notifier
	Recorder Recorder
}

type Generator struct {
	store    records.Store
	enricher *enrich.Enricher
	uploader Uploader
	opts     Options
	logger   *slog.Logger
	locks    *keyLock
}

func New(store records.Store, uploader Uploader, opts Options) *Generator {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Generator{
		store:    store,
		enricher: enrich.New(opts.Logger),
		uploader: uploader,
		opts:     opts,
		logger:   opts.Logger,
		locks:    newKeyLock(),
	}
}

// Generate builds and archives the paperwork for one event. Upload failures
// return the outcome with whatever URLs did succeed alongside the error.
func (g *Generator) Generate(ctx context.Context, eventID string) (Outcome, error) {
	start := g.opts.Now()
	out := Outcome{RunID: uuid.NewString(), EventID: eventID}
	log := g.logger.With("run_id", out.RunID, "event_id", eventID)

	event, err := g.store.EventByID(ctx, eventID)
	if err != nil {
		return out, err
	}
	out.EventName = event.Name
	out.RegionID = event.RegionID

	unlock := g.locks.Lock(fmt.Sprintf("%d/%s", event.RegionID, event.ID))
	defer unlock()

	out, err = g.generate(ctx, log, event, out)
	status := out.Status
	if err != nil {
		status = StatusFailed
	}
	g.observe(event.RegionID, status, g.opts.Now().Sub(start))
	return out, err
}

func (g *Generator) generate(ctx context.Context, log *slog.Logger, event models.Event, out Outcome) (Outcome, error) {
	raw, err := g.store.EntriesByEvent(ctx, event.ID)
	if err != nil {
		return out, fmt.Errorf("load entries: %w", err)
	}
	if len(raw) == 0 {
		log.Info("no entries")
		return nothing(out, "no entries"), nil
	}

	participants, err := g.store.Participants(ctx)
	if err != nil {
		return out, fmt.Errorf("load participants: %w", err)
	}
	res, err := g.enricher.Enrich(ctx, event, raw, enrich.NewParticipantIndex(participants))
	if err != nil {
		return out, err
	}
	out.Missing = len(res.Missing)
	for _, m := range res.Missing {
		g.missing(string(m.Slot))
	}
	if len(res.Entries) == 0 {
		log.Warn("no entry survived enrichment", "entries", len(raw))
		return nothing(out, "no resolvable participants"), nil
	}
	out.EntryCount = len(res.Entries)

	workDir, err := os.MkdirTemp(g.opts.WorkDir, "gen-"+out.RunID+"-")
	if err != nil {
		return out, fmt.Errorf("create work dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	strategy, err := documents.NewFactory(documents.Env{
		TemplateRoot: g.opts.TemplateRoot,
		OutputDir:    workDir,
	}).Create(event.RegionID)
	if err != nil {
		return out, err
	}

	bundle, err := documents.Generate(strategy, event, res.Entries, g.opts.Now().In(g.opts.Location))
	if err != nil {
		return out, fmt.Errorf("render documents: %w", err)
	}
	if bundle.Empty() {
		return nothing(out, "no documents produced"), nil
	}

	urls, err := g.uploader.Upload(ctx, event.RegionID, event.Name, bundle.Files())
	out.URLs = urls
	if err != nil {
		return out, fmt.Errorf("upload: %w", err)
	}
	out.Status = StatusGenerated
	log.Info("documents archived", "entries", out.EntryCount, "files", len(urls))

	if g.opts.Notifier != nil {
		if err := g.opts.Notifier.Notify(ctx, FormatNotification(out)); err != nil {
			log.Warn("notification failed", "err", err)
		}
	}
	return out, nil
}

func nothing(out Outcome, reason string) Outcome {
	out.Status = StatusNothingToGenerate
	out.Reason = reason
	return out
}

func (g *Generator) observe(regionID int, status Status, d time.Duration) {
	if g.opts.Recorder != nil {
		g.opts.Recorder.ObserveGeneration(regionID, string(status), d)
	}
}

func (g *Generator) missing(slot string) {
	if g.opts.Recorder != nil {
		g.opts.Recorder.MissingParticipant(slot)
	}
}

var urlLabels = []struct{ key, label string }{
	{documents.KeyRoster, "会員登録表"},
	{documents.KeyEntryForm, "個人戦申込書"},
}

// FormatNotification renders the completion message sent to organizers.
func FormatNotification(o Outcome) string {
	var b strings.Builder
	b.WriteString("【大会申込書類 生成完了】\n")
	fmt.Fprintf(&b, "大会名: %s\n", o.EventName)
	fmt.Fprintf(&b, "申込件数: %d件\n", o.EntryCount)
	if o.Missing > 0 {
		fmt.Fprintf(&b, "未登録の選手参照: %d件\n", o.Missing)
	}
	b.WriteString("\n")
	for _, l := range urlLabels {
		if u, ok := o.URLs[l.key]; ok {
			fmt.Fprintf(&b, "%s: %s\n", l.label, u)
		}
	}
	return b.String()
}

// DeadlineResult is one event's line in a deadline batch.
type DeadlineResult struct {
	Outcome
	Error string `json:"error,omitempty"`
}

type DeadlineReport struct {
	Deadline string           `json:"deadline"`
	Results  []DeadlineResult `json:"results"`
}

// Processed counts events that were generated.
func (r DeadlineReport) Processed() int {
	n := 0
	for _, res := range r.Results {
		if res.Status == StatusGenerated {
			n++
		}
	}
	return n
}

// ProcessDeadlines generates paperwork for every event whose deadline is the
// day after today. A failing event is recorded and the batch continues.
func (g *Generator) ProcessDeadlines(ctx context.Context, today time.Time) (DeadlineReport, error) {
	today = today.In(g.opts.Location)
	y, m, d := today.Date()
	tomorrow := time.Date(y, m, d+1, 0, 0, 0, 0, g.opts.Location)
	report := DeadlineReport{Deadline: tomorrow.Format("2006-01-02"), Results: []DeadlineResult{}}

	events, err := g.store.Events(ctx)
	if err != nil {
		return report, fmt.Errorf("load events: %w", err)
	}
	var due []models.Event
	for _, ev := range events {
		if models.SameDay(ev.Deadline, tomorrow) {
			due = append(due, ev)
		}
	}
	sort.SliceStable(due, func(i, j int) bool { return due[i].ID < due[j].ID })

	for _, ev := range due {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		out, err := g.Generate(ctx, ev.ID)
		res := DeadlineResult{Outcome: out}
		if err != nil {
			res.Status = StatusFailed
			res.Error = err.Error()
			g.logger.Error("deadline generation failed", "event_id", ev.ID, "err", err)
		}
		report.Results = append(report.Results, res)
	}
	return report, nil
}
