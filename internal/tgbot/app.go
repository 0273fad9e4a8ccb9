// Package tgbot sends completion notices to organizers over Telegram and
// accepts a handful of admin commands.
package tgbot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/tomohito-hyodo01/jujo-discord-app/internal/models"
	"github.com/tomohito-hyodo01/jujo-discord-app/internal/pipeline"
)

// Ops is what admin commands can trigger.
type Ops interface {
	Generate(ctx context.Context, eventID string) (pipeline.Outcome, error)
	ProcessDeadlines(ctx context.Context, today time.Time) (pipeline.DeadlineReport, error)
	Available(ctx context.Context, accountID string) ([]models.Event, error)
}

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type App struct {
	api    *tgbotapi.BotAPI
	send   sender
	admins map[int64]bool
	ops    Ops
	logger *slog.Logger
	now    func() time.Time
}

func New(token string, admins map[int64]bool, logger *slog.Logger) (*App, error) {
	b, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	b.Debug = false
	return newApp(b, b, admins, logger), nil
}

func newApp(api *tgbotapi.BotAPI, s sender, admins map[int64]bool, logger *slog.Logger) *App {
	if logger == nil {
		logger = slog.Default()
	}
	return &App{api: api, send: s, admins: admins, logger: logger, now: time.Now}
}

// Attach wires the operations admin commands run. Without it the bot only
// sends notifications.
func (a *App) Attach(ops Ops) { a.ops = ops }

func (a *App) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := a.api.GetUpdatesChan(u)
	defer a.api.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case upd := <-updates:
			if upd.Message == nil {
				continue
			}
			if err := a.handleMessage(ctx, upd.Message); err != nil {
				a.logger.Error("handle message", "err", err)
			}
		}
	}
}

func (a *App) SendText(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	_, err := a.send.Send(msg)
	return err
}

// Notify sends text to every admin chat. One failed chat does not stop the
// others.
func (a *App) Notify(_ context.Context, text string) error {
	var errs []error
	for _, id := range a.adminIDs() {
		if err := a.SendText(id, text); err != nil {
			errs = append(errs, fmt.Errorf("chat %d: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

func (a *App) adminIDs() []int64 {
	ids := make([]int64, 0, len(a.admins))
	for id, ok := range a.admins {
		if ok {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (a *App) isAdmin(tgID int64) bool {
	return a.admins[tgID]
}

// ---------- Message handling ----------

func (a *App) handleMessage(ctx context.Context, m *tgbotapi.Message) error {
	if m.From == nil {
		return nil
	}
	tgID := m.From.ID
	txt := strings.TrimSpace(m.Text)
	if !strings.HasPrefix(txt, "/") {
		return nil
	}
	if !a.isAdmin(tgID) {
		return a.SendText(tgID, "権限がありません。")
	}
	if a.ops == nil {
		return a.SendText(tgID, "コマンドは現在利用できません。")
	}

	cmd, arg, _ := strings.Cut(txt, " ")
	arg = strings.TrimSpace(arg)
	switch cmd {
	case "/generate":
		if arg == "" {
			return a.SendText(tgID, "使い方: /generate <event_id>")
		}
		return a.generate(ctx, tgID, arg)
	case "/deadlines":
		return a.deadlines(ctx, tgID)
	case "/available":
		if arg == "" {
			return a.SendText(tgID, "使い方: /available <account_id>")
		}
		return a.available(ctx, tgID, arg)
	default:
		return a.SendText(tgID, helpText)
	}
}

const helpText = `/generate <event_id> 申込書類を生成
/deadlines 明日締切の大会を一括生成
/available <account_id> 申込可能な大会`

func (a *App) generate(ctx context.Context, tgID int64, eventID string) error {
	out, err := a.ops.Generate(ctx, eventID)
	if err != nil {
		return a.SendText(tgID, fmt.Sprintf("❌ 生成失敗 %s: %v", eventID, err))
	}
	if out.Status == pipeline.StatusNothingToGenerate {
		return a.SendText(tgID, fmt.Sprintf("生成対象なし %s (%s)", out.EventName, out.Reason))
	}
	// the pipeline notifies admins itself on success
	return nil
}

func (a *App) deadlines(ctx context.Context, tgID int64) error {
	report, err := a.ops.ProcessDeadlines(ctx, a.now())
	if err != nil {
		return a.SendText(tgID, fmt.Sprintf("❌ 締切処理失敗: %v", err))
	}
	var b strings.Builder
	fmt.Fprintf(&b, "締切 %s: %d件中 %d件生成\n", report.Deadline, len(report.Results), report.Processed())
	for _, r := range report.Results {
		fmt.Fprintf(&b, "・%s %s", r.EventName, r.Status)
		if r.Error != "" {
			fmt.Fprintf(&b, " (%s)", r.Error)
		}
		b.WriteString("\n")
	}
	return a.SendText(tgID, b.String())
}

func (a *App) available(ctx context.Context, tgID int64, accountID string) error {
	events, err := a.ops.Available(ctx, accountID)
	if err != nil {
		return a.SendText(tgID, fmt.Sprintf("❌ 取得失敗: %v", err))
	}
	if len(events) == 0 {
		return a.SendText(tgID, "申込可能な大会はありません。")
	}
	var b strings.Builder
	for _, ev := range events {
		fmt.Fprintf(&b, "・%s（締切 %s）\n", ev.Name, ev.Deadline.Format("2006-01-02"))
	}
	return a.SendText(tgID, b.String())
}
