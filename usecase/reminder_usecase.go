package usecase

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"

	"exchange-backend/dao"
	"exchange-backend/model"
	"exchange-backend/pkg/notify"
	"exchange-backend/pkg/redislock"
)

const (
	sweepLockKey       = "exchange:lock:reminder-sweep"
	maxSweepDeliveries = 8

	// Postback actions carried by the post-meeting nudge.
	ActionConfirmSuccess = "confirm_success"
	ActionReportFailure  = "report_fail"
)

type ReminderConfig struct {
	// LeadTime opens the pre-meeting reminder window. Zero disables it.
	LeadTime time.Duration
	BaseURL  string
}

// ReminderUsecase finds meetings that need a reminder and hands them to the
// notifier. A reminder is claimed in the store before anything is sent, so
// overlapping sweeps deliver it at most once outside the claim race itself.
type ReminderUsecase struct {
	store    dao.Store
	notifier Notifier
	locker   redislock.Locker
	cfg      ReminderConfig
	logger   *zap.Logger
	now      func() time.Time
}

func NewReminderUsecase(store dao.Store, notifier Notifier, locker redislock.Locker, cfg ReminderConfig, logger *zap.Logger) *ReminderUsecase {
	if logger == nil {
		logger = zap.NewNop()
	}
	if locker == nil {
		locker = redislock.Local{}
	}
	return &ReminderUsecase{
		store:    store,
		notifier: notifier,
		locker:   locker,
		cfg:      cfg,
		logger:   logger.Named("reminder"),
		now:      time.Now,
	}
}

// Sweep returns the number of reminders claimed in this run. When another
// instance holds the sweep lock it returns 0 without touching the store.
func (u *ReminderUsecase) Sweep(ctx context.Context) (int, error) {
	var processed int
	acquired, err := u.locker.TryWithLock(ctx, sweepLockKey, func(ctx context.Context) error {
		var err error
		processed, err = u.sweep(ctx)
		return err
	})
	if err != nil {
		return processed, err
	}
	if !acquired {
		u.logger.Debug("sweep skipped, another instance is running it")
		return 0, nil
	}
	if processed > 0 {
		u.logger.Info("reminder sweep finished", zap.Int("processed", processed))
	}
	return processed, nil
}

func (u *ReminderUsecase) sweep(ctx context.Context) (int, error) {
	now := u.now()
	deliveries := pool.New().WithMaxGoroutines(maxSweepDeliveries)
	defer deliveries.Wait()

	count := 0
	if u.cfg.LeadTime > 0 {
		upcoming, err := u.store.ListUpcomingMeetings(ctx, now, now.Add(u.cfg.LeadTime))
		if err != nil {
			return 0, fmt.Errorf("list upcoming meetings: %w", err)
		}
		for i := range upcoming {
			if u.process(ctx, deliveries, &upcoming[i], model.ReminderUpcoming) {
				count++
			}
		}
	}

	due, err := u.store.ListDueMeetings(ctx, now)
	if err != nil {
		return count, fmt.Errorf("list due meetings: %w", err)
	}
	for i := range due {
		if u.process(ctx, deliveries, &due[i], model.ReminderNudge) {
			count++
		}
	}
	return count, nil
}

// process claims one reminder and schedules its deliveries. It reports
// whether this sweep owns the reminder.
func (u *ReminderUsecase) process(ctx context.Context, deliveries *pool.Pool, t *model.Transaction, kind model.ReminderKind) bool {
	if t.BuyerID == "" || t.SellerID == "" || t.MeetingTime == nil {
		return false
	}
	if kind == model.ReminderNudge && t.IsMeetingNudgeSent || kind == model.ReminderUpcoming && t.IsReminderSent {
		return false
	}

	claimed, err := u.store.ClaimReminder(ctx, t.ID, kind)
	if err != nil {
		u.logger.Error("claim reminder failed", zap.String("transaction_id", t.ID), zap.String("kind", string(kind)), zap.Error(err))
		return false
	}
	if !claimed {
		return false
	}

	for _, uid := range []string{t.SellerID, t.BuyerID} {
		user, err := u.store.GetUser(ctx, uid)
		if err != nil {
			u.logger.Warn("reminder recipient lookup failed", zap.String("transaction_id", t.ID), zap.String("user_id", uid), zap.Error(err))
			continue
		}
		if !user.CanBeNotified() || u.notifier == nil {
			continue
		}

		msg := u.message(t, kind, uid)
		to := user.LineUserID
		deliveries.Go(func() {
			u.notifier.Push(ctx, to, msg)
		})
	}
	return true
}

func (u *ReminderUsecase) message(t *model.Transaction, kind model.ReminderKind, uid string) notify.Message {
	if kind == model.ReminderUpcoming {
		location := t.MeetingLocation
		if location == "" {
			location = "not set"
		}
		text := fmt.Sprintf("Reminder: your meeting is coming up.\n\nTime: %s\nLocation: %s",
			t.MeetingTime.UTC().Format("2006-01-02 15:04 MST"), location)
		return notify.Message{Text: u.withLink(text, t.ID), AltText: "Meeting reminder"}
	}

	return notify.Message{
		Text:    "Your meeting time has passed.\nOnce you have met, let us know how it went:",
		AltText: "Report meeting outcome",
		Actions: []notify.Action{
			{Label: "Success", Data: postbackData(ActionConfirmSuccess, t.ID, uid)},
			{Label: "Failed", Data: postbackData(ActionReportFailure, t.ID, uid)},
		},
	}
}

func (u *ReminderUsecase) withLink(text, transactionID string) string {
	if u.cfg.BaseURL == "" {
		return text
	}
	return text + "\n" + strings.TrimRight(u.cfg.BaseURL, "/") + "/transactions/" + transactionID
}

func postbackData(action, transactionID, uid string) string {
	return url.Values{
		"action":        {action},
		"transactionId": {transactionID},
		"userId":        {uid},
	}.Encode()
}
