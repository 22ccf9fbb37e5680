package push

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/dukerupert/lineage/internal/family"
	"github.com/dukerupert/lineage/internal/model"
	"github.com/dukerupert/lineage/internal/store"
)

// Scheduler sends each subscribed family one birthday digest per day.
type Scheduler struct {
	mu       sync.RWMutex
	sender   Sender
	push     *store.PushStore
	members  *store.MemberStore
	window   int
	interval time.Duration
	now      func() time.Time
	logger   *slog.Logger
	cancel   context.CancelFunc
	done     chan struct{}
}

func NewScheduler(sender Sender, pushStore *store.PushStore, memberStore *store.MemberStore, windowDays int, logger *slog.Logger) *Scheduler {
	if windowDays <= 0 {
		windowDays = family.DefaultBirthdayWindow
	}
	return &Scheduler{
		sender:   sender,
		push:     pushStore,
		members:  memberStore,
		window:   windowDays,
		interval: time.Hour,
		now:      time.Now,
		logger:   logger,
	}
}

// Start begins the scheduler loop. The first check runs immediately.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.mu.Unlock()

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.Check(s.now())
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Check(s.now())
			}
		}
	}()
}

// Stop gracefully stops the scheduler.
func (s *Scheduler) Stop() {
	s.mu.RLock()
	cancel := s.cancel
	done := s.done
	s.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// Check sends today's digest to every family with subscriptions that has not
// had one yet. It returns the number of notifications delivered.
func (s *Scheduler) Check(now time.Time) int {
	familyIDs, err := s.push.ListFamilyIDs()
	if err != nil {
		s.logger.Error("list families", "error", err)
		return 0
	}

	sent := 0
	for _, fid := range familyIDs {
		n, err := s.notifyFamily(fid, now)
		if err != nil {
			s.logger.Error("birthday digest", "family_id", fid, "error", err)
			continue
		}
		sent += n
	}
	return sent
}

func (s *Scheduler) notifyFamily(familyID int64, now time.Time) (int, error) {
	today := family.Today(now)
	refID := "birthdays-" + today.String()

	already, err := s.push.WasSent(familyID, model.NotifTypeBirthday, refID)
	if err != nil || already {
		return 0, err
	}

	snap, err := s.members.Snapshot(familyID)
	if err != nil {
		return 0, err
	}
	upcoming := snap.UpcomingBirthdays(today, s.window)
	if len(upcoming) == 0 {
		return 0, s.push.RecordSent(familyID, model.NotifTypeBirthday, refID)
	}

	payload := Payload{
		Title: "Upcoming birthdays",
		Body:  digestBody(snap, upcoming),
		URL:   fmt.Sprintf("/families/%d/birthdays", familyID),
		Tag:   refID,
	}

	subs, err := s.push.ListByFamily(familyID)
	if err != nil {
		return 0, err
	}
	sent := 0
	for _, sub := range subs {
		if err := s.sender.Send(&sub, payload); err != nil {
			if errors.Is(err, ErrExpired) {
				if err := s.push.DeleteByEndpoint(sub.Endpoint); err != nil {
					s.logger.Warn("drop expired subscription", "error", err)
				}
			} else {
				s.logger.Warn("send birthday digest", "subscription_id", sub.ID, "error", err)
			}
			continue
		}
		sent++
	}
	return sent, s.push.RecordSent(familyID, model.NotifTypeBirthday, refID)
}

func digestBody(snap *family.Snapshot, upcoming []family.UpcomingBirthday) string {
	lines := make([]string, 0, len(upcoming))
	for _, b := range upcoming {
		m, _ := snap.Member(b.MemberID)
		lines = append(lines, describe(m.FullName(), b))
	}
	return strings.Join(lines, "\n")
}

func describe(name string, b family.UpcomingBirthday) string {
	switch b.DaysUntil {
	case 0:
		return fmt.Sprintf("%s turns %d today", name, b.TurningAge)
	case 1:
		return fmt.Sprintf("%s turns %d tomorrow", name, b.TurningAge)
	default:
		return fmt.Sprintf("%s turns %d in %d days", name, b.TurningAge, b.DaysUntil)
	}
}
