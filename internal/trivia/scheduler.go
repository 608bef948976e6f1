package trivia

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"push-demo-backend/config"
	"push-demo-backend/internal/notification"
	"push-demo-backend/internal/store"
)

// Service sends the trivia of the day once a day.
type Service struct {
	cfg    config.ScheduleConfig
	loc    *time.Location
	store  store.Store
	sender notification.Sender
	now    func() time.Time
}

// NewService creates the trivia service. It fails when the configured
// timezone is unknown.
func NewService(cfg config.ScheduleConfig, st store.Store, sender notification.Sender) (*Service, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid schedule timezone %q: %w", cfg.Timezone, err)
	}
	return &Service{
		cfg:    cfg,
		loc:    loc,
		store:  st,
		sender: sender,
		now:    time.Now,
	}, nil
}

// NextRun returns the first hour:00 in loc strictly after now.
func NextRun(now time.Time, hour int, loc *time.Location) time.Time {
	local := now.In(loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), hour, 0, 0, 0, loc)
	if !next.After(local) {
		next = time.Date(local.Year(), local.Month(), local.Day()+1, hour, 0, 0, 0, loc)
	}
	return next
}

// Run fires RunOnce every day at the configured hour until ctx is cancelled.
func (s *Service) Run(ctx context.Context) {
	if !s.cfg.Enabled {
		log.Println("Trivia schedule is disabled. Not starting.")
		return
	}

	next := NextRun(s.now(), s.cfg.Hour, s.loc)
	log.Printf("Starting trivia schedule, next run at %s", next.Format(time.RFC3339))

	timer := time.NewTimer(time.Until(next))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Trivia schedule shutting down.")
			return
		case <-timer.C:
			if err := s.RunOnce(ctx); err != nil {
				log.Printf("Trivia run finished with errors: %v", err)
			}
			next = NextRun(s.now(), s.cfg.Hour, s.loc)
			timer.Reset(time.Until(next))
		}
	}
}

// RunOnce sends today's trivia to every owner with at least one subscription.
// An owner with several devices is sent to once. A failure for one owner does
// not stop delivery to the others; all failures are returned together.
func (s *Service) RunOnce(ctx context.Context) error {
	log.Printf("Trivia run executed at: %s", s.now().In(s.loc).Format(time.RFC3339))

	subs, err := s.store.All(ctx)
	if err != nil {
		return fmt.Errorf("load subscriptions: %w", err)
	}
	if len(subs) == 0 {
		log.Println("No subscriptions were found; nothing to send.")
		return nil
	}

	seen := make(map[string]struct{}, len(subs))
	var owners []string
	for _, sub := range subs {
		if _, ok := seen[sub.OwnerID]; ok {
			continue
		}
		seen[sub.OwnerID] = struct{}{}
		owners = append(owners, sub.OwnerID)
	}
	log.Printf("%d subscriptions from %d owners were found.", len(subs), len(owners))

	n := Notification(s.now().In(s.loc))
	log.Printf("Trivia of the day: %s", n.Body)

	var errs []error
	for _, owner := range owners {
		if err := s.sender.Send(ctx, owner, n); err != nil {
			errs = append(errs, fmt.Errorf("send trivia to owner %s: %w", owner, err))
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	log.Println("Trivia was sent to every owner.")
	return nil
}
