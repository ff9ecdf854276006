// Package schedule runs the daily digest: groups with a configured wall-clock
// time get an automatic summary of their recent history pushed back into the
// group.
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"chatsummary/internal/config"
	"chatsummary/internal/domain"
	"chatsummary/internal/summarizer"
	"chatsummary/internal/timespan"
)

const digestHeader = "【每日聊天总结】"

// defaultInterval is the history span summarized when a group sets a
// schedule time but no interval.
const defaultInterval = 24 * time.Hour

// minReschedule guards against double-firing when a run finishes within the
// same minute it started.
const minReschedule = time.Minute

type Scheduler struct {
	orch   *summarizer.Orchestrator
	store  domain.MessageStore
	cfg    *config.Config
	logger *slog.Logger
	now    func() time.Time
	wg     sync.WaitGroup
}

type SchedulerConfig struct {
	Orchestrator *summarizer.Orchestrator
	Store        domain.MessageStore
	Config       *config.Config
	Logger       *slog.Logger
}

func New(cfg SchedulerConfig) *Scheduler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Scheduler{
		orch:   cfg.Orchestrator,
		store:  cfg.Store,
		cfg:    cfg.Config,
		logger: cfg.Logger,
		now:    time.Now,
	}
}

// Start launches one digest loop per scheduled group and returns how many
// were started. Loops exit when ctx is cancelled; Wait blocks until then.
func (s *Scheduler) Start(ctx context.Context) int {
	started := 0
	for id, gc := range s.cfg.Groups {
		if gc.ScheduleTime == "" {
			continue
		}
		groupID, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			s.logger.Warn("skipping schedule for non-numeric group id", "group", id)
			continue
		}
		hour, minute, err := parseClock(gc.ScheduleTime)
		if err != nil {
			s.logger.Warn("skipping schedule with bad time", "group", id, "time", gc.ScheduleTime, "err", err)
			continue
		}

		interval := defaultInterval
		if gc.Interval != "" {
			if span, ok := timespan.Parse(gc.Interval); ok {
				interval = span
			} else {
				s.logger.Warn("bad interval, using 24h", "group", id, "interval", gc.Interval)
			}
		}

		s.wg.Add(1)
		go s.runGroup(ctx, groupID, hour, minute, interval, gc.Interval)
		started++
	}
	return started
}

// Wait blocks until every digest loop has exited.
func (s *Scheduler) Wait() { s.wg.Wait() }

func (s *Scheduler) runGroup(ctx context.Context, groupID int64, hour, minute int, interval time.Duration, rawInterval string) {
	defer s.wg.Done()
	log := s.logger.With("group_id", groupID)

	for {
		next := nextRun(s.now(), hour, minute)
		wait := next.Sub(s.now())
		if wait < minReschedule {
			wait = minReschedule
		}
		log.Info("digest scheduled", "at", next.Format("2006-01-02 15:04"))

		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}

		s.deliver(ctx, log, groupID, interval, rawInterval)
	}
}

func (s *Scheduler) deliver(ctx context.Context, log *slog.Logger, groupID int64, interval time.Duration, rawInterval string) {
	if rawInterval == "" {
		rawInterval = "24h"
	}
	w := summarizer.Window{Span: interval, Raw: rawInterval}

	res := s.orch.Run(ctx, groupID, w, true)
	if res.Failed {
		// A quiet failure beats posting an apology nobody asked for.
		log.Error("scheduled digest failed, skipping delivery")
		return
	}

	parts := []domain.MessagePart{domain.TextPart(digestHeader + "\n" + res.Text)}
	if res.ImageRef != "" {
		parts = append(parts, domain.ImagePart(res.ImageRef))
	}
	if err := s.store.SendGroupMessage(ctx, groupID, parts); err != nil {
		log.Error("digest delivery failed", "err", err)
		return
	}
	log.Info("digest delivered", "degraded", res.Degraded, "with_image", res.ImageRef != "")
}

// parseClock splits "HH:MM" into its components.
func parseClock(s string) (hour, minute int, err error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("expected HH:MM, got %q", s)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("bad hour in %q", s)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("bad minute in %q", s)
	}
	return hour, minute, nil
}

// nextRun returns the next wall-clock occurrence of hour:minute strictly
// after now.
func nextRun(now time.Time, hour, minute int) time.Time {
	candidate := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !candidate.After(now) {
		candidate = candidate.AddDate(0, 0, 1)
	}
	return candidate
}
