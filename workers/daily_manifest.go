package workers

import (
	"context"
	"fmt"

	"cloud.google.com/go/civil"
	"github.com/bytedance/sonic"
	"github.com/go-co-op/gocron/v2"
	"github.com/gosimple/slug"

	"reward-engine/calendar"
	"reward-engine/logger"
	"reward-engine/services"
	"reward-engine/utils"
)

// AllKinds names the manifest that draws from every published item.
const AllKinds = "all"

// ManifestKey is the object key of the manifest for kind on date.
func ManifestKey(kind string, date civil.Date) string {
	name := AllKinds
	if kind != "" {
		name = slug.Make(kind)
	}
	return fmt.Sprintf("daily/%s/%04d%02d%02d.json", name, date.Year, int(date.Month), date.Day)
}

// ManifestPublisher uploads each day's selection so CDN clients see the same items as the API.
type ManifestPublisher struct {
	daily *services.DailyContent
	store utils.ObjectStore
	cal   *calendar.Calendar
	log   *logger.Logger
}

func NewManifestPublisher(daily *services.DailyContent, store utils.ObjectStore, cal *calendar.Calendar, log *logger.Logger) *ManifestPublisher {
	return &ManifestPublisher{
		daily: daily,
		store: store,
		cal:   cal,
		log:   logger.OrNop(log).With("worker", "DailyManifest"),
	}
}

// Publish uploads the "all" manifest and one per content kind for date. It returns the public URLs.
func (p *ManifestPublisher) Publish(ctx context.Context, date civil.Date) ([]string, error) {
	kinds, err := p.daily.Kinds(ctx)
	if err != nil {
		return nil, err
	}

	urls := make([]string, 0, len(kinds)+1)
	for _, kind := range append([]string{""}, kinds...) {
		sel, err := p.daily.ForDate(ctx, date, kind)
		if err != nil {
			return urls, err
		}
		body, err := sonic.Marshal(sel)
		if err != nil {
			return urls, fmt.Errorf("encode manifest: %w", err)
		}
		url, err := p.store.Put(ctx, ManifestKey(kind, date), body, "application/json")
		if err != nil {
			return urls, err
		}
		urls = append(urls, url)
	}
	p.log.Info("✅ Daily manifests published", "date", date.String(), "count", len(urls))
	return urls, nil
}

// Start schedules Publish for 00:05 every day in the reference timezone.
func (p *ManifestPublisher) Start(ctx context.Context) error {
	sched, err := gocron.NewScheduler(
		gocron.WithLocation(p.cal.Location()),
		gocron.WithClock(p.cal.Clock()),
	)
	if err != nil {
		return fmt.Errorf("create scheduler: %w", err)
	}

	_, err = sched.NewJob(
		gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(0, 5, 0))),
		gocron.NewTask(func() {
			if _, err := p.Publish(ctx, p.cal.Today()); err != nil {
				p.log.Error("[Scheduler] Daily manifest failed", "error", err)
			}
		}),
		gocron.WithName("daily-manifest"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("schedule daily manifest: %w", err)
	}

	sched.Start()
	go func() {
		<-ctx.Done()
		if err := sched.Shutdown(); err != nil {
			p.log.Warn("Scheduler shutdown failed", "error", err)
		}
	}()
	return nil
}
