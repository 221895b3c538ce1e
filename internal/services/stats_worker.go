package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/Ashutosh-1945/GateKeeper/internal/models"
	"github.com/Ashutosh-1945/GateKeeper/internal/repository"
	"github.com/Ashutosh-1945/GateKeeper/pkg/utils"

	"github.com/mssola/user_agent"
)

// ClickRecorder counts a granted access against the link's quota.
type ClickRecorder interface {
	RecordAccess(ctx context.Context, link *models.Link, caller Caller) error
}

// StatsService owns the click counter. The increment is synchronous and atomic;
// the analytics record is written later by the worker and may be dropped under load.
type StatsService struct {
	store        repository.LinkStore
	logger       *slog.Logger
	clickChannel chan models.Click
	geoIPService *GeoIPService
	salt         string
	writeTimeout time.Duration
}

func NewStatsService(store repository.LinkStore, logger *slog.Logger, geoIPService *GeoIPService, salt string) *StatsService {
	return &StatsService{
		store:        store,
		logger:       logger,
		clickChannel: make(chan models.Click, 1000),
		geoIPService: geoIPService,
		salt:         salt,
		writeTimeout: 5 * time.Second,
	}
}

// RecordAccess returns ErrGone when the quota was already used up. A store failure
// only blocks access when the link has a quota to protect.
func (s *StatsService) RecordAccess(ctx context.Context, link *models.Link, caller Caller) error {
	ok, err := s.store.IncrementClicks(ctx, link.Slug)
	if err != nil {
		if link.MaxClicks != nil {
			return storeError("increment clicks", err)
		}
		s.logger.Error("Failed to count click, granting anyway", "slug", link.Slug, "error", err)
	} else if !ok {
		return ErrGone
	}

	s.RecordClickAsync(models.Click{
		LinkSlug:  link.Slug,
		Timestamp: time.Now().UTC(),
		Referrer:  caller.Referrer,
		UserAgent: caller.UserAgent,
		IPAddress: caller.IPAddress,
	})
	return nil
}

func (s *StatsService) Start(ctx context.Context) {
	s.logger.Info("Stats worker starting")
	for {
		select {
		case click := <-s.clickChannel:
			s.enrichClickData(&click)
			s.persist(ctx, &click)
		case <-ctx.Done():
			s.logger.Info("Stats worker stopping")
			return
		}
	}
}

func (s *StatsService) RecordClickAsync(click models.Click) {
	select {
	case s.clickChannel <- click:
	default:
		s.logger.Warn("Stats channel full, dropping click event", "slug", click.LinkSlug)
	}
}

func (s *StatsService) persist(ctx context.Context, click *models.Click) {
	writeCtx, cancel := context.WithTimeout(ctx, s.writeTimeout)
	defer cancel()

	err := s.store.AddClick(writeCtx, click)
	if err == nil {
		return
	}
	if errors.Is(err, context.Canceled) {
		return
	}
	s.logger.Error("Failed to record click stats", "slug", click.LinkSlug, "error", err)
}

func (s *StatsService) enrichClickData(click *models.Click) {
	if click.ID == "" {
		click.ID = utils.NewID()
	}
	if click.Referrer == "" {
		click.Referrer = models.DirectReferrer
	}
	click.Referrer = utils.Truncate(click.Referrer, 255)

	ua := user_agent.New(click.UserAgent)
	browserName, browserVer := ua.Browser()
	click.Browser = utils.Truncate(browserName+" "+browserVer, 50)
	click.OS = utils.Truncate(ua.OS(), 100)

	if ua.Mobile() {
		click.DeviceType = "Mobile"
	} else if ua.Bot() {
		click.DeviceType = "Bot"
	} else {
		click.DeviceType = "Desktop"
	}
	click.UserAgent = utils.Truncate(click.UserAgent, 200)

	loc := UnknownLocation()
	if s.geoIPService != nil {
		loc = s.geoIPService.Lookup(click.IPAddress)
	}
	click.Country = loc.Country
	click.City = loc.City
	click.Region = loc.Region
	click.Lat = loc.Lat
	click.Lng = loc.Lng

	// The raw address never reaches storage.
	click.VisitorHash = utils.HashVisitor(s.salt, click.IPAddress)
	click.IPAddress = ""
}
