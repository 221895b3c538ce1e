package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/Ashutosh-1945/GateKeeper/internal/config"
	"github.com/Ashutosh-1945/GateKeeper/internal/models"
	"github.com/Ashutosh-1945/GateKeeper/pkg/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatsService_EnrichClickData(t *testing.T) {
	geoIP := NewGeoIPService(config.Config{}, testLogger())
	service := NewStatsService(nil, testLogger(), geoIP, "pepper")

	t.Run("Mobile visitor", func(t *testing.T) {
		click := &models.Click{
			UserAgent: "Mozilla/5.0 (iPhone; CPU iPhone OS 14_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/14.0 Mobile/15E148 Safari/604.1",
			IPAddress: "1.2.3.4",
		}
		service.enrichClickData(click)

		assert.NotEmpty(t, click.ID)
		assert.Equal(t, "Mobile", click.DeviceType)
		assert.Contains(t, click.Browser, "Safari")
		assert.Equal(t, models.DirectReferrer, click.Referrer)
		assert.Equal(t, "Unknown", click.Country)
		assert.Equal(t, utils.HashVisitor("pepper", "1.2.3.4"), click.VisitorHash)
		assert.Empty(t, click.IPAddress)
	})

	t.Run("Desktop visitor with referrer", func(t *testing.T) {
		click := &models.Click{
			UserAgent: chromeUA,
			IPAddress: "8.8.8.8",
			Referrer:  "https://news.example/item",
		}
		service.enrichClickData(click)

		assert.Equal(t, "Desktop", click.DeviceType)
		assert.Contains(t, click.Browser, "Chrome")
		assert.Equal(t, "https://news.example/item", click.Referrer)
	})

	t.Run("Oversized user agent is truncated", func(t *testing.T) {
		click := &models.Click{UserAgent: strings.Repeat("x", 500)}
		service.enrichClickData(click)
		assert.Len(t, click.UserAgent, 200)
		assert.Empty(t, click.VisitorHash)
	})
}

func TestStatsService_RecordAccess(t *testing.T) {
	ctx := context.Background()
	store := setupStore(t)
	link := seedLink(t, store, "stats", func(l *models.Link) { l.MaxClicks = intPtr(2) })
	service := NewStatsService(store, testLogger(), nil, "pepper")

	require.NoError(t, service.RecordAccess(ctx, link, human))
	require.NoError(t, service.RecordAccess(ctx, link, human))
	assert.ErrorIs(t, service.RecordAccess(ctx, link, human), ErrGone)

	assert.Equal(t, int64(2), clickCount(t, store, "stats"))
	assert.Len(t, service.clickChannel, 2)
}

func TestStatsService_Worker(t *testing.T) {
	store := setupStore(t)
	link := seedLink(t, store, "tracked", nil)
	service := NewStatsService(store, testLogger(), nil, "pepper")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go service.Start(ctx)

	require.NoError(t, service.RecordAccess(ctx, link, human))

	assert.Eventually(t, func() bool {
		clicks, err := store.ListClicks(context.Background(), "tracked", 10)
		return err == nil && len(clicks) == 1
	}, 2*time.Second, 20*time.Millisecond)

	clicks, err := store.ListClicks(context.Background(), "tracked", 10)
	require.NoError(t, err)
	require.Len(t, clicks, 1)
	assert.Equal(t, "https://news.example", clicks[0].Referrer)
	assert.NotEmpty(t, clicks[0].VisitorHash)
}

func TestStatsService_ChannelFull(t *testing.T) {
	service := NewStatsService(nil, testLogger(), nil, "")
	service.clickChannel = make(chan models.Click, 1)

	service.RecordClickAsync(models.Click{LinkSlug: "a"})
	service.RecordClickAsync(models.Click{LinkSlug: "b"})

	assert.Len(t, service.clickChannel, 1)
}
