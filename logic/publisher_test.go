package logic_test

import (
	"io"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"wx_herald/dal"
	"wx_herald/dto"
	"wx_herald/logic"
	"wx_herald/shared"
	"wx_herald/texts"
)

// stubWeatherSource always has a forecast and a fixed set of alerts.
type stubWeatherSource struct {
	alerts []*dto.Alert
}

func (ws *stubWeatherSource) GetForecast(*shared.LocationInfo, time.Time) (*dto.Forecast, error) {
	return &dto.Forecast{Condition: "Sunny", Temperature: "25 °C", Narrative: "Nice."}, nil
}

func (ws *stubWeatherSource) GetActiveAlerts(*shared.LocationInfo) ([]*dto.Alert, error) {
	return ws.alerts, nil
}

type publisherHarness struct {
	cfg    *shared.Config
	repo   dal.IRepo
	source *stubWeatherSource
}

func setupPublisherTest(t *testing.T) (*publisherHarness, logic.IPublisher) {

	logger := log.New(io.Discard)
	cfg := &shared.Config{
		Host: testHost,
		Locations: []*shared.LocationInfo{
			{Id: "innercity", Name: "Inner City", Hashtags: []string{"weather"}},
		},
	}
	shared.ApplyDefaults(cfg)

	repo := dal.NewRepo(cfg, logger, dal.NewMemoryStore())
	keyStore := logic.NewKeyStore(logger, repo)
	require.NoError(t, keyStore.EnsureKeyPair("innercity"))

	metrics := logic.NewMetrics(cfg)
	sender := logic.NewActivitySender(cfg, logger, shared.NewUserAgent(cfg), metrics,
		logic.NewSigner(logger))
	delivery := logic.NewDelivery(cfg, logger, repo, keyStore, sender, metrics)
	builder := logic.NewPostBuilder(cfg, texts.NewTexts())
	source := &stubWeatherSource{}
	publisher := logic.NewPublisher(cfg, logger, repo, builder, delivery, source, metrics)

	return &publisherHarness{cfg, repo, source}, publisher
}

func Test_Publisher_ForecastPublishedOncePerSlot(t *testing.T) {

	h, publisher := setupPublisherTest(t)
	fc := &dto.Forecast{Condition: "Sunny", Temperature: "25 °C", Narrative: "Nice."}
	slotTime := time.Date(2025, 8, 12, 7, 30, 0, 0, time.UTC)

	published, err := publisher.PublishForecast("innercity", shared.PostForecastMorning, slotTime, fc)
	require.NoError(t, err)
	assert.True(t, published)

	// Same slot again, later the same hour: no second post
	published, err = publisher.PublishForecast("innercity", shared.PostForecastMorning,
		slotTime.Add(20*time.Minute), fc)
	require.NoError(t, err)
	assert.False(t, published)

	count, err := h.repo.GetPostCount("innercity")
	require.NoError(t, err)
	assert.Equal(t, uint(1), count)
}

func Test_Publisher_DifferentSlotsPublishSeparately(t *testing.T) {

	h, publisher := setupPublisherTest(t)
	fc := &dto.Forecast{Condition: "Sunny", Temperature: "25 °C", Narrative: "Nice."}
	slotTime := time.Date(2025, 8, 12, 12, 5, 0, 0, time.UTC)

	published, err := publisher.PublishForecast("innercity", shared.PostForecastMorning, slotTime, fc)
	require.NoError(t, err)
	assert.True(t, published)
	published, err = publisher.PublishForecast("innercity", shared.PostForecastNoon, slotTime, fc)
	require.NoError(t, err)
	assert.True(t, published)

	count, err := h.repo.GetPostCount("innercity")
	require.NoError(t, err)
	assert.Equal(t, uint(2), count)
}

func Test_Publisher_AlertPublishedOncePerAlertId(t *testing.T) {

	_, publisher := setupPublisherTest(t)
	alert := &dto.Alert{
		Id:       "NWS-2025-0812-001",
		Event:    "Flood Watch",
		Severity: dto.SeverityModerate,
		Onset:    time.Now().UTC(),
		Ends:     time.Now().UTC().Add(3 * time.Hour),
	}

	published, err := publisher.PublishAlert("innercity", alert)
	require.NoError(t, err)
	assert.True(t, published)

	published, err = publisher.PublishAlert("innercity", alert)
	require.NoError(t, err)
	assert.False(t, published)
}

func Test_Publisher_UnknownLocationRejected(t *testing.T) {

	_, publisher := setupPublisherTest(t)
	fc := &dto.Forecast{Condition: "Sunny", Temperature: "25 °C", Narrative: "Nice."}

	_, err := publisher.PublishForecast("atlantis", shared.PostForecastMorning, time.Now().UTC(), fc)
	assert.Error(t, err)

	_, err = publisher.PublishAlert("atlantis", &dto.Alert{Id: "x"})
	assert.Error(t, err)
}

func Test_Publisher_NonForecastTypeRejected(t *testing.T) {

	_, publisher := setupPublisherTest(t)
	fc := &dto.Forecast{Condition: "Sunny", Temperature: "25 °C", Narrative: "Nice."}

	_, err := publisher.PublishForecast("innercity", shared.PostAlert, time.Now().UTC(), fc)
	assert.Error(t, err)
	_, err = publisher.PublishForecast("innercity", "bogus", time.Now().UTC(), fc)
	assert.Error(t, err)
}

func Test_Publisher_AlertWithoutIdRejected(t *testing.T) {

	_, publisher := setupPublisherTest(t)

	_, err := publisher.PublishAlert("innercity", &dto.Alert{Event: "Mystery"})
	assert.Error(t, err)
}

func Test_Publisher_CheckDueForecastsIsIdempotent(t *testing.T) {

	h, publisher := setupPublisherTest(t)

	publisher.CheckDueForecasts()
	count1, err := h.repo.GetPostCount("innercity")
	require.NoError(t, err)

	// Slots whose hour has passed today should have been published, once
	dueSlots := uint(0)
	hour := time.Now().UTC().Hour()
	for _, postType := range []string{
		shared.PostForecastMorning, shared.PostForecastNoon, shared.PostForecastEvening,
	} {
		if hour >= shared.SlotHour(postType) {
			dueSlots++
		}
	}
	assert.Equal(t, dueSlots, count1)

	publisher.CheckDueForecasts()
	count2, err := h.repo.GetPostCount("innercity")
	require.NoError(t, err)
	assert.Equal(t, count1, count2)
}

func Test_Publisher_CheckAlertsPublishesActiveAlerts(t *testing.T) {

	h, publisher := setupPublisherTest(t)
	h.source.alerts = []*dto.Alert{
		{Id: "NWS-1", Event: "Flood Watch", Severity: dto.SeverityModerate},
		{Id: "NWS-2", Event: "Heat Advisory", Severity: dto.SeverityMinor},
	}

	publisher.CheckAlerts()
	count, err := h.repo.GetPostCount("innercity")
	require.NoError(t, err)
	assert.Equal(t, uint(2), count)

	// The same active alerts next time around produce nothing new
	publisher.CheckAlerts()
	count, err = h.repo.GetPostCount("innercity")
	require.NoError(t, err)
	assert.Equal(t, uint(2), count)
}
