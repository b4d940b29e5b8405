package logic

import (
	"fmt"
	"time"

	"wx_herald/dal"
	"wx_herald/dto"
	"wx_herald/shared"
)

// How long a published-post marker lives. Within this window a repeated
// trigger for the same slot is a no-op.
const postedMarkerTtl = 48 * time.Hour

//go:generate mockgen --build_flags=--mod=mod -destination mocks/mock_weather_source.go -package mocks wx_herald/logic IWeatherSource

// IWeatherSource supplies the weather data the location actors post
// about. A nil forecast or empty alert list means nothing to post.
type IWeatherSource interface {
	GetForecast(loc *shared.LocationInfo, slotTime time.Time) (*dto.Forecast, error)
	GetActiveAlerts(loc *shared.LocationInfo) ([]*dto.Alert, error)
}

// nullWeatherSource is the default wiring: posts happen only through the
// command API until a real source is plugged in.
type nullWeatherSource struct{}

func NewNullWeatherSource() IWeatherSource {
	return &nullWeatherSource{}
}

func (ws *nullWeatherSource) GetForecast(*shared.LocationInfo, time.Time) (*dto.Forecast, error) {
	return nil, nil
}

func (ws *nullWeatherSource) GetActiveAlerts(*shared.LocationInfo) ([]*dto.Alert, error) {
	return nil, nil
}

//go:generate mockgen --build_flags=--mod=mod -destination mocks/mock_publisher.go -package mocks wx_herald/logic IPublisher

// IPublisher turns weather data into posts, exactly once per slot or
// alert, and hands them to delivery.
type IPublisher interface {
	PublishForecast(locationId, postType string, slotTime time.Time, fc *dto.Forecast) (published bool, err error)
	PublishAlert(locationId string, alert *dto.Alert) (published bool, err error)
	CheckDueForecasts()
	CheckAlerts()
}

type publisher struct {
	cfg      *shared.Config
	logger   shared.ILogger
	repo     dal.IRepo
	builder  IPostBuilder
	delivery IDelivery
	source   IWeatherSource
	metrics  IMetrics
}

func NewPublisher(
	cfg *shared.Config,
	logger shared.ILogger,
	repo dal.IRepo,
	builder IPostBuilder,
	delivery IDelivery,
	source IWeatherSource,
	metrics IMetrics,
) IPublisher {
	return &publisher{cfg, logger, repo, builder, delivery, source, metrics}
}

func (pub *publisher) getLocation(locationId string) *shared.LocationInfo {
	for _, loc := range pub.cfg.Locations {
		if loc.Id == locationId {
			return loc
		}
	}
	return nil
}

// PublishForecast publishes one slot post. The posted marker is claimed
// before anything goes on the wire, so a crash mid-fanout means some
// followers miss the post rather than anyone seeing it twice.
func (pub *publisher) PublishForecast(locationId, postType string, slotTime time.Time,
	fc *dto.Forecast) (bool, error) {

	loc := pub.getLocation(locationId)
	if loc == nil {
		return false, fmt.Errorf("location does not exist: %s", locationId)
	}
	if shared.SlotHour(postType) < 0 {
		return false, fmt.Errorf("not a forecast post type: %s", postType)
	}

	postId := shared.PostId(locationId, slotTime, postType, "")
	already, err := pub.repo.MarkPostPublished(postId, postedMarkerTtl)
	if err != nil {
		return false, err
	}
	if already {
		pub.logger.Debugf("Post already published: %s", postId)
		return false, nil
	}

	_, activity := pub.builder.BuildForecastPost(loc, postType, slotTime, fc)
	res, err := pub.delivery.Deliver(locationId, activity)
	if err != nil {
		return false, err
	}

	pub.metrics.PostPublished(postType)
	pub.logger.Infof("Published %s: %d delivered, %d failed on first attempt",
		postId, res.Delivered, res.Failed)
	return true, nil
}

func (pub *publisher) PublishAlert(locationId string, alert *dto.Alert) (bool, error) {

	loc := pub.getLocation(locationId)
	if loc == nil {
		return false, fmt.Errorf("location does not exist: %s", locationId)
	}
	if alert.Id == "" {
		return false, fmt.Errorf("alert has no ID")
	}

	postId := shared.PostId(locationId, time.Time{}, shared.PostAlert, alert.Id)
	already, err := pub.repo.MarkPostPublished(postId, postedMarkerTtl)
	if err != nil {
		return false, err
	}
	if already {
		pub.logger.Debugf("Alert already published: %s", postId)
		return false, nil
	}

	_, activity := pub.builder.BuildAlertPost(loc, alert)
	res, err := pub.delivery.Deliver(locationId, activity)
	if err != nil {
		return false, err
	}

	pub.metrics.PostPublished(shared.PostAlert)
	pub.logger.Infof("Published %s: %d delivered, %d failed on first attempt",
		postId, res.Delivered, res.Failed)
	return true, nil
}

// CheckDueForecasts publishes every slot of the current day whose hour
// has passed and that has no post yet. The check may run any number of
// times; the posted markers make repeats harmless.
func (pub *publisher) CheckDueForecasts() {
	now := time.Now().UTC()
	for _, loc := range pub.cfg.Locations {
		for _, postType := range []string{
			shared.PostForecastMorning, shared.PostForecastNoon, shared.PostForecastEvening,
		} {
			if now.Hour() < shared.SlotHour(postType) {
				continue
			}
			fc, err := pub.source.GetForecast(loc, now)
			if err != nil {
				pub.logger.Errorf("Failed to get forecast for %s: %v", loc.Id, err)
				continue
			}
			if fc == nil {
				continue
			}
			if _, err = pub.PublishForecast(loc.Id, postType, now, fc); err != nil {
				pub.logger.Errorf("Failed to publish %s forecast for %s: %v", postType, loc.Id, err)
			}
		}
	}
}

func (pub *publisher) CheckAlerts() {
	for _, loc := range pub.cfg.Locations {
		alerts, err := pub.source.GetActiveAlerts(loc)
		if err != nil {
			pub.logger.Errorf("Failed to get alerts for %s: %v", loc.Id, err)
			continue
		}
		for _, alert := range alerts {
			if _, err = pub.PublishAlert(loc.Id, alert); err != nil {
				pub.logger.Errorf("Failed to publish alert for %s: %v", loc.Id, err)
			}
		}
	}
}
