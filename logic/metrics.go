package logic

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"wx_herald/shared"
)

type IMetrics interface {
	StartApubRequestIn(label string) IRequestObserver
	StartApubRequestOut(label string) IRequestObserver
	PostPublished(postType string)
	DeliverySucceeded()
	DeliveryFailedPermanent()
	DeliveryRequeued()
	DeliveryDropped()
	ServiceStarted()
	TotalFollowers(count int)
	RetryQueueLength(length int)
}

type IRequestObserver interface {
	Finish()
}

type metrics struct {
	cfg                *shared.Config
	apubRequestsIn     *prometheus.HistogramVec
	apubRequestsOut    *prometheus.HistogramVec
	postsPublished     *prometheus.CounterVec
	deliveriesOk       prometheus.Counter
	deliveriesRejected prometheus.Counter
	deliveriesRequeued prometheus.Counter
	deliveriesDropped  prometheus.Counter
	serviceStarted     prometheus.Counter
	totalFollowers     prometheus.Gauge
	retryQueueLength   prometheus.Gauge
}

func NewMetrics(cfg *shared.Config) IMetrics {

	res := metrics{}
	res.cfg = cfg

	res.apubRequestsIn = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name: "apub_requests_in_duration",
		Help: "Duration in seconds of ActivityPub requests served.",
	}, []string{"label"})
	prometheus.Register(res.apubRequestsIn)

	res.apubRequestsOut = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name: "apub_requests_out_duration",
		Help: "Duration in seconds of ActivityPub requests made.",
	}, []string{"label"})
	prometheus.Register(res.apubRequestsOut)

	res.postsPublished = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "posts_published",
		Help: "Number of posts published, by post type",
	}, []string{"post_type"})
	prometheus.Register(res.postsPublished)

	res.deliveriesOk = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "deliveries_succeeded",
		Help: "Number of inbox deliveries accepted by the remote",
	})
	prometheus.Register(res.deliveriesOk)

	res.deliveriesRejected = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "deliveries_failed_permanent",
		Help: "Number of inbox deliveries rejected permanently (4xx)",
	})
	prometheus.Register(res.deliveriesRejected)

	res.deliveriesRequeued = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "deliveries_requeued",
		Help: "Number of inbox deliveries requeued after a transient failure",
	})
	prometheus.Register(res.deliveriesRequeued)

	res.deliveriesDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "deliveries_dropped",
		Help: "Number of inbox deliveries dropped after exhausting retries",
	})
	prometheus.Register(res.deliveriesDropped)

	res.serviceStarted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "service_started",
		Help: "Service has started up",
	})
	prometheus.Register(res.serviceStarted)

	res.totalFollowers = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "total_follower_count",
		Help: "Total follower count across location actors",
	})
	prometheus.Register(res.totalFollowers)

	res.retryQueueLength = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "retry_queue_length",
		Help: "Delivery jobs waiting in the retry queue",
	})
	prometheus.Register(res.retryQueueLength)

	return &res
}

type requestObserver struct {
	label string
	start time.Time
	hgvec *prometheus.HistogramVec
}

func (ro *requestObserver) Finish() {
	now := time.Now()
	elapsed := float64(now.UnixMilli()-ro.start.UnixMilli()) / 1000.0
	ro.hgvec.WithLabelValues(ro.label).Observe(elapsed)
}

func (m *metrics) StartApubRequestIn(label string) IRequestObserver {
	return &requestObserver{label, time.Now(), m.apubRequestsIn}
}

func (m *metrics) StartApubRequestOut(label string) IRequestObserver {
	return &requestObserver{label, time.Now(), m.apubRequestsOut}
}

func (m *metrics) PostPublished(postType string) {
	m.postsPublished.WithLabelValues(postType).Add(1)
}

func (m *metrics) DeliverySucceeded() {
	m.deliveriesOk.Add(1)
}

func (m *metrics) DeliveryFailedPermanent() {
	m.deliveriesRejected.Add(1)
}

func (m *metrics) DeliveryRequeued() {
	m.deliveriesRequeued.Add(1)
}

func (m *metrics) DeliveryDropped() {
	m.deliveriesDropped.Add(1)
}

func (m *metrics) ServiceStarted() {
	m.serviceStarted.Add(1)
}

func (m *metrics) TotalFollowers(count int) {
	m.totalFollowers.Set(float64(count))
}

func (m *metrics) RetryQueueLength(length int) {
	m.retryQueueLength.Set(float64(length))
}
