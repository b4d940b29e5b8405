package logic

import (
	"bytes"
	"crypto/rsa"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"wx_herald/shared"
)

// SendResult classifies one inbox POST for the delivery pipeline.
type SendResult int

const (
	SendOk        SendResult = iota // 2xx: remote accepted
	SendPermanent                   // 4xx: remote rejected; retrying cannot help
	SendTransient                   // 5xx, network error, timeout, open breaker
)

//go:generate mockgen --build_flags=--mod=mod -destination mocks/mock_activity_sender.go -package mocks wx_herald/logic IActivitySender

type IActivitySender interface {
	Send(privKey *rsa.PrivateKey, keyId, inboxUrl string, activityJson []byte) (SendResult, error)
}

type activitySender struct {
	cfg       *shared.Config
	logger    shared.ILogger
	userAgent shared.IUserAgent
	metrics   IMetrics
	signer    ISigner
	client    *http.Client
	mu        sync.Mutex
	breakers  map[string]*gobreaker.CircuitBreaker
}

func NewActivitySender(cfg *shared.Config,
	logger shared.ILogger,
	userAgent shared.IUserAgent,
	metrics IMetrics,
	signer ISigner,
) IActivitySender {
	return &activitySender{
		cfg:       cfg,
		logger:    logger,
		userAgent: userAgent,
		metrics:   metrics,
		signer:    signer,
		client:    &http.Client{Timeout: time.Duration(cfg.Delivery.TimeoutSec) * time.Second},
		breakers:  make(map[string]*gobreaker.CircuitBreaker),
	}
}

func (sender *activitySender) Send(privKey *rsa.PrivateKey, keyId, inboxUrl string,
	activityJson []byte) (SendResult, error) {

	obs := sender.metrics.StartApubRequestOut("post")
	defer obs.Finish()

	parsed, err := url.Parse(inboxUrl)
	if err != nil || parsed.Host == "" {
		return SendPermanent, fmt.Errorf("invalid inbox url: %v", inboxUrl)
	}
	host := parsed.Host

	statusAny, err := sender.breakerFor(host).Execute(func() (interface{}, error) {
		return sender.post(privKey, keyId, inboxUrl, host, activityJson)
	})
	if err != nil {
		// Open breaker counts as transient: the host may recover
		sender.logger.Warnf("Activity POST to %s failed: %v", inboxUrl, err)
		return SendTransient, err
	}

	status := statusAny.(int)
	if status < 300 {
		return SendOk, nil
	}
	if status < 500 {
		sender.logger.Infof("Activity POST to %s rejected with status %d", inboxUrl, status)
		return SendPermanent, fmt.Errorf("got status %d from %s", status, inboxUrl)
	}
	sender.logger.Warnf("Activity POST to %s got status %d", inboxUrl, status)
	return SendTransient, fmt.Errorf("got status %d from %s", status, inboxUrl)
}

// post performs one signed POST. The returned error covers network-level
// failure only; HTTP statuses come back as the result so that 4xx does
// not trip the host's breaker.
func (sender *activitySender) post(privKey *rsa.PrivateKey, keyId, inboxUrl, host string,
	activityJson []byte) (int, error) {

	req, err := http.NewRequest("POST", inboxUrl, bytes.NewBuffer(activityJson))
	if err != nil {
		return 0, err
	}
	sender.userAgent.AddUserAgent(req)
	req.Header.Set("Content-Type", "application/activity+json")
	req.Header.Set("Accept", "application/activity+json")
	req.Header.Set("Host", host)
	req.Header.Set("Date", time.Now().UTC().Format(http.TimeFormat))

	if err = sender.signer.Sign(privKey, keyId, req, activityJson); err != nil {
		return 0, err
	}

	resp, err := sender.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.ReadAll(resp.Body)

	if resp.StatusCode >= 500 {
		return resp.StatusCode, fmt.Errorf("got status %d", resp.StatusCode)
	}
	return resp.StatusCode, nil
}

func (sender *activitySender) breakerFor(host string) *gobreaker.CircuitBreaker {
	sender.mu.Lock()
	defer sender.mu.Unlock()

	if cb, ok := sender.breakers[host]; ok {
		return cb
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    host,
		Timeout: time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
	sender.breakers[host] = cb
	return cb
}
