package logic

import (
	"crypto/rsa"
	"encoding/json"
	"sync"
	"time"

	"wx_herald/dal"
	"wx_herald/dto"
	"wx_herald/shared"
)

// DeliveryResult sums up one fanout: how many inboxes took the activity
// on the first attempt, and how many did not.
type DeliveryResult struct {
	Delivered int
	Failed    int
}

// DrainResult sums up one pass over the retry queue.
type DrainResult struct {
	Attempted int
	Delivered int
	Requeued  int
	Dropped   int
}

//go:generate mockgen --build_flags=--mod=mod -destination mocks/mock_delivery.go -package mocks wx_herald/logic IDelivery

// IDelivery fans a signed activity out to a location's followers, and
// re-drives deliveries that failed transiently.
type IDelivery interface {
	Deliver(locationId string, activity *dto.ActivityOut) (*DeliveryResult, error)
	DrainQueue() (*DrainResult, error)
}

type delivery struct {
	cfg      *shared.Config
	logger   shared.ILogger
	repo     dal.IRepo
	keyStore IKeyStore
	sender   IActivitySender
	metrics  IMetrics
	idb      shared.IdBuilder
}

func NewDelivery(
	cfg *shared.Config,
	logger shared.ILogger,
	repo dal.IRepo,
	keyStore IKeyStore,
	sender IActivitySender,
	metrics IMetrics,
) IDelivery {
	return &delivery{cfg, logger, repo, keyStore, sender, metrics, shared.IdBuilder{Host: cfg.Host}}
}

// deliveryTarget is one inbox POST about to happen.
type deliveryTarget struct {
	inboxUrl string
}

// Deliver sends the activity to every follower of the location, batch by
// batch. One slow or dead inbox delays only its own batch; it never
// blocks the fanout as a whole, and a failure for one target has no
// effect on the others. Transient failures land in the retry queue.
func (d *delivery) Deliver(locationId string, activity *dto.ActivityOut) (*DeliveryResult, error) {

	followers, err := d.repo.GetFollowers(locationId)
	if err != nil {
		return nil, err
	}
	targets := collapseInboxes(followers)
	if len(targets) == 0 {
		d.logger.Infof("No delivery targets for %s; nothing to send", locationId)
		return &DeliveryResult{}, nil
	}

	activityJson, err := json.Marshal(activity)
	if err != nil {
		return nil, err
	}
	privKey, err := d.keyStore.GetPrivKey(locationId)
	if err != nil {
		return nil, err
	}

	d.logger.Infof("Delivering %s to %d inboxes (%d followers of %s)",
		activity.Id, len(targets), len(followers), locationId)

	keyId := d.idb.ActorKeyId(locationId)
	res := DeliveryResult{}
	var mu sync.Mutex

	batchSize := d.cfg.Delivery.BatchSize
	for start := 0; start < len(targets); start += batchSize {
		end := start + batchSize
		if end > len(targets) {
			end = len(targets)
		}
		var wg sync.WaitGroup
		for _, tgt := range targets[start:end] {
			wg.Add(1)
			go func(tgt deliveryTarget) {
				defer wg.Done()
				ok := d.attemptFirst(privKey, keyId, locationId, tgt.inboxUrl, activityJson)
				mu.Lock()
				if ok {
					res.Delivered++
				} else {
					res.Failed++
				}
				mu.Unlock()
			}(tgt)
		}
		wg.Wait()
	}

	d.updateGauges()
	return &res, nil
}

// attemptFirst makes the initial POST to one inbox and files a retry job
// if the failure looks recoverable.
func (d *delivery) attemptFirst(privKey *rsa.PrivateKey, keyId, locationId, inboxUrl string,
	activityJson []byte) bool {

	result, _ := d.sender.Send(privKey, keyId, inboxUrl, activityJson)
	switch result {
	case SendOk:
		d.metrics.DeliverySucceeded()
		return true
	case SendPermanent:
		// Rejected outright; retrying cannot change the outcome
		d.metrics.DeliveryFailedPermanent()
		return false
	default:
		job := dal.DeliveryJob{
			InboxUrl:  inboxUrl,
			ActorId:   locationId,
			Activity:  activityJson,
			Attempt:   1,
			NotBefore: time.Now().Add(d.backoffAfter(1)),
		}
		if err := d.repo.AddDeliveryJob(&job); err != nil {
			d.logger.Errorf("Failed to enqueue retry for %s: %v", inboxUrl, err)
			d.metrics.DeliveryDropped()
		} else {
			d.metrics.DeliveryRequeued()
		}
		return false
	}
}

// DrainQueue processes every due job in the retry queue once. Jobs that
// fail transiently again are pushed further out, until their attempts are
// exhausted and they are dropped.
func (d *delivery) DrainQueue() (*DrainResult, error) {

	jobs, err := d.repo.GetDeliveryJobs()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	var due []*dal.DeliveryJob
	for _, job := range jobs {
		if !job.NotBefore.After(now) {
			due = append(due, job)
		}
	}

	res := DrainResult{Attempted: len(due)}
	var mu sync.Mutex

	batchSize := d.cfg.Delivery.BatchSize
	for start := 0; start < len(due); start += batchSize {
		end := start + batchSize
		if end > len(due) {
			end = len(due)
		}
		var wg sync.WaitGroup
		for _, job := range due[start:end] {
			wg.Add(1)
			go func(job *dal.DeliveryJob) {
				defer wg.Done()
				outcome := d.retryJob(job)
				mu.Lock()
				switch outcome {
				case SendOk:
					res.Delivered++
				case SendTransient:
					res.Requeued++
				default:
					res.Dropped++
				}
				mu.Unlock()
			}(job)
		}
		wg.Wait()
	}

	remaining := len(jobs) - len(due) + res.Requeued
	d.metrics.RetryQueueLength(remaining)
	if res.Attempted > 0 {
		d.logger.Infof("Drained retry queue: %d attempted, %d delivered, %d requeued, %d dropped",
			res.Attempted, res.Delivered, res.Requeued, res.Dropped)
	}
	return &res, nil
}

// retryJob reports SendOk when delivered, SendTransient when the job went
// back into the queue, SendPermanent when it is gone for good.
func (d *delivery) retryJob(job *dal.DeliveryJob) SendResult {

	privKey, err := d.keyStore.GetPrivKey(job.ActorId)
	if err != nil {
		d.logger.Errorf("Dropping delivery job for %s: no key for %s: %v", job.InboxUrl, job.ActorId, err)
		_ = d.repo.DeleteDeliveryJob(job.Key)
		d.metrics.DeliveryDropped()
		return SendPermanent
	}

	keyId := d.idb.ActorKeyId(job.ActorId)
	result, _ := d.sender.Send(privKey, keyId, job.InboxUrl, job.Activity)
	switch result {
	case SendOk:
		_ = d.repo.DeleteDeliveryJob(job.Key)
		d.metrics.DeliverySucceeded()
		return SendOk
	case SendPermanent:
		_ = d.repo.DeleteDeliveryJob(job.Key)
		d.metrics.DeliveryFailedPermanent()
		return SendPermanent
	}

	job.Attempt++
	if job.Attempt >= d.cfg.Delivery.MaxAttempts {
		d.logger.Warnf("Dropping delivery to %s after %d attempts", job.InboxUrl, job.Attempt)
		_ = d.repo.DeleteDeliveryJob(job.Key)
		d.metrics.DeliveryDropped()
		return SendPermanent
	}
	job.NotBefore = time.Now().Add(d.backoffAfter(job.Attempt))
	if err = d.repo.UpdateDeliveryJob(job); err != nil {
		d.logger.Errorf("Failed to requeue delivery to %s: %v", job.InboxUrl, err)
		d.metrics.DeliveryDropped()
		return SendPermanent
	}
	d.metrics.DeliveryRequeued()
	return SendTransient
}

// backoffAfter returns the wait before the next attempt, given how many
// attempts have been made. The schedule caps at its last entry.
func (d *delivery) backoffAfter(attemptsMade int) time.Duration {
	schedule := d.cfg.Delivery.BackoffSec
	ix := attemptsMade - 1
	if ix >= len(schedule) {
		ix = len(schedule) - 1
	}
	if ix < 0 {
		ix = 0
	}
	return time.Duration(schedule[ix]) * time.Second
}

// collapseInboxes picks one inbox per follower, preferring the shared
// inbox, then deduplicates: followers on the same server get one POST.
func collapseInboxes(followers []*dal.Follower) []deliveryTarget {
	seen := make(map[string]bool)
	var targets []deliveryTarget
	for _, f := range followers {
		inbox := f.Inbox
		if f.SharedInbox != "" {
			inbox = f.SharedInbox
		}
		if inbox == "" || seen[inbox] {
			continue
		}
		seen[inbox] = true
		targets = append(targets, deliveryTarget{inboxUrl: inbox})
	}
	return targets
}

func (d *delivery) updateGauges() {
	total := 0
	for _, loc := range d.cfg.Locations {
		if n, err := d.repo.GetFollowerCount(loc.Id); err == nil {
			total += int(n)
		}
	}
	d.metrics.TotalFollowers(total)
	// Fanout may have enqueued retry jobs; the gauge must not wait for
	// the next drain to notice them
	if jobs, err := d.repo.GetDeliveryJobs(); err == nil {
		d.metrics.RetryQueueLength(len(jobs))
	}
}
