package dal

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"wx_herald/shared"
)

// Store key prefixes. Everything the repo persists lives behind IStore.
const (
	keyPrefixFollowers = "followers:"   // followers:<locationId> -> JSON array of Follower
	keyPrefixPrivKey   = "private_key:" // private_key:<actorId> -> PEM
	keyPrefixPubKey    = "public_key:"  // public_key:<actorId> -> PEM
	keyPrefixDelivery  = "delivery:"    // delivery:<unix-nano>:<uuid> -> DeliveryJob JSON
	keyPrefixHandled   = "handled:"     // handled:<sanitized activity id> -> timestamp
	keyPrefixPosted    = "posted:"      // posted:<postId> -> timestamp
)

const handledActivityTtl = 48 * time.Hour

//go:generate mockgen --build_flags=--mod=mod -destination ../logic/mocks/mock_repo.go -package mocks wx_herald/dal IRepo

type IRepo interface {
	GetFollowers(locationId string) ([]*Follower, error)
	AddFollower(locationId string, follower *Follower) error
	RemoveFollower(locationId, followerId string) error
	RemoveFollowerEverywhere(followerId string) error
	GetFollowerCount(locationId string) (uint, error)
	GetPostCount(locationId string) (uint, error)
	GetPrivKeyPem(actorId string) (string, error)
	GetPubKeyPem(actorId string) (string, error)
	PutKeyPair(actorId, privKeyPem, pubKeyPem string) error
	AddDeliveryJob(job *DeliveryJob) error
	UpdateDeliveryJob(job *DeliveryJob) error
	DeleteDeliveryJob(key string) error
	GetDeliveryJobs() ([]*DeliveryJob, error)
	MarkActivityHandled(activityId string, when time.Time) (alreadyHandled bool, err error)
	MarkPostPublished(postId string, ttl time.Duration) (alreadyPublished bool, err error)
}

type repo struct {
	cfg    *shared.Config
	logger shared.ILogger
	store  IStore
}

func NewRepo(cfg *shared.Config, logger shared.ILogger, store IStore) IRepo {
	return &repo{cfg, logger, store}
}

// The follower set of a location is one JSON blob rewritten on every
// mutation. Concurrent Follow/Undo for the same remote actor can race;
// last write wins, which is acceptable for this relation.
func (r *repo) GetFollowers(locationId string) ([]*Follower, error) {
	val, err := r.store.Get(keyPrefixFollowers + locationId)
	if err != nil {
		return nil, err
	}
	if val == nil {
		return nil, nil
	}
	var followers []*Follower
	if err = json.Unmarshal(val, &followers); err != nil {
		return nil, fmt.Errorf("corrupt follower set for %s: %v", locationId, err)
	}
	return followers, nil
}

func (r *repo) putFollowers(locationId string, followers []*Follower) error {
	val, err := json.Marshal(followers)
	if err != nil {
		return err
	}
	return r.store.Put(keyPrefixFollowers+locationId, val, 0)
}

func (r *repo) AddFollower(locationId string, follower *Follower) error {
	followers, err := r.GetFollowers(locationId)
	if err != nil {
		return err
	}
	for ix, f := range followers {
		if f.Id == follower.Id {
			// Already following: refresh inbox URLs, keep original timestamp
			follower.FollowedAt = f.FollowedAt
			followers[ix] = follower
			return r.putFollowers(locationId, followers)
		}
	}
	followers = append(followers, follower)
	return r.putFollowers(locationId, followers)
}

func (r *repo) RemoveFollower(locationId, followerId string) error {
	followers, err := r.GetFollowers(locationId)
	if err != nil {
		return err
	}
	kept := followers[:0]
	for _, f := range followers {
		if f.Id != followerId {
			kept = append(kept, f)
		}
	}
	if len(kept) == len(followers) {
		// Not present: no-op
		return nil
	}
	return r.putFollowers(locationId, kept)
}

func (r *repo) RemoveFollowerEverywhere(followerId string) error {
	keys, err := r.store.ListByPrefix(keyPrefixFollowers)
	if err != nil {
		return err
	}
	for _, key := range keys {
		locationId := key[len(keyPrefixFollowers):]
		if err = r.RemoveFollower(locationId, followerId); err != nil {
			return err
		}
	}
	return nil
}

func (r *repo) GetFollowerCount(locationId string) (uint, error) {
	followers, err := r.GetFollowers(locationId)
	if err != nil {
		return 0, err
	}
	return uint(len(followers)), nil
}

// GetPostCount counts the published posts of one location. Post IDs are
// prefixed with the location ID, which is what makes this a prefix scan.
func (r *repo) GetPostCount(locationId string) (uint, error) {
	keys, err := r.store.ListByPrefix(keyPrefixPosted + locationId + "-")
	if err != nil {
		return 0, err
	}
	return uint(len(keys)), nil
}

func (r *repo) GetPrivKeyPem(actorId string) (string, error) {
	val, err := r.store.Get(keyPrefixPrivKey + actorId)
	return string(val), err
}

func (r *repo) GetPubKeyPem(actorId string) (string, error) {
	val, err := r.store.Get(keyPrefixPubKey + actorId)
	return string(val), err
}

func (r *repo) PutKeyPair(actorId, privKeyPem, pubKeyPem string) error {
	if err := r.store.Put(keyPrefixPrivKey+actorId, []byte(privKeyPem), 0); err != nil {
		return err
	}
	return r.store.Put(keyPrefixPubKey+actorId, []byte(pubKeyPem), 0)
}

func (r *repo) AddDeliveryJob(job *DeliveryJob) error {
	job.Key = fmt.Sprintf("%s%d:%s", keyPrefixDelivery, time.Now().UnixNano(), uuid.NewString())
	return r.UpdateDeliveryJob(job)
}

func (r *repo) UpdateDeliveryJob(job *DeliveryJob) error {
	val, err := json.Marshal(job)
	if err != nil {
		return err
	}
	ttl := time.Duration(r.cfg.Delivery.QueueEntryTtlSec) * time.Second
	return r.store.Put(job.Key, val, ttl)
}

func (r *repo) DeleteDeliveryJob(key string) error {
	return r.store.Delete(key)
}

func (r *repo) GetDeliveryJobs() ([]*DeliveryJob, error) {
	keys, err := r.store.ListByPrefix(keyPrefixDelivery)
	if err != nil {
		return nil, err
	}
	var jobs []*DeliveryJob
	for _, key := range keys {
		val, err := r.store.Get(key)
		if err != nil {
			return nil, err
		}
		if val == nil {
			// Expired between list and get
			continue
		}
		var job DeliveryJob
		if err = json.Unmarshal(val, &job); err != nil {
			r.logger.Warnf("Dropping corrupt delivery job %s: %v", key, err)
			_ = r.store.Delete(key)
			continue
		}
		job.Key = key
		jobs = append(jobs, &job)
	}
	return jobs, nil
}

func (r *repo) MarkActivityHandled(activityId string, when time.Time) (alreadyHandled bool, err error) {
	key := keyPrefixHandled + shared.SanitizeToken(activityId)
	val, err := r.store.Get(key)
	if err != nil {
		return false, err
	}
	if val != nil {
		return true, nil
	}
	err = r.store.Put(key, []byte(when.UTC().Format(time.RFC3339)), handledActivityTtl)
	return false, err
}

func (r *repo) MarkPostPublished(postId string, ttl time.Duration) (alreadyPublished bool, err error) {
	key := keyPrefixPosted + postId
	val, err := r.store.Get(key)
	if err != nil {
		return false, err
	}
	if val != nil {
		return true, nil
	}
	err = r.store.Put(key, []byte(time.Now().UTC().Format(time.RFC3339)), ttl)
	return false, err
}
