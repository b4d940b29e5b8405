package logic

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/codeGROOVE-dev/retry"
	"wx_herald/dto"
	"wx_herald/shared"
)

//go:generate mockgen --build_flags=--mod=mod -destination mocks/mock_user_retriever.go -package mocks wx_herald/logic IUserRetriever

// IUserRetriever dereferences a remote actor's document.
type IUserRetriever interface {
	Retrieve(userUrl string) (info *dto.UserInfo, err error)
}

type userRetriever struct {
	cfg       *shared.Config
	userAgent shared.IUserAgent
	metrics   IMetrics
	client    *http.Client
}

func NewUserRetriever(cfg *shared.Config, userAgent shared.IUserAgent, metrics IMetrics) IUserRetriever {
	return &userRetriever{
		cfg:       cfg,
		userAgent: userAgent,
		metrics:   metrics,
		client:    &http.Client{Timeout: time.Duration(cfg.Delivery.TimeoutSec) * time.Second},
	}
}

// Retrieve fetches the actor document, retrying briefly on network errors
// and server-side failures. A 4xx ends the attempt right away: the remote
// has spoken.
func (ur *userRetriever) Retrieve(userUrl string) (*dto.UserInfo, error) {

	obs := ur.metrics.StartApubRequestOut("get_actor")
	defer obs.Finish()

	var obj dto.UserInfo
	err := retry.Do(
		func() error {
			return ur.fetchInto(userUrl, &obj)
		},
		retry.Attempts(3),
		retry.Delay(500*time.Millisecond),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, err
	}
	return &obj, nil
}

func (ur *userRetriever) fetchInto(userUrl string, obj *dto.UserInfo) error {

	req, err := http.NewRequest("GET", userUrl, nil)
	if err != nil {
		return retry.Unrecoverable(err)
	}
	req.Header.Set("Accept", "application/activity+json, application/json")
	ur.userAgent.AddUserAgent(req)

	resp, err := ur.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return retry.Unrecoverable(fmt.Errorf("failed to get actor document; got status %v", resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to get actor document; got status %v", resp.StatusCode)
	}

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if err = json.Unmarshal(bodyBytes, obj); err != nil {
		return retry.Unrecoverable(fmt.Errorf("failed to parse actor document: %v", err))
	}
	return nil
}
