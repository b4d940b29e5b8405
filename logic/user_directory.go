package logic

import (
	"encoding/json"
	"fmt"
	"strings"

	"wx_herald/dal"
	"wx_herald/dto"
	"wx_herald/shared"
	"wx_herald/texts"
)

const websiteLinkTemplate = "<a href='%s' target='_blank' rel='nofollow noopener noreferrer me' translate='no'>%s</a>"

//go:generate mockgen --build_flags=--mod=mod -destination mocks/mock_user_directory.go -package mocks wx_herald/logic IUserDirectory

// IUserDirectory serves the public face of the location actors: webfinger,
// actor documents, collection summaries. It also provisions their keys and
// completes the Follow handshake with an Accept.
type IUserDirectory interface {
	EnsureLocations() error
	GetWebfinger(locationId string) *dto.WebfingerResp
	GetUserInfo(locationId string) (*dto.UserInfo, error)
	GetOutboxSummary(locationId string) (*dto.OrderedListSummary, error)
	GetFollowersSummary(locationId string) (*dto.OrderedListSummary, error)
	GetFollowingSummary(locationId string) (*dto.OrderedListSummary, error)
	AcceptFollower(followActId, followerUserUrl, followerInbox, locationId string) error
}

type userDirectory struct {
	cfg      *shared.Config
	logger   shared.ILogger
	repo     dal.IRepo
	idb      shared.IdBuilder
	keyStore IKeyStore
	sender   IActivitySender
	txt      texts.ITexts
}

func NewUserDirectory(
	cfg *shared.Config,
	logger shared.ILogger,
	repo dal.IRepo,
	keyStore IKeyStore,
	sender IActivitySender,
	txt texts.ITexts,
) IUserDirectory {
	return &userDirectory{
		cfg:      cfg,
		logger:   logger,
		repo:     repo,
		idb:      shared.IdBuilder{Host: cfg.Host},
		keyStore: keyStore,
		sender:   sender,
		txt:      txt}
}

// EnsureLocations provisions a key pair for every configured location.
// Runs at startup; existing keys are left untouched.
func (udir *userDirectory) EnsureLocations() error {
	for _, loc := range udir.cfg.Locations {
		if err := udir.keyStore.EnsureKeyPair(loc.Id); err != nil {
			return fmt.Errorf("failed to provision keys for location %s: %w", loc.Id, err)
		}
	}
	udir.logger.Infof("Provisioned %d location actors", len(udir.cfg.Locations))
	return nil
}

func (udir *userDirectory) getLocation(locationId string) *shared.LocationInfo {
	locationId = strings.ToLower(locationId)
	for _, loc := range udir.cfg.Locations {
		if loc.Id == locationId {
			return loc
		}
	}
	return nil
}

func (udir *userDirectory) GetWebfinger(locationId string) *dto.WebfingerResp {

	loc := udir.getLocation(locationId)
	if loc == nil {
		return nil
	}

	resp := dto.WebfingerResp{
		Subject: fmt.Sprintf("acct:%s@%s", loc.Id, udir.cfg.Host),
		Aliases: []string{
			udir.idb.ActorUrl(loc.Id),
		},
		Links: []dto.WebfingerLink{
			{
				Rel:  "self",
				Type: "application/activity+json",
				Href: udir.idb.ActorUrl(loc.Id),
			},
		},
	}
	return &resp
}

func (udir *userDirectory) GetUserInfo(locationId string) (*dto.UserInfo, error) {

	loc := udir.getLocation(locationId)
	if loc == nil {
		return nil, nil
	}

	pubKeyPem, err := udir.keyStore.GetPubKeyPem(loc.Id)
	if err != nil {
		return nil, err
	}

	actorUrl := udir.idb.ActorUrl(loc.Id)
	resp := dto.UserInfo{
		Context: []string{
			"https://www.w3.org/ns/activitystreams",
			"https://w3id.org/security/v1",
		},
		Id:                actorUrl,
		Type:              "Service",
		PreferredUserName: loc.Id,
		Name:              loc.Name,
		Summary: udir.txt.WithVals("location_bio.html", map[string]string{
			"name":    loc.Name,
			"summary": loc.Summary,
		}),
		ManuallyApproves: false,
		Inbox:            udir.idb.ActorInbox(loc.Id),
		Outbox:           udir.idb.ActorOutbox(loc.Id),
		Followers:        udir.idb.ActorFollowers(loc.Id),
		Following:        udir.idb.ActorFollowing(loc.Id),
		Endpoints:        dto.UserEndpoints{SharedInbox: udir.idb.SharedInbox()},
		PublicKey: dto.PublicKey{
			Id:           udir.idb.ActorKeyId(loc.Id),
			Owner:        actorUrl,
			PublicKeyPem: pubKeyPem,
		},
		Attachments: []dto.Attachment{
			{
				Type:  "PropertyValue",
				Name:  "Website",
				Value: fmt.Sprintf(websiteLinkTemplate, udir.idb.SiteUrl(), udir.cfg.Host),
			},
			{
				Type:  "PropertyValue",
				Name:  "Coordinates",
				Value: fmt.Sprintf("%.4f, %.4f", loc.Lat, loc.Lon),
			},
		},
	}

	return &resp, nil
}

func (udir *userDirectory) GetOutboxSummary(locationId string) (*dto.OrderedListSummary, error) {

	loc := udir.getLocation(locationId)
	if loc == nil {
		return nil, nil
	}

	postCount, err := udir.repo.GetPostCount(loc.Id)
	if err != nil {
		return nil, err
	}

	resp := dto.OrderedListSummary{
		Context:    "https://www.w3.org/ns/activitystreams",
		Id:         udir.idb.ActorOutbox(loc.Id),
		Type:       "OrderedCollection",
		TotalItems: postCount,
	}
	return &resp, nil
}

func (udir *userDirectory) GetFollowersSummary(locationId string) (*dto.OrderedListSummary, error) {

	loc := udir.getLocation(locationId)
	if loc == nil {
		return nil, nil
	}

	followerCount, err := udir.repo.GetFollowerCount(loc.Id)
	if err != nil {
		return nil, err
	}

	resp := dto.OrderedListSummary{
		Context:    "https://www.w3.org/ns/activitystreams",
		Id:         udir.idb.ActorFollowers(loc.Id),
		Type:       "OrderedCollection",
		TotalItems: followerCount,
	}
	return &resp, nil
}

func (udir *userDirectory) GetFollowingSummary(locationId string) (*dto.OrderedListSummary, error) {

	loc := udir.getLocation(locationId)
	if loc == nil {
		return nil, nil
	}

	// Location actors follow nobody
	resp := dto.OrderedListSummary{
		Context:    "https://www.w3.org/ns/activitystreams",
		Id:         udir.idb.ActorFollowing(loc.Id),
		Type:       "OrderedCollection",
		TotalItems: 0,
	}
	return &resp, nil
}

// AcceptFollower sends the Accept that completes a Follow handshake. The
// Accept's ID is derived from the Follow's, so re-accepting the same
// Follow produces the same activity.
func (udir *userDirectory) AcceptFollower(followActId, followerUserUrl, followerInbox, locationId string) error {

	udir.logger.Infof("Accepting follow; delivering to %s", followerInbox)

	privKey, err := udir.keyStore.GetPrivKey(locationId)
	if err != nil {
		return fmt.Errorf("failed to get private key for location %s: %v", locationId, err)
	}

	acceptId := shared.SanitizeToken(followActId) + "-accept"
	actAccept := dto.ActivityOut{
		Context: "https://www.w3.org/ns/activitystreams",
		Id:      udir.idb.ActivityUrl(acceptId),
		Type:    "Accept",
		Actor:   udir.idb.ActorUrl(locationId),
		Object: dto.ActivityOut{
			Id:     followActId,
			Type:   "Follow",
			Actor:  followerUserUrl,
			Object: udir.idb.ActorUrl(locationId),
		},
	}

	bodyJson, err := json.Marshal(&actAccept)
	if err != nil {
		return err
	}
	keyId := udir.idb.ActorKeyId(locationId)
	if _, err = udir.sender.Send(privKey, keyId, followerInbox, bodyJson); err != nil {
		return fmt.Errorf("failed to send 'Accept' activity: %v", err)
	}

	return nil
}
