package logic_test

import (
	"crypto/rsa"
	"encoding/json"
	"io"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"wx_herald/dal"
	"wx_herald/logic"
	"wx_herald/logic/mocks"
	"wx_herald/shared"
	"wx_herald/texts"
)

type udirHarness struct {
	cfg        *shared.Config
	repo       dal.IRepo
	keyStore   logic.IKeyStore
	mockSender *mocks.MockIActivitySender
}

func setupUdirTest(t *testing.T) (*gomock.Controller, *udirHarness, logic.IUserDirectory) {

	ctrl := gomock.NewController(t)
	logger := log.New(io.Discard)

	cfg := &shared.Config{
		Host: testHost,
		Locations: []*shared.LocationInfo{
			{Id: "innercity", Name: "Inner City", Summary: "Downtown.", Lat: 47.4979, Lon: 19.0402},
		},
	}
	shared.ApplyDefaults(cfg)

	h := &udirHarness{
		cfg:        cfg,
		repo:       dal.NewRepo(cfg, logger, dal.NewMemoryStore()),
		mockSender: mocks.NewMockIActivitySender(ctrl),
	}
	h.keyStore = logic.NewKeyStore(logger, h.repo)

	udir := logic.NewUserDirectory(cfg, logger, h.repo, h.keyStore, h.mockSender, texts.NewTexts())
	require.NoError(t, udir.EnsureLocations())

	return ctrl, h, udir
}

func Test_UserDirectory_WebfingerForKnownLocation(t *testing.T) {

	ctrl, _, udir := setupUdirTest(t)
	defer ctrl.Finish()

	resp := udir.GetWebfinger("innercity")
	require.NotNil(t, resp)
	assert.Equal(t, "acct:innercity@"+testHost, resp.Subject)
	require.Len(t, resp.Links, 1)
	assert.Equal(t, "self", resp.Links[0].Rel)
	assert.Equal(t, "https://"+testHost+"/locations/innercity", resp.Links[0].Href)

	assert.Nil(t, udir.GetWebfinger("atlantis"))
}

func Test_UserDirectory_ActorDocument(t *testing.T) {

	ctrl, _, udir := setupUdirTest(t)
	defer ctrl.Finish()

	info, err := udir.GetUserInfo("innercity")
	require.NoError(t, err)
	require.NotNil(t, info)

	actorUrl := "https://" + testHost + "/locations/innercity"
	assert.Equal(t, actorUrl, info.Id)
	assert.Equal(t, "Service", info.Type)
	assert.Equal(t, "innercity", info.PreferredUserName)
	assert.Equal(t, "Inner City", info.Name)
	assert.Equal(t, actorUrl+"/inbox", info.Inbox)
	assert.Equal(t, "https://"+testHost+"/inbox", info.Endpoints.SharedInbox)
	assert.Equal(t, actorUrl+"#main-key", info.PublicKey.Id)
	assert.Equal(t, actorUrl, info.PublicKey.Owner)
	assert.Contains(t, info.PublicKey.PublicKeyPem, "-----BEGIN PUBLIC KEY-----")
	assert.False(t, info.ManuallyApproves)

	info, err = udir.GetUserInfo("atlantis")
	require.NoError(t, err)
	assert.Nil(t, info)
}

func Test_UserDirectory_CollectionSummaries(t *testing.T) {

	ctrl, h, udir := setupUdirTest(t)
	defer ctrl.Finish()

	require.NoError(t, h.repo.AddFollower("innercity", &dal.Follower{
		Id:    "https://genart.social/users/twilliability",
		Inbox: "https://genart.social/users/twilliability/inbox",
	}))

	followers, err := udir.GetFollowersSummary("innercity")
	require.NoError(t, err)
	require.NotNil(t, followers)
	assert.Equal(t, "OrderedCollection", followers.Type)
	assert.Equal(t, uint(1), followers.TotalItems)

	following, err := udir.GetFollowingSummary("innercity")
	require.NoError(t, err)
	require.NotNil(t, following)
	assert.Equal(t, uint(0), following.TotalItems)

	outbox, err := udir.GetOutboxSummary("innercity")
	require.NoError(t, err)
	require.NotNil(t, outbox)
	assert.Equal(t, uint(0), outbox.TotalItems)
}

func Test_UserDirectory_AcceptFollowerSendsSignedAccept(t *testing.T) {

	ctrl, h, udir := setupUdirTest(t)
	defer ctrl.Finish()

	followId := "https://genart.social/activities/follow-1"
	followerUrl := "https://genart.social/users/twilliability"
	followerInbox := followerUrl + "/inbox"

	var sentJson []byte
	h.mockSender.EXPECT().Send(
		gomock.Any(),
		gomock.Eq("https://"+testHost+"/locations/innercity#main-key"),
		gomock.Eq(followerInbox),
		gomock.Any()).
		DoAndReturn(func(privKey *rsa.PrivateKey, keyId, inboxUrl string, activityJson []byte) (logic.SendResult, error) {
			assert.NotNil(t, privKey)
			sentJson = activityJson
			return logic.SendOk, nil
		})

	require.NoError(t, udir.AcceptFollower(followId, followerUrl, followerInbox, "innercity"))

	var accept map[string]any
	require.NoError(t, json.Unmarshal(sentJson, &accept))
	assert.Equal(t, "Accept", accept["type"])
	assert.Equal(t, "https://"+testHost+"/locations/innercity", accept["actor"])
	object, ok := accept["object"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Follow", object["type"])
	assert.Equal(t, followId, object["id"])
	assert.Equal(t, followerUrl, object["actor"])
}

func Test_UserDirectory_AcceptIdIsDeterministic(t *testing.T) {

	ctrl, h, udir := setupUdirTest(t)
	defer ctrl.Finish()

	var ids []string
	h.mockSender.EXPECT().Send(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(privKey *rsa.PrivateKey, keyId, inboxUrl string, activityJson []byte) (logic.SendResult, error) {
			var accept map[string]any
			_ = json.Unmarshal(activityJson, &accept)
			ids = append(ids, accept["id"].(string))
			return logic.SendOk, nil
		}).Times(2)

	followId := "https://genart.social/activities/follow-1"
	followerUrl := "https://genart.social/users/twilliability"
	for i := 0; i < 2; i++ {
		require.NoError(t, udir.AcceptFollower(followId, followerUrl, followerUrl+"/inbox", "innercity"))
	}

	require.Len(t, ids, 2)
	assert.Equal(t, ids[0], ids[1])
}
