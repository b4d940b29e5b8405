package logic_test

import (
	"encoding/json"
	"fmt"
	"io"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"wx_herald/dal"
	"wx_herald/dto"
	"wx_herald/logic"
	"wx_herald/logic/mocks"
	"wx_herald/shared"
)

const testHost = "wx.example.dev"
const callerUrl = "https://genart.social/users/twilliability"
const callerInbox = "https://genart.social/users/twilliability/inbox"
const callerSharedInbox = "https://genart.social/inbox"

type inboxHarness struct {
	cfg      *shared.Config
	repo     dal.IRepo
	mockUDir *mocks.MockIUserDirectory
	sender   *dto.UserInfo
}

func setupInboxTest(t *testing.T) (*gomock.Controller, *inboxHarness, logic.IInbox) {

	ctrl := gomock.NewController(t)
	logger := log.New(io.Discard)

	cfg := &shared.Config{
		Host: testHost,
		Locations: []*shared.LocationInfo{
			{Id: "innercity", Name: "Inner City"},
			{Id: "hillside", Name: "Hillside"},
		},
	}
	shared.ApplyDefaults(cfg)

	h := &inboxHarness{
		cfg:      cfg,
		repo:     dal.NewRepo(cfg, logger, dal.NewMemoryStore()),
		mockUDir: mocks.NewMockIUserDirectory(ctrl),
		sender: &dto.UserInfo{
			Id:        callerUrl,
			Inbox:     callerInbox,
			Endpoints: dto.UserEndpoints{SharedInbox: callerSharedInbox},
		},
	}

	inbox := logic.NewInbox(cfg, logger, h.repo, h.mockUDir)
	return ctrl, h, inbox
}

func makeFollow(actId, locationId string) []byte {
	return []byte(fmt.Sprintf(`{
		"id": "%s",
		"type": "Follow",
		"actor": "%s",
		"object": "https://%s/locations/%s"
	}`, actId, callerUrl, testHost, locationId))
}

func makeUndoFollow(actId, followActId, locationId string) []byte {
	return []byte(fmt.Sprintf(`{
		"id": "%s",
		"type": "Undo",
		"actor": "%s",
		"object": {
			"id": "%s",
			"type": "Follow",
			"actor": "%s",
			"object": "https://%s/locations/%s"
		}
	}`, actId, callerUrl, followActId, callerUrl, testHost, locationId))
}

func handle(t *testing.T, inbox logic.IInbox, locationId string, sender *dto.UserInfo,
	bodyBytes []byte) (string, error) {
	var act dto.ActivityInBase
	require.NoError(t, json.Unmarshal(bodyBytes, &act))
	return inbox.HandleActivity(locationId, sender, act, bodyBytes)
}

func Test_Inbox_FollowStoresFollowerAndAccepts(t *testing.T) {

	ctrl, h, inbox := setupInboxTest(t)
	defer ctrl.Finish()

	followId := "https://genart.social/activities/follow-1"
	h.mockUDir.EXPECT().AcceptFollower(
		gomock.Eq(followId), gomock.Eq(callerUrl), gomock.Eq(callerInbox), gomock.Eq("innercity")).
		Return(nil)

	reqProblem, err := handle(t, inbox, "innercity", h.sender, makeFollow(followId, "innercity"))
	require.NoError(t, err)
	assert.Empty(t, reqProblem)

	followers, err := h.repo.GetFollowers("innercity")
	require.NoError(t, err)
	require.Len(t, followers, 1)
	assert.Equal(t, callerUrl, followers[0].Id)
	assert.Equal(t, callerInbox, followers[0].Inbox)
	assert.Equal(t, callerSharedInbox, followers[0].SharedInbox)
}

func Test_Inbox_RepeatedFollowReSendsAccept(t *testing.T) {

	ctrl, h, inbox := setupInboxTest(t)
	defer ctrl.Finish()

	followId := "https://genart.social/activities/follow-1"
	h.mockUDir.EXPECT().AcceptFollower(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil).Times(2)

	// The remote may have missed our Accept; a repeated Follow gets a fresh one
	for i := 0; i < 2; i++ {
		reqProblem, err := handle(t, inbox, "innercity", h.sender, makeFollow(followId, "innercity"))
		require.NoError(t, err)
		assert.Empty(t, reqProblem)
	}

	count, err := h.repo.GetFollowerCount("innercity")
	require.NoError(t, err)
	assert.Equal(t, uint(1), count)
}

func Test_Inbox_FollowViaSharedInboxResolvesLocationFromObject(t *testing.T) {

	ctrl, h, inbox := setupInboxTest(t)
	defer ctrl.Finish()

	h.mockUDir.EXPECT().AcceptFollower(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Eq("hillside")).
		Return(nil)

	reqProblem, err := handle(t, inbox, "", h.sender,
		makeFollow("https://genart.social/activities/follow-2", "hillside"))
	require.NoError(t, err)
	assert.Empty(t, reqProblem)

	count, err := h.repo.GetFollowerCount("hillside")
	require.NoError(t, err)
	assert.Equal(t, uint(1), count)
}

func Test_Inbox_FollowOfUnknownLocationRejected(t *testing.T) {

	ctrl, h, inbox := setupInboxTest(t)
	defer ctrl.Finish()

	reqProblem, err := handle(t, inbox, "", h.sender,
		makeFollow("https://genart.social/activities/follow-3", "atlantis"))
	require.NoError(t, err)
	assert.NotEmpty(t, reqProblem)
}

func Test_Inbox_FollowObjectMismatchRejected(t *testing.T) {

	ctrl, h, inbox := setupInboxTest(t)
	defer ctrl.Finish()

	// POSTed to innercity's inbox, but the object names hillside
	reqProblem, err := handle(t, inbox, "innercity", h.sender,
		makeFollow("https://genart.social/activities/follow-4", "hillside"))
	require.NoError(t, err)
	assert.NotEmpty(t, reqProblem)
}

func Test_Inbox_UndoFollowRemovesFollower(t *testing.T) {

	ctrl, h, inbox := setupInboxTest(t)
	defer ctrl.Finish()

	followId := "https://genart.social/activities/follow-1"
	h.mockUDir.EXPECT().AcceptFollower(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil)
	_, err := handle(t, inbox, "innercity", h.sender, makeFollow(followId, "innercity"))
	require.NoError(t, err)

	reqProblem, err := handle(t, inbox, "innercity", h.sender,
		makeUndoFollow("https://genart.social/activities/undo-1", followId, "innercity"))
	require.NoError(t, err)
	assert.Empty(t, reqProblem)

	count, err := h.repo.GetFollowerCount("innercity")
	require.NoError(t, err)
	assert.Equal(t, uint(0), count)
}

func Test_Inbox_SecondUndoIsNoop(t *testing.T) {

	ctrl, h, inbox := setupInboxTest(t)
	defer ctrl.Finish()

	// Same activity ID: dropped by the handled marker
	body := makeUndoFollow("https://genart.social/activities/undo-1",
		"https://genart.social/activities/follow-1", "innercity")
	for i := 0; i < 2; i++ {
		reqProblem, err := handle(t, inbox, "innercity", h.sender, body)
		require.NoError(t, err)
		assert.Empty(t, reqProblem)
	}

	// Fresh activity ID, same intent: removal of an absent follower is a no-op
	reqProblem, err := handle(t, inbox, "innercity", h.sender,
		makeUndoFollow("https://genart.social/activities/undo-2",
			"https://genart.social/activities/follow-1", "innercity"))
	require.NoError(t, err)
	assert.Empty(t, reqProblem)
}

func Test_Inbox_UndoOfUnknownLocationRejectedOnRedelivery(t *testing.T) {

	ctrl, h, inbox := setupInboxTest(t)
	defer ctrl.Finish()

	// A rejected Undo must not claim the handled marker: the remote sees
	// the 400 and may redeliver the same activity, expecting the same answer
	body := makeUndoFollow("https://genart.social/activities/undo-bad-1",
		"https://genart.social/activities/follow-1", "atlantis")
	for i := 0; i < 2; i++ {
		reqProblem, err := handle(t, inbox, "", h.sender, body)
		require.NoError(t, err)
		assert.NotEmpty(t, reqProblem)
	}
}

func Test_Inbox_DeleteRemovesActorEverywhere(t *testing.T) {

	ctrl, h, inbox := setupInboxTest(t)
	defer ctrl.Finish()

	h.mockUDir.EXPECT().AcceptFollower(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil).Times(2)
	_, err := handle(t, inbox, "innercity", h.sender,
		makeFollow("https://genart.social/activities/follow-1", "innercity"))
	require.NoError(t, err)
	_, err = handle(t, inbox, "hillside", h.sender,
		makeFollow("https://genart.social/activities/follow-2", "hillside"))
	require.NoError(t, err)

	deleteBody := []byte(fmt.Sprintf(`{
		"id": "https://genart.social/activities/delete-1",
		"type": "Delete",
		"actor": "%s",
		"object": "%s"
	}`, callerUrl, callerUrl))
	reqProblem, err := handle(t, inbox, "", h.sender, deleteBody)
	require.NoError(t, err)
	assert.Empty(t, reqProblem)

	for _, loc := range []string{"innercity", "hillside"} {
		count, err := h.repo.GetFollowerCount(loc)
		require.NoError(t, err)
		assert.Equal(t, uint(0), count, loc)
	}
}

func Test_Inbox_DeleteOfOtherObjectIgnored(t *testing.T) {

	ctrl, h, inbox := setupInboxTest(t)
	defer ctrl.Finish()

	h.mockUDir.EXPECT().AcceptFollower(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil)
	_, err := handle(t, inbox, "innercity", h.sender,
		makeFollow("https://genart.social/activities/follow-1", "innercity"))
	require.NoError(t, err)

	deleteBody := []byte(fmt.Sprintf(`{
		"id": "https://genart.social/activities/delete-2",
		"type": "Delete",
		"actor": "%s",
		"object": "https://genart.social/notes/12345"
	}`, callerUrl))
	reqProblem, err := handle(t, inbox, "", h.sender, deleteBody)
	require.NoError(t, err)
	assert.Empty(t, reqProblem)

	count, err := h.repo.GetFollowerCount("innercity")
	require.NoError(t, err)
	assert.Equal(t, uint(1), count)
}

func Test_Inbox_KnownIrrelevantActivityAcknowledged(t *testing.T) {

	ctrl, h, inbox := setupInboxTest(t)
	defer ctrl.Finish()

	likeBody := []byte(fmt.Sprintf(`{
		"id": "https://genart.social/activities/like-1",
		"type": "Like",
		"actor": "%s",
		"object": "https://%s/posts/innercity-forecast-morning-20250812-07"
	}`, callerUrl, testHost))
	reqProblem, err := handle(t, inbox, "innercity", h.sender, likeBody)
	require.NoError(t, err)
	assert.Empty(t, reqProblem)
}

func Test_Inbox_UnknownActivityRejected(t *testing.T) {

	ctrl, h, inbox := setupInboxTest(t)
	defer ctrl.Finish()

	body := []byte(fmt.Sprintf(`{
		"id": "https://genart.social/activities/x-1",
		"type": "TotallyUnknown",
		"actor": "%s",
		"object": "whatever"
	}`, callerUrl))
	reqProblem, err := handle(t, inbox, "innercity", h.sender, body)
	require.NoError(t, err)
	assert.NotEmpty(t, reqProblem)
}
