package dal

import (
	"io"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"wx_herald/shared"
)

func setupRepoTest() IRepo {
	cfg := &shared.Config{Host: "wx.example.dev"}
	shared.ApplyDefaults(cfg)
	logger := log.New(io.Discard)
	return NewRepo(cfg, logger, NewMemoryStore())
}

func Test_Follower_AddRemove(t *testing.T) {

	repo := setupRepoTest()

	flwr := &Follower{
		Id:         "https://genart.social/users/twilliability",
		Inbox:      "https://genart.social/users/twilliability/inbox",
		FollowedAt: time.Now().UTC(),
	}
	require.NoError(t, repo.AddFollower("innercity", flwr))

	followers, err := repo.GetFollowers("innercity")
	require.NoError(t, err)
	require.Len(t, followers, 1)
	assert.Equal(t, flwr.Id, followers[0].Id)

	count, err := repo.GetFollowerCount("innercity")
	require.NoError(t, err)
	assert.Equal(t, uint(1), count)

	require.NoError(t, repo.RemoveFollower("innercity", flwr.Id))
	count, err = repo.GetFollowerCount("innercity")
	require.NoError(t, err)
	assert.Equal(t, uint(0), count)
}

func Test_Follower_ReAddKeepsOriginalTimestamp(t *testing.T) {

	repo := setupRepoTest()

	first := time.Date(2025, 8, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, repo.AddFollower("innercity", &Follower{
		Id:         "https://genart.social/users/twilliability",
		Inbox:      "https://genart.social/users/twilliability/inbox",
		FollowedAt: first,
	}))
	require.NoError(t, repo.AddFollower("innercity", &Follower{
		Id:          "https://genart.social/users/twilliability",
		Inbox:       "https://genart.social/users/twilliability/inbox",
		SharedInbox: "https://genart.social/inbox",
		FollowedAt:  time.Now().UTC(),
	}))

	followers, err := repo.GetFollowers("innercity")
	require.NoError(t, err)
	require.Len(t, followers, 1)
	assert.Equal(t, first, followers[0].FollowedAt)
	assert.Equal(t, "https://genart.social/inbox", followers[0].SharedInbox)
}

func Test_Follower_RemoveAbsentIsNoop(t *testing.T) {

	repo := setupRepoTest()
	assert.NoError(t, repo.RemoveFollower("innercity", "https://nowhere.example/users/nobody"))
}

func Test_Follower_RemoveEverywhere(t *testing.T) {

	repo := setupRepoTest()

	actor := "https://genart.social/users/twilliability"
	for _, loc := range []string{"innercity", "hillside"} {
		require.NoError(t, repo.AddFollower(loc, &Follower{
			Id:         actor,
			Inbox:      actor + "/inbox",
			FollowedAt: time.Now().UTC(),
		}))
	}

	require.NoError(t, repo.RemoveFollowerEverywhere(actor))

	for _, loc := range []string{"innercity", "hillside"} {
		count, err := repo.GetFollowerCount(loc)
		require.NoError(t, err)
		assert.Equal(t, uint(0), count, loc)
	}
}

func Test_KeyPair_RoundTrip(t *testing.T) {

	repo := setupRepoTest()

	require.NoError(t, repo.PutKeyPair("innercity", "PRIV-PEM", "PUB-PEM"))

	priv, err := repo.GetPrivKeyPem("innercity")
	require.NoError(t, err)
	assert.Equal(t, "PRIV-PEM", priv)

	pub, err := repo.GetPubKeyPem("innercity")
	require.NoError(t, err)
	assert.Equal(t, "PUB-PEM", pub)
}

func Test_DeliveryJob_Lifecycle(t *testing.T) {

	repo := setupRepoTest()

	job := &DeliveryJob{
		InboxUrl:  "https://genart.social/inbox",
		ActorId:   "innercity",
		Activity:  []byte(`{"type":"Create"}`),
		Attempt:   1,
		NotBefore: time.Now().UTC(),
	}
	require.NoError(t, repo.AddDeliveryJob(job))
	require.NotEmpty(t, job.Key)

	jobs, err := repo.GetDeliveryJobs()
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, job.InboxUrl, jobs[0].InboxUrl)
	assert.Equal(t, job.Key, jobs[0].Key)

	jobs[0].Attempt = 2
	require.NoError(t, repo.UpdateDeliveryJob(jobs[0]))
	jobs, err = repo.GetDeliveryJobs()
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, 2, jobs[0].Attempt)

	require.NoError(t, repo.DeleteDeliveryJob(jobs[0].Key))
	jobs, err = repo.GetDeliveryJobs()
	require.NoError(t, err)
	assert.Empty(t, jobs)
}

func Test_DeliveryJob_KeysAreUnique(t *testing.T) {

	repo := setupRepoTest()

	for i := 0; i < 5; i++ {
		require.NoError(t, repo.AddDeliveryJob(&DeliveryJob{
			InboxUrl: "https://genart.social/inbox",
			ActorId:  "innercity",
			Activity: []byte(`{}`),
		}))
	}

	jobs, err := repo.GetDeliveryJobs()
	require.NoError(t, err)
	assert.Len(t, jobs, 5)
}

func Test_MarkActivityHandled(t *testing.T) {

	repo := setupRepoTest()

	already, err := repo.MarkActivityHandled("https://genart.social/activities/123", time.Now())
	require.NoError(t, err)
	assert.False(t, already)

	already, err = repo.MarkActivityHandled("https://genart.social/activities/123", time.Now())
	require.NoError(t, err)
	assert.True(t, already)

	already, err = repo.MarkActivityHandled("https://genart.social/activities/456", time.Now())
	require.NoError(t, err)
	assert.False(t, already)
}

func Test_MarkPostPublished(t *testing.T) {

	repo := setupRepoTest()

	already, err := repo.MarkPostPublished("innercity-forecast-morning-20250812-07", time.Hour)
	require.NoError(t, err)
	assert.False(t, already)

	already, err = repo.MarkPostPublished("innercity-forecast-morning-20250812-07", time.Hour)
	require.NoError(t, err)
	assert.True(t, already)

	count, err := repo.GetPostCount("innercity")
	require.NoError(t, err)
	assert.Equal(t, uint(1), count)

	count, err = repo.GetPostCount("hillside")
	require.NoError(t, err)
	assert.Equal(t, uint(0), count)
}
