package logic

import (
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"wx_herald/dal"
	"wx_herald/dto"
	"wx_herald/shared"
)

// Activity types we receive but have no business reacting to. They are
// acknowledged and dropped; anything outside this set and the handled
// types is rejected as unsupported.
var ignoredActivityTypes = map[string]bool{
	"Like":     true,
	"Announce": true,
	"Create":   true,
	"Update":   true,
	"Accept":   true,
	"Reject":   true,
	"Add":      true,
	"Remove":   true,
	"Block":    true,
	"Flag":     true,
	"Move":     true,
}

//go:generate mockgen --build_flags=--mod=mod -destination mocks/mock_inbox.go -package mocks wx_herald/logic IInbox

// IInbox processes activities POSTed to a location's inbox or the shared
// inbox. locationId is empty for the shared inbox; the target location is
// then derived from the activity's object.
type IInbox interface {
	HandleActivity(locationId string, senderInfo *dto.UserInfo,
		actBase dto.ActivityInBase, bodyBytes []byte) (reqProblem string, err error)
}

type inbox struct {
	cfg              *shared.Config
	logger           shared.ILogger
	repo             dal.IRepo
	udir             IUserDirectory
	reActorUrlParser *regexp.Regexp
}

func NewInbox(
	cfg *shared.Config,
	logger shared.ILogger,
	repo dal.IRepo,
	udir IUserDirectory,
) IInbox {
	reActorUrlParser := regexp.MustCompile("https://" + cfg.Host + "/locations/([^/#]+)/?$")
	return &inbox{cfg, logger, repo, udir, reActorUrlParser}
}

func (ib *inbox) HandleActivity(locationId string, senderInfo *dto.UserInfo,
	actBase dto.ActivityInBase, bodyBytes []byte) (reqProblem string, err error) {

	switch actBase.Type {
	case "Follow":
		return ib.handleFollow(locationId, senderInfo, bodyBytes)
	case "Undo":
		return ib.handleUndo(locationId, bodyBytes)
	case "Delete":
		return ib.handleDelete(actBase)
	}

	if ignoredActivityTypes[actBase.Type] {
		ib.logger.Debugf("Ignoring %s activity from %s", actBase.Type, actBase.Actor)
		return "", nil
	}
	return fmt.Sprintf("Unsupported activity type: %s", actBase.Type), nil
}

// handleFollow stores the follower and sends the Accept before returning.
// Follows are deliberately not deduplicated: a repeated Follow means the
// remote never saw our Accept, so we must send it again.
func (ib *inbox) handleFollow(locationId string, senderInfo *dto.UserInfo,
	bodyBytes []byte) (reqProblem string, err error) {

	var actFollow dto.ActivityIn[string]
	if jsonErr := json.Unmarshal(bodyBytes, &actFollow); jsonErr != nil {
		ib.logger.Info("Invalid JSON in Follow activity body")
		reqProblem = fmt.Sprintf("Invalid JSON: %v", jsonErr)
		return
	}

	locationId, reqProblem = ib.resolveLocation(locationId, actFollow.Object)
	if reqProblem != "" {
		return
	}
	ib.logger.Infof("Handling Follow of '%s' by %s", locationId, actFollow.Actor)

	flwr := dal.Follower{
		Id:          actFollow.Actor,
		Inbox:       senderInfo.Inbox,
		SharedInbox: senderInfo.Endpoints.SharedInbox,
		FollowedAt:  time.Now().UTC(),
	}
	if err = ib.repo.AddFollower(locationId, &flwr); err != nil {
		return "", err
	}

	// Accept goes out synchronously: when we return, the handshake is done
	err = ib.udir.AcceptFollower(actFollow.Id, actFollow.Actor, senderInfo.Inbox, locationId)
	return
}

func (ib *inbox) handleUndo(locationId string, bodyBytes []byte) (reqProblem string, err error) {

	var actUndo dto.ActivityIn[dto.ActivityInBase]
	if jsonErr := json.Unmarshal(bodyBytes, &actUndo); jsonErr != nil {
		ib.logger.Info("Invalid JSON in Undo activity body")
		reqProblem = fmt.Sprintf("Invalid JSON: %v", jsonErr)
		return
	}

	// Only Undo of a Follow means anything to us
	if actUndo.Object.Type != "Follow" {
		ib.logger.Debugf("Ignoring Undo of %s", actUndo.Object.Type)
		return
	}

	var actUndoFollow dto.ActivityIn[dto.ActivityIn[string]]
	if jsonErr := json.Unmarshal(bodyBytes, &actUndoFollow); jsonErr != nil {
		ib.logger.Info("Invalid JSON in Undo Follow activity body")
		reqProblem = fmt.Sprintf("Invalid JSON: %v", jsonErr)
		return
	}

	locationId, reqProblem = ib.resolveLocation(locationId, actUndoFollow.Object.Object)
	if reqProblem != "" {
		return
	}

	// The marker is claimed only once the Undo has passed validation, so
	// a rejected Undo is rejected the same way when redelivered
	var alreadyHandled bool
	if alreadyHandled, err = ib.repo.MarkActivityHandled(actUndo.Id, time.Now()); err != nil {
		return
	}
	if alreadyHandled {
		ib.logger.Infof("Activity has already been handled: %s", actUndo.Id)
		return
	}
	ib.logger.Infof("Handling Undo Follow of '%s' by %s", locationId, actUndoFollow.Actor)

	// Removing an absent follower is a no-op, so a re-delivered Undo that
	// slipped past the handled marker is still harmless
	err = ib.repo.RemoveFollower(locationId, actUndoFollow.Actor)
	return
}

// handleDelete reacts to a remote actor deleting itself: the actor is
// removed from every location's follower set. Deletes of other objects
// are ignored.
func (ib *inbox) handleDelete(actBase dto.ActivityInBase) (reqProblem string, err error) {

	objectStr, _ := actBase.Object.(string)
	if objectStr != actBase.Actor {
		ib.logger.Debugf("Ignoring Delete of %v by %s", actBase.Object, actBase.Actor)
		return
	}

	var alreadyHandled bool
	if alreadyHandled, err = ib.repo.MarkActivityHandled(actBase.Id, time.Now()); err != nil {
		return
	}
	if alreadyHandled {
		ib.logger.Infof("Activity has already been handled: %s", actBase.Id)
		return
	}

	ib.logger.Infof("Handling self-Delete of %s", actBase.Actor)
	err = ib.repo.RemoveFollowerEverywhere(actBase.Actor)
	return
}

// resolveLocation checks the activity's object against the known location
// actors. When the POST arrived at a location's own inbox, the object must
// name that same location; at the shared inbox, the object alone decides.
func (ib *inbox) resolveLocation(locationId, objectUrl string) (string, string) {

	groups := ib.reActorUrlParser.FindStringSubmatch(objectUrl)
	if groups == nil {
		return "", fmt.Sprintf("Object is not a location actor of this server: %s", objectUrl)
	}
	objectLocation := groups[1]

	if locationId != "" && locationId != objectLocation {
		return "", fmt.Sprintf("Activity sent to inbox of %s, but object is %s", locationId, objectUrl)
	}

	for _, loc := range ib.cfg.Locations {
		if loc.Id == objectLocation {
			return objectLocation, ""
		}
	}
	return "", fmt.Sprintf("Location does not exist: %s", objectLocation)
}
