package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"

	"github.com/gorilla/mux"
	"wx_herald/dto"
	"wx_herald/logic"
	"wx_herald/shared"
)

// Groups together the handlers needed to implement an ActivityPub server.
type apubHandlerGroup struct {
	cfg        *shared.Config
	logger     shared.ILogger
	metrics    logic.IMetrics
	sigChecker logic.IHttpSigChecker
	retriever  logic.IUserRetriever
	udir       logic.IUserDirectory
	inbox      logic.IInbox
	reResource *regexp.Regexp
}

func NewApubHandlerGroup(
	cfg *shared.Config,
	logger shared.ILogger,
	metrics logic.IMetrics,
	sigChecker logic.IHttpSigChecker,
	retriever logic.IUserRetriever,
	udir logic.IUserDirectory,
	ibox logic.IInbox,
) IHandlerGroup {
	res := apubHandlerGroup{
		cfg:        cfg,
		logger:     logger,
		metrics:    metrics,
		sigChecker: sigChecker,
		retriever:  retriever,
		udir:       udir,
		inbox:      ibox,
	}
	res.reResource = regexp.MustCompile("^acct:([^@]+)@([^@]+)$")
	return &res
}

func (hg *apubHandlerGroup) Prefix() string {
	return ""
}

func (hg *apubHandlerGroup) GroupDefs() []handlerDef {
	return []handlerDef{
		{"GET", "/.well-known/webfinger", func(w http.ResponseWriter, r *http.Request) { hg.getWebfinger(w, r) }},
		{"GET", "/locations/{location}", func(w http.ResponseWriter, r *http.Request) { hg.getLocation(w, r) }},
		{"GET", "/locations/{location}/outbox", func(w http.ResponseWriter, r *http.Request) { hg.getOutbox(w, r) }},
		{"GET", "/locations/{location}/followers", func(w http.ResponseWriter, r *http.Request) { hg.getFollowers(w, r) }},
		{"GET", "/locations/{location}/following", func(w http.ResponseWriter, r *http.Request) { hg.getFollowing(w, r) }},
		{"POST", "/locations/{location}/inbox", func(w http.ResponseWriter, r *http.Request) { hg.postInbox(w, r) }},
		{"POST", "/inbox", func(w http.ResponseWriter, r *http.Request) { hg.postInbox(w, r) }},
	}
}

func (hg *apubHandlerGroup) AuthMW() func(next http.Handler) http.Handler {
	return emptyMW
}

func (hg *apubHandlerGroup) getWebfinger(w http.ResponseWriter, r *http.Request) {

	hg.logger.Infof("Handling webfinger GET: %s", r.URL.Path)
	obs := hg.metrics.StartApubRequestIn("webfinger")
	defer obs.Finish()

	resourceParam := r.URL.Query().Get("resource")
	groups := hg.reResource.FindStringSubmatch(resourceParam)
	if groups == nil {
		hg.logger.Infof("Webfinger: Invalid request; 'resource' param is '%s'", resourceParam)
		writeErrorResponse(w, "Missing or invalid 'resource' param", http.StatusBadRequest)
		return
	}
	locationId, host := groups[1], groups[2]
	if host != hg.cfg.Host {
		hg.logger.Infof("Webfinger: Resource is not on this host: '%s'", resourceParam)
		writeErrorResponse(w, "No such resource", http.StatusNotFound)
		return
	}

	resp := hg.udir.GetWebfinger(locationId)
	if resp == nil {
		hg.logger.Infof("Webfinger: No such resource; 'resource' param is '%s'", resourceParam)
		writeErrorResponse(w, "No such resource", http.StatusNotFound)
		return
	}

	writeJsonResponse(hg.logger, w, resp)
}

func (hg *apubHandlerGroup) getLocation(w http.ResponseWriter, r *http.Request) {

	hg.logger.Infof("Handling location GET: %s", r.URL.Path)
	obs := hg.metrics.StartApubRequestIn("location")
	defer obs.Finish()
	locationId := mux.Vars(r)["location"]

	userInfo, err := hg.udir.GetUserInfo(locationId)
	if err != nil {
		hg.logger.Errorf("Error retrieving actor document for '%s': %v", locationId, err)
		writeErrorResponse(w, internalErrorStr, http.StatusInternalServerError)
		return
	}
	if userInfo == nil {
		hg.logger.Infof("Info requested for unknown location: '%s'", locationId)
		writeErrorResponse(w, "No such location", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/activity+json")
	respJson, _ := json.Marshal(userInfo)
	_, _ = fmt.Fprintln(w, string(respJson))
}

func (hg *apubHandlerGroup) getOutbox(w http.ResponseWriter, r *http.Request) {

	hg.logger.Infof("Handling outbox GET: %s", r.URL.Path)
	obs := hg.metrics.StartApubRequestIn("location/outbox")
	defer obs.Finish()

	locationId := mux.Vars(r)["location"]
	summary, err := hg.udir.GetOutboxSummary(locationId)
	if err != nil {
		hg.logger.Errorf("Error retrieving outbox of '%s': %v", locationId, err)
		writeErrorResponse(w, internalErrorStr, http.StatusInternalServerError)
		return
	}
	if summary == nil {
		hg.logger.Infof("Outbox requested for unknown location: '%s'", locationId)
		writeErrorResponse(w, "No such location", http.StatusNotFound)
		return
	}
	writeJsonResponse(hg.logger, w, summary)
}

func (hg *apubHandlerGroup) getFollowers(w http.ResponseWriter, r *http.Request) {

	hg.logger.Infof("Handling followers GET: %s", r.URL.Path)
	obs := hg.metrics.StartApubRequestIn("location/followers")
	defer obs.Finish()

	locationId := mux.Vars(r)["location"]
	summary, err := hg.udir.GetFollowersSummary(locationId)
	if err != nil {
		hg.logger.Errorf("Error retrieving followers of '%s': %v", locationId, err)
		writeErrorResponse(w, internalErrorStr, http.StatusInternalServerError)
		return
	}
	if summary == nil {
		hg.logger.Infof("Followers requested for unknown location: '%s'", locationId)
		writeErrorResponse(w, "No such location", http.StatusNotFound)
		return
	}
	writeJsonResponse(hg.logger, w, summary)
}

func (hg *apubHandlerGroup) getFollowing(w http.ResponseWriter, r *http.Request) {

	hg.logger.Infof("Handling following GET: %s", r.URL.Path)
	obs := hg.metrics.StartApubRequestIn("location/following")
	defer obs.Finish()

	locationId := mux.Vars(r)["location"]
	summary, err := hg.udir.GetFollowingSummary(locationId)
	if err != nil {
		hg.logger.Errorf("Error retrieving following of '%s': %v", locationId, err)
		writeErrorResponse(w, internalErrorStr, http.StatusInternalServerError)
		return
	}
	if summary == nil {
		hg.logger.Infof("Following requested for unknown location: '%s'", locationId)
		writeErrorResponse(w, "No such location", http.StatusNotFound)
		return
	}
	writeJsonResponse(hg.logger, w, summary)
}

// postInbox serves both the shared inbox and per-location inboxes. The
// 200 it returns acknowledges receipt of a well-formed, authenticated
// activity; whether processing then succeeds is our problem, not the
// sender's, and a failure there does not change the status code.
func (hg *apubHandlerGroup) postInbox(w http.ResponseWriter, r *http.Request) {

	var err error
	hg.logger.Infof("Handling inbox POST: %s", r.URL.Path)
	locationId := mux.Vars(r)["location"]

	if locationId == "" {
		obs := hg.metrics.StartApubRequestIn("inbox")
		defer obs.Finish()
	} else {
		obs := hg.metrics.StartApubRequestIn("location/inbox")
		defer obs.Finish()
	}

	bodyBytes := readBody(hg.logger, w, r)
	if bodyBytes == nil {
		return
	}
	if len(bodyBytes) == 0 {
		hg.logger.Info("Empty request body")
		writeErrorResponse(w, "Request body must not be empty", http.StatusBadRequest)
		return
	}

	// First, parse a rudimentary version of the activity to check signature, find out activity type
	var act dto.ActivityInBase
	if err = json.Unmarshal(bodyBytes, &act); err != nil {
		hg.logger.Infof("Invalid JSON in request body: %v", err)
		writeErrorResponse(w, "Request body is not valid JSON", http.StatusBadRequest)
		return
	}

	// Verify signature
	var senderInfo *dto.UserInfo
	var sigProblem string
	senderInfo, sigProblem, err = hg.sigChecker.Check(act.Actor, r)

	if err != nil {
		hg.logger.Errorf("Unexpected error trying to verify signature: %v", err)
		writeErrorResponse(w, internalErrorStr, http.StatusInternalServerError)
		return
	}

	if sigProblem != "" {
		if act.Type == "Delete" {
			// The deleted actor's key is typically gone along with the actor,
			// so the signature cannot be verified anymore. Acknowledge and drop.
			hg.logger.Infof("Ignoring Delete request with unverified actor signature")
			writeJsonResponse(hg.logger, w, "OK")
			return
		}
		if hg.cfg.SignaturePolicy == shared.SigPolicyStrict {
			hg.logger.Warnf("Incorrectly signed inbox POST request: %s", sigProblem)
			msg := fmt.Sprintf("Invalid HTTP signature: %s", sigProblem)
			writeErrorResponse(w, msg, http.StatusUnauthorized)
			return
		}
		// Lenient policy: process anyway, but we still need the sender's
		// actor document
		hg.logger.Warnf("Processing inbox POST despite signature problem: %s", sigProblem)
		if senderInfo, err = hg.retriever.Retrieve(act.Actor); err != nil {
			hg.logger.Infof("Cannot retrieve actor document for %s: %v", act.Actor, err)
			writeErrorResponse(w, "Cannot retrieve actor", http.StatusUnauthorized)
			return
		}
	}

	// Does signer match actor?
	if senderInfo.Id != act.Actor {
		hg.logger.Warnf("Activity signed by %s, but actor is %s", senderInfo.Id, act.Actor)
		writeErrorResponse(w, "Signer does not match actor", http.StatusUnauthorized)
		return
	}

	reqProblem, err := hg.inbox.HandleActivity(locationId, senderInfo, act, bodyBytes)

	if reqProblem != "" {
		hg.logger.Infof("Invalid '%s' request: %s", act.Type, reqProblem)
		msg := fmt.Sprintf("Bad request: %s", reqProblem)
		writeErrorResponse(w, msg, http.StatusBadRequest)
		return
	}
	if err != nil {
		// Receipt is acknowledged regardless; see above
		hg.logger.Errorf("Error handling inbox activity: %v", err)
	}

	writeJsonResponse(hg.logger, w, "OK")
}
