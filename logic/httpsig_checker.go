package logic

import (
	"crypto"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"wx_herald/dto"
	"wx_herald/shared"
)

//go:generate mockgen --build_flags=--mod=mod -destination mocks/mock_httpsig_checker.go -package mocks wx_herald/logic IHttpSigChecker

// IHttpSigChecker validates the HTTP signature of an inbound inbox POST
// against the claimed actor's published key.
type IHttpSigChecker interface {
	Check(actor string, r *http.Request) (senderInfo *dto.UserInfo, sigProblem string, err error)
}

type httpSigChecker struct {
	logger        shared.ILogger
	userRetriever IUserRetriever
	signer        ISigner
	reKeyId       *regexp.Regexp
}

func NewHttpSigChecker(logger shared.ILogger, userRetriever IUserRetriever, signer ISigner) IHttpSigChecker {
	reKeyId := regexp.MustCompile("keyId=['\"]([^'\"]+)['\"]")
	return &httpSigChecker{logger, userRetriever, signer, reKeyId}
}

// Check returns the sender's actor document on success. A non-empty
// sigProblem means the request failed verification; err is reserved for
// our own internal failures.
func (chk *httpSigChecker) Check(actor string, r *http.Request) (*dto.UserInfo, string, error) {

	var sigHeader = r.Header.Get("Signature")
	groups := chk.reKeyId.FindStringSubmatch(sigHeader)
	if groups == nil {
		return nil, "Missing or invalid 'Signature' header", nil
	}
	keyId := groups[1]

	// The key must belong to the actor the activity claims to be from
	if !strings.HasPrefix(keyId, actor) {
		return nil, fmt.Sprintf("Actor is not prefix of keyId; actor: %s, keyId: %s", actor, keyId), nil
	}

	userInfo, err := chk.userRetriever.Retrieve(actor)
	if err != nil {
		return nil, fmt.Sprintf("Failed to retrieve actor document for %s: %v", actor, err), nil
	}

	ok := chk.signer.Verify(r, func(resolvedKeyId string) (crypto.PublicKey, error) {
		if resolvedKeyId != keyId {
			return nil, fmt.Errorf("keyId changed between parse and verify")
		}
		return ParsePubKeyPem(userInfo.PublicKey.PublicKeyPem)
	})
	if !ok {
		return nil, "Incorrect signature", nil
	}

	return userInfo, "", nil
}
