package logic

import (
	"crypto"
	"crypto/rsa"
	"net/http"
	"time"

	"github.com/go-fed/httpsig"
	"wx_herald/shared"
)

// PublicKeyResolver maps the keyId of a signature to the signer's public
// key, typically by dereferencing the remote actor document.
type PublicKeyResolver func(keyId string) (crypto.PublicKey, error)

//go:generate mockgen --build_flags=--mod=mod -destination mocks/mock_signer.go -package mocks wx_herald/logic ISigner

// ISigner signs outbound requests and verifies inbound ones per the
// Cavage HTTP-signatures draft as spoken by ActivityPub servers.
type ISigner interface {
	Sign(privKey *rsa.PrivateKey, keyId string, req *http.Request, body []byte) error
	Verify(req *http.Request, resolve PublicKeyResolver) bool
}

type signer struct {
	logger shared.ILogger
}

func NewSigner(logger shared.ILogger) ISigner {
	return &signer{logger}
}

// Sign adds Date, Digest (for non-empty bodies) and Signature headers.
// The signed-header set is ordered (request-target), host, date, digest;
// signer and verifier must agree on this order byte for byte.
func (s *signer) Sign(privKey *rsa.PrivateKey, keyId string, req *http.Request, body []byte) error {

	if req.Header.Get("Host") == "" {
		req.Header.Set("Host", req.URL.Host)
	}
	if req.Header.Get("Date") == "" {
		req.Header.Set("Date", time.Now().UTC().Format(http.TimeFormat))
	}

	headers := []string{httpsig.RequestTarget, "host", "date"}
	if len(body) > 0 {
		headers = append(headers, "digest")
	}

	sgn, _, err := httpsig.NewSigner(
		[]httpsig.Algorithm{httpsig.RSA_SHA256},
		httpsig.DigestSha256,
		headers,
		httpsig.Signature,
		0)
	if err != nil {
		return err
	}

	return sgn.SignRequest(privKey, keyId, req, body)
}

// Verify rebuilds the signing string from the received request and checks
// the RSA signature against the key named by keyId. Returns false, never
// panics or errors, on any malformed input or resolver failure.
func (s *signer) Verify(req *http.Request, resolve PublicKeyResolver) bool {

	verifier, err := httpsig.NewVerifier(req)
	if err != nil {
		s.logger.Debugf("Cannot parse Signature header: %v", err)
		return false
	}

	pubKey, err := resolve(verifier.KeyId())
	if err != nil {
		s.logger.Debugf("Cannot resolve public key %s: %v", verifier.KeyId(), err)
		return false
	}

	if err = verifier.Verify(pubKey, httpsig.RSA_SHA256); err != nil {
		s.logger.Debugf("Signature verification failed: %v", err)
		return false
	}
	return true
}
