package logic_test

import (
	"bytes"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"fmt"
	"io"
	"net/http"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"wx_herald/logic"
)

func makeSignedRequest(t *testing.T, privKey *rsa.PrivateKey, body []byte) *http.Request {
	req, err := http.NewRequest("POST", "https://remote.example/inbox", bytes.NewReader(body))
	require.NoError(t, err)
	signer := logic.NewSigner(log.New(io.Discard))
	require.NoError(t, signer.Sign(privKey, "https://wx.example.dev/locations/innercity#main-key", req, body))
	return req
}

func Test_Signer_RoundTrip(t *testing.T) {

	privKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	body := []byte(`{"type":"Create"}`)
	req := makeSignedRequest(t, privKey, body)
	assert.NotEmpty(t, req.Header.Get("Signature"))
	assert.NotEmpty(t, req.Header.Get("Digest"))

	signer := logic.NewSigner(log.New(io.Discard))
	ok := signer.Verify(req, func(keyId string) (crypto.PublicKey, error) {
		assert.Equal(t, "https://wx.example.dev/locations/innercity#main-key", keyId)
		return &privKey.PublicKey, nil
	})
	assert.True(t, ok)
}

func Test_Signer_TamperedHeaderFailsVerification(t *testing.T) {

	privKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	body := []byte(`{"type":"Create"}`)
	req := makeSignedRequest(t, privKey, body)
	req.Header.Set("Date", "Thu, 01 Jan 1970 00:00:00 GMT")

	signer := logic.NewSigner(log.New(io.Discard))
	ok := signer.Verify(req, func(string) (crypto.PublicKey, error) {
		return &privKey.PublicKey, nil
	})
	assert.False(t, ok)
}

func Test_Signer_WrongKeyFailsVerification(t *testing.T) {

	privKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	otherKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	body := []byte(`{"type":"Create"}`)
	req := makeSignedRequest(t, privKey, body)

	signer := logic.NewSigner(log.New(io.Discard))
	ok := signer.Verify(req, func(string) (crypto.PublicKey, error) {
		return &otherKey.PublicKey, nil
	})
	assert.False(t, ok)
}

func Test_Signer_ResolverFailureFailsVerification(t *testing.T) {

	privKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	req := makeSignedRequest(t, privKey, []byte(`{}`))

	signer := logic.NewSigner(log.New(io.Discard))
	ok := signer.Verify(req, func(string) (crypto.PublicKey, error) {
		return nil, fmt.Errorf("actor is gone")
	})
	assert.False(t, ok)
}

func Test_Signer_MissingSignatureHeaderFailsVerification(t *testing.T) {

	privKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	req, err := http.NewRequest("POST", "https://remote.example/inbox", bytes.NewReader([]byte(`{}`)))
	require.NoError(t, err)

	signer := logic.NewSigner(log.New(io.Discard))
	ok := signer.Verify(req, func(string) (crypto.PublicKey, error) {
		return &privKey.PublicKey, nil
	})
	assert.False(t, ok)
}
