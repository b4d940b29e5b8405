package logic

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"sync"

	"wx_herald/dal"
	"wx_herald/shared"
)

const rsaKeyBits = 2048

//go:generate mockgen --build_flags=--mod=mod -destination mocks/mock_key_store.go -package mocks wx_herald/logic IKeyStore

// IKeyStore owns the RSA key pairs of the location actors. Keys are
// generated once, persisted as PEM, and cached in memory after first use.
type IKeyStore interface {
	// EnsureKeyPair generates and stores a key pair for the actor if none
	// exists yet. Concurrent calls for a brand-new actor can both generate;
	// the last write wins and the actor simply ends up with that pair.
	EnsureKeyPair(actorId string) error
	GetPrivKey(actorId string) (*rsa.PrivateKey, error)
	GetPubKeyPem(actorId string) (string, error)
}

type keyStore struct {
	logger   shared.ILogger
	repo     dal.IRepo
	mu       sync.RWMutex
	privKeys map[string]*rsa.PrivateKey
	pubPems  map[string]string
}

func NewKeyStore(logger shared.ILogger, repo dal.IRepo) IKeyStore {
	return &keyStore{
		logger:   logger,
		repo:     repo,
		privKeys: make(map[string]*rsa.PrivateKey),
		pubPems:  make(map[string]string),
	}
}

func (ks *keyStore) EnsureKeyPair(actorId string) error {

	pubPem, err := ks.repo.GetPubKeyPem(actorId)
	if err != nil {
		return err
	}
	if pubPem != "" {
		return nil
	}

	ks.logger.Infof("Generating key pair for actor %s", actorId)
	privKey, err := rsa.GenerateKey(rand.Reader, rsaKeyBits)
	if err != nil {
		return fmt.Errorf("failed to generate RSA key for %s: %w", actorId, err)
	}
	privPem, pubPem, err := encodeKeyPair(privKey)
	if err != nil {
		return err
	}
	if err = ks.repo.PutKeyPair(actorId, privPem, pubPem); err != nil {
		// Store is down: keep the pair in memory so the current process can
		// still sign, and make noise. The pair is lost on restart.
		ks.logger.Errorf("Failed to persist key pair for %s, keeping it in memory only: %v", actorId, err)
	}

	ks.mu.Lock()
	ks.privKeys[actorId] = privKey
	ks.pubPems[actorId] = pubPem
	ks.mu.Unlock()
	return nil
}

func (ks *keyStore) GetPrivKey(actorId string) (*rsa.PrivateKey, error) {

	ks.mu.RLock()
	cached, ok := ks.privKeys[actorId]
	ks.mu.RUnlock()
	if ok {
		return cached, nil
	}

	privPem, err := ks.repo.GetPrivKeyPem(actorId)
	if err != nil {
		return nil, err
	}
	if privPem == "" {
		return nil, fmt.Errorf("no private key stored for actor %s", actorId)
	}
	privKey, err := parsePrivKeyPem(privPem)
	if err != nil {
		return nil, fmt.Errorf("stored private key of %s is invalid: %w", actorId, err)
	}

	ks.mu.Lock()
	ks.privKeys[actorId] = privKey
	ks.mu.Unlock()
	return privKey, nil
}

func (ks *keyStore) GetPubKeyPem(actorId string) (string, error) {

	ks.mu.RLock()
	cached, ok := ks.pubPems[actorId]
	ks.mu.RUnlock()
	if ok {
		return cached, nil
	}

	pubPem, err := ks.repo.GetPubKeyPem(actorId)
	if err != nil {
		return "", err
	}
	if pubPem == "" {
		return "", fmt.Errorf("no public key stored for actor %s", actorId)
	}

	ks.mu.Lock()
	ks.pubPems[actorId] = pubPem
	ks.mu.Unlock()
	return pubPem, nil
}

// encodeKeyPair renders the pair as unencrypted PKCS#8 private and PKIX
// public PEM, the formats remote servers expect in publicKeyPem.
func encodeKeyPair(privKey *rsa.PrivateKey) (privPem, pubPem string, err error) {

	privBytes, err := x509.MarshalPKCS8PrivateKey(privKey)
	if err != nil {
		return "", "", err
	}
	privPem = string(pem.EncodeToMemory(&pem.Block{
		Type:  "PRIVATE KEY",
		Bytes: privBytes,
	}))

	pubBytes, err := x509.MarshalPKIXPublicKey(&privKey.PublicKey)
	if err != nil {
		return "", "", err
	}
	pubPem = string(pem.EncodeToMemory(&pem.Block{
		Type:  "PUBLIC KEY",
		Bytes: pubBytes,
	}))

	return privPem, pubPem, nil
}

func parsePrivKeyPem(privPem string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(privPem))
	if block == nil {
		return nil, fmt.Errorf("not a PEM block")
	}
	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("not an RSA private key")
	}
	return rsaKey, nil
}

// ParsePubKeyPem parses a PKIX "PUBLIC KEY" PEM into an RSA public key.
// Used when verifying signatures of remote actors.
func ParsePubKeyPem(pubPem string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(pubPem))
	if block == nil {
		return nil, fmt.Errorf("not a PEM block")
	}
	key, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	rsaKey, ok := key.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("not an RSA public key")
	}
	return rsaKey, nil
}
