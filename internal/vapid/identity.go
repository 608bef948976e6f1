// Package vapid owns the server's VAPID key pair and mints the signed tokens
// push services use to authenticate the application server (RFC 8292).
package vapid

import (
	"bytes"
	"crypto/ecdh"
	"crypto/ecdsa"
	"crypto/elliptic"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"math/big"
	"net/url"
	"strings"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/golang-jwt/jwt/v5"
)

// TokenLifetime is how long a signed token stays valid. Push services reject
// tokens that expire more than 24 hours in the future.
const TokenLifetime = 12 * time.Hour

var (
	// ErrMissingConfiguration means the subject or one of the keys is empty.
	ErrMissingConfiguration = errors.New("vapid: missing configuration")
	// ErrInvalidKey means a configured key could not be decoded or the pair does not match.
	ErrInvalidKey = errors.New("vapid: invalid key")
)

// KeyPair is a base64url encoded VAPID key pair.
type KeyPair struct {
	PublicKey  string
	PrivateKey string
}

// GenerateKeys creates a fresh P-256 key pair.
func GenerateKeys() (KeyPair, error) {
	privateKey, publicKey, err := webpush.GenerateVAPIDKeys()
	if err != nil {
		return KeyPair{}, fmt.Errorf("generate vapid keys: %w", err)
	}
	return KeyPair{PublicKey: publicKey, PrivateKey: privateKey}, nil
}

// CheckOrGenerate fails with ErrMissingConfiguration when any setting is empty.
// Before failing it logs a freshly generated pair the operator may paste into
// the configuration; the generated pair is never used by the process.
func CheckOrGenerate(subject, publicKey, privateKey string) error {
	if subject != "" && publicKey != "" && privateKey != "" {
		return nil
	}

	if keys, err := GenerateKeys(); err != nil {
		log.Printf("could not generate example VAPID keys: %v", err)
	} else {
		log.Printf("example VAPID keys (add to config or environment):\nVAPID_PUBLIC_KEY=%s\nVAPID_PRIVATE_KEY=%s", keys.PublicKey, keys.PrivateKey)
	}

	return fmt.Errorf("%w: set push.subject, push.vapid_public_key and push.vapid_private_key "+
		"(or VAPID_SUBJECT, VAPID_PUBLIC_KEY and VAPID_PRIVATE_KEY); a generated pair was written to the log", ErrMissingConfiguration)
}

// Identity is the immutable VAPID identity of this server.
type Identity struct {
	subject    string
	publicKey  string
	privateKey string
	rawPublic  []byte
	signingKey *ecdsa.PrivateKey

	now func() time.Time
}

// New validates the configured VAPID details and returns the identity built from them.
func New(subject, publicKey, privateKey string) (*Identity, error) {
	if err := CheckOrGenerate(subject, publicKey, privateKey); err != nil {
		return nil, err
	}

	rawPrivate, err := decodeKey(privateKey)
	if err != nil {
		return nil, fmt.Errorf("%w: private key: %v", ErrInvalidKey, err)
	}
	rawPublic, err := decodeKey(publicKey)
	if err != nil {
		return nil, fmt.Errorf("%w: public key: %v", ErrInvalidKey, err)
	}

	priv, err := ecdh.P256().NewPrivateKey(rawPrivate)
	if err != nil {
		return nil, fmt.Errorf("%w: private key: %v", ErrInvalidKey, err)
	}
	derived := priv.PublicKey().Bytes()
	if !bytes.Equal(derived, rawPublic) {
		return nil, fmt.Errorf("%w: public key does not belong to the private key", ErrInvalidKey)
	}

	return &Identity{
		subject:    normalizeSubject(subject),
		publicKey:  publicKey,
		privateKey: privateKey,
		rawPublic:  derived,
		signingKey: signingKey(rawPrivate, derived),
		now:        time.Now,
	}, nil
}

// PublicKey returns the configured application server key clients subscribe with.
func (i *Identity) PublicKey() string {
	return i.publicKey
}

// Subject returns the contact URI placed in every token.
func (i *Identity) Subject() string {
	return i.subject
}

// WebPushOptions returns opts with the identity's keys filled in, ready for
// the webpush encryption routine.
func (i *Identity) WebPushOptions(opts webpush.Options) *webpush.Options {
	opts.Subscriber = i.subject
	opts.VAPIDPublicKey = i.publicKey
	opts.VAPIDPrivateKey = i.privateKey
	return &opts
}

// AuthToken is a signed VAPID assertion for one push service origin.
type AuthToken struct {
	Token     string
	PublicKey string
	Audience  string
	ExpiresAt time.Time
}

// Header renders the token as an Authorization header value.
func (t AuthToken) Header() string {
	return "vapid t=" + t.Token + ", k=" + t.PublicKey
}

// SignFor mints an ES256 token whose audience is the origin of endpoint.
func (i *Identity) SignFor(endpoint string) (AuthToken, error) {
	aud, err := Origin(endpoint)
	if err != nil {
		return AuthToken{}, err
	}

	exp := i.now().Add(TokenLifetime)
	token := jwt.NewWithClaims(jwt.SigningMethodES256, jwt.MapClaims{
		"aud": aud,
		"exp": exp.Unix(),
		"sub": i.subject,
	})
	signed, err := token.SignedString(i.signingKey)
	if err != nil {
		return AuthToken{}, fmt.Errorf("sign vapid token for %s: %w", aud, err)
	}

	return AuthToken{
		Token:     signed,
		PublicKey: base64.RawURLEncoding.EncodeToString(i.rawPublic),
		Audience:  aud,
		ExpiresAt: exp,
	}, nil
}

// Origin returns scheme://host of a push endpoint.
func Origin(endpoint string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("parse endpoint %q: %w", endpoint, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("endpoint %q is not an absolute URL", endpoint)
	}
	return u.Scheme + "://" + u.Host, nil
}

func signingKey(rawPrivate, rawPublic []byte) *ecdsa.PrivateKey {
	// rawPublic is 0x04 || X || Y
	return &ecdsa.PrivateKey{
		PublicKey: ecdsa.PublicKey{
			Curve: elliptic.P256(),
			X:     new(big.Int).SetBytes(rawPublic[1:33]),
			Y:     new(big.Int).SetBytes(rawPublic[33:65]),
		},
		D: new(big.Int).SetBytes(rawPrivate),
	}
}

// normalizeSubject prefixes bare e-mail addresses with mailto:.
func normalizeSubject(subject string) string {
	if strings.HasPrefix(subject, "https:") || strings.HasPrefix(subject, "mailto:") {
		return subject
	}
	return "mailto:" + subject
}

// decodeKey accepts padded and unpadded base64url, the forms key generators emit.
func decodeKey(key string) ([]byte, error) {
	key = strings.TrimRight(strings.TrimSpace(key), "=")
	return base64.RawURLEncoding.DecodeString(key)
}
