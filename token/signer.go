package token

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"math/big"

	"github.com/golang-jwt/jwt/v5"
	apperrors "github.com/jrsteele09/go-feed-server/internal/errors"
)

// Signer signs access tokens and hands back the key that verifies them
type Signer interface {
	Sign(claims jwt.Claims) (string, error)
	GetVerificationKey(token *jwt.Token) (any, error)
	GetSigningMethod() jwt.SigningMethod
}

// HMACsigner signs with a shared secret, the way a GoTrue instance configured with
// GOTRUE_JWT_SECRET does.
type HMACsigner struct {
	secret []byte
}

func NewHMACSigner(secret string) *HMACsigner {
	return &HMACsigner{secret: []byte(secret)}
}

func (h *HMACsigner) Sign(claims jwt.Claims) (string, error) {
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(h.secret)
	if err != nil {
		return "", apperrors.Wrapf(err, "failed to sign token with HMAC")
	}
	return signed, nil
}

func (h *HMACsigner) GetVerificationKey(token *jwt.Token) (any, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, apperrors.Wrapf(jwt.ErrTokenSignatureInvalid, "unexpected signing method %v", token.Header["alg"])
	}
	return h.secret, nil
}

func (h *HMACsigner) GetSigningMethod() jwt.SigningMethod {
	return jwt.SigningMethodHS256
}

// KeyPair is an asymmetric signing key published through a JWKS.
type KeyPair struct {
	KeyID      string
	PrivateKey crypto.Signer
	Algorithm  string // RS256 or ES256
}

func GenerateRSAKeyPair(keyID string, bits int) (*KeyPair, error) {
	if bits < 2048 {
		bits = 2048
	}
	key, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, apperrors.Wrapf(err, "failed to generate RSA key")
	}
	return &KeyPair{KeyID: keyID, PrivateKey: key, Algorithm: "RS256"}, nil
}

func GenerateECDSAKeyPair(keyID string) (*KeyPair, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, apperrors.Wrapf(err, "failed to generate ECDSA key")
	}
	return &KeyPair{KeyID: keyID, PrivateKey: key, Algorithm: "ES256"}, nil
}

func (kp *KeyPair) GetSigningMethod() jwt.SigningMethod {
	if kp.Algorithm == "ES256" {
		return jwt.SigningMethodES256
	}
	return jwt.SigningMethodRS256
}

// JWKS is the JSON Web Key Set served to token verifiers
type JWKS struct {
	Keys []JWK `json:"keys"`
}

type JWK struct {
	Kty string `json:"kty"`
	Use string `json:"use,omitempty"`
	Kid string `json:"kid,omitempty"`
	Alg string `json:"alg,omitempty"`

	// RSA
	N string `json:"n,omitempty"`
	E string `json:"e,omitempty"`

	// EC
	Crv string `json:"crv,omitempty"`
	X   string `json:"x,omitempty"`
	Y   string `json:"y,omitempty"`
}

func (kp *KeyPair) ToJWK() (*JWK, error) {
	jwk := &JWK{Kid: kp.KeyID, Use: "sig", Alg: kp.Algorithm}

	switch pub := kp.PrivateKey.Public().(type) {
	case *rsa.PublicKey:
		jwk.Kty = "RSA"
		jwk.N = base64.RawURLEncoding.EncodeToString(pub.N.Bytes())
		jwk.E = base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes())
	case *ecdsa.PublicKey:
		jwk.Kty = "EC"
		jwk.Crv = "P-256"
		jwk.X = base64.RawURLEncoding.EncodeToString(pad32(pub.X.Bytes()))
		jwk.Y = base64.RawURLEncoding.EncodeToString(pad32(pub.Y.Bytes()))
	default:
		return nil, apperrors.New("unsupported public key type")
	}
	return jwk, nil
}

// pad32 left-pads a P-256 coordinate to its fixed 32 byte width.
func pad32(b []byte) []byte {
	if len(b) >= 32 {
		return b
	}
	out := make([]byte, 32)
	copy(out[32-len(b):], b)
	return out
}

// KeyPairSigner signs with an RSA or ECDSA key and publishes it as a JWKS
type KeyPairSigner struct {
	keyPair *KeyPair
}

func NewKeyPairSigner(keyPair *KeyPair) *KeyPairSigner {
	return &KeyPairSigner{keyPair: keyPair}
}

func (a *KeyPairSigner) Sign(claims jwt.Claims) (string, error) {
	t := jwt.NewWithClaims(a.keyPair.GetSigningMethod(), claims)
	t.Header["kid"] = a.keyPair.KeyID

	signed, err := t.SignedString(a.keyPair.PrivateKey)
	if err != nil {
		return "", apperrors.Wrapf(err, "failed to sign token with asymmetric key")
	}
	return signed, nil
}

func (a *KeyPairSigner) GetVerificationKey(token *jwt.Token) (any, error) {
	switch token.Method.(type) {
	case *jwt.SigningMethodRSA, *jwt.SigningMethodECDSA:
		return a.keyPair.PrivateKey.Public(), nil
	default:
		return nil, apperrors.Wrapf(jwt.ErrTokenSignatureInvalid, "unexpected signing method %v", token.Header["alg"])
	}
}

func (a *KeyPairSigner) GetSigningMethod() jwt.SigningMethod {
	return a.keyPair.GetSigningMethod()
}

func (a *KeyPairSigner) GetJWKS() (*JWKS, error) {
	jwk, err := a.keyPair.ToJWK()
	if err != nil {
		return nil, apperrors.Wrapf(err, "failed to convert key to JWK")
	}
	return &JWKS{Keys: []JWK{*jwk}}, nil
}
