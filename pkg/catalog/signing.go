package catalog

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/agentwire/a2a-runtime/pkg/a2a"
)

/*
Signer produces JWS compact serializations of agent cards so clients can
verify a discovery document out of band.  The payload is the card JSON; the
protected header carries the algorithm and optional key id.
*/
type Signer struct {
	method jwt.SigningMethod
	key    any
	keyID  string
}

// NewHMACSigner signs with HS256, the default when signing is enabled.
func NewHMACSigner(secret []byte) *Signer {
	return &Signer{method: jwt.SigningMethodHS256, key: secret}
}

// NewSigner binds an arbitrary JWT signing method and key, e.g. RS256 with an
// *rsa.PrivateKey.
func NewSigner(method jwt.SigningMethod, key any) *Signer {
	return &Signer{method: method, key: key}
}

// WithKeyID sets the kid header on signatures produced by this signer.
func (signer *Signer) WithKeyID(keyID string) *Signer {
	signer.keyID = keyID
	return signer
}

// Algorithm returns the JWS alg value.
func (signer *Signer) Algorithm() string {
	return signer.method.Alg()
}

// Sign returns the full header.payload.signature compact form.
func (signer *Signer) Sign(card a2a.AgentCard) (string, error) {
	signingString, err := signer.signingString(card)

	if err != nil {
		return "", err
	}

	signature, err := signer.method.Sign(signingString, signer.key)

	if err != nil {
		return "", fmt.Errorf("failed to sign agent card: %w", err)
	}

	return signingString + "." + base64.RawURLEncoding.EncodeToString(signature), nil
}

// DetachedSignature returns the protected header and signature without the
// payload, the form embedded on the JSON card itself.
func (signer *Signer) DetachedSignature(card a2a.AgentCard) (a2a.AgentCardSignature, error) {
	compact, err := signer.Sign(card)

	if err != nil {
		return a2a.AgentCardSignature{}, err
	}

	parts := strings.Split(compact, ".")

	return a2a.AgentCardSignature{
		Protected: parts[0],
		Signature: parts[2],
	}, nil
}

// Verify checks a compact serialization against the signer's key.
func (signer *Signer) Verify(compact string) error {
	parts := strings.Split(compact, ".")

	if len(parts) != 3 {
		return fmt.Errorf("malformed JWS: expected 3 segments, got %d", len(parts))
	}

	signature, err := base64.RawURLEncoding.DecodeString(parts[2])

	if err != nil {
		return fmt.Errorf("malformed JWS signature: %w", err)
	}

	return signer.method.Verify(parts[0]+"."+parts[1], signature, signer.key)
}

// signingString builds the header.payload prefix.  Signatures over a card
// must exclude any embedded signatures, otherwise signing would be circular.
func (signer *Signer) signingString(card a2a.AgentCard) (string, error) {
	header := map[string]string{
		"alg": signer.method.Alg(),
		"typ": "JOSE",
	}

	if signer.keyID != "" {
		header["kid"] = signer.keyID
	}

	headerJSON, err := json.Marshal(header)

	if err != nil {
		return "", err
	}

	card.Signatures = nil
	payload, err := json.Marshal(card)

	if err != nil {
		return "", err
	}

	return base64.RawURLEncoding.EncodeToString(headerJSON) + "." +
		base64.RawURLEncoding.EncodeToString(payload), nil
}
