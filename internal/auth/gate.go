package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"log"

	"github.com/golang-jwt/jwt"
	"golang.org/x/crypto/bcrypt"
)

// ErrUnauthorized is returned for any credential that does not match the
// relay's shared secret.
var ErrUnauthorized = errors.New("unauthorized")

const clientId = "relay-client"

type Identity struct {
	ClientId string
	Scopes   []string
}

// Gate verifies caller credentials against a single process-wide secret.
// Two modes: plaintext secret (constant-time compare, HS256 bearer tokens
// signed with the secret also accepted) or a bcrypt hash of the secret
// (plaintext never present in the environment, JWT acceptance disabled).
type Gate struct {
	token     []byte
	tokenHash []byte
	log       *log.Logger
}

func NewGate(token, tokenHash string, logger *log.Logger) (*Gate, error) {
	if (token == "") == (tokenHash == "") {
		return nil, fmt.Errorf("exactly one of token and token hash must be set")
	}

	return &Gate{
		token:     []byte(token),
		tokenHash: []byte(tokenHash),
		log:       logger,
	}, nil
}

func (g *Gate) Authorize(credential string) (Identity, error) {
	if credential != "" && (g.matchesSecret(credential) || g.verifyBearerJwt(credential)) {
		return Identity{
			ClientId: clientId,
			Scopes:   []string{"*"},
		}, nil
	}

	g.log.Printf("rejected credential %s", Redact(credential))
	return Identity{}, ErrUnauthorized
}

func (g *Gate) matchesSecret(credential string) bool {
	if len(g.tokenHash) > 0 {
		return bcrypt.CompareHashAndPassword(g.tokenHash, []byte(credential)) == nil
	}
	return subtle.ConstantTimeCompare(g.token, []byte(credential)) == 1
}

func (g *Gate) verifyBearerJwt(credential string) bool {
	if len(g.token) == 0 {
		return false
	}

	token, err := jwt.Parse(credential, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return g.token, nil
	})

	return err == nil && token.Valid
}

// HashToken produces a bcrypt hash suitable for AUTH_TOKEN_HASH.
func HashToken(token string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	return string(hash), err
}

// Redact shortens a credential for logging. The full value must never reach
// a log line.
func Redact(credential string) string {
	if len(credential) <= 4 {
		return "****"
	}
	return credential[:4] + "****"
}
