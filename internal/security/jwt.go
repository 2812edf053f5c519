package security

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"candy.skin/yggdrasil/internal/version"
)

var now = time.Now
var nonceReader io.Reader = rand.Reader
var signingMethod = jwt.SigningMethodHS256

const issuer = "candyskin"

// SessionTokenLifetime limits how long an issued bearer token stays valid.
// There is no revocation, a token dies only by reaching this deadline
const SessionTokenLifetime = 24 * time.Hour

type Scope string

const (
	IdentitiesScope Scope = "identities"
)

var validScopes = []Scope{
	IdentitiesScope,
}

type apiClaims struct {
	jwt.RegisteredClaims
	Scopes []Scope `json:"scopes"`
}

// SessionClaims is the claim set of a bearer token issued on authenticate.
// Nonce makes every issuance unique, so two tokens for the same identity
// are always distinguishable even when issued within the same second
type SessionClaims struct {
	jwt.RegisteredClaims
	Username string `json:"name"`
	Nonce    string `json:"spr"`
}

func NewJwt(key []byte) *Jwt {
	return &Jwt{
		Key: key,
	}
}

type Jwt struct {
	Key []byte
}

// Keep those names generic in order to reuse them in future for alternative authentication methods
var MissingAuthenticationError = errors.New("authentication value not provided")
var InvalidTokenError = errors.New("passed authentication value is invalid")

func (t *Jwt) NewSessionToken(uuid string, username string) (string, error) {
	nonce := make([]byte, 16)
	_, err := io.ReadFull(nonceReader, nonce)
	if err != nil {
		return "", err
	}

	issuedAt := now()
	token := jwt.New(signingMethod)
	token.Claims = &SessionClaims{
		jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   uuid,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(SessionTokenLifetime)),
		},
		username,
		hex.EncodeToString(nonce),
	}

	return token.SignedString(t.Key)
}

func (t *Jwt) VerifySessionToken(tokenStr string) (*SessionClaims, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&SessionClaims{},
		t.hmacKeyFunc,
		jwt.WithTimeFunc(func() time.Time { return now() }),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, errors.Join(InvalidTokenError, err)
	}

	return token.Claims.(*SessionClaims), nil
}

func (t *Jwt) NewApiToken(scopes ...Scope) (string, error) {
	if len(scopes) == 0 {
		return "", errors.New("you must specify at least one scope")
	}

	for _, scope := range scopes {
		if !slices.Contains(validScopes, scope) {
			return "", fmt.Errorf("unknown scope %s", scope)
		}
	}

	token := jwt.New(signingMethod)
	token.Claims = &apiClaims{
		jwt.RegisteredClaims{
			Issuer:   issuer,
			IssuedAt: jwt.NewNumericDate(now()),
		},
		scopes,
	}
	token.Header["v"] = version.MajorVersion

	return token.SignedString(t.Key)
}

func (t *Jwt) Authenticate(req *http.Request, scope Scope) error {
	bearerToken := req.Header.Get("Authorization")
	if bearerToken == "" {
		return MissingAuthenticationError
	}

	if !strings.HasPrefix(strings.ToLower(bearerToken), "bearer ") {
		return InvalidTokenError
	}

	tokenStr := bearerToken[7:] // trim "bearer " part
	token, err := jwt.ParseWithClaims(tokenStr, &apiClaims{}, t.hmacKeyFunc)
	if err != nil {
		return errors.Join(InvalidTokenError, err)
	}

	if _, vHeaderExists := token.Header["v"]; !vHeaderExists {
		return errors.Join(InvalidTokenError, errors.New("missing v header"))
	}

	claims := token.Claims.(*apiClaims)
	if !slices.Contains(claims.Scopes, scope) {
		return errors.New("the token doesn't have the scope to perform the action")
	}

	return nil
}

func (t *Jwt) hmacKeyFunc(token *jwt.Token) (interface{}, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}

	return t.Key, nil
}
