package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/iotest"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	"candy.skin/yggdrasil/internal/db"
	"candy.skin/yggdrasil/internal/identities"
	"candy.skin/yggdrasil/internal/mojang"
	"candy.skin/yggdrasil/internal/security"
	"candy.skin/yggdrasil/internal/session"
)

type IdentitiesProviderMock struct {
	mock.Mock
}

func (m *IdentitiesProviderMock) FindIdentityByUuid(ctx context.Context, uuid string) (*db.Identity, error) {
	args := m.Called(ctx, uuid)
	var result *db.Identity
	if casted, ok := args.Get(0).(*db.Identity); ok {
		result = casted
	}

	return result, args.Error(1)
}

func (m *IdentitiesProviderMock) VerifyCredentials(ctx context.Context, username string, password string) (*db.Identity, error) {
	args := m.Called(ctx, username, password)
	var result *db.Identity
	if casted, ok := args.Get(0).(*db.Identity); ok {
		result = casted
	}

	return result, args.Error(1)
}

type SessionsManagerMock struct {
	mock.Mock
}

func (m *SessionsManagerMock) RecordJoin(ctx context.Context, accessToken string, serverId string) error {
	return m.Called(ctx, accessToken, serverId).Error(0)
}

func (m *SessionsManagerMock) FindJoinedIdentity(ctx context.Context, username string, serverId string) (*db.Identity, error) {
	args := m.Called(ctx, username, serverId)
	var result *db.Identity
	if casted, ok := args.Get(0).(*db.Identity); ok {
		result = casted
	}

	return result, args.Error(1)
}

type TokensServiceMock struct {
	mock.Mock
}

func (m *TokensServiceMock) NewSessionToken(uuid string, username string) (string, error) {
	args := m.Called(uuid, username)
	return args.String(0), args.Error(1)
}

func (m *TokensServiceMock) VerifySessionToken(token string) (*security.SessionClaims, error) {
	args := m.Called(token)
	var result *security.SessionClaims
	if casted, ok := args.Get(0).(*security.SessionClaims); ok {
		result = casted
	}

	return result, args.Error(1)
}

type SignerServiceMock struct {
	mock.Mock
}

func (m *SignerServiceMock) SignTextures(ctx context.Context, textures string) (string, error) {
	args := m.Called(ctx, textures)
	return args.String(0), args.Error(1)
}

func (m *SignerServiceMock) GetPublicKey(ctx context.Context, format string) (string, error) {
	args := m.Called(ctx, format)
	return args.String(0), args.Error(1)
}

type YggdrasilTestSuite struct {
	suite.Suite

	App *Yggdrasil

	IdentitiesProvider *IdentitiesProviderMock
	SessionsManager    *SessionsManagerMock
	TokensService      *TokensServiceMock
	SignerService      *SignerServiceMock
}

/********************
 * Setup test suite *
 ********************/

func (t *YggdrasilTestSuite) SetupSubTest() {
	timeNow = func() time.Time {
		CET, _ := time.LoadLocation("CET")
		return time.Date(2024, 01, 17, 23, 12, 05, 987654321, CET)
	}
	clientTokenReader = bytes.NewReader(make([]byte, 16))

	t.IdentitiesProvider = &IdentitiesProviderMock{}
	t.SessionsManager = &SessionsManagerMock{}
	t.TokensService = &TokensServiceMock{}
	t.SignerService = &SignerServiceMock{}

	var err error
	t.App, err = NewYggdrasil(
		t.IdentitiesProvider,
		t.SessionsManager,
		t.TokensService,
		t.SignerService,
		"Candy Skin Server",
		"http://skins.example.com",
		[]string{"skins.example.com"},
	)
	t.Require().NoError(err)
}

func (t *YggdrasilTestSuite) TearDownSubTest() {
	t.IdentitiesProvider.AssertExpectations(t.T())
	t.SessionsManager.AssertExpectations(t.T())
	t.TokensService.AssertExpectations(t.T())
	t.SignerService.AssertExpectations(t.T())
}

/*************
 * Run tests *
 *************/

func TestYggdrasil(t *testing.T) {
	suite.Run(t, new(YggdrasilTestSuite))
}

func (t *YggdrasilTestSuite) TestIndex() {
	t.Run("renders server metadata", func() {
		req := httptest.NewRequest("GET", "http://candyskin/", nil)
		w := httptest.NewRecorder()

		t.SignerService.On("GetPublicKey", mock.Anything, "pem").Once().Return("mock public key", nil)

		t.App.Handler().ServeHTTP(w, req)

		result := w.Result()
		t.Equal(http.StatusOK, result.StatusCode)
		t.Equal("application/json", result.Header.Get("Content-Type"))
		body, _ := io.ReadAll(result.Body)
		t.JSONEq(`{
			"meta": {
				"serverName": "Candy Skin Server",
				"implementationName": "candyskin",
				"implementationVersion": "unversioned"
			},
			"skinDomains": ["skins.example.com"],
			"signaturePublickey": "mock public key"
		}`, string(body))
	})
}

func (t *YggdrasilTestSuite) TestSignatureVerificationKey() {
	t.Run("pem", func() {
		req := httptest.NewRequest("GET", "http://candyskin/signature-verification-key.pem", nil)
		w := httptest.NewRecorder()

		t.SignerService.On("GetPublicKey", mock.Anything, "pem").Once().Return("mock pem key", nil)

		t.App.Handler().ServeHTTP(w, req)

		result := w.Result()
		t.Equal(http.StatusOK, result.StatusCode)
		t.Equal("application/x-pem-file", result.Header.Get("Content-Type"))
		body, _ := io.ReadAll(result.Body)
		t.Equal("mock pem key", string(body))
	})

	t.Run("der", func() {
		req := httptest.NewRequest("GET", "http://candyskin/signature-verification-key.der", nil)
		w := httptest.NewRecorder()

		t.SignerService.On("GetPublicKey", mock.Anything, "der").Once().Return("mock der key", nil)

		t.App.Handler().ServeHTTP(w, req)

		result := w.Result()
		t.Equal(http.StatusOK, result.StatusCode)
		t.Equal("application/octet-stream", result.Header.Get("Content-Type"))
		body, _ := io.ReadAll(result.Body)
		t.Equal("mock der key", string(body))
	})

	t.Run("unknown format", func() {
		req := httptest.NewRequest("GET", "http://candyskin/signature-verification-key.key", nil)
		w := httptest.NewRecorder()

		t.App.Handler().ServeHTTP(w, req)

		result := w.Result()
		t.Equal(http.StatusNotFound, result.StatusCode)
	})
}

func (t *YggdrasilTestSuite) TestAuthenticate() {
	t.Run("valid credentials with the provided clientToken", func() {
		req := httptest.NewRequest("POST", "http://candyskin/authserver/authenticate", strings.NewReader(`{
			"username": "Mock",
			"password": "mock-password",
			"clientToken": "mock-client-token"
		}`))
		w := httptest.NewRecorder()

		t.IdentitiesProvider.On("VerifyCredentials", mock.Anything, "Mock", "mock-password").Once().Return(&db.Identity{
			Uuid:     "mock-uuid",
			Username: "Mock",
		}, nil)
		t.TokensService.On("NewSessionToken", "mock-uuid", "Mock").Once().Return("mock-access-token", nil)

		t.App.Handler().ServeHTTP(w, req)

		result := w.Result()
		t.Equal(http.StatusOK, result.StatusCode)
		body, _ := io.ReadAll(result.Body)
		t.JSONEq(`{
			"accessToken": "mock-access-token",
			"clientToken": "mock-client-token",
			"availableProfiles": [
				{"id": "mock-uuid", "name": "Mock", "legacy": false}
			],
			"selectedProfile": {"id": "mock-uuid", "name": "Mock", "legacy": false},
			"user": {"id": "mock-uuid", "properties": []}
		}`, string(body))
	})

	t.Run("generates a clientToken when the client didn't send one", func() {
		req := httptest.NewRequest("POST", "http://candyskin/authserver/authenticate", strings.NewReader(`{
			"username": "Mock",
			"password": "mock-password"
		}`))
		w := httptest.NewRecorder()

		t.IdentitiesProvider.On("VerifyCredentials", mock.Anything, "Mock", "mock-password").Once().Return(&db.Identity{
			Uuid:     "mock-uuid",
			Username: "Mock",
		}, nil)
		t.TokensService.On("NewSessionToken", "mock-uuid", "Mock").Once().Return("mock-access-token", nil)

		t.App.Handler().ServeHTTP(w, req)

		var response struct {
			ClientToken string `json:"clientToken"`
		}
		t.Require().NoError(json.NewDecoder(w.Result().Body).Decode(&response))
		t.Equal("00000000000000000000000000000000", response.ClientToken)
	})

	t.Run("clientToken generation failure", func() {
		clientTokenReader = iotest.ErrReader(errors.New("mock error"))

		req := httptest.NewRequest("POST", "http://candyskin/authserver/authenticate", strings.NewReader(`{
			"username": "Mock",
			"password": "mock-password"
		}`))
		w := httptest.NewRecorder()

		t.IdentitiesProvider.On("VerifyCredentials", mock.Anything, "Mock", "mock-password").Once().Return(&db.Identity{
			Uuid:     "mock-uuid",
			Username: "Mock",
		}, nil)
		t.TokensService.On("NewSessionToken", "mock-uuid", "Mock").Once().Return("mock-access-token", nil)

		t.App.Handler().ServeHTTP(w, req)

		result := w.Result()
		t.Equal(http.StatusInternalServerError, result.StatusCode)
		body, _ := io.ReadAll(result.Body)
		t.JSONEq(`{
			"error": "InternalErrorException",
			"errorMessage": "Internal server error"
		}`, string(body))
	})

	t.Run("invalid credentials", func() {
		req := httptest.NewRequest("POST", "http://candyskin/authserver/authenticate", strings.NewReader(`{
			"username": "Mock",
			"password": "wrong-password"
		}`))
		w := httptest.NewRecorder()

		t.IdentitiesProvider.On("VerifyCredentials", mock.Anything, "Mock", "wrong-password").Once().Return(nil, identities.InvalidCredentialsError)

		t.App.Handler().ServeHTTP(w, req)

		result := w.Result()
		t.Equal(http.StatusForbidden, result.StatusCode)
		body, _ := io.ReadAll(result.Body)
		t.JSONEq(`{
			"error": "ForbiddenOperationException",
			"errorMessage": "Invalid credentials"
		}`, string(body))
	})

	t.Run("err from the storage", func() {
		req := httptest.NewRequest("POST", "http://candyskin/authserver/authenticate", strings.NewReader(`{
			"username": "Mock",
			"password": "mock-password"
		}`))
		w := httptest.NewRecorder()

		t.IdentitiesProvider.On("VerifyCredentials", mock.Anything, "Mock", "mock-password").Once().Return(nil, errors.New("mock error"))

		t.App.Handler().ServeHTTP(w, req)

		result := w.Result()
		t.Equal(http.StatusInternalServerError, result.StatusCode)
		body, _ := io.ReadAll(result.Body)
		t.JSONEq(`{
			"error": "InternalErrorException",
			"errorMessage": "Internal server error"
		}`, string(body))
	})
}

func (t *YggdrasilTestSuite) TestRefresh() {
	t.Run("valid token", func() {
		req := httptest.NewRequest("POST", "http://candyskin/authserver/refresh", strings.NewReader(`{
			"accessToken": "mock-access-token",
			"clientToken": "mock-client-token"
		}`))
		w := httptest.NewRecorder()

		t.TokensService.On("VerifySessionToken", "mock-access-token").Once().Return(&security.SessionClaims{
			RegisteredClaims: jwt.RegisteredClaims{Subject: "mock-uuid"},
			Username:         "Mock",
		}, nil)
		t.IdentitiesProvider.On("FindIdentityByUuid", mock.Anything, "mock-uuid").Once().Return(&db.Identity{
			Uuid:     "mock-uuid",
			Username: "Mock",
		}, nil)
		t.TokensService.On("NewSessionToken", "mock-uuid", "Mock").Once().Return("new-mock-access-token", nil)

		t.App.Handler().ServeHTTP(w, req)

		result := w.Result()
		t.Equal(http.StatusOK, result.StatusCode)
		body, _ := io.ReadAll(result.Body)
		t.JSONEq(`{
			"accessToken": "new-mock-access-token",
			"clientToken": "mock-client-token",
			"selectedProfile": {"id": "mock-uuid", "name": "Mock"}
		}`, string(body))
	})

	t.Run("invalid token", func() {
		req := httptest.NewRequest("POST", "http://candyskin/authserver/refresh", strings.NewReader(`{
			"accessToken": "mock-access-token"
		}`))
		w := httptest.NewRecorder()

		t.TokensService.On("VerifySessionToken", "mock-access-token").Once().Return(nil, security.InvalidTokenError)

		t.App.Handler().ServeHTTP(w, req)

		result := w.Result()
		t.Equal(http.StatusForbidden, result.StatusCode)
		body, _ := io.ReadAll(result.Body)
		t.JSONEq(`{
			"error": "ForbiddenOperationException",
			"errorMessage": "Invalid token"
		}`, string(body))
	})

	t.Run("token of a removed identity", func() {
		req := httptest.NewRequest("POST", "http://candyskin/authserver/refresh", strings.NewReader(`{
			"accessToken": "mock-access-token"
		}`))
		w := httptest.NewRecorder()

		t.TokensService.On("VerifySessionToken", "mock-access-token").Once().Return(&security.SessionClaims{
			RegisteredClaims: jwt.RegisteredClaims{Subject: "mock-uuid"},
			Username:         "Mock",
		}, nil)
		t.IdentitiesProvider.On("FindIdentityByUuid", mock.Anything, "mock-uuid").Once().Return(nil, nil)

		t.App.Handler().ServeHTTP(w, req)

		result := w.Result()
		t.Equal(http.StatusForbidden, result.StatusCode)
		body, _ := io.ReadAll(result.Body)
		t.JSONEq(`{
			"error": "ForbiddenOperationException",
			"errorMessage": "Invalid token"
		}`, string(body))
	})
}

func (t *YggdrasilTestSuite) TestValidate() {
	t.Run("valid token", func() {
		req := httptest.NewRequest("POST", "http://candyskin/authserver/validate", strings.NewReader(`{
			"accessToken": "mock-access-token"
		}`))
		w := httptest.NewRecorder()

		t.TokensService.On("VerifySessionToken", "mock-access-token").Once().Return(&security.SessionClaims{}, nil)

		t.App.Handler().ServeHTTP(w, req)

		t.Equal(http.StatusNoContent, w.Result().StatusCode)
	})

	t.Run("invalid token", func() {
		req := httptest.NewRequest("POST", "http://candyskin/authserver/validate", strings.NewReader(`{
			"accessToken": "mock-access-token"
		}`))
		w := httptest.NewRecorder()

		t.TokensService.On("VerifySessionToken", "mock-access-token").Once().Return(nil, security.InvalidTokenError)

		t.App.Handler().ServeHTTP(w, req)

		result := w.Result()
		t.Equal(http.StatusForbidden, result.StatusCode)
		body, _ := io.ReadAll(result.Body)
		t.JSONEq(`{
			"error": "ForbiddenOperationException",
			"errorMessage": "Invalid token"
		}`, string(body))
	})
}

func (t *YggdrasilTestSuite) TestInvalidate() {
	t.Run("always succeeds", func() {
		req := httptest.NewRequest("POST", "http://candyskin/authserver/invalidate", strings.NewReader(`{
			"accessToken": "whatever"
		}`))
		w := httptest.NewRecorder()

		t.App.Handler().ServeHTTP(w, req)

		t.Equal(http.StatusNoContent, w.Result().StatusCode)
	})
}

func (t *YggdrasilTestSuite) TestSignout() {
	t.Run("valid credentials", func() {
		req := httptest.NewRequest("POST", "http://candyskin/authserver/signout", strings.NewReader(`{
			"username": "Mock",
			"password": "mock-password"
		}`))
		w := httptest.NewRecorder()

		t.IdentitiesProvider.On("VerifyCredentials", mock.Anything, "Mock", "mock-password").Once().Return(&db.Identity{}, nil)

		t.App.Handler().ServeHTTP(w, req)

		t.Equal(http.StatusNoContent, w.Result().StatusCode)
	})

	t.Run("invalid credentials", func() {
		req := httptest.NewRequest("POST", "http://candyskin/authserver/signout", strings.NewReader(`{
			"username": "Mock",
			"password": "wrong-password"
		}`))
		w := httptest.NewRecorder()

		t.IdentitiesProvider.On("VerifyCredentials", mock.Anything, "Mock", "wrong-password").Once().Return(nil, identities.InvalidCredentialsError)

		t.App.Handler().ServeHTTP(w, req)

		result := w.Result()
		t.Equal(http.StatusForbidden, result.StatusCode)
		body, _ := io.ReadAll(result.Body)
		t.JSONEq(`{
			"error": "ForbiddenOperationException",
			"errorMessage": "Invalid credentials"
		}`, string(body))
	})
}

func (t *YggdrasilTestSuite) TestProfile() {
	t.Run("identity with a slim skin and a cape", func() {
		req := httptest.NewRequest("GET", "http://candyskin/sessionserver/session/minecraft/profile/mock-uuid", nil)
		w := httptest.NewRecorder()

		t.IdentitiesProvider.On("FindIdentityByUuid", mock.Anything, "mock-uuid").Once().Return(&db.Identity{
			Uuid:      "mock-uuid",
			Username:  "Mock",
			Skin:      "mock-skin.png",
			SkinModel: "alex",
			Cape:      "mock-cape.png",
		}, nil)
		t.SignerService.On("SignTextures", mock.Anything, mock.AnythingOfType("string")).Once().Return("mock signature", nil)

		t.App.Handler().ServeHTTP(w, req)

		result := w.Result()
		t.Equal(http.StatusOK, result.StatusCode)
		t.Equal("application/json", result.Header.Get("Content-Type"))

		var response mojang.ProfileResponse
		t.Require().NoError(json.NewDecoder(result.Body).Decode(&response))
		t.Equal("mock-uuid", response.Id)
		t.Equal("Mock", response.Name)
		t.Require().Len(response.Props, 1)
		t.Equal("textures", response.Props[0].Name)
		t.Equal("mock signature", response.Props[0].Signature)

		textures, err := mojang.DecodeTextures(response.Props[0].Value)
		t.Require().NoError(err)
		t.Equal(int64(1705529525987), textures.Timestamp)
		t.Equal("mock-uuid", textures.ProfileID)
		t.Equal("Mock", textures.ProfileName)
		t.Require().NotNil(textures.Textures.Skin)
		t.Equal("http://skins.example.com/textures/mock-skin.png", textures.Textures.Skin.Url)
		t.Equal("slim", textures.Textures.Skin.Metadata.Model)
		t.Require().NotNil(textures.Textures.Cape)
		t.Equal("http://skins.example.com/textures/mock-cape.png", textures.Textures.Cape.Url)
	})

	t.Run("identity with a default skin model and no cape", func() {
		req := httptest.NewRequest("GET", "http://candyskin/sessionserver/session/minecraft/profile/mock-uuid", nil)
		w := httptest.NewRecorder()

		t.IdentitiesProvider.On("FindIdentityByUuid", mock.Anything, "mock-uuid").Once().Return(&db.Identity{
			Uuid:     "mock-uuid",
			Username: "Mock",
			Skin:     "mock-skin.png",
		}, nil)
		t.SignerService.On("SignTextures", mock.Anything, mock.AnythingOfType("string")).Once().Return("mock signature", nil)

		t.App.Handler().ServeHTTP(w, req)

		var response mojang.ProfileResponse
		t.Require().NoError(json.NewDecoder(w.Result().Body).Decode(&response))
		textures, err := mojang.DecodeTextures(response.Props[0].Value)
		t.Require().NoError(err)
		t.Equal("default", textures.Textures.Skin.Metadata.Model)
		t.Nil(textures.Textures.Cape)
	})

	t.Run("unknown identity", func() {
		req := httptest.NewRequest("GET", "http://candyskin/sessionserver/session/minecraft/profile/mock-uuid", nil)
		w := httptest.NewRecorder()

		t.IdentitiesProvider.On("FindIdentityByUuid", mock.Anything, "mock-uuid").Once().Return(nil, nil)

		t.App.Handler().ServeHTTP(w, req)

		t.Equal(http.StatusNoContent, w.Result().StatusCode)
	})

	t.Run("err from the signer", func() {
		req := httptest.NewRequest("GET", "http://candyskin/sessionserver/session/minecraft/profile/mock-uuid", nil)
		w := httptest.NewRecorder()

		t.IdentitiesProvider.On("FindIdentityByUuid", mock.Anything, "mock-uuid").Once().Return(&db.Identity{
			Uuid:     "mock-uuid",
			Username: "Mock",
		}, nil)
		t.SignerService.On("SignTextures", mock.Anything, mock.AnythingOfType("string")).Once().Return("", errors.New("mock error"))

		t.App.Handler().ServeHTTP(w, req)

		result := w.Result()
		t.Equal(http.StatusInternalServerError, result.StatusCode)
		body, _ := io.ReadAll(result.Body)
		t.JSONEq(`{
			"error": "InternalErrorException",
			"errorMessage": "Internal server error"
		}`, string(body))
	})
}

func (t *YggdrasilTestSuite) TestJoin() {
	t.Run("successful join", func() {
		req := httptest.NewRequest("POST", "http://candyskin/sessionserver/session/minecraft/join", strings.NewReader(`{
			"accessToken": "mock-access-token",
			"selectedProfile": "mock-uuid",
			"serverId": "mock-server-id"
		}`))
		w := httptest.NewRecorder()

		t.SessionsManager.On("RecordJoin", mock.Anything, "mock-access-token", "mock-server-id").Once().Return(nil)

		t.App.Handler().ServeHTTP(w, req)

		t.Equal(http.StatusNoContent, w.Result().StatusCode)
	})

	t.Run("invalid token", func() {
		req := httptest.NewRequest("POST", "http://candyskin/sessionserver/session/minecraft/join", strings.NewReader(`{
			"accessToken": "mock-access-token",
			"serverId": "mock-server-id"
		}`))
		w := httptest.NewRecorder()

		t.SessionsManager.On("RecordJoin", mock.Anything, "mock-access-token", "mock-server-id").Once().Return(security.InvalidTokenError)

		t.App.Handler().ServeHTTP(w, req)

		result := w.Result()
		t.Equal(http.StatusForbidden, result.StatusCode)
		body, _ := io.ReadAll(result.Body)
		t.JSONEq(`{
			"error": "ForbiddenOperationException",
			"errorMessage": "Invalid token"
		}`, string(body))
	})

	t.Run("unknown profile", func() {
		req := httptest.NewRequest("POST", "http://candyskin/sessionserver/session/minecraft/join", strings.NewReader(`{
			"accessToken": "mock-access-token",
			"serverId": "mock-server-id"
		}`))
		w := httptest.NewRecorder()

		t.SessionsManager.On("RecordJoin", mock.Anything, "mock-access-token", "mock-server-id").Once().Return(session.UnknownProfileError)

		t.App.Handler().ServeHTTP(w, req)

		result := w.Result()
		t.Equal(http.StatusForbidden, result.StatusCode)
		body, _ := io.ReadAll(result.Body)
		t.JSONEq(`{
			"error": "ForbiddenOperationException",
			"errorMessage": "Invalid profile"
		}`, string(body))
	})

	t.Run("err from the storage", func() {
		req := httptest.NewRequest("POST", "http://candyskin/sessionserver/session/minecraft/join", strings.NewReader(`{
			"accessToken": "mock-access-token",
			"serverId": "mock-server-id"
		}`))
		w := httptest.NewRecorder()

		t.SessionsManager.On("RecordJoin", mock.Anything, "mock-access-token", "mock-server-id").Once().Return(errors.New("mock error"))

		t.App.Handler().ServeHTTP(w, req)

		t.Equal(http.StatusInternalServerError, w.Result().StatusCode)
	})
}

func (t *YggdrasilTestSuite) TestHasJoined() {
	t.Run("recorded join", func() {
		req := httptest.NewRequest("GET", "http://candyskin/sessionserver/session/minecraft/hasJoined?username=Mock&serverId=mock-server-id", nil)
		w := httptest.NewRecorder()

		t.SessionsManager.On("FindJoinedIdentity", mock.Anything, "Mock", "mock-server-id").Once().Return(&db.Identity{
			Uuid:      "mock-uuid",
			Username:  "Mock",
			Skin:      "mock-skin.png",
			SkinModel: "alex",
		}, nil)
		t.SignerService.On("SignTextures", mock.Anything, mock.AnythingOfType("string")).Once().Return("mock signature", nil)

		t.App.Handler().ServeHTTP(w, req)

		result := w.Result()
		t.Equal(http.StatusOK, result.StatusCode)

		var response mojang.ProfileResponse
		t.Require().NoError(json.NewDecoder(result.Body).Decode(&response))
		t.Equal("mock-uuid", response.Id)
		t.Equal("Mock", response.Name)
		t.Require().Len(response.Props, 1)
		t.Equal("mock signature", response.Props[0].Signature)

		textures, err := mojang.DecodeTextures(response.Props[0].Value)
		t.Require().NoError(err)
		t.Equal("slim", textures.Textures.Skin.Metadata.Model)
	})

	t.Run("no recorded join", func() {
		req := httptest.NewRequest("GET", "http://candyskin/sessionserver/session/minecraft/hasJoined?username=Mock&serverId=mock-server-id", nil)
		w := httptest.NewRecorder()

		t.SessionsManager.On("FindJoinedIdentity", mock.Anything, "Mock", "mock-server-id").Once().Return(nil, nil)

		t.App.Handler().ServeHTTP(w, req)

		t.Equal(http.StatusNoContent, w.Result().StatusCode)
	})

	t.Run("err from the storage", func() {
		req := httptest.NewRequest("GET", "http://candyskin/sessionserver/session/minecraft/hasJoined?username=Mock&serverId=mock-server-id", nil)
		w := httptest.NewRecorder()

		t.SessionsManager.On("FindJoinedIdentity", mock.Anything, "Mock", "mock-server-id").Once().Return(nil, errors.New("mock error"))

		t.App.Handler().ServeHTTP(w, req)

		t.Equal(http.StatusInternalServerError, w.Result().StatusCode)
	})
}
