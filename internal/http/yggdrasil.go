package http

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/multierr"

	"candy.skin/yggdrasil/internal/db"
	"candy.skin/yggdrasil/internal/identities"
	"candy.skin/yggdrasil/internal/mojang"
	"candy.skin/yggdrasil/internal/otel"
	"candy.skin/yggdrasil/internal/security"
	"candy.skin/yggdrasil/internal/session"
	"candy.skin/yggdrasil/internal/utils"
	"candy.skin/yggdrasil/internal/version"
)

var timeNow = time.Now
var clientTokenReader io.Reader = rand.Reader

type IdentitiesProvider interface {
	FindIdentityByUuid(ctx context.Context, uuid string) (*db.Identity, error)
	VerifyCredentials(ctx context.Context, username string, password string) (*db.Identity, error)
}

type SessionsManager interface {
	RecordJoin(ctx context.Context, accessToken string, serverId string) error
	FindJoinedIdentity(ctx context.Context, username string, serverId string) (*db.Identity, error)
}

type TokensService interface {
	NewSessionToken(uuid string, username string) (string, error)
	VerifySessionToken(token string) (*security.SessionClaims, error)
}

// SignerService uses context because in the future we may separate this logic as an external microservice
type SignerService interface {
	SignTextures(ctx context.Context, textures string) (string, error)
	GetPublicKey(ctx context.Context, format string) (string, error)
}

func NewYggdrasil(
	identitiesProvider IdentitiesProvider,
	sessionsManager SessionsManager,
	tokens TokensService,
	signer SignerService,
	serverName string,
	texturesBaseUrl string,
	skinDomains []string,
) (*Yggdrasil, error) {
	metrics, err := newYggdrasilMetrics(otel.GetMeter())
	if err != nil {
		return nil, err
	}

	return &Yggdrasil{
		IdentitiesProvider: identitiesProvider,
		SessionsManager:    sessionsManager,
		TokensService:      tokens,
		SignerService:      signer,
		ServerName:         serverName,
		TexturesBaseUrl:    texturesBaseUrl,
		SkinDomains:        skinDomains,
		metrics:            metrics,
	}, nil
}

type Yggdrasil struct {
	IdentitiesProvider
	SessionsManager
	TokensService
	SignerService
	ServerName      string
	TexturesBaseUrl string
	SkinDomains     []string

	metrics *yggdrasilMetrics
}

func (y *Yggdrasil) Handler() *mux.Router {
	router := mux.NewRouter().StrictSlash(true)

	router.HandleFunc("/", y.indexHandler).Methods(http.MethodGet)
	router.HandleFunc("/signature-verification-key.{format:(?:pem|der)}", y.signatureVerificationKeyHandler).Methods(http.MethodGet)

	router.HandleFunc("/authserver/authenticate", y.authenticateHandler).Methods(http.MethodPost)
	router.HandleFunc("/authserver/refresh", y.refreshHandler).Methods(http.MethodPost)
	router.HandleFunc("/authserver/validate", y.validateHandler).Methods(http.MethodPost)
	router.HandleFunc("/authserver/invalidate", y.invalidateHandler).Methods(http.MethodPost)
	router.HandleFunc("/authserver/signout", y.signoutHandler).Methods(http.MethodPost)

	router.HandleFunc("/sessionserver/session/minecraft/profile/{uuid}", y.profileHandler).Methods(http.MethodGet)
	router.HandleFunc("/sessionserver/session/minecraft/join", y.joinHandler).Methods(http.MethodPost)
	router.HandleFunc("/sessionserver/session/minecraft/hasJoined", y.hasJoinedHandler).Methods(http.MethodGet)

	return router
}

func (y *Yggdrasil) indexHandler(resp http.ResponseWriter, req *http.Request) {
	publicKey, err := y.SignerService.GetPublicKey(req.Context(), "pem")
	if err != nil {
		yggdrasilServerError(resp, req, fmt.Errorf("unable to retrieve public key: %w", err))
		return
	}

	responseJson, _ := json.Marshal(map[string]any{
		"meta": map[string]string{
			"serverName":            y.ServerName,
			"implementationName":    "candyskin",
			"implementationVersion": version.Version(),
		},
		"skinDomains":        y.SkinDomains,
		"signaturePublickey": publicKey,
	})
	resp.Header().Set("Content-Type", "application/json")
	_, _ = resp.Write(responseJson)
}

func (y *Yggdrasil) signatureVerificationKeyHandler(resp http.ResponseWriter, req *http.Request) {
	format := mux.Vars(req)["format"]
	publicKey, err := y.SignerService.GetPublicKey(req.Context(), format)
	if err != nil {
		yggdrasilServerError(resp, req, fmt.Errorf("unable to retrieve public key: %w", err))
		return
	}

	if format == "pem" {
		resp.Header().Set("Content-Type", "application/x-pem-file")
		resp.Header().Set("Content-Disposition", `attachment; filename="yggdrasil_session_pubkey.pem"`)
	} else {
		resp.Header().Set("Content-Type", "application/octet-stream")
		resp.Header().Set("Content-Disposition", `attachment; filename="yggdrasil_session_pubkey.der"`)
	}

	_, _ = io.WriteString(resp, publicKey)
}

type profileSummary struct {
	Id     string `json:"id"`
	Name   string `json:"name"`
	Legacy bool   `json:"legacy"`
}

func (y *Yggdrasil) authenticateHandler(resp http.ResponseWriter, req *http.Request) {
	y.metrics.AuthenticateRequest.Add(req.Context(), 1)

	var body struct {
		Username    string `json:"username"`
		Password    string `json:"password"`
		ClientToken string `json:"clientToken"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		yggdrasilForbidden(resp, invalidCredentialsMessage)
		return
	}

	identity, err := y.IdentitiesProvider.VerifyCredentials(req.Context(), body.Username, body.Password)
	if err != nil {
		if errors.Is(err, identities.InvalidCredentialsError) {
			yggdrasilForbidden(resp, invalidCredentialsMessage)
			return
		}

		yggdrasilServerError(resp, req, fmt.Errorf("unable to verify credentials: %w", err))
		return
	}

	accessToken, err := y.TokensService.NewSessionToken(identity.Uuid, identity.Username)
	if err != nil {
		yggdrasilServerError(resp, req, fmt.Errorf("unable to issue an access token: %w", err))
		return
	}

	clientToken, err := clientTokenOrRandom(body.ClientToken)
	if err != nil {
		yggdrasilServerError(resp, req, err)
		return
	}

	profile := &profileSummary{
		Id:   identity.Uuid,
		Name: identity.Username,
	}
	responseJson, _ := json.Marshal(map[string]any{
		"accessToken":       accessToken,
		"clientToken":       clientToken,
		"availableProfiles": []*profileSummary{profile},
		"selectedProfile":   profile,
		"user": map[string]any{
			"id":         identity.Uuid,
			"properties": []any{},
		},
	})
	resp.Header().Set("Content-Type", "application/json")
	_, _ = resp.Write(responseJson)
}

func (y *Yggdrasil) refreshHandler(resp http.ResponseWriter, req *http.Request) {
	y.metrics.RefreshRequest.Add(req.Context(), 1)

	var body struct {
		AccessToken string `json:"accessToken"`
		ClientToken string `json:"clientToken"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		yggdrasilForbidden(resp, invalidTokenMessage)
		return
	}

	claims, err := y.TokensService.VerifySessionToken(body.AccessToken)
	if err != nil {
		yggdrasilForbidden(resp, invalidTokenMessage)
		return
	}

	identity, err := y.IdentitiesProvider.FindIdentityByUuid(req.Context(), claims.Subject)
	if err != nil {
		yggdrasilServerError(resp, req, fmt.Errorf("unable to find the token's identity: %w", err))
		return
	}

	// The token outlived its identity
	if identity == nil {
		yggdrasilForbidden(resp, invalidTokenMessage)
		return
	}

	accessToken, err := y.TokensService.NewSessionToken(identity.Uuid, identity.Username)
	if err != nil {
		yggdrasilServerError(resp, req, fmt.Errorf("unable to issue an access token: %w", err))
		return
	}

	clientToken, err := clientTokenOrRandom(body.ClientToken)
	if err != nil {
		yggdrasilServerError(resp, req, err)
		return
	}

	responseJson, _ := json.Marshal(map[string]any{
		"accessToken": accessToken,
		"clientToken": clientToken,
		"selectedProfile": map[string]string{
			"id":   identity.Uuid,
			"name": identity.Username,
		},
	})
	resp.Header().Set("Content-Type", "application/json")
	_, _ = resp.Write(responseJson)
}

func (y *Yggdrasil) validateHandler(resp http.ResponseWriter, req *http.Request) {
	y.metrics.ValidateRequest.Add(req.Context(), 1)

	var body struct {
		AccessToken string `json:"accessToken"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		yggdrasilForbidden(resp, invalidTokenMessage)
		return
	}

	_, err := y.TokensService.VerifySessionToken(body.AccessToken)
	if err != nil {
		yggdrasilForbidden(resp, invalidTokenMessage)
		return
	}

	resp.WriteHeader(http.StatusNoContent)
}

// There is no revocation state to clear, so invalidation is a protocol-level no-op
func (y *Yggdrasil) invalidateHandler(resp http.ResponseWriter, req *http.Request) {
	y.metrics.InvalidateRequest.Add(req.Context(), 1)

	resp.WriteHeader(http.StatusNoContent)
}

func (y *Yggdrasil) signoutHandler(resp http.ResponseWriter, req *http.Request) {
	y.metrics.SignoutRequest.Add(req.Context(), 1)

	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		yggdrasilForbidden(resp, invalidCredentialsMessage)
		return
	}

	_, err := y.IdentitiesProvider.VerifyCredentials(req.Context(), body.Username, body.Password)
	if err != nil {
		if errors.Is(err, identities.InvalidCredentialsError) {
			yggdrasilForbidden(resp, invalidCredentialsMessage)
			return
		}

		yggdrasilServerError(resp, req, fmt.Errorf("unable to verify credentials: %w", err))
		return
	}

	resp.WriteHeader(http.StatusNoContent)
}

func (y *Yggdrasil) profileHandler(resp http.ResponseWriter, req *http.Request) {
	y.metrics.ProfileRequest.Add(req.Context(), 1)

	identity, err := y.IdentitiesProvider.FindIdentityByUuid(req.Context(), mux.Vars(req)["uuid"])
	if err != nil {
		yggdrasilServerError(resp, req, fmt.Errorf("unable to retrieve an identity: %w", err))
		return
	}

	if identity == nil {
		resp.WriteHeader(http.StatusNoContent)
		return
	}

	y.writeSignedProfile(resp, req, identity)
}

func (y *Yggdrasil) joinHandler(resp http.ResponseWriter, req *http.Request) {
	y.metrics.JoinRequest.Add(req.Context(), 1)

	// selectedProfile is present in the request, but the identity is resolved
	// from the token's own claims, so a client cannot join on behalf of
	// another profile
	var body struct {
		AccessToken     string `json:"accessToken"`
		SelectedProfile string `json:"selectedProfile"`
		ServerId        string `json:"serverId"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		yggdrasilForbidden(resp, invalidTokenMessage)
		return
	}

	err := y.SessionsManager.RecordJoin(req.Context(), body.AccessToken, body.ServerId)
	if err != nil {
		if errors.Is(err, security.InvalidTokenError) {
			yggdrasilForbidden(resp, invalidTokenMessage)
			return
		}

		if errors.Is(err, session.UnknownProfileError) {
			yggdrasilForbidden(resp, invalidProfileMessage)
			return
		}

		yggdrasilServerError(resp, req, fmt.Errorf("unable to record the join: %w", err))
		return
	}

	resp.WriteHeader(http.StatusNoContent)
}

func (y *Yggdrasil) hasJoinedHandler(resp http.ResponseWriter, req *http.Request) {
	y.metrics.HasJoinedRequest.Add(req.Context(), 1)

	query := req.URL.Query()
	identity, err := y.SessionsManager.FindJoinedIdentity(req.Context(), query.Get("username"), query.Get("serverId"))
	if err != nil {
		yggdrasilServerError(resp, req, fmt.Errorf("unable to find the join: %w", err))
		return
	}

	// A miss is a normal outcome. The asking server cannot tell "never
	// joined" apart from "joined too long ago"
	if identity == nil {
		resp.WriteHeader(http.StatusNoContent)
		return
	}

	y.writeSignedProfile(resp, req, identity)
}

// writeSignedProfile is shared by the profile and hasJoined endpoints,
// which must produce byte-identical payload shapes for the same identity
func (y *Yggdrasil) writeSignedProfile(resp http.ResponseWriter, req *http.Request, identity *db.Identity) {
	texturesProp := &mojang.TexturesProp{
		Timestamp:   utils.UnixMillisecond(timeNow()),
		ProfileID:   identity.Uuid,
		ProfileName: identity.Username,
		Textures:    y.texturesFromIdentity(identity),
	}

	encodedTextures := mojang.EncodeTextures(texturesProp)
	signature, err := y.SignerService.SignTextures(req.Context(), encodedTextures)
	if err != nil {
		yggdrasilServerError(resp, req, fmt.Errorf("unable to sign textures: %w", err))
		return
	}

	profileResponse := &mojang.ProfileResponse{
		Id:   identity.Uuid,
		Name: identity.Username,
		Props: []*mojang.Property{
			{
				Name:      "textures",
				Value:     encodedTextures,
				Signature: signature,
			},
		},
	}

	responseJson, _ := json.Marshal(profileResponse)
	resp.Header().Set("Content-Type", "application/json")
	_, _ = resp.Write(responseJson)
}

func (y *Yggdrasil) texturesFromIdentity(identity *db.Identity) *mojang.TexturesResponse {
	var skin *mojang.SkinTexturesResponse
	if identity.Skin != "" {
		skin = &mojang.SkinTexturesResponse{
			Url: y.textureUrl(identity.Skin),
			Metadata: &mojang.SkinTexturesMetadata{
				Model: externalSkinModel(identity.SkinModel),
			},
		}
	}

	var cape *mojang.CapeTexturesResponse
	if identity.Cape != "" {
		cape = &mojang.CapeTexturesResponse{
			Url: y.textureUrl(identity.Cape),
		}
	}

	return &mojang.TexturesResponse{
		Skin: skin,
		Cape: cape,
	}
}

func (y *Yggdrasil) textureUrl(assetRef string) string {
	return y.TexturesBaseUrl + "/textures/" + assetRef
}

// Game clients know only two models, every stored value maps onto them
func externalSkinModel(model string) string {
	if model == "alex" || model == "slim" {
		return "slim"
	}

	return "default"
}

func clientTokenOrRandom(clientToken string) (string, error) {
	if clientToken != "" {
		return clientToken, nil
	}

	buf := make([]byte, 16)
	if _, err := io.ReadFull(clientTokenReader, buf); err != nil {
		return "", fmt.Errorf("unable to generate a client token: %w", err)
	}

	return hex.EncodeToString(buf), nil
}

func newYggdrasilMetrics(meter metric.Meter) (*yggdrasilMetrics, error) {
	m := &yggdrasilMetrics{}
	var errors, err error

	m.AuthenticateRequest, err = meter.Int64Counter("candyskin.app.authserver.authenticate.request", metric.WithUnit("{request}"))
	errors = multierr.Append(errors, err)

	m.RefreshRequest, err = meter.Int64Counter("candyskin.app.authserver.refresh.request", metric.WithUnit("{request}"))
	errors = multierr.Append(errors, err)

	m.ValidateRequest, err = meter.Int64Counter("candyskin.app.authserver.validate.request", metric.WithUnit("{request}"))
	errors = multierr.Append(errors, err)

	m.InvalidateRequest, err = meter.Int64Counter("candyskin.app.authserver.invalidate.request", metric.WithUnit("{request}"))
	errors = multierr.Append(errors, err)

	m.SignoutRequest, err = meter.Int64Counter("candyskin.app.authserver.signout.request", metric.WithUnit("{request}"))
	errors = multierr.Append(errors, err)

	m.ProfileRequest, err = meter.Int64Counter("candyskin.app.sessionserver.profile.request", metric.WithUnit("{request}"))
	errors = multierr.Append(errors, err)

	m.JoinRequest, err = meter.Int64Counter("candyskin.app.sessionserver.join.request", metric.WithUnit("{request}"))
	errors = multierr.Append(errors, err)

	m.HasJoinedRequest, err = meter.Int64Counter("candyskin.app.sessionserver.has_joined.request", metric.WithUnit("{request}"))
	errors = multierr.Append(errors, err)

	return m, errors
}

type yggdrasilMetrics struct {
	AuthenticateRequest metric.Int64Counter
	RefreshRequest      metric.Int64Counter
	ValidateRequest     metric.Int64Counter
	InvalidateRequest   metric.Int64Counter
	SignoutRequest      metric.Int64Counter
	ProfileRequest      metric.Int64Counter
	JoinRequest         metric.Int64Counter
	HasJoinedRequest    metric.Int64Counter
}
