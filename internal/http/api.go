package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/huandu/xstrings"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/multierr"

	"candy.skin/yggdrasil/internal/db"
	"candy.skin/yggdrasil/internal/identities"
	"candy.skin/yggdrasil/internal/otel"
)

type IdentitiesManager interface {
	PersistIdentity(ctx context.Context, identity *db.Identity, password string) error
	RemoveIdentityByUuid(ctx context.Context, uuid string) error
}

func NewIdentitiesApi(identitiesManager IdentitiesManager) (*IdentitiesApi, error) {
	metrics, err := newIdentitiesApiMetrics(otel.GetMeter())
	if err != nil {
		return nil, err
	}

	return &IdentitiesApi{
		IdentitiesManager: identitiesManager,
		metrics:           metrics,
	}, nil
}

type IdentitiesApi struct {
	IdentitiesManager

	metrics *identitiesApiMetrics
}

func (i *IdentitiesApi) Handler() *mux.Router {
	router := mux.NewRouter().StrictSlash(true)
	router.HandleFunc("/identities", i.postIdentityHandler).Methods(http.MethodPost)
	router.HandleFunc("/identities/{uuid}", i.deleteIdentityByUuidHandler).Methods(http.MethodDelete)

	return router
}

func (i *IdentitiesApi) postIdentityHandler(resp http.ResponseWriter, req *http.Request) {
	i.metrics.UploadIdentityRequest.Add(req.Context(), 1)

	err := req.ParseForm()
	if err != nil {
		apiBadRequest(resp, map[string][]string{
			"body": {"The body of the request must be a valid url-encoded string"},
		})
		return
	}

	identity := &db.Identity{
		Uuid:      req.Form.Get("uuid"),
		Username:  req.Form.Get("username"),
		Skin:      req.Form.Get("skin"),
		SkinModel: req.Form.Get("skinModel"),
		Cape:      req.Form.Get("cape"),
	}

	err = i.PersistIdentity(req.Context(), identity, req.Form.Get("password"))
	if err != nil {
		var v *identities.ValidationError
		if errors.As(err, &v) {
			// Manager returns ValidationError according to the struct fields names.
			// They are uppercased, but otherwise the same as the names in the API.
			// So to make them consistent it's enough just to make the first lowercased.
			for field, fieldErrors := range v.Errors {
				v.Errors[xstrings.FirstRuneToLower(field)] = fieldErrors
				delete(v.Errors, field)
			}

			apiBadRequest(resp, v.Errors)

			return
		}

		apiServerError(resp, req, fmt.Errorf("unable to save identity to db: %w", err))
		return
	}

	resp.WriteHeader(http.StatusCreated)
}

func (i *IdentitiesApi) deleteIdentityByUuidHandler(resp http.ResponseWriter, req *http.Request) {
	i.metrics.DeleteIdentityRequest.Add(req.Context(), 1)

	uuid := mux.Vars(req)["uuid"]
	err := i.IdentitiesManager.RemoveIdentityByUuid(req.Context(), uuid)
	if err != nil {
		apiServerError(resp, req, fmt.Errorf("unable to delete identity from db: %w", err))
		return
	}

	resp.WriteHeader(http.StatusNoContent)
}

func newIdentitiesApiMetrics(meter metric.Meter) (*identitiesApiMetrics, error) {
	m := &identitiesApiMetrics{}
	var errors, err error

	m.UploadIdentityRequest, err = meter.Int64Counter("candyskin.app.identities.upload.request", metric.WithUnit("{request}"))
	errors = multierr.Append(errors, err)

	m.DeleteIdentityRequest, err = meter.Int64Counter("candyskin.app.identities.delete.request", metric.WithUnit("{request}"))
	errors = multierr.Append(errors, err)

	return m, errors
}

type identitiesApiMetrics struct {
	UploadIdentityRequest metric.Int64Counter
	DeleteIdentityRequest metric.Int64Counter
}
