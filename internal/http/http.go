package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"candy.skin/yggdrasil/internal/security"
)

func StartServer(ctx context.Context, server *http.Server) {
	srvErr := make(chan error, 1)
	go func() {
		slog.Info("Starting the server", slog.String("addr", server.Addr))
		srvErr <- server.ListenAndServe()
		close(srvErr)
	}()

	select {
	case err := <-srvErr:
		slog.Error("Error in the server", slog.Any("error", err))
	case <-ctx.Done():
		slog.Info("Got stop signal, starting graceful shutdown")

		stopCtx, cancelFunc := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancelFunc()

		_ = server.Shutdown(stopCtx)

		slog.Info("Graceful shutdown succeed, exiting")
	}
}

type Authenticator interface {
	Authenticate(req *http.Request, scope security.Scope) error
}

func NewAuthenticationMiddleware(authenticator Authenticator, scope security.Scope) mux.MiddlewareFunc {
	return func(handler http.Handler) http.Handler {
		return http.HandlerFunc(func(resp http.ResponseWriter, req *http.Request) {
			err := authenticator.Authenticate(req, scope)
			if err != nil {
				apiForbidden(resp, err.Error())
				return
			}

			handler.ServeHTTP(resp, req)
		})
	}
}

func NotFoundHandler(response http.ResponseWriter, _ *http.Request) {
	data, _ := json.Marshal(map[string]string{
		"status":  "404",
		"message": "Not Found",
	})

	response.Header().Set("Content-Type", "application/json")
	response.WriteHeader(http.StatusNotFound)
	_, _ = response.Write(data)
}

func apiBadRequest(resp http.ResponseWriter, errorsPerField map[string][]string) {
	resp.Header().Set("Content-Type", "application/json")
	resp.WriteHeader(http.StatusBadRequest)
	result, _ := json.Marshal(map[string]any{
		"errors": errorsPerField,
	})
	_, _ = resp.Write(result)
}

func apiForbidden(resp http.ResponseWriter, reason string) {
	resp.Header().Set("Content-Type", "application/json")
	resp.WriteHeader(http.StatusForbidden)
	result, _ := json.Marshal(map[string]any{
		"error": reason,
	})
	_, _ = resp.Write(result)
}

var internalServerError = []byte("Internal server error")

func apiServerError(resp http.ResponseWriter, req *http.Request, err error) {
	recordRequestError(req, err)

	resp.Header().Set("Content-Type", "text/plain")
	resp.WriteHeader(http.StatusInternalServerError)
	_, _ = resp.Write(internalServerError)
}

// Error messages of the Yggdrasil protocol. Launchers and game servers match
// them literally, so they must be spelled exactly like this
const (
	invalidCredentialsMessage = "Invalid credentials"
	invalidTokenMessage       = "Invalid token"
	invalidProfileMessage     = "Invalid profile"
)

func yggdrasilForbidden(resp http.ResponseWriter, errorMessage string) {
	resp.Header().Set("Content-Type", "application/json")
	resp.WriteHeader(http.StatusForbidden)
	result, _ := json.Marshal(map[string]any{
		"error":        "ForbiddenOperationException",
		"errorMessage": errorMessage,
	})
	_, _ = resp.Write(result)
}

func yggdrasilServerError(resp http.ResponseWriter, req *http.Request, err error) {
	recordRequestError(req, err)

	resp.Header().Set("Content-Type", "application/json")
	resp.WriteHeader(http.StatusInternalServerError)
	result, _ := json.Marshal(map[string]any{
		"error":        "InternalErrorException",
		"errorMessage": "Internal server error",
	})
	_, _ = resp.Write(result)
}

func recordRequestError(req *http.Request, err error) {
	span := trace.SpanFromContext(req.Context())
	span.SetStatus(codes.Error, "")
	span.RecordError(err)
}
