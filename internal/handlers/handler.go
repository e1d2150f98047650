package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"gigearn-link/internal/backend"
	"gigearn-link/internal/config"
	"gigearn-link/internal/linking"
	"gigearn-link/internal/middleware"
	"gigearn-link/internal/models"
	"gigearn-link/internal/providers"
	"gigearn-link/internal/tokenstore"
)

type Handler struct {
	cfg     *config.Config
	manager *linking.Manager
}

func NewHandler(cfg *config.Config, manager *linking.Manager) *Handler {
	return &Handler{
		cfg:     cfg,
		manager: manager,
	}
}

// linker resolves the authenticated user's Linker. The auth middleware
// guarantees a user id on every routed request.
func (h *Handler) linker(r *http.Request) (*linking.Linker, bool) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		return nil, false
	}
	return h.manager.For(userID), true
}

func providerVar(r *http.Request) models.Provider {
	return models.ParseProvider(mux.Vars(r)["provider"])
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// writeError hides the cause from the client; callers log it.
func writeError(w http.ResponseWriter, status int) {
	writeJSON(w, status, models.ErrorResponse{Error: models.ConnectionFailed})
}

// statusFor maps flow errors to HTTP statuses.
func statusFor(err error) int {
	var (
		unsupported *providers.UnsupportedProviderError
		mismatch    *linking.StateMismatchError
		denied      *linking.ProviderDeniedError
		exchange    *providers.TokenExchangeError
		invalid     *providers.InvalidTokenResponseError
		network     *providers.NetworkError
		status      *backend.StatusError
		storage     *tokenstore.StorageError
	)

	switch {
	case errors.As(err, &unsupported),
		errors.As(err, &mismatch),
		errors.As(err, &denied),
		errors.Is(err, linking.ErrMissingCode),
		errors.Is(err, linking.ErrMalformedURL),
		errors.Is(err, providers.ErrNoRefreshToken):
		return http.StatusBadRequest
	case errors.Is(err, providers.ErrAttemptPending),
		errors.Is(err, linking.ErrAttemptAborted):
		return http.StatusConflict
	case errors.Is(err, linking.ErrNoPendingAttempt):
		return http.StatusNotFound
	case errors.Is(err, linking.ErrAttemptExpired):
		return http.StatusRequestTimeout
	case errors.Is(err, backend.ErrSessionExpired):
		return http.StatusUnauthorized
	case errors.As(err, &exchange),
		errors.As(err, &invalid),
		errors.As(err, &network),
		errors.As(err, &status):
		return http.StatusBadGateway
	case errors.As(err, &storage):
		return http.StatusInternalServerError
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
