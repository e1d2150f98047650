package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"gigearn-link/internal/dependency"
	"gigearn-link/internal/models"
	"gigearn-link/internal/tokenstore"
	"gigearn-link/internal/util"
)

type contextKey string

const userIDKey contextKey = "userID"

type Middleware struct {
	kv     dependency.KVStore
	secret []byte
}

func NewMiddleware(kv dependency.KVStore, jwtSecret string) *Middleware {
	return &Middleware{
		kv:     kv,
		secret: []byte(jwtSecret),
	}
}

// UserID returns the user the request was authenticated as.
func UserID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok && id != ""
}

// WithUserID is used by tests and internal callers that authenticate elsewhere.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// AuthMiddleware verifies the backend session token and remembers it in the
// user's token store for later backend calls.
func (h *Middleware) AuthMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestPath := r.URL.Path

		logs := make(map[string]map[string]any)
		logs["info"] = make(map[string]any)
		logs["error"] = make(map[string]any)
		defer func() {
			logs["info"]["request"] = requestPath
			util.LogInfoMap(logs)
		}()

		authHeader := r.Header.Get("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			logs["error"]["authHeader"] = "authorization header format is incorrect"
			unauthorized(w)
			return
		}

		token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		logs["info"]["token"] = util.Fingerprint(token)

		userID, _, err := util.ParseSessionJWT(token, h.secret)
		if err != nil {
			logs["error"]["ParseSessionJWT"] = err.Error()
			unauthorized(w)
			return
		}
		logs["info"]["userID"] = userID

		store := tokenstore.New(h.kv, userID)
		revoked, err := store.SessionRevoked(r.Context(), token)
		if err != nil {
			logs["error"]["SessionRevoked"] = err.Error()
			connectionFailed(w)
			return
		}
		if revoked {
			logs["error"]["session"] = "session token was revoked"
			unauthorized(w)
			return
		}

		if current, err := store.Session(r.Context()); err != nil || current != token {
			if err := store.SaveSession(r.Context(), token); err != nil {
				logs["error"]["SaveSession"] = err.Error()
				connectionFailed(w)
				return
			}
		}

		next(w, r.WithContext(WithUserID(r.Context(), userID)))
	}
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(models.ErrorResponse{Error: "Unauthorized"})
}

func connectionFailed(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	_ = json.NewEncoder(w).Encode(models.ErrorResponse{Error: models.ConnectionFailed})
}
