package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"gigearn-link/internal/dependency"
	"gigearn-link/internal/linking"
	"gigearn-link/internal/models"
	"gigearn-link/internal/util"
)

type linkHandler struct {
	*Handler
}

func (h *Handler) LinkHandler() dependency.LinkHandler {
	return &linkHandler{
		h,
	}
}

func newLogs(method string) map[string]map[string]any {
	logs := make(map[string]map[string]any)
	logs["info"] = make(map[string]any)
	logs["error"] = make(map[string]any)
	logs["info"]["method"] = method
	return logs
}

func (h *linkHandler) StartLinkHandler(w http.ResponseWriter, r *http.Request) {
	logs := newLogs("StartLinkHandler")
	defer func() {
		util.LogInfoMap(logs)
	}()

	linker, ok := h.linker(r)
	if !ok {
		writeError(w, http.StatusUnauthorized)
		return
	}
	provider := providerVar(r)
	logs["info"]["userID"] = linker.UserID()
	logs["info"]["provider"] = provider.String()

	attempt, err := linker.StartAttempt(r.Context(), provider)
	if err != nil {
		logs["error"]["StartAttempt"] = err.Error()
		writeError(w, statusFor(err))
		return
	}
	logs["info"]["attemptID"] = attempt.ID

	writeJSON(w, http.StatusCreated, attempt.AuthRequest())
}

func (h *linkHandler) AbortLinkHandler(w http.ResponseWriter, r *http.Request) {
	logs := newLogs("AbortLinkHandler")
	defer func() {
		util.LogInfoMap(logs)
	}()

	linker, ok := h.linker(r)
	if !ok {
		writeError(w, http.StatusUnauthorized)
		return
	}
	provider := providerVar(r)
	logs["info"]["userID"] = linker.UserID()
	logs["info"]["provider"] = provider.String()

	if err := linker.AbortAttempt(r.Context(), provider); err != nil {
		logs["error"]["AbortAttempt"] = err.Error()
		writeError(w, statusFor(err))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// WaitLinkHandler long-polls the latest attempt for a provider. When the
// poll window closes first the client gets 204 and polls again.
func (h *linkHandler) WaitLinkHandler(w http.ResponseWriter, r *http.Request) {
	logs := newLogs("WaitLinkHandler")
	defer func() {
		util.LogInfoMap(logs)
	}()

	linker, ok := h.linker(r)
	if !ok {
		writeError(w, http.StatusUnauthorized)
		return
	}
	provider := providerVar(r)
	logs["info"]["userID"] = linker.UserID()
	logs["info"]["provider"] = provider.String()

	ctx, cancel := context.WithTimeout(r.Context(), h.cfg.Link.WaitTimeout)
	defer cancel()

	_, err := linker.Wait(ctx, provider)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, models.LinkResultResponse{Provider: provider, ConnectionStatus: true})
	case errors.Is(err, context.DeadlineExceeded) && r.Context().Err() == nil:
		logs["info"]["wait"] = "poll window elapsed"
		w.WriteHeader(http.StatusNoContent)
	default:
		logs["error"]["Wait"] = err.Error()
		writeError(w, statusFor(err))
	}
}

// CallbackHandler receives the deep link the app was opened with.
func (h *linkHandler) CallbackHandler(w http.ResponseWriter, r *http.Request) {
	logs := newLogs("CallbackHandler")
	defer func() {
		util.LogInfoMap(logs)
	}()

	linker, ok := h.linker(r)
	if !ok {
		writeError(w, http.StatusUnauthorized)
		return
	}
	logs["info"]["userID"] = linker.UserID()

	var body models.CallbackRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.URL == "" {
		if err != nil {
			logs["error"]["decode"] = err.Error()
		} else {
			logs["error"]["decode"] = "url is required"
		}
		writeError(w, http.StatusBadRequest)
		return
	}

	cred, err := linker.HandleRedirect(r.Context(), body.URL)
	if errors.Is(err, linking.ErrNoPendingAttempt) {
		logs["info"]["callback"] = "ignored"
		w.WriteHeader(http.StatusAccepted)
		return
	}
	if err != nil {
		logs["error"]["HandleRedirect"] = err.Error()
		writeError(w, statusFor(err))
		return
	}
	logs["info"]["provider"] = cred.Provider.String()

	writeJSON(w, http.StatusOK, models.LinkResultResponse{Provider: cred.Provider, ConnectionStatus: true})
}
