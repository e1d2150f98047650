package handlers

import (
	"net/http"

	"gigearn-link/internal/dependency"
	"gigearn-link/internal/models"
	"gigearn-link/internal/util"
)

type accountHandler struct {
	*Handler
}

func (h *Handler) AccountHandler() dependency.AccountHandler {
	return &accountHandler{
		h,
	}
}

func (h *accountHandler) ListAccountsHandler(w http.ResponseWriter, r *http.Request) {
	logs := newLogs("ListAccountsHandler")
	defer func() {
		util.LogInfoMap(logs)
	}()

	linker, ok := h.linker(r)
	if !ok {
		writeError(w, http.StatusUnauthorized)
		return
	}
	logs["info"]["userID"] = linker.UserID()

	accounts, err := linker.Accounts(r.Context())
	if err != nil {
		logs["error"]["Accounts"] = err.Error()
		writeError(w, statusFor(err))
		return
	}

	writeJSON(w, http.StatusOK, models.AccountsResponse{Accounts: accounts})
}

func (h *accountHandler) DisconnectHandler(w http.ResponseWriter, r *http.Request) {
	logs := newLogs("DisconnectHandler")
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

	accounts, err := linker.Unlink(r.Context(), provider)
	if err != nil {
		logs["error"]["Unlink"] = err.Error()
		writeError(w, statusFor(err))
		return
	}

	writeJSON(w, http.StatusOK, models.AccountsResponse{Accounts: accounts})
}

func (h *accountHandler) RefreshHandler(w http.ResponseWriter, r *http.Request) {
	logs := newLogs("RefreshHandler")
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

	cred, err := linker.Refresh(r.Context(), provider)
	if err != nil {
		logs["error"]["Refresh"] = err.Error()
		writeError(w, statusFor(err))
		return
	}

	resp := models.RefreshResponse{Provider: provider}
	if !cred.ExpiresAt.IsZero() {
		expiresAt := cred.ExpiresAt
		resp.ExpiresAt = &expiresAt
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *accountHandler) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	logs := newLogs("LogoutHandler")
	defer func() {
		util.LogInfoMap(logs)
	}()

	linker, ok := h.linker(r)
	if !ok {
		writeError(w, http.StatusUnauthorized)
		return
	}
	logs["info"]["userID"] = linker.UserID()

	if err := linker.Logout(r.Context()); err != nil {
		logs["error"]["Logout"] = err.Error()
		writeError(w, statusFor(err))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
