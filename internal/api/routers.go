package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"gigearn-link/internal/dependency"
	"gigearn-link/internal/middleware"
)

func RegisterRoutes(router *mux.Router, handler dependency.Handler, mw *middleware.Middleware) {
	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}).Methods("GET")

	// Linking routes; the callback route goes first so it is not taken for a provider
	router.HandleFunc("/links/callback", mw.AuthMiddleware(func(w http.ResponseWriter, r *http.Request) {
		handler.LinkHandler().CallbackHandler(w, r)
	})).Methods("POST")

	router.HandleFunc("/links/{provider}", mw.AuthMiddleware(func(w http.ResponseWriter, r *http.Request) {
		handler.LinkHandler().StartLinkHandler(w, r)
	})).Methods("POST")

	router.HandleFunc("/links/{provider}", mw.AuthMiddleware(func(w http.ResponseWriter, r *http.Request) {
		handler.LinkHandler().AbortLinkHandler(w, r)
	})).Methods("DELETE")

	router.HandleFunc("/links/{provider}/wait", mw.AuthMiddleware(func(w http.ResponseWriter, r *http.Request) {
		handler.LinkHandler().WaitLinkHandler(w, r)
	})).Methods("GET")

	// Account routes
	router.HandleFunc("/accounts", mw.AuthMiddleware(func(w http.ResponseWriter, r *http.Request) {
		handler.AccountHandler().ListAccountsHandler(w, r)
	})).Methods("GET")

	router.HandleFunc("/accounts/{provider}/disconnect", mw.AuthMiddleware(func(w http.ResponseWriter, r *http.Request) {
		handler.AccountHandler().DisconnectHandler(w, r)
	})).Methods("POST")

	router.HandleFunc("/accounts/{provider}/refresh", mw.AuthMiddleware(func(w http.ResponseWriter, r *http.Request) {
		handler.AccountHandler().RefreshHandler(w, r)
	})).Methods("POST")

	router.HandleFunc("/session/logout", mw.AuthMiddleware(func(w http.ResponseWriter, r *http.Request) {
		handler.AccountHandler().LogoutHandler(w, r)
	})).Methods("POST")
}
