// Package router wires handlers and middleware into the HTTP mux.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/keysmith-dev/keysmith-server/internal/api/http/handler"
	"github.com/keysmith-dev/keysmith-server/internal/api/http/middleware"
	"github.com/keysmith-dev/keysmith-server/internal/logger"
	"github.com/keysmith-dev/keysmith-server/internal/model"
	"github.com/keysmith-dev/keysmith-server/internal/service"
)

// Config carries everything the router needs to assemble the API.
type Config struct {
	AuthService    *service.Auth
	AccountService *service.Account
	VaultService   *service.Vault
	OrgService     *service.Org
	TokenManager   model.TokenManager
	SessionStore   model.SessionStore
	ContextManager model.ContextManager
	RateRPS        float64
	RateBurst      int
	Logger         *logger.Logger
}

// New assembles the API router. Handshake and signup endpoints are
// public; everything else requires a session token.
func New(cfg Config) http.Handler {
	authHandler := handler.NewAuth(cfg.AuthService, cfg.ContextManager, cfg.Logger)
	accountHandler := handler.NewAccount(cfg.AccountService, cfg.ContextManager, cfg.Logger)
	vaultHandler := handler.NewVault(cfg.VaultService, cfg.ContextManager, cfg.Logger)
	orgHandler := handler.NewOrg(cfg.OrgService, cfg.AccountService, cfg.ContextManager, cfg.Logger)

	authenticate := middleware.NewAuthenticate(cfg.TokenManager, cfg.SessionStore, cfg.ContextManager, cfg.Logger)
	logging := middleware.NewLogging(cfg.Logger)
	rateLimit := middleware.NewRateLimit(cfg.RateRPS, cfg.RateBurst)

	r := chi.NewRouter()
	r.Use(logging.Handle)
	r.Use(rateLimit.Handle)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	r.Route("/api/v1", func(r chi.Router) {
		// Public endpoints: everything before a session exists.
		r.Post("/auth/init", authHandler.InitAuth)
		r.Post("/auth/session", authHandler.CreateSession)
		r.Post("/accounts/verify", accountHandler.StartVerification)
		r.Post("/accounts", accountHandler.CreateAccount)
		r.Post("/accounts/recover", accountHandler.RecoverAccount)

		r.Group(func(r chi.Router) {
			r.Use(authenticate.Handle)

			r.Delete("/auth/session", authHandler.RevokeSession)
			r.Put("/auth", authHandler.UpdateAuth)

			r.Get("/accounts/me", accountHandler.GetAccount)
			r.Patch("/accounts/me", accountHandler.UpdateAccount)
			r.Delete("/accounts/me", accountHandler.DeleteAccount)
			r.Get("/accounts/lookup", accountHandler.LookupAccount)

			r.Post("/vaults", vaultHandler.CreateVault)
			r.Get("/vaults/{vault_id}", vaultHandler.GetVault)
			r.Put("/vaults/{vault_id}", vaultHandler.UpdateVault)
			r.Delete("/vaults/{vault_id}", vaultHandler.DeleteVault)
			r.Put("/vaults/{vault_id}/attachments/{attachment_id}", vaultHandler.UploadAttachment)
			r.Get("/vaults/{vault_id}/attachments/{attachment_id}", vaultHandler.DownloadAttachment)
			r.Delete("/vaults/{vault_id}/attachments/{attachment_id}", vaultHandler.DeleteAttachment)

			r.Post("/orgs", orgHandler.CreateOrg)
			r.Get("/orgs/{org_id}", orgHandler.GetOrg)
			r.Put("/orgs/{org_id}", orgHandler.UpdateOrg)
			r.Delete("/orgs/{org_id}", orgHandler.DeleteOrg)
			r.Get("/orgs/{org_id}/vaults", vaultHandler.ListOrgVaults)
			r.Post("/orgs/{org_id}/groups", orgHandler.CreateGroup)
			r.Get("/orgs/{org_id}/groups", orgHandler.ListGroups)
			r.Get("/groups/{group_id}", orgHandler.GetGroup)
			r.Put("/groups/{group_id}", orgHandler.UpdateGroup)
			r.Delete("/groups/{group_id}", orgHandler.DeleteGroup)
			r.Post("/orgs/{org_id}/invites", orgHandler.CreateInvite)
			r.Get("/invites/{invite_id}", orgHandler.GetInvite)
			r.Post("/invites/{invite_id}/accept", orgHandler.AcceptInvite)
		})
	})

	return r
}
