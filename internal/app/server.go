// Package app exposes the domain engines over HTTP. Two surfaces share the
// engines: the flat client surface at the root, and the /v1 resource
// surface for tooling. Each validates its own token scheme.
package app

import (
	"net/http"

	"vrhub/api/internal/account"
	"vrhub/api/internal/auth"
	"vrhub/api/internal/blob"
	"vrhub/api/internal/content"
	"vrhub/api/internal/search"
	"vrhub/api/internal/social"
)

type Server struct {
	accounts *account.Service
	social   *social.Service
	content  *content.Service
	tokens   *auth.Tokens
	blobs    blob.Store
	search   *search.Service
}

func NewServer(accounts *account.Service, socialSvc *social.Service, contentSvc *content.Service, tokens *auth.Tokens, blobs blob.Store, searcher *search.Service) *Server {
	return &Server{
		accounts: accounts,
		social:   socialSvc,
		content:  contentSvc,
		tokens:   tokens,
		blobs:    blobs,
		search:   searcher,
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/v1/", s.v1Router())
	mux.Handle("/", s.flatRouter())
	return withMiddleware(mux)
}

func (s *Server) flatRouter() *router {
	rt := &router{validate: s.tokens.ValidateSession}

	rt.add(http.MethodGet, "/health", authNone, s.handleHealth)

	rt.add(http.MethodPost, "/account", authNone, s.handleRegister)
	rt.add(http.MethodGet, "/account", authRequired, s.handleAccount)
	rt.add(http.MethodPut, "/account", authRequired, s.handleUpdateProfile)
	rt.add(http.MethodDelete, "/account", authRequired, s.handleDeleteAccount)
	rt.add(http.MethodPost, "/account/verify", authNone, s.handleVerify)
	rt.add(http.MethodPost, "/account/verify/resend", authRequired, s.handleResendVerify)
	rt.add(http.MethodPatch, "/account/handle", authRequired, s.handleUpdateHandle)
	rt.add(http.MethodPatch, "/account/email", authRequired, s.handleUpdateEmail)
	rt.add(http.MethodPatch, "/account/password", authRequired, s.handleUpdatePassword)
	rt.add(http.MethodGet, "/account/friends", authRequired, s.handleFriends)
	rt.add(http.MethodGet, "/account/friend-requests", authRequired, s.handleFriendRequests)
	rt.add(http.MethodGet, "/account/notifications", authRequired, s.handleNotifications)
	rt.add(http.MethodGet, "/account/tickets", authRequired, s.handleTickets)
	rt.add(http.MethodPost, "/account/tickets", authRequired, s.handleCreateTicket)

	rt.add(http.MethodPost, "/auth/login", authNone, s.handleLogin)
	rt.add(http.MethodGet, "/auth/sessions", authRequired, s.handleSessions)
	rt.add(http.MethodDelete, "/auth/sessions", authRequired, s.handleDeleteAllSessions)
	rt.add(http.MethodDelete, "/auth/sessions/{id}", authRequired, s.handleDeleteSession)
	rt.add(http.MethodGet, "/auth/game-token", authRequired, s.handleGameToken)
	rt.add(http.MethodPost, "/auth/game-token", authRequired, s.handleRegenerateGameToken)
	rt.add(http.MethodGet, "/auth/join-token", authRequired, s.handleIssueJoinToken)
	rt.add(http.MethodPost, "/auth/join-token", authNone, s.handleVerifyJoinToken)

	rt.add(http.MethodGet, "/user/{id}", authRequired, s.handleUser)
	rt.add(http.MethodPost, "/user/{id}/friend", authRequired, s.handleAddFriend)
	rt.add(http.MethodDelete, "/user/{id}/friend", authRequired, s.handleRemoveFriend)
	rt.add(http.MethodPost, "/user/{id}/block", authRequired, s.handleBlock)
	rt.add(http.MethodGet, "/users", authRequired, s.handleUserSearch)

	rt.add(http.MethodGet, "/search", authOptional, s.handleSearch)
	rt.add(http.MethodGet, "/image/{id}", authNone, s.handleImage)
	rt.add(http.MethodPut, "/image", authRequired, s.handleUploadImage)

	rt.add(http.MethodPost, "/content", authRequired, s.handleCreateContent)
	rt.add(http.MethodGet, "/content", authRequired, s.handleMyContent)
	rt.add(http.MethodGet, "/content/search", authOptional, s.handleContentSearch)
	rt.add(http.MethodGet, "/content/{id}", authOptional, s.handleContent)
	rt.add(http.MethodPut, "/content/{id}", authRequired, s.handleUpdateContent)
	rt.add(http.MethodDelete, "/content/{id}", authRequired, s.handleDeleteContent)
	rt.add(http.MethodPost, "/content/{id}/share", authRequired, s.handleShareContent)
	rt.add(http.MethodGet, "/content/{id}/download", authOptional, s.handleDownload)

	return rt
}

func (s *Server) v1Router() *router {
	rt := &router{validate: s.tokens.ValidateAPI}

	rt.add(http.MethodPost, "/v1/auth/register", authNone, s.handleRegister)
	rt.add(http.MethodPost, "/v1/auth/login", authNone, s.handleV1Login)
	rt.add(http.MethodGet, "/v1/auth/sessions", authRequired, s.handleSessions)
	rt.add(http.MethodDelete, "/v1/auth/sessions/{id}", authRequired, s.handleDeleteSession)
	rt.add(http.MethodGet, "/v1/auth/test", authRequired, s.handleAuthTest)

	rt.add(http.MethodGet, "/v1/profile/{id}", authRequired, s.handleV1Profile)
	rt.add(http.MethodPost, "/v1/profile/update", authRequired, s.handleUpdateProfile)
	rt.add(http.MethodPost, "/v1/profile/thumbnail", authRequired, s.handleProfileThumbnail)
	rt.add(http.MethodPost, "/v1/profile/banner", authRequired, s.handleProfileBanner)

	rt.add(http.MethodPost, "/v1/content/create", authRequired, s.handleCreateContent)
	rt.add(http.MethodGet, "/v1/content/mine", authRequired, s.handleMyContent)
	rt.add(http.MethodGet, "/v1/content/{id}/details", authOptional, s.handleContent)
	rt.add(http.MethodGet, "/v1/content/{id}/bundles", authOptional, s.handleBundles)
	rt.add(http.MethodGet, "/v1/content/{id}/key", authOptional, s.handleKey)
	rt.add(http.MethodPost, "/v1/content/{id}/update", authRequired, s.handleV1UpdateContent)
	rt.add(http.MethodPost, "/v1/content/{id}/updatebundle", authRequired, s.handleUpdateBundle)
	rt.add(http.MethodPost, "/v1/content/{id}/updatethumbnail", authRequired, s.handleUpdateThumbnail)
	rt.add(http.MethodPost, "/v1/content/{id}/setactivebundle", authRequired, s.handleSetActiveBundle)
	rt.add(http.MethodDelete, "/v1/content/{id}/delete", authRequired, s.handleDeleteContent)
	rt.add(http.MethodGet, "/v1/content/{id}/sharegroups", authRequired, s.handleContentGroups)
	rt.add(http.MethodPost, "/v1/content/{id}/sharegroups/add", authRequired, s.handleAttachGroup)
	rt.add(http.MethodPost, "/v1/content/{id}/sharegroups/remove", authRequired, s.handleDetachGroup)

	rt.add(http.MethodGet, "/v1/shares/groups", authRequired, s.handleGroups)
	rt.add(http.MethodPost, "/v1/shares/groups/create", authRequired, s.handleCreateGroup)
	rt.add(http.MethodDelete, "/v1/shares/groups/{id}", authRequired, s.handleDeleteGroup)
	rt.add(http.MethodPost, "/v1/shares/groups/{id}/add", authRequired, s.handleAddGroupMember)
	rt.add(http.MethodPost, "/v1/shares/groups/{id}/remove", authRequired, s.handleRemoveGroupMember)
	rt.add(http.MethodPost, "/v1/shares/add", authRequired, s.handleAddShare)
	rt.add(http.MethodPost, "/v1/shares/remove", authRequired, s.handleRemoveShare)

	return rt
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request, _ params, _ identity) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}
