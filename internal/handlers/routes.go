package handlers

import "net/http"

// RegisterRoutes wires HTTP handlers into the provided ServeMux.
func RegisterRoutes(mux *http.ServeMux, deps Dependencies) {
	health := HealthHandler{Checks: deps.Health}
	auth := AuthHandler{Users: deps.Users, Sessions: deps.Sessions, Limiter: deps.AuthLimiter}
	videos := VideoHandler{
		Videos:    deps.Videos,
		Uploader:  deps.Uploader,
		Likes:     deps.Likes,
		Limiter:   deps.LikeLimiter,
		FeedLimit: deps.FeedLimit,
	}
	users := UserHandler{Profiles: deps.Profiles, Videos: deps.Videos, Playlists: deps.Playlists}
	playlists := PlaylistHandler{Playlists: deps.Playlists}

	mux.HandleFunc("/healthz", health.Handle)
	if deps.Metrics != nil {
		mux.Handle("GET /metrics", deps.Metrics)
	}

	mux.HandleFunc("POST /api/v1/auth/login", auth.Login)
	mux.HandleFunc("POST /api/v1/auth/signup", auth.SignUp)
	mux.HandleFunc("POST /api/v1/auth/refresh", auth.Refresh)
	mux.HandleFunc("POST /api/v1/auth/logout", auth.Logout)

	mux.HandleFunc("GET /api/v1/videos/feed", videos.Feed)
	mux.HandleFunc("POST /api/v1/videos", videos.Upload)
	mux.HandleFunc("GET /api/v1/videos/{id}", videos.Get)
	mux.HandleFunc("GET /api/v1/videos/{id}/like", videos.LikeState)
	mux.HandleFunc("POST /api/v1/videos/{id}/like", videos.ToggleLike)

	mux.HandleFunc("GET /api/v1/users/{id}", users.Get)
	mux.HandleFunc("GET /api/v1/users/{id}/videos", users.Videos)
	mux.HandleFunc("GET /api/v1/users/{id}/playlists", users.Playlists)

	mux.HandleFunc("POST /api/v1/playlists", playlists.Create)
	mux.HandleFunc("GET /api/v1/playlists/{id}", playlists.Get)
	mux.HandleFunc("PATCH /api/v1/playlists/{id}", playlists.Update)
	mux.HandleFunc("DELETE /api/v1/playlists/{id}", playlists.Delete)
	mux.HandleFunc("GET /api/v1/playlists/{id}/videos", playlists.Videos)
	mux.HandleFunc("POST /api/v1/playlists/{id}/videos", playlists.AddVideos)
	mux.HandleFunc("DELETE /api/v1/playlists/{id}/videos", playlists.RemoveVideos)
}

// Dependencies aggregates collaborators required by HTTP handlers.
type Dependencies struct {
	Users       UserStore
	Sessions    SessionManager
	Profiles    ProfileLookup
	Videos      VideoStore
	Uploader    VideoUploader
	Likes       LikeService
	Playlists   PlaylistService
	AuthLimiter RateLimiter
	LikeLimiter RateLimiter
	Metrics     http.Handler
	Health      []HealthCheck
	FeedLimit   int
}
