package api

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/handlers"
	"github.com/npezzotti/go-social/internal/config"
	"github.com/npezzotti/go-social/internal/database"
	"github.com/npezzotti/go-social/internal/media"
	"github.com/npezzotti/go-social/internal/relay"
)

type SocialApp struct {
	log            *log.Logger
	db             database.SocialRepository
	mux            *http.Server
	relay          *relay.Relay
	media          *media.Store
	validate       *validator.Validate
	signingKey     []byte
	allowedOrigins []string
}

func NewSocialApp(mux *http.ServeMux, logger *log.Logger, r *relay.Relay, db database.SocialRepository, store *media.Store, cfg *config.Config) *SocialApp {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	s := &SocialApp{
		log:            logger,
		db:             db,
		relay:          r,
		media:          store,
		validate:       newValidator(),
		signingKey:     cfg.SigningKey,
		allowedOrigins: cfg.AllowedOrigins,
	}

	mux.HandleFunc("GET /healthz", s.healthCheck)

	mux.HandleFunc("POST /api/auth/signup", s.signup)
	mux.HandleFunc("POST /api/auth/login", s.login)
	mux.HandleFunc("GET /api/auth/logout", s.logout)
	mux.HandleFunc("GET /api/auth/session", s.authMiddleware(s.session))
	mux.HandleFunc("POST /api/auth/2fa/enable", s.authMiddleware(s.enableTwoFactor))
	mux.HandleFunc("POST /api/auth/2fa/disable", s.authMiddleware(s.disableTwoFactor))

	mux.HandleFunc("GET /api/users/profile", s.authMiddleware(s.getProfile))
	mux.HandleFunc("PUT /api/users/profile", s.authMiddleware(s.updateProfile))
	mux.HandleFunc("POST /api/users/upload-profile-picture", s.authMiddleware(s.uploadProfilePicture))
	mux.HandleFunc("GET /api/users/search-users", s.authMiddleware(s.searchUsers))
	mux.HandleFunc("POST /api/users/{id}/follow", s.authMiddleware(s.followUser))
	mux.HandleFunc("POST /api/users/{id}/unfollow", s.authMiddleware(s.unfollowUser))
	mux.HandleFunc("GET /api/users/followers", s.authMiddleware(s.getFollowers))
	mux.HandleFunc("GET /api/users/following", s.authMiddleware(s.getFollowing))
	mux.HandleFunc("GET /api/users/profile/{username}", s.authMiddleware(s.getUserProfile))

	mux.HandleFunc("POST /api/posts", s.authMiddleware(s.createPost))
	mux.HandleFunc("GET /api/posts", s.getPosts)
	mux.HandleFunc("GET /api/posts/mine", s.authMiddleware(s.getMyPosts))
	mux.HandleFunc("GET /api/posts/user/{userId}", s.authMiddleware(s.getUserPosts))
	mux.HandleFunc("GET /api/posts/{postId}", s.authMiddleware(s.getPost))
	mux.HandleFunc("POST /api/posts/{postId}/comments", s.authMiddleware(s.addComment))
	mux.HandleFunc("DELETE /api/posts/{postId}", s.authMiddleware(s.deletePost))

	mux.HandleFunc("POST /api/chats", s.authMiddleware(s.createChat))
	mux.HandleFunc("GET /api/chats", s.authMiddleware(s.getChats))
	mux.HandleFunc("POST /api/chats/message", s.authMiddleware(s.sendMessage))
	mux.HandleFunc("GET /api/chats/message/{chatId}", s.authMiddleware(s.getMessages))

	mux.HandleFunc("GET /ws", s.authMiddleware(s.serveWs))

	if store != nil {
		mux.Handle("GET "+media.URLPrefix, store.Handler())
	}

	h := handlers.CORS(
		handlers.MaxAge(3600),
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Origin", "Content-Type", "Accept", "Authorization"}),
		handlers.AllowCredentials(),
	)(mux)

	h = s.errorHandler(h)
	h = requestIdMiddleware(h)
	h = handlers.CombinedLoggingHandler(logger.Writer(), h)

	srv := &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: h,
	}

	s.mux = srv
	return s
}

func (s *SocialApp) Start() error {
	s.log.Printf("starting server on %s\n", s.mux.Addr)
	return s.mux.ListenAndServe()
}

func (s *SocialApp) Shutdown(ctx context.Context) error {
	s.log.Println("shutting down HTTP server...")
	if err := s.mux.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}
