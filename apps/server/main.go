package main

import (
	"context"
	"log"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"

	"github.com/altukhov/dialog/pkg/auth"
	"github.com/altukhov/dialog/pkg/chat"
	"github.com/altukhov/dialog/pkg/config"
	"github.com/altukhov/dialog/pkg/db"
	"github.com/altukhov/dialog/pkg/mailer"
	"github.com/altukhov/dialog/pkg/media"
	"github.com/altukhov/dialog/pkg/presence"
	"github.com/altukhov/dialog/pkg/registry"
	"github.com/altukhov/dialog/pkg/store"
)

// server bundles the collaborators the HTTP handlers share.
type server struct {
	store    *store.Store
	tokens   *auth.Tokens
	presence *presence.Store
	mail     *mailer.Producer
	media    *media.Signer
}

func main() {
	cfg := config.Load()

	session, err := db.NewSession(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to Postgres: %v", err)
	}
	if err := session.Migrate(); err != nil {
		log.Fatalf("Failed to migrate schema: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer rdb.Close()

	signer, err := media.NewSigner(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioUseSSL)
	if err != nil {
		log.Fatalf("Failed to build media signer: %v", err)
	}
	if err := signer.EnsureBuckets(context.Background()); err != nil {
		log.Printf("Bucket setup failed (uploads degraded): %v", err)
	}

	mailProducer := mailer.NewProducer(cfg.KafkaBrokers, cfg.EmailTopic)
	defer mailProducer.Close()

	st := store.New(session.DB)
	tokens := auth.NewTokens(cfg.JWTSecret)
	pres := presence.NewStore(rdb, cfg.PresenceTTL)
	reg := registry.New()
	dispatcher := chat.NewDispatcher(st, reg)
	gateway := chat.NewGateway(reg, pres, dispatcher, st, tokens)

	srv := &server{store: st, tokens: tokens, presence: pres, mail: mailProducer, media: signer}

	r := mux.NewRouter()
	r.Use(CORSMiddleware)

	// Public endpoints.
	r.HandleFunc("/api/v1/public/register", srv.RegisterHandler).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/api/v1/public/confirm-email", srv.ConfirmEmailHandler).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/api/v1/public/login", srv.LoginHandler).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/api/v1/public/password-reset/request", srv.PasswordResetRequestHandler).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/api/v1/public/password-reset/confirm", srv.PasswordResetConfirmHandler).Methods(http.MethodPost, http.MethodOptions)

	// WebSocket endpoint; the gateway does its own token handling.
	r.Handle("/api/v1/ws/chat/{conversation_id}", gateway)

	// Protected endpoints.
	api := r.NewRoute().Subrouter()
	api.Use(srv.AuthMiddleware)
	api.HandleFunc("/api/v1/users/me", srv.MeHandler).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/api/v1/users/{user_id}/status", srv.UserStatusHandler).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/api/v1/conversation", srv.GetOrCreateConversationHandler).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/api/v1/messages", srv.ListConversationsHandler).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/api/v1/messages/{conversation_id}", srv.HistoryHandler).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/api/v1/messages/{message_id}/self", srv.DeleteMessageSelfHandler).Methods(http.MethodDelete, http.MethodOptions)
	api.HandleFunc("/api/v1/messages/{message_id}/all", srv.DeleteMessageAllHandler).Methods(http.MethodDelete, http.MethodOptions)
	api.HandleFunc("/api/v1/posts", srv.CreatePostHandler).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/api/v1/posts/{user_id}", srv.ListPostsHandler).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/api/v1/posts/photos/{user_id}", srv.PhotoFeedHandler).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/api/v1/uploads", srv.UploadURLHandler).Methods(http.MethodPost, http.MethodOptions)

	log.Printf("Server starting on %s...", cfg.HTTPAddr)
	if err := http.ListenAndServe(cfg.HTTPAddr, r); err != nil {
		log.Fatal(err)
	}
}
