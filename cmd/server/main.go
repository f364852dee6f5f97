package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/gorilla/mux"

	"pondside/internal/config"
	"pondside/internal/database"
	"pondside/internal/engine"
	"pondside/internal/handlers"
	"pondside/internal/middleware"
	"pondside/internal/storage"
	"pondside/internal/utils"
	"pondside/internal/websocket"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Debug {
		log.Printf("Resolved config: host=%s port=%d db=%q metrics=%v ttl=%s origins=%v",
			cfg.Server.Host, cfg.Server.Port, cfg.Database.Name,
			cfg.Server.MetricsEnabled, cfg.OnlineTTL, cfg.AllowedOrigins)
	}
	middleware.SetJWTSecret(cfg.JWTSecret)

	metrics := utils.NewMetricsCollector()

	// MongoDB is optional; without it the engine runs purely in memory
	// and loses state on restart.
	var db *database.MongoDB
	if cfg.Database.URI != "" {
		db, err = database.NewMongoDB(cfg.Database.URI, cfg.Database.Name)
		if err != nil {
			log.Fatalf("Failed to connect to MongoDB: %v", err)
		}
		defer db.Close(context.Background())
		log.Printf("Connected to MongoDB database %q", cfg.Database.Name)
	} else {
		log.Println("MONGODB_URI not set, running without persistence")
	}

	hub := websocket.NewHub()
	go hub.Run()

	system := actor.NewActorSystem()
	eng := engine.NewEngine(system, metrics, hub, db)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	eng.StartPresenceSweeper(ctx, system.Root, cfg.OnlineTTL)

	avatars, err := storage.NewAvatarStore(cfg.AvatarDir)
	if err != nil {
		log.Fatalf("Failed to init avatar store: %v", err)
	}

	server := handlers.NewServer(system, eng, metrics, hub, avatars, db)
	server.MetricsEnabled = cfg.Server.MetricsEnabled

	router := mux.NewRouter()
	router.HandleFunc("/health", server.HandleHealth()).Methods("GET")

	router.HandleFunc("/user/register", server.HandleUserRegistration()).Methods("POST")
	router.HandleFunc("/user/login", server.HandleUserLogin()).Methods("POST")
	router.HandleFunc("/user/logout", server.HandleUserLogout()).Methods("GET", "POST")
	router.HandleFunc("/user/profile", server.HandleUserProfile()).Methods("GET")
	router.HandleFunc("/user/profile", server.HandleUpdateProfile()).Methods("POST")
	router.HandleFunc("/user/heartbeat", server.HandleHeartbeat()).Methods("POST")
	router.HandleFunc("/avatars/{ref}", server.HandleAvatar()).Methods("GET")

	router.HandleFunc("/conversations", server.HandleListConversations()).Methods("GET")
	router.HandleFunc("/messages", server.HandleGetMessages()).Methods("GET")
	router.HandleFunc("/messages", server.HandleSendMessage()).Methods("POST")
	router.HandleFunc("/messages/read", server.HandleMarkRead()).Methods("POST")

	router.HandleFunc("/calls/initiate", server.HandleInitiateCall()).Methods("POST")
	router.HandleFunc("/calls/accept", server.HandleAcceptCall()).Methods("POST")
	router.HandleFunc("/calls/decline", server.HandleDeclineCall()).Methods("POST")
	router.HandleFunc("/calls/end", server.HandleEndCall()).Methods("POST")
	router.HandleFunc("/calls/signal", server.HandleCallSignal()).Methods("POST")

	router.HandleFunc("/notifications", server.HandleGetNotifications()).Methods("GET")
	router.HandleFunc("/notifications/read", server.HandleMarkNotificationsRead()).Methods("POST")

	router.HandleFunc("/ws", server.HandleWebSocket())

	cors := middleware.CORSMiddleware(middleware.DefaultCORSConfig(cfg.AllowedOrigins))
	handler := cors(middleware.JWTMiddleware(router))

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	httpServer := &http.Server{Addr: addr, Handler: handler}

	go func() {
		<-ctx.Done()
		log.Println("Shutting down")
		httpServer.Shutdown(context.Background())
	}()

	log.Printf("Starting server on %s", addr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Server failed to start: %v", err)
	}
}
