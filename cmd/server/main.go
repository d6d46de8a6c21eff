package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"typerace/internal/cache"
	"typerace/internal/config"
	"typerace/internal/corpus"
	"typerace/internal/repository"
	"typerace/internal/service"
	"typerace/internal/textgen"
	"typerace/internal/transport/rest"
	"typerace/internal/transport/ws"
)

func main() {
	log.Println("started")
	ctx := context.Background()
	cfg := config.Load()

	// Corpus: embedded by default, MongoDB when configured
	var provider corpus.Provider = corpus.Default()
	if cfg.MongoURI != "" {
		mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			log.Fatal("Failed to connect to MongoDB:", err)
		}
		defer mongoClient.Disconnect(ctx)

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := mongoClient.Ping(pingCtx, nil); err != nil {
			log.Fatal("Failed to ping MongoDB:", err)
		}
		log.Println("Connected to MongoDB")

		provider = loadCorpus(ctx, repository.NewCorpusRepo(mongoClient.Database(cfg.MongoDB)))
	}

	gen := textgen.New(provider, nil)

	// Redis leaderboard, optional
	var opts []service.Option
	var leaderboard cache.LeaderboardCache
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()

		if _, err := rdb.Ping(ctx).Result(); err != nil {
			log.Fatal("Failed to ping Redis:", err)
		}
		log.Println("Connected to Redis")

		leaderboard = cache.NewLeaderboardCache(rdb)
		opts = append(opts, service.WithLeaderboard(leaderboard))
	}

	roomSvc := service.NewRoomService(gen, opts...)

	wsHub := ws.NewHub()
	roomSvc.SetBroadcaster(wsHub)
	log.Println("WebSocket hub started")

	router := rest.NewRouter(&rest.Container{
		RoomService: roomSvc,
		Leaderboard: leaderboard,
		WSHub:       wsHub,
	})

	srv := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: router,
	}

	go func() {
		log.Printf("Server starting on :%s", cfg.HTTPPort)
		log.Println("Endpoints:")
		log.Println("  WS  /v1/ws")
		log.Println("  GET /v1/rooms/{id}")
		log.Println("  GET /v1/rooms/{id}/leaderboard")
		log.Println("  GET /health")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("ListenAndServe:", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	wsHub.CloseAll()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exited")
}

// loadCorpus reads the word and sentence banks from Mongo, falling back to
// the embedded corpus for whichever bank is missing or empty.
func loadCorpus(ctx context.Context, repo repository.CorpusRepo) corpus.Provider {
	def := corpus.Default()

	words, err := repo.Words(ctx)
	if err != nil || len(words) == 0 {
		log.Printf("Mongo word bank unavailable, using embedded corpus (err: %v)", err)
		words = def.Words()
	}

	sentences, err := repo.Sentences(ctx)
	if err != nil || len(sentences) == 0 {
		log.Printf("Mongo sentence bank unavailable, using embedded corpus (err: %v)", err)
		sentences = def.Sentences()
	}

	return corpus.NewStatic(words, sentences)
}
