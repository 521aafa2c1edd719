package main

import (
	"context"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/careerflow/interview/config"
	"github.com/careerflow/interview/internal/api/handlers"
	"github.com/careerflow/interview/internal/api/middleware"
	"github.com/careerflow/interview/internal/api/routes"
	"github.com/careerflow/interview/internal/cache"
	"github.com/careerflow/interview/internal/logger"
	"github.com/careerflow/interview/internal/models"
	"github.com/careerflow/interview/internal/providers/llm"
	"github.com/careerflow/interview/internal/providers/stt"
	"github.com/careerflow/interview/internal/providers/tts"
	mongorepo "github.com/careerflow/interview/internal/repositories/mongo"
	pgrepo "github.com/careerflow/interview/internal/repositories/postgres"
	"github.com/careerflow/interview/internal/services"
	"github.com/careerflow/interview/internal/storage"
	"github.com/careerflow/interview/internal/workers"
)

func main() {
	_ = godotenv.Load()
	log := logger.New()
	ctx := context.Background()

	if err := config.InitMongo(); err != nil {
		log.WithError(err).Fatal("mongo init failed")
	}
	if err := config.EnsureMongoIndexes(ctx); err != nil {
		log.WithError(err).Warn("mongo index setup failed")
	}
	if err := config.InitPostgres(); err != nil {
		log.WithError(err).Fatal("postgres init failed")
	}
	if err := config.InitRedis(); err != nil {
		log.WithError(err).Warn("redis init failed; context caching and recording archive disabled")
	}

	if err := config.PostgresDB.AutoMigrate(&models.Interview{}, &models.TranscriptLog{}); err != nil {
		log.WithError(err).Fatal("postgres migration failed")
	}

	dbName := os.Getenv("MONGO_DB")
	if dbName == "" {
		dbName = "interview"
	}

	sessions := services.NewSessionService(mongorepo.NewSessionRepo(config.MongoClient.Database(dbName)))
	interviews := services.NewInterviewService(pgrepo.NewInterviewRepo(config.PostgresDB))
	transcripts := services.NewTranscriptService(pgrepo.NewTranscriptRepo(config.PostgresDB))

	var ctxCache cache.Cache
	if config.RedisClient != nil {
		ctxCache = cache.NewRedisCache(config.RedisClient)
	}

	contextBase := os.Getenv("CONTEXT_API_URL")
	if contextBase == "" {
		log.Fatal("CONTEXT_API_URL environment variable is not set")
	}
	contexts := services.NewContextService(services.NewHTTPContextLoader(contextBase), ctxCache)

	llmProvider, err := llm.NewVertexGemini(ctx,
		os.Getenv("VERTEX_PROJECT"), os.Getenv("VERTEX_LOCATION"), os.Getenv("VERTEX_MODEL"))
	if err != nil {
		log.WithError(err).Fatal("vertex init failed")
	}
	defer llmProvider.Close()

	// voice providers are optional; a text-only deployment skips them
	var sttProvider stt.Provider
	if p, err := stt.NewGoogleSpeech(ctx, os.Getenv("STT_LANGUAGE")); err != nil {
		log.WithError(err).Warn("speech-to-text unavailable; voice sessions disabled")
	} else {
		sttProvider = p
		defer p.Close()
	}
	var ttsProvider tts.Provider
	if p, err := tts.NewGoogleTTS(ctx, os.Getenv("TTS_LANGUAGE"), os.Getenv("TTS_VOICE")); err != nil {
		log.WithError(err).Warn("text-to-speech unavailable; voice sessions disabled")
	} else {
		ttsProvider = p
		defer p.Close()
	}

	if bucket := os.Getenv("GCS_RECORDINGS_BUCKET"); bucket != "" && config.RedisClient != nil {
		store, err := storage.NewRecordingStore(ctx, bucket)
		if err != nil {
			log.WithError(err).Warn("recording store init failed; archive workers disabled")
		} else {
			defer store.Close()
			pool := &workers.ArchiveWorkerPool{
				Redis:    config.RedisClient,
				Sessions: sessions,
				Store:    store,
				Logger:   log,
			}
			if err := pool.Start(ctx); err != nil {
				log.WithError(err).Warn("archive workers failed to start")
			}
		}
	}

	ws := handlers.NewWSHandler(sessions, interviews, transcripts, contexts,
		llmProvider, sttProvider, ttsProvider, config.RedisClient, log)
	rest := handlers.NewInterviewHandler(interviews, transcripts, contexts, llmProvider, log)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(log))
	routes.Register(r, routes.Deps{WS: ws, Interviews: rest})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	log.WithField("port", port).Info("interview service listening")
	if err := r.Run(":" + port); err != nil {
		log.WithError(err).Fatal("server exited")
	}
}
