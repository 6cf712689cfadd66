package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/jhfnetboy/ETHChiangMai-Hachathon-2026-echoRank/internal/adapters/ai"
	"github.com/jhfnetboy/ETHChiangMai-Hachathon-2026-echoRank/internal/adapters/bot"
	"github.com/jhfnetboy/ETHChiangMai-Hachathon-2026-echoRank/internal/adapters/repo"
	"github.com/jhfnetboy/ETHChiangMai-Hachathon-2026-echoRank/internal/adapters/scraper"
	"github.com/jhfnetboy/ETHChiangMai-Hachathon-2026-echoRank/internal/domain"
	"github.com/jhfnetboy/ETHChiangMai-Hachathon-2026-echoRank/internal/infra/cache"
	"github.com/jhfnetboy/ETHChiangMai-Hachathon-2026-echoRank/internal/infra/config"
	"github.com/jhfnetboy/ETHChiangMai-Hachathon-2026-echoRank/internal/infra/db"
	infrahttp "github.com/jhfnetboy/ETHChiangMai-Hachathon-2026-echoRank/internal/infra/http"
	"github.com/jhfnetboy/ETHChiangMai-Hachathon-2026-echoRank/internal/infra/log"
	"github.com/jhfnetboy/ETHChiangMai-Hachathon-2026-echoRank/internal/infra/metrics"
	"github.com/jhfnetboy/ETHChiangMai-Hachathon-2026-echoRank/internal/usecase/feedback"
	"github.com/jhfnetboy/ETHChiangMai-Hachathon-2026-echoRank/internal/usecase/report"
	"github.com/jhfnetboy/ETHChiangMai-Hachathon-2026-echoRank/internal/usecase/session"
	"github.com/jhfnetboy/ETHChiangMai-Hachathon-2026-echoRank/internal/usecase/submission"
	"github.com/jhfnetboy/ETHChiangMai-Hachathon-2026-echoRank/internal/usecase/voiceprint"
)

func main() {
	cfg := config.Load()
	logger := log.NewLogger(cfg.AppEnv)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	pool, err := db.Connect(cfg.PGDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("не удалось подключиться к БД")
	}
	defer pool.Close()

	var reportCache domain.Cache
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer redisClient.Close()
		reportCache = cache.NewRedis(redisClient)
	}

	repoAdapter := repo.NewPostgres(pool)
	aiClient := ai.NewClient(cfg.AI.BaseURL, cfg.AI.Timeout)
	fetcher := scraper.NewHTTPFetcher(cfg.Scraper.Timeout)
	sessions := session.NewStore(cfg.Session.TTL)

	submissionService := submission.NewService(repoAdapter, fetcher, aiClient, logger)
	feedbackService := feedback.NewService(sessions, repoAdapter, aiClient, logger)
	reportService := report.NewService(repoAdapter, repoAdapter, aiClient, reportCache, cfg.Report.CacheTTL, logger)
	voiceService := voiceprint.NewService(sessions, aiClient, logger)

	botAPI, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		logger.Fatal().Err(err).Msg("не удалось создать бота")
	}
	if cfg.Telegram.WebhookURL != "" {
		wh, err := tgbotapi.NewWebhook(cfg.Telegram.WebhookURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("некорректный webhook URL")
		}
		if _, err := botAPI.Request(wh); err != nil {
			logger.Fatal().Err(err).Msg("не удалось зарегистрировать webhook")
		}
	}

	h := bot.NewHandler(botAPI, logger, submissionService, feedbackService, reportService, voiceService, sessions, repoAdapter, cfg.AudioDir)

	srv := infrahttp.NewServer(logger)
	srv.Router.Post("/bot/webhook", func(w http.ResponseWriter, r *http.Request) {
		var update tgbotapi.Update
		if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.HandleUpdate(r.Context(), update)
		w.WriteHeader(http.StatusOK)
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	go metrics.StartServer(ctx, logger, cfg.MetricsAddr)

	go func() {
		logger.Info().Msg("бот-гейтвей запущен")
		if err := srv.Start(fmt.Sprintf(":%d", cfg.Port)); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("HTTP сервер остановлен")
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("остановка бота")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

var _ domain.ActivityRepo = (*repo.Postgres)(nil)
var _ domain.FeedbackRepo = (*repo.Postgres)(nil)
