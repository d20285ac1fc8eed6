package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/robfig/cron/v3"

	"finance-ledger/internal/balance"
	"finance-ledger/internal/config"
	"finance-ledger/internal/database"
	"finance-ledger/internal/digest"
	"finance-ledger/internal/ledger"
	"finance-ledger/internal/logger"
	"finance-ledger/internal/processor"
	"finance-ledger/internal/rates"
	"finance-ledger/internal/stats"
)

func main() {
	log := logger.New()
	cfg := config.Load()

	ctx := logger.WithContext(context.Background(), log)
	db, err := database.New(ctx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize MongoDB")
	}
	defer db.Close(ctx)

	if err := db.EnsureIndexes(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to create indexes")
	}

	rateTable, err := rates.ParseTable(cfg.Rates)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid CURRENCY_RATES")
	}

	// Every component is constructed once here and handed its
	// collaborators explicitly.
	accounts := ledger.NewAccountService(database.NewAccountStore(db))
	categories := ledger.NewDimensionService(database.NewCategoryStore(db))
	incomes := ledger.NewDimensionService(database.NewIncomeSourceStore(db))
	aggregator := balance.NewAggregator(
		database.NewBalanceStore(db),
		rates.NewFixedProvider(rateTable),
		cfg.HomeCurrency,
	)
	orchestrator := stats.NewOrchestrator(
		database.NewTotalStatStore(db),
		database.NewCategoryStatStore(db),
		database.NewIncomeStatStore(db),
		database.NewAccountStatStore(db),
		database.NewAccountPairStatStore(db),
	)
	proc := processor.New(
		db.UnitOfWork(),
		database.NewTransactionStore(db),
		accounts, categories, incomes,
		aggregator, orchestrator,
	)

	c := cron.New()
	if cfg.DigestEnabled() {
		bot, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create Telegram bot")
		}
		bot.Debug = false

		monthly := digest.New(proc, orchestrator, aggregator, categories, bot, cfg.DigestChatID, cfg.DigestUserID)
		_, err = c.AddFunc("0 9 1 * *", func() {
			log.Info().Msg("sending monthly digest")
			if err := monthly.SendMonthly(ctx); err != nil {
				log.Error().Err(err).Msg("monthly digest failed")
			}
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to add cron job")
		}
	} else {
		log.Info().Msg("monthly digest not configured, skipping")
	}
	c.Start()
	defer c.Stop()

	log.Info().Msg("ledger backend is running")

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	<-stop

	log.Info().Msg("shutting down")
}
