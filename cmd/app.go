package cmd

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"exchange-backend/config"
	"exchange-backend/controller"
	"exchange-backend/dao"
	"exchange-backend/pkg/event"
	"exchange-backend/pkg/notify"
	"exchange-backend/pkg/redislock"
	"exchange-backend/usecase"
)

// app owns the long-lived dependencies of one process.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	db       *sql.DB
	redis    *redis.Client
	bus      *event.Bus
	usecases controller.Usecases
}

func openDB(ctx context.Context, cfg config.MySQLConfig) (*sql.DB, error) {
	db, err := sql.Open("mysql", cfg.DSN())
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(cfg.MaxOpen)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to db: %w", err)
	}
	return db, nil
}

func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger, bus: event.NewBus(logger)}

	var store dao.Store
	switch cfg.Storage.Driver {
	case "memory":
		logger.Warn("using in-memory store, data is lost on exit")
		store = dao.NewMemoryStore()
	default:
		db, err := openDB(ctx, cfg.MySQL)
		if err != nil {
			return nil, err
		}
		a.db = db
		store = dao.NewMySQLStore(db, logger)
		logger.Info("connected to database", zap.String("database", cfg.MySQL.Database))
	}

	var locker redislock.Locker = redislock.Local{}
	if cfg.Redis.Addr != "" {
		a.redis = redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		rl, err := redislock.New(a.redis, cfg.Reminder.LockTTL, logger)
		if err != nil {
			a.Close()
			return nil, err
		}
		locker = rl
	}

	var pusher notify.Pusher
	if cfg.Line.ChannelAccessToken != "" {
		pusher = notify.NewLineClient(cfg.Line.Endpoint, cfg.Line.ChannelAccessToken, cfg.Reminder.DeliveryTimeout)
	} else {
		logger.Info("LINE channel access token not set, push notifications disabled")
	}
	var mailer notify.Mailer
	if cfg.SMTP.Username != "" {
		from := cfg.SMTP.From
		if from == "" {
			from = cfg.SMTP.Username
		}
		mailer = notify.NewSMTPMailer(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password, from)
	} else {
		logger.Info("smtp credentials not set, email disabled")
	}
	dispatcher := notify.NewDispatcher(pusher, mailer, notify.DefaultBreakerConfig(), cfg.Reminder.DeliveryTimeout, logger)

	reviews := usecase.NewReviewUsecase(store, a.bus, logger)
	reviews.Subscribe(a.bus)
	usecase.NewReputationUsecase(store, dispatcher, logger).Subscribe(a.bus)

	users := usecase.NewUserUsecase(store, logger)
	transactions := usecase.NewTransactionUsecase(store, a.bus, logger)
	a.usecases = controller.Usecases{
		Items:        usecase.NewItemUsecase(store, logger),
		Users:        users,
		Transactions: transactions,
		Reviews:      reviews,
		Line:         usecase.NewLineUsecase(store, users, transactions, dispatcher, logger),
		Reminders: usecase.NewReminderUsecase(store, dispatcher, locker, usecase.ReminderConfig{
			LeadTime: cfg.Reminder.LeadTime,
			BaseURL:  cfg.Reminder.BaseURL,
		}, logger),
	}
	return a, nil
}

func (a *app) routerOptions() controller.Options {
	return controller.Options{
		LineChannelSecret: a.cfg.Line.ChannelSecret,
		SweepTriggerToken: a.cfg.Reminder.TriggerToken,
	}
}

// Close drains in-flight event handlers, then releases connections.
func (a *app) Close() error {
	var errs []error
	if err := a.bus.Wait(); err != nil {
		errs = append(errs, err)
	}
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	return errors.Join(errs...)
}
