package app

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/aq2208/stitch-order-api/configs"
	"github.com/aq2208/stitch-order-api/internal/adapter/ai"
	"github.com/aq2208/stitch-order-api/internal/adapter/cache"
	"github.com/aq2208/stitch-order-api/internal/adapter/http"
	"github.com/aq2208/stitch-order-api/internal/adapter/http/middleware"
	"github.com/aq2208/stitch-order-api/internal/adapter/kafka"
	"github.com/aq2208/stitch-order-api/internal/adapter/observ"
	"github.com/aq2208/stitch-order-api/internal/adapter/queue"
	"github.com/aq2208/stitch-order-api/internal/adapter/repo"
	"github.com/aq2208/stitch-order-api/internal/adapter/storage"
	"github.com/aq2208/stitch-order-api/internal/draft"
	"github.com/aq2208/stitch-order-api/internal/entity"
	"github.com/aq2208/stitch-order-api/internal/logging"
	"github.com/aq2208/stitch-order-api/internal/usecase"
	"github.com/gin-gonic/gin"
	_ "github.com/go-sql-driver/mysql"
	"github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
)

type App struct {
	Router *gin.Engine
	// Workers run alongside the HTTP server until ctx is cancelled.
	Workers []func(ctx context.Context) error
}

type stores struct {
	orders usecase.OrderStore
	staff  usecase.StaffDirectory
}

func InitWithConfig(ctx context.Context, cfg configs.Config) (*App, func(), error) {
	log := logging.New("bootstrap")
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*App, func(), error) {
		cleanup()
		return nil, nil, err
	}

	// storage
	st, closeDB, err := openStores(ctx, cfg)
	if err != nil {
		return fail(err)
	}
	closers = append(closers, closeDB)

	// redis: optional read cache, role cache and idempotency keys
	var (
		orderCache usecase.OrderCache
		roleCache  usecase.RoleCache
		idem       usecase.IdempotencyStore
	)
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := rdb.Ping(pctx).Err()
		cancel()
		if err != nil {
			_ = rdb.Close()
			return fail(fmt.Errorf("redis ping: %w", err))
		}
		closers = append(closers, func() { _ = rdb.Close() })
		orderCache = cache.NewRedisOrderCache(rdb, cfg.Cache.OrdersTTL)
		roleCache = cache.NewRedisRoleCache(rdb)
		idem = cache.NewRedisIdempotencyStore(rdb, cfg.Idempotency.TTL)
	} else {
		log.Warn("redis not configured: caching and idempotency keys disabled")
	}

	// rabbitmq: status change notifications
	var publisher usecase.EventPublisher
	if cfg.Rabbit.URL != "" {
		conn, err := amqp091.Dial(cfg.Rabbit.URL)
		if err != nil {
			return fail(fmt.Errorf("rabbitmq dial: %w", err))
		}
		closers = append(closers, func() { _ = conn.Close() })
		ch, err := conn.Channel()
		if err != nil {
			return fail(fmt.Errorf("rabbitmq channel: %w", err))
		}
		p, err := queue.NewRabbitPublisher(ch, queue.Topology{
			Exchange:   cfg.Rabbit.Exchange,
			RoutingKey: cfg.Rabbit.RoutingKey,
			Queue:      cfg.Rabbit.Queue,
		})
		if err != nil {
			return fail(err)
		}
		publisher = p
	} else {
		log.Warn("rabbitmq not configured: status notifications are only counted")
	}

	files, err := storage.NewLocalStore(cfg.Storage.Dir, cfg.Storage.PublicBaseURL)
	if err != nil {
		return fail(err)
	}

	// use cases
	coord := usecase.NewCoordinator(usecase.Deps{
		Store: st.orders,
		Staff: st.staff,
		Files: files,
		Assessor: observ.NewAssessor(ai.NewAssessor(ai.Config{
			URL:     cfg.Assessment.URL,
			APIKey:  cfg.Assessment.APIKey,
			Timeout: cfg.Assessment.Timeout,
		})),
		Editor: ai.NewEditor(ai.Config{
			URL:     cfg.ImageEdit.URL,
			APIKey:  cfg.ImageEdit.APIKey,
			Timeout: cfg.ImageEdit.Timeout,
		}),
		Events:          observ.NewPublisher(publisher),
		Cache:           orderCache,
		SyncConcurrency: cfg.Sync.MaxConcurrency,
	})
	query := usecase.NewOrderQuery(st.orders, orderCache)
	drafts := usecase.NewDrafts(coord, draft.NewRegistry())
	identity := usecase.NewIdentityResolver(st.staff, roleCache, cfg.Cache.RolesTTL)
	placer := usecase.NewPlaceOrder(st.orders, orderCache)

	app := &App{}

	// kafka: storefront checkouts
	if len(cfg.Kafka.Brokers) > 0 {
		grp, err := kafka.NewGroup(cfg.Kafka.Brokers, cfg.Kafka.GroupID)
		if err != nil {
			return fail(fmt.Errorf("kafka group: %w", err))
		}
		closers = append(closers, func() { _ = grp.Close() })
		topic := cfg.Kafka.TopicOrdersPlaced
		if topic == "" {
			topic = kafka.TopicOrdersPlaced
		}
		h := kafka.NewOrderPlacedHandler(placer)
		consumer := kafka.NewConsumer(grp, []string{topic}, h.Handle)
		app.Workers = append(app.Workers, consumer.Start)
	} else {
		log.Warn("kafka not configured: orders are not ingested")
	}

	// http
	app.Router = http.NewRouter(http.RouterDeps{
		Config:      cfg,
		Orders:      http.NewOrderHandler(coord, query, drafts, cfg.HTTP.RequestTimeout, cfg.HTTP.UploadTimeout),
		Tokens:      http.NewTokenHandler(cfg),
		Authz:       middleware.NewAuthz(cfg, identity),
		Idempotency: idem,
	})

	log.Info("order-api: wired", "store", cfg.Store.Driver)
	return app, cleanup, nil
}

func openStores(ctx context.Context, cfg configs.Config) (stores, func(), error) {
	if cfg.Store.Driver == "memory" {
		m := repo.NewMemoryStore()
		for _, s := range cfg.Store.Seed.Staff {
			m.AddStaff(entity.StaffMember{ID: s.ID, Name: s.Name, Role: entity.Role(s.Role)})
		}
		return stores{orders: m, staff: m}, func() {}, nil
	}

	db, err := sql.Open("mysql", cfg.MySQL.DSN)
	if err != nil {
		return stores{}, nil, err
	}
	db.SetConnMaxLifetime(cfg.MySQL.ConnMaxLifetime)
	db.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MySQL.MaxIdleConns)

	pctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()
	if err := db.PingContext(pctx); err != nil {
		_ = db.Close()
		return stores{}, nil, fmt.Errorf("mysql ping: %w", err)
	}

	orders := repo.NewMySQLOrderRepo(db)
	if cfg.MySQL.Migrate {
		if err := orders.Migrate(pctx); err != nil {
			_ = db.Close()
			return stores{}, nil, fmt.Errorf("migrate: %w", err)
		}
	}
	return stores{orders: orders, staff: repo.NewMySQLStaffRepo(db)}, func() { _ = db.Close() }, nil
}
