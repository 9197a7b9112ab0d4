package container

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"pricebot/internal/application/port"
	"pricebot/internal/infrastructure/config"
	"pricebot/internal/infrastructure/storage"
	"pricebot/internal/infrastructure/storage/composite"
	pgrepo "pricebot/internal/infrastructure/storage/postgres"
	redisrepo "pricebot/internal/infrastructure/storage/redis"
	sqliterepo "pricebot/internal/infrastructure/storage/sqlite"
)

// Container 持有存储层依赖及其关闭顺序
type Container struct {
	cfg          *config.Config
	redisClient  *redis.Client
	sqliteRepo   *sqliterepo.Repo
	postgresRepo *pgrepo.Repo
	redisRepo    *redisrepo.Repo
	memoryRepo   *storage.InMemoryRepo
	closeOnce    sync.Once
	closerChain  []func() error
}

// New 创建新的容器实例
func New(cfg *config.Config) (*Container, error) {
	c := &Container{
		cfg:         cfg,
		closerChain: make([]func() error, 0),
	}

	if err := c.initStorage(); err != nil {
		// 清理已初始化的资源
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

// initStorage 初始化存储层（Redis、SQLite、Postgres）
func (c *Container) initStorage() error {
	if c.cfg.Storage.Redis.Enabled {
		if err := c.initRedis(); err != nil {
			return fmt.Errorf("redis init failed: %w", err)
		}
	}

	if c.cfg.Storage.SQLite.Enabled {
		if err := c.initSQLite(); err != nil {
			return fmt.Errorf("sqlite init failed: %w", err)
		}
	}

	if c.cfg.Storage.Postgres.Enabled {
		if err := c.initPostgres(); err != nil {
			return fmt.Errorf("postgres init failed: %w", err)
		}
	}

	if c.sqliteRepo == nil && c.postgresRepo == nil {
		c.memoryRepo = storage.NewInMemoryRepo()
		log.Warn().Msg("no database enabled, watchlists are kept in memory")
	}
	return nil
}

// initRedis 初始化 Redis 连接
func (c *Container) initRedis() error {
	rc := c.cfg.Storage.Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     rc.Addr,
		Password: rc.Password,
		DB:       rc.DB,
	})

	// 测试连接
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return fmt.Errorf("redis ping failed: %w", err)
	}

	c.redisClient = rdb
	c.redisRepo = redisrepo.New(rdb, rc.Prefix, time.Duration(rc.TTLSeconds)*time.Second)

	// 注册关闭回调
	c.closerChain = append(c.closerChain, func() error {
		log.Info().Msg("closing redis connection")
		return rdb.Close()
	})

	log.Info().
		Str("addr", rc.Addr).
		Int("db", rc.DB).
		Msg("redis initialized")
	return nil
}

// initSQLite 初始化 SQLite 数据库
func (c *Container) initSQLite() error {
	repo, err := sqliterepo.New(c.cfg.Storage.SQLite.Path)
	if err != nil {
		return err
	}
	c.sqliteRepo = repo

	c.closerChain = append(c.closerChain, func() error {
		log.Info().Msg("closing sqlite connection")
		return repo.Close()
	})

	log.Info().
		Str("path", c.cfg.Storage.SQLite.Path).
		Msg("sqlite initialized")
	return nil
}

// initPostgres 初始化 Postgres
func (c *Container) initPostgres() error {
	repo, err := pgrepo.New(c.cfg.Storage.Postgres.DSN)
	if err != nil {
		return err
	}
	c.postgresRepo = repo

	c.closerChain = append(c.closerChain, func() error {
		log.Info().Msg("closing postgres connection")
		return repo.Close()
	})

	log.Info().Msg("postgres initialized")
	return nil
}

// Config 获取配置
func (c *Container) Config() *config.Config {
	return c.cfg
}

// RedisClient 获取 Redis 客户端, 未启用时为 nil
func (c *Container) RedisClient() *redis.Client {
	return c.redisClient
}

// Watchlist returns the primary watchlist store: postgres, then sqlite,
// then memory.
func (c *Container) Watchlist() port.WatchlistRepository {
	switch {
	case c.postgresRepo != nil:
		return c.postgresRepo
	case c.sqliteRepo != nil:
		return c.sqliteRepo
	default:
		return c.memoryRepo
	}
}

// Snapshots fans out to every enabled snapshot sink.
func (c *Container) Snapshots() *composite.Repo {
	var sinks []port.SnapshotRepository
	if c.sqliteRepo != nil {
		sinks = append(sinks, c.sqliteRepo)
	}
	if c.postgresRepo != nil {
		sinks = append(sinks, c.postgresRepo)
	}
	if c.redisRepo != nil {
		sinks = append(sinks, c.redisRepo)
	}
	if c.memoryRepo != nil {
		sinks = append(sinks, c.memoryRepo)
	}
	return composite.New(sinks...)
}

// Publisher returns the redis message publisher when configured, else nil.
func (c *Container) Publisher() port.Publisher {
	if c.redisClient == nil || !c.cfg.Storage.Redis.Publisher {
		return nil
	}
	return redisrepo.NewPublisher(c.redisClient, c.cfg.Storage.Redis.Prefix)
}

// Close 关闭所有资源（按后进先出顺序）
func (c *Container) Close() error {
	var err error
	c.closeOnce.Do(func() {
		for i := len(c.closerChain) - 1; i >= 0; i-- {
			if e := c.closerChain[i](); e != nil {
				log.Error().Err(e).Msg("error closing resource")
				if err == nil {
					err = e
				}
			}
		}
		log.Info().Msg("container closed")
	})
	return err
}
