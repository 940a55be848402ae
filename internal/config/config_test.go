package config_test

import (
	"context"
	"errors"
	"runtime"
	"testing"
	"time"

	"github.com/okian/eventrank/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New(context.Background())

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.WorkerCount, convey.ShouldEqual, runtime.NumCPU())
			convey.So(cfg.EmbeddingMaxInputChars, convey.ShouldEqual, 2048)
			convey.So(cfg.WeightMajor, convey.ShouldEqual, 0.6)
			convey.So(cfg.WeightVector, convey.ShouldEqual, 0.4)
			convey.So(cfg.MajorBonus, convey.ShouldEqual, 1.0)
			convey.So(cfg.EmptyTargetsOpen, convey.ShouldBeTrue)
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})

		convey.Convey("Then duration helpers should convert milliseconds", func() {
			convey.So(cfg.EmbeddingTimeout(), convey.ShouldEqual, 10*time.Second)
			convey.So(cfg.EmbeddingBaseDelay(), convey.ShouldEqual, 500*time.Millisecond)
			convey.So(cfg.EmbeddingMaxDelay(), convey.ShouldEqual, 8*time.Second)
			convey.So(cfg.RedisTTL(), convey.ShouldEqual, time.Duration(0))
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given configs with invalid values", t, func() {
		cases := map[string]func(*config.Config){
			"empty addr":         func(c *config.Config) { c.Addr = "" },
			"zero workers":       func(c *config.Config) { c.WorkerCount = 0 },
			"zero concurrency":   func(c *config.Config) { c.EmbedConcurrency = 0 },
			"negative retries":   func(c *config.Config) { c.EmbeddingMaxRetries = -1 },
			"limit above max":    func(c *config.Config) { c.DefaultLimit = 500 },
			"unknown cache":      func(c *config.Config) { c.CacheBackend = "memcached" },
			"redis without addr": func(c *config.Config) { c.CacheBackend = config.BackendRedis; c.RedisAddr = "" },
			"pg cache no dsn":    func(c *config.Config) { c.CacheBackend = config.BackendPostgres },
			"unknown catalog":    func(c *config.Config) { c.CatalogBackend = "sqlite" },
		}

		for name, mutate := range cases {
			cfg := config.New(context.Background())
			mutate(cfg)

			convey.Convey("Then validation rejects "+name, func() {
				convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		}
	})
}
