package config_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/okian/postflow/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()

		convey.Convey("When loading config with defaults only", func() {
			clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
				convey.So(cfg.StoreBackend, convey.ShouldEqual, config.BackendMemory)
				convey.So(cfg.PublishInterval(), convey.ShouldEqual, time.Minute)
				convey.So(cfg.SweepInterval(), convey.ShouldEqual, time.Hour)
				convey.So(cfg.MaxAssets, convey.ShouldEqual, 10)
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("POSTFLOW_ADDR", ":8080")
			_ = os.Setenv("POSTFLOW_PUBLISH_INTERVAL_MS", "15000")
			_ = os.Setenv("POSTFLOW_MAX_ASSETS", "4")
			_ = os.Setenv("POSTFLOW_KAFKA_BROKERS", "k1:9092, k2:9092")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.PublishInterval(), convey.ShouldEqual, 15*time.Second)
				convey.So(cfg.MaxAssets, convey.ShouldEqual, 4)
				convey.So(cfg.Brokers(), convey.ShouldResemble, []string{"k1:9092", "k2:9092"})
			})
		})

		convey.Convey("When loading config with both file and environment variables", func() {
			tmpFile := createTempConfigFile(`
addr: ":9090"
store_backend: mongo
mongo_uri: "mongodb://db:27017"
mongo_database: photos
rate_limit_backend: redis
redis_addr: "cache:6379"
max_assets: 6
`)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("POSTFLOW_CONFIG", tmpFile)
			_ = os.Setenv("POSTFLOW_MAX_ASSETS", "8")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then environment variables should override file values", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.StoreBackend, convey.ShouldEqual, config.BackendMongo)
				convey.So(cfg.MongoDatabase, convey.ShouldEqual, "photos")
				convey.So(cfg.RedisAddr, convey.ShouldEqual, "cache:6379")
				convey.So(cfg.MaxAssets, convey.ShouldEqual, 8)
			})
		})

		convey.Convey("When the config file does not exist", func() {
			_ = os.Setenv("POSTFLOW_CONFIG", "/non/existent/file.yaml")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should fail with a load error", func() {
				convey.So(cfg, convey.ShouldBeNil)
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the address is empty", func() {
			_ = os.Setenv("POSTFLOW_ADDR", "")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then validation should reject it", func() {
				convey.So(cfg, convey.ShouldBeNil)
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When an unknown backend is configured", func() {
			_ = os.Setenv("POSTFLOW_EVENTS_BACKEND", "carrier-pigeon")
			defer clearConfigEnvVars()

			_, err := config.Load(ctx)

			convey.Convey("Then validation should reject it", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "events_backend")
			})
		})
	})
}

func TestConfigValidate(t *testing.T) {
	convey.Convey("Given a default config", t, func() {
		cfg := config.New(context.Background())

		convey.Convey("Then it should be valid", func() {
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})

		convey.Convey("When the publish interval is zero", func() {
			cfg.PublishIntervalMS = 0
			convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
		})

		convey.Convey("When kafka is selected without brokers", func() {
			cfg.EventsBackend = config.BackendKafka
			cfg.KafkaBrokers = " , "
			convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
		})

		convey.Convey("When gridfs is selected without a bucket", func() {
			cfg.BlobBackend = config.BackendGridFS
			cfg.BlobBucket = ""
			convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
		})
	})
}

// Helper functions.

func clearConfigEnvVars() {
	envVars := []string{
		"POSTFLOW_CONFIG",
		"POSTFLOW_ADDR",
		"POSTFLOW_PUBLISH_INTERVAL_MS",
		"POSTFLOW_MAX_ASSETS",
		"POSTFLOW_KAFKA_BROKERS",
		"POSTFLOW_EVENTS_BACKEND",
	}
	for _, envVar := range envVars {
		_ = os.Unsetenv(envVar)
	}
}

func createTempConfigFile(content string) string {
	tmpFile, err := os.CreateTemp("", "postflow-config-*.yaml")
	if err != nil {
		panic(err)
	}
	if _, err := tmpFile.WriteString(content); err != nil {
		panic(err)
	}
	if err := tmpFile.Close(); err != nil {
		panic(err)
	}
	return tmpFile.Name()
}
