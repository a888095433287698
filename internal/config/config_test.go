package config_test

import (
	"errors"
	"testing"
	"time"

	"github.com/okian/gradecast/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with defaults", t, func() {
		cfg := config.New()

		convey.Convey("Then it should keep the observed thresholds", func() {
			convey.So(cfg.BatchThreshold, convey.ShouldEqual, 60)
			convey.So(cfg.ManualThreshold, convey.ShouldEqual, 55)
			convey.So(cfg.ConfidenceMin, convey.ShouldEqual, 65)
			convey.So(cfg.ConfidenceMax, convey.ShouldEqual, 95)
			convey.So(cfg.ConfidenceJitter, convey.ShouldEqual, 10)
		})

		convey.Convey("Then it should have sensible service defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.StoreDriver, convey.ShouldEqual, "sqlite")
			convey.So(cfg.MaxUploadBytes, convey.ShouldEqual, 10<<20)
			convey.So(cfg.SyncWorkers, convey.ShouldEqual, 4)
			convey.So(cfg.CORSAllowedOrigins, convey.ShouldResemble, []string{"*"})
			convey.So(cfg.StoreTimeout(), convey.ShouldEqual, 10*time.Second)
			convey.So(cfg.MirrorTimeout(), convey.ShouldEqual, 10*time.Second)
			convey.So(cfg.SyncJoinTimeout(), convey.ShouldEqual, 0)
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})

		convey.Convey("Then the mirror should need credentials", func() {
			convey.So(cfg.MirrorConfigured(), convey.ShouldBeFalse)
			cfg.MirrorAPIKey, cfg.MirrorSheetID = "k", "s"
			convey.So(cfg.MirrorConfigured(), convey.ShouldBeTrue)
			cfg.MirrorEnabled = false
			convey.So(cfg.MirrorConfigured(), convey.ShouldBeFalse)
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given invalid settings", t, func() {
		cases := map[string]func(*config.Config){
			"empty addr":        func(c *config.Config) { c.Addr = " " },
			"inverted bounds":   func(c *config.Config) { c.ConfidenceMin, c.ConfidenceMax = 90, 10 },
			"negative jitter":   func(c *config.Config) { c.ConfidenceJitter = -1 },
			"unknown driver":    func(c *config.Config) { c.StoreDriver = "postgres" },
			"zero upload limit": func(c *config.Config) { c.MaxUploadBytes = 0 },
			"zero queue":        func(c *config.Config) { c.SyncQueueSize = 0 },
			"negative join":     func(c *config.Config) { c.SyncJoinTimeoutMS = -5 },
		}
		for name, mutate := range cases {
			convey.Convey("When "+name, func() {
				cfg := config.New()
				mutate(cfg)
				convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		}
	})
}
