package config_test

import (
	"errors"
	"testing"

	"github.com/okian/cadence/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.StorePath, convey.ShouldEqual, "")
			convey.So(cfg.BatchLimit, convey.ShouldEqual, 500)
			convey.So(cfg.ScoreMin, convey.ShouldEqual, 0)
			convey.So(cfg.ScoreMax, convey.ShouldEqual, 2)
			convey.So(cfg.LeadershipWeight, convey.ShouldEqual, 0.6)
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given configs violating constraints", t, func() {
		cases := map[string]func(*config.Config){
			"tiny batch":       func(c *config.Config) { c.BatchLimit = 3 },
			"inverted scores":  func(c *config.Config) { c.ScoreMin = 3 },
			"inverted buckets": func(c *config.Config) { c.LowMax = 4 },
			"weight above one": func(c *config.Config) { c.LeadershipWeight = 1.5 },
			"empty addr":       func(c *config.Config) { c.Addr = "" },
		}
		for name, mutate := range cases {
			convey.Convey("When validating with "+name, func() {
				cfg := config.New()
				mutate(cfg)
				err := cfg.Validate()

				convey.Convey("Then it reports an invalid config", func() {
					convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				})
			})
		}
	})
}
