package service_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	service "github.com/okian/cadence/internal/app"
	"github.com/okian/cadence/internal/domain/model"
	"github.com/okian/cadence/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	// Initialize logging for tests
	err := logger.Init()
	if err != nil {
		panic(err)
	}
}

func TestService_New(t *testing.T) {
	Convey("Given a new service with default options", t, func() {
		svc := service.New()

		Convey("Then it should have sensible defaults", func() {
			So(svc, ShouldNotBeNil)
			stats := svc.GetStats(context.Background())
			So(stats["started"], ShouldEqual, false)
			So(stats["batchLimit"], ShouldEqual, 500)
		})
	})
}

func TestService_Start(t *testing.T) {
	Convey("Given a new service", t, func() {
		ctx := context.Background()
		svc := service.New()
		defer svc.Stop()

		Convey("When calling an operation before starting", func() {
			_, err := svc.ListCycles(ctx)

			Convey("Then it reports the service is not started", func() {
				So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
			})
		})

		Convey("When starting the service", func() {
			err := svc.Start(ctx)

			Convey("Then it should start successfully", func() {
				So(err, ShouldBeNil)
			})

			Convey("And it should be marked as started", func() {
				stats := svc.GetStats(ctx)
				So(stats["started"], ShouldEqual, true)
				So(stats["cycles"], ShouldEqual, 0)
			})

			Convey("And starting twice is harmless", func() {
				So(svc.Start(ctx), ShouldBeNil)
			})
		})
	})
}

func TestService_Stop(t *testing.T) {
	Convey("Given a started service", t, func() {
		ctx := context.Background()
		svc := service.New()
		So(svc.Start(ctx), ShouldBeNil)

		Convey("When stopping the service", func() {
			svc.Stop()

			Convey("Then it should be marked as stopped", func() {
				stats := svc.GetStats(ctx)
				So(stats["started"], ShouldEqual, false)
			})

			Convey("And stopping again is harmless", func() {
				So(func() { svc.Stop() }, ShouldNotPanic)
			})
		})
	})
}

func TestService_SQLitePersistence(t *testing.T) {
	Convey("Given a service backed by a SQLite file", t, func() {
		ctx := context.Background()
		path := filepath.Join(t.TempDir(), "cadence.db")
		svc := service.New(service.WithStorePath(path))
		So(svc.Start(ctx), ShouldBeNil)
		So(svc.ImportParticipants(ctx, team()), ShouldBeNil)
		start, err := model.ParsePeriod("2025-01")
		So(err, ShouldBeNil)
		_, err = svc.GenerateNextCycle(ctx, &start)
		So(err, ShouldBeNil)
		svc.Stop()

		Convey("When a new service opens the same file", func() {
			again := service.New(service.WithStorePath(path))
			So(again.Start(ctx), ShouldBeNil)
			defer again.Stop()
			cycles, err := again.ListCycles(ctx)

			Convey("Then the generated cycles are still there", func() {
				So(err, ShouldBeNil)
				So(cycles, ShouldHaveLength, 3)
				So(cycles[2].Kind, ShouldEqual, model.CycleThreeSixty)
			})
		})
	})
}
