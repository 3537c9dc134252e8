package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with a dedicated registry and custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test"),
				WithSubsystem("cycles"),
				WithDurationBuckets([]float64{1, 10, 100}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then the metrics are registered under the namespace", func() {
				So(manager, ShouldNotBeNil)
				manager.cyclesGenerated.WithLabelValues("threesixty").Inc()
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				names := make([]string, 0, len(families))
				for _, f := range families {
					names = append(names, f.GetName())
				}
				So(names, ShouldContain, "test_cycles_cycles_generated_total")
				So(manager.histogramBuckets, ShouldResemble, []float64{1, 10, 100})
			})
		})

		Convey("When creating without options", func() {
			manager := NewManager(WithPrometheusRegistry(prometheus.NewRegistry()), WithMetricsEnabled(false))

			Convey("Then durations use millisecond buckets and recording is off", func() {
				So(manager.histogramBuckets, ShouldResemble, DefaultDurationBuckets)
				So(manager.enabled, ShouldBeFalse)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the global manager", t, func() {
		Convey("When recording generation metrics", func() {
			before := testutil.ToFloat64(globalManager.evaluationsCreated.WithLabelValues("peer"))
			RecordEvaluationsCreated("peer", 3)
			RecordEvaluationsCreated("peer", 0)

			Convey("Then the counter advances by the created count", func() {
				after := testutil.ToFloat64(globalManager.evaluationsCreated.WithLabelValues("peer"))
				So(after-before, ShouldEqual, 3)
			})
		})

		Convey("When recording publish outcomes", func() {
			before := testutil.ToFloat64(globalManager.publishOutcomes.WithLabelValues("already_published"))
			RecordPublishOutcome("already_published")

			Convey("Then the labelled counter advances", func() {
				after := testutil.ToFloat64(globalManager.publishOutcomes.WithLabelValues("already_published"))
				So(after-before, ShouldEqual, 1)
			})
		})

		Convey("When recording the remaining helpers", func() {
			So(func() {
				RecordCycleGenerated("one-to-one")
				RecordSkippedEdges(2)
				RecordDuplicateTriple()
				RecordBatchCommitted(12)
				RecordBatchFailed()
				RecordGenerationDuration(4.5)
				RecordPairingsResolved(3, 1)
				RecordSelfFallback()
				RecordResolutionDuration(1.2)
				RecordEvaluationSubmitted()
				UpdatePublishedSequence(42)
				RecordStoreLatency("memory", "commit", 0.3)
				RecordStoreError("sqlite", "query")
				UpdateStoredDocuments("evaluations", 17)
				RecordHTTPRequest("/cycles", "GET", "200")
				RecordHTTPRequestDuration("/cycles", "GET", "200", 3)
				RecordErrorByComponent("generator", "batch_failed")
				RecordErrorByEndpoint("/cycles/generate", "POST", "conflict")
				UpdateSystemMemoryUsage(1024)
				UpdateSystemGoroutineCount(8)
				RecordSystemGCPauseTime(0.1)
			}, ShouldNotPanic)
		})

		Convey("When reading the registry", func() {
			So(GetRegistry(), ShouldNotBeNil)
		})
	})
}
