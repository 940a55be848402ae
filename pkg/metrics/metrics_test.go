package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with default options on a fresh registry", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithPrometheusRegistry(registry))

			Convey("Then it should register collectors under the default namespace", func() {
				So(manager, ShouldNotBeNil)
				manager.recommendations.Inc()
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				found := false
				for _, f := range families {
					if f.GetName() == "eventrank_recommender_recommendations_total" {
						found = true
					}
				}
				So(found, ShouldBeTrue)
			})
		})

		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test_namespace"),
				WithSubsystem("test_subsystem"),
				WithHistogramBuckets([]float64{0.1, 0.5, 1.0}),
				WithMetricsEnabled(false),
				WithPrometheusRegistry(registry),
			)

			Convey("Then the options should be applied", func() {
				So(manager.namespace, ShouldEqual, "test_namespace")
				So(manager.subsystem, ShouldEqual, "test_subsystem")
				So(manager.histogramBuckets, ShouldResemble, []float64{0.1, 0.5, 1.0})
				So(manager.enabled, ShouldBeFalse)
			})
		})

		Convey("When empty option values are passed", func() {
			manager := NewManager(
				WithNamespace(""),
				WithSubsystem(""),
				WithHistogramBuckets(nil),
				WithPrometheusRegistry(prometheus.NewRegistry()),
			)

			Convey("Then defaults should be kept", func() {
				So(manager.namespace, ShouldEqual, "eventrank")
				So(manager.subsystem, ShouldEqual, "recommender")
				So(manager.histogramBuckets, ShouldResemble, prometheus.DefBuckets)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the global metrics manager", t, func() {
		Convey("When recording embedding outcomes", func() {
			before := testutil.ToFloat64(globalManager.embeddingRequests.WithLabelValues("transient"))
			RecordEmbeddingRequest("transient", 12.5)
			RecordEmbeddingRetry()

			Convey("Then the outcome counter should increase", func() {
				after := testutil.ToFloat64(globalManager.embeddingRequests.WithLabelValues("transient"))
				So(after-before, ShouldEqual, 1)
			})
		})

		Convey("When recording cache operations", func() {
			before := testutil.ToFloat64(globalManager.cacheOperations.WithLabelValues("memory", "get", "hit"))
			RecordCacheOperation("memory", "get", "hit")
			RecordCacheOperation("memory", "get", "hit")

			Convey("Then the labelled counter should increase", func() {
				after := testutil.ToFloat64(globalManager.cacheOperations.WithLabelValues("memory", "get", "hit"))
				So(after-before, ShouldEqual, 2)
			})
		})

		Convey("When recording recommendation metrics", func() {
			before := testutil.ToFloat64(globalManager.candidatesScored)
			RecordRecommendation(7, 3.2)
			RecordDegradedScore("event_embedding_missing")
			RecordDiagnosticRun()

			Convey("Then candidates should be accumulated", func() {
				So(testutil.ToFloat64(globalManager.candidatesScored)-before, ShouldEqual, 7)
			})
		})

		Convey("When recording queue and worker metrics", func() {
			Convey("Then nothing should panic", func() {
				So(func() {
					UpdateQueueSize(10)
					UpdateQueueCapacity(100)
					UpdateQueueUtilization(0.1)
					RecordQueueEnqueue()
					RecordQueueDequeue()
					RecordQueueEnqueueError()
					UpdateWorkerCount(4)
					RecordWorkerProcessingLatency(2)
					RecordWorkerError()
					RecordEmbeddingJobDuplicate()
					RecordEmbeddingJobApplied()
				}, ShouldNotPanic)
				So(testutil.ToFloat64(globalManager.queueCapacity), ShouldEqual, 100)
			})
		})

		Convey("When recording HTTP and system metrics", func() {
			Convey("Then nothing should panic", func() {
				So(func() {
					RecordHTTPRequest("/stats", "GET", "200")
					RecordHTTPRequestDuration("/stats", "GET", "200", 1.5)
					RecordErrorByComponent("embedding", "transient")
					UpdateSystemMemoryUsage(1024)
					UpdateSystemGoroutineCount(12)
					RecordSystemGCPauseTime(0.3)
				}, ShouldNotPanic)
			})
		})
	})
}

func TestRegistryExposition(t *testing.T) {
	Convey("Given the custom registry", t, func() {
		RecordRecommendation(1, 1)

		Convey("Then it should expose only service metrics", func() {
			count, err := testutil.GatherAndCount(GetRegistry(), "eventrank_recommender_recommendations_total")
			So(err, ShouldBeNil)
			So(count, ShouldEqual, 1)

			families, err := GetRegistry().Gather()
			So(err, ShouldBeNil)
			for _, f := range families {
				So(strings.HasPrefix(f.GetName(), "eventrank_"), ShouldBeTrue)
			}
		})
	})
}
