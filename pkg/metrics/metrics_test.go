package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with a private registry", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithPrometheusRegistry(registry))

			Convey("Then it should be created with the default namespace", func() {
				So(manager, ShouldNotBeNil)
				So(manager.namespace, ShouldEqual, "postflow")
			})
		})

		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test"),
				WithSubsystem("unit"),
				WithHistogramBuckets([]float64{1, 2, 3}),
				WithConstLabels(map[string]string{"env": "test"}),
				WithPrometheusRegistry(registry),
			)
			manager.rateLimitRejected.Inc()

			Convey("Then metrics should carry the options", func() {
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				var found bool
				for _, f := range families {
					if f.GetName() == "test_unit_rate_limit_rejections_total" {
						found = true
						So(f.GetMetric()[0].GetLabel()[0].GetValue(), ShouldEqual, "test")
					}
				}
				So(found, ShouldBeTrue)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the global metrics manager", t, func() {
		Convey("When recording publish outcomes", func() {
			before := testutil.ToFloat64(globalManager.publishes.WithLabelValues("ok"))
			RecordPublish("ok")
			RecordPublish("ok")

			Convey("Then the outcome counter should advance", func() {
				So(testutil.ToFloat64(globalManager.publishes.WithLabelValues("ok")), ShouldEqual, before+2)
			})
		})

		Convey("When recording uploads", func() {
			before := testutil.ToFloat64(globalManager.uploadBytes)
			RecordUpload(2048, 12.5)

			Convey("Then bytes should be counted", func() {
				So(testutil.ToFloat64(globalManager.uploadBytes), ShouldEqual, before+2048)
			})
		})

		Convey("When recording sweep removals", func() {
			before := testutil.ToFloat64(globalManager.sweepRemoved.WithLabelValues("broken"))
			RecordSweepRemoved("broken", 3)

			Convey("Then the labelled counter should advance by n", func() {
				So(testutil.ToFloat64(globalManager.sweepRemoved.WithLabelValues("broken")), ShouldEqual, before+3)
			})
		})

		Convey("When exercising every helper", func() {
			So(func() {
				RecordPublishLatency(10)
				RecordStageLatency("upload", 4)
				RecordDegradedStep("rewards")
				RecordRateLimitRejected()
				RecordUploadFailure()
				RecordVerificationFailure()
				RecordCompensatingDelete()
				RecordCommerceItem("created")
				RecordBadgeAwarded("animal")
				RecordBonusGrant()
				RecordRewardIssued("boost_token")
				RecordRewardClaimed()
				RecordTransactionRetry()
				RecordTransactionLatency(1)
				RecordSweepRun()
				UpdateQueueSize(3)
				RecordQueueEnqueue()
				RecordQueueDrop()
				RecordEventPublished()
				RecordEventFailed()
				UpdateWorkerCount(2)
				RecordHTTPRequest("/posts", "POST", "201")
				RecordHTTPRequestDuration("/posts", "POST", "201", 5)
				UpdateSystemMemoryUsage(1 << 20)
				UpdateSystemGoroutineCount(12)
			}, ShouldNotPanic)
		})

		Convey("Then the registry should be gatherable", func() {
			_, err := GetRegistry().Gather()
			So(err, ShouldBeNil)
		})
	})
}
