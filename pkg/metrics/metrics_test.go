package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	. "github.com/smartystreets/goconvey/convey"
)

// gathered returns the summed value of every sample in the named family.
func gathered(reg *prometheus.Registry, name string) (float64, bool) {
	families, err := reg.Gather()
	if err != nil {
		return 0, false
	}
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		var total float64
		for _, m := range f.GetMetric() {
			switch {
			case m.GetCounter() != nil:
				total += m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				total += m.GetGauge().GetValue()
			case m.GetHistogram() != nil:
				total += float64(m.GetHistogram().GetSampleCount())
			}
		}
		return total, true
	}
	return 0, false
}

func TestManagerCreation(t *testing.T) {
	Convey("Given a fresh registry", t, func() {
		registry := prometheus.NewRegistry()

		Convey("When creating a manager with custom options", func() {
			m := NewManager(
				WithNamespace("test"),
				WithSubsystem("unit"),
				WithHistogramBuckets([]float64{1, 10, 100}),
				WithConstLabels(map[string]string{"env": "test"}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then metrics are registered under the namespace", func() {
				So(m, ShouldNotBeNil)
				m.evaluations.WithLabelValues("completed").Inc()
				v, ok := gathered(registry, "test_unit_evaluations_total")
				So(ok, ShouldBeTrue)
				So(v, ShouldEqual, 1)
			})

			Convey("Then const labels are attached", func() {
				m.queueSize.Set(3)
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				found := false
				for _, f := range families {
					if f.GetName() != "test_unit_queue_size" {
						continue
					}
					for _, lp := range f.GetMetric()[0].GetLabel() {
						if lp.GetName() == "env" && lp.GetValue() == "test" {
							found = true
						}
					}
				}
				So(found, ShouldBeTrue)
			})
		})

		Convey("When a second manager registers on the same registry", func() {
			NewManager(WithPrometheusRegistry(registry))

			Convey("Then registration panics on duplicates", func() {
				So(func() { NewManager(WithPrometheusRegistry(registry)) }, ShouldPanic)
			})
		})
	})
}

func TestGlobalRecorders(t *testing.T) {
	Convey("Given the global registry", t, func() {
		reg := GetRegistry()

		Convey("When recording evaluation metrics", func() {
			before, _ := gathered(reg, "apsmatch_service_evaluations_total")
			RecordEvaluation("completed")
			RecordEvaluation("failed")
			after, ok := gathered(reg, "apsmatch_service_evaluations_total")

			Convey("Then the counters move", func() {
				So(ok, ShouldBeTrue)
				So(after-before, ShouldEqual, 2)
			})
		})

		Convey("When recording matches and APS totals", func() {
			beforeMatches, _ := gathered(reg, "apsmatch_service_match_confidence")
			beforeAPS, _ := gathered(reg, "apsmatch_service_aps_total")
			RecordMatch("exact", 100)
			RecordMatch("fuzzy", 45)
			RecordAPSTotal(36)
			afterMatches, _ := gathered(reg, "apsmatch_service_match_confidence")
			afterAPS, _ := gathered(reg, "apsmatch_service_aps_total")

			Convey("Then the histograms observe every sample", func() {
				So(afterMatches-beforeMatches, ShouldEqual, 2)
				So(afterAPS-beforeAPS, ShouldEqual, 1)
			})
		})

		Convey("When setting gauges", func() {
			UpdateQueueSize(7)
			UpdateQueueCapacity(100)
			UpdateWorkerCount(4)
			UpdateStoreEntries(12)

			Convey("Then the last value wins", func() {
				v, _ := gathered(reg, "apsmatch_service_queue_size")
				So(v, ShouldEqual, 7)
				v, _ = gathered(reg, "apsmatch_service_worker_count")
				So(v, ShouldEqual, 4)
				v, _ = gathered(reg, "apsmatch_service_store_entries")
				So(v, ShouldEqual, 12)
			})
		})

		Convey("When recording the remaining helpers", func() {
			Convey("Then none of them panic", func() {
				So(func() {
					RecordProgramCheck(true)
					RecordProgramCheck(false)
					RecordEvaluationLatency(12.5)
					RecordDuplicateSubmission()
					RecordHTTPRequest("/aps", "POST", 200)
					RecordHTTPRequestDuration("/aps", "POST", 200, 1.5)
					RecordRateLimited("/aps")
					UpdateQueueUtilization(0.07)
					RecordQueueEnqueue()
					RecordQueueDequeue()
					RecordQueueEnqueueError()
					UpdateWorkerActiveCount(4)
					RecordWorkerProcessed()
					RecordWorkerError()
					RecordWorkerProcessingLatency(3)
					RecordStoreOperation("memory", "put")
					RecordStoreError("redis", "get")
					RecordErrorByComponent("queue", "full")
				}, ShouldNotPanic)
			})
		})
	})
}
