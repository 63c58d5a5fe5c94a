package loadgen_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/rebooked/apsmatch/internal/adapters/http/api"
	service "github.com/rebooked/apsmatch/internal/app"
	"github.com/rebooked/apsmatch/internal/domain/subject"
	"github.com/rebooked/apsmatch/internal/loadgen"
	"github.com/rebooked/apsmatch/pkg/logger"
)

func init() {
	if err := logger.Init(logger.WithOutput(io.Discard)); err != nil {
		panic(err)
	}
}

func names(s loadgen.Submission) []string {
	out := make([]string, 0, len(s.Subjects))
	for _, sub := range s.Subjects {
		out = append(out, sub.Name)
	}
	return out
}

func TestGenerator(t *testing.T) {
	Convey("Given a seeded generator", t, func() {
		g := loadgen.NewGenerator(42)

		Convey("Every profile has seven distinct known subjects with valid marks", func() {
			table := subject.DefaultTable()
			for i := 0; i < 200; i++ {
				p := g.Profile()
				So(p.RequestID, ShouldNotBeEmpty)
				So(p.Subjects, ShouldHaveLength, 7)

				seen := map[string]bool{}
				for _, sub := range p.Subjects {
					m, ok := table.Lookup(sub.Name)
					So(ok, ShouldBeTrue)
					So(seen[m.Canonical], ShouldBeFalse)
					seen[m.Canonical] = true
					So(sub.Mark, ShouldBeBetweenOrEqual, 0, 100)
				}
				So(seen[subject.LifeOrientation], ShouldBeTrue)
			}
		})

		Convey("The same seed produces the same subjects", func() {
			other := loadgen.NewGenerator(42)
			for i := 0; i < 20; i++ {
				a, b := g.Profile(), other.Profile()
				So(names(a), ShouldResemble, names(b))
				So(a.Subjects, ShouldResemble, b.Subjects)
				So(a.RequestID, ShouldNotEqual, b.RequestID)
			}
		})

		Convey("Generate repeats earlier submissions at the duplicate ratio", func() {
			subs, err := g.Generate(context.Background(), 500, 0.3)
			So(err, ShouldBeNil)
			So(subs, ShouldHaveLength, 500)

			unique := map[string]struct{}{}
			for _, s := range subs {
				unique[s.RequestID] = struct{}{}
			}
			repeats := len(subs) - len(unique)
			So(repeats, ShouldBeGreaterThan, 100)
			So(repeats, ShouldBeLessThan, 200)
		})

		Convey("Generate without duplicates yields unique request ids", func() {
			subs, err := g.Generate(context.Background(), 100, 0)
			So(err, ShouldBeNil)
			unique := map[string]struct{}{}
			for _, s := range subs {
				unique[s.RequestID] = struct{}{}
			}
			So(unique, ShouldHaveLength, 100)
		})

		Convey("Generate stops on a cancelled context", func() {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			_, err := g.Generate(ctx, 10, 0)
			So(errors.Is(err, context.Canceled), ShouldBeTrue)
		})
	})
}

func TestConfigValidate(t *testing.T) {
	Convey("Given load run configs", t, func() {
		valid := loadgen.Config{BaseURL: "http://localhost:9080", NumProfiles: 1, Workers: 1, Timeout: time.Second}
		So(valid.Validate(), ShouldBeNil)

		bad := []loadgen.Config{
			{NumProfiles: 1, Workers: 1, Timeout: time.Second},
			{BaseURL: "x", Workers: 1, Timeout: time.Second},
			{BaseURL: "x", NumProfiles: 1, Timeout: time.Second},
			{BaseURL: "x", NumProfiles: 1, Workers: 1, Timeout: time.Second, DuplicateRatio: 1},
			{BaseURL: "x", NumProfiles: 1, Workers: 1},
		}
		for _, c := range bad {
			So(errors.Is(c.Validate(), loadgen.ErrInvalidConfig), ShouldBeTrue)
		}
	})
}

func TestRun(t *testing.T) {
	Convey("Given a running service behind an HTTP server", t, func() {
		ctx := context.Background()
		svc := service.New(service.WithWorkerCount(4), service.WithQueueSize(1000))
		So(svc.Start(ctx), ShouldBeNil)
		defer func() { _ = svc.Stop(ctx) }()

		mux := http.NewServeMux()
		api.NewServer(svc).Register(ctx, mux)
		srv := httptest.NewServer(mux)
		defer srv.Close()

		out := filepath.Join(t.TempDir(), "runs", "subs.json")
		cfg := &loadgen.Config{
			BaseURL:        srv.URL,
			NumProfiles:    60,
			DuplicateRatio: 0.25,
			Workers:        4,
			Timeout:        5 * time.Second,
			PollInterval:   10 * time.Millisecond,
			PollTimeout:    20 * time.Second,
			OutputFile:     out,
			Seed:           7,
		}

		Convey("Every submission is accepted or answered as a duplicate and evaluated", func() {
			stats, err := loadgen.Run(ctx, cfg)
			So(err, ShouldBeNil)
			So(stats.ProfilesGenerated, ShouldEqual, 60)
			So(stats.Submitted, ShouldEqual, 60)
			So(stats.Failed, ShouldEqual, 0)
			So(stats.Backpressured, ShouldEqual, 0)
			So(stats.Accepted+stats.Duplicates, ShouldEqual, 60)
			So(stats.Duplicates, ShouldBeGreaterThan, 0)
			So(stats.Completed, ShouldEqual, stats.Accepted)
			So(stats.StillPending, ShouldEqual, 0)

			data, err := os.ReadFile(out)
			So(err, ShouldBeNil)
			var saved []loadgen.Submission
			So(json.Unmarshal(data, &saved), ShouldBeNil)
			So(saved, ShouldHaveLength, 60)
		})

		Convey("An unreachable service fails the health check", func() {
			cfg.BaseURL = "http://127.0.0.1:1"
			_, err := loadgen.Run(ctx, cfg)
			So(err, ShouldNotBeNil)
		})

		Convey("An invalid config is rejected before any request", func() {
			cfg.Workers = 0
			_, err := loadgen.Run(ctx, cfg)
			So(errors.Is(err, loadgen.ErrInvalidConfig), ShouldBeTrue)
		})
	})
}

func TestSetupLogging(t *testing.T) {
	Convey("Given a log file path", t, func() {
		path := filepath.Join(t.TempDir(), "run.log")
		closer, err := loadgen.SetupLogging(path, true)
		So(err, ShouldBeNil)

		logger.Get().Debug(context.Background(), "debug line")
		So(closer.Close(), ShouldBeNil)

		data, err := os.ReadFile(path)
		So(err, ShouldBeNil)
		So(string(data), ShouldContainSubstring, "debug line")

		// Restore a quiet logger for the remaining tests.
		So(logger.Init(logger.WithOutput(io.Discard)), ShouldBeNil)
	})
}
