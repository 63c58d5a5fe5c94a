package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestLoggerInit(t *testing.T) {
	Convey("Given the global logger", t, func() {
		Convey("When initialized with defaults", func() {
			So(Init(), ShouldBeNil)
			So(Get(), ShouldNotBeNil)
			So(Sync(), ShouldBeNil)
		})

		Convey("When initialized with an unknown format", func() {
			err := Init(WithFormat("xml"))
			So(err, ShouldNotBeNil)
		})
	})
}

func TestLoggerOutput(t *testing.T) {
	Convey("Given a JSON logger writing to a buffer", t, func() {
		var buf bytes.Buffer
		So(Init(WithFormat(FormatJSON), WithOutput(&buf)), ShouldBeNil)
		ctx := context.Background()

		Convey("When logging with fields", func() {
			Named("api").With(String("request_id", "r-1")).Info(ctx, "evaluated", Int("programs", 3))

			Convey("Then the record carries every field and the caller", func() {
				var rec map[string]any
				So(json.Unmarshal(buf.Bytes(), &rec), ShouldBeNil)
				So(rec["msg"], ShouldEqual, "evaluated")
				So(rec["logger"], ShouldEqual, "api")
				So(rec["request_id"], ShouldEqual, "r-1")
				So(rec["programs"], ShouldEqual, float64(3))
				So(rec["source"], ShouldContainSubstring, "logger_test.go")
			})
		})

		Convey("When logging below the level", func() {
			So(SetLevelString("warn"), ShouldBeNil)
			Get().Info(ctx, "hidden")
			Get().Warn(ctx, "shown", Error(errors.New("boom")))

			Convey("Then only records at or above it are written", func() {
				out := buf.String()
				So(out, ShouldNotContainSubstring, "hidden")
				So(out, ShouldContainSubstring, "shown")
				So(out, ShouldContainSubstring, "boom")
			})
		})
	})

	Convey("Given a text logger", t, func() {
		var buf bytes.Buffer
		So(Init(WithOutput(&buf)), ShouldBeNil)

		Convey("When logging at debug after lowering the level", func() {
			So(SetLevelString("DEBUG"), ShouldBeNil)
			Get().Debug(context.Background(), "details", Bool("cached", true))

			Convey("Then the line is in key=value form", func() {
				line := strings.TrimSpace(buf.String())
				So(line, ShouldContainSubstring, "level=DEBUG")
				So(line, ShouldContainSubstring, "cached=true")
			})
		})
	})
}

func TestSetLevelString(t *testing.T) {
	Convey("Given level names", t, func() {
		for _, lvl := range []string{"debug", "info", "", "warn", "warning", "ERROR"} {
			So(SetLevelString(lvl), ShouldBeNil)
		}
		So(SetLevelString("verbose"), ShouldNotBeNil)
	})
}
