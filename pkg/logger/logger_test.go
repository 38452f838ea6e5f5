package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestLoggerInit(t *testing.T) {
	Convey("Given the global logger", t, func() {
		So(Init(), ShouldBeNil)
		defer func() { _ = Sync() }()

		Convey("Then Get and Named return usable loggers", func() {
			So(Get(), ShouldNotBeNil)
			So(Named("test"), ShouldNotBeNil)
			Get().Info(context.Background(), "test message", String("k", "v"))
		})
	})
}

func TestLoggerJSONOutput(t *testing.T) {
	Convey("Given a JSON logger writing to a buffer", t, func() {
		SetLevel(slog.LevelInfo)
		var buf bytes.Buffer
		l := New(&buf, "json").Named("elo")

		Convey("When logging with fields", func() {
			l.Info(context.Background(), "run finished",
				Int("processed", 3),
				Date("watermark", time.Date(2025, 8, 15, 0, 0, 0, 0, time.UTC)),
				Error(errors.New("boom")),
			)

			Convey("Then the record carries the component and fields", func() {
				var rec map[string]any
				So(json.Unmarshal(buf.Bytes(), &rec), ShouldBeNil)
				So(rec["msg"], ShouldEqual, "run finished")
				So(rec["component"], ShouldEqual, "elo")
				So(rec["processed"], ShouldEqual, 3)
				So(rec["watermark"], ShouldEqual, "2025-08-15")
				So(rec["error"], ShouldEqual, "boom")
				So(rec["source"], ShouldContainSubstring, "logger_test.go")
			})
		})

		Convey("When logging below the configured level", func() {
			l.Debug(context.Background(), "hidden")

			Convey("Then nothing is written", func() {
				So(buf.Len(), ShouldEqual, 0)
			})
		})
	})
}

func TestDateField(t *testing.T) {
	Convey("A zero date renders as none", t, func() {
		So(Date("d", time.Time{}).Value, ShouldEqual, "none")
	})
}

func TestSetLevelString(t *testing.T) {
	Convey("Given level strings", t, func() {
		So(SetLevelString("debug"), ShouldBeNil)
		So(SetLevelString("WARNING"), ShouldBeNil)
		So(SetLevelString(""), ShouldBeNil)
		So(SetLevelString("loud"), ShouldNotBeNil)
		So(SetLevelString("info"), ShouldBeNil)
	})
}
