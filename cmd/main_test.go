package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/okian/gradecast/internal/adapters/mirror"
	"github.com/okian/gradecast/internal/config"
	"github.com/okian/gradecast/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

const sampleBatch = `Student_ID,Attendance,Study_Hours,Internal_Marks,Assignments,Activities
STU001,85,20,75,8,3
STU002,65,10,55,5,1
STU003,92,25
STU004,100,40,100,10,5
STU005,40,5,35,2,0
`

// isolate runs the test in an empty directory with an in-memory store and no mirror.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	for _, k := range []string{
		config.EnvDotEnvFile, config.EnvConfigFile,
		config.EnvSheetsAPIKey, config.EnvSheetID,
	} {
		t.Setenv(k, "")
		_ = os.Unsetenv(k)
	}
	t.Setenv("GRADECAST_STORE_DRIVER", "memory")
	t.Setenv("GRADECAST_MIRROR_ENABLED", "false")
	t.Setenv("GRADECAST_LOG_LEVEL", "error")
	return dir
}

func execute(args ...string) (string, string, error) {
	var stdout, stderr bytes.Buffer
	root := newRootCmd()
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func TestTemplateCommand(t *testing.T) {
	convey.Convey("Given the template command", t, func() {
		dir := isolate(t)

		convey.Convey("When writing to stdout", func() {
			out, _, err := execute("template")

			convey.So(err, convey.ShouldBeNil)
			convey.So(out, convey.ShouldStartWith, "Student_ID,Attendance,Study_Hours,Internal_Marks,Assignments,Activities\n")
			convey.So(strings.Count(out, "\n"), convey.ShouldEqual, 3)
		})

		convey.Convey("When writing to a file", func() {
			path := filepath.Join(dir, "template.csv")
			_, _, err := execute("template", "--out", path)
			convey.So(err, convey.ShouldBeNil)

			data, readErr := os.ReadFile(path)
			convey.So(readErr, convey.ShouldBeNil)
			convey.So(string(data), convey.ShouldContainSubstring, "STU001,85,20,75,8,3")
		})

		convey.Convey("When given arguments", func() {
			_, _, err := execute("template", "extra")
			convey.So(err, convey.ShouldNotBeNil)
		})
	})
}

func TestScoreCommand(t *testing.T) {
	convey.Convey("Given a five-row batch file", t, func() {
		dir := isolate(t)
		input := filepath.Join(dir, "grades.csv")
		convey.So(os.WriteFile(input, []byte(sampleBatch), 0o600), convey.ShouldBeNil)

		convey.Convey("When scoring it", func() {
			out, _, err := execute("score", input)

			convey.Convey("Then the results CSV should list the four good rows in order", func() {
				convey.So(err, convey.ShouldBeNil)
				lines := strings.Split(strings.TrimSpace(out), "\n")
				convey.So(len(lines), convey.ShouldEqual, 5)
				convey.So(lines[0], convey.ShouldEqual, "Student_ID,Prediction,Confidence")
				convey.So(lines[1], convey.ShouldStartWith, "STU001,Fail,")
				convey.So(lines[2], convey.ShouldStartWith, "STU002,Fail,")
				convey.So(lines[3], convey.ShouldStartWith, "STU004,Pass,")
				convey.So(lines[4], convey.ShouldStartWith, "STU005,Fail,")
			})
		})

		convey.Convey("When scoring into a file", func() {
			path := filepath.Join(dir, "results.csv")
			out, _, err := execute("score", input, "-o", path)

			convey.So(err, convey.ShouldBeNil)
			convey.So(out, convey.ShouldBeEmpty)
			data, readErr := os.ReadFile(path)
			convey.So(readErr, convey.ShouldBeNil)
			convey.So(string(data), convey.ShouldContainSubstring, "STU004,Pass,")
		})

		convey.Convey("When the file is not a CSV", func() {
			other := filepath.Join(dir, "grades.txt")
			convey.So(os.WriteFile(other, []byte(sampleBatch), 0o600), convey.ShouldBeNil)

			_, _, err := execute("score", other)
			convey.So(err, convey.ShouldNotBeNil)
			convey.So(err.Error(), convey.ShouldContainSubstring, "unsupported")
		})

		convey.Convey("When the file does not exist", func() {
			_, _, err := execute("score", filepath.Join(dir, "missing.csv"))
			convey.So(err, convey.ShouldNotBeNil)
		})
	})
}

func TestBootstrap(t *testing.T) {
	convey.Convey("Given an invalid configuration", t, func() {
		isolate(t)
		t.Setenv("GRADECAST_STORE_DRIVER", "cassandra")

		_, _, err := bootstrap(&bytes.Buffer{})
		convey.So(err, convey.ShouldNotBeNil)
		convey.So(err.Error(), convey.ShouldContainSubstring, "failed to load config")
	})

	convey.Convey("Given an unknown log level", t, func() {
		isolate(t)
		t.Setenv("GRADECAST_LOG_LEVEL", "chatty")

		var buf bytes.Buffer
		cfg, log, err := bootstrap(&buf)
		convey.So(err, convey.ShouldBeNil)
		convey.So(cfg, convey.ShouldNotBeNil)
		convey.So(log, convey.ShouldNotBeNil)
		convey.So(buf.String(), convey.ShouldContainSubstring, "invalid log_level")
	})
}

func TestRouter(t *testing.T) {
	convey.Convey("Given the assembled router", t, func() {
		isolate(t)
		cfg := config.New()
		cfg.StoreDriver = "memory"
		ctx := context.Background()

		svc, err := buildService(ctx, cfg, logger.Nop())
		convey.So(err, convey.ShouldBeNil)
		convey.So(svc.Start(ctx), convey.ShouldBeNil)
		defer svc.Stop()

		h := newRouter(ctx, cfg, svc, logger.Nop())

		for _, path := range []string{"/api/template.csv", "/openapi.yaml", "/api-docs", "/healthz", "/stats"} {
			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, http.NoBody))
			convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
		}

		convey.Convey("Then the service metrics updater should read live stats", func() {
			convey.So(func() { updateServiceMetrics(svc) }, convey.ShouldNotPanic)
			convey.So(func() { updateSystemMetrics() }, convey.ShouldNotPanic)
		})
	})

	convey.Convey("Given a configuration without mirror credentials", t, func() {
		cfg := config.New()
		convey.So(cfg.MirrorConfigured(), convey.ShouldBeFalse)
		convey.So(newAppender(context.Background(), cfg, logger.Nop()), convey.ShouldHaveSameTypeAs, mirror.Disabled{})
	})

	convey.Convey("Given mirror credentials", t, func() {
		cfg := config.New()
		cfg.MirrorAPIKey = "k3y"
		cfg.MirrorSheetID = "sheet-1"
		convey.So(cfg.MirrorConfigured(), convey.ShouldBeTrue)

		a := newAppender(context.Background(), cfg, logger.Nop())
		_, ok := a.(*mirror.SheetsClient)
		convey.So(ok, convey.ShouldBeTrue)
	})
}

func TestGenerateCommand(t *testing.T) {
	convey.Convey("Given the generate command", t, func() {
		isolate(t)

		convey.Convey("When writing a seeded file to stdout", func() {
			first, _, err := execute("generate", "-n", "12", "--seed", "42", "--malformed-every", "4")
			convey.So(err, convey.ShouldBeNil)
			second, _, _ := execute("generate", "-n", "12", "--seed", "42", "--malformed-every", "4")

			convey.So(second, convey.ShouldEqual, first)
			convey.So(strings.Count(first, "\n"), convey.ShouldEqual, 13)
			convey.So(first, convey.ShouldContainSubstring, "STU00012")
		})

		convey.Convey("When submitting to a server", func() {
			ctx := context.Background()
			cfg := config.New()
			cfg.StoreDriver = "memory"
			svc, err := buildService(ctx, cfg, logger.Nop())
			convey.So(err, convey.ShouldBeNil)
			convey.So(svc.Start(ctx), convey.ShouldBeNil)
			defer svc.Stop()

			srv := httptest.NewServer(newRouter(ctx, cfg, svc, logger.Nop()))
			defer srv.Close()

			out, _, err := execute("generate", "-n", "10", "--seed", "9", "--malformed-every", "5", "--submit", srv.URL)
			convey.So(err, convey.ShouldBeNil)
			convey.So(out, convey.ShouldContainSubstring, "Successfully processed 8 student records")
		})

		convey.Convey("When rows is negative", func() {
			_, _, err := execute("generate", "-n", "-1")
			convey.So(err, convey.ShouldNotBeNil)
		})
	})
}
