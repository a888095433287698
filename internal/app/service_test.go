package service_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/okian/gradecast/internal/adapters/mirror"
	"github.com/okian/gradecast/internal/adapters/repository"
	service "github.com/okian/gradecast/internal/app"
	"github.com/okian/gradecast/internal/domain/model"
	"github.com/okian/gradecast/internal/domain/scoring"
	. "github.com/smartystreets/goconvey/convey"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const fiveRows = `Student_ID,Attendance,Study_Hours,Internal_Marks,Assignments,Activities
STU001,85,20,75,8,3
STU002,65,10,55,5,1
STU003,92,25
STU004,100,40,100,10,5
STU005,40,5,35,2,0
`

type recordingAppender struct {
	mu   sync.Mutex
	rows []mirror.Row
	err  error
}

func (a *recordingAppender) Append(_ context.Context, row mirror.Row) (mirror.AppendResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return mirror.AppendResult{}, a.err
	}
	a.rows = append(a.rows, row)
	return mirror.AppendResult{UpdatedRange: "Sheet1!A1:I1"}, nil
}

func (a *recordingAppender) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.rows)
}

type failingStore struct {
	*repository.MemoryStore
	calls int
}

func (f *failingStore) SaveBatch(context.Context, []model.PredictionRecord) error {
	f.calls++
	return repository.ErrWriteFailed
}

type countingStore struct {
	*repository.MemoryStore
	calls int
}

func (c *countingStore) SaveBatch(ctx context.Context, recs []model.PredictionRecord) error {
	c.calls++
	return c.MemoryStore.SaveBatch(ctx, recs)
}

func startService(opts ...service.Option) *service.Service {
	base := []service.Option{
		service.WithWorkerCount(2),
		service.WithQueueSize(64),
		service.WithJoinTimeout(2 * time.Second),
		service.WithEngine(scoring.NewEngine(scoring.WithRandSource(scoring.FixedSource(0.5)))),
		service.WithIDGenerator(func() string { return "batch-1" }),
	}
	svc := service.New(append(base, opts...)...)
	So(svc.Start(context.Background()), ShouldBeNil)
	return svc
}

func TestService_Lifecycle(t *testing.T) {
	Convey("Given a new service", t, func() {
		svc := service.New()

		Convey("When it is used before Start", func() {
			_, err := svc.ProcessBatch(context.Background(), "a.csv", strings.NewReader(fiveRows))
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
		})

		Convey("When started twice and stopped twice", func() {
			So(svc.Start(context.Background()), ShouldBeNil)
			So(svc.Start(context.Background()), ShouldBeNil)
			So(svc.GetStats()["started"], ShouldEqual, true)
			svc.Stop()
			svc.Stop()
			So(svc.GetStats()["started"], ShouldEqual, false)
		})

		Convey("When restarted after Stop", func() {
			So(svc.Start(context.Background()), ShouldBeNil)
			svc.Stop()

			Convey("Then Start should refuse instead of reusing the closed store", func() {
				So(errors.Is(svc.Start(context.Background()), service.ErrStopped), ShouldBeTrue)
				_, err := svc.ProcessBatch(context.Background(), "a.csv", strings.NewReader(fiveRows))
				So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
			})
		})
	})
}

func TestService_ProcessBatch(t *testing.T) {
	Convey("Given a running service with a working mirror", t, func() {
		store := &countingStore{MemoryStore: repository.NewMemoryStore()}
		appender := &recordingAppender{}
		svc := startService(service.WithStore(store), service.WithMirror(appender))
		defer svc.Stop()

		res, err := svc.ProcessBatch(context.Background(), "grades.CSV", strings.NewReader(fiveRows))

		Convey("Then the well-formed rows should be scored in input order", func() {
			So(err, ShouldBeNil)
			So(res.State, ShouldEqual, model.StateCompleted)
			So(res.ID, ShouldEqual, "batch-1")
			So(res.Skipped, ShouldEqual, 1)
			ids := make([]string, len(res.Outcomes))
			for i, o := range res.Outcomes {
				ids[i] = o.StudentID
			}
			So(ids, ShouldResemble, []string{"STU001", "STU002", "STU004", "STU005"})
		})

		Convey("Then the batch threshold of 60 should apply", func() {
			So(res.Outcomes[0].Prediction, ShouldEqual, model.Fail) // 53.8
			So(res.Outcomes[2].Prediction, ShouldEqual, model.Pass)
			So(res.PassCount(), ShouldEqual, 1)
			So(res.FailCount(), ShouldEqual, 3)
			for _, o := range res.Outcomes {
				So(o.Confidence, ShouldBeBetweenOrEqual, 65, 95)
			}
		})

		Convey("Then the whole batch should be committed in one write", func() {
			So(store.calls, ShouldEqual, 1)
			stored, err := svc.Batch(context.Background(), "batch-1")
			So(err, ShouldBeNil)
			So(len(stored), ShouldEqual, 4)
			So(stored[3].StudentID, ShouldEqual, "STU005")
			So(stored[3].Seq, ShouldEqual, 3)
		})

		Convey("Then every outcome should be mirrored", func() {
			So(res.Mirror, ShouldResemble, model.MirrorSummary{Dispatched: 4, Succeeded: 4})
			So(appender.count(), ShouldEqual, 4)
		})
	})

	Convey("Given a mirror that always fails", t, func() {
		store := repository.NewMemoryStore()
		svc := startService(service.WithStore(store), service.WithMirror(&recordingAppender{err: errors.New("sheets: 503")}))
		defer svc.Stop()

		res, err := svc.ProcessBatch(context.Background(), "grades.csv", strings.NewReader(fiveRows))

		Convey("Then the batch should still complete and commit", func() {
			So(err, ShouldBeNil)
			So(res.State, ShouldEqual, model.StateCompleted)
			So(res.Mirror.Failed, ShouldEqual, 4)
			n, _ := store.Count(context.Background())
			So(n, ShouldEqual, 4)
		})
	})

	Convey("Given an unconfigured mirror", t, func() {
		svc := startService()
		defer svc.Stop()

		res, err := svc.ProcessBatch(context.Background(), "grades.csv", strings.NewReader(fiveRows))
		So(err, ShouldBeNil)
		So(res.State, ShouldEqual, model.StateCompleted)
		So(res.Mirror.Failed, ShouldEqual, 4)
	})

	Convey("Given a store that cannot commit", t, func() {
		store := &failingStore{MemoryStore: repository.NewMemoryStore()}
		appender := &recordingAppender{}
		svc := startService(service.WithStore(store), service.WithMirror(appender))
		defer svc.Stop()

		res, err := svc.ProcessBatch(context.Background(), "grades.csv", strings.NewReader(fiveRows))

		Convey("Then the batch should fail with a commit error", func() {
			So(errors.Is(err, service.ErrCommitFailed), ShouldBeTrue)
			So(errors.Is(err, repository.ErrWriteFailed), ShouldBeTrue)
			So(res.State, ShouldEqual, model.StateFailed)
			So(store.calls, ShouldEqual, 1)
		})

		Convey("Then no outcome should be reported although every record was scored", func() {
			So(res.Outcomes, ShouldBeEmpty)
			So(res.PassCount(), ShouldEqual, 0)
			So(res.Mirror.Dispatched, ShouldEqual, 4)
		})
	})

	Convey("Given a file that is not CSV", t, func() {
		store := &countingStore{MemoryStore: repository.NewMemoryStore()}
		appender := &recordingAppender{}
		svc := startService(service.WithStore(store), service.WithMirror(appender))
		defer svc.Stop()

		res, err := svc.ProcessBatch(context.Background(), "grades.xlsx", strings.NewReader(fiveRows))

		Convey("Then it should be rejected before anything happens", func() {
			So(errors.Is(err, service.ErrUnsupportedFile), ShouldBeTrue)
			So(res.State, ShouldEqual, model.StateFailed)
			So(len(res.Outcomes), ShouldEqual, 0)
			So(store.calls, ShouldEqual, 0)
			So(appender.count(), ShouldEqual, 0)
		})
	})

	Convey("Given an upload with only a header", t, func() {
		store := &countingStore{MemoryStore: repository.NewMemoryStore()}
		svc := startService(service.WithStore(store))
		defer svc.Stop()

		res, err := svc.ProcessBatch(context.Background(), "empty.csv", strings.NewReader("Student_ID\n"))

		Convey("Then it should complete without touching the store", func() {
			So(err, ShouldBeNil)
			So(res.State, ShouldEqual, model.StateCompleted)
			So(len(res.Outcomes), ShouldEqual, 0)
			So(store.calls, ShouldEqual, 0)
		})
	})

	Convey("Given a reader that breaks mid-upload", t, func() {
		store := &countingStore{MemoryStore: repository.NewMemoryStore()}
		svc := startService(service.WithStore(store))
		defer svc.Stop()

		res, err := svc.ProcessBatch(context.Background(), "broken.csv", &brokenReader{data: "h\nSTU001,85,20,75,8,3\n"})

		So(errors.Is(err, service.ErrReadFailed), ShouldBeTrue)
		So(res.State, ShouldEqual, model.StateFailed)
		So(res.Outcomes, ShouldBeEmpty)
		So(store.calls, ShouldEqual, 0)
	})

	Convey("Given the same file uploaded twice", t, func() {
		ids := []string{"first", "second"}
		n := 0
		svc := startService(service.WithIDGenerator(func() string { n++; return ids[n-1] }))
		defer svc.Stop()

		a, err := svc.ProcessBatch(context.Background(), "g.csv", strings.NewReader(fiveRows))
		So(err, ShouldBeNil)
		b, err := svc.ProcessBatch(context.Background(), "g.csv", strings.NewReader(fiveRows))
		So(err, ShouldBeNil)

		Convey("Then predictions should be stable and both batches stored", func() {
			for i := range a.Outcomes {
				So(b.Outcomes[i].Prediction, ShouldEqual, a.Outcomes[i].Prediction)
			}
			So(svc.GetStats()["storedRecords"], ShouldEqual, 8)
			So(svc.GetStats()["batchesCompleted"], ShouldEqual, int64(2))
		})
	})
}

type brokenReader struct {
	data string
	done bool
}

func (b *brokenReader) Read(p []byte) (int, error) {
	if b.done {
		return 0, errors.New("connection reset by peer")
	}
	b.done = true
	return copy(p, b.data), nil
}

func TestService_Predict(t *testing.T) {
	Convey("Given a running service", t, func() {
		svc := startService()
		defer svc.Stop()

		Convey("When a record scores between the two thresholds", func() {
			// attendance 228 scores 57: Fail for a batch, Pass manually.
			out, err := svc.Predict(context.Background(), model.FieldRecord{StudentID: " edge ", Attendance: 228})

			Convey("Then the manual threshold of 55 should apply", func() {
				So(err, ShouldBeNil)
				So(out.StudentID, ShouldEqual, "edge")
				So(out.Prediction, ShouldEqual, model.Pass)
			})
		})

		Convey("When the student id is missing", func() {
			_, err := svc.Predict(context.Background(), model.FieldRecord{Attendance: 90})
			So(errors.Is(err, service.ErrInvalidRecord), ShouldBeTrue)
		})

		Convey("When values are out of range in lenient mode", func() {
			_, err := svc.Predict(context.Background(), model.FieldRecord{StudentID: "x", Attendance: 150})
			So(err, ShouldBeNil)
		})
	})

	Convey("Given a strict service", t, func() {
		svc := startService(service.WithStrictRanges(true))
		defer svc.Stop()

		_, err := svc.Predict(context.Background(), model.FieldRecord{StudentID: "x", Attendance: 150})
		So(errors.Is(err, service.ErrInvalidRecord), ShouldBeTrue)
	})

	Convey("Given custom thresholds", t, func() {
		svc := startService(service.WithBatchThreshold(50), service.WithManualThreshold(58))
		defer svc.Stop()

		out, err := svc.Predict(context.Background(), model.FieldRecord{StudentID: "edge", Attendance: 228})
		So(err, ShouldBeNil)
		So(out.Prediction, ShouldEqual, model.Fail)

		res, err := svc.ProcessBatch(context.Background(), "t.csv", strings.NewReader("h\nedge,228,0,0,0,0\n"))
		So(err, ShouldBeNil)
		So(res.Outcomes[0].Prediction, ShouldEqual, model.Pass)
	})
}

func TestService_Mirror(t *testing.T) {
	row := mirror.Row{StudentID: "STU001", Prediction: "Pass", Confidence: 80}

	Convey("Given a configured mirror", t, func() {
		appender := &recordingAppender{}
		svc := startService(service.WithMirror(appender))
		defer svc.Stop()

		res, err := svc.Mirror(context.Background(), row)
		So(err, ShouldBeNil)
		So(res.UpdatedRange, ShouldEqual, "Sheet1!A1:I1")
		So(appender.count(), ShouldEqual, 1)

		Convey("Then incomplete rows should be refused", func() {
			_, err := svc.Mirror(context.Background(), mirror.Row{Prediction: "Pass"})
			So(errors.Is(err, service.ErrInvalidRecord), ShouldBeTrue)
		})
	})

	Convey("Given no mirror", t, func() {
		svc := startService()
		defer svc.Stop()

		_, err := svc.Mirror(context.Background(), row)
		So(errors.Is(err, mirror.ErrNotConfigured), ShouldBeTrue)
	})
}
