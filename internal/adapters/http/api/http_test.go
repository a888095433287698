package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/okian/gradecast/internal/adapters/mirror"
	"github.com/okian/gradecast/internal/adapters/repository"
	service "github.com/okian/gradecast/internal/app"
	"github.com/okian/gradecast/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

type mockDeps struct {
	batchErr   error
	mirrorErr  error
	predictErr error

	gotFile  string
	gotBody  string
	gotRow   mirror.Row
	gotInput model.FieldRecord
}

func (m *mockDeps) ProcessBatch(_ context.Context, fileName string, r io.Reader) (model.BatchResult, error) {
	m.gotFile = fileName
	b, _ := io.ReadAll(r)
	m.gotBody = string(b)
	res := model.BatchResult{
		ID:       "b-1",
		FileName: fileName,
		Skipped:  1,
		State:    model.StateCompleted,
		Outcomes: []model.ScoredOutcome{
			{StudentID: "STU001", Prediction: model.Pass, Confidence: 88.1},
			{StudentID: "STU002", Prediction: model.Fail, Confidence: 70.4},
		},
		Mirror: model.MirrorSummary{Dispatched: 2, Pending: 2},
	}
	if m.batchErr != nil {
		res.State = model.StateFailed
		return res, m.batchErr
	}
	return res, nil
}

func (m *mockDeps) Batch(_ context.Context, id string) ([]model.PredictionRecord, error) {
	if id != "b-1" {
		return nil, fmt.Errorf("%w: %s", repository.ErrNotFound, id)
	}
	return []model.PredictionRecord{{BatchID: "b-1", StudentID: "STU001", Prediction: model.Pass}}, nil
}

func (m *mockDeps) Predict(_ context.Context, rec model.FieldRecord) (model.ScoredOutcome, error) {
	m.gotInput = rec
	if m.predictErr != nil {
		return model.ScoredOutcome{}, m.predictErr
	}
	return model.ScoredOutcome{StudentID: rec.StudentID, Prediction: model.Pass, Confidence: 81}, nil
}

func (m *mockDeps) Mirror(_ context.Context, row mirror.Row) (mirror.AppendResult, error) {
	m.gotRow = row
	if m.mirrorErr != nil {
		return mirror.AppendResult{}, m.mirrorErr
	}
	return mirror.AppendResult{UpdatedRange: "Sheet1!A3:I3"}, nil
}

type mockStats struct{}

func (mockStats) GetStats() map[string]interface{} {
	return map[string]interface{}{"started": true, "recordsScored": 4}
}

func newHandler(deps *mockDeps, opts ...Option) http.Handler {
	return NewServer(deps, mockStats{}, opts...).Handler(context.Background())
}

func upload(t *testing.T, h http.Handler, field, name, content string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, name)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = fw.Write([]byte(content))
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/batches", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode(w *httptest.ResponseRecorder) map[string]any {
	var out map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return out
}

func TestBatchesHandler(t *testing.T) {
	Convey("Given the API with a working pipeline", t, func() {
		deps := &mockDeps{}
		h := newHandler(deps)

		Convey("When a CSV file is uploaded", func() {
			w := upload(t, h, "file", "grades.csv", "Student_ID\nSTU001,85,20,75,8,3\n")
			body := decode(w)

			Convey("Then the batch summary should be returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(deps.gotFile, ShouldEqual, "grades.csv")
				So(deps.gotBody, ShouldContainSubstring, "STU001")
				So(body["batchId"], ShouldEqual, "b-1")
				So(body["processed"], ShouldEqual, 2)
				So(body["skipped"], ShouldEqual, 1)
				So(body["passCount"], ShouldEqual, 1)
				So(body["failCount"], ShouldEqual, 1)
				So(body["message"], ShouldEqual, "Successfully processed 2 student records")
				results := body["results"].([]any)
				So(len(results), ShouldEqual, 2)
				So(results[0].(map[string]any)["studentId"], ShouldEqual, "STU001")
				So(body["mirror"].(map[string]any)["pending"], ShouldEqual, 2)
			})
		})

		Convey("When the upload has no file field", func() {
			w := upload(t, h, "other", "grades.csv", "x")
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(decode(w)["code"], ShouldEqual, "bad_request")
		})

		Convey("When the body is not multipart", func() {
			req := httptest.NewRequest(http.MethodPost, "/api/batches", strings.NewReader("{}"))
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})
	})

	Convey("Given a pipeline that rejects the file type", t, func() {
		h := newHandler(&mockDeps{batchErr: fmt.Errorf("%w: x", service.ErrUnsupportedFile)})
		w := upload(t, h, "file", "grades.xlsx", "x")

		So(w.Code, ShouldEqual, http.StatusUnsupportedMediaType)
		So(decode(w)["code"], ShouldEqual, "unsupported_file")
		So(decode(w)["message"], ShouldEqual, "please upload a CSV file")
	})

	Convey("Given a pipeline whose commit fails", t, func() {
		h := newHandler(&mockDeps{batchErr: fmt.Errorf("%w: disk full", service.ErrCommitFailed)})
		w := upload(t, h, "file", "grades.csv", "x")

		So(w.Code, ShouldEqual, http.StatusInternalServerError)
		So(decode(w)["code"], ShouldEqual, "commit_failed")
	})

	Convey("Given an unreadable upload", t, func() {
		h := newHandler(&mockDeps{batchErr: fmt.Errorf("%w: eof", service.ErrReadFailed)})
		w := upload(t, h, "file", "grades.csv", "x")
		So(w.Code, ShouldEqual, http.StatusBadRequest)
	})

	Convey("Given stored batches", t, func() {
		h := newHandler(&mockDeps{})

		Convey("When a known batch is requested", func() {
			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/batches/b-1", http.NoBody))
			So(w.Code, ShouldEqual, http.StatusOK)
			So(decode(w)["batchId"], ShouldEqual, "b-1")
			So(len(decode(w)["records"].([]any)), ShouldEqual, 1)
		})

		Convey("When an unknown batch is requested", func() {
			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/batches/nope", http.NoBody))
			So(w.Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestPredictionsHandler(t *testing.T) {
	Convey("Given the predictions endpoint", t, func() {
		deps := &mockDeps{}
		h := newHandler(deps)

		Convey("When a valid record is posted", func() {
			body := `{"studentId":"STU009","attendance":85,"studyHours":20,"internalMarks":75,"assignments":8,"activities":3}`
			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/predictions", strings.NewReader(body)))

			Convey("Then the prediction should be returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(deps.gotInput.StudyHours, ShouldEqual, 20)
				So(deps.gotInput.Activities, ShouldEqual, 3)
				out := decode(w)
				So(out["studentId"], ShouldEqual, "STU009")
				So(out["prediction"], ShouldEqual, "Pass")
				So(out["confidence"], ShouldEqual, 81)
			})
		})

		Convey("When the JSON is malformed", func() {
			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/predictions", strings.NewReader("{")))
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the record fails validation", func() {
			deps.predictErr = fmt.Errorf("%w: student id", service.ErrInvalidRecord)
			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/predictions", strings.NewReader(`{"attendance":1}`)))
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(decode(w)["code"], ShouldEqual, "invalid_record")
		})
	})
}

func TestArtifactsHandler(t *testing.T) {
	Convey("Given the artifact endpoints", t, func() {
		h := newHandler(&mockDeps{})

		Convey("When the template is downloaded", func() {
			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/template.csv", http.NoBody))

			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Header().Get("Content-Disposition"), ShouldContainSubstring, "student_data_template.csv")
			So(w.Body.String(), ShouldStartWith, "Student_ID,Attendance,Study_Hours,Internal_Marks,Assignments,Activities\n")
			So(w.Body.String(), ShouldContainSubstring, "STU002,65,10,55,5,1")
		})

		Convey("When results are exported", func() {
			body := `{"results":[{"studentId":"STU001","prediction":"Pass","confidence":87.54}]}`
			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/exports", strings.NewReader(body)))

			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Header().Get("Content-Disposition"), ShouldContainSubstring, "prediction_results.csv")
			So(w.Body.String(), ShouldEqual, "Student_ID,Prediction,Confidence\nSTU001,Pass,87.5\n")
		})

		Convey("When nothing is exported", func() {
			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/exports", strings.NewReader(`{"results":[]}`)))
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestMirrorHandler(t *testing.T) {
	row := `{"student_id":"STU001","attendance":85,"study_hours":20,"internal_marks":75,"assignments":8,"activities":3,"prediction":"Pass","confidence":87.456}`

	Convey("Given a configured mirror", t, func() {
		deps := &mockDeps{}
		w := httptest.NewRecorder()
		newHandler(deps).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/mirror/rows", strings.NewReader(row)))

		So(w.Code, ShouldEqual, http.StatusOK)
		out := decode(w)
		So(out["success"], ShouldEqual, true)
		So(out["updatedRange"], ShouldEqual, "Sheet1!A3:I3")
		So(deps.gotRow.StudentID, ShouldEqual, "STU001")
		So(deps.gotRow.InternalMarks, ShouldEqual, 75)
		So(deps.gotRow.Timestamp.IsZero(), ShouldBeTrue)
	})

	Convey("Given no mirror credentials", t, func() {
		w := httptest.NewRecorder()
		newHandler(&mockDeps{mirrorErr: mirror.ErrNotConfigured}).
			ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/mirror/rows", strings.NewReader(row)))

		So(w.Code, ShouldEqual, http.StatusInternalServerError)
		So(decode(w)["error"], ShouldEqual, "mirror not configured")
	})

	Convey("Given a mirror API failure", t, func() {
		w := httptest.NewRecorder()
		newHandler(&mockDeps{mirrorErr: errors.New("spreadsheet api error: 403")}).
			ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/mirror/rows", strings.NewReader(row)))

		So(w.Code, ShouldEqual, http.StatusInternalServerError)
		So(decode(w)["details"], ShouldContainSubstring, "403")
	})
}

func TestServerCrossCutting(t *testing.T) {
	Convey("Given the API server", t, func() {
		h := newHandler(&mockDeps{}, WithAllowedOrigins([]string{"https://app.example"}))

		Convey("When a CORS preflight arrives", func() {
			req := httptest.NewRequest(http.MethodOptions, "/api/mirror/rows", http.NoBody)
			req.Header.Set("Origin", "https://app.example")
			req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			req.Header.Set("Access-Control-Request-Headers", "Content-Type")
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			So(w.Code, ShouldBeIn, http.StatusOK, http.StatusNoContent)
			So(w.Header().Get("Access-Control-Allow-Origin"), ShouldEqual, "https://app.example")
		})

		Convey("When stats are requested", func() {
			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/stats", http.NoBody))
			So(w.Code, ShouldEqual, http.StatusOK)
			So(decode(w)["recordsScored"], ShouldEqual, 4)
		})

		Convey("When metrics are scraped", func() {
			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody))
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, "gradecast_pipeline")
		})

		Convey("When a route uses the wrong method", func() {
			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/predictions", http.NoBody))
			So(w.Code, ShouldEqual, http.StatusMethodNotAllowed)
		})
	})

	Convey("Given error classification", t, func() {
		So(getErrorType(500), ShouldEqual, "server_error")
		So(getErrorType(415), ShouldEqual, "unsupported_media")
		So(getErrorType(404), ShouldEqual, "not_found")
		So(getErrorType(400), ShouldEqual, "client_error")
		So(getErrorType(200), ShouldEqual, "unknown")
	})
}
