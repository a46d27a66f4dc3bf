package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/spendseg/internal/adapters/mq/queue"
	"github.com/okian/spendseg/internal/adapters/repository"
	"github.com/okian/spendseg/internal/domain/dedupe"
	"github.com/okian/spendseg/internal/domain/segmentation"
)

// fakeDeps runs the real pipeline and keeps everything in maps.
type fakeDeps struct {
	dedupe.Registry
	analyzer *segmentation.Analyzer

	mu       sync.Mutex
	entries  map[string]repository.Entry
	jobs     []queue.Job
	full     bool
	analyzeE error
}

func newFakeDeps() *fakeDeps {
	return &fakeDeps{
		Registry: dedupe.NewInMemoryRegistry(),
		analyzer: segmentation.NewAnalyzer(segmentation.WithSeed(7)),
		entries:  map[string]repository.Entry{},
	}
}

func (f *fakeDeps) Analyze(ctx context.Context, req segmentation.Request) (*segmentation.Result, error) {
	if f.analyzeE != nil {
		return nil, f.analyzeE
	}
	res, err := f.analyzer.Analyze(ctx, req)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries[res.ID.String()] = repository.Entry{ID: res.ID.String(), Status: repository.StatusCompleted, Result: res}
	return res, nil
}

func (f *fakeDeps) Enqueue(_ context.Context, job queue.Job) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.full {
		return false
	}
	f.jobs = append(f.jobs, job)
	f.entries[job.AnalysisID] = repository.Entry{ID: job.AnalysisID, RequestID: job.RequestID, Status: repository.StatusPending}
	return true
}

func (f *fakeDeps) Get(_ context.Context, id string) (repository.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.entries[id]
	if !ok {
		return repository.Entry{}, fmt.Errorf("%w: %s", repository.ErrNotFound, id)
	}
	return e, nil
}

func (f *fakeDeps) List(_ context.Context, limit int) ([]repository.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []repository.Entry
	for _, e := range f.entries {
		if len(out) == limit {
			break
		}
		out = append(out, e)
	}
	return out, nil
}

type fakeStats struct{}

func (fakeStats) GetStats() map[string]any { return map[string]any{"queue_size": 0} }

func transactions(n int) []map[string]any {
	out := make([]map[string]any, n)
	for i := range out {
		amount := "45.00"
		category := "Groceries"
		if i%2 == 1 {
			amount = "6250.00"
			category = "Travel"
		}
		out[i] = map[string]any{
			"id":       fmt.Sprintf("t%d", i+1),
			"amount":   amount,
			"category": category,
			"date":     fmt.Sprintf("2025-01-%02d", i+1),
		}
	}
	return out
}

func post(handler http.Handler, body any) *httptest.ResponseRecorder {
	raw, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, "/analyses", bytes.NewReader(raw))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func get(handler http.Handler, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, http.NoBody)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func newTestMux(deps *fakeDeps, opts ...Option) *http.ServeMux {
	mux := http.NewServeMux()
	NewServer(deps, fakeStats{}, opts...).Register(context.Background(), mux)
	return mux
}

func TestServer_Register(t *testing.T) {
	Convey("Given a registered API server", t, func() {
		mux := newTestMux(newFakeDeps())

		Convey("Then the health endpoint serves metrics", func() {
			w := get(mux, "/healthz")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, "spendseg_")
		})

		Convey("Then the stats endpoint serves JSON", func() {
			w := get(mux, "/stats")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Header().Get("Content-Type"), ShouldStartWith, "application/json")
			So(w.Body.String(), ShouldContainSubstring, "queue_size")
		})

		Convey("Then unsupported methods are rejected", func() {
			req := httptest.NewRequest(http.MethodDelete, "/analyses", http.NoBody)
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)
			So(w.Code, ShouldEqual, http.StatusMethodNotAllowed)
		})
	})
}

func TestAnalysesHandler_Sync(t *testing.T) {
	Convey("Given an analyses handler", t, func() {
		deps := newFakeDeps()
		mux := newTestMux(deps)

		Convey("When posting enough transactions with k=2", func() {
			w := post(mux, map[string]any{"transactions": transactions(10), "k": 2, "features": []string{"amount"}})

			Convey("Then the result separates small and large purchases", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				var res segmentation.Result
				So(json.Unmarshal(w.Body.Bytes(), &res), ShouldBeNil)
				So(res.Clusters, ShouldHaveLength, 2)
				So(res.Assignments, ShouldHaveLength, 10)
				So(res.Metadata.AutoSelected, ShouldBeFalse)

				Convey("And it can be fetched again by ID", func() {
					w := get(mux, "/analyses/"+res.ID.String())
					So(w.Code, ShouldEqual, http.StatusOK)
					So(w.Body.String(), ShouldContainSubstring, `"status":"completed"`)
				})
			})
		})

		Convey("When posting fewer transactions than the minimum", func() {
			w := post(mux, map[string]any{"transactions": transactions(4)})

			Convey("Then it is rejected before clustering", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(w.Body.String(), ShouldContainSubstring, "insufficient_data")
			})
		})

		Convey("When the minimum is lowered", func() {
			mux := newTestMux(deps, WithRecordLimits(1, 0))
			w := post(mux, map[string]any{"transactions": transactions(2)})

			Convey("Then small inputs are clustered", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
			})
		})

		Convey("When k exceeds the number of transactions", func() {
			w := post(mux, map[string]any{"transactions": transactions(5), "k": 9})

			Convey("Then the pipeline rejection maps to 400", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(w.Body.String(), ShouldContainSubstring, "invalid_request")
			})
		})

		Convey("When an unknown policy is requested", func() {
			w := post(mux, map[string]any{"transactions": transactions(5), "policy": "loose"})

			Convey("Then it is a bad request", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When a date cannot be parsed", func() {
			txs := transactions(5)
			txs[2]["date"] = "yesterday"
			w := post(mux, map[string]any{"transactions": txs})

			Convey("Then it is a bad request naming the transaction", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(w.Body.String(), ShouldContainSubstring, "transaction 2")
			})
		})

		Convey("When the body is not JSON", func() {
			req := httptest.NewRequest(http.MethodPost, "/analyses", bytes.NewBufferString("{"))
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)

			Convey("Then it is a bad request", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When the pipeline fails unexpectedly", func() {
			deps.analyzeE = errors.New("disk on fire")
			w := post(mux, map[string]any{"transactions": transactions(5)})

			Convey("Then it is an internal error", func() {
				So(w.Code, ShouldEqual, http.StatusInternalServerError)
			})
		})
	})
}

func TestAnalysesHandler_Async(t *testing.T) {
	Convey("Given an analyses handler", t, func() {
		deps := newFakeDeps()
		mux := newTestMux(deps)
		body := map[string]any{"transactions": transactions(6), "async": true, "request_id": "req-1"}

		Convey("When an async analysis is submitted", func() {
			w := post(mux, body)
			var ack submitResponse
			So(json.Unmarshal(w.Body.Bytes(), &ack), ShouldBeNil)

			Convey("Then it is accepted and queued", func() {
				So(w.Code, ShouldEqual, http.StatusAccepted)
				So(ack.Status, ShouldEqual, repository.StatusPending)
				So(w.Header().Get("Location"), ShouldEqual, "/analyses/"+ack.AnalysisID)
				So(deps.jobs, ShouldHaveLength, 1)
				So(deps.jobs[0].Request.Records, ShouldHaveLength, 6)
			})

			Convey("And repeating the request ID returns the same analysis", func() {
				w2 := post(mux, body)
				var dup submitResponse
				So(json.Unmarshal(w2.Body.Bytes(), &dup), ShouldBeNil)
				So(w2.Code, ShouldEqual, http.StatusOK)
				So(dup.Duplicate, ShouldBeTrue)
				So(dup.AnalysisID, ShouldEqual, ack.AnalysisID)
				So(deps.jobs, ShouldHaveLength, 1)
			})

			Convey("And the pending analysis is visible", func() {
				w := get(mux, "/analyses/"+ack.AnalysisID)
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, `"status":"pending"`)
			})
		})

		Convey("When the queue is full", func() {
			deps.full = true
			w := post(mux, body)

			Convey("Then backpressure is reported and the request ID is released", func() {
				So(w.Code, ShouldEqual, http.StatusTooManyRequests)
				So(deps.Size(), ShouldEqual, int64(0))
			})
		})
	})
}

func TestAnalysesHandler_Read(t *testing.T) {
	Convey("Given stored analyses", t, func() {
		deps := newFakeDeps()
		for i := 0; i < 3; i++ {
			deps.entries[fmt.Sprintf("a%d", i)] = repository.Entry{ID: fmt.Sprintf("a%d", i), Status: repository.StatusPending}
		}
		mux := newTestMux(deps, WithMaxListLimit(2))

		Convey("When listing beyond the cap", func() {
			w := get(mux, "/analyses?limit=50")
			var got listResponse
			So(json.Unmarshal(w.Body.Bytes(), &got), ShouldBeNil)

			Convey("Then the cap applies", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(got.Count, ShouldEqual, 2)
			})
		})

		Convey("When the limit is not a positive number", func() {
			So(get(mux, "/analyses?limit=0").Code, ShouldEqual, http.StatusBadRequest)
			So(get(mux, "/analyses?limit=x").Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When fetching an unknown analysis", func() {
			So(get(mux, "/analyses/missing").Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("When the path has extra segments", func() {
			So(get(mux, "/analyses/a0/extra").Code, ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestErrorHelpers(t *testing.T) {
	Convey("Given the error helpers", t, func() {
		cause := errors.New("eof")

		Convey("Then kinds and causes stay matchable", func() {
			err := WrapKind("api.op", ErrBadRequest, cause)
			So(errors.Is(err, ErrBadRequest), ShouldBeTrue)
			So(errors.Is(err, cause), ShouldBeTrue)
			So(err.Error(), ShouldStartWith, "api.op: ")

			So(errors.Is(NewKind("api.op", ErrBackpressure), ErrBackpressure), ShouldBeTrue)
			So(Wrap("api.op", nil), ShouldBeNil)
			So(errors.Is(WrapKind("api.op", ErrBadRequest, nil), ErrBadRequest), ShouldBeTrue)
		})
	})
}
