package worker_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/smartystreets/goconvey/convey"

	notify "github.com/okian/spendseg/internal/adapters/mq/notify"
	queue "github.com/okian/spendseg/internal/adapters/mq/queue"
	worker "github.com/okian/spendseg/internal/adapters/mq/worker"
	"github.com/okian/spendseg/internal/domain/segmentation"
)

// Mock implementations for testing.
type mockQueue struct {
	jobs chan queue.Job
	once sync.Once
}

func newMockQueue() *mockQueue {
	return &mockQueue{jobs: make(chan queue.Job, 64)}
}

func (mq *mockQueue) Dequeue(ctx context.Context) <-chan queue.Job {
	return mq.jobs
}

func (mq *mockQueue) Close() error {
	mq.once.Do(func() { close(mq.jobs) })
	return nil
}

func (mq *mockQueue) add(j queue.Job) { //nolint:gocritic // hugeParam: Job is passed by value into the channel
	mq.jobs <- j
}

type mockAnalyzer struct {
	err   error
	delay time.Duration
}

func (ma *mockAnalyzer) Analyze(ctx context.Context, req segmentation.Request) (*segmentation.Result, error) {
	if ma.delay > 0 {
		time.Sleep(ma.delay)
	}
	if ma.err != nil {
		return nil, ma.err
	}
	return &segmentation.Result{
		ID:       uuid.New(),
		Records:  len(req.Records),
		Metadata: segmentation.Metadata{K: 2},
	}, nil
}

// blockingAnalyzer holds every analysis until its context ends.
type blockingAnalyzer struct {
	started chan string
}

func (ba *blockingAnalyzer) Analyze(ctx context.Context, req segmentation.Request) (*segmentation.Result, error) {
	select {
	case ba.started <- req.Policy:
	default:
	}
	<-ctx.Done()
	return nil, ctx.Err()
}

type mockStore struct {
	mu       sync.Mutex
	started  map[string]bool
	complete map[string]*segmentation.Result
	failed   map[string]string
}

func newMockStore() *mockStore {
	return &mockStore{
		started:  map[string]bool{},
		complete: map[string]*segmentation.Result{},
		failed:   map[string]string{},
	}
}

func (ms *mockStore) Start(_ context.Context, id string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.started[id] = true
	return nil
}

func (ms *mockStore) Complete(_ context.Context, id string, res *segmentation.Result) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.complete[id] = res
	return nil
}

func (ms *mockStore) Fail(_ context.Context, id string, cause string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.failed[id] = cause
	return nil
}

func (ms *mockStore) finished() int {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return len(ms.complete) + len(ms.failed)
}

func (ms *mockStore) result(id string) *segmentation.Result {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return ms.complete[id]
}

func (ms *mockStore) failure(id string) (string, bool) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	cause, ok := ms.failed[id]
	return cause, ok
}

type mockPublisher struct {
	mu     sync.Mutex
	events []notify.Event
}

func (mp *mockPublisher) Publish(_ context.Context, e notify.Event) error {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	mp.events = append(mp.events, e)
	return nil
}

func (mp *mockPublisher) Close() error { return nil }

func (mp *mockPublisher) snapshot() []notify.Event {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	return append([]notify.Event(nil), mp.events...)
}

func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return false
}

func TestInMemoryWorker(t *testing.T) {
	convey.Convey("Given a new InMemoryWorker", t, func() {
		q := newMockQueue()
		store := newMockStore()
		pub := &mockPublisher{}

		convey.Convey("When creating a worker with default options", func() {
			w := worker.NewInMemoryWorker(q, &mockAnalyzer{}, store)

			convey.Convey("Then it should be created successfully", func() {
				convey.So(w, convey.ShouldNotBeNil)
			})
		})

		convey.Convey("When a job succeeds", func() {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			w := worker.NewInMemoryWorker(q, &mockAnalyzer{}, store,
				worker.WithName("test-worker"),
				worker.WithPublisher(pub),
			)
			go w.Run(ctx)

			id := uuid.NewString()
			q.add(queue.Job{AnalysisID: id, RequestID: "req-1"})

			convey.Convey("Then the result is stored under the submitted ID and announced", func() {
				convey.So(waitFor(func() bool { return store.result(id) != nil }), convey.ShouldBeTrue)
				convey.So(store.result(id).ID.String(), convey.ShouldEqual, id)
				convey.So(waitFor(func() bool { return len(pub.snapshot()) == 1 }), convey.ShouldBeTrue)

				ev := pub.snapshot()[0]
				convey.So(ev.Type, convey.ShouldEqual, notify.EventCompleted)
				convey.So(ev.RequestID, convey.ShouldEqual, "req-1")
				convey.So(ev.K, convey.ShouldEqual, 2)
			})
		})

		convey.Convey("When the analysis fails", func() {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			w := worker.NewInMemoryWorker(q, &mockAnalyzer{err: segmentation.ErrInsufficientData}, store,
				worker.WithPublisher(pub),
			)
			go w.Run(ctx)

			q.add(queue.Job{AnalysisID: "a-fail"})

			convey.Convey("Then the failure is recorded and announced", func() {
				convey.So(waitFor(func() bool { _, ok := store.failure("a-fail"); return ok }), convey.ShouldBeTrue)
				cause, _ := store.failure("a-fail")
				convey.So(cause, convey.ShouldContainSubstring, "insufficient")
				convey.So(waitFor(func() bool { return len(pub.snapshot()) == 1 }), convey.ShouldBeTrue)
				convey.So(pub.snapshot()[0].Type, convey.ShouldEqual, notify.EventFailed)
			})
		})

		convey.Convey("When shutting down", func() {
			w := worker.NewInMemoryWorker(q, &mockAnalyzer{}, store)
			go w.Run(context.Background())

			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			err := w.Shutdown(ctx)

			convey.Convey("Then it should shutdown gracefully", func() {
				convey.So(err, convey.ShouldBeNil)
			})
		})

		convey.Convey("When context is cancelled", func() {
			ctx, cancel := context.WithCancel(context.Background())
			w := worker.NewInMemoryWorker(q, &mockAnalyzer{}, store)

			done := make(chan struct{})
			go func() {
				w.Run(ctx)
				close(done)
			}()
			cancel()

			convey.Convey("Then worker should stop", func() {
				select {
				case <-done:
				case <-time.After(time.Second):
					t.Error("worker did not stop within timeout")
				}
			})
		})
	})
}

func TestWorkerPool(t *testing.T) {
	convey.Convey("Given a worker pool", t, func() {
		q := newMockQueue()
		store := newMockStore()

		convey.Convey("When creating a worker pool with default count", func() {
			pool := worker.NewPool(0, q, &mockAnalyzer{}, store, nil)

			convey.Convey("Then it should have at least one worker", func() {
				convey.So(pool.Size(), convey.ShouldBeGreaterThan, 0)
			})
		})

		convey.Convey("When processing many jobs and then shutting down", func() {
			pool := worker.NewPool(4, q, &mockAnalyzer{delay: time.Millisecond}, store, &mockPublisher{})
			pool.Start(context.Background())

			const jobs = 40
			for i := 0; i < jobs; i++ {
				q.add(queue.Job{AnalysisID: fmt.Sprintf("a%d", i)})
			}

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			err := pool.Shutdown(ctx)

			convey.Convey("Then every queued job is finished before the pool stops", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(store.finished(), convey.ShouldEqual, jobs)
			})
		})
	})
}

func TestWorkerPool_ShutdownAfterCancel(t *testing.T) {
	convey.Convey("Given a one-worker pool whose run context is cancelled mid-job", t, func() {
		q := newMockQueue()
		store := newMockStore()
		pub := &mockPublisher{}
		analyzer := &blockingAnalyzer{started: make(chan string, 1)}
		pool := worker.NewPool(1, q, analyzer, store, pub)

		runCtx, cancelRun := context.WithCancel(context.Background())
		pool.Start(runCtx)

		ids := []string{"11111111", "22222222", "33333333"}
		for _, id := range ids {
			q.add(queue.Job{AnalysisID: id})
		}

		select {
		case <-analyzer.started:
		case <-time.After(2 * time.Second):
			t.Fatal("first job never started")
		}
		cancelRun()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := pool.Shutdown(ctx)

		convey.Convey("Then no queued analysis is left pending", func() {
			convey.So(err, convey.ShouldBeNil)
			convey.So(store.finished(), convey.ShouldEqual, len(ids))
			for _, id := range ids {
				_, failed := store.failure(id)
				convey.So(failed, convey.ShouldBeTrue)
			}
			first, _ := store.failure("11111111")
			convey.So(first, convey.ShouldContainSubstring, "context canceled")
		})

		convey.Convey("And every abandoned job is announced as failed", func() {
			events := pub.snapshot()
			convey.So(events, convey.ShouldHaveLength, len(ids))
			for _, ev := range events {
				convey.So(ev.Type, convey.ShouldEqual, notify.EventFailed)
			}
		})
	})

	convey.Convey("Given a pool stopped before its worker picks up the queue", t, func() {
		q := newMockQueue()
		store := newMockStore()
		pool := worker.NewPool(1, q, &mockAnalyzer{}, store, nil)

		runCtx, cancelRun := context.WithCancel(context.Background())
		cancelRun()
		pool.Start(runCtx)
		time.Sleep(20 * time.Millisecond)

		q.add(queue.Job{AnalysisID: "late-1"})
		q.add(queue.Job{AnalysisID: "late-2"})

		err := pool.Shutdown(context.Background())

		convey.Convey("Then the leftovers are failed with the shutdown cause", func() {
			convey.So(err, convey.ShouldBeNil)
			for _, id := range []string{"late-1", "late-2"} {
				cause, ok := store.failure(id)
				convey.So(ok, convey.ShouldBeTrue)
				convey.So(cause, convey.ShouldEqual, worker.ErrShutdown.Error())
			}
		})
	})
}

func TestWorkerOptions(t *testing.T) {
	convey.Convey("Given worker options", t, func() {
		convey.Convey("When nil values are passed", func() {
			w := worker.NewInMemoryWorker(newMockQueue(), &mockAnalyzer{err: errors.New("x")}, newMockStore(),
				worker.WithName(""),
				worker.WithLogger(nil),
				worker.WithPublisher(nil),
			)

			convey.Convey("Then the defaults are kept", func() {
				convey.So(w, convey.ShouldNotBeNil)
			})
		})
	})
}
