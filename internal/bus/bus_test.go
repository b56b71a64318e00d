package bus

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/opensource-finance/lavandowski/internal/domain"
)

func waitFor(t *testing.T, ch <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatalf("timeout waiting for %s", what)
	}
}

func TestQueued(t *testing.T) {
	if !Queued(domain.TopicRunRequested) {
		t.Error("run requests should be queued")
	}
	for _, topic := range []string{domain.TopicBatchStarted, domain.TopicCaseAnalyzed, domain.TopicBatchComplete} {
		if Queued(topic) {
			t.Errorf("%s should fan out", topic)
		}
	}
}

func TestChannelBusRunRequests(t *testing.T) {
	ctx := context.Background()

	t.Run("DecodedByWorker", func(t *testing.T) {
		b := NewChannelBus(10)
		defer b.Close()

		got := make(chan domain.RunRequest, 1)
		_, err := b.Subscribe(ctx, domain.TopicRunRequested, func(ctx context.Context, msg *domain.Message) error {
			var req domain.RunRequest
			if err := Decode(msg, &req); err != nil {
				return err
			}
			got <- req
			return nil
		})
		if err != nil {
			t.Fatalf("subscribe failed: %v", err)
		}

		want := domain.RunRequest{RunID: "run-1", Days: 3, DryRun: true}
		if err := PublishJSON(ctx, b, domain.TopicRunRequested, want); err != nil {
			t.Fatalf("publish failed: %v", err)
		}
		select {
		case req := <-got:
			if req != want {
				t.Errorf("received %+v, want %+v", req, want)
			}
		case <-time.After(time.Second):
			t.Fatal("timeout waiting for run request")
		}
	})

	t.Run("OneWorkerPerRequest", func(t *testing.T) {
		b := NewChannelBus(10)
		defer b.Close()

		var perWorker [3]atomic.Int32
		var total atomic.Int32
		done := make(chan struct{})
		const requests = 6
		for i := range perWorker {
			i := i
			_, _ = b.Subscribe(ctx, domain.TopicRunRequested, func(ctx context.Context, msg *domain.Message) error {
				perWorker[i].Add(1)
				if total.Add(1) == requests {
					close(done)
				}
				return nil
			})
		}

		for i := 0; i < requests; i++ {
			if err := b.Publish(ctx, domain.TopicRunRequested, []byte("{}")); err != nil {
				t.Fatalf("publish %d failed: %v", i, err)
			}
		}
		waitFor(t, done, "run requests")
		time.Sleep(20 * time.Millisecond)

		if total.Load() != requests {
			t.Errorf("handled %d requests, want %d", total.Load(), requests)
		}
		for i := range perWorker {
			if n := perWorker[i].Load(); n != 2 {
				t.Errorf("worker %d handled %d requests, want 2", i, n)
			}
		}
	})

	t.Run("WorkersBusy", func(t *testing.T) {
		b := NewChannelBus(1)
		defer b.Close()

		release := make(chan struct{})
		started := make(chan struct{}, 1)
		_, _ = b.Subscribe(ctx, domain.TopicRunRequested, func(ctx context.Context, msg *domain.Message) error {
			started <- struct{}{}
			<-release
			return nil
		})
		defer close(release)

		_ = b.Publish(ctx, domain.TopicRunRequested, []byte("1"))
		waitFor(t, started, "first run")
		_ = b.Publish(ctx, domain.TopicRunRequested, []byte("2"))

		if err := b.Publish(ctx, domain.TopicRunRequested, []byte("3")); !errors.Is(err, ErrWorkersBusy) {
			t.Errorf("expected ErrWorkersBusy, got %v", err)
		}
	})

	t.Run("NoWorker", func(t *testing.T) {
		b := NewChannelBus(1)
		defer b.Close()
		if err := b.Publish(ctx, domain.TopicRunRequested, []byte("{}")); err != nil {
			t.Errorf("publish without workers: %v", err)
		}
	})
}

func TestChannelBusEvents(t *testing.T) {
	b := NewChannelBus(100)
	defer b.Close()
	ctx := context.Background()

	t.Run("TopicIsolation", func(t *testing.T) {
		var other atomic.Int32
		done := make(chan struct{})

		_, _ = b.Subscribe(ctx, domain.TopicCaseFailed, func(ctx context.Context, msg *domain.Message) error {
			other.Add(1)
			return nil
		})
		_, _ = b.Subscribe(ctx, domain.TopicCaseAnalyzed, func(ctx context.Context, msg *domain.Message) error {
			close(done)
			return nil
		})

		_ = b.Publish(ctx, domain.TopicCaseAnalyzed, []byte("{}"))
		waitFor(t, done, "case analyzed")

		if other.Load() != 0 {
			t.Errorf("failed-topic subscriber received %d messages", other.Load())
		}
	})

	t.Run("EveryRegistrySeesBatchEvents", func(t *testing.T) {
		done := make(chan struct{}, 3)
		for i := 0; i < 3; i++ {
			_, _ = b.Subscribe(ctx, domain.TopicBatchStarted, func(ctx context.Context, msg *domain.Message) error {
				done <- struct{}{}
				return nil
			})
		}

		_ = PublishJSON(ctx, b, domain.TopicBatchStarted, domain.RunStarted{RunID: "r", Total: 4})
		for i := 0; i < 3; i++ {
			waitFor(t, done, "batch started")
		}
	})

	t.Run("Metadata", func(t *testing.T) {
		got := make(chan map[string]string, 1)
		_, _ = b.Subscribe(ctx, domain.TopicBatchComplete, func(ctx context.Context, msg *domain.Message) error {
			got <- msg.Metadata
			return nil
		})

		mdCtx := WithMetadata(WithMetadata(ctx, "request_id", "req-9"), "origin", "api")
		_ = b.Publish(mdCtx, domain.TopicBatchComplete, []byte("{}"))

		select {
		case md := <-got:
			if md["request_id"] != "req-9" || md["origin"] != "api" {
				t.Errorf("unexpected metadata: %v", md)
			}
		case <-time.After(time.Second):
			t.Fatal("timeout waiting for batch complete")
		}
	})

	t.Run("PanickingHandlerKeepsConsuming", func(t *testing.T) {
		done := make(chan struct{})
		var calls atomic.Int32
		_, _ = b.Subscribe(ctx, domain.TopicBatchStarted+".panics", func(ctx context.Context, msg *domain.Message) error {
			if calls.Add(1) == 1 {
				panic("nil report")
			}
			close(done)
			return nil
		})

		_ = b.Publish(ctx, domain.TopicBatchStarted+".panics", []byte("1"))
		_ = b.Publish(ctx, domain.TopicBatchStarted+".panics", []byte("2"))
		waitFor(t, done, "second message after panic")
	})

	t.Run("Unsubscribe", func(t *testing.T) {
		var count atomic.Int32
		sub, _ := b.Subscribe(ctx, domain.TopicCaseFailed, func(ctx context.Context, msg *domain.Message) error {
			count.Add(1)
			return nil
		})

		if err := sub.Unsubscribe(); err != nil {
			t.Fatalf("unsubscribe failed: %v", err)
		}
		if sub.Topic() != domain.TopicCaseFailed {
			t.Errorf("Topic() = %s", sub.Topic())
		}
		_ = b.Publish(ctx, domain.TopicCaseFailed, []byte("x"))
		time.Sleep(20 * time.Millisecond)

		if count.Load() != 0 {
			t.Errorf("received %d messages after unsubscribe", count.Load())
		}
	})
}

func TestChannelBusClose(t *testing.T) {
	b := NewChannelBus(10)
	ctx := context.Background()

	_, _ = b.Subscribe(ctx, domain.TopicCaseAnalyzed, func(ctx context.Context, msg *domain.Message) error {
		return nil
	})

	if err := b.Close(); err != nil {
		t.Errorf("close failed: %v", err)
	}
	if err := b.Close(); err != nil {
		t.Errorf("second close failed: %v", err)
	}
	if err := b.Publish(ctx, domain.TopicCaseAnalyzed, []byte("data")); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
	if _, err := b.Subscribe(ctx, domain.TopicCaseAnalyzed, nil); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed on subscribe, got %v", err)
	}
	if err := b.Ping(ctx); err == nil {
		t.Error("expected ping error after close")
	}
}

func TestChannelBusOrderedPerSubscription(t *testing.T) {
	b := NewChannelBus(200)
	defer b.Close()
	ctx := context.Background()

	const cases = 100
	var next atomic.Int32
	var outOfOrder atomic.Int32
	done := make(chan struct{})

	_, _ = b.Subscribe(ctx, domain.TopicCaseAnalyzed, func(ctx context.Context, msg *domain.Message) error {
		var res domain.CaseResult
		if err := Decode(msg, &res); err != nil {
			return err
		}
		if int32(res.UserID) != next.Load() {
			outOfOrder.Add(1)
		}
		if next.Add(1) == cases {
			close(done)
		}
		return nil
	})

	for i := 0; i < cases; i++ {
		_ = PublishJSON(ctx, b, domain.TopicCaseAnalyzed, domain.CaseResult{RunID: "r", UserID: int64(i)})
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("timeout: received %d/%d cases", next.Load(), cases)
	}
	if outOfOrder.Load() != 0 {
		t.Errorf("%d cases delivered out of order", outOfOrder.Load())
	}
}

func TestNewBus(t *testing.T) {
	t.Run("ChannelType", func(t *testing.T) {
		b, err := New(domain.EventBusConfig{Type: "channel", ChannelBufferSize: 50})
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		defer b.Close()

		if _, ok := b.(*ChannelBus); !ok {
			t.Error("expected ChannelBus for channel type")
		}
	})

	t.Run("UnsupportedType", func(t *testing.T) {
		if _, err := New(domain.EventBusConfig{Type: "kafka"}); err == nil {
			t.Error("expected error for unsupported type")
		}
	})
}

func TestNATSDefaults(t *testing.T) {
	cfg := natsDefaults(domain.EventBusConfig{Type: "nats"})
	if cfg.NATSUrl == "" || cfg.NATSMaxReconnects != 10 || cfg.NATSReconnectWait != 5 {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.NATSQueueGroup != DefaultQueueGroup {
		t.Errorf("queue group = %q", cfg.NATSQueueGroup)
	}

	kept := natsDefaults(domain.EventBusConfig{NATSUrl: "nats://bus:4222", NATSQueueGroup: "eu-workers"})
	if kept.NATSUrl != "nats://bus:4222" || kept.NATSQueueGroup != "eu-workers" {
		t.Errorf("explicit settings overwritten: %+v", kept)
	}
}
