package dispatcher

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// testLogger implements Logger for testing
type testLogger struct {
	mu       sync.Mutex
	messages []string
}

func (l *testLogger) Debug(msg string, keysAndValues ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, fmt.Sprintf("DEBUG: %s %v", msg, keysAndValues))
}

func (l *testLogger) Info(msg string, keysAndValues ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, fmt.Sprintf("INFO: %s %v", msg, keysAndValues))
}

func (l *testLogger) Error(msg string, keysAndValues ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, fmt.Sprintf("ERROR: %s %v", msg, keysAndValues))
}

func (l *testLogger) has(prefix string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, m := range l.messages {
		if strings.HasPrefix(m, prefix) {
			return true
		}
	}
	return false
}

func newTestDispatcher(t *testing.T) (*Dispatcher, *testLogger) {
	logger := &testLogger{}

	d, err := New(logger)
	if err != nil {
		t.Fatalf("failed to create dispatcher: %v", err)
	}

	return d, logger
}

func TestDispatcher_SyncHandler(t *testing.T) {
	d, _ := newTestDispatcher(t)

	var got Event
	d.Register("report", func(e Event) error {
		got = e
		return nil
	})

	err := d.Dispatch(Event{Topic: "report", Step: 7, Payload: "world"})

	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if got.Step != 7 || got.Payload != "world" {
		t.Errorf("handler saw %+v", got)
	}
	if got.Timestamp.IsZero() {
		t.Error("expected timestamp to be filled in")
	}
}

func TestDispatcher_FanOut(t *testing.T) {
	d, _ := newTestDispatcher(t)

	var order []string
	d.Register("addObject", func(e Event) error {
		order = append(order, "recorder")
		return nil
	})
	d.Register("addObject", func(e Event) error {
		order = append(order, "stream")
		return errors.New("stream down")
	})
	d.Register("addObject", func(e Event) error {
		order = append(order, "influx")
		return nil
	})

	err := d.Dispatch(Event{Topic: "addObject"})

	if err == nil || !strings.Contains(err.Error(), "stream down") {
		t.Errorf("expected joined handler error, got %v", err)
	}
	if strings.Join(order, ",") != "recorder,stream,influx" {
		t.Errorf("unexpected order %v", order)
	}
}

func TestDispatcher_UnknownTopic(t *testing.T) {
	d, _ := newTestDispatcher(t)

	err := d.Dispatch(Event{Topic: "teleport"})

	if !errors.Is(err, ErrNoHandler) {
		t.Errorf("expected ErrNoHandler, got %v", err)
	}
}

func TestDispatcher_BufferedHandler(t *testing.T) {
	d, _ := newTestDispatcher(t)

	var processed atomic.Int32
	var wg sync.WaitGroup
	wg.Add(3)

	d.Register("report", func(e Event) error {
		processed.Add(1)
		wg.Done()
		return nil
	}, Buffered(100))

	for i := 0; i < 3; i++ {
		if err := d.Dispatch(Event{Topic: "report"}); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	}

	wg.Wait()

	if processed.Load() != 3 {
		t.Errorf("expected 3 processed, got %d", processed.Load())
	}
}

func TestDispatcher_BufferedDropsWhenFull(t *testing.T) {
	d, _ := newTestDispatcher(t)

	started := make(chan struct{}, 1)
	block := make(chan struct{})
	d.Register("report", func(e Event) error {
		select {
		case started <- struct{}{}:
		default:
		}
		<-block
		return nil
	}, Buffered(2))

	d.Dispatch(Event{Topic: "report"}) // being processed
	<-started
	d.Dispatch(Event{Topic: "report"}) // queued
	d.Dispatch(Event{Topic: "report"}) // queued

	err := d.Dispatch(Event{Topic: "report"})

	if !errors.Is(err, ErrQueueFull) {
		t.Errorf("expected ErrQueueFull, got %v", err)
	}

	close(block)
}

func TestDispatcher_BufferedBlocking(t *testing.T) {
	d, _ := newTestDispatcher(t)

	started := make(chan struct{}, 1)
	block := make(chan struct{})
	d.Register("report", func(e Event) error {
		select {
		case started <- struct{}{}:
		default:
		}
		<-block
		return nil
	}, Buffered(1), Blocking())

	d.Dispatch(Event{Topic: "report"})
	<-started
	d.Dispatch(Event{Topic: "report"})

	done := make(chan struct{})
	go func() {
		d.Dispatch(Event{Topic: "report"})
		close(done)
	}()

	select {
	case <-done:
		t.Error("dispatch should have blocked")
	case <-time.After(50 * time.Millisecond):
	}

	close(block)
	<-done
}

func TestDispatcher_BufferedErrorLogged(t *testing.T) {
	d, logger := newTestDispatcher(t)

	d.Register("report", func(e Event) error {
		return errors.New("disk full")
	}, Buffered(4))

	d.Dispatch(Event{Topic: "report"})
	d.Close()

	if !logger.has("ERROR: buffered handler failed") {
		t.Errorf("expected error log, got %v", logger.messages)
	}
}

func TestDispatcher_CloseDrains(t *testing.T) {
	d, _ := newTestDispatcher(t)

	var processed atomic.Int32
	d.Register("simulate", func(e Event) error {
		time.Sleep(time.Millisecond)
		processed.Add(1)
		return nil
	}, Buffered(16), Blocking())

	for i := 0; i < 10; i++ {
		d.Dispatch(Event{Topic: "simulate", Step: i})
	}
	d.Close()

	if processed.Load() != 10 {
		t.Errorf("expected 10 processed after close, got %d", processed.Load())
	}

	// dispatching after close is a no-op
	if err := d.Dispatch(Event{Topic: "simulate"}); err != nil {
		t.Errorf("unexpected error after close: %v", err)
	}
	d.Close()
}

func TestDispatcher_LoggedHandler(t *testing.T) {
	d, logger := newTestDispatcher(t)

	d.Register("init", func(e Event) error {
		return nil
	}, Logged())

	d.Dispatch(Event{Topic: "init"})

	logger.mu.Lock()
	defer logger.mu.Unlock()

	if len(logger.messages) < 2 {
		t.Errorf("expected at least 2 log messages, got %d", len(logger.messages))
	}
}

func TestDispatcher_LoggedHandlerError(t *testing.T) {
	d, logger := newTestDispatcher(t)

	d.Register("init", func(e Event) error {
		return fmt.Errorf("test error")
	}, Logged())

	d.Dispatch(Event{Topic: "init"})

	if !logger.has("ERROR") {
		t.Error("expected error log message")
	}
}

func TestDispatcher_HasHandler(t *testing.T) {
	d, _ := newTestDispatcher(t)

	d.Register("report", func(e Event) error { return nil })

	if !d.HasHandler("report") {
		t.Error("expected handler to exist")
	}

	if d.HasHandler("worldReady") {
		t.Error("expected handler to not exist")
	}
}

func TestDispatcher_CombinedOptions(t *testing.T) {
	d, logger := newTestDispatcher(t)

	var processed atomic.Int32
	var wg sync.WaitGroup
	wg.Add(1)

	d.Register("report", func(e Event) error {
		processed.Add(1)
		wg.Done()
		return nil
	}, Buffered(100), Logged())

	if err := d.Dispatch(Event{Topic: "report"}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	wg.Wait()

	if processed.Load() != 1 {
		t.Errorf("expected 1 processed, got %d", processed.Load())
	}

	logger.mu.Lock()
	defer logger.mu.Unlock()

	if len(logger.messages) < 2 {
		t.Errorf("expected log messages, got %d", len(logger.messages))
	}
}
