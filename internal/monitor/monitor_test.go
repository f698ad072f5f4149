package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/sweeney/door-sentinel/internal/delivery"
	"github.com/sweeney/door-sentinel/internal/gpio"
	"github.com/sweeney/door-sentinel/internal/logging"
	"github.com/sweeney/door-sentinel/internal/logic"
	"github.com/sweeney/door-sentinel/internal/metrics"
	"github.com/sweeney/door-sentinel/internal/mqtt"
	"github.com/sweeney/door-sentinel/internal/protocol"
	"github.com/sweeney/door-sentinel/internal/status"
)

var t0 = time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)

const step = 10 * time.Millisecond

// ingest is a fake ingest endpoint recording decoded request bodies.
type ingest struct {
	srv    *httptest.Server
	mu     sync.Mutex
	bodies []map[string]any
	status int
}

func newIngest(t *testing.T) *ingest {
	t.Helper()
	in := &ingest{status: http.StatusOK}
	in.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		var body map[string]any
		if err := json.Unmarshal(b, &body); err != nil {
			t.Errorf("ingest received invalid JSON %q: %v", b, err)
		}
		in.mu.Lock()
		in.bodies = append(in.bodies, body)
		code := in.status
		in.mu.Unlock()
		w.WriteHeader(code)
	}))
	t.Cleanup(in.srv.Close)
	return in
}

func (in *ingest) setStatus(code int) {
	in.mu.Lock()
	in.status = code
	in.mu.Unlock()
}

func (in *ingest) requests() []map[string]any {
	in.mu.Lock()
	defer in.mu.Unlock()
	return append([]map[string]any(nil), in.bodies...)
}

type harness struct {
	mon     *Monitor
	dev     *gpio.FakeDevice
	emitter *protocol.FakeEmitter
	ingest  *ingest
	linkUp  bool
	mirror  *mqtt.FakePublisher
	tracker *status.Tracker
}

func newHarness(t *testing.T, samples ...bool) *harness {
	t.Helper()
	h := &harness{
		dev:     gpio.NewFakeDevice(samples...),
		emitter: &protocol.FakeEmitter{},
		ingest:  newIngest(t),
		linkUp:  true,
		mirror:  mqtt.NewFakePublisher(),
		tracker: status.NewTracker(t0, status.Config{DoorID: "2"}),
	}
	logger := logging.Discard()
	channel := delivery.New(
		delivery.Config{URL: h.ingest.srv.URL, DoorID: "2", Timeout: time.Second},
		delivery.LinkFunc(func() bool { return h.linkUp }),
		nil,
	)
	h.mon = New(Deps{
		Sensor:   h.dev,
		Siren:    h.dev,
		Reporter: channel,
		Router:   protocol.NewRouter("2", "Emergency Gate Dock", h.emitter, logger),
		Mirror:   h.mirror,
		Tracker:  h.tracker,
		Metrics:  metrics.New(),
		Logger:   logger,
	}, Config{
		DoorID:     "2",
		DoorName:   "Emergency Gate Dock",
		Start:      t0,
		Debounce:   logic.DefaultDebounce,
		Siren:      logic.DefaultSirenDuration,
		Heartbeat:  logic.DefaultHeartbeatInterval,
		FlushRetry: DefaultFlushRetry,
		Location:   time.UTC,
	})
	return h
}

// run ticks once per step for ticks [from, to).
func (h *harness) run(from, to int) {
	for i := from; i < to; i++ {
		h.mon.Tick(context.Background(), t0.Add(time.Duration(i)*step))
	}
}

// levels builds a sample script from alternating runs starting LOW.
func levels(runs ...int) []bool {
	var out []bool
	level := false
	for _, n := range runs {
		for i := 0; i < n; i++ {
			out = append(out, level)
		}
		level = !level
	}
	return out
}

func TestOpenWhileOnlineReportsOnceAndSoundsSiren(t *testing.T) {
	// LOW for 100ms, then HIGH held; the opening commits at 160ms.
	h := newHarness(t, levels(10, 1)...)
	h.run(0, 30)

	reqs := h.ingest.requests()
	if len(reqs) != 1 {
		t.Fatalf("expected exactly 1 report, got %d: %v", len(reqs), reqs)
	}
	if reqs[0]["open"] != true || reqs[0]["offline_mode"] != false || reqs[0]["door"] != "2" {
		t.Errorf("unexpected report: %v", reqs[0])
	}
	if h.mon.DoorState() != logic.DoorOpen {
		t.Errorf("door state: got %s, want OPEN", h.mon.DoorState())
	}
	if !h.mon.SirenActive() || !h.dev.Siren {
		t.Error("siren should be sounding after opening")
	}

	opened := t0.Add(160 * time.Millisecond)
	h.mon.Tick(context.Background(), opened.Add(logic.DefaultSirenDuration-time.Millisecond))
	if !h.mon.SirenActive() {
		t.Error("siren released before its duration elapsed")
	}
	h.mon.Tick(context.Background(), opened.Add(logic.DefaultSirenDuration))
	if h.mon.SirenActive() || h.dev.Siren {
		t.Error("siren should be released at open+10s")
	}

	if len(h.ingest.requests()) != 1 {
		t.Error("siren release must not produce a report")
	}
	if got := h.dev.SirenHistory; len(got) != 2 || !got[0] || got[1] {
		t.Errorf("siren output history: got %v, want [true false]", got)
	}
}

func TestBounceShorterThanDebounceIgnored(t *testing.T) {
	// HIGH for 50ms only.
	h := newHarness(t, levels(10, 5, 1)...)
	h.run(0, 40)

	if n := len(h.ingest.requests()); n != 0 {
		t.Errorf("expected no reports for a bounce, got %d", n)
	}
	if h.mon.SirenActive() {
		t.Error("siren armed by a bounce")
	}
}

func TestCloseWhileLinkDownGoesOfflineWithoutBuffering(t *testing.T) {
	h := newHarness(t, levels(10, 20, 1)...)
	h.run(0, 30) // opening at 160ms, reported online

	h.linkUp = false
	h.run(30, 40) // closing at 360ms

	if h.mon.DoorState() != logic.DoorClosed {
		t.Fatalf("door state: got %s, want CLOSED", h.mon.DoorState())
	}
	if h.mon.Mode() != delivery.Offline {
		t.Errorf("mode: got %s, want offline", h.mon.Mode())
	}
	if h.mon.Buffered() != 0 {
		t.Errorf("closure must not be buffered, buffer holds %d", h.mon.Buffered())
	}
	if n := len(h.ingest.requests()); n != 1 {
		t.Errorf("expected only the opening report, got %d", n)
	}
	if h.mon.SirenActive() || h.dev.Siren {
		t.Error("closing should silence the siren")
	}
}

func TestOfflineOpeningBufferedThenFlushed(t *testing.T) {
	h := newHarness(t, levels(10, 20, 20, 1)...)

	h.linkUp = false
	h.run(0, 30) // opening at 160ms fails, channel goes offline
	if h.mon.Mode() != delivery.Offline {
		t.Fatalf("mode after failed report: got %s, want offline", h.mon.Mode())
	}
	if h.mon.Buffered() != 0 {
		t.Errorf("failed direct report must not be buffered, got %d", h.mon.Buffered())
	}

	h.run(30, 50) // closing at 360ms while offline: dropped
	if h.mon.Buffered() != 0 {
		t.Errorf("offline closure buffered: %d", h.mon.Buffered())
	}

	h.linkUp = true
	h.run(50, 70) // opening at 560ms: buffered, flushed immediately

	reqs := h.ingest.requests()
	if len(reqs) != 1 {
		t.Fatalf("expected 1 bulk report, got %d: %v", len(reqs), reqs)
	}
	bulk := reqs[0]
	if bulk["offline_mode"] != true || bulk["door"] != "2" {
		t.Errorf("unexpected bulk body: %v", bulk)
	}
	openings, ok := bulk["offline_openings"].([]any)
	if !ok || len(openings) != 1 || openings[0] != "4/3/2026 5:6:7" {
		t.Errorf("offline_openings: got %v", bulk["offline_openings"])
	}
	if h.mon.Mode() != delivery.Online {
		t.Errorf("mode after flush: got %s, want online", h.mon.Mode())
	}
	if h.mon.Buffered() != 0 {
		t.Errorf("buffer not cleared after flush: %d", h.mon.Buffered())
	}
}

func TestOfflineFlushRetriedUntilIngestRecovers(t *testing.T) {
	h := newHarness(t, levels(10, 20, 20, 1)...)
	h.ingest.setStatus(http.StatusInternalServerError)

	h.run(0, 50)  // opening rejected -> offline, closing dropped
	h.run(50, 70) // opening at 560ms buffered, immediate flush rejected

	if h.mon.Mode() != delivery.Offline {
		t.Fatalf("mode: got %s, want offline", h.mon.Mode())
	}
	if h.mon.Buffered() != 1 {
		t.Fatalf("buffer: got %d, want 1", h.mon.Buffered())
	}
	before := len(h.ingest.requests())

	h.ingest.setStatus(http.StatusOK)
	opened := t0.Add(560 * time.Millisecond)

	h.mon.Tick(context.Background(), opened.Add(DefaultFlushRetry-time.Millisecond))
	if n := len(h.ingest.requests()); n != before {
		t.Errorf("flush retried before interval: %d requests, want %d", n, before)
	}

	h.mon.Tick(context.Background(), opened.Add(DefaultFlushRetry))
	reqs := h.ingest.requests()
	if len(reqs) != before+1 {
		t.Fatalf("expected retry at flush interval, got %d requests", len(reqs))
	}
	if reqs[len(reqs)-1]["offline_mode"] != true {
		t.Errorf("retry should be a bulk report: %v", reqs[len(reqs)-1])
	}
	if h.mon.Mode() != delivery.Online || h.mon.Buffered() != 0 {
		t.Errorf("after retry: mode=%s buffered=%d", h.mon.Mode(), h.mon.Buffered())
	}
}

func TestStatusQueryForOtherDoorIgnored(t *testing.T) {
	h := newHarness(t, false)
	h.mon.HandleInbound(protocol.Inbound{Signal: protocol.SignalConnect})
	h.mon.HandleInbound(protocol.Inbound{
		Signal:  protocol.SignalEvent,
		Payload: []byte(`["get_door_status",{"door":"9"}]`),
	})

	if len(h.emitter.Frames) != 0 {
		t.Errorf("expected no frames, got %q", h.emitter.Frames)
	}
}

func TestStatusQueryWhileOpen(t *testing.T) {
	h := newHarness(t, levels(10, 1)...)
	h.run(0, 30)

	h.mon.HandleInbound(protocol.Inbound{Signal: protocol.SignalConnect})
	h.mon.HandleInbound(protocol.Inbound{
		Signal:  protocol.SignalEvent,
		Payload: []byte(`["get_door_status",{"door":"2"}]`),
	})

	if len(h.emitter.Frames) != 1 {
		t.Fatalf("expected 1 frame, got %d", len(h.emitter.Frames))
	}
	want := `["door_status",{"door":"2","status":true}]`
	if got := string(h.emitter.Frames[0]); got != want {
		t.Errorf("frame: got %s, want %s", got, want)
	}
	if !h.tracker.Snapshot().SocketConnected {
		t.Error("tracker should report socket connected")
	}
}

func TestHeartbeatOnlyWhileConnected(t *testing.T) {
	h := newHarness(t, false)

	h.mon.Tick(context.Background(), t0.Add(5*time.Second))
	if len(h.emitter.Frames) != 0 {
		t.Fatalf("heartbeat sent while disconnected: %q", h.emitter.Frames)
	}

	h.mon.HandleInbound(protocol.Inbound{Signal: protocol.SignalConnect})
	h.mon.Tick(context.Background(), t0.Add(10*time.Second))

	if len(h.emitter.Frames) != 1 {
		t.Fatalf("expected 1 heartbeat, got %d", len(h.emitter.Frames))
	}
	if got := string(h.emitter.Frames[0]); got != `["heartbeat",{"2":10000}]` {
		t.Errorf("heartbeat frame: got %s", got)
	}
}

func TestSensorErrorStillReleasesSiren(t *testing.T) {
	h := newHarness(t, levels(10, 1)...)
	h.run(0, 30)
	if !h.mon.SirenActive() {
		t.Fatal("siren should be active")
	}

	h.dev.ReadError = errors.New("line busy")
	h.mon.Tick(context.Background(), t0.Add(160*time.Millisecond+logic.DefaultSirenDuration))

	if h.mon.SirenActive() || h.dev.Siren {
		t.Error("siren should be released even when the sensor read fails")
	}
	if h.mon.DoorState() != logic.DoorOpen {
		t.Error("door state must not change on a failed read")
	}
}

func TestTransitionsMirroredAndTracked(t *testing.T) {
	h := newHarness(t, levels(10, 20, 1)...)
	h.run(0, 30)

	snap := h.tracker.Snapshot()
	if snap.Door.State != logic.DoorOpen || !snap.Door.SirenActive || !snap.Door.Online {
		t.Errorf("tracker after opening: %+v", snap.Door)
	}

	h.run(30, 40)

	if len(h.mirror.Events) != 2 {
		t.Fatalf("expected 2 mirrored events, got %d", len(h.mirror.Events))
	}
	if h.mirror.Events[0].State != logic.DoorOpen || h.mirror.Events[1].State != logic.DoorClosed {
		t.Errorf("mirrored states: %s, %s", h.mirror.Events[0].State, h.mirror.Events[1].State)
	}
	if h.mirror.Events[0].Name != "Emergency Gate Dock" {
		t.Errorf("mirrored name: %q", h.mirror.Events[0].Name)
	}

	snap = h.tracker.Snapshot()
	if snap.Door.Counts.Opened != 1 || snap.Door.Counts.Closed != 1 {
		t.Errorf("counts: %+v", snap.Door.Counts)
	}
	if snap.Door.SirenActivations != 1 {
		t.Errorf("siren activations: %d", snap.Door.SirenActivations)
	}
}

func TestMirrorFailureDoesNotAffectReport(t *testing.T) {
	h := newHarness(t, levels(10, 1)...)
	h.mirror.PublishError = errors.New("broker down")
	h.run(0, 30)

	if n := len(h.ingest.requests()); n != 1 {
		t.Errorf("expected report despite mirror failure, got %d", n)
	}
}

func TestSirenOutputFailureRetried(t *testing.T) {
	h := newHarness(t, levels(10, 1)...)
	h.dev.SetError = errors.New("relay fault")
	h.run(0, 20)

	if h.dev.Siren {
		t.Fatal("output should not have changed while Set fails")
	}

	h.dev.SetError = nil
	h.run(20, 21)
	if !h.dev.Siren {
		t.Error("siren output should be driven once Set succeeds")
	}
}

func TestDeliveryResult(t *testing.T) {
	if got := deliveryResult(nil); got != metrics.ResultSuccess {
		t.Errorf("nil: got %s", got)
	}
	if got := deliveryResult(&delivery.RejectedError{StatusCode: 500}); got != metrics.ResultRejected {
		t.Errorf("rejected: got %s", got)
	}
	if got := deliveryResult(delivery.ErrUnreachable); got != metrics.ResultError {
		t.Errorf("unreachable: got %s", got)
	}
}
