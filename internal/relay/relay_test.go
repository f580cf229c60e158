package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"relay-server/internal/logger"
	"relay-server/internal/protocol"
	"relay-server/internal/queue"
	"relay-server/internal/registry"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

var errConnClosed = errors.New("fake connection closed")

type fakeConn struct {
	name   string
	mu     sync.Mutex
	frames [][]byte
	closed bool
}

func (c *fakeConn) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errConnClosed
	}
	c.frames = append(c.frames, append([]byte(nil), data...))
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) RemoteAddr() string { return c.name }

type frame struct {
	ID   int             `json:"id"`
	Data json.RawMessage `json:"data"`
}

// take returns and clears the frames written to c so far.
func (c *fakeConn) take(t *testing.T) []frame {
	t.Helper()
	c.mu.Lock()
	raw := c.frames
	c.frames = nil
	c.mu.Unlock()

	out := make([]frame, 0, len(raw))
	for _, b := range raw {
		var f frame
		if err := json.Unmarshal(b, &f); err != nil {
			t.Fatalf("invalid frame %s: %v", b, err)
		}
		out = append(out, f)
	}
	return out
}

type lifecyclePayload struct {
	ClientID     string `json:"client_id"`
	TotalClients int    `json:"total_clients"`
}

func decodeLifecycle(t *testing.T, f frame) lifecyclePayload {
	t.Helper()
	var p lifecyclePayload
	if err := json.Unmarshal(f.Data, &p); err != nil {
		t.Fatalf("invalid lifecycle payload %s: %v", f.Data, err)
	}
	return p
}

func sequentialIDs() func() string {
	var n atomic.Int64
	return func() string {
		return fmt.Sprintf("client-%d", n.Add(1))
	}
}

func newTestRelay(cfg Config) *Relay {
	if cfg.Logger == nil {
		cfg.Logger = logger.Discard()
	}
	return New(registry.New(registry.WithIDGenerator(sequentialIDs())), cfg)
}

func open(t *testing.T, r *Relay, name string) (*fakeConn, registry.Client) {
	t.Helper()
	conn := &fakeConn{name: name}
	client, err := r.OnOpen(conn)
	if err != nil {
		t.Fatalf("OnOpen(%s) failed: %v", name, err)
	}
	return conn, client
}

func TestLifecycleAnnouncements(t *testing.T) {
	r := newTestRelay(Config{})

	a, _ := open(t, r, "A")
	if got := a.take(t); len(got) != 0 {
		t.Fatalf("first client should receive nothing, got %d frames", len(got))
	}

	b, _ := open(t, r, "B")
	got := a.take(t)
	if len(got) != 1 || got[0].ID != int(protocol.KindConnect) {
		t.Fatalf("A expected one CONNECT, got %+v", got)
	}
	if p := decodeLifecycle(t, got[0]); p.ClientID != "client-2" || p.TotalClients != 2 {
		t.Fatalf("unexpected CONNECT payload: %+v", p)
	}
	if got := b.take(t); len(got) != 0 {
		t.Fatalf("B must not see its own CONNECT, got %+v", got)
	}

	c, _ := open(t, r, "C")
	for name, conn := range map[string]*fakeConn{"A": a, "B": b} {
		got := conn.take(t)
		if len(got) != 1 || got[0].ID != int(protocol.KindConnect) {
			t.Fatalf("%s expected one CONNECT, got %+v", name, got)
		}
		if p := decodeLifecycle(t, got[0]); p.ClientID != "client-3" || p.TotalClients != 3 {
			t.Fatalf("%s unexpected CONNECT payload: %+v", name, p)
		}
	}
	c.take(t)

	r.OnClose(b)
	for name, conn := range map[string]*fakeConn{"A": a, "C": c} {
		got := conn.take(t)
		if len(got) != 1 || got[0].ID != int(protocol.KindDisconnect) {
			t.Fatalf("%s expected one DISCONNECT, got %+v", name, got)
		}
		if p := decodeLifecycle(t, got[0]); p.ClientID != "client-2" || p.TotalClients != 2 {
			t.Fatalf("%s unexpected DISCONNECT payload: %+v", name, p)
		}
	}

	if r.Registry().Size() != 2 {
		t.Fatalf("expected 2 clients, got %d", r.Registry().Size())
	}
}

func TestOnCloseIsIdempotent(t *testing.T) {
	r := newTestRelay(Config{})
	a, _ := open(t, r, "A")
	b, _ := open(t, r, "B")
	a.take(t)

	r.OnClose(b)
	r.OnClose(b)
	r.OnClose(&fakeConn{name: "never-registered"})

	if got := a.take(t); len(got) != 1 {
		t.Fatalf("expected exactly one DISCONNECT, got %d", len(got))
	}
}

func TestWelcomeSentBeforeConnectBroadcast(t *testing.T) {
	r := newTestRelay(Config{SendWelcome: true})

	a, _ := open(t, r, "A")
	got := a.take(t)
	if len(got) != 1 || got[0].ID != int(protocol.KindWelcome) {
		t.Fatalf("expected WELCOME, got %+v", got)
	}
	if p := decodeLifecycle(t, got[0]); p.ClientID != "client-1" || p.TotalClients != 1 {
		t.Fatalf("unexpected WELCOME payload: %+v", p)
	}

	b, _ := open(t, r, "B")
	if got := b.take(t); len(got) != 1 || got[0].ID != int(protocol.KindWelcome) {
		t.Fatalf("B expected only WELCOME, got %+v", got)
	}
	if got := a.take(t); len(got) != 1 || got[0].ID != int(protocol.KindConnect) {
		t.Fatalf("A expected only CONNECT, got %+v", got)
	}
}

func TestWelcomeIsFirstFrameUnderConcurrentOpens(t *testing.T) {
	r := newTestRelay(Config{SendWelcome: true})
	talker, _ := open(t, r, "talker")

	stop := make(chan struct{})
	var chatter sync.WaitGroup
	chatter.Add(1)
	go func() {
		defer chatter.Done()
		for {
			select {
			case <-stop:
				return
			default:
				r.OnMessage(talker, []byte(`{"id":5,"data":"hi"}`))
			}
		}
	}()

	conns := make([]*fakeConn, 16)
	ids := make([]string, len(conns))
	var wg sync.WaitGroup
	for i := range conns {
		conns[i] = &fakeConn{name: fmt.Sprintf("c%d", i)}
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			client, err := r.OnOpen(conns[i])
			if err != nil {
				t.Error(err)
				return
			}
			ids[i] = client.ID
		}(i)
	}
	wg.Wait()
	close(stop)
	chatter.Wait()

	for i, c := range conns {
		got := c.take(t)
		if len(got) == 0 || got[0].ID != int(protocol.KindWelcome) {
			t.Fatalf("c%d: first frame should be WELCOME, got %+v", i, got)
		}
		if p := decodeLifecycle(t, got[0]); p.ClientID != ids[i] {
			t.Fatalf("c%d: WELCOME carries %q, want %q", i, p.ClientID, ids[i])
		}
	}
}

func TestPingRepliesWithServerTime(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_123)
	r := newTestRelay(Config{Now: func() time.Time { return now }})
	a, _ := open(t, r, "A")
	b, _ := open(t, r, "B")
	a.take(t)

	r.OnMessage(a, []byte(`{"id":2,"data":{"client_time":1234.5}}`))

	got := a.take(t)
	if len(got) != 1 || got[0].ID != int(protocol.KindPong) {
		t.Fatalf("expected PONG, got %+v", got)
	}
	var pong protocol.Pong
	if err := json.Unmarshal(got[0].Data, &pong); err != nil {
		t.Fatal(err)
	}
	if string(pong.ClientTime) != "1234.5" || pong.ServerTime != now.UnixMilli() {
		t.Fatalf("unexpected PONG payload: %+v", pong)
	}
	if got := b.take(t); len(got) != 0 {
		t.Fatalf("PONG leaked to other client: %+v", got)
	}
}

func TestPingHandsBackAnyClientTime(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_123)
	r := newTestRelay(Config{Now: func() time.Time { return now }})
	a, _ := open(t, r, "A")

	tests := []struct {
		raw  string
		want string
	}{
		{`{"id":2,"data":{"client_time":"soon"}}`, `{"client_time":"soon","server_time":1700000000123}`},
		{`{"id":2,"data":{"client_time":{"t":[1]}}}`, `{"client_time":{"t":[1]},"server_time":1700000000123}`},
		{`{"id":2,"data":"late"}`, `{"server_time":1700000000123}`},
		{`{"id":2}`, `{"server_time":1700000000123}`},
	}
	for _, tt := range tests {
		r.OnMessage(a, []byte(tt.raw))
		got := a.take(t)
		if len(got) != 1 || got[0].ID != int(protocol.KindPong) {
			t.Fatalf("%s: expected PONG, got %+v", tt.raw, got)
		}
		if string(got[0].Data) != tt.want {
			t.Fatalf("%s: expected %s, got %s", tt.raw, tt.want, got[0].Data)
		}
	}
}

func TestEchoReturnsPayloadUnchanged(t *testing.T) {
	r := newTestRelay(Config{})
	a, _ := open(t, r, "A")
	b, _ := open(t, r, "B")
	a.take(t)

	payload := `{"nested":{"k":[1,2,3]},"s":"x"}`
	r.OnMessage(a, []byte(`{"id":4,"data":`+payload+`}`))

	got := a.take(t)
	if len(got) != 1 || got[0].ID != int(protocol.KindEcho) {
		t.Fatalf("expected ECHO, got %+v", got)
	}
	if string(got[0].Data) != payload {
		t.Fatalf("payload changed: %s", got[0].Data)
	}
	if got := b.take(t); len(got) != 0 {
		t.Fatalf("ECHO leaked to other client: %+v", got)
	}
}

func TestUnrecognizedKindFallsBackToEcho(t *testing.T) {
	r := newTestRelay(Config{})
	a, _ := open(t, r, "A")

	r.OnMessage(a, []byte(`{"id":99,"data":{"foo":"bar"}}`))

	got := a.take(t)
	if len(got) != 1 || got[0].ID != int(protocol.KindEcho) {
		t.Fatalf("expected ECHO fallback, got %+v", got)
	}
	if string(got[0].Data) != `{"foo":"bar"}` {
		t.Fatalf("unexpected payload %s", got[0].Data)
	}
}

func TestServerKindsFromClientAreEchoed(t *testing.T) {
	r := newTestRelay(Config{})
	a, _ := open(t, r, "A")
	b, _ := open(t, r, "B")
	a.take(t)

	tests := []struct {
		name string
		code int
		data string
	}{
		{"connect", 0, `{"client_id":"spoofed","total_clients":7}`},
		{"connect with extra field", 0, `{"client_id":"x","total_clients":1,"extra":5}`},
		{"connect with foreign object", 0, `{"foo":"bar"}`},
		{"disconnect with array", 1, `[1,2]`},
		{"pong with string", 3, `"hello"`},
		{"welcome with nested data", 6, `{"client_id":{"deep":true}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r.OnMessage(a, []byte(fmt.Sprintf(`{"id":%d,"data":%s}`, tt.code, tt.data)))

			got := a.take(t)
			if len(got) != 1 || got[0].ID != int(protocol.KindEcho) {
				t.Fatalf("expected ECHO fallback, got %+v", got)
			}
			if string(got[0].Data) != tt.data {
				t.Fatalf("expected payload %s, got %s", tt.data, got[0].Data)
			}
			if got := b.take(t); len(got) != 0 {
				t.Fatalf("client-sent server kind must not reach others: %+v", got)
			}
		})
	}
}

func TestBroadcastReachesEveryoneButSender(t *testing.T) {
	r := newTestRelay(Config{})
	conns := make([]*fakeConn, 4)
	for i := range conns {
		conns[i], _ = open(t, r, fmt.Sprintf("c%d", i))
	}
	for _, c := range conns {
		c.take(t)
	}

	r.OnMessage(conns[0], []byte(`{"id":5,"data":{"text":"hi"}}`))

	if got := conns[0].take(t); len(got) != 0 {
		t.Fatalf("sender received its own broadcast: %+v", got)
	}
	for i, c := range conns[1:] {
		got := c.take(t)
		if len(got) != 1 || got[0].ID != int(protocol.KindBroadcast) {
			t.Fatalf("c%d expected one BROADCAST, got %+v", i+1, got)
		}
		var payload struct {
			ClientID string          `json:"client_id"`
			Data     json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(got[0].Data, &payload); err != nil {
			t.Fatal(err)
		}
		if payload.ClientID != "client-1" || string(payload.Data) != `{"text":"hi"}` {
			t.Fatalf("unexpected broadcast payload: %s", got[0].Data)
		}
	}
}

func TestBroadcastSkipsDeadConnections(t *testing.T) {
	r := newTestRelay(Config{})
	a, _ := open(t, r, "A")
	b, _ := open(t, r, "B")
	c, _ := open(t, r, "C")
	a.take(t)
	b.take(t)

	b.Close()

	if sent := r.Broadcast(protocol.Echo{Data: json.RawMessage(`1`)}); sent != 2 {
		t.Fatalf("expected 2 deliveries, got %d", sent)
	}
	if len(a.take(t)) != 1 || len(c.take(t)) != 1 {
		t.Fatal("live clients should still receive the broadcast")
	}
}

func TestBroadcastFromUnregisteredConnIsDropped(t *testing.T) {
	r := newTestRelay(Config{})
	a, _ := open(t, r, "A")

	r.Dispatch(&fakeConn{name: "ghost"}, protocol.Broadcast{Data: json.RawMessage(`{}`)})

	if got := a.take(t); len(got) != 0 {
		t.Fatalf("expected no delivery, got %+v", got)
	}
}

func TestDecodeErrorKeepsConnection(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	r := newTestRelay(Config{Metrics: metrics})
	a, _ := open(t, r, "A")

	for _, raw := range []string{`not json`, `{"data":{}}`, `{"id":"2","data":{}}`, `{"id":2,"data":{"client_time":1}`} {
		r.OnMessage(a, []byte(raw))
	}
	if got := a.take(t); len(got) != 0 {
		t.Fatalf("bad frames must not produce replies: %+v", got)
	}
	if v := testutil.ToFloat64(metrics.decodeErrors); v != 4 {
		t.Fatalf("expected 4 decode errors, got %v", v)
	}

	r.OnMessage(a, []byte(`{"id":4,"data":"still here"}`))
	if got := a.take(t); len(got) != 1 {
		t.Fatalf("connection should keep working, got %+v", got)
	}
	if r.Registry().Size() != 1 {
		t.Fatal("client should stay registered")
	}
}

func TestMetricsTrackClientsAndTraffic(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())
	r := newTestRelay(Config{Metrics: metrics})
	a, _ := open(t, r, "A")
	b, _ := open(t, r, "B")

	if v := testutil.ToFloat64(metrics.clients); v != 2 {
		t.Fatalf("expected 2 clients, got %v", v)
	}

	r.OnMessage(a, []byte(`{"id":2,"data":{"client_time":1}}`))
	r.OnMessage(a, []byte(`{"id":42,"data":null}`))
	if v := testutil.ToFloat64(metrics.received.WithLabelValues("PING")); v != 1 {
		t.Fatalf("expected 1 PING, got %v", v)
	}
	if v := testutil.ToFloat64(metrics.received.WithLabelValues("UNRECOGNIZED")); v != 1 {
		t.Fatalf("expected 1 unrecognized, got %v", v)
	}

	b.Close()
	r.Broadcast(protocol.Echo{Data: json.RawMessage(`null`)})
	if v := testutil.ToFloat64(metrics.dropped); v != 1 {
		t.Fatalf("expected 1 dropped frame, got %v", v)
	}

	r.OnClose(b)
	if v := testutil.ToFloat64(metrics.clients); v != 1 {
		t.Fatalf("expected 1 client, got %v", v)
	}
}

func TestRejectedRegistration(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())
	r := New(registry.New(registry.WithIDGenerator(func() string { return "same" })), Config{
		Logger:  logger.Discard(),
		Metrics: metrics,
	})

	a, _ := open(t, r, "A")
	b := &fakeConn{name: "B"}
	if _, err := r.OnOpen(b); !errors.Is(err, registry.ErrDuplicateID) {
		t.Fatalf("expected ErrDuplicateID, got %v", err)
	}
	if _, err := r.OnOpen(a); !errors.Is(err, registry.ErrAlreadyRegistered) {
		t.Fatalf("expected ErrAlreadyRegistered, got %v", err)
	}
	if got := a.take(t); len(got) != 0 {
		t.Fatalf("rejected connections must not be announced: %+v", got)
	}
	if v := testutil.ToFloat64(metrics.rejected); v != 2 {
		t.Fatalf("expected 2 rejections, got %v", v)
	}
}

func TestDisconnectClosesConnection(t *testing.T) {
	r := newTestRelay(Config{})
	a, client := open(t, r, "A")

	if err := r.Disconnect(client.ID); err != nil {
		t.Fatalf("Disconnect failed: %v", err)
	}
	if !a.closed {
		t.Fatal("connection should be closed")
	}
	if err := r.Disconnect("missing"); !errors.Is(err, ErrClientNotFound) {
		t.Fatalf("expected ErrClientNotFound, got %v", err)
	}
}

func TestObserversReceiveOrderedEvents(t *testing.T) {
	events := queue.NewRequestQueueManager("events", 16, 1, logger.Discard())

	var mu sync.Mutex
	var seen []Event
	obs := ObserverFunc(func(ctx context.Context, ev Event) error {
		mu.Lock()
		seen = append(seen, ev)
		mu.Unlock()
		return nil
	})
	failing := ObserverFunc(func(ctx context.Context, ev Event) error {
		return errors.New("store unavailable")
	})

	r := newTestRelay(Config{Events: events, Observers: []Observer{failing, obs}})
	a, _ := open(t, r, "A")
	open(t, r, "B")
	r.OnClose(a)
	events.Shutdown()

	want := []struct {
		typ   EventType
		id    string
		total int
	}{
		{EventConnected, "client-1", 1},
		{EventConnected, "client-2", 2},
		{EventDisconnected, "client-1", 1},
	}
	if len(seen) != len(want) {
		t.Fatalf("expected %d events, got %+v", len(want), seen)
	}
	for i, w := range want {
		ev := seen[i]
		if ev.Type != w.typ || ev.ClientID != w.id || ev.TotalClients != w.total {
			t.Errorf("event %d: expected %v %s %d, got %+v", i, w.typ, w.id, w.total, ev)
		}
	}
	if seen[0].RemoteAddr != "A" {
		t.Errorf("expected remote addr A, got %q", seen[0].RemoteAddr)
	}
}

func TestObserversRunInlineWithoutQueue(t *testing.T) {
	calls := 0
	r := newTestRelay(Config{Observers: []Observer{ObserverFunc(func(ctx context.Context, ev Event) error {
		if _, ok := ctx.Deadline(); !ok {
			t.Error("observer context should carry a deadline")
		}
		calls++
		return nil
	})}})

	a, _ := open(t, r, "A")
	r.OnClose(a)

	if calls != 2 {
		t.Fatalf("expected 2 inline calls, got %d", calls)
	}
}

func TestConcurrentTraffic(t *testing.T) {
	r := newTestRelay(Config{})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			conn := &fakeConn{name: fmt.Sprintf("c%d", i)}
			if _, err := r.OnOpen(conn); err != nil {
				t.Error(err)
				return
			}
			for j := 0; j < 10; j++ {
				r.OnMessage(conn, []byte(`{"id":5,"data":{"n":1}}`))
				r.OnMessage(conn, []byte(`{"id":2,"data":{"client_time":1}}`))
			}
			r.OnClose(conn)
		}(i)
	}
	wg.Wait()

	if r.Registry().Size() != 0 {
		t.Fatalf("expected empty registry, got %d", r.Registry().Size())
	}
}

func TestClientsAndCloseAll(t *testing.T) {
	r := newTestRelay(Config{})
	a, _ := open(t, r, "A")
	b, _ := open(t, r, "B")

	clients := r.Clients()
	if len(clients) != 2 {
		t.Fatalf("expected 2 clients, got %d", len(clients))
	}
	if clients[0].ID != "client-1" || clients[0].RemoteAddr != "A" {
		t.Fatalf("unexpected first client %+v", clients[0])
	}

	if n := r.CloseAll(); n != 2 {
		t.Fatalf("expected 2 closed, got %d", n)
	}
	if !a.closed || !b.closed {
		t.Fatal("all connections should be closed")
	}
}
