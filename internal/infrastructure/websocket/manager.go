package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"xopt/internal/application/port"
	"xopt/internal/domain"
	"xopt/internal/infrastructure/metrics"
)

var (
	ErrClosed       = errors.New("websocket: manager closed")
	ErrNotConnected = errors.New("websocket: not connected")
)

// State 连接状态
type State int32

const (
	Disconnected State = iota
	Connecting
	Open
	Closing
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Open:
		return "open"
	case Closing:
		return "closing"
	}
	return "unknown"
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// RetryConfig WebSocket 断线重连配置
type RetryConfig struct {
	MaxRetries int           // 最大连续重连次数
	InitialDel time.Duration // 初始延迟
	MaxDelay   time.Duration // 最大延迟，0 表示不封顶
}

// DefaultRetryConfig 默认重连配置
var DefaultRetryConfig = RetryConfig{
	MaxRetries: 10,
	InitialDel: time.Second,
}

// ReconnectDelay returns InitialDel × 2^(attempt−1) for the attempt-th consecutive reconnect.
func ReconnectDelay(cfg RetryConfig, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 32 {
		attempt = 32
	}
	d := cfg.InitialDel << uint(attempt-1)
	if cfg.MaxDelay > 0 && d > cfg.MaxDelay {
		d = cfg.MaxDelay
	}
	return d
}

type Config struct {
	URL               string
	HeartbeatInterval time.Duration
	Retry             RetryConfig
	AutoConnect       bool // Subscribe 在未连接时自动发起连接
}

// Decoder turns one stream payload into an event. A nil event with a nil error means
// the payload is valid JSON but not a market event (e.g. a control response).
type Decoder interface {
	Decode(payload []byte) (domain.Event, error)
}

type Timer interface {
	Stop() bool
}

type Option func(*Manager)

func WithDialer(d Dialer) Option {
	return func(m *Manager) { m.dialer = d }
}

// WithAfterFunc replaces time.AfterFunc for reconnect scheduling.
func WithAfterFunc(fn func(time.Duration, func()) Timer) Option {
	return func(m *Manager) { m.afterFunc = fn }
}

type attempt struct {
	done chan struct{}
	err  error
}

// Manager owns the single physical socket to the market stream endpoint and the
// registry of logical subscriptions multiplexed over it.
type Manager struct {
	cfg       Config
	decoder   Decoder
	dialer    Dialer
	afterFunc func(time.Duration, func()) Timer

	mu        sync.Mutex
	state     State
	closed    bool
	conn      Conn
	gen       uint64 // bumped whenever conn changes; stale goroutines compare against it
	inflight  *attempt
	attempts  int
	reconnect Timer
	hbStop    chan struct{}
	registry  *registry
	queue     outboundQueue
	live      map[string]struct{} // streams subscribed on the current socket
	nextID    int64
	observer  func(bool)

	obsMu        sync.Mutex
	lastNotified bool
}

func New(cfg Config, dec Decoder, opts ...Option) *Manager {
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = 120 * time.Second
	}
	if cfg.Retry.InitialDel <= 0 {
		cfg.Retry.InitialDel = DefaultRetryConfig.InitialDel
	}
	if cfg.Retry.MaxRetries < 0 {
		cfg.Retry.MaxRetries = 0
	}

	m := &Manager{
		cfg:      cfg,
		decoder:  dec,
		registry: newRegistry(),
		afterFunc: func(d time.Duration, f func()) Timer {
			return time.AfterFunc(d, f)
		},
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.dialer == nil {
		m.dialer = NewDialer(10*time.Second, 10*time.Second, 0)
	}
	return m
}

// SetConnectionObserver registers fn to be told about open/closed transitions.
func (m *Manager) SetConnectionObserver(fn func(connected bool)) {
	m.mu.Lock()
	m.observer = fn
	m.mu.Unlock()
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Manager) IsConnected() bool { return m.State() == Open }

// Stats 连接与订阅的即时计数
type Stats struct {
	State         State `json:"state"`
	Attempts      int   `json:"reconnectAttempts"`
	ActiveStreams int   `json:"activeStreams"`
	Queued        int   `json:"queuedMessages"`
}

func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Stats{
		State:         m.state,
		Attempts:      m.attempts,
		ActiveStreams: m.registry.len(),
		Queued:        m.queue.len(),
	}
}

// Streams returns the logical streams that currently have subscribers.
func (m *Manager) Streams() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.registry.keys()
}

// Connect opens the socket. It returns at once if the socket is open and joins the
// in-flight attempt if one is running, so at most one physical dial is ever pending.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	switch m.state {
	case Open:
		m.mu.Unlock()
		return nil
	case Connecting:
		a := m.inflight
		m.mu.Unlock()
		select {
		case <-a.done:
			return a.err
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	a := &attempt{done: make(chan struct{})}
	m.inflight = a
	m.state = Connecting
	m.stopReconnectLocked()
	n := m.attempts
	m.mu.Unlock()

	log.Info().Str("url", m.cfg.URL).Int("attempt", n).Msg("stream connecting")
	conn, err := m.dialer.Dial(ctx, m.cfg.URL)

	m.mu.Lock()
	if err == nil && m.closed {
		m.mu.Unlock()
		_ = conn.Close()
		a.err = ErrClosed
		close(a.done)
		return ErrClosed
	}
	if err != nil {
		m.state = Disconnected
		m.inflight = nil
		if !m.closed {
			m.scheduleReconnectLocked()
		}
		m.mu.Unlock()
		a.err = err
		close(a.done)
		log.Error().Err(err).Str("url", m.cfg.URL).Msg("stream dial failed")
		m.notify()
		return err
	}

	after := m.openLocked(conn)
	m.inflight = nil
	if after != nil {
		err = ErrNotConnected
	}
	m.mu.Unlock()

	a.err = err
	close(a.done)
	if after != nil {
		after()
		return err
	}
	log.Info().Str("url", m.cfg.URL).Msg("stream connected")
	m.notify()
	return nil
}

// openLocked installs conn, drains the outbound queue in order and then subscribes
// every registered stream the drained messages did not already cover.
func (m *Manager) openLocked(conn Conn) func() {
	m.gen++
	gen := m.gen
	m.conn = conn
	m.state = Open
	m.attempts = 0
	m.live = make(map[string]struct{})

	for {
		msg, ok := m.queue.peek()
		if !ok {
			break
		}
		if err := m.writeLocked(msg); err != nil {
			return m.dropLocked(err)
		}
		m.queue.pop()
	}

	var missing []string
	for _, key := range m.registry.keys() {
		if _, ok := m.live[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		msg := controlMessage{Method: methodSubscribe, Params: missing, ID: m.nextIDLocked()}
		if err := m.writeLocked(msg); err != nil {
			return m.dropLocked(err)
		}
		log.Info().Int("streams", len(missing)).Msg("stream resubscribed")
	}

	m.hbStop = make(chan struct{})
	go m.heartbeat(gen, m.hbStop)
	go m.readLoop(gen, conn)
	return nil
}

// writeLocked sends msg on the open socket and keeps the live set in step with it.
func (m *Manager) writeLocked(msg controlMessage) error {
	if m.conn == nil {
		return ErrNotConnected
	}
	if err := m.conn.WriteMessage(msg.encode()); err != nil {
		return err
	}
	switch msg.Method {
	case methodSubscribe:
		for _, p := range msg.Params {
			m.live[p] = struct{}{}
		}
	case methodUnsubscribe:
		for _, p := range msg.Params {
			delete(m.live, p)
		}
	}
	if msg.Method != methodPing {
		metrics.StreamControl.WithLabelValues(msg.Method, "sent").Inc()
	}
	return nil
}

// enqueueOrSendLocked writes msg if the socket is open, otherwise queues it. A failed
// write puts msg back in the queue and drops the socket; the returned func must run
// after m.mu is released.
func (m *Manager) enqueueOrSendLocked(msg controlMessage) func() {
	if m.state == Open {
		err := m.writeLocked(msg)
		if err == nil {
			return nil
		}
		m.queue.push(msg)
		return m.dropLocked(err)
	}
	m.queue.push(msg)
	metrics.StreamControl.WithLabelValues(msg.Method, "queued").Inc()
	return nil
}

func (m *Manager) nextIDLocked() int64 {
	m.nextID++
	return m.nextID
}

// teardownLocked forgets the current socket and stops its heartbeat. The reader of
// that socket is invalidated by the generation bump.
func (m *Manager) teardownLocked() Conn {
	if m.hbStop != nil {
		close(m.hbStop)
		m.hbStop = nil
	}
	conn := m.conn
	m.conn = nil
	m.live = nil
	m.gen++
	m.state = Disconnected
	return conn
}

// dropLocked handles a lost socket: teardown, then a backoff reconnect.
func (m *Manager) dropLocked(cause error) func() {
	conn := m.teardownLocked()
	m.scheduleReconnectLocked()
	return func() {
		if conn != nil {
			_ = conn.Close()
		}
		log.Warn().Err(cause).Str("url", m.cfg.URL).Msg("stream disconnected")
		m.notify()
	}
}

func (m *Manager) scheduleReconnectLocked() {
	if m.closed {
		return
	}
	if m.attempts >= m.cfg.Retry.MaxRetries {
		log.Error().Int("attempts", m.attempts).Msg("stream reconnect attempts exhausted, waiting for explicit connect")
		return
	}
	m.attempts++
	delay := ReconnectDelay(m.cfg.Retry, m.attempts)
	metrics.StreamReconnects.Inc()
	log.Info().Int("attempt", m.attempts).Dur("delay", delay).Msg("stream reconnect scheduled")

	m.stopReconnectLocked()
	m.reconnect = m.afterFunc(delay, func() {
		if err := m.Connect(context.Background()); err != nil {
			log.Debug().Err(err).Msg("stream reconnect failed")
		}
	})
}

func (m *Manager) stopReconnectLocked() {
	if m.reconnect != nil {
		m.reconnect.Stop()
		m.reconnect = nil
	}
}

func (m *Manager) readLoop(gen uint64, conn Conn) {
	for {
		b, err := conn.ReadMessage()
		if err != nil {
			m.connectionLost(gen, err)
			return
		}
		m.dispatch(b)
	}
}

func (m *Manager) connectionLost(gen uint64, err error) {
	m.mu.Lock()
	if gen != m.gen || m.state != Open {
		m.mu.Unlock()
		return
	}
	after := m.dropLocked(err)
	m.mu.Unlock()
	after()
}

func (m *Manager) heartbeat(gen uint64, stop <-chan struct{}) {
	ticker := time.NewTicker(m.cfg.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			m.mu.Lock()
			if m.state != Open || m.gen != gen {
				m.mu.Unlock()
				continue
			}
			var after func()
			if err := m.writeLocked(controlMessage{Method: methodPing}); err != nil {
				after = m.dropLocked(err)
			}
			m.mu.Unlock()
			if after != nil {
				after()
				return
			}
		}
	}
}

// notify reports the current connection state to the observer if it changed since
// the last report.
func (m *Manager) notify() {
	m.obsMu.Lock()
	defer m.obsMu.Unlock()

	m.mu.Lock()
	open := m.state == Open
	fn := m.observer
	m.mu.Unlock()

	if open == m.lastNotified {
		return
	}
	m.lastNotified = open
	if open {
		metrics.StreamConnected.Set(1)
	} else {
		metrics.StreamConnected.Set(0)
	}
	if fn != nil {
		fn(open)
	}
}

// ===== subscriptions =====

// Token is returned by Subscribe. Unsubscribe removes exactly the handlers this
// token registered and is safe to call more than once.
type Token struct {
	m    *Manager
	refs []*handlerRef
	once sync.Once
}

func (t *Token) Unsubscribe() {
	if t == nil || t.m == nil {
		return
	}
	t.once.Do(func() {
		for _, r := range t.refs {
			t.m.unsubscribe(r)
		}
	})
}

// Subscribe registers h on the logical stream (t, symbol[, interval]). Only the first
// subscriber of a stream causes a SUBSCRIBE on the wire.
func (m *Manager) Subscribe(t domain.StreamType, symbol string, h port.EventHandler, interval ...domain.KlineInterval) port.Subscription {
	var iv domain.KlineInterval
	if len(interval) > 0 {
		iv = interval[0]
	}
	key := domain.StreamName(t, symbol, iv)
	ref := &handlerRef{key: key, fn: h}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		log.Warn().Str("stream", key).Msg("subscribe on closed stream manager ignored")
		return &Token{}
	}
	var after func()
	if m.registry.add(ref) {
		after = m.enqueueOrSendLocked(controlMessage{Method: methodSubscribe, Params: []string{key}, ID: m.nextIDLocked()})
	}
	metrics.StreamActive.Set(float64(m.registry.len()))
	needConnect := m.cfg.AutoConnect && m.state == Disconnected
	m.mu.Unlock()

	if after != nil {
		after()
	}
	if needConnect {
		go func() {
			if err := m.Connect(context.Background()); err != nil {
				log.Debug().Err(err).Msg("stream connect on subscribe failed")
			}
		}()
	}
	return &Token{m: m, refs: []*handlerRef{ref}}
}

// Unsubscribe redeems a token returned by Subscribe.
func (m *Manager) Unsubscribe(sub port.Subscription) {
	if sub != nil {
		sub.Unsubscribe()
	}
}

func (m *Manager) unsubscribe(ref *handlerRef) {
	m.mu.Lock()
	found, emptied := m.registry.remove(ref)
	var after func()
	if found && emptied && !m.closed {
		after = m.enqueueOrSendLocked(controlMessage{Method: methodUnsubscribe, Params: []string{ref.key}, ID: m.nextIDLocked()})
	}
	metrics.StreamActive.Set(float64(m.registry.len()))
	m.mu.Unlock()
	if after != nil {
		after()
	}
}

func (m *Manager) SubscribeTicker(symbol string, h port.EventHandler) port.Subscription {
	return m.Subscribe(domain.StreamTicker, symbol, h)
}

func (m *Manager) SubscribeDepth(symbol string, h port.EventHandler) port.Subscription {
	return m.Subscribe(domain.StreamDepth, symbol, h)
}

func (m *Manager) SubscribeTrade(symbol string, h port.EventHandler) port.Subscription {
	return m.Subscribe(domain.StreamTrade, symbol, h)
}

func (m *Manager) SubscribeKline(symbol string, interval domain.KlineInterval, h port.EventHandler) port.Subscription {
	return m.Subscribe(domain.StreamKline, symbol, h, interval)
}

func (m *Manager) SubscribeIndex(underlying string, h port.EventHandler) port.Subscription {
	return m.Subscribe(domain.StreamIndex, underlying, h)
}

// SubscribeMultipleTickers subscribes every symbol independently; a failure on one
// symbol is logged and does not stop the others.
func (m *Manager) SubscribeMultipleTickers(symbols []string, h port.EventHandler) port.Subscription {
	tok := &Token{m: m}
	for _, s := range symbols {
		sub, err := m.trySubscribe(domain.StreamTicker, s, h)
		if err != nil {
			log.Error().Err(err).Str("symbol", s).Msg("ticker subscribe failed")
			continue
		}
		if t, ok := sub.(*Token); ok {
			tok.refs = append(tok.refs, t.refs...)
		}
	}
	return tok
}

func (m *Manager) trySubscribe(t domain.StreamType, symbol string, h port.EventHandler) (sub port.Subscription, err error) {
	if strings.TrimSpace(symbol) == "" {
		return nil, errors.New("empty symbol")
	}
	defer func() {
		if p := recover(); p != nil {
			err = errors.New("subscribe panicked")
			log.Error().Interface("panic", p).Str("symbol", symbol).Msg("subscribe panicked")
		}
	}()
	return m.Subscribe(t, symbol, h), nil
}

// ===== inbound demultiplexing =====

type envelope struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

// dispatch routes one frame. Combined envelopes are routed by their stream name as
// sent; raw events by the key recomputed from their own symbol.
func (m *Manager) dispatch(frame []byte) {
	defer func() {
		if p := recover(); p != nil {
			metrics.StreamFrames.WithLabelValues(metrics.FrameMalformed).Inc()
			log.Error().Interface("panic", p).Msg("stream frame dispatch panicked")
		}
	}()

	var env envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		metrics.StreamFrames.WithLabelValues(metrics.FrameMalformed).Inc()
		log.Warn().Err(err).Int("bytes", len(frame)).Msg("stream frame unparseable")
		return
	}

	payload, key := frame, ""
	if env.Stream != "" && len(env.Data) > 0 {
		payload, key = env.Data, env.Stream
	}

	ev, err := m.decoder.Decode(payload)
	if err != nil {
		metrics.StreamFrames.WithLabelValues(metrics.FrameMalformed).Inc()
		log.Warn().Err(err).Str("stream", key).Msg("stream payload decode failed")
		return
	}
	if ev == nil {
		metrics.StreamFrames.WithLabelValues(metrics.FrameUnroutable).Inc()
		return
	}
	if key == "" {
		key = ev.Stream()
	}

	m.mu.Lock()
	refs := m.registry.handlers(key)
	m.mu.Unlock()
	if len(refs) == 0 {
		metrics.StreamFrames.WithLabelValues(metrics.FrameUnroutable).Inc()
		log.Debug().Str("stream", key).Msg("stream frame has no subscriber")
		return
	}

	metrics.StreamFrames.WithLabelValues(metrics.FrameRouted).Inc()
	for _, r := range refs {
		m.invoke(r, ev)
	}
}

func (m *Manager) invoke(r *handlerRef, ev domain.Event) {
	defer func() {
		if p := recover(); p != nil {
			metrics.HandlerPanics.Inc()
			log.Error().Interface("panic", p).Str("stream", r.key).Msg("stream handler panicked")
		}
	}()
	r.fn(ev)
}

// Close shuts the manager down for good: no reconnect, registry and queue cleared.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.state = Closing
	m.stopReconnectLocked()
	conn := m.teardownLocked()
	m.registry.reset()
	m.queue.reset()
	metrics.StreamActive.Set(0)
	m.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
	m.notify()
	log.Info().Msg("stream manager closed")
	return nil
}

var _ port.MarketStream = (*Manager)(nil)
