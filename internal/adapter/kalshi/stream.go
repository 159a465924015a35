package kalshi

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/unipredhq/unipred/internal/domain"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 30 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// QuoteHandler is called for every ticker update received over the stream.
type QuoteHandler func(domain.QuoteSnapshot)

// Stream is a WebSocket client for real-time Kalshi ticker data. Updates are
// normalized to canonical quote snapshots before handlers see them.
type Stream struct {
	wsURL string
	conn  *websocket.Conn

	mu     sync.RWMutex
	closed bool

	subscribed []string
	cmdID      int64

	handlerMu sync.RWMutex
	handlers  []QuoteHandler

	done chan struct{}
}

// NewStream creates a Kalshi ticker stream.
//
// wsURL is the WebSocket endpoint, e.g. "wss://api.elections.kalshi.com/trade-api/ws/v2".
func NewStream(wsURL string) *Stream {
	return &Stream{
		wsURL: wsURL,
		done:  make(chan struct{}),
	}
}

// Connect establishes the WebSocket connection and starts the read and ping
// loops. Previously tracked subscriptions are restored.
func (s *Stream) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("kalshi/stream: client is closed")
	}

	dialer := websocket.Dialer{HandshakeTimeout: 15 * time.Second}
	conn, _, err := dialer.DialContext(ctx, s.wsURL, nil)
	if err != nil {
		return fmt.Errorf("kalshi/stream: connect: %w", err)
	}
	s.conn = conn

	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go s.readLoop()
	go s.pingLoop()

	if len(s.subscribed) > 0 {
		if err := s.sendSubscribe(s.subscribed); err != nil {
			return fmt.Errorf("kalshi/stream: restore subscriptions: %w", err)
		}
	}
	return nil
}

// Subscribe subscribes to ticker updates for the given market tickers.
func (s *Stream) Subscribe(ctx context.Context, tickers []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return fmt.Errorf("kalshi/stream: not connected")
	}
	if err := s.sendSubscribe(tickers); err != nil {
		return fmt.Errorf("kalshi/stream: subscribe: %w", err)
	}

	existing := make(map[string]struct{}, len(s.subscribed))
	for _, t := range s.subscribed {
		existing[t] = struct{}{}
	}
	for _, t := range tickers {
		if _, ok := existing[t]; !ok {
			s.subscribed = append(s.subscribed, t)
		}
	}
	return nil
}

// OnQuote registers a handler called for every normalized quote snapshot.
func (s *Stream) OnQuote(h QuoteHandler) {
	s.handlerMu.Lock()
	defer s.handlerMu.Unlock()
	s.handlers = append(s.handlers, h)
}

// Close shuts down the WebSocket connection. Safe to call more than once.
func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	close(s.done)

	if s.conn != nil {
		_ = s.conn.WriteMessage(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		)
		return s.conn.Close()
	}
	return nil
}

func (s *Stream) sendSubscribe(tickers []string) error {
	s.cmdID++
	cmd := wsSubscribeCmd{ID: s.cmdID, Cmd: "subscribe"}
	cmd.Params.Channels = []string{"ticker"}
	cmd.Params.MarketTickers = tickers

	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteJSON(cmd)
}

func (s *Stream) readLoop() {
	for {
		select {
		case <-s.done:
			return
		default:
		}

		_, data, err := s.conn.ReadMessage()
		if err != nil {
			return
		}

		var env wsEnvelope
		if err := json.Unmarshal(data, &env); err != nil || env.Type != "ticker" {
			continue
		}

		bid := centsToProb(float64(env.Msg.YesBid))
		ask := centsToProb(float64(env.Msg.YesAsk))
		snap := domain.QuoteSnapshot{
			Key:       domain.MarketKey{Exchange: domain.ExchangeKalshi, NativeID: env.Msg.Ticker},
			Timestamp: time.Unix(env.Msg.TS, 0).UTC(),
			Bid:       bid,
			Ask:       ask,
			MidPrice:  midPrice(bid, ask, centsToProb(float64(env.Msg.Price))),
			Volume:    float64(env.Msg.Volume),
		}
		if snap.Validate() != nil {
			continue
		}

		s.handlerMu.RLock()
		handlers := s.handlers
		s.handlerMu.RUnlock()
		for _, h := range handlers {
			h(snap)
		}
	}
}

func (s *Stream) pingLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.mu.RLock()
			conn := s.conn
			s.mu.RUnlock()
			if conn == nil {
				continue
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
