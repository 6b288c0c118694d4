package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/bimakw/vesting-indexer/internal/config"
	"github.com/bimakw/vesting-indexer/internal/domain/entities"
)

// WSConfig configures the block feed connection.
type WSConfig struct {
	HandshakeTimeout time.Duration
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	PingInterval     time.Duration
	// BufferSize is the number of decoded blocks held ahead of the consumer.
	BufferSize int
}

// WSConfigFrom builds a WSConfig from the feed settings
func WSConfigFrom(cfg config.FeedConfig) WSConfig {
	return WSConfig{
		HandshakeTimeout: cfg.HandshakeTimeout,
		ReadTimeout:      cfg.ReadTimeout,
		WriteTimeout:     10 * time.Second,
		PingInterval:     cfg.PingInterval,
		BufferSize:       cfg.BufferSize,
	}
}

// WSBlockSubscriber receives irreversible blocks over a websocket.
// It never reconnects: a broken stream is reported once on the error channel
// and the process supervisor restarts from the checkpoint.
type WSBlockSubscriber struct {
	url    string
	config WSConfig
	logger *zap.Logger

	conn   *websocket.Conn
	connMu sync.Mutex
	closed atomic.Bool
	done   chan struct{}
	wg     sync.WaitGroup
}

// NewWSBlockSubscriber creates a subscriber for url
func NewWSBlockSubscriber(url string, cfg WSConfig, logger *zap.Logger) *WSBlockSubscriber {
	if cfg.BufferSize < 1 {
		cfg.BufferSize = 1
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	return &WSBlockSubscriber{
		url:    url,
		config: cfg,
		logger: logger,
		done:   make(chan struct{}),
	}
}

// Subscribe connects and requests irreversible blocks starting at fromBlock.
// Blocks arrive in feed order; the error channel yields at most one error,
// after which the block channel is closed.
func (s *WSBlockSubscriber) Subscribe(ctx context.Context, fromBlock int64) (<-chan entities.Block, <-chan error, error) {
	if s.closed.Load() {
		return nil, nil, fmt.Errorf("subscriber closed")
	}

	dialer := websocket.Dialer{HandshakeTimeout: s.config.HandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("websocket dial: %w", err)
	}

	req := subscribeRequest{Type: msgSubscribe, IrreversibleOnly: true, FromBlock: fromBlock}
	_ = conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
	if err := conn.WriteJSON(req); err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("write subscribe: %w", err)
	}

	s.connMu.Lock()
	s.conn = conn
	s.connMu.Unlock()

	if s.config.ReadTimeout > 0 {
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))
		})
	}

	s.logger.Info("Subscribed to block feed",
		zap.String("url", s.url),
		zap.Int64("from_block", fromBlock),
	)

	blocks := make(chan entities.Block, s.config.BufferSize)
	errCh := make(chan error, 1)

	s.wg.Add(1)
	go s.readLoop(ctx, conn, blocks, errCh)

	if s.config.PingInterval > 0 {
		s.wg.Add(1)
		go s.pingLoop()
	}

	return blocks, errCh, nil
}

// Close closes the connection and waits for the reader to exit
func (s *WSBlockSubscriber) Close() error {
	if s.closed.Swap(true) {
		return nil
	}

	close(s.done)

	s.connMu.Lock()
	if s.conn != nil {
		_ = s.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		s.conn.Close()
	}
	s.connMu.Unlock()

	s.wg.Wait()
	return nil
}

func (s *WSBlockSubscriber) readLoop(ctx context.Context, conn *websocket.Conn, blocks chan<- entities.Block, errCh chan<- error) {
	defer s.wg.Done()
	defer close(blocks)

	fail := func(err error) {
		if s.closed.Load() {
			return
		}
		errCh <- err
	}

	for {
		if s.config.ReadTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			fail(fmt.Errorf("block feed read: %w", err))
			return
		}

		var env envelope
		if err := json.Unmarshal(message, &env); err != nil {
			fail(fmt.Errorf("block feed message: %w", err))
			return
		}

		switch env.Type {
		case msgSubscribed:
			s.logger.Debug("Block feed acknowledged subscription")
			continue
		case msgError:
			fail(fmt.Errorf("block feed error: %s", env.Message))
			return
		case msgBlock:
		default:
			s.logger.Debug("Ignoring block feed message", zap.String("type", env.Type))
			continue
		}

		block, err := DecodeBlock(env.Data)
		if err != nil {
			fail(err)
			return
		}

		select {
		case blocks <- *block:
		case <-ctx.Done():
			return
		case <-s.done:
			return
		}
	}
}

func (s *WSBlockSubscriber) pingLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.connMu.Lock()
			if s.conn != nil {
				_ = s.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
				if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					s.logger.Debug("Block feed ping failed", zap.Error(err))
				}
			}
			s.connMu.Unlock()
		}
	}
}
