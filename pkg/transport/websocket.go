// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transport

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// websocketPort carries instrument bytes over a websocket bridge that
// forwards them to a remote serial or GPIB port.
//
// A reader goroutine owns ReadMessage so a read timeout never touches the
// websocket itself; gorilla connections are unusable after a read deadline
// expires.
type websocketPort struct {
	conn *websocket.Conn

	msgs    chan []byte
	pending []byte
	timeout time.Duration

	mu      sync.Mutex
	readErr error

	done      chan struct{}
	closeOnce sync.Once
}

func dialWebSocket(rawURL string, cfg *Config) (*websocketPort, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}

	switch u.Scheme {
	case "ws", "wss":
	default:
		return nil, fmt.Errorf("unsupported URL scheme: %s (use ws:// or wss://)", u.Scheme)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}
	if u.Scheme == "wss" {
		dialer.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: cfg.insecureTLS,
		}
	}

	headers := http.Header{}
	if cfg.username != "" && cfg.password != "" {
		credentials := base64.StdEncoding.EncodeToString([]byte(cfg.username + ":" + cfg.password))
		headers.Set("Authorization", "Basic "+credentials)
	}

	ctx, cancel := context.WithTimeout(context.Background(), DefaultDialTimeout)
	defer cancel()

	conn, resp, err := dialer.DialContext(ctx, rawURL, headers)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket connection failed (HTTP %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("websocket connection failed: %w", err)
	}

	return newWebSocketPort(conn, cfg.timeout), nil
}

func newWebSocketPort(conn *websocket.Conn, timeout time.Duration) *websocketPort {
	p := &websocketPort{
		conn:    conn,
		msgs:    make(chan []byte, 64),
		timeout: timeout,
		done:    make(chan struct{}),
	}
	go p.readLoop()
	return p
}

func (p *websocketPort) readLoop() {
	defer close(p.msgs)
	for {
		messageType, data, err := p.conn.ReadMessage()
		if err != nil {
			p.mu.Lock()
			p.readErr = err
			p.mu.Unlock()
			return
		}
		if messageType != websocket.BinaryMessage && messageType != websocket.TextMessage {
			continue
		}
		select {
		case p.msgs <- data:
		case <-p.done:
			return
		}
	}
}

func (p *websocketPort) Read(buf []byte) (int, error) {
	if len(p.pending) == 0 {
		timer := time.NewTimer(p.timeout)
		defer timer.Stop()

		select {
		case data, ok := <-p.msgs:
			if !ok {
				p.mu.Lock()
				err := p.readErr
				p.mu.Unlock()
				if err == nil {
					err = io.EOF
				}
				return 0, err
			}
			p.pending = data
		case <-timer.C:
			return 0, nil
		}
	}

	n := copy(buf, p.pending)
	p.pending = p.pending[n:]
	return n, nil
}

func (p *websocketPort) Write(data []byte) (int, error) {
	if err := p.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		return 0, err
	}
	return len(data), nil
}

func (p *websocketPort) SetReadTimeout(t time.Duration) error {
	p.timeout = t
	return nil
}

// ResetInputBuffer drops buffered messages that have already arrived.
func (p *websocketPort) ResetInputBuffer() error {
	p.pending = nil
	for {
		select {
		case _, ok := <-p.msgs:
			if !ok {
				return nil
			}
		default:
			return nil
		}
	}
}

func (p *websocketPort) Close() error {
	var err error
	p.closeOnce.Do(func() {
		close(p.done)
		err = p.conn.Close()
	})
	return err
}
