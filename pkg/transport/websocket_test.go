// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transport

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newBridge starts a websocket bridge that answers *IDN? and ignores
// everything else. Replies are split over two messages.
func newBridge(t *testing.T) (url string, auth chan string) {
	t.Helper()
	auth = make(chan string, 1)
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth <- r.Header.Get("Authorization")
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()

		for {
			_, data, err := ws.ReadMessage()
			if err != nil {
				return
			}
			if bytes.Equal(data, []byte("*IDN?\n")) {
				ws.WriteMessage(websocket.BinaryMessage, []byte("ACME,Model 1,"))
				ws.WriteMessage(websocket.TextMessage, []byte("SN42,1.0\n"))
			}
		}
	}))
	t.Cleanup(srv.Close)

	return "ws://" + strings.TrimPrefix(srv.URL, "http://"), auth
}

func TestWebSocketQuery(t *testing.T) {
	url, auth := newBridge(t)

	conn, err := Open(url, WithTimeout(time.Second), WithCredentials("lab", "secret"))
	require.NoError(t, err)
	defer conn.Close()

	assert.Equal(t, "Basic bGFiOnNlY3JldA==", <-auth)

	require.NoError(t, conn.WriteLine("*IDN?"))
	line, err := conn.ReadLine(0)
	require.NoError(t, err)
	assert.Equal(t, "ACME,Model 1,SN42,1.0", line)
}

func TestWebSocketTimeoutThenReuse(t *testing.T) {
	url, _ := newBridge(t)

	conn, err := Open(url, WithTimeout(100*time.Millisecond))
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteLine("*RST"))
	_, err = conn.ReadLine(0)
	assert.ErrorIs(t, err, ErrTimeout)

	require.NoError(t, conn.WriteLine("*IDN?"))
	line, err := conn.ReadLine(time.Second)
	require.NoError(t, err)
	assert.Equal(t, "ACME,Model 1,SN42,1.0", line)
}

func TestWebSocketDialFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := Open("ws://"+strings.TrimPrefix(srv.URL, "http://"), WithTimeout(100*time.Millisecond))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrOpenFailed)
	assert.Contains(t, err.Error(), "HTTP 401")
}

func TestWebSocketClosedByPeer(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		ws.Close()
	}))
	defer srv.Close()

	conn, err := Open("ws://"+strings.TrimPrefix(srv.URL, "http://"), WithTimeout(time.Second))
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.ReadLine(0)
	assert.ErrorIs(t, err, ErrChannelClosed)
}
