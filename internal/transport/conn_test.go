package transport

import (
	"bytes"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

const testFrameSize = 8

// TestStreamConnReadsWholeFrames verifies a frame split across writes is reassembled.
func TestStreamConnReadsWholeFrames(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	conn := NewStreamConn(server, testFrameSize)

	go func() {
		_, _ = client.Write([]byte("abc"))
		_, _ = client.Write([]byte("defgh"))
		_, _ = client.Write([]byte("12345678"))
	}()

	for _, want := range []string{"abcdefgh", "12345678"} {
		f, err := conn.ReadFrame()
		if err != nil {
			t.Fatalf("ReadFrame unexpected error: %v", err)
		}
		if string(f) != want {
			t.Errorf("ReadFrame = %q, want %q", f, want)
		}
	}
}

// TestStreamConnShortReadIsError ensures a truncated frame fails the read.
func TestStreamConnShortReadIsError(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()

	conn := NewStreamConn(server, testFrameSize)

	go func() {
		_, _ = client.Write([]byte("abc"))
		_ = client.Close()
	}()

	if _, err := conn.ReadFrame(); !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("ReadFrame error = %v, want io.ErrUnexpectedEOF", err)
	}
	if !IsExpectedCloseError(io.ErrUnexpectedEOF) {
		t.Error("io.ErrUnexpectedEOF should be an expected close error")
	}
}

// TestStreamConnWriteFrameSize rejects frames of the wrong length.
func TestStreamConnWriteFrameSize(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	conn := NewStreamConn(server, testFrameSize)
	if err := conn.WriteFrame([]byte("short")); err == nil {
		t.Error("WriteFrame of short frame expected error, got nil")
	}

	received := make(chan []byte, 1)
	go func() {
		buf := make([]byte, testFrameSize)
		_, _ = io.ReadFull(client, buf)
		received <- buf
	}()

	if err := conn.WriteFrame([]byte("exactly8")); err != nil {
		t.Fatalf("WriteFrame unexpected error: %v", err)
	}
	select {
	case got := <-received:
		if string(got) != "exactly8" {
			t.Errorf("peer received %q", got)
		}
	case <-time.After(time.Second):
		t.Fatal("peer did not receive frame")
	}
}

// TestDialTCPConnectError checks that dial failures are typed.
func TestDialTCPConnectError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()

	_, err = DialTCP(addr, testFrameSize, time.Second)
	var connectErr *ConnectError
	if !errors.As(err, &connectErr) {
		t.Fatalf("DialTCP error = %v, want *ConnectError", err)
	}
	if connectErr.Address != addr || connectErr.Network != "tcp" {
		t.Errorf("unexpected ConnectError fields: %+v", connectErr)
	}
}

// TestWebSocketConn exercises padding, frame writes and clean close over a real gateway.
func TestWebSocketConn(t *testing.T) {
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	serverFrames := make(chan []byte, 4)
	serverErrs := make(chan error, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			serverErrs <- err
			return
		}
		conn := NewWebSocketConn(ws, testFrameSize)
		defer conn.Close()
		for {
			f, err := conn.ReadFrame()
			if err != nil {
				serverErrs <- err
				return
			}
			serverFrames <- f
			if err := conn.WriteFrame(f); err != nil {
				serverErrs <- err
				return
			}
		}
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, err := DialWebSocket(url, "http://localhost:8080", testFrameSize, time.Second)
	if err != nil {
		t.Fatalf("DialWebSocket: %v", err)
	}

	if err := client.WriteFrame([]byte("hi")); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}

	want := append([]byte("hi"), make([]byte, testFrameSize-2)...)
	select {
	case got := <-serverFrames:
		if !bytes.Equal(got, want) {
			t.Errorf("server frame = %q, want %q", got, want)
		}
	case err := <-serverErrs:
		t.Fatalf("server error: %v", err)
	case <-time.After(time.Second):
		t.Fatal("server did not receive frame")
	}

	echo, err := client.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if !bytes.Equal(echo, want) {
		t.Errorf("echo = %q, want %q", echo, want)
	}

	if err := client.Close(); err != nil && !IsExpectedCloseError(err) {
		t.Errorf("Close: %v", err)
	}

	select {
	case err := <-serverErrs:
		if !errors.Is(err, io.EOF) {
			t.Errorf("server read after close = %v, want io.EOF", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server did not observe close")
	}
}

// TestWebSocketConnReadLimit rejects messages longer than a frame.
func TestWebSocketConnReadLimit(t *testing.T) {
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	serverErrs := make(chan error, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			serverErrs <- err
			return
		}
		conn := NewWebSocketConn(ws, testFrameSize)
		defer conn.Close()
		_, err = conn.ReadFrame()
		serverErrs <- err
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer ws.Close()

	if err := ws.WriteMessage(websocket.BinaryMessage, []byte("this is far too long")); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}

	select {
	case err := <-serverErrs:
		if !errors.Is(err, websocket.ErrReadLimit) {
			t.Errorf("ReadFrame error = %v, want websocket.ErrReadLimit", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server did not fail the oversized read")
	}
}
