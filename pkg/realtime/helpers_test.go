/*
 * Copyright (c) 2025, WSO2 LLC. (https://www.wso2.com).
 *
 * WSO2 LLC. licenses this file to you under the Apache License,
 * Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.
 * You may obtain a copy of the License at
 *
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing,
 * software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
 * KIND, either express or implied.  See the License for the
 * specific language governing permissions and limitations
 * under the License.
 */

package realtime

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

const (
	waitTimeout  = 2 * time.Second
	quietPeriod  = 50 * time.Millisecond
	pollInterval = 5 * time.Millisecond
)

var errDialRefused = errors.New("connection refused")

// fakeSocketDialer hands out fakeSocketConns. Results queued with failNext are
// consumed in order; once empty, dials succeed.
type fakeSocketDialer struct {
	mu      sync.Mutex
	results []error
	dials   int
	dialed  chan *fakeSocketConn
}

func newFakeSocketDialer() *fakeSocketDialer {
	return &fakeSocketDialer{dialed: make(chan *fakeSocketConn, 64)}
}

func (d *fakeSocketDialer) failNext(n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := 0; i < n; i++ {
		d.results = append(d.results, errDialRefused)
	}
}

func (d *fakeSocketDialer) failAlways() {
	d.failNext(1000)
}

func (d *fakeSocketDialer) Dial(ctx context.Context, endpoint string) (SocketConn, error) {
	d.mu.Lock()
	d.dials++
	var err error
	if len(d.results) > 0 {
		err = d.results[0]
		d.results = d.results[1:]
	}
	d.mu.Unlock()

	if err != nil {
		d.dialed <- nil
		return nil, err
	}
	conn := newFakeSocketConn()
	d.dialed <- conn
	return conn, nil
}

func (d *fakeSocketDialer) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

// next waits for the next dial and returns its connection (nil for a failed dial)
func (d *fakeSocketDialer) next(t *testing.T) *fakeSocketConn {
	t.Helper()
	select {
	case conn := <-d.dialed:
		return conn
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for a dial")
		return nil
	}
}

func (d *fakeSocketDialer) expectNoDial(t *testing.T) {
	t.Helper()
	select {
	case <-d.dialed:
		t.Fatal("unexpected connection attempt")
	case <-time.After(quietPeriod):
	}
}

type fakeSocketConn struct {
	inbound chan []byte
	drops   chan error
	closed  chan struct{}

	mu        sync.Mutex
	written   [][]byte
	closeCode int
	closeOnce sync.Once
}

func newFakeSocketConn() *fakeSocketConn {
	return &fakeSocketConn{
		inbound: make(chan []byte, 16),
		drops:   make(chan error, 1),
		closed:  make(chan struct{}),
	}
}

func (c *fakeSocketConn) ReadMessage() ([]byte, error) {
	select {
	case data := <-c.inbound:
		return data, nil
	case err := <-c.drops:
		return nil, err
	case <-c.closed:
		return nil, io.ErrClosedPipe
	}
}

func (c *fakeSocketConn) WriteMessage(data []byte) error {
	select {
	case <-c.closed:
		return io.ErrClosedPipe
	default:
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.written = append(c.written, data)
	return nil
}

func (c *fakeSocketConn) Close(code int, reason string) error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closeCode = code
		c.mu.Unlock()
		close(c.closed)
	})
	return nil
}

func (c *fakeSocketConn) push(frame string) {
	c.inbound <- []byte(frame)
}

// drop simulates the server closing the connection with code
func (c *fakeSocketConn) drop(code int) {
	c.drops <- &websocket.CloseError{Code: code}
}

// fail simulates a read error that carries no close frame
func (c *fakeSocketConn) fail(err error) {
	c.drops <- err
}

func (c *fakeSocketConn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

func (c *fakeSocketConn) writes() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.written...)
}

func (c *fakeSocketConn) code() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeCode
}

// fakeStreamDialer hands out fakeEventStreams, with the same result queue as
// fakeSocketDialer.
type fakeStreamDialer struct {
	mu         sync.Mutex
	results    []error
	subscribes int
	opened     chan *fakeEventStream
}

func newFakeStreamDialer() *fakeStreamDialer {
	return &fakeStreamDialer{opened: make(chan *fakeEventStream, 64)}
}

func (d *fakeStreamDialer) failNext(n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := 0; i < n; i++ {
		d.results = append(d.results, errDialRefused)
	}
}

func (d *fakeStreamDialer) Subscribe(ctx context.Context, endpoint string) (EventStream, error) {
	d.mu.Lock()
	d.subscribes++
	var err error
	if len(d.results) > 0 {
		err = d.results[0]
		d.results = d.results[1:]
	}
	d.mu.Unlock()

	if err != nil {
		d.opened <- nil
		return nil, err
	}
	stream := newFakeEventStream()
	d.opened <- stream
	return stream, nil
}

func (d *fakeStreamDialer) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.subscribes
}

func (d *fakeStreamDialer) next(t *testing.T) *fakeEventStream {
	t.Helper()
	select {
	case stream := <-d.opened:
		return stream
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for a subscribe")
		return nil
	}
}

func (d *fakeStreamDialer) expectNoSubscribe(t *testing.T) {
	t.Helper()
	select {
	case <-d.opened:
		t.Fatal("unexpected subscribe attempt")
	case <-time.After(quietPeriod):
	}
}

type fakeEventStream struct {
	events    chan Event
	errs      chan error
	closed    chan struct{}
	closeOnce sync.Once
}

func newFakeEventStream() *fakeEventStream {
	return &fakeEventStream{
		events: make(chan Event, 16),
		errs:   make(chan error, 1),
		closed: make(chan struct{}),
	}
}

func (s *fakeEventStream) Next() (Event, error) {
	select {
	case ev := <-s.events:
		return ev, nil
	case err := <-s.errs:
		return Event{}, err
	case <-s.closed:
		return Event{}, io.ErrClosedPipe
	}
}

func (s *fakeEventStream) Close() error {
	s.closeOnce.Do(func() { close(s.closed) })
	return nil
}

func (s *fakeEventStream) isClosed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}

type stateful interface {
	State() State
}

func waitForState(t *testing.T, ch stateful, want State) {
	t.Helper()
	deadline := time.Now().Add(waitTimeout)
	for time.Now().Before(deadline) {
		if ch.State() == want {
			return
		}
		time.Sleep(pollInterval)
	}
	t.Fatalf("timed out waiting for state %s, current %s", want, ch.State())
}

func recvMessage(t *testing.T, messages <-chan Message) Message {
	t.Helper()
	select {
	case msg := <-messages:
		return msg
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for a message")
		return Message{}
	}
}

func blockUntilTimers(t *testing.T, fc interface {
	BlockUntilContext(context.Context, int) error
}, n int) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()
	if err := fc.BlockUntilContext(ctx, n); err != nil {
		t.Fatalf("timed out waiting for %d pending timers: %v", n, err)
	}
}
