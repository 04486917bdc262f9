package session

import (
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"golang.org/x/exp/slices"
)

// testTransport is an in-memory Transport. Inbound messages are pushed with
// send; outbound messages are recorded for assertions. Setting failWrites
// simulates an unreachable peer.
type testTransport struct {
	stateLock  sync.Mutex
	messages   [][]byte
	failWrites bool

	reads     chan []byte
	closeOnce sync.Once
}

func newTestTransport() *testTransport {
	return &testTransport{
		reads: make(chan []byte, 64),
	}
}

func (self *testTransport) ReadMessage() ([]byte, error) {
	message, ok := <-self.reads
	if !ok {
		return nil, io.EOF
	}
	return message, nil
}

func (self *testTransport) WriteMessage(message []byte) error {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()

	if self.failWrites {
		return errors.New("peer closed")
	}
	self.messages = append(self.messages, slices.Clone(message))
	return nil
}

func (self *testTransport) Close() error {
	self.closeOnce.Do(func() {
		close(self.reads)
	})
	return nil
}

func (self *testTransport) setFailWrites(failWrites bool) {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	self.failWrites = failWrites
}

func (self *testTransport) sendRaw(messageBytes []byte) {
	self.reads <- messageBytes
}

func (self *testTransport) messageCount() int {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	return len(self.messages)
}

// waitForMessages blocks until count outbound messages have been recorded
// and returns a snapshot of them
func (self *testTransport) waitForMessages(t *testing.T, count int) [][]byte {
	waitFor(t, func() bool {
		return count <= self.messageCount()
	})
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	return slices.Clone(self.messages)
}

func waitFor(t *testing.T, condition func() bool) {
	endTime := time.Now().Add(2 * time.Second)
	for {
		if condition() {
			return
		}
		if endTime.Before(time.Now()) {
			t.Fatalf("timeout waiting for condition")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func decode[T any](t *testing.T, messageBytes []byte) T {
	var v T
	if err := json.Unmarshal(messageBytes, &v); err != nil {
		t.Fatalf("unmarshal error = %s: %s", err, string(messageBytes))
	}
	return v
}
