package internal

import (
	"bytes"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryDatabase struct {
	mu       sync.Mutex
	messages []*FeatureLogMessage
}

func (d *memoryDatabase) WriteLogMessage(data Data) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.messages = append(d.messages, data.(*FeatureLogMessage))
	return nil
}

func (d *memoryDatabase) ReadLog() ([]FeatureLogMessage, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []FeatureLogMessage
	for _, m := range d.messages {
		out = append(out, *m)
	}
	return out, nil
}

func (d *memoryDatabase) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.messages)
}

type memoryMessages struct {
	mu   sync.Mutex
	sent []Message
}

func (m *memoryMessages) Send(message Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, message)
	return nil
}

func (m *memoryMessages) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestLoggerRoutesEvents(t *testing.T) {
	out := &syncBuffer{}
	db := &memoryDatabase{}
	messages := &memoryMessages{}

	logger := newLogger(time.UTC, out)
	logger.SetDatabase(db)
	logger.SetMessageService(messages)

	logger.FeatureEvent("tokenize", "0012024010112000000001", "card tokenized")
	logger.Warn("eula mismatch")
	logger.Error("provision", errors.New("connection refused"))

	require.Eventually(t, func() bool { return db.count() == 3 }, time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return messages.count() == 1 }, time.Second, 10*time.Millisecond)

	stored, err := db.ReadLog()
	require.NoError(t, err)
	assert.Equal(t, "tokenize", stored[0].Feature)
	assert.Equal(t, "0012024010112000000001", stored[0].Id)
	assert.Equal(t, string(Info), stored[0].Importance)
	assert.Equal(t, "*", stored[1].Id)
	assert.Equal(t, "provision: connection refused", stored[2].Text)

	require.Eventually(t, func() bool {
		return bytes.Contains([]byte(out.String()), []byte("card tokenized"))
	}, time.Second, 10*time.Millisecond)
}

func TestLoggerDebugMode(t *testing.T) {
	out := &syncBuffer{}
	db := &memoryDatabase{}
	logger := newLogger(time.UTC, out)
	logger.SetDatabase(db)

	logger.Debug("hidden")
	logger.SetDebugMode(true)
	logger.Debug("visible")
	logger.FeatureEvent("marker", "", "done")

	require.Eventually(t, func() bool { return db.count() == 1 }, time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool {
		return bytes.Contains([]byte(out.String()), []byte("done"))
	}, time.Second, 10*time.Millisecond)

	assert.Contains(t, out.String(), "visible")
	assert.NotContains(t, out.String(), "hidden")
}
