package logging

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/bartossh/Ledgerium/logger"
)

type collector struct {
	mux  sync.Mutex
	logs []logger.Log
	err  error
}

func (c *collector) Write(p []byte) (int, error) {
	c.mux.Lock()
	defer c.mux.Unlock()
	if c.err != nil {
		return 0, c.err
	}
	var l logger.Log
	if err := json.Unmarshal(p, &l); err != nil {
		return 0, err
	}
	c.logs = append(c.logs, l)
	return len(p), nil
}

func (c *collector) len() int {
	c.mux.Lock()
	defer c.mux.Unlock()
	return len(c.logs)
}

func TestHelperWritesAllLevels(t *testing.T) {
	c := &collector{}
	h := New("test", func(err error) { t.Error(err) }, nil, c)

	h.Debug("debug")
	h.Info("info")
	h.Warn("warn")
	h.Error("error")

	assert.Eventually(t, func() bool { return c.len() == 4 }, time.Second, time.Millisecond*10)

	levels := make(map[string]string)
	c.mux.Lock()
	for _, l := range c.logs {
		levels[l.Level] = l.Msg
		assert.Equal(t, "test", l.Source)
	}
	c.mux.Unlock()
	assert.Equal(t, map[string]string{"debug": "debug", "info": "info", "warn": "warn", "error": "error"}, levels)
}

func TestHelperFatalCallsCallback(t *testing.T) {
	c := &collector{}
	var fatal error
	h := New("test", nil, func(err error) { fatal = err }, c)

	h.Fatal("boom")

	assert.Equal(t, 1, c.len())
	assert.ErrorIs(t, fatal, ErrFatal)
}

func TestHelperCallsOnWriteError(t *testing.T) {
	c := &collector{err: errors.New("write failed")}
	errC := make(chan error, 1)
	h := New("test", func(err error) { errC <- err }, nil, c)

	h.Info("info")

	select {
	case err := <-errC:
		assert.NotNil(t, err)
	case <-time.After(time.Second):
		t.Fatal("error callback not called")
	}
}
