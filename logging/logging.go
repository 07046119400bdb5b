package logging

import (
	"encoding/json"
	"errors"
	"io"
	"time"

	"github.com/bartossh/Ledgerium/logger"
)

const (
	levelDebug = "debug"
	levelInfo  = "info"
	levelWarn  = "warn"
	levelError = "error"
	levelFatal = "fatal"
)

// ErrFatal is passed to callOnFatal after fatal log is written.
var ErrFatal = errors.New("fatal log")

// Helper helps with writing logs to io.Writers.
// Helper implements logger.Logger interface.
// Writing is done concurrently with out blocking the current thread.
type Helper struct {
	source      string
	callOnErr   func(error)
	callOnFatal func(error)
	writers     []io.Writer
}

// New creates new Helper.
// Source names the process writing the logs, callOnErr is called on each failed write
// and callOnFatal after fatal log is written.
func New(source string, callOnErr, callOnFatal func(error), writers ...io.Writer) Helper {
	return Helper{source: source, callOnErr: callOnErr, callOnFatal: callOnFatal, writers: writers}
}

// Debug writes debug log.
func (h Helper) Debug(msg string) {
	h.write(h.log(levelDebug, msg))
}

// Info writes info log.
func (h Helper) Info(msg string) {
	h.write(h.log(levelInfo, msg))
}

// Warn writes warning log.
func (h Helper) Warn(msg string) {
	h.write(h.log(levelWarn, msg))
}

// Error writes error log.
func (h Helper) Error(msg string) {
	h.write(h.log(levelError, msg))
}

// Fatal writes fatal log synchronously and calls callOnFatal.
func (h Helper) Fatal(msg string) {
	h.writeSync(h.log(levelFatal, msg))
	if h.callOnFatal != nil {
		h.callOnFatal(errors.Join(ErrFatal, errors.New(msg)))
	}
}

func (h Helper) log(level, msg string) *logger.Log {
	return &logger.Log{
		CreatedAt: time.Now(),
		Level:     level,
		Source:    h.source,
		Msg:       msg,
	}
}

func (h Helper) write(l *logger.Log) {
	go h.writeSync(l)
}

func (h Helper) writeSync(l *logger.Log) {
	raw, err := json.Marshal(l)
	if err != nil {
		h.onErr(err)
		return
	}
	for _, w := range h.writers {
		if _, err := w.Write(raw); err != nil {
			h.onErr(err)
		}
	}
}

func (h Helper) onErr(err error) {
	if h.callOnErr != nil {
		h.callOnErr(err)
	}
}
