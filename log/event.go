package log

import (
	"strconv"
	"time"
)

// LogEvent is a single structured log entry under construction. Events are
// pooled by the owning logger; after Msg the event must not be reused by
// the caller. All field methods are nil-safe so that disabled levels cost
// a single pointer check.
type LogEvent struct {
	buf    []byte
	level  Level
	logger eventOwner
}

// eventOwner is the slice of logger behavior an event needs to finish.
type eventOwner interface {
	OnEventEnd(e *LogEvent)
}

const _eventInitCap = 256

func newEvent(owner eventOwner) *LogEvent {
	return &LogEvent{
		buf:    make([]byte, 0, _eventInitCap),
		logger: owner,
	}
}

func (e *LogEvent) reset(level Level, caller string) {
	e.buf = e.buf[:0]
	e.level = level
	e.buf = time.Now().AppendFormat(e.buf, "2006-01-02T15:04:05.000")
	e.buf = append(e.buf, ' ')
	e.buf = append(e.buf, level.String()...)
	if caller != "" {
		e.buf = append(e.buf, ' ')
		e.buf = append(e.buf, caller...)
	}
}

// Level returns the severity the event was created with.
func (e *LogEvent) Level() Level {
	if e == nil {
		return DebugLevel
	}
	return e.level
}

// Bytes returns the rendered line. Valid only inside appenders.
func (e *LogEvent) Bytes() []byte {
	if e == nil {
		return nil
	}
	return e.buf
}

func (e *LogEvent) key(k string) {
	e.buf = append(e.buf, ' ')
	e.buf = append(e.buf, k...)
	e.buf = append(e.buf, '=')
}

// Str appends a string field.
func (e *LogEvent) Str(k, v string) *LogEvent {
	if e == nil {
		return e
	}
	e.key(k)
	e.buf = strconv.AppendQuote(e.buf, v)
	return e
}

// Int appends an int field.
func (e *LogEvent) Int(k string, v int) *LogEvent {
	if e == nil {
		return e
	}
	e.key(k)
	e.buf = strconv.AppendInt(e.buf, int64(v), 10)
	return e
}

// Int64 appends an int64 field.
func (e *LogEvent) Int64(k string, v int64) *LogEvent {
	if e == nil {
		return e
	}
	e.key(k)
	e.buf = strconv.AppendInt(e.buf, v, 10)
	return e
}

// Uint32 appends a uint32 field.
func (e *LogEvent) Uint32(k string, v uint32) *LogEvent {
	if e == nil {
		return e
	}
	e.key(k)
	e.buf = strconv.AppendUint(e.buf, uint64(v), 10)
	return e
}

// Uint64 appends a uint64 field.
func (e *LogEvent) Uint64(k string, v uint64) *LogEvent {
	if e == nil {
		return e
	}
	e.key(k)
	e.buf = strconv.AppendUint(e.buf, v, 10)
	return e
}

// Bool appends a bool field.
func (e *LogEvent) Bool(k string, v bool) *LogEvent {
	if e == nil {
		return e
	}
	e.key(k)
	e.buf = strconv.AppendBool(e.buf, v)
	return e
}

// Err appends an error field under the key "error". A nil error appends
// nothing.
func (e *LogEvent) Err(err error) *LogEvent {
	if e == nil || err == nil {
		return e
	}
	return e.Str("error", err.Error())
}

// Obj lets a value append its own fields.
func (e *LogEvent) Obj(m ObjectMarshaller) *LogEvent {
	if e == nil || m == nil {
		return e
	}
	m.MarshalLogObj(e)
	return e
}

// Msg finalizes the event with a message and hands it to the appenders.
func (e *LogEvent) Msg(msg string) {
	if e == nil {
		return
	}
	if msg != "" {
		e.buf = append(e.buf, ' ')
		e.buf = append(e.buf, msg...)
	}
	e.buf = append(e.buf, '\n')
	e.logger.OnEventEnd(e)
}

// ObjectMarshaller lets domain types render themselves into a log event.
type ObjectMarshaller interface {
	MarshalLogObj(e *LogEvent)
}
