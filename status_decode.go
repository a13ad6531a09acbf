package supervise

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"
)

// State is the run state of the supervised process
type State int

const (
	// StateDown indicates no process is running
	StateDown State = iota
	// StateUp indicates the process is running
	StateUp
	// StateFinish indicates the process exited and the finish script is running
	StateFinish
)

// State string constants
const (
	stateDownStr   = "down"
	stateUpStr     = "up"
	stateFinishStr = "finish"
	stateInvalid   = "unknown"
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case StateDown:
		return stateDownStr
	case StateUp:
		return stateUpStr
	case StateFinish:
		return stateFinishStr
	default:
		return stateInvalid
	}
}

// ParseState resolves the string form of a State
func ParseState(s string) (State, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case stateDownStr:
		return StateDown, nil
	case stateUpStr, "run":
		return StateUp, nil
	case stateFinishStr:
		return StateFinish, nil
	default:
		return StateDown, fmt.Errorf("unknown state %q", s)
	}
}

// Action is the supervisor's intent relative to the process's actual
// state. It is not a state machine: several conditions can hold at once
// and the last matching rule in the decoder wins.
type Action int

const (
	// ActionNone means no transitional condition applies
	ActionNone Action = iota
	// ActionNormallyDown means the process runs although the down marker exists
	ActionNormallyDown
	// ActionNormallyUp means no process runs although the service is normally up
	ActionNormallyUp
	// ActionPaused means the process was sent SIGSTOP
	ActionPaused
	// ActionWantUp means the supervisor is about to start the process
	ActionWantUp
	// ActionWantDown means the supervisor is about to stop the process
	ActionWantDown
	// ActionGotTerm means the process was sent SIGTERM
	ActionGotTerm
)

// String returns the string representation of the action
func (a Action) String() string {
	switch a {
	case ActionNormallyDown:
		return "normally down"
	case ActionNormallyUp:
		return "normally up"
	case ActionPaused:
		return "paused"
	case ActionWantUp:
		return "want up"
	case ActionWantDown:
		return "want down"
	case ActionGotTerm:
		return "got term"
	default:
		return "normal"
	}
}

// Status record layout. All multi-byte fields are big-endian except the
// pid, which the supervisor copies in host order (little-endian on every
// platform runit ships for) and which sv(8) reads back byte by byte from
// offset 15 down to 12.
const (
	offsetSeconds = 0  // bytes 0-7: biased seconds
	offsetNanos   = 8  // bytes 8-11: nanoseconds
	offsetPID     = 12 // bytes 12-15: pid, reversed
	offsetPaused  = 16 // byte 16: paused flag
	offsetWant    = 17 // byte 17: want flag ('u' or 'd')
	offsetTerm    = 18 // byte 18: term flag (20-byte record only)
	offsetFinish  = 19 // byte 19: finish flag (20-byte record only)
)

// pidOrder is the byte order of the pid field only
var pidOrder binary.ByteOrder = binary.LittleEndian

const (
	wantUp   = 'u'
	wantDown = 'd'

	// finishExited marks a record describing an exited process whose
	// finish script is running
	finishExited = 2
)

// wireRecord is the status record as stored, before any inference
type wireRecord struct {
	seconds uint64
	nanos   uint32
	pid     uint32
	paused  byte
	want    byte
	term    byte
	finish  byte
}

// parseWire splits a status record into its fields. The record revision
// is chosen by length alone.
func parseWire(data []byte) (wireRecord, error) {
	if len(data) != RecordSize && len(data) != LegacyRecordSize {
		return wireRecord{}, fmt.Errorf("%w: got %d bytes, want %d or %d",
			ErrMalformedRecord, len(data), LegacyRecordSize, RecordSize)
	}

	w := wireRecord{
		seconds: binary.BigEndian.Uint64(data[offsetSeconds:offsetNanos]),
		nanos:   binary.BigEndian.Uint32(data[offsetNanos:offsetPID]),
		pid:     pidOrder.Uint32(data[offsetPID:offsetPaused]),
		paused:  data[offsetPaused],
		want:    data[offsetWant],
	}
	if len(data) == RecordSize {
		w.term = data[offsetTerm]
		w.finish = data[offsetFinish]
	}
	return w, nil
}

// Record is a decoded status record. It is an immutable value; use the
// accessor methods to read it.
type Record struct {
	state      State
	pid        int
	action     Action
	uptime     uint64
	normallyUp bool

	size int
	raw  [RecordSize]byte
}

// State returns the run state
func (r Record) State() State { return r.state }

// PID returns the process id; ok is false when the service is down
func (r Record) PID() (pid int, ok bool) {
	return r.pid, r.state != StateDown
}

// Action returns the supervisor's pending intent; ok is false when none applies
func (r Record) Action() (action Action, ok bool) {
	return r.action, r.action != ActionNone
}

// UptimeSeconds returns the seconds elapsed since the record's timestamp
// (downtime when the service is down)
func (r Record) UptimeSeconds() uint64 { return r.uptime }

// Uptime returns UptimeSeconds as a Duration, saturating at the largest
// representable value.
func (r Record) Uptime() time.Duration {
	if r.uptime > uint64(math.MaxInt64/int64(time.Second)) {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(r.uptime) * time.Second
}

// NormallyUp reports whether the down marker was absent when the record
// was read
func (r Record) NormallyUp() bool { return r.normallyUp }

// Raw returns a copy of the bytes the record was decoded from
func (r Record) Raw() []byte {
	out := make([]byte, r.size)
	copy(out, r.raw[:r.size])
	return out
}

// sameAs reports whether two records were decoded from identical inputs,
// ignoring the time they were read at
func (r Record) sameAs(o Record) bool {
	return r.size == o.size && r.raw == o.raw && r.normallyUp == o.normallyUp
}

// DecodeStatus decodes an 18 or 20 byte status record. normallyUp must be
// true iff the service's down marker does not exist; now is the wall clock
// the uptime is measured against.
func DecodeStatus(data []byte, normallyUp bool, now time.Time) (Record, error) {
	w, err := parseWire(data)
	if err != nil {
		return Record{}, err
	}

	r := Record{
		normallyUp: normallyUp,
		size:       len(data),
	}
	copy(r.raw[:], data)

	hasPID := w.pid != 0
	if hasPID {
		r.pid = int(w.pid)
		r.state = StateUp
		if w.finish == finishExited {
			r.state = StateFinish
		}
	} else {
		r.state = StateDown
	}

	r.action = inferAction(w, hasPID, normallyUp)
	r.uptime = elapsedSince(w.seconds, now)

	return r, nil
}

// inferAction applies the action rules in order; a later match replaces
// an earlier one.
func inferAction(w wireRecord, hasPID, normallyUp bool) Action {
	action := ActionNone
	if hasPID && !normallyUp {
		action = ActionNormallyDown
	}
	if !hasPID && normallyUp {
		action = ActionNormallyUp
	}
	if hasPID && w.paused != 0 {
		action = ActionPaused
	}
	if !hasPID && w.want == wantUp {
		action = ActionWantUp
	}
	if hasPID && w.want == wantDown {
		action = ActionWantDown
	}
	if hasPID && w.term != 0 {
		action = ActionGotTerm
	}
	return action
}

// elapsedSince returns the seconds between a biased timestamp and now,
// clamped to zero when the timestamp lies in the future.
func elapsedSince(biased uint64, now time.Time) uint64 {
	nowBiased := uint64(now.Unix()) + EpochBias
	if nowBiased < biased {
		return 0
	}
	return nowBiased - biased
}

// Field is one named value of a Record, as produced by Fields
type Field struct {
	Key   string
	Value any
}

// recordView is the serialized shape of a Record
type recordView struct {
	Status string  `json:"status" yaml:"status"`
	PID    *int    `json:"pid" yaml:"pid"`
	Action *string `json:"action" yaml:"action"`
	Uptime uint64  `json:"uptime" yaml:"uptime"`
}

func (r Record) view() recordView {
	v := recordView{
		Status: r.state.String(),
		Uptime: r.uptime,
	}
	if pid, ok := r.PID(); ok {
		v.PID = &pid
	}
	if action, ok := r.Action(); ok {
		s := action.String()
		v.Action = &s
	}
	return v
}

// Fields returns the record's public values in a fixed order: status,
// pid, action, uptime. Absent values are nil.
func (r Record) Fields() []Field {
	v := r.view()
	fields := []Field{
		{Key: "status", Value: v.Status},
		{Key: "pid", Value: nil},
		{Key: "action", Value: nil},
		{Key: "uptime", Value: v.Uptime},
	}
	if v.PID != nil {
		fields[1].Value = *v.PID
	}
	if v.Action != nil {
		fields[2].Value = *v.Action
	}
	return fields
}

// MarshalJSON implements json.Marshaler
func (r Record) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.view())
}

// MarshalYAML implements yaml.Marshaler
func (r Record) MarshalYAML() (any, error) {
	return r.view(), nil
}

// String formats the record the way sv(8) prints it, e.g.
// "up (pid 1234) 300s, want down"
func (r Record) String() string {
	var b strings.Builder
	b.WriteString(r.state.String())
	if pid, ok := r.PID(); ok {
		fmt.Fprintf(&b, " (pid %d)", pid)
	}
	fmt.Fprintf(&b, " %ds", r.uptime)
	if action, ok := r.Action(); ok {
		b.WriteString(", ")
		b.WriteString(action.String())
	}
	return b.String()
}
