package supervise

import (
	"fmt"
	"sort"
	"strings"
)

// Service directory layout
const (
	// DefaultServiceDir is the base directory relative service names are
	// resolved against when no other base is configured
	DefaultServiceDir = "/var/service"

	// SuperviseDir is the subdirectory maintained by the supervisor
	SuperviseDir = "supervise"

	// ControlFile is the control FIFO file name
	ControlFile = "control"

	// StatusFile is the binary status file name
	StatusFile = "status"

	// DownFile is the marker whose presence means the service is meant to stay down
	DownFile = "down"

	// FileMode is the mode used when creating the down marker
	FileMode = 0o644
)

// Status record sizes. The length of the record alone selects the revision.
const (
	// LegacyRecordSize is the daemontools record, without term and finish flags
	LegacyRecordSize = 18

	// RecordSize is the runit record
	// Reference: https://github.com/g-pape/runit/blob/master/src/sv.c#L53
	// char svstatus[20];
	RecordSize = 20
)

// EpochBias is added to Unix seconds by the supervisor before they are
// stored in the status record (TAI64 label: 2^62 plus the 10 second
// TAI-UTC offset at the Unix epoch).
// Reference: https://github.com/g-pape/runit/blob/master/src/tai.h#L12
// #define tai_unix(t,u) ((void) ((t)->x = 4611686018427387914ULL + (uint64) (u)))
const EpochBias = uint64(1<<62) + 10 // 4611686018427387914

// Operation is a named control command
type Operation int

const (
	// OpUnknown represents an unknown operation
	OpUnknown Operation = iota
	// OpUp starts the service and restarts it if it stops
	OpUp
	// OpOnce starts the service but does not restart it
	OpOnce
	// OpDown sends TERM then CONT and does not restart the service
	OpDown
	// OpTerm sends SIGTERM to the service
	OpTerm
	// OpInterrupt sends SIGINT to the service
	OpInterrupt
	// OpHUP sends SIGHUP to the service
	OpHUP
	// OpAlarm sends SIGALRM to the service
	OpAlarm
	// OpQuit sends SIGQUIT to the service
	OpQuit
	// OpUSR1 sends SIGUSR1 to the service
	OpUSR1
	// OpUSR2 sends SIGUSR2 to the service
	OpUSR2
	// OpKill sends SIGKILL to the service
	OpKill
	// OpPause sends SIGSTOP to the service
	OpPause
	// OpCont sends SIGCONT to the service
	OpCont
	// OpExit makes the supervisor exit once the service is down
	OpExit
	// OpStatus represents a status query; it has no control byte
	OpStatus
	// OpMark represents a change to the down marker; it has no control byte
	OpMark
)

// Operation string constants
const (
	opUnknownStr   = "unknown"
	opUpStr        = "up"
	opOnceStr      = "once"
	opDownStr      = "down"
	opTermStr      = "term"
	opInterruptStr = "interrupt"
	opHUPStr       = "hup"
	opAlarmStr     = "alarm"
	opQuitStr      = "quit"
	opUSR1Str      = "usr1"
	opUSR2Str      = "usr2"
	opKillStr      = "kill"
	opPauseStr     = "pause"
	opContStr      = "cont"
	opExitStr      = "exit"
	opStatusStr    = "status"
	opMarkStr      = "mark"
)

// String returns the canonical name of an Operation
func (op Operation) String() string {
	switch op {
	case OpUp:
		return opUpStr
	case OpOnce:
		return opOnceStr
	case OpDown:
		return opDownStr
	case OpTerm:
		return opTermStr
	case OpInterrupt:
		return opInterruptStr
	case OpHUP:
		return opHUPStr
	case OpAlarm:
		return opAlarmStr
	case OpQuit:
		return opQuitStr
	case OpUSR1:
		return opUSR1Str
	case OpUSR2:
		return opUSR2Str
	case OpKill:
		return opKillStr
	case OpPause:
		return opPauseStr
	case OpCont:
		return opContStr
	case OpExit:
		return opExitStr
	case OpStatus:
		return opStatusStr
	case OpMark:
		return opMarkStr
	default:
		return opUnknownStr
	}
}

// Byte returns the control byte for this operation, or 0 if the
// operation is not sent over the control channel
func (op Operation) Byte() byte {
	switch op {
	case OpUp:
		return 'u'
	case OpOnce:
		return 'o'
	case OpDown:
		return 'd'
	case OpTerm:
		return 't'
	case OpInterrupt:
		return 'i'
	case OpHUP:
		return 'h'
	case OpAlarm:
		return 'a'
	case OpQuit:
		return 'q'
	case OpUSR1:
		return '1'
	case OpUSR2:
		return '2'
	case OpKill:
		return 'k'
	case OpPause:
		return 'p'
	case OpCont:
		return 'c'
	case OpExit:
		return 'x'
	default:
		return 0
	}
}

// ControlOperations lists every operation that maps to a control byte,
// in a stable order.
var ControlOperations = []Operation{
	OpUp, OpDown, OpPause, OpAlarm, OpTerm, OpExit, OpKill,
	OpUSR1, OpUSR2, OpQuit, OpInterrupt, OpHUP, OpCont, OpOnce,
}

var operationNames = map[string]Operation{
	"up":        OpUp,
	"start":     OpUp,
	"down":      OpDown,
	"stop":      OpDown,
	"pause":     OpPause,
	"alarm":     OpAlarm,
	"term":      OpTerm,
	"terminate": OpTerm,
	"exit":      OpExit,
	"kill":      OpKill,
	"usr1":      OpUSR1,
	"user1":     OpUSR1,
	"usr2":      OpUSR2,
	"user2":     OpUSR2,
	"quit":      OpQuit,
	"interrupt": OpInterrupt,
	"int":       OpInterrupt,
	"hup":       OpHUP,
	"hangup":    OpHUP,
	"cont":      OpCont,
	"continue":  OpCont,
	"once":      OpOnce,
}

// ParseOperation resolves a command name or alias (case-insensitive) to
// its Operation. Only operations with a control byte are accepted.
func ParseOperation(name string) (Operation, error) {
	op, ok := operationNames[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return OpUnknown, fmt.Errorf("%w: %q", ErrUnknownOperation, name)
	}
	return op, nil
}

// Aliases returns the names ParseOperation accepts for op besides its
// canonical one, sorted
func (op Operation) Aliases() []string {
	var out []string
	for name, o := range operationNames {
		if o == op && name != op.String() {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}
