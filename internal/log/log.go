// Package log provides the leveled, module-scoped logger used across the
// node. The shape mirrors the teacher's log.NewModuleLogger(log.<Module>)
// convention: every package asks for its own *Logger at init time and tags
// every line with that module name plus structured key/value pairs.
package log

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/go-stack/stack"
	"github.com/mattn/go-colorable"
)

// Lvl is a logging level, ordered from least to most verbose.
type Lvl int

const (
	LvlCrit Lvl = iota
	LvlError
	LvlWarn
	LvlInfo
	LvlDebug
	LvlTrace
)

func (l Lvl) String() string {
	switch l {
	case LvlCrit:
		return "CRIT"
	case LvlError:
		return "ERROR"
	case LvlWarn:
		return "WARN"
	case LvlInfo:
		return "INFO"
	case LvlDebug:
		return "DEBUG"
	case LvlTrace:
		return "TRACE"
	default:
		return "UNKNOWN"
	}
}

var levelColor = map[Lvl]*color.Color{
	LvlCrit:  color.New(color.FgMagenta, color.Bold),
	LvlError: color.New(color.FgRed),
	LvlWarn:  color.New(color.FgYellow),
	LvlInfo:  color.New(color.FgGreen),
	LvlDebug: color.New(color.FgCyan),
	LvlTrace: color.New(color.FgWhite),
}

// Module names. New modules are appended, never renumbered, so that any
// saved configuration referring to a module index stays valid.
const (
	BlockTree = iota
	PendingBlock
	Mempool
	Verifier
	Blockchain
	Session
	Wire
	Store
	Consensus
	Indexer
	Eventing
	Snapshot
	API
	CLI
	Config
	Metrics
	Common
)

var moduleNames = map[int]string{
	BlockTree:    "blocktree",
	PendingBlock: "pendingblock",
	Mempool:      "mempool",
	Verifier:     "verifier",
	Blockchain:   "blockchain",
	Session:      "session",
	Wire:         "wire",
	Store:        "store",
	Consensus:    "consensus",
	Indexer:      "indexer",
	Eventing:     "eventing",
	Snapshot:     "snapshot",
	API:          "api",
	CLI:          "cli",
	Config:       "config",
	Metrics:      "metrics",
	Common:       "common",
}

var (
	mu        sync.Mutex
	out       io.Writer = colorable.NewColorableStdout()
	threshold           = LvlInfo
	useColor            = isTerminal()
)

func isTerminal() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}

// SetThreshold sets the process-wide minimum level that gets written.
func SetThreshold(l Lvl) {
	mu.Lock()
	defer mu.Unlock()
	threshold = l
}

// SetOutput redirects where formatted lines are written (tests use this to
// capture output instead of the real stdout).
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	out = w
}

// Logger is a module-scoped leveled logger.
type Logger struct {
	module string
}

// NewModuleLogger returns the logger for a given module constant.
func NewModuleLogger(module int) *Logger {
	name, ok := moduleNames[module]
	if !ok {
		name = fmt.Sprintf("module-%d", module)
	}
	return &Logger{module: name}
}

func (lg *Logger) log(lvl Lvl, msg string, ctx []interface{}) {
	mu.Lock()
	defer mu.Unlock()
	if lvl > threshold {
		return
	}
	var b strings.Builder
	b.WriteString(time.Now().Format("2006-01-02T15:04:05.000Z07:00"))
	b.WriteByte(' ')
	lvlStr := fmt.Sprintf("[%-5s]", lvl.String())
	if useColor {
		if c, ok := levelColor[lvl]; ok {
			lvlStr = c.Sprint(lvlStr)
		}
	}
	b.WriteString(lvlStr)
	b.WriteByte(' ')
	b.WriteString(lg.module)
	b.WriteString(": ")
	b.WriteString(msg)
	for i := 0; i+1 < len(ctx); i += 2 {
		fmt.Fprintf(&b, " %v=%v", ctx[i], ctx[i+1])
	}
	if lvl <= LvlError {
		if call, ok := callerFrame(); ok {
			fmt.Fprintf(&b, " caller=%s", call)
		}
	}
	b.WriteByte('\n')
	io.WriteString(out, b.String())
}

func callerFrame() (string, bool) {
	// Skip Logger.log, the level-specific wrapper, and this function.
	cs := stack.Trace().TrimRuntime()
	if len(cs) < 4 {
		return "", false
	}
	c := cs[3]
	return fmt.Sprintf("%+v", c), true
}

func (lg *Logger) Trace(msg string, ctx ...interface{}) { lg.log(LvlTrace, msg, ctx) }
func (lg *Logger) Debug(msg string, ctx ...interface{}) { lg.log(LvlDebug, msg, ctx) }
func (lg *Logger) Info(msg string, ctx ...interface{})  { lg.log(LvlInfo, msg, ctx) }
func (lg *Logger) Warn(msg string, ctx ...interface{})  { lg.log(LvlWarn, msg, ctx) }
func (lg *Logger) Error(msg string, ctx ...interface{}) { lg.log(LvlError, msg, ctx) }

// Crit logs at the highest severity and terminates the process. Reserved
// for the self-inconsistency assertions spec.md §7 calls fatal (store
// rollback failure, invariant breaches) -- never for peer input.
func (lg *Logger) Crit(msg string, ctx ...interface{}) {
	lg.log(LvlCrit, msg, ctx)
	os.Exit(1)
}
