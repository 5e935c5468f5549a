package arc

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/joshuapare/arckit/arc/alloc"
)

// Runtime allocation tracing, controlled by the ARC_LOG_ALLOC env var.
var logAlloc = os.Getenv("ARC_LOG_ALLOC") != ""

// Policy selects how Shared handles translate their local contribution count
// into registry releases.
type Policy int

const (
	// PolicySingle retains once on acquire and releases exactly once on loss
	// of ownership. Assignment releases the previous target.
	PolicySingle Policy = iota

	// PolicyFaithful releases once per handle release and a second time when
	// the handle's local count reaches zero. Assignment leaves the previous
	// target retained.
	PolicyFaithful
)

func (p Policy) String() string {
	switch p {
	case PolicySingle:
		return "single"
	case PolicyFaithful:
		return "faithful"
	default:
		return fmt.Sprintf("Policy(%d)", int(p))
	}
}

// ParsePolicy parses the String form of a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "single", "":
		return PolicySingle, nil
	case "faithful":
		return PolicyFaithful, nil
	default:
		return 0, fmt.Errorf("unknown release policy %q (want single or faithful)", s)
	}
}

// Options configures a Registry. A nil *Options or zero field selects the default.
type Options struct {
	// Backend supplies the memory. The registry takes ownership and closes it
	// in Close. Default: alloc.NewGoHeap().
	Backend alloc.Backend

	// Limit caps the bytes (headers included) the registry may hold at once.
	// Zero means unlimited.
	Limit int64

	// Policy selects the Shared handle release policy. Default: PolicySingle.
	Policy Policy

	// Reporter receives memory errors. Default: LogReporter over Logger.
	Reporter Reporter

	// Logger receives diagnostics. Default: discard, or stderr at debug level
	// when ARC_LOG_ALLOC is set.
	Logger *slog.Logger

	// TraceAllocs logs every allocate and free at debug level. Also enabled by
	// the ARC_LOG_ALLOC env var.
	TraceAllocs bool
}

func (o *Options) withDefaults() Options {
	var out Options
	if o != nil {
		out = *o
	}
	if out.Backend == nil {
		out.Backend = alloc.NewGoHeap()
	}
	if out.Limit > 0 {
		out.Backend = alloc.NewLimit(out.Backend, out.Limit)
	}
	if logAlloc {
		out.TraceAllocs = true
	}
	if out.Logger == nil {
		if logAlloc {
			out.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
		} else {
			out.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
		}
	}
	if out.Reporter == nil {
		out.Reporter = LogReporter{Logger: out.Logger}
	}
	return out
}
