package riscvdv

import (
	"fmt"
	"os"
	"runtime"
	"strings"
)

const (
	lcgA    uint64 = 0x5DEECE66D
	lcgC    uint64 = 0xB
	lcgMask uint64 = (1 << 48) - 1
)

// Rand is a deterministic random source built on the srand48/lrand48
// recurrence. Each Sequence owns one; it is not safe for concurrent use.
type Rand struct {
	state     uint64
	trace     bool
	traceSite bool
	traceFile string
	tracePos  uint64
}

// NewRand seeds a Rand with srand48 semantics.
func NewRand(seed uint64) *Rand {
	r := &Rand{state: ((seed << 16) + 0x330E) & lcgMask}
	if os.Getenv("RISCVDV_TRACE_RNG") != "" {
		r.trace = true
		r.traceSite = os.Getenv("RISCVDV_TRACE_RNG_SITE") != ""
		r.traceFile = os.Getenv("RISCVDV_TRACE_RNG_FILE")
		if r.traceFile == "" {
			r.traceFile = "/tmp/riscvdv-rng.trace"
		}
		_ = os.WriteFile(r.traceFile, []byte(fmt.Sprintf("# seed=%d\n", seed)), 0644)
	}
	return r
}

func (r *Rand) next31() uint32 {
	r.state = (lcgA*r.state + lcgC) & lcgMask
	return uint32(r.state >> 17)
}

// Uint64 returns 62 random bits. Used to derive child seeds.
func (r *Rand) Uint64() uint64 {
	return uint64(r.next31())<<31 | uint64(r.next31())
}

// Upto returns a uniform value in [0, n). Upto(0) is 0.
func (r *Rand) Upto(n int) int {
	if n <= 0 {
		return 0
	}
	x := int(r.next31() % uint32(n))
	r.traceDraw("U", n, x)
	return x
}

// Range returns a uniform value in the closed interval [lo, hi].
func (r *Rand) Range(lo, hi int) int {
	if hi < lo {
		lo, hi = hi, lo
	}
	return lo + r.Upto(hi-lo+1)
}

// FlipCoin reports true with probability p percent.
func (r *Rand) FlipCoin(p int) bool {
	if p > 100 {
		p = 100
	}
	ok := int(r.next31()%100) < p
	b := 0
	if ok {
		b = 1
	}
	r.traceDraw("F", p, b)
	return ok
}

// Shuffle permutes n elements with Fisher-Yates, calling swap for each exchange.
func (r *Rand) Shuffle(n int, swap func(i, j int)) {
	for i := n - 1; i > 0; i-- {
		j := r.Upto(i + 1)
		swap(i, j)
	}
}

func (r *Rand) traceDraw(kind string, n, x int) {
	if !r.trace {
		return
	}
	r.tracePos++
	f, err := os.OpenFile(r.traceFile, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0644)
	if err != nil {
		return
	}
	if r.traceSite {
		_, _ = fmt.Fprintf(f, "%d %s %d -> %d @%s\n", r.tracePos, kind, n, x, traceCaller())
	} else {
		_, _ = fmt.Fprintf(f, "%d %s %d -> %d\n", r.tracePos, kind, n, x)
	}
	_ = f.Close()
}

func traceCaller() string {
	var pcs [12]uintptr
	n := runtime.Callers(3, pcs[:])
	frames := runtime.CallersFrames(pcs[:n])
	for {
		fr, more := frames.Next()
		if fr.Function != "" && !strings.HasPrefix(fr.Function, "riscvdv/pkg/riscvdv.(*Rand)") {
			return fr.Function
		}
		if !more {
			break
		}
	}
	return "unknown"
}
