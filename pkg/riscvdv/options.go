package riscvdv

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/samber/lo"
	"gopkg.in/yaml.v3"
)

const (
	defaultCoreSettingPath = "core_setting.yaml"
	defaultBranchPoolSize  = 30
)

// Options is the read-only generation configuration shared by every
// sequence of a run. Defaults follow the riscv-dv generator where possible.
type Options struct {
	Seed uint64

	// Program shape
	InstrCnt        int
	NumOfSubProgram int
	MainLabel       string

	// Target core (from the core setting file or explicit override)
	CoreSettingPath    string
	XLEN               int
	SupportPMP         bool
	XLENExplicit       bool
	SupportPMPExplicit bool

	// Register usage
	ReservedRegs []Reg
	RA           Reg
	SP           Reg
	SavedRegs    []Reg

	// Stack frame bounds, in bytes
	MinStackLen int
	MaxStackLen int

	// Branch targets
	MaxBranchStep  int
	BranchPoolSize int

	// Instruction mix
	NoBranchJump           bool
	DisableCompressedInstr bool

	// Corruption
	IllegalInstrPct int
	HintInstrPct    int
	NoIllegalInstr  bool
	NoHintInstr     bool
}

func Defaults() Options {
	return Options{
		InstrCnt:        200,
		NumOfSubProgram: 0,
		MainLabel:       "main",

		CoreSettingPath: defaultCoreSettingPath,
		XLEN:            32,
		SupportPMP:      false,

		ReservedRegs: []Reg{TP, SP},
		RA:           RA,
		SP:           SP,
		SavedRegs:    []Reg{T0},

		MinStackLen: 40,
		MaxStackLen: 64,

		MaxBranchStep:  20,
		BranchPoolSize: defaultBranchPoolSize,

		NoBranchJump:           false,
		DisableCompressedInstr: false,

		IllegalInstrPct: 0,
		HintInstrPct:    0,
		NoIllegalInstr:  false,
		NoHintInstr:     false,
	}
}

// coreSetting mirrors the target description file.
type coreSetting struct {
	XLEN         *int  `yaml:"xlen"`
	SupportPMP   *bool `yaml:"support_pmp"`
	ReservedRegs []Reg `yaml:"reserved_regs"`
}

func (o Options) resolveCoreSetting() (Options, error) {
	path := strings.TrimSpace(o.CoreSettingPath)
	if path == "" {
		path = defaultCoreSettingPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return o, nil
		}
		return o, err
	}

	var cs coreSetting
	if err := yaml.Unmarshal(data, &cs); err != nil {
		return o, fmt.Errorf("invalid core setting %s: %w", path, err)
	}
	if cs.XLEN == nil {
		return o, fmt.Errorf("please specify xlen in %s", path)
	}
	if !o.XLENExplicit {
		o.XLEN = *cs.XLEN
	}
	if cs.SupportPMP != nil && !o.SupportPMPExplicit {
		o.SupportPMP = *cs.SupportPMP
	}
	if len(cs.ReservedRegs) > 0 {
		o.ReservedRegs = lo.Uniq(append(append([]Reg{}, o.ReservedRegs...), cs.ReservedRegs...))
	}
	return o, nil
}

// IsReserved reports whether reg must not be written by generated code.
func (o Options) IsReserved(reg Reg) bool {
	return lo.Contains(o.ReservedRegs, reg)
}

// XLENBytes is the register width in bytes.
func (o Options) XLENBytes() int {
	return o.XLEN / 8
}

func (o Options) Validate() error {
	if o.XLEN != 32 && o.XLEN != 64 {
		return fmt.Errorf("xlen must be 32 or 64, got %d", o.XLEN)
	}
	if o.InstrCnt < 1 {
		return fmt.Errorf("instr-cnt must be at least 1")
	}
	if o.NumOfSubProgram < 0 {
		return fmt.Errorf("num-of-sub-program must not be negative")
	}
	if strings.TrimSpace(o.MainLabel) == "" {
		return fmt.Errorf("main-label must not be empty")
	}
	if o.MaxBranchStep < 1 {
		return fmt.Errorf("max-branch-step must be at least 1")
	}
	if o.BranchPoolSize < 1 {
		return fmt.Errorf("branch-pool-size must be at least 1")
	}
	if o.MinStackLen < 0 || o.MaxStackLen < 0 {
		return fmt.Errorf("stack length bounds must not be negative")
	}
	if o.IllegalInstrPct < 0 || o.IllegalInstrPct > 100 {
		return fmt.Errorf("illegal-instr-pct value must between [0,100]")
	}
	if o.HintInstrPct < 0 || o.HintInstrPct > 100 {
		return fmt.Errorf("hint-instr-pct value must between [0,100]")
	}
	if o.RA == Zero || o.SP == Zero {
		return fmt.Errorf("ra and sp cannot be the zero register")
	}
	return nil
}

// normalize applies the feature switches that override per-sequence
// percentages.
func (o Options) normalize() Options {
	if o.NoIllegalInstr {
		o.IllegalInstrPct = 0
	}
	if o.NoHintInstr {
		o.HintInstrPct = 0
	}
	return o
}

// Resolve loads the core setting file, applies feature switches and
// validates the result.
func (o Options) Resolve() (Options, error) {
	o, err := o.resolveCoreSetting()
	if err != nil {
		return o, err
	}
	o = o.normalize()
	if err := o.Validate(); err != nil {
		return o, err
	}
	return o, nil
}
