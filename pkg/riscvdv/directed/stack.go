// Package directed provides the register save and restore streams placed
// around a subprogram body.
package directed

import (
	"fmt"

	"github.com/samber/lo"

	"riscvdv/pkg/riscvdv"
)

var branchNames = []string{"beq", "bne", "blt", "bge", "bltu", "bgeu"}

// StackLib implements riscvdv.StackInstrLib.
type StackLib struct {
	opts riscvdv.Options
	r    *riscvdv.Rand
}

// NewStackLib returns a stack library drawing from r.
func NewStackLib(opts riscvdv.Options, r *riscvdv.Rand) *StackLib {
	return &StackLib{opts: opts, r: r}
}

// savedRegs returns RA followed by the configured extra registers, limited
// to what fits in the frame below the first slot.
func (l *StackLib) savedRegs(stackLen int) []riscvdv.Reg {
	regs := lo.Uniq(append([]riscvdv.Reg{l.opts.RA}, l.opts.SavedRegs...))
	regs = lo.Filter(regs, func(r riscvdv.Reg, _ int) bool {
		return r != riscvdv.Zero && r != l.opts.SP && (r == l.opts.RA || !l.opts.IsReserved(r))
	})
	slots := stackLen/l.opts.XLENBytes() - 1
	if slots < 0 {
		slots = 0
	}
	if len(regs) > slots {
		regs = regs[:slots]
	}
	return regs
}

func (l *StackLib) storeName() string {
	if l.opts.XLEN == 64 {
		return "sd"
	}
	return "sw"
}

func (l *StackLib) loadName() string {
	if l.opts.XLEN == 64 {
		return "ld"
	}
	return "lw"
}

func (l *StackLib) spAdjust(imm int) *riscvdv.Instr {
	in := riscvdv.NewInstr("addi", riscvdv.Arithmetic, riscvdv.FormatI)
	in.Rd, in.Rs1 = l.opts.SP, l.opts.SP
	in.ImmStr = fmt.Sprintf("%d", imm)
	return in
}

// GenPushStack allocates stackLen bytes and stores the saved registers.
// The frame must hold at least the return address above its first slot.
// With allowBranch the group is led by a random branch whose taken and
// fall-through paths both reach the stack adjustment.
func (l *StackLib) GenPushStack(stackLen int, labelPrefix string, allowBranch bool) ([]*riscvdv.Instr, []riscvdv.Reg, error) {
	if l.opts.XLENBytes() <= 0 {
		return nil, nil, fmt.Errorf("invalid xlen %d", l.opts.XLEN)
	}
	regs := l.savedRegs(stackLen)
	width := l.opts.XLENBytes()
	if !lo.Contains(regs, l.opts.RA) {
		return nil, nil, &riscvdv.FatalConfigError{
			Op:     "gen push stack",
			Reason: fmt.Sprintf("a %d byte frame has no slot for %s", stackLen, l.opts.RA),
		}
	}

	push := []*riscvdv.Instr{l.spAdjust(-stackLen)}
	for i, reg := range regs {
		st := riscvdv.NewInstr(l.storeName(), riscvdv.Store, riscvdv.FormatStore)
		st.Rs1, st.Rs2 = l.opts.SP, reg
		st.ImmStr = fmt.Sprintf("%d", (i+1)*width)
		push = append(push, st)
	}

	instrs := push
	if allowBranch {
		br := riscvdv.NewInstr(branchNames[l.r.Upto(len(branchNames))], riscvdv.Branch, riscvdv.FormatB)
		br.Rs1, br.Rs2 = l.randomReg(), l.randomReg()
		br.ImmStr = ".+4"
		br.BranchAssigned = true
		instrs = append([]*riscvdv.Instr{br}, push...)
	}
	instrs[0].Comment = labelPrefix
	markAtomic(instrs)
	return instrs, regs, nil
}

// GenPopStack restores savedRegs and releases stackLen bytes.
func (l *StackLib) GenPopStack(stackLen int, savedRegs []riscvdv.Reg) ([]*riscvdv.Instr, error) {
	width := l.opts.XLENBytes()
	if width <= 0 {
		return nil, fmt.Errorf("invalid xlen %d", l.opts.XLEN)
	}
	if (len(savedRegs)+1)*width > stackLen && len(savedRegs) > 0 {
		return nil, fmt.Errorf("%d saved registers do not fit in a %d byte frame", len(savedRegs), stackLen)
	}
	instrs := make([]*riscvdv.Instr, 0, len(savedRegs)+1)
	for i, reg := range savedRegs {
		ld := riscvdv.NewInstr(l.loadName(), riscvdv.Load, riscvdv.FormatLoad)
		ld.Rd, ld.Rs1 = reg, l.opts.SP
		ld.ImmStr = fmt.Sprintf("%d", (i+1)*width)
		instrs = append(instrs, ld)
	}
	instrs = append(instrs, l.spAdjust(stackLen))
	markAtomic(instrs)
	return instrs, nil
}

func (l *StackLib) randomReg() riscvdv.Reg {
	return riscvdv.Reg(l.r.Upto(riscvdv.NumGPR))
}

// markAtomic turns instrs into one group led by its first instruction.
func markAtomic(instrs []*riscvdv.Instr) {
	for _, in := range instrs[1:] {
		in.Atomic = true
		in.HasLabel = false
	}
}
