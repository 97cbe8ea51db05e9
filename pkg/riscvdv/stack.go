package riscvdv

import "fmt"

// StackInstrLib builds the register save and restore streams around a
// subprogram body.
type StackInstrLib interface {
	GenPushStack(stackLen int, labelPrefix string, allowBranch bool) ([]*Instr, []Reg, error)
	GenPopStack(stackLen int, savedRegs []Reg) ([]*Instr, error)
}

// RandomizeStackLen draws a stack length uniformly from the XLEN-aligned
// values in [MinStackLen, MaxStackLen].
func RandomizeStackLen(r *Rand, opts Options) (int, error) {
	align := opts.XLENBytes()
	if align <= 0 {
		return 0, fatalf("randomize program_stack_len", "invalid xlen %d", opts.XLEN)
	}
	low, high := max(opts.MinStackLen, 0), opts.MaxStackLen
	first := (low + align - 1) / align * align
	if first > high {
		return 0, fatalf("randomize program_stack_len",
			"no multiple of %d in [%d, %d]", align, opts.MinStackLen, high)
	}
	n := (high-first)/align + 1
	return first + r.Upto(n)*align, nil
}

// stackFrame holds the prologue and epilogue of one subprogram.
type stackFrame struct {
	stackLen  int
	savedRegs []Reg
	enter     []*Instr
	exit      []*Instr
}

// buildStackFrame randomizes the frame size and asks lib for the matching
// push and pop streams. The pop stream restores exactly what push saved.
func buildStackFrame(r *Rand, opts Options, lib StackInstrLib, labelName string, allowBranch bool) (*stackFrame, error) {
	stackLen, err := RandomizeStackLen(r, opts)
	if err != nil {
		return nil, err
	}
	f := &stackFrame{stackLen: stackLen}
	f.enter, f.savedRegs, err = lib.GenPushStack(stackLen, labelName+"_stack_p", allowBranch)
	if err != nil {
		return nil, fmt.Errorf("push stack: %w", err)
	}
	f.exit, err = lib.GenPopStack(stackLen, f.savedRegs)
	if err != nil {
		return nil, fmt.Errorf("pop stack: %w", err)
	}
	return f, nil
}
