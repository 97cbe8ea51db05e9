package riscvdv

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/samber/lo"
)

// DirectedStream is a prebuilt instruction stream merged into a sequence
// during post-processing. A negative InsertIdx selects a random position
// outside any atomic group.
type DirectedStream struct {
	Name      string
	Instrs    []*Instr
	InsertIdx int
}

// Sequence generates, post-processes and renders one subprogram.
//
// The caller sets InstrCnt and the policy fields, then calls GenInstr,
// PostProcessInstr and GenerateInstrStream in that order. The rendered
// lines are left in InstrStringList.
type Sequence struct {
	InstrCnt        int
	IsMainProgram   bool
	IsDebugProgram  bool
	LabelName       string
	IllegalInstrPct int
	HintInstrPct    int
	DirectedInstr   []*DirectedStream
	InstrStringList []string

	opts        Options
	r           *Rand
	gen         InstrGenerator
	stackLib    StackInstrLib
	instrStream *InstrStream
	frame       *stackFrame
	branchPool  *branchStepPool
	retReg      Reg
	log         *slog.Logger

	postProcessed bool
	rendered      bool
}

// NewSequence creates a sequence bound to its own random source and
// collaborators. opts is copied and treated as read-only.
func NewSequence(opts Options, r *Rand, gen InstrGenerator, stackLib StackInstrLib) *Sequence {
	return &Sequence{
		InstrCnt:        opts.InstrCnt,
		IllegalInstrPct: opts.IllegalInstrPct,
		HintInstrPct:    opts.HintInstrPct,
		opts:            opts,
		r:               r,
		gen:             gen,
		stackLib:        stackLib,
		instrStream:     NewInstrStream(r),
		log:             slog.Default(),
	}
}

// WithLogger replaces the default logger.
func (s *Sequence) WithLogger(l *slog.Logger) *Sequence {
	s.log = l
	return s
}

// InstrStream returns the instruction list owned by the sequence.
func (s *Sequence) InstrStream() *InstrStream { return s.instrStream }

// ProgramStackLen is the randomized stack allocation, 0 for main programs.
func (s *Sequence) ProgramStackLen() int {
	if s.frame == nil {
		return 0
	}
	return s.frame.stackLen
}

// SavedRegs lists the registers preserved by the prologue.
func (s *Sequence) SavedRegs() []Reg {
	if s.frame == nil {
		return nil
	}
	return s.frame.savedRegs
}

func (s *Sequence) illegalPct() int {
	if s.opts.NoIllegalInstr {
		return 0
	}
	return s.IllegalInstrPct
}

func (s *Sequence) hintPct() int {
	if s.opts.NoHintInstr {
		return 0
	}
	return s.HintInstrPct
}

// GenInstr generates the body and, for subprograms, the stack frame. The
// body never contains loads or stores.
func (s *Sequence) GenInstr(isMainProgram, noBranch bool) error {
	s.IsMainProgram = isMainProgram
	s.instrStream.InitializeInstrList(s.InstrCnt)
	s.log.Info("start generating instructions", "label", s.LabelName, "count", s.InstrCnt)
	if err := s.instrStream.GenInstr(s.gen, noBranch, true, s.IsDebugProgram); err != nil {
		return fmt.Errorf("%s: %w", s.LabelName, err)
	}
	if !isMainProgram {
		return s.genStackInstr()
	}
	return nil
}

// genStackInstr places the prologue before the body and the epilogue
// after it.
func (s *Sequence) genStackInstr() error {
	allowBranch := s.illegalPct() == 0 && s.hintPct() == 0 && !s.opts.NoBranchJump
	frame, err := buildStackFrame(s.r, s.opts, s.stackLib, s.LabelName, allowBranch)
	if err != nil {
		s.log.Error("cannot randomize program_stack_len", "label", s.LabelName, "err", err)
		return err
	}
	s.frame = frame
	s.instrStream.Prepend(frame.enter)
	s.instrStream.Append(frame.exit)
	s.log.Debug("stack frame generated", "label", s.LabelName,
		"stack_len", frame.stackLen, "saved_regs", frame.savedRegs)
	return nil
}

// PostProcessInstr merges directed streams, assigns indexes and local
// labels, injects illegal/hint corruption and resolves forward branch
// targets. Only non-atomic instructions receive numeric labels, so no
// branch can land inside an atomic group. Backward branches are never
// produced; loops come from a dedicated stream. A branch with no label
// after it, once its target is clamped to the last label, keeps its
// placeholder and stays unresolved.
func (s *Sequence) PostProcessInstr() error {
	if s.postProcessed {
		return ErrAlreadyPostProcessed
	}
	s.postProcessed = true

	for _, d := range s.DirectedInstr {
		if err := s.instrStream.InsertInstrStream(d.Instrs, d.InsertIdx, false); err != nil {
			return fmt.Errorf("%s: insert directed stream %q: %w", s.LabelName, d.Name, err)
		}
	}

	labelPos := s.assignLabels()
	s.resolveBranchTargets(labelPos)
	s.log.Info("finished post-processing instructions", "label", s.LabelName,
		"instrs", s.instrStream.Len(), "labels", len(labelPos))
	return nil
}

// assignLabels indexes every instruction and returns, for each numeric
// label, the position of the instruction carrying it.
func (s *Sequence) assignLabels() []int {
	instrs := s.instrStream.Instrs()
	illegalPct, hintPct := s.illegalPct(), s.hintPct()
	labelPos := make([]int, 0, len(instrs))

	for i, instr := range instrs {
		instr.Idx = i
		if instr.Atomic {
			instr.HasLabel = false
			continue
		}
		if !instr.HasLabel {
			continue
		}
		if illegalPct > 0 && !instr.InsertIllegalInstr {
			// Illegal instruction handlers resume at PC + 4, which must
			// be an instruction boundary.
			if instr.IsCompressed && i < len(instrs)-1 && instrs[i+1].IsCompressed {
				if s.r.Upto(min(100, illegalPct)) != 0 {
					instr.IsIllegalInstr = true
				}
			}
		}
		if hintPct > 0 && !instr.IsIllegalInstr && instr.IsCompressed {
			if s.r.Upto(min(100, hintPct)) != 0 {
				instr.IsHintInstr = true
			}
		}
		instr.Label = strconv.Itoa(len(labelPos))
		instr.IsLocalNumericLabel = true
		labelPos = append(labelPos, i)
	}
	return labelPos
}

func (s *Sequence) resolveBranchTargets(labelPos []int) {
	instrs := s.instrStream.Instrs()
	labelCnt := len(labelPos)
	used := make([]bool, labelCnt)
	s.branchPool = newBranchStepPool(s.r, s.opts.BranchPoolSize, s.opts.MaxBranchStep)

	for _, instr := range instrs {
		if instr.Category != Branch || instr.BranchAssigned || instr.IsIllegalInstr || instr.Atomic {
			continue
		}
		if labelCnt == 0 {
			s.log.Warn("no local label to branch to", "label", s.LabelName, "idx", instr.Idx)
			continue
		}
		target := instr.Idx + s.branchPool.next()
		if target >= labelCnt {
			target = labelCnt - 1
		}
		if labelPos[target] <= instr.Idx {
			s.log.Debug("no forward branch target", "label", s.LabelName,
				"idx", instr.Idx, "target", target)
			continue
		}
		s.log.Debug("processing branch instruction", "idx", instr.Idx,
			"instr", instr.ConvertToAsm(), "target", target)
		instr.ImmStr = fmt.Sprintf("%df", target)
		instr.BranchAssigned = true
		used[target] = true
	}

	for _, instr := range instrs {
		if !instr.HasLabel || !instr.IsLocalNumericLabel {
			continue
		}
		if n, err := strconv.Atoi(instr.Label); err == nil && n < labelCnt && !used[n] {
			instr.HasLabel = false
		}
	}
}

// GenerateInstrStream renders the instruction list into InstrStringList.
// With noLabel set the first line carries no entry label.
func (s *Sequence) GenerateInstrStream(noLabel bool) error {
	if s.rendered {
		return ErrAlreadyRendered
	}
	s.rendered = true
	blank := FormatString(" ", LabelStrLen)
	s.InstrStringList = s.InstrStringList[:0]

	for i, instr := range s.instrStream.Instrs() {
		prefix := blank
		switch {
		case i == 0:
			if !noLabel {
				prefix = FormatString(s.LabelName+":", LabelStrLen)
			}
			instr.HasLabel = true
		case instr.HasLabel && instr.Label != "":
			prefix = FormatString(instr.Label+":", LabelStrLen)
		}
		s.InstrStringList = append(s.InstrStringList, prefix+instr.ConvertToAsm())
	}

	// Subprograms may be entered from a PMP-protected region.
	if s.opts.SupportPMP && !s.IsMainProgram {
		s.InstrStringList = append([]string{".align 2"}, s.InstrStringList...)
	}
	if !s.IsMainProgram {
		return s.GenerateReturnRoutine(blank)
	}
	return nil
}

type returnMechanism int

const (
	retJALR returnMechanism = iota
	retCJR
	retCJALR
)

// GenerateReturnRoutine appends the return to the caller. The return
// address gets a random low bit to exercise jump target alignment.
func (s *Sequence) GenerateReturnRoutine(prefix string) error {
	candidates := lo.Filter(AllRegs(), func(r Reg, _ int) bool {
		return r != Zero && !s.opts.IsReserved(r)
	})
	if len(candidates) == 0 {
		s.log.Error("cannot randomize ra", "label", s.LabelName)
		return fatalf("randomize ra", "every register is reserved")
	}
	s.retReg = candidates[s.r.Upto(len(candidates))]
	ra := s.opts.RA
	randLSB := s.r.Upto(2)
	s.InstrStringList = append(s.InstrStringList,
		prefix+FormatString("addi", MaxInstrStrLen)+fmt.Sprintf("%s, %s, %d", ra, ra, randLSB))

	mechanisms := []returnMechanism{retJALR}
	if !s.opts.DisableCompressedInstr {
		mechanisms = append(mechanisms, retCJR)
		if !s.opts.IsReserved(RA) {
			mechanisms = append(mechanisms, retCJALR)
		}
	}
	return s.emitReturn(prefix, mechanisms[s.r.Upto(len(mechanisms))])
}

func (s *Sequence) emitReturn(prefix string, m returnMechanism) error {
	ra := s.opts.RA
	var str string
	switch m {
	case retJALR:
		str = FormatString("jalr", MaxInstrStrLen) + fmt.Sprintf("%s, %s, 0", s.retReg, ra)
	case retCJR:
		str = FormatString("c.jr", MaxInstrStrLen) + ra.String()
	case retCJALR:
		str = FormatString("c.jalr", MaxInstrStrLen) + ra.String()
	default:
		s.log.Error("unsupported jump instruction", "mechanism", int(m))
		return fatalf("generate return routine", "unsupported jump_instr %d", int(m))
	}
	s.InstrStringList = append(s.InstrStringList, prefix+str)
	return nil
}
