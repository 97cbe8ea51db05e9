package riscvdv

import "fmt"

// InstrGenerator produces the random body of a sequence.
type InstrGenerator interface {
	Initialize(count int)
	Generate(noBranch, noLoadStore, isDebug bool) ([]*Instr, error)
}

// InstrStream is the ordered instruction list of one sequence.
type InstrStream struct {
	instrCnt  int
	instrList []*Instr
	r         *Rand
}

// NewInstrStream returns an empty stream that draws insert points from r.
func NewInstrStream(r *Rand) *InstrStream {
	return &InstrStream{r: r}
}

// InitializeInstrList records the number of instructions to generate.
func (s *InstrStream) InitializeInstrList(count int) {
	s.instrCnt = count
	s.instrList = make([]*Instr, 0, count)
}

// GenInstr fills the stream through gen.
func (s *InstrStream) GenInstr(gen InstrGenerator, noBranch, noLoadStore, isDebug bool) error {
	gen.Initialize(s.instrCnt)
	instrs, err := gen.Generate(noBranch, noLoadStore, isDebug)
	if err != nil {
		return fmt.Errorf("generate %d instructions: %w", s.instrCnt, err)
	}
	s.instrList = append(s.instrList, instrs...)
	return nil
}

// Len returns the current number of instructions.
func (s *InstrStream) Len() int { return len(s.instrList) }

// Instrs exposes the list in program order.
func (s *InstrStream) Instrs() []*Instr { return s.instrList }

// Prepend places instrs before the current list.
func (s *InstrStream) Prepend(instrs []*Instr) {
	s.instrList = append(append(make([]*Instr, 0, len(instrs)+len(s.instrList)), instrs...), s.instrList...)
}

// Append places instrs after the current list.
func (s *InstrStream) Append(instrs []*Instr) {
	s.instrList = append(s.instrList, instrs...)
}

// InsertInstrStream splices newInstrs in before position idx. A negative
// idx picks a random position that does not split an atomic group. With
// replace set, the instruction at idx is overwritten by the new stream.
func (s *InstrStream) InsertInstrStream(newInstrs []*Instr, idx int, replace bool) error {
	cur := len(s.instrList)
	if cur == 0 {
		s.instrList = append(s.instrList, newInstrs...)
		return nil
	}
	if idx < 0 {
		var err error
		if idx, err = s.randomInsertPoint(); err != nil {
			return err
		}
	} else if idx > cur || (replace && idx == cur) {
		return fmt.Errorf("cannot insert instruction stream at %d, list has %d instructions", idx, cur)
	}

	tail := s.instrList[idx:]
	if replace {
		tail = s.instrList[idx+1:]
	}
	merged := make([]*Instr, 0, cur+len(newInstrs))
	merged = append(merged, s.instrList[:idx]...)
	merged = append(merged, newInstrs...)
	merged = append(merged, tail...)
	s.instrList = merged
	return nil
}

func (s *InstrStream) randomInsertPoint() (int, error) {
	cur := len(s.instrList)
	idx := s.r.Upto(cur)
	for i := 0; i < 10 && s.instrList[idx].Atomic; i++ {
		idx = s.r.Upto(cur)
	}
	if !s.instrList[idx].Atomic {
		return idx, nil
	}
	for i, instr := range s.instrList {
		if !instr.Atomic {
			return i, nil
		}
	}
	return 0, ErrNoInsertPoint
}
