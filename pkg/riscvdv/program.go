package riscvdv

import (
	"fmt"
	"log/slog"
	"strings"
)

// Version is reported in the generated program header.
const Version = "0.1.0"

// Collaborators returns the instruction generator and stack library used
// by one sequence. It is called once per sequence with that sequence's
// own random source.
type Collaborators func(opts Options, r *Rand) (InstrGenerator, StackInstrLib)

// programGenerator is the minimal driver abstraction: initialize, then
// produce the whole program text.
type programGenerator interface {
	initialize()
	goGenerator() (string, error)
}

func createProgramGenerator(opts Options, collab Collaborators, log *slog.Logger) programGenerator {
	return &defaultProgramGenerator{opts: opts, collab: collab, log: log}
}

// defaultProgramGenerator follows the flow
// initialize -> outputHeader -> generateSubPrograms -> generateMainProgram -> output.
type defaultProgramGenerator struct {
	opts    Options
	collab  Collaborators
	log     *slog.Logger
	r       *Rand
	b       strings.Builder
	mainSeq *Sequence
	subSeqs []*Sequence
}

func (g *defaultProgramGenerator) initialize() {
	g.r = NewRand(g.opts.Seed)
	if g.log == nil {
		g.log = slog.Default()
	}
}

func (g *defaultProgramGenerator) outputHeader() {
	g.b.WriteString("# This is a RANDOMLY GENERATED PROGRAM.\n")
	g.b.WriteString("#\n")
	g.b.WriteString(fmt.Sprintf("# Generator: riscvdv %s\n", Version))
	g.b.WriteString(fmt.Sprintf("# Options:   --seed %d\n", g.opts.Seed))
	g.b.WriteString(fmt.Sprintf("# Seed:      %d\n", g.opts.Seed))
	g.b.WriteString("\n")
	g.b.WriteString(".text\n")
	g.b.WriteString(fmt.Sprintf(".globl %s\n", g.opts.MainLabel))
}

func (g *defaultProgramGenerator) newSequence(label string) *Sequence {
	r := NewRand(g.r.Uint64())
	gen, lib := g.collab(g.opts, r)
	seq := NewSequence(g.opts, r, gen, lib).WithLogger(g.log.With("label", label))
	seq.LabelName = label
	return seq
}

func (g *defaultProgramGenerator) generateSubPrograms() error {
	for i := 1; i <= g.opts.NumOfSubProgram; i++ {
		seq := g.newSequence(fmt.Sprintf("sub_%d", i))
		if err := seq.GenInstr(false, g.opts.NoBranchJump); err != nil {
			return err
		}
		g.subSeqs = append(g.subSeqs, seq)
	}
	return nil
}

// generateMainProgram calls every subprogram from a random point of the
// main body.
func (g *defaultProgramGenerator) generateMainProgram() error {
	seq := g.newSequence(g.opts.MainLabel)
	if err := seq.GenInstr(true, g.opts.NoBranchJump); err != nil {
		return err
	}
	for _, sub := range g.subSeqs {
		call := NewInstr("jal", Jump, FormatJ)
		call.Rd = g.opts.RA
		call.ImmStr = sub.LabelName
		seq.DirectedInstr = append(seq.DirectedInstr, &DirectedStream{
			Name:      "call_" + sub.LabelName,
			Instrs:    []*Instr{call},
			InsertIdx: -1,
		})
	}
	g.mainSeq = seq
	return nil
}

func (g *defaultProgramGenerator) output() error {
	blank := FormatString(" ", LabelStrLen)
	seqs := append([]*Sequence{g.mainSeq}, g.subSeqs...)
	for _, seq := range seqs {
		if err := seq.PostProcessInstr(); err != nil {
			return err
		}
		if err := seq.GenerateInstrStream(false); err != nil {
			return err
		}
		for _, line := range seq.InstrStringList {
			g.b.WriteString(line)
			g.b.WriteString("\n")
		}
		if seq.IsMainProgram {
			g.b.WriteString(blank + FormatString("j", MaxInstrStrLen) + "test_done\n")
		}
	}
	g.b.WriteString(FormatString("test_done:", LabelStrLen) + "ecall\n")
	return nil
}

func (g *defaultProgramGenerator) goGenerator() (string, error) {
	g.outputHeader()
	if err := g.generateSubPrograms(); err != nil {
		return "", err
	}
	if err := g.generateMainProgram(); err != nil {
		return "", err
	}
	if err := g.output(); err != nil {
		return "", err
	}
	return g.b.String(), nil
}

// Generate resolves opts and emits a complete assembly program: a main
// sequence followed by NumOfSubProgram subprograms.
func Generate(opts Options, collab Collaborators, log *slog.Logger) (string, error) {
	opts, err := opts.Resolve()
	if err != nil {
		return "", err
	}
	gen := createProgramGenerator(opts, collab, log)
	gen.initialize()
	return gen.goGenerator()
}
