// Package randinstr generates random RV32I/RV64I and RVC instructions for
// a sequence body.
package randinstr

import (
	"fmt"

	"github.com/samber/lo"

	"riscvdv/pkg/riscvdv"
)

type template struct {
	name       string
	category   riscvdv.Category
	format     riscvdv.Format
	compressed bool
	rv64       bool
	// immediate range, inclusive
	immLo, immHi int
	// nonzero rd required
	rdNonZero bool
}

var templates = []template{
	{name: "add", category: riscvdv.Arithmetic, format: riscvdv.FormatR},
	{name: "sub", category: riscvdv.Arithmetic, format: riscvdv.FormatR},
	{name: "addi", category: riscvdv.Arithmetic, format: riscvdv.FormatI, immLo: -2048, immHi: 2047},
	{name: "and", category: riscvdv.Logical, format: riscvdv.FormatR},
	{name: "or", category: riscvdv.Logical, format: riscvdv.FormatR},
	{name: "xor", category: riscvdv.Logical, format: riscvdv.FormatR},
	{name: "andi", category: riscvdv.Logical, format: riscvdv.FormatI, immLo: -2048, immHi: 2047},
	{name: "ori", category: riscvdv.Logical, format: riscvdv.FormatI, immLo: -2048, immHi: 2047},
	{name: "xori", category: riscvdv.Logical, format: riscvdv.FormatI, immLo: -2048, immHi: 2047},
	{name: "sll", category: riscvdv.Shift, format: riscvdv.FormatR},
	{name: "srl", category: riscvdv.Shift, format: riscvdv.FormatR},
	{name: "sra", category: riscvdv.Shift, format: riscvdv.FormatR},
	{name: "slli", category: riscvdv.Shift, format: riscvdv.FormatI, immLo: 0, immHi: 31},
	{name: "srli", category: riscvdv.Shift, format: riscvdv.FormatI, immLo: 0, immHi: 31},
	{name: "srai", category: riscvdv.Shift, format: riscvdv.FormatI, immLo: 0, immHi: 31},
	{name: "slt", category: riscvdv.Compare, format: riscvdv.FormatR},
	{name: "sltu", category: riscvdv.Compare, format: riscvdv.FormatR},
	{name: "slti", category: riscvdv.Compare, format: riscvdv.FormatI, immLo: -2048, immHi: 2047},
	{name: "sltiu", category: riscvdv.Compare, format: riscvdv.FormatI, immLo: -2048, immHi: 2047},
	{name: "lui", category: riscvdv.Arithmetic, format: riscvdv.FormatU, immLo: 0, immHi: 0xfffff},
	{name: "auipc", category: riscvdv.Arithmetic, format: riscvdv.FormatU, immLo: 0, immHi: 0xfffff},
	{name: "addw", category: riscvdv.Arithmetic, format: riscvdv.FormatR, rv64: true},
	{name: "subw", category: riscvdv.Arithmetic, format: riscvdv.FormatR, rv64: true},
	{name: "addiw", category: riscvdv.Arithmetic, format: riscvdv.FormatI, rv64: true, immLo: -2048, immHi: 2047},
	{name: "lw", category: riscvdv.Load, format: riscvdv.FormatLoad, immLo: -2048, immHi: 2047},
	{name: "sw", category: riscvdv.Store, format: riscvdv.FormatStore, immLo: -2048, immHi: 2047},
	{name: "beq", category: riscvdv.Branch, format: riscvdv.FormatB},
	{name: "bne", category: riscvdv.Branch, format: riscvdv.FormatB},
	{name: "blt", category: riscvdv.Branch, format: riscvdv.FormatB},
	{name: "bge", category: riscvdv.Branch, format: riscvdv.FormatB},
	{name: "bltu", category: riscvdv.Branch, format: riscvdv.FormatB},
	{name: "bgeu", category: riscvdv.Branch, format: riscvdv.FormatB},
	{name: "fence", category: riscvdv.Synch, format: riscvdv.FormatNone},
	{name: "c.addi", category: riscvdv.Arithmetic, format: riscvdv.FormatCI, compressed: true, immLo: 1, immHi: 31, rdNonZero: true},
	{name: "c.li", category: riscvdv.Arithmetic, format: riscvdv.FormatCI, compressed: true, immLo: -32, immHi: 31, rdNonZero: true},
	{name: "c.slli", category: riscvdv.Shift, format: riscvdv.FormatCI, compressed: true, immLo: 1, immHi: 31, rdNonZero: true},
	{name: "c.mv", category: riscvdv.Arithmetic, format: riscvdv.FormatCR, compressed: true, rdNonZero: true},
	{name: "c.add", category: riscvdv.Arithmetic, format: riscvdv.FormatCR, compressed: true, rdNonZero: true},
	{name: "c.nop", category: riscvdv.Arithmetic, format: riscvdv.FormatNone, compressed: true},
}

// atomicPairPct is the chance, in percent, of emitting a lui/addi pair
// that must stay together.
const atomicPairPct = 5

// Generator implements riscvdv.InstrGenerator.
type Generator struct {
	opts  riscvdv.Options
	r     *riscvdv.Rand
	count int
	avail []riscvdv.Reg
}

// New returns a generator drawing from r.
func New(opts riscvdv.Options, r *riscvdv.Rand) *Generator {
	avail := lo.Filter(riscvdv.AllRegs(), func(reg riscvdv.Reg, _ int) bool {
		return reg != riscvdv.Zero && !opts.IsReserved(reg)
	})
	return &Generator{opts: opts, r: r, avail: avail}
}

func (g *Generator) Initialize(count int) {
	g.count = count
}

// Generate returns exactly the initialized number of instructions.
func (g *Generator) Generate(noBranch, noLoadStore, isDebug bool) ([]*riscvdv.Instr, error) {
	if len(g.avail) == 0 {
		return nil, fmt.Errorf("no destination register left outside the reserved set")
	}
	pool := lo.Filter(templates, func(t template, _ int) bool {
		switch {
		case t.rv64 && g.opts.XLEN != 64:
			return false
		case t.compressed && g.opts.DisableCompressedInstr:
			return false
		case t.category == riscvdv.Branch && (noBranch || g.opts.NoBranchJump):
			return false
		case (t.category == riscvdv.Load || t.category == riscvdv.Store) && noLoadStore:
			return false
		case t.category == riscvdv.Synch && isDebug:
			return false
		}
		return true
	})

	instrs := make([]*riscvdv.Instr, 0, g.count)
	for len(instrs) < g.count {
		if g.count-len(instrs) >= 2 && g.r.FlipCoin(atomicPairPct) {
			instrs = append(instrs, g.atomicPair()...)
			continue
		}
		instrs = append(instrs, g.instance(pool[g.r.Upto(len(pool))]))
	}
	return instrs, nil
}

func (g *Generator) rd() riscvdv.Reg {
	return g.avail[g.r.Upto(len(g.avail))]
}

func (g *Generator) src() riscvdv.Reg {
	return riscvdv.Reg(g.r.Upto(riscvdv.NumGPR))
}

func (g *Generator) instance(t template) *riscvdv.Instr {
	in := riscvdv.NewInstr(t.name, t.category, t.format)
	in.IsCompressed = t.compressed
	switch t.format {
	case riscvdv.FormatR:
		in.Rd, in.Rs1, in.Rs2 = g.rd(), g.src(), g.src()
	case riscvdv.FormatI, riscvdv.FormatLoad:
		in.Rd, in.Rs1 = g.rd(), g.src()
	case riscvdv.FormatU, riscvdv.FormatCI:
		in.Rd = g.rd()
	case riscvdv.FormatCR:
		in.Rd, in.Rs2 = g.rd(), g.rd()
	case riscvdv.FormatStore:
		in.Rs1, in.Rs2 = g.src(), g.src()
	case riscvdv.FormatB:
		in.Rs1, in.Rs2 = g.src(), g.src()
		// Placeholder target until post-processing picks a label.
		in.ImmStr = ".+4"
		return in
	}
	if t.immLo != 0 || t.immHi != 0 {
		in.ImmStr = fmt.Sprintf("%d", g.r.Range(t.immLo, t.immHi))
	}
	return in
}

// atomicPair loads a 32-bit constant; the addi must directly follow the lui.
func (g *Generator) atomicPair() []*riscvdv.Instr {
	rd := g.rd()
	lui := riscvdv.NewInstr("lui", riscvdv.Arithmetic, riscvdv.FormatU)
	lui.Rd = rd
	lui.ImmStr = fmt.Sprintf("%d", g.r.Range(0, 0xfffff))
	addi := riscvdv.NewInstr("addi", riscvdv.Arithmetic, riscvdv.FormatI)
	addi.Rd, addi.Rs1 = rd, rd
	addi.ImmStr = fmt.Sprintf("%d", g.r.Range(-2048, 2047))
	addi.Atomic = true
	addi.HasLabel = false
	return []*riscvdv.Instr{lui, addi}
}
