package riscvdv

import (
	"fmt"
	"strings"
)

const (
	// MaxInstrStrLen is the column width of the mnemonic field.
	MaxInstrStrLen = 13
	// LabelStrLen is the column width of the label field.
	LabelStrLen = 18
)

// Category groups instructions by behaviour. Post-processing only cares
// whether an instruction is a Branch.
type Category int

const (
	Load Category = iota
	Store
	Shift
	Arithmetic
	Logical
	Compare
	Branch
	Jump
	Synch
	System
)

var categoryNames = [...]string{
	Load:       "LOAD",
	Store:      "STORE",
	Shift:      "SHIFT",
	Arithmetic: "ARITHMETIC",
	Logical:    "LOGICAL",
	Compare:    "COMPARE",
	Branch:     "BRANCH",
	Jump:       "JUMP",
	Synch:      "SYNCH",
	System:     "SYSTEM",
}

func (c Category) String() string {
	if c < 0 || int(c) >= len(categoryNames) {
		return fmt.Sprintf("Category(%d)", int(c))
	}
	return categoryNames[c]
}

// Format selects the operand layout used when rendering an instruction.
type Format int

const (
	FormatNone Format = iota
	FormatR           // rd, rs1, rs2
	FormatI           // rd, rs1, imm
	FormatLoad        // rd, imm(rs1)
	FormatStore       // rs2, imm(rs1)
	FormatB           // rs1, rs2, imm
	FormatU           // rd, imm
	FormatJ           // rd, imm
	FormatCR          // rd, rs2
	FormatCI          // rd, imm
	FormatCJ          // imm
)

// Instr is one assembly instruction plus the annotations that
// post-processing fills in.
type Instr struct {
	Name     string
	Category Category
	Format   Format
	Rd       Reg
	Rs1      Reg
	Rs2      Reg
	ImmStr   string
	Comment  string

	Idx                 int
	HasLabel            bool
	IsLocalNumericLabel bool
	Label               string

	// Atomic is set on every instruction of an indivisible group except
	// the first one.
	Atomic       bool
	IsCompressed bool

	// InsertIllegalInstr is set when an external mechanism already turned
	// this instruction into an illegal one.
	InsertIllegalInstr bool
	IsIllegalInstr     bool
	IsHintInstr        bool

	BranchAssigned bool
}

// NewInstr returns a labelable instruction with no operands set.
func NewInstr(name string, category Category, format Format) *Instr {
	return &Instr{
		Name:     name,
		Category: category,
		Format:   format,
		HasLabel: true,
	}
}

// ConvertToAsm renders the instruction without its label field.
func (i *Instr) ConvertToAsm() string {
	var asm string
	switch {
	case i.IsIllegalInstr && i.IsCompressed:
		asm = ".2byte 0x0000"
	case i.IsIllegalInstr:
		asm = ".4byte 0x00000000"
	case i.IsHintInstr:
		// c.nop with a non-zero immediate.
		asm = ".2byte 0x0005"
	default:
		return i.withComment(i.operandAsm(), i.Comment)
	}
	original := i.operandAsm()
	if i.Comment != "" {
		original += " " + i.Comment
	}
	return i.withComment(FormatString(asm, MaxInstrStrLen), original)
}

func (i *Instr) operandAsm() string {
	name := FormatString(i.Name, MaxInstrStrLen)
	switch i.Format {
	case FormatR:
		return fmt.Sprintf("%s%s, %s, %s", name, i.Rd, i.Rs1, i.Rs2)
	case FormatI:
		return fmt.Sprintf("%s%s, %s, %s", name, i.Rd, i.Rs1, i.ImmStr)
	case FormatLoad:
		return fmt.Sprintf("%s%s, %s(%s)", name, i.Rd, i.ImmStr, i.Rs1)
	case FormatStore:
		return fmt.Sprintf("%s%s, %s(%s)", name, i.Rs2, i.ImmStr, i.Rs1)
	case FormatB:
		return fmt.Sprintf("%s%s, %s, %s", name, i.Rs1, i.Rs2, i.ImmStr)
	case FormatU, FormatJ, FormatCI:
		return fmt.Sprintf("%s%s, %s", name, i.Rd, i.ImmStr)
	case FormatCR:
		return fmt.Sprintf("%s%s, %s", name, i.Rd, i.Rs2)
	case FormatCJ:
		return name + i.ImmStr
	default:
		return strings.TrimRight(name, " ")
	}
}

func (i *Instr) withComment(asm, comment string) string {
	if comment == "" {
		return asm
	}
	return asm + " #" + comment
}

func (i *Instr) String() string {
	return i.ConvertToAsm()
}

// FormatString left-aligns s in a field of n columns. Longer strings are
// returned unchanged.
func FormatString(s string, n int) string {
	if len(s) >= n {
		return s
	}
	return s + strings.Repeat(" ", n-len(s))
}
