package riscvdv

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Reg is a general purpose register x0..x31.
type Reg uint8

const (
	Zero Reg = iota
	RA
	SP
	GP
	TP
	T0
	T1
	T2
	S0
	S1
	A0
	A1
	A2
	A3
	A4
	A5
	A6
	A7
	S2
	S3
	S4
	S5
	S6
	S7
	S8
	S9
	S10
	S11
	T3
	T4
	T5
	T6
)

// NumGPR is the number of integer registers.
const NumGPR = 32

var regNames = [NumGPR]string{
	"zero", "ra", "sp", "gp", "tp", "t0", "t1", "t2",
	"s0", "s1", "a0", "a1", "a2", "a3", "a4", "a5",
	"a6", "a7", "s2", "s3", "s4", "s5", "s6", "s7",
	"s8", "s9", "s10", "s11", "t3", "t4", "t5", "t6",
}

func (r Reg) String() string {
	if int(r) >= NumGPR {
		return fmt.Sprintf("x%d", int(r))
	}
	return regNames[r]
}

// AllRegs lists x0..x31 in encoding order.
func AllRegs() []Reg {
	regs := make([]Reg, NumGPR)
	for i := range regs {
		regs[i] = Reg(i)
	}
	return regs
}

// ParseReg accepts an ABI name ("t0"), "fp", or an x-name ("x5").
func ParseReg(s string) (Reg, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if name == "fp" {
		return S0, nil
	}
	for i, n := range regNames {
		if n == name {
			return Reg(i), nil
		}
	}
	var n int
	if _, err := fmt.Sscanf(name, "x%d", &n); err == nil && n >= 0 && n < NumGPR && fmt.Sprintf("x%d", n) == name {
		return Reg(n), nil
	}
	return 0, fmt.Errorf("unknown register %q", s)
}

// UnmarshalYAML lets registers be written by name in core setting files.
func (r *Reg) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	v, err := ParseReg(s)
	if err != nil {
		return err
	}
	*r = v
	return nil
}
