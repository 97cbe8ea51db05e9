package riscvdv

import (
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Instr", func() {
	op := func(name string) string { return FormatString(name, MaxInstrStrLen) }

	It("should render register operands", func() {
		in := NewInstr("add", Arithmetic, FormatR)
		in.Rd, in.Rs1, in.Rs2 = A0, A1, A2
		Expect(in.ConvertToAsm()).To(Equal(op("add") + "a0, a1, a2"))
	})

	It("should render loads and stores with base+offset", func() {
		ld := NewInstr("lw", Load, FormatLoad)
		ld.Rd, ld.Rs1, ld.ImmStr = T0, SP, "8"
		Expect(ld.ConvertToAsm()).To(Equal(op("lw") + "t0, 8(sp)"))

		st := NewInstr("sw", Store, FormatStore)
		st.Rs1, st.Rs2, st.ImmStr = SP, RA, "4"
		Expect(st.ConvertToAsm()).To(Equal(op("sw") + "ra, 4(sp)"))
	})

	It("should render a resolved branch", func() {
		br := NewInstr("bne", Branch, FormatB)
		br.Rs1, br.Rs2, br.ImmStr = S0, S1, "3f"
		Expect(br.ConvertToAsm()).To(Equal(op("bne") + "s0, s1, 3f"))
	})

	It("should render compressed and operand-less forms", func() {
		mv := NewInstr("c.mv", Arithmetic, FormatCR)
		mv.Rd, mv.Rs2 = A3, A4
		Expect(mv.ConvertToAsm()).To(Equal(op("c.mv") + "a3, a4"))

		Expect(NewInstr("fence", Synch, FormatNone).ConvertToAsm()).To(Equal("fence"))
	})

	It("should append the comment", func() {
		in := NewInstr("addi", Arithmetic, FormatI)
		in.Rd, in.Rs1, in.ImmStr, in.Comment = SP, SP, "-16", "frame"
		Expect(in.ConvertToAsm()).To(Equal(op("addi") + "sp, sp, -16 #frame"))
	})

	It("should render illegal and hint encodings", func() {
		in := NewInstr("c.addi", Arithmetic, FormatCI)
		in.Rd, in.ImmStr, in.IsCompressed = A0, "1", true

		in.IsIllegalInstr = true
		Expect(in.ConvertToAsm()).To(HavePrefix(".2byte 0x0000"))
		Expect(in.ConvertToAsm()).To(ContainSubstring("c.addi"))

		in.IsCompressed = false
		Expect(in.ConvertToAsm()).To(HavePrefix(".4byte 0x00000000"))

		in.IsIllegalInstr, in.IsHintInstr, in.IsCompressed = false, true, true
		Expect(in.ConvertToAsm()).To(HavePrefix(".2byte 0x0005"))
	})

	It("should keep the comment of a corrupted instruction", func() {
		in := NewInstr("c.addi", Arithmetic, FormatCI)
		in.Rd, in.ImmStr, in.IsCompressed, in.Comment = A0, "1", true, "sub_1_stack_p"
		in.IsIllegalInstr = true

		Expect(in.ConvertToAsm()).To(Equal(
			op(".2byte 0x0000") + " #" + op("c.addi") + "a0, 1 sub_1_stack_p"))
	})

	It("should pad to a fixed width", func() {
		Expect(FormatString("1:", LabelStrLen)).To(HaveLen(LabelStrLen))
		Expect(FormatString("1:", LabelStrLen)).To(Equal("1:" + strings.Repeat(" ", LabelStrLen-2)))
		long := strings.Repeat("x", LabelStrLen+3)
		Expect(FormatString(long, LabelStrLen)).To(Equal(long))
	})

	It("should name categories", func() {
		Expect(Branch.String()).To(Equal("BRANCH"))
		Expect(Category(99).String()).To(Equal("Category(99)"))
	})
})

var _ = Describe("Reg", func() {
	It("should parse ABI and numeric names", func() {
		for in, want := range map[string]Reg{
			"zero": Zero, "ra": RA, "x5": T0, "fp": S0, " A0 ": A0, "x31": T6,
		} {
			reg, err := ParseReg(in)
			Expect(err).NotTo(HaveOccurred(), in)
			Expect(reg).To(Equal(want), in)
		}
	})

	It("should reject unknown names", func() {
		for _, in := range []string{"x32", "x05", "foo", ""} {
			_, err := ParseReg(in)
			Expect(err).To(HaveOccurred(), in)
		}
	})

	It("should list every register once", func() {
		regs := AllRegs()
		Expect(regs).To(HaveLen(NumGPR))
		Expect(regs[0]).To(Equal(Zero))
		Expect(regs[31].String()).To(Equal("t6"))
	})
})
