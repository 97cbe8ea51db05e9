package riscvdv

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Options", func() {
	var opts Options

	BeforeEach(func() {
		opts = Defaults()
		opts.CoreSettingPath = filepath.Join(GinkgoT().TempDir(), "missing.yaml")
	})

	writeCoreSetting := func(body string) string {
		path := filepath.Join(GinkgoT().TempDir(), "core_setting.yaml")
		Expect(os.WriteFile(path, []byte(body), 0o644)).To(Succeed())
		return path
	}

	It("should accept the defaults", func() {
		resolved, err := opts.Resolve()
		Expect(err).NotTo(HaveOccurred())
		Expect(resolved.XLEN).To(Equal(32))
		Expect(resolved.ReservedRegs).To(ConsistOf(TP, SP))
		Expect(resolved.IsReserved(SP)).To(BeTrue())
		Expect(resolved.IsReserved(A0)).To(BeFalse())
		Expect(resolved.XLENBytes()).To(Equal(4))
	})

	DescribeTable("should reject invalid settings",
		func(mutate func(*Options), msg string) {
			mutate(&opts)
			_, err := opts.Resolve()
			Expect(err).To(MatchError(ContainSubstring(msg)))
		},
		Entry("xlen", func(o *Options) { o.XLEN = 16 }, "xlen must be 32 or 64"),
		Entry("instruction count", func(o *Options) { o.InstrCnt = 0 }, "instr-cnt"),
		Entry("subprogram count", func(o *Options) { o.NumOfSubProgram = -1 }, "num-of-sub-program"),
		Entry("main label", func(o *Options) { o.MainLabel = " " }, "main-label"),
		Entry("branch step", func(o *Options) { o.MaxBranchStep = 0 }, "max-branch-step"),
		Entry("branch pool", func(o *Options) { o.BranchPoolSize = 0 }, "branch-pool-size"),
		Entry("stack bound", func(o *Options) { o.MaxStackLen = -4 }, "stack length"),
		Entry("illegal pct", func(o *Options) { o.IllegalInstrPct = 101 }, "illegal-instr-pct"),
		Entry("hint pct", func(o *Options) { o.HintInstrPct = -1 }, "hint-instr-pct"),
		Entry("return address", func(o *Options) { o.RA = Zero }, "zero register"),
	)

	It("should zero percentages disabled by switches", func() {
		opts.IllegalInstrPct, opts.HintInstrPct = 50, 50
		opts.NoIllegalInstr, opts.NoHintInstr = true, true
		resolved, err := opts.Resolve()
		Expect(err).NotTo(HaveOccurred())
		Expect(resolved.IllegalInstrPct).To(BeZero())
		Expect(resolved.HintInstrPct).To(BeZero())
	})

	Describe("core setting file", func() {
		It("should load the target description", func() {
			opts.CoreSettingPath = writeCoreSetting("xlen: 64\nsupport_pmp: true\nreserved_regs: [gp, x6]\n")

			resolved, err := opts.Resolve()

			Expect(err).NotTo(HaveOccurred())
			Expect(resolved.XLEN).To(Equal(64))
			Expect(resolved.SupportPMP).To(BeTrue())
			Expect(resolved.ReservedRegs).To(ConsistOf(TP, SP, GP, T1))
		})

		It("should let explicit flags win", func() {
			opts.CoreSettingPath = writeCoreSetting("xlen: 64\nsupport_pmp: true\n")
			opts.XLENExplicit, opts.SupportPMPExplicit = true, true

			resolved, err := opts.Resolve()

			Expect(err).NotTo(HaveOccurred())
			Expect(resolved.XLEN).To(Equal(32))
			Expect(resolved.SupportPMP).To(BeFalse())
		})

		It("should not duplicate reserved registers", func() {
			opts.CoreSettingPath = writeCoreSetting("xlen: 32\nreserved_regs: [sp, tp]\n")
			resolved, err := opts.Resolve()
			Expect(err).NotTo(HaveOccurred())
			Expect(resolved.ReservedRegs).To(HaveLen(2))
		})

		It("should require xlen", func() {
			opts.CoreSettingPath = writeCoreSetting("support_pmp: false\n")
			_, err := opts.Resolve()
			Expect(err).To(MatchError(ContainSubstring("please specify xlen")))
		})

		It("should reject unknown registers", func() {
			opts.CoreSettingPath = writeCoreSetting("xlen: 32\nreserved_regs: [x32]\n")
			_, err := opts.Resolve()
			Expect(err).To(MatchError(ContainSubstring(`unknown register "x32"`)))
		})

		It("should reject malformed files", func() {
			opts.CoreSettingPath = writeCoreSetting("xlen: [\n")
			_, err := opts.Resolve()
			Expect(err).To(MatchError(ContainSubstring("invalid core setting")))
		})
	})
})
