package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"riscvdv/pkg/riscvdv"
	"riscvdv/pkg/riscvdv/directed"
	"riscvdv/pkg/riscvdv/randinstr"
)

const (
	appName    = "riscvdv"
	appVersion = riscvdv.Version
)

type negBoolBinding struct {
	target *bool
	neg    *bool
}

func addBoolPair(cmd *cobra.Command, bindings *[]negBoolBinding, target *bool, name string, usage string) {
	neg := new(bool)
	cmd.Flags().BoolVar(target, name, *target, usage)
	cmd.Flags().BoolVar(neg, "no-"+name, false, "disable "+name)
	*bindings = append(*bindings, negBoolBinding{target: target, neg: neg})
}

// Collaborators wires the built-in instruction generator and stack library.
func Collaborators(opts riscvdv.Options, r *riscvdv.Rand) (riscvdv.InstrGenerator, riscvdv.StackInstrLib) {
	return randinstr.New(opts, r), directed.NewStackLib(opts, r)
}

func newLogger(w io.Writer, verbose int, jsonOut bool) *slog.Logger {
	level := slog.LevelWarn
	switch {
	case verbose >= 2:
		level = slog.LevelDebug
	case verbose == 1:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if jsonOut {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseRegList(s string) ([]riscvdv.Reg, error) {
	var regs []riscvdv.Reg
	for _, name := range strings.Split(s, ",") {
		if strings.TrimSpace(name) == "" {
			continue
		}
		reg, err := riscvdv.ParseReg(name)
		if err != nil {
			return nil, err
		}
		regs = append(regs, reg)
	}
	return regs, nil
}

func NewRootCmd() *cobra.Command {
	opts := riscvdv.Defaults()
	seedSet := false
	outputPath := ""
	showVersion := false
	verbose := 0
	logJSON := false
	reservedRegs := ""
	savedRegs := ""
	negBindings := make([]negBoolBinding, 0, 8)

	cmd := &cobra.Command{
		Use:           appName,
		Short:         "Random RISC-V instruction sequence generator",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected arguments: %v", args)
			}

			if showVersion {
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", appName, appVersion)
				return err
			}

			if !seedSet {
				opts.Seed = uint64(time.Now().UnixNano())
			}
			if reservedRegs != "" {
				regs, err := parseRegList(reservedRegs)
				if err != nil {
					return fmt.Errorf("--reserved-regs: %w", err)
				}
				opts.ReservedRegs = regs
			}
			if savedRegs != "" {
				regs, err := parseRegList(savedRegs)
				if err != nil {
					return fmt.Errorf("--saved-regs: %w", err)
				}
				opts.SavedRegs = regs
			}

			log := newLogger(cmd.ErrOrStderr(), verbose, logJSON)
			slog.SetDefault(log)
			log.Info("generating program", "seed", opts.Seed, "instr_cnt", opts.InstrCnt,
				"sub_programs", opts.NumOfSubProgram)

			program, err := riscvdv.Generate(opts, Collaborators, log)
			if err != nil {
				return err
			}

			if outputPath == "" {
				_, err = fmt.Fprint(cmd.OutOrStdout(), program)
				return err
			}
			return os.WriteFile(outputPath, []byte(program), 0o644)
		},
	}

	cmd.SetOut(os.Stdout)
	cmd.SetErr(os.Stderr)

	cmd.Flags().BoolVarP(&showVersion, "version", "v", false, "print version")
	cmd.Flags().CountVarP(&verbose, "verbose", "V", "increase log verbosity (repeatable)")
	cmd.Flags().BoolVar(&logJSON, "log-json", false, "emit logs as JSON")
	cmd.Flags().Uint64VarP(&opts.Seed, "seed", "s", 0, "seed for deterministic generation")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "write generated assembly to file")
	cmd.Flags().StringVar(&opts.CoreSettingPath, "core-setting", opts.CoreSettingPath, "path to the core setting YAML file")
	cmd.Flags().IntVar(&opts.XLEN, "xlen", opts.XLEN, "target register width in bits")

	cmd.Flags().IntVarP(&opts.InstrCnt, "instr-cnt", "n", opts.InstrCnt, "instructions per sequence body")
	cmd.Flags().IntVar(&opts.NumOfSubProgram, "num-of-sub-program", opts.NumOfSubProgram, "number of subprograms called from main")
	cmd.Flags().StringVar(&opts.MainLabel, "main-label", opts.MainLabel, "entry label of the main program")
	cmd.Flags().IntVar(&opts.MinStackLen, "min-stack-len", opts.MinStackLen, "minimum subprogram stack frame in bytes")
	cmd.Flags().IntVar(&opts.MaxStackLen, "max-stack-len", opts.MaxStackLen, "maximum subprogram stack frame in bytes")
	cmd.Flags().IntVar(&opts.MaxBranchStep, "max-branch-step", opts.MaxBranchStep, "maximum forward branch distance in labels")
	cmd.Flags().IntVar(&opts.BranchPoolSize, "branch-pool-size", opts.BranchPoolSize, "number of precomputed branch steps")
	cmd.Flags().IntVar(&opts.IllegalInstrPct, "illegal-instr-pct", opts.IllegalInstrPct, "illegal instruction percentage [0,100]")
	cmd.Flags().IntVar(&opts.HintInstrPct, "hint-instr-pct", opts.HintInstrPct, "hint instruction percentage [0,100]")
	cmd.Flags().StringVar(&reservedRegs, "reserved-regs", "", "comma-separated registers never written (default tp,sp)")
	cmd.Flags().StringVar(&savedRegs, "saved-regs", "", "comma-separated registers saved by subprogram prologues besides ra")

	cmd.Flags().BoolVar(&opts.NoBranchJump, "no-branch-jump", opts.NoBranchJump, "disable branch instructions")
	cmd.Flags().BoolVar(&opts.DisableCompressedInstr, "disable-compressed-instr", opts.DisableCompressedInstr, "disable compressed instructions")
	cmd.Flags().BoolVar(&opts.NoIllegalInstr, "no-illegal-instr", opts.NoIllegalInstr, "never inject illegal instructions")
	cmd.Flags().BoolVar(&opts.NoHintInstr, "no-hint-instr", opts.NoHintInstr, "never inject hint instructions")
	addBoolPair(cmd, &negBindings, &opts.SupportPMP, "support-pmp", "target supports PMP; align subprograms")

	_ = cmd.MarkFlagFilename("output", "S")
	_ = cmd.MarkFlagFilename("core-setting", "yaml", "yml")

	cmd.PreRun = func(cmd *cobra.Command, args []string) {
		seedSet = cmd.Flags().Changed("seed")
		opts.XLENExplicit = cmd.Flags().Changed("xlen")
		opts.SupportPMPExplicit = cmd.Flags().Changed("support-pmp") || cmd.Flags().Changed("no-support-pmp")
		for _, b := range negBindings {
			if *b.neg {
				*b.target = false
			}
		}
	}

	return cmd
}
