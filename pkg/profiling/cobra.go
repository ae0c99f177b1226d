package profiling

import (
	"fmt"
	"os"
	"runtime"
	"runtime/pprof"

	"github.com/spf13/cobra"
)

// CobraProfiler wires profiling flags into a command tree. Register it on
// the root command; the hooks run for whichever subcommand executes.
type CobraProfiler struct {
	cpuPath string
	memPath string
	timing  bool
	cpuFile *os.File
}

func NewCobraProfiler() *CobraProfiler {
	return &CobraProfiler{}
}

// AddFlags registers the hidden profiling flags on cmd.
func (p *CobraProfiler) AddFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.StringVar(&p.cpuPath, "cpu-profile", "", "Write a CPU profile to this file")
	flags.StringVar(&p.memPath, "mem-profile", "", "Write a heap profile to this file on exit")
	flags.BoolVar(&p.timing, "timing", false, "Print a timing summary on exit")
	_ = flags.MarkHidden("cpu-profile")
	_ = flags.MarkHidden("mem-profile")
	_ = flags.MarkHidden("timing")
}

// PreRun starts capture. Use as the root command's PersistentPreRunE.
func (p *CobraProfiler) PreRun(cmd *cobra.Command, args []string) error {
	if p.timing {
		Enable()
	}
	if p.cpuPath != "" {
		f, err := os.Create(p.cpuPath)
		if err != nil {
			return fmt.Errorf("failed to create CPU profile: %w", err)
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			f.Close()
			return fmt.Errorf("failed to start CPU profile: %w", err)
		}
		p.cpuFile = f
	}
	return nil
}

// PostRun finalizes capture. Use as the root command's PersistentPostRun.
func (p *CobraProfiler) PostRun(cmd *cobra.Command, args []string) {
	if p.cpuFile != nil {
		pprof.StopCPUProfile()
		p.cpuFile.Close()
		fmt.Fprintf(os.Stderr, "CPU profile written to %s\n", p.cpuPath)
	}

	if p.memPath != "" {
		f, err := os.Create(p.memPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to create heap profile: %v\n", err)
		} else {
			runtime.GC()
			if err := pprof.WriteHeapProfile(f); err != nil {
				fmt.Fprintf(os.Stderr, "failed to write heap profile: %v\n", err)
			} else {
				fmt.Fprintf(os.Stderr, "Heap profile written to %s\n", p.memPath)
			}
			f.Close()
		}
	}

	if p.timing {
		Summarize(os.Stderr)
	}
}
