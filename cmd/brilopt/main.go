// Command brilopt loads a program (parsing .bril source through an
// external bril2json process, or reading .json directly), runs the
// configured subset of passes, and either emits the result (through
// bril2txt for a .bril output path, or directly for .json) or reports a
// formatted diagnostic and exits 1.
package main

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"brilmid/internal/diag"
	"brilmid/internal/driver"
	"brilmid/internal/driverlog"
	"brilmid/internal/envelope"
)

var (
	flagDCE      bool
	flagLVN      bool
	flagLoops    bool
	flagKeepSSA  bool
	flagLogLevel string
	flagJobs     int
)

var rootCmd = &cobra.Command{
	Use:   "brilopt <input> [output]",
	Short: "Optimizing mid-end for a three-address IR",
	Long: `brilopt lowers a parsed Bril-shaped program to basic blocks, computes
dominance, converts each function to pruned SSA, runs the requested
dataflow optimizations, and lowers back out of SSA for emission.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runRoot,
}

func init() {
	rootCmd.Flags().BoolVar(&flagDCE, "dce", false, "run dead-code elimination")
	rootCmd.Flags().BoolVar(&flagLVN, "lvn", false, "run global value numbering / local value numbering")
	rootCmd.Flags().BoolVar(&flagLoops, "loops", false, "run loop-invariant code motion")
	rootCmd.Flags().BoolVarP(&flagKeepSSA, "ssa", "S", false, "keep SSA form on output instead of lowering out of it")
	rootCmd.Flags().StringVar(&flagLogLevel, "log-level", "warn", "log level: error|warn|info|debug|trace")
	rootCmd.Flags().IntVar(&flagJobs, "jobs", 1, "process functions across this many workers (1 = sequential)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runRoot(cmd *cobra.Command, args []string) error {
	level, ok := driverlog.ParseLevel(flagLogLevel)
	if !ok {
		fmt.Fprintf(os.Stderr, "brilopt: unknown --log-level %q\n", flagLogLevel)
		os.Exit(1)
	}
	log := driverlog.New(level)

	inputPath := args[0]
	var outputPath string
	if len(args) == 2 {
		outputPath = args[1]
	}

	data, err := loadJSON(inputPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	prog, err := envelope.Decode(data)
	if err != nil {
		reportAndExit(inputPath, data, err)
	}

	opts := driver.Options{
		DCE:         flagDCE,
		LVN:         flagLVN,
		Loops:       flagLoops,
		PreserveSSA: flagKeepSSA,
		Repeat:      true,
		Log:         log,
	}

	log.Debugf("running pipeline over %d function(s) with %d worker(s)", len(prog.Functions), flagJobs)
	if flagJobs > 1 {
		err = driver.RunConcurrent(prog, opts, flagJobs)
	} else {
		err = driver.Run(prog, opts)
	}
	if err != nil {
		reportAndExit(inputPath, data, err)
	}

	out, err := envelope.Encode(prog)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if outputPath == "" {
		fmt.Println(string(out))
		return nil
	}
	return writeOutput(outputPath, out)
}

// loadJSON reads inputPath, converting through the external bril2json
// process first when the extension is .bril.
func loadJSON(inputPath string) ([]byte, error) {
	if strings.EqualFold(filepath.Ext(inputPath), ".bril") {
		return pipeThroughSubprocess("bril2json", inputPath)
	}
	data, err := os.ReadFile(inputPath)
	if err != nil {
		return nil, fmt.Errorf("brilopt: reading %s: %w", inputPath, err)
	}
	return data, nil
}

// writeOutput emits data to outputPath directly, or through the external
// bril2txt process first when the extension is .bril.
func writeOutput(outputPath string, data []byte) error {
	if strings.EqualFold(filepath.Ext(outputPath), ".bril") {
		text, err := pipeThroughSubprocessStdin("bril2txt", data)
		if err != nil {
			return err
		}
		data = text
	}
	if err := os.WriteFile(outputPath, data, 0o644); err != nil {
		return fmt.Errorf("brilopt: writing %s: %w", outputPath, err)
	}
	return nil
}

func pipeThroughSubprocess(name, inputPath string) ([]byte, error) {
	f, err := os.Open(inputPath)
	if err != nil {
		return nil, fmt.Errorf("brilopt: reading %s: %w", inputPath, err)
	}
	defer f.Close()

	c := exec.Command(name)
	c.Stdin = f
	c.Stderr = os.Stderr
	out, err := c.Output()
	if err != nil {
		return nil, fmt.Errorf("brilopt: running %s on %s: %w", name, inputPath, err)
	}
	return out, nil
}

func pipeThroughSubprocessStdin(name string, input []byte) ([]byte, error) {
	c := exec.Command(name)
	c.Stdin = strings.NewReader(string(input))
	c.Stderr = os.Stderr
	out, err := c.Output()
	if err != nil {
		return nil, fmt.Errorf("brilopt: running %s: %w", name, err)
	}
	return out, nil
}

// reportAndExit formats err as a diag.Error snippet against the original
// source (if the error carries a position) and exits 1.
func reportAndExit(inputPath string, data []byte, err error) {
	var derr *diag.Error
	if !errors.As(err, &derr) {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	r := diag.NewReporter(inputPath, string(data))
	fmt.Fprint(os.Stderr, r.Format(derr))
	os.Exit(1)
}
