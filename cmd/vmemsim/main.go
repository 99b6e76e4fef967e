// Command vmemsim runs an access trace against a simulated virtual memory
// and prints the results of the reads along with paging statistics.
//
// A trace is a text file with one access per line, either "r <addr>" or
// "w <addr> <value>". Blank lines and lines starting with '#' are skipped.
package main

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/NebulousLabs/Sia/build"
	"github.com/go-logr/stdr"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ilanvys/vmem"
	"github.com/ilanvys/vmem/physical"
)

var (
	configPath string
	swapPath   string
	verbosity  int

	offsetWidth uint64
	vaWidth     uint64
	numFrames   uint64
)

func main() {
	cmd := &cobra.Command{
		Use:   "vmemsim [trace file]",
		Short: "Run an access trace against a simulated virtual memory",
		Long: "vmemsim demand-pages a virtual address space into a small pool of\n" +
			"physical frames and reports how the trace behaved. The trace is read\n" +
			"from the given file, or from stdin when no file is given.",
		Args: cobra.MaximumNArgs(1),
		RunE: run,
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "YAML file with the memory geometry")
	cmd.Flags().StringVarP(&swapPath, "swap-file", "s", "", "back the swap with a file instead of memory")
	cmd.Flags().CountVarP(&verbosity, "verbose", "v", "log paging events")
	cmd.Flags().Uint64Var(&offsetWidth, "offset-width", vmem.DefaultGeometry.OffsetWidth, "bits per table level")
	cmd.Flags().Uint64Var(&vaWidth, "address-width", vmem.DefaultGeometry.VirtualAddressWidth, "bits in a virtual address")
	cmd.Flags().Uint64Var(&numFrames, "frames", vmem.DefaultGeometry.NumFrames, "number of physical frames")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadGeometry builds the geometry from the config file if one was given,
// otherwise from the flags
func loadGeometry() (vmem.Geometry, error) {
	geo := vmem.Geometry{
		OffsetWidth:         offsetWidth,
		VirtualAddressWidth: vaWidth,
		NumFrames:           numFrames,
	}
	if configPath == "" {
		return geo, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return geo, build.ExtendErr("failed to read config file", err)
	}
	if err := yaml.Unmarshal(data, &geo); err != nil {
		return geo, build.ExtendErr("failed to parse config file", err)
	}
	return geo, nil
}

func run(cmd *cobra.Command, args []string) error {
	geo, err := loadGeometry()
	if err != nil {
		return err
	}

	// Assemble the physical memory, optionally with a file-backed swap
	var opts []physical.Option
	if swapPath != "" {
		swap, err := physical.NewFileSwap(swapPath, geo)
		if err != nil {
			return build.ExtendErr("failed to open swap file", err)
		}
		opts = append(opts, physical.WithSwapStore(swap))
	}
	mem, err := physical.New(geo, opts...)
	if err != nil {
		return err
	}
	defer mem.Close()

	stdr.SetVerbosity(verbosity)
	logger := stdr.New(log.New(os.Stderr, "", log.LstdFlags))
	vm, err := vmem.New(mem, geo, vmem.WithLogger(logger))
	if err != nil {
		return err
	}

	// Open the trace
	trace := io.Reader(os.Stdin)
	if len(args) == 1 {
		file, err := os.Open(args[0])
		if err != nil {
			return build.ExtendErr("failed to open trace file", err)
		}
		defer file.Close()
		trace = file
	}

	if err := runTrace(cmd.OutOrStdout(), vm, trace); err != nil {
		return err
	}

	stats := mem.Stats()
	fmt.Fprintf(cmd.OutOrStdout(), "reads=%v writes=%v evictions=%v restores=%v\n",
		stats.Reads, stats.Writes, stats.Evictions, stats.Restores)
	return nil
}

// runTrace executes the accesses of a trace in order, printing the result of
// every read
func runTrace(out io.Writer, vm *vmem.VM, trace io.Reader) error {
	scanner := bufio.NewScanner(trace)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if err := runAccess(out, vm, line); err != nil {
			return build.ExtendErr(fmt.Sprintf("trace line %v", lineNum), err)
		}
	}
	return scanner.Err()
}

// runAccess parses and executes a single trace line
func runAccess(out io.Writer, vm *vmem.VM, line string) error {
	fields := strings.Fields(line)
	switch {
	case fields[0] == "r" && len(fields) == 2:
		addr, err := strconv.ParseUint(fields[1], 0, 64)
		if err != nil {
			return err
		}
		val, err := vm.Read(addr)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "r %v = %v\n", addr, val)
		return nil

	case fields[0] == "w" && len(fields) == 3:
		addr, err := strconv.ParseUint(fields[1], 0, 64)
		if err != nil {
			return err
		}
		val, err := strconv.ParseInt(fields[2], 0, 64)
		if err != nil {
			return err
		}
		return vm.Write(addr, vmem.Word(val))

	default:
		return fmt.Errorf("malformed access %q", line)
	}
}
