package main

import (
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/born-ml/criterion/internal/backend/webgpu"
	"github.com/born-ml/criterion/internal/criterion"
	"github.com/born-ml/criterion/internal/gradcheck"
	"github.com/born-ml/criterion/internal/layout"
	"github.com/born-ml/criterion/internal/synth"
	"github.com/born-ml/criterion/internal/tensor"
	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

type gradcheckFlags struct {
	op     string
	cols   int
	seqs   string
	seed   uint64
	device string
	cfg    gradcheck.Config
}

func parseGradcheckFlags(args []string) (*gradcheckFlags, error) {
	f := &gradcheckFlags{cfg: gradcheck.DefaultConfig()}
	fs := flag.NewFlagSet("gradcheck", flag.ContinueOnError)
	fs.StringVar(&f.op, "op", "all", "Operation to check, or \"all\".")
	fs.IntVar(&f.cols, "cols", 4, "Minibatch columns when -seqs is empty.")
	fs.StringVar(&f.seqs, "seqs", "", "Comma-separated sequence lengths packed into the minibatch, e.g. \"3,2\".")
	fs.Uint64Var(&f.seed, "seed", 1, "Random seed of the generated inputs.")
	fs.StringVar(&f.device, "device", "cpu", "Placement of scratch buffers: cpu or webgpu.")
	fs.Float64Var(&f.cfg.Step, "step", f.cfg.Step, "Finite-difference step.")
	fs.Float64Var(&f.cfg.Tolerance, "tol", f.cfg.Tolerance, "Largest accepted error.")
	fs.Float64Var(&f.cfg.Seed, "grad", f.cfg.Seed, "Upstream gradient seeding Backward.")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return f, nil
}

// parseLengths turns "3,2" into a packed layout; empty means dense.
func parseLengths(s string) (*layout.MBLayout, error) {
	if s == "" {
		return nil, nil
	}
	var lengths []int
	for _, field := range strings.Split(s, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(field))
		if err != nil || n < 0 {
			return nil, errors.Errorf("invalid sequence length %q", field)
		}
		lengths = append(lengths, n)
	}
	return layout.FromLengths(lengths...), nil
}

func runGradcheck(args []string, out io.Writer) error {
	f, err := parseGradcheckFlags(args)
	if err != nil {
		return err
	}
	l, err := parseLengths(f.seqs)
	if err != nil {
		return err
	}

	var opts []criterion.Option
	switch f.device {
	case "cpu":
	case "webgpu":
		store, err := webgpu.Register()
		if err != nil {
			klog.Warningf("gradcheck: %v; using CPU", err)
			break
		}
		defer store.Close()
		defer tensor.UnregisterStore(tensor.WebGPU)
		defer func() { klog.Infof("%s: %s", store.Name(), store.Stats()) }()
		opts = append(opts, criterion.WithDevice(tensor.WebGPU))
	default:
		return errors.Errorf("unknown device %q", f.device)
	}

	ops := criterion.Operations()
	if f.op != "all" {
		if criterion.Arity(f.op) == 0 {
			return errors.Errorf("unknown operation %q", f.op)
		}
		ops = []string{f.op}
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "OPERATION\tINPUT\tELEMENTS\tMAX ERROR\tRESULT")
	failed := 0
	for _, op := range ops {
		p, err := synth.Build(op, synth.Config{Cols: f.cols, Layout: l, Seed: f.seed, Options: opts})
		if errors.Is(err, criterion.ErrInvalidArgument) && f.op == "all" {
			fmt.Fprintf(w, "%s\t-\t-\t-\tskipped: %v\n", op, err)
			continue
		}
		if err != nil {
			return err
		}
		if len(p.Checked) == 0 {
			fmt.Fprintf(w, "%s\t-\t-\t-\tno differentiable inputs\n", op)
			continue
		}
		results, err := gradcheck.Check(p.Criterion, p.Checked, f.cfg)
		if err != nil {
			return err
		}
		for _, r := range results {
			status := "ok"
			if !r.Passed {
				status = fmt.Sprintf("FAIL at element %d", r.Worst)
				failed++
			}
			fmt.Fprintf(w, "%s\t%d (%s)\t%s\t%.2e\t%s\n", op, r.Input, r.Node, humanize.Comma(int64(r.Elements)), r.MaxError, status)
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if failed > 0 {
		return errors.Wrapf(errFailed, "%d gradients outside tolerance %g", failed, f.cfg.Tolerance)
	}
	return nil
}
