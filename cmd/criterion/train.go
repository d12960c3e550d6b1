package main

import (
	"flag"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/born-ml/criterion/internal/criterion"
	"github.com/born-ml/criterion/internal/node"
	"github.com/born-ml/criterion/internal/optim"
	"github.com/born-ml/criterion/internal/synth"
	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

type trainFlags struct {
	op        string
	cols      int
	seed      uint64
	steps     int
	optimizer string
	lr        float64
	momentum  float64
	every     int
}

func parseTrainFlags(args []string) (*trainFlags, error) {
	f := &trainFlags{}
	fs := flag.NewFlagSet("train", flag.ContinueOnError)
	fs.StringVar(&f.op, "op", criterion.OpCrossEntropyWithSoftmax, "Operation to minimize.")
	fs.IntVar(&f.cols, "cols", 8, "Minibatch columns.")
	fs.Uint64Var(&f.seed, "seed", 1, "Random seed of the generated inputs.")
	fs.IntVar(&f.steps, "steps", 100, "Optimizer steps.")
	fs.StringVar(&f.optimizer, "optimizer", "adam", "Optimizer: sgd or adam.")
	fs.Float64Var(&f.lr, "lr", 0.05, "Learning rate.")
	fs.Float64Var(&f.momentum, "momentum", 0, "SGD momentum.")
	fs.IntVar(&f.every, "every", 0, "Print the loss every N steps; 0 prints only the first and last.")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if f.steps <= 0 {
		return nil, errors.Errorf("need a positive number of steps, got %d", f.steps)
	}
	return f, nil
}

// trainable returns the checked inputs that are not data, i.e. what an
// optimizer may move.
func trainable(c criterion.Criterion, checked []int) []int {
	var idx []int
	for _, i := range checked {
		if !node.IsInputValue(c.Inputs()[i]) {
			idx = append(idx, i)
		}
	}
	return idx
}

// runTrain minimizes a generated criterion over its non-data inputs.
func runTrain(args []string, out io.Writer) error {
	f, err := parseTrainFlags(args)
	if err != nil {
		return err
	}
	if criterion.Arity(f.op) == 0 {
		return errors.Errorf("unknown operation %q", f.op)
	}
	p, err := synth.Build(f.op, synth.Config{Cols: f.cols, Seed: f.seed})
	if err != nil {
		return err
	}
	c := p.Criterion
	idx := trainable(c, p.Checked)
	if len(idx) == 0 {
		return errors.Errorf("%s has no trainable inputs", f.op)
	}
	params := make([]node.Node, len(idx))
	for k, i := range idx {
		params[k] = c.Inputs()[i]
	}

	var opt optim.Optimizer
	switch f.optimizer {
	case "sgd":
		opt = optim.NewSGD(params, optim.SGDConfig{LR: f.lr, Momentum: f.momentum})
	case "adam":
		opt = optim.NewAdam(params, optim.AdamConfig{LR: f.lr})
	default:
		return errors.Errorf("unknown optimizer %q", f.optimizer)
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "STEP\tLOSS")
	var first, last float64
	for step := 0; step <= f.steps; step++ {
		if err := c.Forward(); err != nil {
			return err
		}
		last = c.Value().Get00()
		if step == 0 {
			first = last
		}
		if step == 0 || step == f.steps || (f.every > 0 && step%f.every == 0) {
			fmt.Fprintf(w, "%s\t%.6g\n", humanize.Comma(int64(step)), last)
		}
		if c.Value().HasNaN() {
			_ = w.Flush()
			return errors.Wrapf(errFailed, "loss diverged at step %d", step)
		}
		if step == f.steps {
			break
		}
		opt.ZeroGrad()
		c.FillGradient(1)
		for _, i := range idx {
			if err := c.Backward(i); err != nil {
				return err
			}
		}
		opt.Step()
	}
	if err := w.Flush(); err != nil {
		return err
	}
	klog.V(1).Infof("train: %s with %s, lr %g, loss %g -> %g", f.op, f.optimizer, opt.LR(), first, last)
	fmt.Fprintf(out, "\n%s: loss %.6g -> %.6g over %s steps\n", f.op, first, last, humanize.Comma(int64(f.steps)))
	if last >= first {
		return errors.Wrap(errFailed, "loss did not decrease")
	}
	return nil
}
