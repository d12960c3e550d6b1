// Package main provides the criterion CLI: it lists the registered training
// criteria, checks their gradients against finite differences, minimizes them on
// random inputs and builds word classes for the class-based softmax from text.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/born-ml/criterion/internal/criterion"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

const version = "v0.1.0-dev"

// errFailed reports that a command ran but found problems.
var errFailed = errors.New("check failed")

func usage() {
	out := flag.CommandLine.Output()
	fmt.Fprintf(out, "criterion %s - training criterion nodes\n\n", version)
	fmt.Fprintln(out, "Usage: criterion [klog flags] <command> [flags]")
	fmt.Fprintln(out, "")
	fmt.Fprintln(out, "Commands:")
	fmt.Fprintln(out, "  version    Show version")
	fmt.Fprintln(out, "  ops        List criterion operations and their arity")
	fmt.Fprintln(out, "  gradcheck  Compare analytic and numeric gradients on random inputs")
	fmt.Fprintln(out, "  classes    Partition the vocabulary of a text into word classes")
	fmt.Fprintln(out, "  train      Minimize a criterion on random inputs with SGD or Adam")
	fmt.Fprintln(out, "")
	fmt.Fprintln(out, "Flags:")
	flag.PrintDefaults()
}

func main() {
	klog.InitFlags(nil)
	flag.Usage = usage
	flag.Parse()
	if flag.NArg() == 0 {
		usage()
		os.Exit(2)
	}

	cmd, args := flag.Arg(0), flag.Args()[1:]
	var err error
	switch cmd {
	case "version":
		fmt.Printf("criterion %s\n", version)
	case "ops":
		err = runOps(os.Stdout)
	case "gradcheck":
		err = runGradcheck(args, os.Stdout)
	case "classes":
		err = runClasses(args, os.Stdin, os.Stdout)
	case "train":
		err = runTrain(args, os.Stdout)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", cmd)
		usage()
		os.Exit(2)
	}
	klog.Flush()
	if errors.Is(err, errFailed) {
		os.Exit(1)
	}
	if err != nil {
		klog.Fatalf("%s failed: %+v", cmd, err)
	}
}

func runOps(out io.Writer) error {
	for _, op := range criterion.Operations() {
		if _, err := fmt.Fprintf(out, "%-36s %d inputs\n", op, criterion.Arity(op)); err != nil {
			return err
		}
	}
	return nil
}
