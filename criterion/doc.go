// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package criterion provides the public API for training-criterion nodes.
//
// A criterion consumes predictions and labels from a computation graph and
// reduces them to a scalar loss, then propagates the loss gradient back into
// its inputs. Supported criteria:
//   - SquareError, CrossEntropy, CrossEntropyWithSoftmax
//   - L1Reg, L2Reg: matrix regularizers
//   - NCE: noise-contrastive estimation with softmax evaluation
//   - ClassBasedCrossEntropyWithSoftmax: two-level class factorized softmax
//   - CRF: linear-chain conditional random field
//   - SequenceWithSoftmax: lattice sequence training
//   - DummyCriterion: loss and derivative computed outside the graph
//
// Example:
//
//	import "github.com/born-ml/criterion/criterion"
//
//	mb := criterion.FromLengths(3, 2)
//	labels := criterion.NewInput("labels", criterion.FromColumns(oneHot), mb)
//	logits := criterion.NewComputed("z", "Times", criterion.FromColumns(z), mb)
//
//	ce := criterion.NewCrossEntropyWithSoftmax("ce", labels, logits)
//	if err := ce.Validate(true); err != nil {
//	    log.Fatal(err)
//	}
//	if err := ce.Forward(); err != nil {
//	    log.Fatal(err)
//	}
//	ce.FillGradient(1)
//	if err := ce.Backward(1); err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(ce.Value().Get00(), logits.Gradient())
package criterion
