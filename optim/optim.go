// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package optim provides optimizers that minimize a criterion by updating the
// values of its input nodes from the gradients Backward accumulates.
//
// # Basic Usage
//
//	logits := criterion.NewComputed("z", "Times", z, l)
//	ce := criterion.NewCrossEntropyWithSoftmax("ce", labels, logits)
//	opt := optim.NewAdam([]criterion.Node{logits}, optim.AdamConfig{LR: 0.01})
//
//	for range steps {
//	    opt.ZeroGrad()
//	    if err := ce.Forward(); err != nil {
//	        return err
//	    }
//	    ce.FillGradient(1)
//	    if err := ce.Backward(1); err != nil {
//	        return err
//	    }
//	    opt.Step()
//	}
//
// # Optimizers
//
// SGD updates param -= lr * velocity, where velocity accumulates gradients
// with the configured momentum. Adam keeps bias-corrected first and second
// moment estimates per element.
package optim

import (
	"github.com/born-ml/criterion/internal/node"
	"github.com/born-ml/criterion/internal/optim"
)

// Optimizer interface defines the common interface for all optimizers.
type Optimizer = optim.Optimizer

// SGD represents the SGD optimizer with optional momentum.
type SGD = optim.SGD

// SGDConfig contains configuration for SGD optimizer.
type SGDConfig = optim.SGDConfig

// NewSGD creates a new SGD optimizer over params.
func NewSGD(params []node.Node, config SGDConfig) *SGD {
	return optim.NewSGD(params, config)
}

// Adam represents the Adam optimizer.
type Adam = optim.Adam

// AdamConfig contains configuration for Adam optimizer.
type AdamConfig = optim.AdamConfig

// NewAdam creates a new Adam optimizer with bias correction.
func NewAdam(params []node.Node, config AdamConfig) *Adam {
	return optim.NewAdam(params, config)
}
