// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package webgpu places criterion scratch buffers on a GPU through WebGPU.
//
// Host memory stays authoritative: buffers moved to the WebGPU device keep a
// float32 mirror on the GPU that is uploaded on placement and on Sync.
//
// Example:
//
//	store, err := webgpu.Register()
//	if err != nil {
//	    log.Printf("no GPU: %v", err)
//	} else {
//	    defer store.Close()
//	    opts = append(opts, criterion.WithDevice(criterion.WebGPU))
//	}
//
// Adapters are only available on Windows builds; elsewhere Register returns
// ErrUnavailable.
package webgpu

import (
	internalwebgpu "github.com/born-ml/criterion/internal/backend/webgpu"
)

// Store owns the WebGPU device and the pool of mirror buffers.
type Store = internalwebgpu.Store

// PoolStats reports buffer pool activity.
type PoolStats = internalwebgpu.PoolStats

// ErrUnavailable is returned when no WebGPU adapter can be opened.
var ErrUnavailable = internalwebgpu.ErrUnavailable

// Register opens the WebGPU device and makes it the store of criterion.WebGPU.
func Register() (*Store, error) {
	return internalwebgpu.Register()
}

// IsAvailable reports whether a WebGPU adapter can be opened.
func IsAvailable() bool {
	return internalwebgpu.IsAvailable()
}
