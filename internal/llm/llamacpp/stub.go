//go:build !llama

// Package llamacpp is the in-process cgo backend. This file is the no-CGO
// stub compiled when the 'llama' build tag is not set, keeping default
// builds and CI CGO-free: the factory registers but refuses to construct.
package llamacpp

import "inferd/internal/llm"

// Name is the registry key for this backend.
const Name = "llamacpp"

func init() {
	llm.Register(Name, func(llm.Options) (llm.Backend, error) {
		return nil, llm.ErrUnavailable("llamacpp backend not built (missing 'llama' build tag)")
	})
}
