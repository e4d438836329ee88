// Package model holds the federated-learning artifact types exchanged with a
// grid server. Their internal structure is owned by the server side; this
// client only needs them to round-trip through a codec.
package model

// Cycle decision statuses returned by federated/cycle-request.
const (
	CycleStatusAccepted = "accepted"
	CycleStatusRejected = "rejected"
)

// Formats a plan's operations can be requested in.
const (
	PlanTypeList        = "list"
	PlanTypeTorchscript = "torchscript"
)

// Tensor is one dense parameter block.
type Tensor struct {
	Shape  []int64   `json:"shape"`
	Values []float64 `json:"values"`
}

// State is a set of trainable parameters: the hosted model, the fetched
// model, and the reported diff all take this shape.
type State struct {
	Tensors []Tensor `json:"tensors"`
}

// Plan is a unit of computation the worker runs during a cycle, delivered
// either as an operation list or as a torchscript blob.
type Plan struct {
	Name        string   `json:"name"`
	Operations  []string `json:"operations,omitempty"`
	Torchscript []byte   `json:"torchscript,omitempty"`
}

// Protocol coordinates several workers over a shared computation.
type Protocol struct {
	Name  string   `json:"name"`
	Steps []string `json:"steps,omitempty"`
}

// ClientConfig and ServerConfig are cycle configuration documents owned by
// the server; they pass through the wire as plain JSON, not codec payloads.
type ClientConfig map[string]any

type ServerConfig map[string]any
