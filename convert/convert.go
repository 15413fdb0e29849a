package convert

import (
	"fmt"

	"github.com/openpharma/nerpack/mlpackage"
)

// ComputeUnits is the compute-device preference recorded for the host
// runtime.
type ComputeUnits string

const (
	// ComputeUnitsAll prefers specialized accelerator hardware when present,
	// falling back to GPU and CPU.
	ComputeUnitsAll ComputeUnits = "all"
	// ComputeUnitsCPUOnly restricts inference to the CPU.
	ComputeUnitsCPUOnly ComputeUnits = "cpuOnly"
	// ComputeUnitsCPUAndGPU allows CPU and GPU but not the accelerator.
	ComputeUnitsCPUAndGPU ComputeUnits = "cpuAndGPU"
)

// DefaultMinPlatformVersion is the minimum target-platform version declared
// in converted packages.
const DefaultMinPlatformVersion = "18"

// Target declares the deployment target of a conversion.
type Target struct {
	MinPlatformVersion string
	ComputeUnits       ComputeUnits
}

func DefaultTarget() Target {
	return Target{
		MinPlatformVersion: DefaultMinPlatformVersion,
		ComputeUnits:       ComputeUnitsAll,
	}
}

// Convert lowers a traced graph into an in-memory package with the declared
// tensor schemas: two int32 inputs of shape (1, seqLen) named input_ids and
// attention_mask, and one float32 output named logits of shape
// (1, seqLen, numLabels). Operator incompatibilities surface earlier, when
// the graph is loaded and traced; no partial conversion is attempted.
func Convert(traced *TracedGraph, target Target) (*mlpackage.Package, error) {
	if traced == nil || len(traced.OnnxBytes) == 0 {
		return nil, fmt.Errorf("traced graph is empty")
	}
	if traced.NumLabels <= 0 {
		return nil, fmt.Errorf("traced graph declares no labels")
	}
	if traced.SequenceLength <= 0 {
		return nil, fmt.Errorf("traced graph declares no sequence length")
	}
	if target.MinPlatformVersion == "" {
		target.MinPlatformVersion = DefaultMinPlatformVersion
	}
	if target.ComputeUnits == "" {
		target.ComputeUnits = ComputeUnitsAll
	}

	inputShape := []int64{int64(traced.BatchSize), int64(traced.SequenceLength)}
	pkg := mlpackage.New(traced.OnnxBytes)
	// Hosts feed 32-bit integers; the package runtime widens them to the
	// graph's element type.
	pkg.Inputs = []mlpackage.TensorSpec{
		{Name: "input_ids", DType: "int32", Shape: inputShape},
		{Name: "attention_mask", DType: "int32", Shape: inputShape},
	}
	pkg.Outputs = []mlpackage.TensorSpec{
		{Name: "logits", DType: "float32", Shape: traced.LogitsShape},
	}
	pkg.MinPlatformVersion = target.MinPlatformVersion
	pkg.ComputeUnits = string(target.ComputeUnits)
	return pkg, nil
}

// Annotate attaches the descriptive metadata and the per-tensor
// descriptions to a converted package.
func Annotate(pkg *mlpackage.Package, modelID string) {
	pkg.Metadata = mlpackage.Metadata{
		ShortDescription: "Biomedical Named Entity Recognition",
		Author:           modelID + " via Hugging Face",
		License:          "Check original model license",
		Version:          "1.0",
	}
	pkg.SetInputDescription("input_ids", "Tokenized input text (BERT tokens)")
	pkg.SetInputDescription("attention_mask", "Attention mask for input tokens")
	pkg.SetOutputDescription("logits", "Raw logits for each token classification")
}
