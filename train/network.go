package train

import (
	"context"
	"fmt"
	"sync"

	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// Network is a trained classifier head. It maps one D-dimensional feature
// vector to a two-way probability distribution. The inference graph carries
// the learned weights as fixed values and omits the dropout layer.
type Network struct {
	dims   int
	hidden int

	// The tape machine is not safe for concurrent use.
	mu   sync.Mutex
	x    *gorgonia.Node
	prob *gorgonia.Node
	vm   gorgonia.VM
}

// newNetwork snapshots the learned weights into a fresh inference graph.
// learnables is ordered w0, b0, w1, b1.
func newNetwork(dims, hidden int, learnables gorgonia.Nodes) (*Network, error) {
	g := gorgonia.NewGraph()

	x := gorgonia.NewMatrix(g, tensor.Float32,
		gorgonia.WithShape(1, dims), gorgonia.WithName("x"))

	weights := make([]*gorgonia.Node, len(learnables))
	for i, learned := range learnables {
		dense, ok := learned.Value().(*tensor.Dense)
		if !ok {
			return nil, fmt.Errorf("train: unexpected weight value %T", learned.Value())
		}
		clone, ok := dense.Clone().(*tensor.Dense)
		if !ok {
			return nil, fmt.Errorf("train: cloning weight %q", learned.Name())
		}
		weights[i] = gorgonia.NodeFromAny(g, clone, gorgonia.WithName(learned.Name()))
	}
	w0, b0, w1, b1 := weights[0], weights[1], weights[2], weights[3]

	hiddenOut, err := gorgonia.Mul(x, w0)
	if err != nil {
		return nil, fmt.Errorf("train: building inference graph: %w", err)
	}
	hiddenOut, err = gorgonia.Add(hiddenOut, b0)
	if err != nil {
		return nil, fmt.Errorf("train: building inference graph: %w", err)
	}
	hiddenOut, err = gorgonia.Rectify(hiddenOut)
	if err != nil {
		return nil, fmt.Errorf("train: building inference graph: %w", err)
	}
	logits, err := gorgonia.Mul(hiddenOut, w1)
	if err != nil {
		return nil, fmt.Errorf("train: building inference graph: %w", err)
	}
	logits, err = gorgonia.Add(logits, b1)
	if err != nil {
		return nil, fmt.Errorf("train: building inference graph: %w", err)
	}
	prob, err := gorgonia.SoftMax(logits)
	if err != nil {
		return nil, fmt.Errorf("train: building inference graph: %w", err)
	}

	return &Network{
		dims:   dims,
		hidden: hidden,
		x:      x,
		prob:   prob,
		vm:     gorgonia.NewTapeMachine(g),
	}, nil
}

// Dimensions reports the input vector length the network was trained with.
func (n *Network) Dimensions() int {
	return n.dims
}

// Predict runs one inference and returns the [probA, probB] pair. The pair
// is non-negative and sums to 1 up to floating-point error.
func (n *Network) Predict(ctx context.Context, vector []float32) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(vector) != n.dims {
		return nil, fmt.Errorf("%w: trained with %d, got %d", ErrDimMismatch, n.dims, len(vector))
	}

	backing := make([]float32, n.dims)
	copy(backing, vector)
	xT := tensor.New(tensor.WithShape(1, n.dims), tensor.WithBacking(backing))

	n.mu.Lock()
	defer n.mu.Unlock()
	if err := gorgonia.Let(n.x, xT); err != nil {
		return nil, fmt.Errorf("train: binding inference input: %w", err)
	}
	if err := n.vm.RunAll(); err != nil {
		return nil, fmt.Errorf("train: inference pass: %w", err)
	}
	defer n.vm.Reset()

	data, ok := n.prob.Value().Data().([]float32)
	if !ok || len(data) != NumClasses {
		return nil, fmt.Errorf("train: unexpected inference output %v", n.prob.Value())
	}
	out := make([]float32, NumClasses)
	copy(out, data)
	return out, nil
}

// Close releases the inference machine.
func (n *Network) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.vm.Close()
}
