// Package train fits the classifier head: a small feed-forward network over
// the frozen embedding vectors. All tensor algebra, autodiff and optimizer
// mechanics are gorgonia's; this package only assembles the graph and runs
// the epoch loop.
package train

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

const (
	// MinTotalSamples is the minimum combined sample count required before
	// training may start.
	MinTotalSamples = 10

	// NumClasses is fixed: the session teaches a binary classifier.
	NumClasses = 2

	DefaultHiddenUnits = 128
	DefaultDropoutRate = 0.25
	DefaultEpochs      = 25
	DefaultLearnRate   = 1e-4
)

// ErrDimMismatch is returned when a vector's length disagrees with the
// dimensionality the network was trained with.
var ErrDimMismatch = errors.New("train: vector dimension mismatch")

// ErrInterrupted is returned when the context is canceled mid-training.
// Training is not resumable; no usable model remains.
var ErrInterrupted = errors.New("train: training interrupted")

// InsufficientDataError reports a training request with too few samples. The
// request is rejected before any state changes.
type InsufficientDataError struct {
	Have int
	Need int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("train: need at least %d samples, have %d", e.Need, e.Have)
}

// EpochUpdate is the per-epoch progress notification: the only observable
// side channel while training runs.
type EpochUpdate struct {
	Epoch    int // 1-based
	Loss     float32
	Accuracy float32
}

// EpochFunc receives one EpochUpdate per completed epoch, in order.
type EpochFunc func(EpochUpdate)

// Config holds the trainer hyperparameters.
type Config struct {
	HiddenUnits int
	DropoutRate float64
	Epochs      int
	LearnRate   float64

	// Seed makes the per-epoch shuffle reproducible. Zero seeds from the
	// clock.
	Seed int64
}

func (c *Config) applyDefaults() {
	if c.HiddenUnits == 0 {
		c.HiddenUnits = DefaultHiddenUnits
	}
	if c.DropoutRate == 0 {
		c.DropoutRate = DefaultDropoutRate
	}
	if c.Epochs == 0 {
		c.Epochs = DefaultEpochs
	}
	if c.LearnRate == 0 {
		c.LearnRate = DefaultLearnRate
	}
	if c.Seed == 0 {
		c.Seed = time.Now().UnixNano()
	}
}

// Trainer fits a network on two buckets of feature vectors.
type Trainer struct {
	conf Config
	rng  *rand.Rand
}

// NewTrainer builds a trainer with conf, filling unset fields with defaults.
func NewTrainer(conf Config) *Trainer {
	conf.applyDefaults()
	return &Trainer{
		conf: conf,
		rng:  rand.New(rand.NewSource(conf.Seed)),
	}
}

// Train fits the classifier head on the given class buckets. Labels are
// implicit: every vector in classA is [1,0], every vector in classB is
// [0,1]. onEpoch (optional) is called once per epoch. Train always runs the
// full configured epoch count; a canceled context aborts with ErrInterrupted
// and no usable model.
func (t *Trainer) Train(ctx context.Context, classA, classB [][]float32, onEpoch EpochFunc) (*Network, error) {
	total := len(classA) + len(classB)
	if total < MinTotalSamples {
		return nil, &InsufficientDataError{Have: total, Need: MinTotalSamples}
	}

	dims, err := checkDims(classA, classB)
	if err != nil {
		return nil, err
	}

	// Flatten the buckets into one ordered set; order is re-shuffled per
	// epoch below.
	vecs := make([][]float32, 0, total)
	labels := make([]int, 0, total)
	for _, v := range classA {
		vecs = append(vecs, v)
		labels = append(labels, 0)
	}
	for _, v := range classB {
		vecs = append(vecs, v)
		labels = append(labels, 1)
	}

	g := gorgonia.NewGraph()

	x := gorgonia.NewMatrix(g, tensor.Float32,
		gorgonia.WithShape(total, dims), gorgonia.WithName("x"))
	y := gorgonia.NewMatrix(g, tensor.Float32,
		gorgonia.WithShape(total, NumClasses), gorgonia.WithName("y"))

	w0 := gorgonia.NewMatrix(g, tensor.Float32,
		gorgonia.WithShape(dims, t.conf.HiddenUnits), gorgonia.WithName("w0"),
		gorgonia.WithInit(gorgonia.GlorotU(1.0)))
	b0 := gorgonia.NewMatrix(g, tensor.Float32,
		gorgonia.WithShape(1, t.conf.HiddenUnits), gorgonia.WithName("b0"),
		gorgonia.WithInit(gorgonia.Zeroes()))
	w1 := gorgonia.NewMatrix(g, tensor.Float32,
		gorgonia.WithShape(t.conf.HiddenUnits, NumClasses), gorgonia.WithName("w1"),
		gorgonia.WithInit(gorgonia.GlorotU(1.0)))
	b1 := gorgonia.NewMatrix(g, tensor.Float32,
		gorgonia.WithShape(1, NumClasses), gorgonia.WithName("b1"),
		gorgonia.WithInit(gorgonia.Zeroes()))

	hidden, err := gorgonia.Mul(x, w0)
	if err != nil {
		return nil, fmt.Errorf("train: building hidden layer: %w", err)
	}
	hidden, err = gorgonia.BroadcastAdd(hidden, b0, nil, []byte{0})
	if err != nil {
		return nil, fmt.Errorf("train: adding hidden bias: %w", err)
	}
	hidden, err = gorgonia.Rectify(hidden)
	if err != nil {
		return nil, fmt.Errorf("train: applying relu: %w", err)
	}
	// Dropout regularizes training only; the inference graph built by
	// newNetwork omits it.
	hidden, err = gorgonia.Dropout(hidden, t.conf.DropoutRate)
	if err != nil {
		return nil, fmt.Errorf("train: applying dropout: %w", err)
	}

	logits, err := gorgonia.Mul(hidden, w1)
	if err != nil {
		return nil, fmt.Errorf("train: building output layer: %w", err)
	}
	logits, err = gorgonia.BroadcastAdd(logits, b1, nil, []byte{0})
	if err != nil {
		return nil, fmt.Errorf("train: adding output bias: %w", err)
	}
	prob, err := gorgonia.SoftMax(logits)
	if err != nil {
		return nil, fmt.Errorf("train: applying softmax: %w", err)
	}

	// Categorical cross-entropy: mean over samples of -sum(y * log(p)).
	logProb, err := gorgonia.Log(prob)
	if err != nil {
		return nil, fmt.Errorf("train: building loss: %w", err)
	}
	ce, err := gorgonia.HadamardProd(y, logProb)
	if err != nil {
		return nil, fmt.Errorf("train: building loss: %w", err)
	}
	perSample, err := gorgonia.Sum(ce, 1)
	if err != nil {
		return nil, fmt.Errorf("train: building loss: %w", err)
	}
	loss, err := gorgonia.Mean(perSample)
	if err != nil {
		return nil, fmt.Errorf("train: building loss: %w", err)
	}
	loss, err = gorgonia.Neg(loss)
	if err != nil {
		return nil, fmt.Errorf("train: building loss: %w", err)
	}

	learnables := gorgonia.Nodes{w0, b0, w1, b1}
	if _, err := gorgonia.Grad(loss, learnables...); err != nil {
		return nil, fmt.Errorf("train: building gradients: %w", err)
	}

	vm := gorgonia.NewTapeMachine(g, gorgonia.BindDualValues(learnables...))
	defer vm.Close()
	solver := gorgonia.NewAdamSolver(gorgonia.WithLearnRate(t.conf.LearnRate))

	order := make([]int, total)
	for i := range order {
		order[i] = i
	}
	xBacking := make([]float32, total*dims)
	yBacking := make([]float32, total*NumClasses)
	shuffledLabels := make([]int, total)

	for epoch := 1; epoch <= t.conf.Epochs; epoch++ {
		// Yield between epochs: a canceled context abandons training with
		// no usable model.
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w after %d epochs: %v", ErrInterrupted, epoch-1, ctx.Err())
		default:
		}

		t.rng.Shuffle(total, func(i, j int) { order[i], order[j] = order[j], order[i] })
		for row, idx := range order {
			copy(xBacking[row*dims:(row+1)*dims], vecs[idx])
			yBacking[row*NumClasses] = 0
			yBacking[row*NumClasses+1] = 0
			yBacking[row*NumClasses+labels[idx]] = 1
			shuffledLabels[row] = labels[idx]
		}

		xT := tensor.New(tensor.WithShape(total, dims), tensor.WithBacking(xBacking))
		yT := tensor.New(tensor.WithShape(total, NumClasses), tensor.WithBacking(yBacking))
		if err := gorgonia.Let(x, xT); err != nil {
			return nil, fmt.Errorf("train: binding inputs: %w", err)
		}
		if err := gorgonia.Let(y, yT); err != nil {
			return nil, fmt.Errorf("train: binding labels: %w", err)
		}

		if err := vm.RunAll(); err != nil {
			return nil, fmt.Errorf("train: epoch %d forward/backward pass: %w", epoch, err)
		}

		epochLoss, err := scalarFloat32(loss.Value())
		if err != nil {
			return nil, fmt.Errorf("train: reading epoch %d loss: %w", epoch, err)
		}
		acc := accuracy(prob.Value(), shuffledLabels)

		if err := solver.Step(gorgonia.NodesToValueGrads(learnables)); err != nil {
			return nil, fmt.Errorf("train: epoch %d solver step: %w", epoch, err)
		}
		vm.Reset()

		if onEpoch != nil {
			onEpoch(EpochUpdate{Epoch: epoch, Loss: epochLoss, Accuracy: acc})
		}
	}

	return newNetwork(dims, t.conf.HiddenUnits, learnables)
}

// checkDims verifies all vectors share one dimensionality and returns it.
func checkDims(buckets ...[][]float32) (int, error) {
	dims := -1
	for _, bucket := range buckets {
		for _, v := range bucket {
			if dims == -1 {
				dims = len(v)
			}
			if len(v) != dims || dims == 0 {
				return 0, ErrDimMismatch
			}
		}
	}
	return dims, nil
}

func scalarFloat32(v gorgonia.Value) (float32, error) {
	switch data := v.Data().(type) {
	case float32:
		return data, nil
	case []float32:
		if len(data) == 1 {
			return data[0], nil
		}
	}
	return 0, fmt.Errorf("unexpected scalar value %v", v)
}

// accuracy computes the fraction of rows of a (n, 2) probability tensor
// whose argmax matches the label.
func accuracy(v gorgonia.Value, labels []int) float32 {
	probs, ok := v.Data().([]float32)
	if !ok || len(labels) == 0 || len(probs) != len(labels)*NumClasses {
		return 0
	}
	correct := 0
	for i, label := range labels {
		predicted := 0
		if probs[i*NumClasses+1] > probs[i*NumClasses] {
			predicted = 1
		}
		if predicted == label {
			correct++
		}
	}
	return float32(correct) / float32(len(labels))
}
