package predict

import (
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
	"sync"

	"github.com/ghatsafe/ghatsafe/internal/features"
	"github.com/ghatsafe/ghatsafe/internal/timeutil"
)

// Simulator perturbs inputs before predicting, to demo how the answer moves
// with small changes. It is seeded, so a given seed and call sequence always
// produces the same outputs, and it never runs on the plain Predict path.
type Simulator struct {
	svc *Service

	mu  sync.Mutex
	rng *rand.Rand
}

// NewSimulator wraps svc with a perturbation source seeded by seed.
func NewSimulator(svc *Service, seed uint64) *Simulator {
	return &Simulator{svc: svc, rng: rand.New(rand.NewPCG(seed, seed+1))}
}

// Predict shifts the hour by up to two hours either way and, seven times
// out of ten, nudges a vehicle count of 1-5 by one within that range.
// Inputs that would fail validation are passed through untouched.
func (s *Simulator) Predict(in features.RawInput) (*Prediction, error) {
	in = s.perturb(in)
	p, err := s.svc.Predict(in)
	if err != nil {
		return nil, err
	}
	p.Simulated = true
	return p, nil
}

func (s *Simulator) perturb(in features.RawInput) features.RawInput {
	s.mu.Lock()
	defer s.mu.Unlock()

	if h, ok := timeutil.ParseHour(in.Time); ok {
		h = (h + s.rng.IntN(5) - 2 + 24) % 24
		in.Time = fmt.Sprintf("%02d:00", h)
	}
	if n, err := strconv.Atoi(strings.TrimSpace(in.VehicleCount)); err == nil && n >= 1 && n <= 5 && s.rng.Float64() < 0.7 {
		n = max(1, min(5, n+s.rng.IntN(3)-1))
		in.VehicleCount = strconv.Itoa(n)
	}
	return in
}
