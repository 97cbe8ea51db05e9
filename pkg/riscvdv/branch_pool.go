package riscvdv

// branchStepPool hands out forward branch distances from a fixed-size
// pool. The pool is reshuffled every time the cursor wraps around.
type branchStepPool struct {
	r          *Rand
	steps      []int
	cursor     int
	reshuffles int
}

// newBranchStepPool falls back to defaultBranchPoolSize and a unit step
// for non-positive arguments.
func newBranchStepPool(r *Rand, size, maxStep int) *branchStepPool {
	if size < 1 {
		size = defaultBranchPoolSize
	}
	maxStep = max(maxStep, 1)
	steps := make([]int, size)
	for i := range steps {
		steps[i] = r.Range(1, maxStep)
	}
	return &branchStepPool{r: r, steps: steps}
}

func (p *branchStepPool) next() int {
	step := p.steps[p.cursor]
	p.cursor++
	if p.cursor == len(p.steps) {
		p.cursor = 0
		p.r.Shuffle(len(p.steps), func(i, j int) {
			p.steps[i], p.steps[j] = p.steps[j], p.steps[i]
		})
		p.reshuffles++
	}
	return step
}
