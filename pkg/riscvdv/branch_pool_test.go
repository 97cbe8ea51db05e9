package riscvdv

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("branchStepPool", func() {
	It("should fill the pool with steps in [1, max]", func() {
		p := newBranchStepPool(NewRand(5), 30, 4)
		Expect(p.steps).To(HaveLen(30))
		for _, s := range p.steps {
			Expect(s).To(BeNumerically(">=", 1))
			Expect(s).To(BeNumerically("<=", 4))
		}
	})

	It("should fall back to the default size for an empty pool", func() {
		p := newBranchStepPool(NewRand(5), 0, 0)
		Expect(p.steps).To(HaveLen(defaultBranchPoolSize))
		for i := 0; i < 2*defaultBranchPoolSize; i++ {
			Expect(p.next()).To(Equal(1))
		}
	})

	It("should reshuffle once the pool is exhausted", func() {
		p := &branchStepPool{r: NewRand(9), steps: []int{2, 5, 1}}

		Expect(p.next()).To(Equal(2))
		Expect(p.next()).To(Equal(5))
		Expect(p.reshuffles).To(Equal(0))
		Expect(p.next()).To(Equal(1))
		Expect(p.reshuffles).To(Equal(1))
		Expect(p.cursor).To(Equal(0))

		reshuffled := append([]int{}, p.steps...)
		Expect(reshuffled).To(ConsistOf(2, 5, 1))
		Expect(p.next()).To(Equal(reshuffled[0]))
	})
})
