package client

import (
	"sync"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("asyncCallbacksHandler", func() {
	It("runs callbacks one at a time in push order", func() {
		ac := newAsyncCallbacksHandler()
		go ac.dispatch()

		var (
			mu  sync.Mutex
			got []int
		)

		for i := 0; i < 100; i++ {
			i := i
			ac.push(func() {
				mu.Lock()
				got = append(got, i)
				mu.Unlock()
			})
		}

		ac.close()
		Eventually(ac.done).Should(BeClosed())

		Expect(got).To(HaveLen(100))
		for i, v := range got {
			Expect(v).To(Equal(i))
		}
	})

	It("drops callbacks pushed after close", func() {
		ac := newAsyncCallbacksHandler()
		go ac.dispatch()

		ran := make(chan struct{}, 2)

		ac.push(func() { ran <- struct{}{} })
		ac.close()
		ac.push(func() { ran <- struct{}{} })
		ac.close()

		Eventually(ac.done).Should(BeClosed())
		Expect(ran).To(HaveLen(1))
	})

	It("refuses a nil callback", func() {
		ac := newAsyncCallbacksHandler()
		Expect(func() { ac.push(nil) }).To(Panic())
	})
})
