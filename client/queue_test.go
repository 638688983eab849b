package client

import (
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("msgQueue", func() {
	It("pops in push order across growth and wrap around", func() {
		var q msgQueue

		Expect(q.pop()).To(BeNil())

		pushed, next := 0, 0
		for round := 0; round < 5; round++ {
			for i := 0; i < 13; i++ {
				q.push(&Msg{Subject: string(rune('a' + pushed%26))})
				pushed++
			}

			for i := 0; i < 7; i++ {
				Expect(q.pop().Subject).To(Equal(string(rune('a' + next%26))))
				next++
			}
		}

		Expect(q.len()).To(Equal(5*13 - 5*7))

		for q.len() > 0 {
			Expect(q.pop().Subject).To(Equal(string(rune('a' + next%26))))
			next++
		}

		Expect(q.pop()).To(BeNil())
	})
})
