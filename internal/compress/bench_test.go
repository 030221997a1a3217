package compress

import (
	"fmt"
	"testing"
)

func BenchmarkEvaluate(b *testing.B) {
	color, gray := testPair(128, 96, 7)
	ranks := []int{5, 10, 20, 50}
	for _, workers := range []int{1, 4} {
		e := NewEvaluator(WithWorkers(workers))
		b.Run(fmt.Sprintf("workers=%d", workers), func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				if _, err := e.Evaluate(color, gray, ranks); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkPSNR(b *testing.B) {
	color, _ := testPair(256, 256, 3)
	other, _ := testPair(256, 256, 4)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = PSNR(color, other, DataRange)
	}
}
