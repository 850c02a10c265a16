package ltr

import (
	"context"
	"testing"
)

func BenchmarkTrain(b *testing.B) {
	ds := toyDataset(50, 40, false)
	p := testParams()
	p.EarlyStoppingRounds = 0
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, _, err := Train(context.Background(), ds, Dataset{}, p, TrainOptions{}); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkPredict(b *testing.B) {
	ds := toyDataset(20, 40, false)
	m, _, err := Train(context.Background(), ds, Dataset{}, testParams(), TrainOptions{})
	if err != nil {
		b.Fatal(err)
	}
	x := ds.Groups[0].Features[17]
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := m.Predict(x); err != nil {
			b.Fatal(err)
		}
	}
}
