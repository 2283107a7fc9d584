package core

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/signalsfoundry/epidemic-simulator/model"
)

func TestSeriesEvictsOldest(t *testing.T) {
	s := NewSeries[int](3)
	if _, ok := s.Last(); ok {
		t.Fatal("empty series has no last value")
	}
	for i := 1; i <= 5; i++ {
		s.Push(i)
	}
	if diff := cmp.Diff([]int{3, 4, 5}, s.Values()); diff != "" {
		t.Fatalf("Values mismatch (-want +got):\n%s", diff)
	}
	if last, _ := s.Last(); last != 5 {
		t.Fatalf("Last = %d, want 5", last)
	}
	if s.Len() != 3 || s.Cap() != 3 {
		t.Fatalf("Len/Cap = %d/%d, want 3/3", s.Len(), s.Cap())
	}
}

func TestSeriesMinimumCapacity(t *testing.T) {
	s := NewSeries[float64](0)
	s.Push(1.5)
	s.Push(2.5)
	if diff := cmp.Diff([]float64{2.5}, s.Values()); diff != "" {
		t.Fatalf("Values mismatch (-want +got):\n%s", diff)
	}
}

func TestSampleRates(t *testing.T) {
	st := NewStatistics(10)

	first := st.Sample(model.StateCounts{Susceptible: 90, Infected: 10})
	if first.NewInfections != 10 {
		t.Fatalf("NewInfections = %d, want 10", first.NewInfections)
	}
	if math.Abs(first.InfectionRate-10) > 1e-9 {
		t.Fatalf("InfectionRate = %v, want 10", first.InfectionRate)
	}
	if first.RecoveryRate != 0 {
		t.Fatalf("RecoveryRate = %v, want 0", first.RecoveryRate)
	}

	second := st.Sample(model.StateCounts{Susceptible: 85, Infected: 10, Recovered: 5})
	if second.NewRecoveries != 5 {
		t.Fatalf("NewRecoveries = %d, want 5", second.NewRecoveries)
	}
	if math.Abs(second.RecoveryRate-50) > 1e-9 {
		t.Fatalf("RecoveryRate = %v, want 50", second.RecoveryRate)
	}
	if st.TotalRecoveries() != 5 {
		t.Fatalf("TotalRecoveries = %d, want 5", st.TotalRecoveries())
	}
	if st.Recovered.Len() != 2 || st.RecoveryRate.Len() != 2 {
		t.Fatal("every sample pushes one value per series")
	}
}

func TestSampleEmptyPopulation(t *testing.T) {
	st := NewStatistics(5)
	s := st.Sample(model.StateCounts{})
	if math.IsNaN(s.InfectionRate) || math.IsNaN(s.RecoveryRate) {
		t.Fatalf("rates must not be NaN: %+v", s)
	}
	if s.InfectionRate != 0 || s.RecoveryRate != 0 {
		t.Fatalf("rates = %v/%v, want 0/0", s.InfectionRate, s.RecoveryRate)
	}
}

func TestNewCountsNeverNegative(t *testing.T) {
	st := NewStatistics(5)
	st.Sample(model.StateCounts{Infected: 20, Recovered: 10})
	s := st.Sample(model.StateCounts{Infected: 5, Recovered: 2})
	if s.NewInfections < 0 || s.NewRecoveries < 0 {
		t.Fatalf("negative derived counts: %+v", s)
	}
}

func TestRecordDeaths(t *testing.T) {
	st := NewStatistics(5)
	st.RecordDeaths(2)
	st.RecordDeaths(-1)
	st.RecordDeaths(0)
	if st.Deaths() != 2 {
		t.Fatalf("Deaths = %d, want 2", st.Deaths())
	}
}
