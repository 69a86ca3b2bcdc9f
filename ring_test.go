package aggo_test

import (
	"testing"

	"github.com/globalsign/aggo"
)

func TestRingBufferCapacityRoundsUpToPowerOfTwo(t *testing.T) {
	r := aggo.NewRingBuffer(10, 0.9, 0.5)
	AssertEqual(t, 16, r.Cap(), "expected capacity 10 to round up to 16")
}

func TestRingBufferProduceAndConsume(t *testing.T) {
	r := aggo.NewRingBuffer(4, 0.9, 0.5)
	for i := 0; i < 3; i++ {
		ok := r.Produce(aggo.Delta{Sign: 1, RowID: aggo.PhysicalRowId(uint32(i))})
		if !ok {
			t.Fatalf("expected Produce %d to succeed", i)
		}
	}
	AssertEqual(t, 3, r.Len(), "incorrect buffered length after 3 produces")

	batch := r.ConsumeBatch(2)
	AssertEqual(t, 2, len(batch), "expected to consume exactly 2 deltas")
	AssertEqual(t, 1, r.Len(), "expected 1 remaining delta after consuming 2")
}

func TestRingBufferFullProduceFails(t *testing.T) {
	r := aggo.NewRingBuffer(2, 1.0, 0.0)
	ok1 := r.Produce(aggo.Delta{Sign: 1})
	ok2 := r.Produce(aggo.Delta{Sign: 1})
	if !ok1 || !ok2 {
		t.Fatal("expected the first two produces (filling exact capacity) to succeed")
	}
	if r.Produce(aggo.Delta{Sign: 1}) {
		t.Fatal("expected Produce to fail once the ring is at capacity")
	}
}

func TestRingBufferPausesAtThresholdAndResumes(t *testing.T) {
	r := aggo.NewRingBuffer(4, 0.5, 0.25)
	r.Produce(aggo.Delta{Sign: 1})
	r.Produce(aggo.Delta{Sign: 1})
	if !r.Paused() {
		t.Fatal("expected the ring to pause once occupancy reaches the pause threshold")
	}
	if r.Produce(aggo.Delta{Sign: 1}) {
		t.Fatal("expected Produce to fail while paused")
	}

	r.ConsumeBatch(2)
	if r.Paused() {
		t.Fatal("expected the ring to resume once occupancy drops to the resume threshold")
	}
}

func TestRingBufferConsumeEmptyReturnsNil(t *testing.T) {
	r := aggo.NewRingBuffer(4, 0.9, 0.5)
	batch := r.ConsumeBatch(10)
	if batch != nil {
		t.Fatalf("expected consuming an empty ring to return nil, got %v", batch)
	}
}
