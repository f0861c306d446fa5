package hrm

import (
	"encoding/binary"
	"testing"
)

// payload builds a raw broadcast: channel number byte, page bytes, then
// the event time / beat count / heart rate fields the decoder reads.
func payload(eventTime uint16, beatCount, heartRate uint8) []byte {
	p := make([]byte, 9)
	binary.LittleEndian.PutUint16(p[eventTimeOffset:eventTimeOffset+2], eventTime)
	p[beatCountOffset] = beatCount
	p[heartRateOffset] = heartRate
	return p
}

func TestDecodeRejectsWrongLength(t *testing.T) {
	prior := State{
		ComputedHeartRate: 70,
		HeartRateValid:    true,
		BeatCount:         12,
		PrevBeatCount:     12,
		PrevEventTime:     5000,
	}

	for _, n := range []int{0, 1, 8, 10, 100} {
		_, ok := Decode(make([]byte, n), prior)
		if ok {
			t.Errorf("length %d: expected decode to reject payload", n)
		}
	}

	// Prior is passed by value, but double-check nothing leaked through
	// the valid path either.
	if prior.BeatCount != 12 || prior.PrevEventTime != 5000 {
		t.Errorf("prior state modified: %+v", prior)
	}
}

func TestDecodeFirstMessage(t *testing.T) {
	next, ok := Decode(payload(3000, 5, 72), State{})
	if !ok {
		t.Fatal("expected decode to accept payload")
	}
	if !next.HeartRateValid {
		t.Error("heart rate should be valid after first message")
	}
	if next.ComputedHeartRate != 72 {
		t.Errorf("heart rate: got %d, want 72", next.ComputedHeartRate)
	}
	if next.BeatCount != 5 {
		t.Errorf("beat count: got %d, want 5", next.BeatCount)
	}
	if next.PrevBeatCount != 5 {
		t.Errorf("prev beat count: got %d, want 5", next.PrevBeatCount)
	}
	if next.PrevEventTime != 3000 {
		t.Errorf("prev event time: got %d, want 3000", next.PrevEventTime)
	}
}

func TestDecodeMonotonicity(t *testing.T) {
	state := State{}
	var eventTime uint16 = 1000

	for i, count := range []uint8{5, 6, 7} {
		eventTime += 800
		next, ok := Decode(payload(eventTime, count, 75), state)
		if !ok {
			t.Fatalf("message %d: decode rejected payload", i)
		}
		if next.BeatCount <= state.BeatCount && i > 0 {
			t.Errorf("message %d: beat count did not increase: %d -> %d",
				i, state.BeatCount, next.BeatCount)
		}
		want := uint32(count)
		if next.BeatCount != want {
			t.Errorf("message %d: beat count: got %d, want %d", i, next.BeatCount, want)
		}
		state = next
	}
}

func TestDecodeCounterWrap(t *testing.T) {
	state := State{}
	var eventTime uint16 = 2000

	// Seed with the first raw count, then every step should add one beat.
	counts := []uint8{254, 255, 0, 1}
	for i, count := range counts {
		eventTime += 800
		next, ok := Decode(payload(eventTime, count, 80), state)
		if !ok {
			t.Fatalf("message %d: decode rejected payload", i)
		}
		if i > 0 {
			diff := next.BeatCount - state.BeatCount
			if diff != 1 {
				t.Errorf("message %d (raw %d): beat count delta: got %d, want 1",
					i, count, diff)
			}
		}
		state = next
	}

	if state.BeatCount != 254+3 {
		t.Errorf("final beat count: got %d, want %d", state.BeatCount, 254+3)
	}
}

func TestDecodeSingleBeatRRInterval(t *testing.T) {
	prior := State{
		HeartRateValid: true,
		BeatCount:      10,
		PrevBeatCount:  10,
		PrevEventTime:  1024,
	}

	next, ok := Decode(payload(2048, 11, 60), prior)
	if !ok {
		t.Fatal("expected decode to accept payload")
	}
	if next.RRIntervalMs != 1000 {
		t.Errorf("rr interval: got %d, want 1000", next.RRIntervalMs)
	}
}

func TestDecodeRRSuppressedWithoutNewBeat(t *testing.T) {
	prior := State{
		HeartRateValid: true,
		BeatCount:      10,
		PrevBeatCount:  10,
		PrevEventTime:  1024,
	}

	// Same raw count: no new beat, no interval.
	next, ok := Decode(payload(2048, 10, 60), prior)
	if !ok {
		t.Fatal("expected decode to accept payload")
	}
	if next.RRIntervalMs != 0 {
		t.Errorf("rr interval with no new beat: got %d, want 0", next.RRIntervalMs)
	}
	if next.BeatCount != 10 {
		t.Errorf("beat count: got %d, want 10", next.BeatCount)
	}
}

func TestDecodeRRSuppressedForMultipleBeats(t *testing.T) {
	prior := State{
		HeartRateValid: true,
		BeatCount:      10,
		PrevBeatCount:  10,
		PrevEventTime:  1024,
	}

	// Two beats since the last sample: cannot attribute a single interval.
	next, ok := Decode(payload(3072, 12, 60), prior)
	if !ok {
		t.Fatal("expected decode to accept payload")
	}
	if next.RRIntervalMs != 0 {
		t.Errorf("rr interval with two new beats: got %d, want 0", next.RRIntervalMs)
	}
	if next.BeatCount != 12 {
		t.Errorf("beat count: got %d, want 12", next.BeatCount)
	}
}

func TestDecodeZeroHeartRateIsValid(t *testing.T) {
	next, ok := Decode(payload(100, 0, 0), State{HeartRateValid: true})
	if !ok {
		t.Fatal("expected decode to accept payload")
	}
	if !next.HeartRateValid {
		t.Error("zero heart rate should still be a valid reading")
	}
	if next.ComputedHeartRate != 0 {
		t.Errorf("heart rate: got %d, want 0", next.ComputedHeartRate)
	}
}
