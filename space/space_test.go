package space

import "testing"

func TestNewZero(t *testing.T) {
	s, err := New(0)
	if err != nil {
		t.Fatal(err)
	}
	if s.Start() != 0 || s.End() != 0 || s.Size() != 0 {
		t.Errorf("zero-size space should be null, got start=%d end=%d", s.Start(), s.End())
	}
	if s.Contains(1) {
		t.Error("null space must not contain anything")
	}
	if err := s.Drop(); err != nil {
		t.Errorf("Drop on null space: %v", err)
	}
}

func TestNewAlignment(t *testing.T) {
	s, err := New(100)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Drop()
	if s.Start()%Alignment != 0 {
		t.Errorf("space start %#x is not %d-byte aligned", s.Start(), Alignment)
	}
	if s.Size()%Alignment != 0 {
		t.Errorf("space size %d is not a multiple of %d", s.Size(), Alignment)
	}
	if s.Size() > 100 {
		t.Errorf("size %d should have been rounded down from 100", s.Size())
	}
}

func TestContainsHalfOpen(t *testing.T) {
	s, err := New(64)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Drop()

	if !s.Contains(s.Start()) {
		t.Error("start should be contained")
	}
	if s.Contains(s.End()) {
		t.Error("end is exclusive and must not be contained")
	}
	if s.Contains(0) {
		t.Error("null pointer must never be contained")
	}
}

func TestDropIdempotentOnNull(t *testing.T) {
	s, err := New(32)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Drop(); err != nil {
		t.Fatal(err)
	}
	if s.Contains(s.Start()) {
		t.Error("dropped space must contain nothing")
	}
	if err := s.Drop(); err != nil {
		t.Errorf("second Drop on a dropped space: %v", err)
	}
}

func TestBytesRoundTrip(t *testing.T) {
	s, err := New(64)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Drop()

	b := s.Bytes(s.Start(), s.End())
	if len(b) != int(s.Size()) {
		t.Fatalf("Bytes length = %d, want %d", len(b), s.Size())
	}
	b[0] = 0xAB
	if s.Bytes(s.Start(), s.End())[0] != 0xAB {
		t.Error("Bytes should be a view, not a copy")
	}
}
