package roots

import "testing"

func TestPushPopBalanced(t *testing.T) {
	var s Stack
	var a, b uintptr
	s.Push(&a)
	s.Push(&b)

	if s.Len() != 2 {
		t.Fatalf("Len = %d, want 2", s.Len())
	}
	if ok := s.Pop(&b); !ok {
		t.Error("popping &b should report balanced")
	}
	if ok := s.Pop(&a); !ok {
		t.Error("popping &a should report balanced")
	}
	if s.Len() != 0 {
		t.Errorf("Len = %d, want 0", s.Len())
	}
}

func TestPopUnbalancedDetected(t *testing.T) {
	var s Stack
	var a, b uintptr
	s.Push(&a)
	if ok := s.Pop(&b); ok {
		t.Error("popping &b after pushing &a should report unbalanced")
	}
}

func TestPopEmptyPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("Pop on empty stack should panic")
		}
	}()
	var s Stack
	var a uintptr
	s.Pop(&a)
}

func TestEachOrderAndMutation(t *testing.T) {
	var s Stack
	a, b, c := uintptr(1), uintptr(2), uintptr(3)
	s.Push(&a)
	s.Push(&b)
	s.Push(&c)

	var seen []uintptr
	s.Each(func(slot Slot) {
		seen = append(seen, *slot)
		*slot += 100
	})
	if len(seen) != 3 || seen[0] != 1 || seen[1] != 2 || seen[2] != 3 {
		t.Errorf("Each visited in wrong order: %v", seen)
	}
	if a != 101 || b != 102 || c != 103 {
		t.Errorf("Each should allow in-place mutation: a=%d b=%d c=%d", a, b, c)
	}
}
