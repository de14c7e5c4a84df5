package own

import (
	"errors"
	"sync"
	"testing"
)

func TestOnceTakesOnce(t *testing.T) {
	var o Once
	if err := o.Take("GPIOA"); err != nil {
		t.Fatalf("first Take failed: %v", err)
	}
	for i := 0; i < 3; i++ {
		err := o.Take("GPIOA")
		if !errors.Is(err, ErrConsumed) {
			t.Errorf("Take #%d got: %v, want ErrConsumed", i+2, err)
		}
	}
	if !o.Taken() {
		t.Errorf("Taken() false after Take")
	}
}

func TestOnceConcurrentTakers(t *testing.T) {
	var o Once
	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if o.Take("RCC") == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if wins != 1 {
		t.Errorf("got %d successful takes, want 1", wins)
	}
}

func TestExclNestedLoanPanics(t *testing.T) {
	e := NewExcl("MODER")
	defer func() {
		if recover() == nil {
			t.Errorf("nested loan didn't panic")
		}
	}()
	e.Loan(func() {
		e.Loan(func() {})
	})
}

func TestExclSequentialLoans(t *testing.T) {
	e := NewExcl("ACR")
	n := 0
	for i := 0; i < 3; i++ {
		e.Loan(func() { n++ })
	}
	if n != 3 {
		t.Errorf("ran %d loans, want 3", n)
	}
	if e.Name() != "ACR" {
		t.Errorf("Name got: %s", e.Name())
	}
}
