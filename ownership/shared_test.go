package ownership

import "testing"

type conn struct {
	closed *int
}

func (c conn) Finalize() {
	*c.closed++
}

func TestShared_UseCount(t *testing.T) {
	closed := 0
	sh := NewShared(conn{closed: &closed})

	if got := sh.UseCount(); got != 1 {
		t.Fatalf("UseCount = %d; want 1", got)
	}

	sh.Acquire()
	sh.Acquire()
	if got := sh.UseCount(); got != 3 {
		t.Fatalf("UseCount = %d; want 3", got)
	}

	if sh.Release() {
		t.Fatal("release above zero must not destroy")
	}
	if sh.Release() {
		t.Fatal("release above zero must not destroy")
	}
	if closed != 0 {
		t.Fatalf("value destroyed with %d holders outstanding", sh.UseCount())
	}

	if !sh.Release() {
		t.Fatal("final release must destroy")
	}
	if closed != 1 {
		t.Fatalf("Finalize ran %d times; want 1", closed)
	}
}

func TestShared_DestroyOnce(t *testing.T) {
	closed := 0
	sh := NewShared(conn{closed: &closed})
	sh.Release()

	defer func() {
		if recover() == nil {
			t.Fatal("over-release must panic")
		}
		if closed != 1 {
			t.Fatalf("Finalize ran %d times; want 1", closed)
		}
	}()
	sh.Release()
}

func TestShared_Unwrap(t *testing.T) {
	sh := NewShared(widget{ID: 3})

	p := sh.Unwrap().(*widget)
	if p == nil || p.ID != 3 {
		t.Fatalf("Unwrap = %v", p)
	}
	if p != sh.Value() {
		t.Fatal("Unwrap and Value must alias the same storage")
	}

	sh.Release()
	if got := sh.Unwrap().(*widget); got != nil {
		t.Fatal("Unwrap after destruction must be nil")
	}
}

func TestShared_NoFinalizer(t *testing.T) {
	// Values without a Finalize method are simply dropped at count zero.
	sh := NewShared(widget{ID: 1})
	if !sh.Release() {
		t.Fatal("final release must report destruction")
	}
}
