package store

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/rove-lang/rove/vm"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "store.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestScriptRoundTrip(t *testing.T) {
	s := openTemp(t)

	if err := s.SaveScript("greet", `print("hi")`); err != nil {
		t.Fatal(err)
	}
	src, err := s.LoadScript("greet")
	if err != nil {
		t.Fatal(err)
	}
	if src != `print("hi")` {
		t.Errorf("got %q", src)
	}
}

func TestSaveScriptReplaces(t *testing.T) {
	s := openTemp(t)

	if err := s.SaveScript("x", "1"); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveScript("x", "2"); err != nil {
		t.Fatal(err)
	}
	src, err := s.LoadScript("x")
	if err != nil {
		t.Fatal(err)
	}
	if src != "2" {
		t.Errorf("expected latest version, got %q", src)
	}
	entries, err := s.ListScripts()
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("expected a single entry, got %d", len(entries))
	}
}

func TestMissingScript(t *testing.T) {
	s := openTemp(t)

	if _, err := s.LoadScript("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := s.DeleteScript("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestValueRoundTrip(t *testing.T) {
	s := openTemp(t)

	v := vm.NewMap(map[string]vm.Dynamic{
		"nums": vm.NewArray([]vm.Dynamic{vm.Int(1), vm.Int(2)}),
		"name": vm.Str("rove"),
	})
	defer v.Release()

	if err := s.SaveValue("snap", v); err != nil {
		t.Fatal(err)
	}
	got, err := s.LoadValue("snap")
	if err != nil {
		t.Fatal(err)
	}
	defer got.Release()
	if !vm.Equal(got, v) {
		t.Errorf("round trip changed value: %s", got.String())
	}
}

func TestValueWithFnPtrRejected(t *testing.T) {
	s := openTemp(t)

	v := vm.NewFnPtr("f", nil)
	defer v.Release()
	if err := s.SaveValue("bad", v); err == nil {
		t.Error("function pointers must not serialize")
	}
}

func TestListOrdering(t *testing.T) {
	s := openTemp(t)

	for _, name := range []string{"b", "a", "c"} {
		if err := s.SaveScript(name, name); err != nil {
			t.Fatal(err)
		}
	}
	entries, err := s.ListScripts()
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 3 || entries[0].Name != "a" || entries[2].Name != "c" {
		t.Errorf("expected a,b,c ordering, got %+v", entries)
	}
}

func TestDeleteValue(t *testing.T) {
	s := openTemp(t)

	if err := s.SaveValue("v", vm.Int(9)); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteValue("v"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.LoadValue("v"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}
