package validate

import (
	"errors"
	"reflect"
	"testing"
)

func stubConstructor(name string, priority Priority) ValidatorConstructor {
	return func(_ map[string]any) (Validator, error) {
		return &stubValidator{name: name, priority: priority}, nil
	}
}

func TestRegistryRegisterAndCreate(t *testing.T) {
	r := NewRegistry()
	if err := r.Register("security", stubConstructor("security", PriorityCritical)); err != nil {
		t.Fatalf("Register: %v", err)
	}

	v, err := r.Create("security", nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if v.Name() != "security" || v.Priority() != PriorityCritical {
		t.Fatalf("created validator = %s/%v", v.Name(), v.Priority())
	}

	if !r.Has("security") {
		t.Fatal("Has returned false for registered validator")
	}
	if _, err := r.Create("missing", nil); !errors.Is(err, ErrValidatorNotFound) {
		t.Fatalf("Create(missing) error = %v, want ErrValidatorNotFound", err)
	}
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	r := NewRegistry()
	if err := r.Register("size", stubConstructor("size", PriorityHigh)); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := r.Register("size", stubConstructor("size", PriorityHigh)); err == nil {
		t.Fatal("duplicate Register succeeded")
	}
}

func TestRegistryUnregister(t *testing.T) {
	r := NewRegistry()
	_ = r.Register("content", stubConstructor("content", PriorityMedium))

	if !r.Unregister("content") {
		t.Fatal("Unregister returned false for registered validator")
	}
	if r.Unregister("content") {
		t.Fatal("Unregister returned true for missing validator")
	}
	if r.Has("content") {
		t.Fatal("validator still registered after Unregister")
	}
}

func TestRegistryListSorted(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"size", "content", "format"} {
		_ = r.Register(name, stubConstructor(name, PriorityMedium))
	}
	want := []string{"content", "format", "size"}
	if got := r.List(); !reflect.DeepEqual(got, want) {
		t.Fatalf("List = %v, want %v", got, want)
	}
}

func TestRegistryDependencyCycleDetected(t *testing.T) {
	r := NewRegistry()
	_ = r.Register("a", stubConstructor("a", PriorityMedium), "b")
	_ = r.Register("b", stubConstructor("b", PriorityMedium), "a")

	if err := r.CheckDependencies([]string{"a"}); !errors.Is(err, ErrValidatorDependencyCycle) {
		t.Fatalf("cycle check error = %v, want ErrValidatorDependencyCycle", err)
	}
}

func TestRegistryMissingDependencyDetected(t *testing.T) {
	r := NewRegistry()
	_ = r.Register("session", stubConstructor("session", PriorityMedium), "format")

	if err := r.CheckDependencies([]string{"session"}); !errors.Is(err, ErrValidatorDependencyMissing) {
		t.Fatalf("missing dep error = %v, want ErrValidatorDependencyMissing", err)
	}
}

func TestRegistrySortByDependencies(t *testing.T) {
	r := NewRegistry()
	_ = r.Register("format", stubConstructor("format", PriorityHigh))
	_ = r.Register("session", stubConstructor("session", PriorityMedium), "format")
	_ = r.Register("content", stubConstructor("content", PriorityMedium))

	ordered, err := r.SortByDependencies([]string{"session", "content", "format"})
	if err != nil {
		t.Fatalf("SortByDependencies: %v", err)
	}
	idx := make(map[string]int, len(ordered))
	for i, name := range ordered {
		idx[name] = i
	}
	if idx["format"] > idx["session"] {
		t.Fatalf("format must sort before session: %v", ordered)
	}
	if len(ordered) != 3 {
		t.Fatalf("ordered = %v, want all 3 names", ordered)
	}
}
