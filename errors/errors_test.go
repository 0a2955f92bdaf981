package errors

import (
	"errors"
	"strings"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name: "full error",
			err: &Error{
				Phase:  PhaseEncode,
				Kind:   KindUnmatchedSubclass,
				Path:   []string{"Zoo", "animal"},
				GoType: "main.Fish",
				Detail: "no candidate",
				Entries: []Entry{
					{Label: "candidates", Value: "Cat, Dog"},
				},
			},
			contains: []string{"[encode]", "unmatched_subclass", "Zoo > animal", "main.Fish", "no candidate", "candidates=Cat, Dog"},
		},
		{
			name: "minimal error",
			err: &Error{
				Phase: PhaseDecode,
				Kind:  KindOutOfBounds,
			},
			contains: []string{"[decode]", "out_of_bounds"},
		},
		{
			name: "error with cause",
			err: &Error{
				Phase:  PhaseIO,
				Kind:   KindClosed,
				Detail: "buffer released",
				Cause:  errors.New("underlying error"),
			},
			contains: []string{"[io]", "closed", "buffer released", "caused by", "underlying error"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, s := range tt.contains {
				if !strings.Contains(msg, s) {
					t.Errorf("error message %q does not contain %q", msg, s)
				}
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := &Error{
		Phase: PhaseEncode,
		Kind:  KindInvalidData,
		Cause: cause,
	}

	if !errors.Is(err.Unwrap(), cause) {
		t.Error("Unwrap did not return cause")
	}
	if !errors.Is(errors.Unwrap(err), cause) {
		t.Error("errors.Unwrap did not return cause")
	}
}

func TestError_Is(t *testing.T) {
	err := &Error{
		Phase: PhaseScan,
		Kind:  KindUnknownType,
		Path:  []string{"Box"},
	}

	if !err.Is(&Error{Phase: PhaseScan, Kind: KindUnknownType}) {
		t.Error("Is should match same phase and kind")
	}
	if err.Is(&Error{Phase: PhaseDecode, Kind: KindUnknownType}) {
		t.Error("Is should not match different phase")
	}
	if err.Is(&Error{Phase: PhaseScan, Kind: KindMissingAccessor}) {
		t.Error("Is should not match different kind")
	}
	if !errors.Is(err, &Error{Phase: PhaseScan, Kind: KindUnknownType}) {
		t.Error("errors.Is should match")
	}
}

func TestBuilder(t *testing.T) {
	cause := errors.New("root")
	err := New(PhaseScan, KindMissingAccessor).
		Path("Outer", "Inner").
		GoType("main.Inner").
		Value(42).
		Entry("class", "Inner").
		Entry("member", "x").
		Cause(cause).
		Detail("field %s not found", "x").
		Build()

	if err.Phase != PhaseScan {
		t.Errorf("Phase = %v, want %v", err.Phase, PhaseScan)
	}
	if err.Kind != KindMissingAccessor {
		t.Errorf("Kind = %v, want %v", err.Kind, KindMissingAccessor)
	}
	if len(err.Path) != 2 || err.Path[0] != "Outer" || err.Path[1] != "Inner" {
		t.Errorf("Path = %v, want [Outer Inner]", err.Path)
	}
	if err.Value != 42 {
		t.Errorf("Value = %v, want 42", err.Value)
	}
	if !errors.Is(err.Cause, cause) {
		t.Errorf("Cause = %v, want %v", err.Cause, cause)
	}
	if err.Detail != "field x not found" {
		t.Errorf("Detail = %v", err.Detail)
	}
	if len(err.Entries) != 2 || err.Entries[0].Label != "class" || err.Entries[1].Label != "member" {
		t.Errorf("Entries = %v, want ordered [class member]", err.Entries)
	}
	if v, ok := err.Lookup("member"); !ok || v != "x" {
		t.Errorf("Lookup(member) = %v, %v", v, ok)
	}
	if _, ok := err.Lookup("missing"); ok {
		t.Error("Lookup should miss unknown label")
	}
}

func TestConvenienceConstructors(t *testing.T) {
	t.Run("UnknownType", func(t *testing.T) {
		err := UnknownType([]string{"Holder"}, "Holder", "Box", "T")
		if err.Kind != KindUnknownType || err.Phase != PhaseScan {
			t.Errorf("got %v/%v", err.Phase, err.Kind)
		}
		if v, _ := err.Lookup("type variable"); v != "T" {
			t.Errorf("type variable entry = %v", v)
		}
		if v, _ := err.Lookup("source class"); v != "Holder" {
			t.Errorf("source class entry = %v", v)
		}
	})

	t.Run("AmbiguousSubclass", func(t *testing.T) {
		err := AmbiguousSubclass(nil, "Cat", "Cat")
		if err.Kind != KindAmbiguousSubclass {
			t.Errorf("Kind = %v", err.Kind)
		}
	})

	t.Run("MissingAccessor", func(t *testing.T) {
		err := MissingAccessor(nil, "Pair", "c")
		if err.Kind != KindMissingAccessor {
			t.Errorf("Kind = %v", err.Kind)
		}
	})

	t.Run("InvalidConfig", func(t *testing.T) {
		err := InvalidConfig(nil, "stale and nullable on %s", "x")
		if err.Phase != PhaseConfig || err.Detail != "stale and nullable on x" {
			t.Errorf("got %v %q", err.Phase, err.Detail)
		}
		if !IsConfigError(err) || !IsScanError(err) {
			t.Error("config errors are scan-time errors")
		}
	})

	t.Run("InvalidDiscriminator", func(t *testing.T) {
		err := InvalidDiscriminator([]string{"Zoo"}, 2, 2)
		if err.Kind != KindInvalidDiscriminator {
			t.Errorf("Kind = %v", err.Kind)
		}
		if v, _ := err.Lookup("valid range"); v != "[0, 2)" {
			t.Errorf("valid range = %v", v)
		}
		if err.Value != uint32(2) {
			t.Errorf("Value = %v", err.Value)
		}
		if !IsRuntimeError(err) || IsScanError(err) {
			t.Error("discriminator errors are runtime errors")
		}
	})

	t.Run("UnmatchedSubclass", func(t *testing.T) {
		err := UnmatchedSubclass(nil, "main.Fish", []string{"Cat", "Dog"})
		if v, _ := err.Lookup("candidates"); v != "Cat, Dog" {
			t.Errorf("candidates = %v", v)
		}
	})

	t.Run("OutOfBounds", func(t *testing.T) {
		err := OutOfBounds(PhaseIO, 10, 4, 12)
		if err.Kind != KindOutOfBounds || err.Value != 10 {
			t.Errorf("got %v %v", err.Kind, err.Value)
		}
	})

	t.Run("NilPointer", func(t *testing.T) {
		err := NilPointer(PhaseEncode, []string{"ptr"}, "*User")
		if err.Kind != KindNilPointer || err.GoType != "*User" {
			t.Errorf("got %v %v", err.Kind, err.GoType)
		}
	})
}

func TestClassifiersRejectForeignErrors(t *testing.T) {
	plain := errors.New("plain")
	if IsScanError(plain) || IsRuntimeError(plain) || IsConfigError(plain) {
		t.Error("plain errors are not classified")
	}
}
