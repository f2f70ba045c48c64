package toolsec

import "testing"

func TestHostValidatorRejectsBlockedHostnames(t *testing.T) {
	v := NewHostValidator()
	for _, h := range []string{"localhost", "127.0.0.1", "0.0.0.0", "::1"} {
		if err := v.Validate(h); err == nil {
			t.Errorf("Validate(%q) expected error", h)
		}
	}
}

func TestHostValidatorRejectsEmptyHostname(t *testing.T) {
	v := NewHostValidator()
	if err := v.Validate(""); err == nil {
		t.Fatal("expected error for empty hostname")
	}
}

func TestHostValidatorIsCaseInsensitive(t *testing.T) {
	v := NewHostValidator()
	if err := v.Validate("LOCALHOST"); err == nil {
		t.Fatal("expected error for uppercase localhost")
	}
}

func TestHostValidatorGetBlockedExamplesNonEmpty(t *testing.T) {
	v := NewHostValidator()
	if len(v.GetBlockedExamples()) == 0 {
		t.Fatal("expected non-empty blocked examples list")
	}
}
