package toolsec

import "testing"

func TestPathValidatorAllowsOrdinaryPath(t *testing.T) {
	v := NewPathValidator()
	if err := v.Validate("/api/v1/widgets"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestPathValidatorAllowsEmptyPath(t *testing.T) {
	v := NewPathValidator()
	if err := v.Validate(""); err != nil {
		t.Errorf("unexpected error for empty path: %v", err)
	}
}

func TestPathValidatorRejectsTraversal(t *testing.T) {
	v := NewPathValidator()
	if err := v.Validate("/files/../../../etc/passwd"); err == nil {
		t.Fatal("expected error for path traversal")
	}
}

func TestPathValidatorRejectsSystemPaths(t *testing.T) {
	v := NewPathValidator()
	for _, p := range []string{"/etc/passwd", "/proc/self/environ", "c:/windows/system32"} {
		if err := v.Validate(p); err == nil {
			t.Errorf("Validate(%q) expected error", p)
		}
	}
}

func TestPathValidatorRejectsURLEncodedTraversal(t *testing.T) {
	v := NewPathValidator()
	if err := v.Validate("/files/%2e%2e%2fetc/passwd"); err == nil {
		t.Fatal("expected error for url-encoded traversal")
	}
}
