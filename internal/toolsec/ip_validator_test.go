package toolsec

import (
	"net"
	"testing"
)

func TestIPValidatorRejectsLoopback(t *testing.T) {
	v := NewIPValidator()
	if err := v.Validate(net.ParseIP("127.0.0.1")); err == nil {
		t.Fatal("expected error for loopback address")
	}
}

func TestIPValidatorRejectsPrivateNetwork(t *testing.T) {
	v := NewIPValidator()
	for _, ip := range []string{"10.0.0.1", "172.16.0.1", "192.168.1.1"} {
		if err := v.Validate(net.ParseIP(ip)); err == nil {
			t.Errorf("expected error for private ip %s", ip)
		}
	}
}

func TestIPValidatorRejectsLinkLocal(t *testing.T) {
	v := NewIPValidator()
	if err := v.Validate(net.ParseIP("169.254.169.254")); err == nil {
		t.Fatal("expected error for link-local metadata address")
	}
}

func TestIPValidatorRejectsMulticastAndUnspecified(t *testing.T) {
	v := NewIPValidator()
	if err := v.Validate(net.ParseIP("224.0.0.1")); err == nil {
		t.Error("expected error for multicast address")
	}
	if err := v.Validate(net.ParseIP("0.0.0.0")); err == nil {
		t.Error("expected error for unspecified address")
	}
}

func TestIPValidatorAllowsPublicAddress(t *testing.T) {
	v := NewIPValidator()
	if err := v.Validate(net.ParseIP("8.8.8.8")); err != nil {
		t.Errorf("unexpected error for public ip: %v", err)
	}
}

func TestIPValidatorRejectsNilIP(t *testing.T) {
	v := NewIPValidator()
	if err := v.Validate(nil); err == nil {
		t.Fatal("expected error for nil ip")
	}
}

func TestValidateAllFailsOnEmptyList(t *testing.T) {
	v := NewIPValidator()
	if err := v.ValidateAll(nil); err == nil {
		t.Fatal("expected error for empty ip list")
	}
}

func TestValidateAllFailsIfAnyIPIsBlocked(t *testing.T) {
	v := NewIPValidator()
	ips := []net.IP{net.ParseIP("8.8.8.8"), net.ParseIP("127.0.0.1")}
	if err := v.ValidateAll(ips); err == nil {
		t.Fatal("expected error when one of the ips is blocked")
	}
}
