package safety

import (
	"context"
	"net"
	"testing"
)

type fakeResolver struct {
	addrs map[string][]net.IPAddr
	err   error
}

func (f *fakeResolver) LookupIPAddr(_ context.Context, host string) ([]net.IPAddr, error) {
	if f.err != nil {
		return nil, f.err
	}
	if a, ok := f.addrs[host]; ok {
		return a, nil
	}
	return nil, &net.DNSError{Err: "no such host", Name: host, IsNotFound: true}
}

func publicResolver() *fakeResolver {
	return &fakeResolver{addrs: map[string][]net.IPAddr{
		"example.com": {{IP: net.ParseIP("93.184.216.34")}},
		"sub.example.com": {{IP: net.ParseIP("93.184.216.35")}},
		"evil.com": {{IP: net.ParseIP("127.0.0.1")}},
	}}
}

func TestValidateRejectsNonHTTP(t *testing.T) {
	_, err := Validate(context.Background(), "ftp://example.com", Policy{}, publicResolver())
	if err == nil {
		t.Fatal("expected error for ftp scheme")
	}
}

func TestValidateRejectsLoopback(t *testing.T) {
	for _, raw := range []string{"http://localhost/", "http://127.0.0.1/", "http://[::1]/"} {
		if _, err := Validate(context.Background(), raw, Policy{}, publicResolver()); err == nil {
			t.Fatalf("expected error for %q", raw)
		}
	}
}

func TestValidateRejectsPrivateRanges(t *testing.T) {
	for _, raw := range []string{
		"http://10.0.0.5/", "http://192.168.1.1/", "http://172.16.0.1/", "http://169.254.1.1/",
	} {
		if _, err := Validate(context.Background(), raw, Policy{}, publicResolver()); err == nil {
			t.Fatalf("expected error for %q", raw)
		}
	}
}

func TestValidateAllowList(t *testing.T) {
	r := publicResolver()
	if _, err := Validate(context.Background(), "https://sub.example.com/page", Policy{Allow: []string{"*.example.com"}}, r); err != nil {
		t.Fatalf("expected allow via suffix, got %v", err)
	}
	if _, err := Validate(context.Background(), "https://other.org/", Policy{Allow: []string{"*.example.com"}}, r); err == nil {
		t.Fatal("expected rejection for host outside allow list")
	}
}

func TestValidateBlockList(t *testing.T) {
	r := publicResolver()
	if _, err := Validate(context.Background(), "https://example.com/", Policy{Block: []string{"example.com"}}, r); err == nil {
		t.Fatal("expected rejection for blocked host")
	}
}

func TestValidateRebindingProtection(t *testing.T) {
	if _, err := Validate(context.Background(), "https://evil.com/", Policy{}, publicResolver()); err == nil {
		t.Fatal("expected rejection when DNS resolves to a private IP")
	}
}

func TestValidateFailsClosedOnDNSError(t *testing.T) {
	r := &fakeResolver{err: &net.DNSError{Err: "timeout", IsTimeout: true}}
	if _, err := Validate(context.Background(), "https://example.com/", Policy{}, r); err == nil {
		t.Fatal("expected DNS failure to be fatal")
	}
}

// Idempotence: validating an already-canonical URL returns the same string.
func TestValidateIsIdempotent(t *testing.T) {
	r := publicResolver()
	first, err := Validate(context.Background(), "https://example.com/page?q=1", Policy{}, r)
	if err != nil {
		t.Fatalf("first validate: %v", err)
	}
	second, err := Validate(context.Background(), first, Policy{}, r)
	if err != nil {
		t.Fatalf("second validate: %v", err)
	}
	if first != second {
		t.Fatalf("validate is not idempotent: %q != %q", first, second)
	}
}
