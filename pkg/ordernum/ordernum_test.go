package ordernum

import "testing"

func TestNewFormat(t *testing.T) {
	num, err := New()
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	if !Valid(num) {
		t.Fatalf("generated number %q failed validation", num)
	}
}

func TestNewUniqueness(t *testing.T) {
	seen := make(map[string]struct{}, 10000)
	for i := 0; i < 10000; i++ {
		num, err := New()
		if err != nil {
			t.Fatalf("New error: %v", err)
		}
		if _, dup := seen[num]; dup {
			t.Fatalf("duplicate order number %q after %d draws", num, i)
		}
		seen[num] = struct{}{}
	}
}

func TestValidRejectsMalformed(t *testing.T) {
	bad := []string{
		"",
		"SOKO-",
		"SOKO-short",
		"MRKT-4R7WQ2M8XK",
		"SOKO-4r7wq2m8xk",  // lowercase not in alphabet
		"SOKO-4R7WQ2M8XKZ", // too long
	}
	for _, value := range bad {
		if Valid(value) {
			t.Fatalf("Valid(%q) = true, want false", value)
		}
	}
}
