package types

import "testing"

func TestElementDigestDeterministic(t *testing.T) {
	p1 := Permission{Nonce: NewNonce(42), Actions: []Action{"sign-in", "send-message"}, Version: 3}
	p2 := Permission{Nonce: NewNonce(42), Actions: []Action{"sign-in", "send-message"}, Version: 3}

	d1 := ElementDigest(p1)
	d2 := ElementDigest(p2)
	if d1.Cmp(d2) != 0 {
		t.Errorf("ElementDigest not deterministic: %s != %s", d1, d2)
	}
}

func TestElementDigestSensitiveToFields(t *testing.T) {
	base := Permission{Nonce: NewNonce(1), Actions: []Action{"a"}, Version: 0}
	variants := []Permission{
		{Nonce: NewNonce(2), Actions: []Action{"a"}, Version: 0},
		{Nonce: NewNonce(1), Actions: []Action{"b"}, Version: 0},
		{Nonce: NewNonce(1), Actions: []Action{"a"}, Version: 1},
		{Nonce: NewNonce(1), Actions: []Action{"a", "b"}, Version: 0},
	}
	baseDigest := ElementDigest(base)
	for i, v := range variants {
		if ElementDigest(v).Cmp(baseDigest) == 0 {
			t.Errorf("variant %d produced the same digest as base", i)
		}
	}
}

func TestElementDigestIsPrime(t *testing.T) {
	perms := []Permission{
		{Nonce: NewNonce(1), Actions: []Action{"a"}, Version: 0},
		{Nonce: NewNonce(2), Actions: []Action{"b"}, Version: 1},
		{Nonce: NewNonce(0x1a2b), Actions: []Action{"sign-in", "send-message"}, Version: 7},
		{Nonce: NewNonce(999999), Actions: nil, Version: 3},
	}
	for i, p := range perms {
		if !ElementDigest(p).ProbablyPrime(20) {
			t.Errorf("ElementDigest(perm %d) is not prime", i)
		}
	}
}

func TestElementDigestOrderSensitive(t *testing.T) {
	p1 := Permission{Nonce: NewNonce(1), Actions: []Action{"a", "b"}, Version: 0}
	p2 := Permission{Nonce: NewNonce(1), Actions: []Action{"b", "a"}, Version: 0}
	if ElementDigest(p1).Cmp(ElementDigest(p2)) == 0 {
		t.Error("digest should be sensitive to action order")
	}
}
