package types

import (
	"encoding/binary"
	"math/big"

	"golang.org/x/crypto/blake2b"
)

// digestSize is the fixed 128-bit accumulator element width.
const digestSize = 16

// ElementDigest canonicalizes a Permission to a deterministic byte string,
// hashes it to a fixed 128-bit integer, and maps that integer to a prime
// representative suitable as an accumulator element. The prime mapping keeps
// any two distinct elements coprime, which the batched witness refresh's
// extended-Euclidean rotation depends on. Any two services computing the
// digest of the same Permission value must agree bit-for-bit, so the
// encoding below fixes field order and length-prefixes every
// variable-length component.
func ElementDigest(p Permission) *big.Int {
	h, err := blake2b.New(digestSize, nil)
	if err != nil {
		// Only returns an error for out-of-range sizes or oversized keys;
		// digestSize is a compile-time constant within blake2b's bounds.
		panic(err)
	}

	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], p.Nonce.Uint64())
	h.Write(buf[:])
	binary.BigEndian.PutUint64(buf[:], p.Version)
	h.Write(buf[:])

	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(p.Actions)))
	h.Write(lenBuf[:])
	for _, action := range p.Actions {
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(action)))
		h.Write(lenBuf[:])
		h.Write([]byte(action))
	}

	sum := h.Sum(nil)
	return nextPrime(new(big.Int).SetBytes(sum))
}

// nextPrime returns the smallest odd probable prime >= v. The search is
// deterministic, so independent processes map the same digest to the same
// element.
func nextPrime(v *big.Int) *big.Int {
	one := big.NewInt(1)
	two := big.NewInt(2)
	p := new(big.Int).Set(v)
	if p.Bit(0) == 0 {
		p.Add(p, one)
	}
	for !p.ProbablyPrime(20) {
		p.Add(p, two)
	}
	return p
}
