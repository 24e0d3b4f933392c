/*
Package worker implements the public-key-only side of the authorization
protocol: absorbing permission additions and deletions from the Authority,
and incrementally maintaining per-permission witnesses.

The Worker never holds the trapdoor. It mirrors the Authority's accumulator
using only public-key operations, and the hot path — the batched witness
refresh in Update — runs across every CPU in parallel while continuing to
accept new writes for the next window.

# Concurrency

Two mutexes coordinate the Worker:

  - accMu protects acc, update, and additions. It is held only for the
    short absorb operations and the brief snapshot phase of Update.
  - updateMu is held for the duration of one Update call, preventing two
    refreshes from interleaving and guaranteeing Sync runs exactly once per
    Update.

accMu is released before the parallel refresh begins, so add/update calls
for the next window are never blocked on the current window's refresh.

# Usage

	w := worker.New()
	w.SetKey(pub)
	w.AddPermission(perm)
	w.Update()
	w.Sync()
	witness, ok, err := w.Witness(nonce)
*/
package worker
