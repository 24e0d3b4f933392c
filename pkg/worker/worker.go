package worker

import (
	"math/big"
	"runtime"
	"sync"

	"github.com/cuemby/warden/pkg/accumulator"
	"github.com/cuemby/warden/pkg/protocol"
	"github.com/cuemby/warden/pkg/types"
)

// entry is one permission's current (Permission, Witness) pair. addedAt is
// the position of the permission's add in the current window's batch log,
// meaningful only for entries in the additions map.
type entry struct {
	Perm    types.Permission
	Witness accumulator.Witness
	addedAt int
}

// Worker absorbs permission additions and updates during a window and
// performs a batched, parallel refresh of every outstanding Witness.
type Worker struct {
	// acc mirrors the Authority's staging accumulator using public-key-only
	// operations. nil until SetKey succeeds.
	acc *accumulator.Accumulator

	// update is the batch log absorbed during the current window.
	update *accumulator.Update

	// additions holds permissions added during the current window, each
	// carrying its witness as of its own add time.
	additions map[types.Nonce]entry

	// serving is the stable map read by Witness.
	serving map[types.Nonce]entry

	// updatingAdditions and updatingServing are working copies captured by
	// the most recent Update call; updatingServing persists across windows
	// and becomes serving once Sync runs.
	updatingAdditions map[types.Nonce]entry
	updatingServing   map[types.Nonce]entry

	accMu    sync.Mutex
	updateMu sync.Mutex
	keyed    bool
}

// New returns an unkeyed Worker.
func New() *Worker {
	return &Worker{
		update:            accumulator.NewUpdate(),
		additions:         make(map[types.Nonce]entry),
		serving:           make(map[types.Nonce]entry),
		updatingAdditions: make(map[types.Nonce]entry),
		updatingServing:   make(map[types.Nonce]entry),
	}
}

// SetKey submits the Authority's public key, allocating the Worker's
// accumulator. One-shot; a second call fails with already_keyed.
func (w *Worker) SetKey(pub accumulator.PublicKey) error {
	w.accMu.Lock()
	defer w.accMu.Unlock()

	if w.keyed {
		return protocol.NewError(protocol.ErrAlreadyKeyed, "worker already has a public key")
	}
	w.acc = accumulator.WithPublicKey(pub)
	w.keyed = true
	return nil
}

// AddPermission absorbs a new Permission into the current update window. The
// stored witness is the mirrored accumulation value just before the add; the
// batch ops logged after it advance it to the window's final value.
func (w *Worker) AddPermission(perm types.Permission) error {
	w.accMu.Lock()
	defer w.accMu.Unlock()

	if !w.keyed {
		return protocol.NewError(protocol.ErrNoKey, "worker has no public key")
	}
	element := types.ElementDigest(perm)
	witness := w.acc.Add(element)
	pos := w.update.Add(element, witness.Value)
	w.additions[perm.Nonce] = entry{Perm: perm, Witness: witness, addedAt: pos}
	return nil
}

// UpdatePermission absorbs an updated Permission: a deletion of the old
// version, then an addition of the new one. The presented deletion witness
// is itself the post-delete accumulation value, so it doubles as the new
// version's witness at its add time; the mirrored accumulation value is then
// overwritten with the Authority-provided post-add value, which the Worker
// cannot compute without the trapdoor.
func (w *Worker) UpdatePermission(res protocol.UpdateResponse) error {
	w.accMu.Lock()
	defer w.accMu.Unlock()

	if !w.keyed {
		return protocol.NewError(protocol.ErrNoKey, "worker has no public key")
	}
	w.update.Del(types.ElementDigest(res.Req.Perm), res.Req.Witness.Value)

	element := types.ElementDigest(res.Req.Update)
	base := new(big.Int).Set(res.Req.Witness.Value)
	pos := w.update.Add(element, base)
	w.additions[res.Req.Update.Nonce] = entry{
		Perm:    res.Req.Update,
		Witness: accumulator.Witness{Value: base},
		addedAt: pos,
	}
	w.acc.SetValue(res.Value)
	return nil
}

// Witness returns the current Witness stored for nonce, if any.
func (w *Worker) Witness(nonce types.Nonce) (accumulator.Witness, bool, error) {
	w.accMu.Lock()
	defer w.accMu.Unlock()

	if !w.keyed {
		return accumulator.Witness{}, false, protocol.NewError(protocol.ErrNoKey, "worker has no public key")
	}
	e, ok := w.serving[nonce]
	if !ok {
		return accumulator.Witness{}, false, nil
	}
	return e.Witness, true, nil
}

// Update runs the batched, parallel witness refresh. It briefly holds accMu
// to snapshot the batch log and capture the window's additions, then
// releases it so AddPermission/UpdatePermission may proceed against the next
// window while the CPU-bound refresh runs. updateMu is held for the whole
// call, ensuring only one refresh runs at a time and that Sync runs exactly
// once per Update.
func (w *Worker) Update() error {
	w.updateMu.Lock()
	defer w.updateMu.Unlock()

	w.accMu.Lock()
	if !w.keyed {
		w.accMu.Unlock()
		return protocol.NewError(protocol.ErrNoKey, "worker has no public key")
	}
	updateSnapshot := w.update.Clone()
	w.updatingAdditions = w.additions
	w.additions = make(map[types.Nonce]entry)
	w.update = accumulator.NewUpdate()
	pub := w.acc.GetPublicKey()
	w.accMu.Unlock()

	parallelRefresh(pub, updateSnapshot, w.updatingAdditions, w.updatingServing)
	return nil
}

// Sync finalizes the update: additions absorbed this window join the
// serving generation, which is then published under accMu.
func (w *Worker) Sync() error {
	w.updateMu.Lock()
	defer w.updateMu.Unlock()

	for nonce, e := range w.updatingAdditions {
		w.updatingServing[nonce] = e
	}

	w.accMu.Lock()
	serving := make(map[types.Nonce]entry, len(w.updatingServing))
	for k, v := range w.updatingServing {
		serving[k] = v
	}
	w.serving = serving
	w.accMu.Unlock()
	return nil
}

// refreshJob pairs one map entry with the WitnessRef being rewritten for it.
type refreshJob struct {
	m       map[types.Nonce]entry
	nonce   types.Nonce
	ref     *accumulator.WitnessRef
	isAdded bool
}

// parallelRefresh rewrites every witness in additions and existing in place,
// partitioning the work across runtime.NumCPU() goroutines. Additions
// advance from their own add position; existing witnesses replay the full
// batch. A refresh replaying a stale witness simply produces an invalid one,
// which the Authority rejects at the next action check; there is no failure
// mode to propagate here.
func parallelRefresh(pub accumulator.PublicKey, u *accumulator.Update, additions, existing map[types.Nonce]entry) {
	jobs := make([]refreshJob, 0, len(additions)+len(existing))
	for nonce, e := range additions {
		jobs = append(jobs, refreshJob{m: additions, nonce: nonce, isAdded: true, ref: &accumulator.WitnessRef{
			Element: types.ElementDigest(e.Perm),
			Witness: new(big.Int).Set(e.Witness.Value),
			AddedAt: e.addedAt,
		}})
	}
	for nonce, e := range existing {
		jobs = append(jobs, refreshJob{m: existing, nonce: nonce, ref: &accumulator.WitnessRef{
			Element: types.ElementDigest(e.Perm),
			Witness: new(big.Int).Set(e.Witness.Value),
		}})
	}
	if len(jobs) == 0 {
		return
	}

	workers := runtime.NumCPU()
	if workers > len(jobs) {
		workers = len(jobs)
	}
	chunk := (len(jobs) + workers - 1) / workers

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		start := i * chunk
		if start >= len(jobs) {
			break
		}
		end := start + chunk
		if end > len(jobs) {
			end = len(jobs)
		}

		wg.Add(1)
		go func(slice []refreshJob) {
			defer wg.Done()
			var added, kept []*accumulator.WitnessRef
			for _, j := range slice {
				if j.isAdded {
					added = append(added, j.ref)
				} else {
					kept = append(kept, j.ref)
				}
			}
			u.UpdateWitnesses(pub, added, kept)
		}(jobs[start:end])
	}
	wg.Wait()

	for _, j := range jobs {
		e := j.m[j.nonce]
		e.Witness = accumulator.Witness{Value: j.ref.Witness}
		j.m[j.nonce] = e
	}
}
