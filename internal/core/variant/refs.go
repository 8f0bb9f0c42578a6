package variant

// RefCount is the bookkeeping block shared between a counted object and
// its weak references. Objects embed one and hand it out through the
// RefCounted interface; weak references keep a pointer to the same block
// so expiry stays visible after the object itself is torn down.
//
// The count block is not goroutine-safe. Reference bookkeeping belongs to
// the single main goroutine, like the rest of the object layer.
type RefCount struct {
	refs     int
	weakRefs int
	expired  bool
}

// AddRef increments the strong count and returns the new value.
func (rc *RefCount) AddRef() int {
	rc.refs++
	return rc.refs
}

// ReleaseRef decrements the strong count and returns the new value. The
// caller owning the object decides what to do when it reaches zero; the
// block itself only counts.
func (rc *RefCount) ReleaseRef() int {
	rc.refs--
	return rc.refs
}

// AddWeakRef counts a new weak handle.
func (rc *RefCount) AddWeakRef() int {
	rc.weakRefs++
	return rc.weakRefs
}

// ReleaseWeakRef counts a released weak handle.
func (rc *RefCount) ReleaseWeakRef() int {
	rc.weakRefs--
	return rc.weakRefs
}

// MarkExpired flags the object as torn down. Weak references start
// returning nil from Get after this.
func (rc *RefCount) MarkExpired() {
	rc.expired = true
}

// Refs returns the current strong count.
func (rc *RefCount) Refs() int { return rc.refs }

// WeakRefs returns the current weak handle count.
func (rc *RefCount) WeakRefs() int { return rc.weakRefs }

// Expired reports whether the object has been torn down.
func (rc *RefCount) Expired() bool { return rc.expired }

// RefCounted is implemented by engine objects with explicit reference
// bookkeeping. The object exposes its count block; everything else
// (strong/weak counts, expiry) goes through the block.
type RefCounted interface {
	RefCount() *RefCount
}

// WeakRef is a non-owning handle to a RefCounted object. Dereferencing an
// expired handle yields nil, never a dangling target. The zero WeakRef is
// valid and permanently expired.
//
// WeakRef is a plain value; copies share the same count block. Release is
// optional: the garbage collector reclaims unreleased handles, releasing
// only keeps the diagnostic weak count accurate.
type WeakRef struct {
	counts *RefCount
	target RefCounted
}

// NewWeakRef takes a weak handle on target. A nil target yields the zero
// (expired) handle.
func NewWeakRef(target RefCounted) WeakRef {
	if target == nil {
		return WeakRef{}
	}
	rc := target.RefCount()
	rc.AddWeakRef()
	return WeakRef{counts: rc, target: target}
}

// Get returns the target, or nil when the handle is empty or the target
// has expired.
func (w WeakRef) Get() RefCounted {
	if w.counts == nil || w.counts.expired {
		return nil
	}
	return w.target
}

// Raw returns the target without a liveness check. Used for identity
// comparison; never dereference the result of Raw on an expired handle.
func (w WeakRef) Raw() RefCounted { return w.target }

// Expired reports whether the handle no longer resolves.
func (w WeakRef) Expired() bool {
	return w.counts == nil || w.counts.expired
}

// Release gives the weak handle back. Safe on the zero handle.
func (w WeakRef) Release() {
	if w.counts != nil {
		w.counts.ReleaseWeakRef()
	}
}
