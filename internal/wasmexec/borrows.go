package wasmexec

// borrowKey identifies one scoped borrow: the borrow id the compiled
// module assigned, plus the function and frame depth it was taken in.
// Releases must present the same key, so a borrow escaping its frame is
// caught as a trap rather than silently leaking.
type borrowKey struct {
	id         uint32
	function   string
	frameDepth int
}

// currentBorrowSite reports the function and depth the executing code
// borrows from; host imports record against their wasm caller, not the
// import itself.
func (x *Executor) currentBorrowSite() (string, int) {
	depth := len(x.callStack)
	if depth == 0 {
		return "<entry>", 0
	}
	return x.callStack[depth-1], depth
}

// recordBorrow tracks one borrow at the current site. Re-borrowing the
// same id in the same frame stacks.
func (x *Executor) recordBorrow(id uint32) {
	fn, depth := x.currentBorrowSite()
	if x.borrows == nil {
		x.borrows = make(map[borrowKey]int)
	}
	x.borrows[borrowKey{id: id, function: fn, frameDepth: depth}]++
}

// releaseBorrow drops one borrow recorded at the current site; releasing
// a borrow that was never recorded here is a trap.
func (x *Executor) releaseBorrow(id uint32) error {
	fn, depth := x.currentBorrowSite()
	key := borrowKey{id: id, function: fn, frameDepth: depth}
	n, ok := x.borrows[key]
	if !ok {
		return x.trapf("release of unrecorded borrow %d", id)
	}
	if n <= 1 {
		delete(x.borrows, key)
	} else {
		x.borrows[key] = n - 1
	}
	return nil
}

// liveBorrows counts the borrows currently recorded for id across all
// frames.
func (x *Executor) liveBorrows(id uint32) int {
	total := 0
	for k, n := range x.borrows {
		if k.id == id {
			total += n
		}
	}
	return total
}
