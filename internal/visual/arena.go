package visual

import (
	"fmt"
	"strconv"
	"strings"
)

// Handle identifies an arena entry. A handle stays valid until its entry is
// removed; after that it never resolves again, even once the slot is reused.
type Handle struct {
	index      int32
	generation uint32
}

// IsZero reports whether h is the zero handle, which never resolves.
func (h Handle) IsZero() bool { return h.generation == 0 }

// String formats h as "index.generation".
func (h Handle) String() string {
	return strconv.Itoa(int(h.index)) + "." + strconv.FormatUint(uint64(h.generation), 10)
}

// MarshalText implements [encoding.TextMarshaler].
func (h Handle) MarshalText() ([]byte, error) { return []byte(h.String()), nil }

// UnmarshalText parses the form produced by MarshalText.
func (h *Handle) UnmarshalText(b []byte) error {
	idx, gen, ok := strings.Cut(string(b), ".")
	if !ok {
		return fmt.Errorf("visual: malformed handle %q", b)
	}
	i, err := strconv.ParseInt(idx, 10, 32)
	if err != nil {
		return fmt.Errorf("visual: malformed handle %q: %w", b, err)
	}
	g, err := strconv.ParseUint(gen, 10, 32)
	if err != nil {
		return fmt.Errorf("visual: malformed handle %q: %w", b, err)
	}
	h.index, h.generation = int32(i), uint32(g)
	return nil
}

type slot[T any] struct {
	value      T
	generation uint32
	live       bool
	removed    bool
}

// Arena stores values behind generation-tagged handles. Remove only marks an
// entry; Compact frees marked slots for reuse. Iteration order is slot order
// and never changes while entries are removed.
//
// An Arena is not safe for concurrent use.
type Arena[T any] struct {
	slots []slot[T]
	free  []int32
	n     int
}

// Insert stores v and returns its handle.
func (a *Arena[T]) Insert(v T) Handle {
	var i int32
	if k := len(a.free); k > 0 {
		i = a.free[k-1]
		a.free = a.free[:k-1]
	} else {
		a.slots = append(a.slots, slot[T]{})
		i = int32(len(a.slots) - 1)
	}
	s := &a.slots[i]
	s.generation++
	s.value, s.live, s.removed = v, true, false
	a.n++
	return Handle{index: i, generation: s.generation}
}

func (a *Arena[T]) lookup(h Handle) *slot[T] {
	if h.IsZero() || h.index < 0 || int(h.index) >= len(a.slots) {
		return nil
	}
	s := &a.slots[h.index]
	if !s.live || s.removed || s.generation != h.generation {
		return nil
	}
	return s
}

// Get returns the value for h.
func (a *Arena[T]) Get(h Handle) (T, bool) {
	if s := a.lookup(h); s != nil {
		return s.value, true
	}
	var zero T
	return zero, false
}

// Update replaces the value for h. It reports false for a stale handle.
func (a *Arena[T]) Update(h Handle, v T) bool {
	s := a.lookup(h)
	if s == nil {
		return false
	}
	s.value = v
	return true
}

// Remove marks the entry for h as removed. It reports false for a stale
// handle.
func (a *Arena[T]) Remove(h Handle) bool {
	s := a.lookup(h)
	if s == nil {
		return false
	}
	s.removed = true
	a.n--
	return true
}

// Compact releases removed slots so Insert can reuse them.
func (a *Arena[T]) Compact() {
	for i := range a.slots {
		s := &a.slots[i]
		if s.live && s.removed {
			var zero T
			s.value, s.live, s.removed = zero, false, false
			a.free = append(a.free, int32(i))
		}
	}
}

// Each calls fn for every entry in slot order until fn returns false.
// Removing entries from fn is allowed.
func (a *Arena[T]) Each(fn func(Handle, T) bool) {
	for i := range a.slots {
		s := &a.slots[i]
		if !s.live || s.removed {
			continue
		}
		if !fn(Handle{index: int32(i), generation: s.generation}, s.value) {
			return
		}
	}
}

// Len returns the number of entries that are not removed.
func (a *Arena[T]) Len() int { return a.n }

// Clear removes every entry. Handles issued before stay stale.
func (a *Arena[T]) Clear() {
	a.Each(func(h Handle, _ T) bool {
		a.Remove(h)
		return true
	})
	a.Compact()
}
