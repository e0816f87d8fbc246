package cache

import "sync"

// Stamp is the version of a key observed before a load started.
type Stamp struct {
	epoch   uint64
	version uint64
}

// Fence versions keys so a load that began before an invalidation does not
// write back the row it read. The zero value is ready to use.
type Fence struct {
	mu    sync.Mutex
	epoch uint64
	keys  map[string]uint64
}

// Stamp captures the current version of key. Take it before reading the
// primary store.
func (f *Fence) Stamp(key string) Stamp {
	f.mu.Lock()
	defer f.mu.Unlock()
	return Stamp{epoch: f.epoch, version: f.keys[key]}
}

// Bump invalidates outstanding stamps for keys.
func (f *Fence) Bump(keys ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.keys == nil {
		f.keys = make(map[string]uint64)
	}
	for _, k := range keys {
		f.keys[k]++
	}
}

// BumpAll invalidates every outstanding stamp.
func (f *Fence) BumpAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.epoch++
	f.keys = nil
}

// Commit runs write only if key has not been bumped since s was taken.
// write runs under the fence lock so a concurrent Bump cannot slip between
// the check and the store write.
func (f *Fence) Commit(key string, s Stamp, write func()) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s.epoch != f.epoch || s.version != f.keys[key] {
		return false
	}
	write()
	return true
}
