package protection

import "container/list"

// keyIndex tracks touch order for a bounded set of keys. Each component pairs
// one keyIndex with its entry map so that admission beyond capacity evicts the
// least-recently-touched key first. Not safe for concurrent use; callers hold
// their component lock.
type keyIndex struct {
	order    *list.List               // front = most recently touched
	elements map[string]*list.Element // element value is the key string
	capacity int
}

func newKeyIndex(capacity int) *keyIndex {
	return &keyIndex{
		order:    list.New(),
		elements: make(map[string]*list.Element),
		capacity: capacity,
	}
}

// touch marks a key as most recently used, admitting it if new.
// When admission exceeds capacity the evicted key is returned so the caller
// can drop its entry.
func (ix *keyIndex) touch(key string) (evicted string, ok bool) {
	if el, exists := ix.elements[key]; exists {
		ix.order.MoveToFront(el)
		return "", false
	}

	ix.elements[key] = ix.order.PushFront(key)

	if ix.capacity > 0 && ix.order.Len() > ix.capacity {
		oldest := ix.order.Back()
		if oldest != nil {
			key := oldest.Value.(string)
			ix.order.Remove(oldest)
			delete(ix.elements, key)
			return key, true
		}
	}
	return "", false
}

// remove drops a key from the index
func (ix *keyIndex) remove(key string) {
	if el, exists := ix.elements[key]; exists {
		ix.order.Remove(el)
		delete(ix.elements, key)
	}
}

func (ix *keyIndex) len() int {
	return ix.order.Len()
}
