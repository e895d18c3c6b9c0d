// Package orderedmap provides a map that keeps the insertion order of its
// elements.
package orderedmap

import "container/list"

type entry[K comparable, V any] struct {
	key K
	val V
}

// Map is a map datastructure that allows accessing it's element in a
// fixed order.
// It is not safe for concurrent use.
type Map[K comparable, V any] struct {
	order   *list.List
	m       map[K]*list.Element
	zeroval V
}

func New[K comparable, V any]() *Map[K, V] {
	return &Map[K, V]{
		order: list.New(),
		m:     map[K]*list.Element{},
	}
}

// EnqueueIfNotExist appends val to the map if key does not exist.
func (m *Map[K, V]) EnqueueIfNotExist(key K, val V) (added bool) {
	if _, exist := m.m[key]; exist {
		return false
	}

	m.m[key] = m.order.PushBack(&entry[K, V]{key: key, val: val})

	return true
}

// PopFront removes the first element from the map and returns it.
func (m *Map[K, V]) PopFront() (val V, ok bool) {
	e := m.order.Front()
	if e == nil {
		return m.zeroval, false
	}

	ent := m.order.Remove(e).(*entry[K, V])
	delete(m.m, ent.key)

	return ent.val, true
}

// Len returns the number of elements in the maps.
func (m *Map[K, V]) Len() int {
	return m.order.Len()
}

// Foreach itereates through the map in order.
// When fn returns false the iteration is aborted.
func (m *Map[K, V]) Foreach(fn func(V) bool) {
	for e := m.order.Front(); e != nil; e = e.Next() {
		if !fn(e.Value.(*entry[K, V]).val) {
			return
		}
	}
}

// AsSlice returns a new slice containing the elements of the map in order.
func (m *Map[K, V]) AsSlice() []V {
	result := make([]V, 0, m.order.Len())

	m.Foreach(func(v V) bool {
		result = append(result, v)
		return true
	})

	return result
}
