package prmonitor

import (
	"sync"

	"github.com/simplesurance/mergebot/internal/orderedmap"
)

type itemKey struct {
	repositoryURL string
	pullRequestID int
}

func keyOf(item *Item) itemKey {
	return itemKey{
		repositoryURL: item.PullRequest.Repository.URL,
		pullRequestID: item.PullRequest.ID,
	}
}

// queue is a FIFO work queue that contains every pull request at most
// once.
// It is safe for concurrent use.
type queue struct {
	lock  sync.Mutex
	items *orderedmap.Map[itemKey, *Item]
}

func newQueue() *queue {
	return &queue{items: orderedmap.New[itemKey, *Item]()}
}

// Enqueue appends item to the queue.
// It returns false if the pull request is already queued.
func (q *queue) Enqueue(item *Item) bool {
	q.lock.Lock()
	defer q.lock.Unlock()

	added := q.items.EnqueueIfNotExist(keyOf(item), item)
	if added {
		metrics.QueueSizeSet(q.items.Len())
	}

	return added
}

// Dequeue removes the first item from the queue.
func (q *queue) Dequeue() (*Item, bool) {
	q.lock.Lock()
	defer q.lock.Unlock()

	item, ok := q.items.PopFront()
	if ok {
		metrics.QueueSizeSet(q.items.Len())
	}

	return item, ok
}

func (q *queue) Len() int {
	q.lock.Lock()
	defer q.lock.Unlock()

	return q.items.Len()
}

func (q *queue) AsSlice() []*Item {
	q.lock.Lock()
	defer q.lock.Unlock()

	return q.items.AsSlice()
}
