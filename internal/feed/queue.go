package feed

import (
	"container/heap"
	"sync"
	"time"

	"github.com/olvesh/airsportslivetracking/internal/models"
)

// delayedItem позиция с временем выдачи из очереди
type delayedItem struct {
	position *models.Position
	// releaseAt момент, раньше которого позиция не выдается
	releaseAt time.Time
	index     int
}

type delayedHeap []*delayedItem

func (h delayedHeap) Len() int { return len(h) }

func (h delayedHeap) Less(i, j int) bool {
	if h[i].releaseAt.Equal(h[j].releaseAt) {
		return h[i].position.Time.Before(h[j].position.Time)
	}
	return h[i].releaseAt.Before(h[j].releaseAt)
}

func (h delayedHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *delayedHeap) Push(x interface{}) {
	item := x.(*delayedItem)
	item.index = len(*h)
	*h = append(*h, item)
}

func (h *delayedHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

// DelayQueue очередь позиций с задержкой выдачи. Позиция становится
// доступной, когда ее время плюс задержка расчета остались в прошлом.
// Задержка дает поздним пакетам шанс встать на свое место до того,
// как расчет зафиксирует результат.
type DelayQueue struct {
	mu     sync.Mutex
	heap   delayedHeap
	delay  time.Duration
	notify chan struct{}
	closed bool
}

// NewDelayQueue создает очередь с заданной задержкой расчета
func NewDelayQueue(delay time.Duration) *DelayQueue {
	q := &DelayQueue{
		delay:  delay,
		notify: make(chan struct{}, 1),
	}
	heap.Init(&q.heap)
	return q
}

// Put кладет позицию в очередь
func (q *DelayQueue) Put(position *models.Position) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	heap.Push(&q.heap, &delayedItem{
		position:  position,
		releaseAt: position.Time.Add(q.delay),
	})
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// Len возвращает число позиций в очереди
func (q *DelayQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.heap.Len()
}

// Close закрывает очередь, дальнейшие Put игнорируются
func (q *DelayQueue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// PopWait забирает следующую готовую позицию, ожидая не дольше
// timeout. Возвращает nil по таймауту или закрытию очереди: вызывающий
// использует таймаут для периодических проверок завершения.
func (q *DelayQueue) PopWait(timeout time.Duration) *models.Position {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		q.mu.Lock()
		if q.closed && q.heap.Len() == 0 {
			q.mu.Unlock()
			return nil
		}
		var wait time.Duration
		if q.heap.Len() > 0 {
			ready := time.Until(q.heap[0].releaseAt)
			if ready <= 0 {
				item := heap.Pop(&q.heap).(*delayedItem)
				q.mu.Unlock()
				return item.position
			}
			wait = ready
		}
		q.mu.Unlock()

		if wait <= 0 {
			// очередь пуста, ждем прихода позиции или таймаута
			select {
			case <-q.notify:
				continue
			case <-deadline.C:
				return nil
			}
		}

		release := time.NewTimer(wait)
		select {
		case <-q.notify:
			release.Stop()
		case <-release.C:
		case <-deadline.C:
			release.Stop()
			return nil
		}
	}
}
