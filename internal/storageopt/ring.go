package storageopt

// Ring 定长环形缓冲区，写满后覆盖最旧的元素。
//
// Ring 本身不加锁，由持有方负责同步（xquery.Tracker 在自身互斥锁内访问）。
type Ring[T any] struct {
	buf  []T
	head int // 下一个写入位置
	size int
}

// NewRing 创建容量为 capacity 的环形缓冲区，capacity < 1 时按 1 处理。
func NewRing[T any](capacity int) *Ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring[T]{buf: make([]T, capacity)}
}

// Push 追加元素。缓冲区已满时覆盖最旧元素并返回 true。
func (r *Ring[T]) Push(v T) (evicted bool) {
	evicted = r.size == len(r.buf)
	r.buf[r.head] = v
	r.head = (r.head + 1) % len(r.buf)
	if !evicted {
		r.size++
	}
	return evicted
}

// Len 返回当前元素个数。
func (r *Ring[T]) Len() int {
	return r.size
}

// Cap 返回容量。
func (r *Ring[T]) Cap() int {
	return len(r.buf)
}

// Snapshot 按从旧到新的顺序返回元素副本。
func (r *Ring[T]) Snapshot() []T {
	out := make([]T, 0, r.size)
	start := (r.head - r.size + len(r.buf)) % len(r.buf)
	for i := range r.size {
		out = append(out, r.buf[(start+i)%len(r.buf)])
	}
	return out
}

// DropWhile 从最旧一端连续丢弃满足 pred 的元素，返回丢弃数量。
// 用于按保留时长清理过期指标。
func (r *Ring[T]) DropWhile(pred func(T) bool) int {
	var zero T
	dropped := 0
	start := (r.head - r.size + len(r.buf)) % len(r.buf)
	for r.size > 0 && pred(r.buf[start]) {
		r.buf[start] = zero
		start = (start + 1) % len(r.buf)
		r.size--
		dropped++
	}
	return dropped
}

// Reset 清空缓冲区。
func (r *Ring[T]) Reset() {
	clear(r.buf)
	r.head = 0
	r.size = 0
}
