package pool

import (
	"bytes"
	"sync"
)

// maxPooledBufferSize буферы крупнее не возвращаются в пул,
// чтобы редкий большой кадр не удерживал память навсегда
const maxPooledBufferSize = 64 * 1024

// ObjectPools содержит пулы объектов для переиспользования
type ObjectPools struct {
	// Буферы для сериализации кадров рассылки
	bufferPool sync.Pool
}

// Global пулы объектов
var Global = &ObjectPools{
	bufferPool: sync.Pool{
		New: func() interface{} {
			return bytes.NewBuffer(make([]byte, 0, 1024))
		},
	},
}

// GetBuffer получает буфер из пула
func (p *ObjectPools) GetBuffer() *bytes.Buffer {
	buf := p.bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	return buf
}

// PutBuffer возвращает буфер в пул
func (p *ObjectPools) PutBuffer(buf *bytes.Buffer) {
	if buf.Cap() > maxPooledBufferSize {
		return
	}
	p.bufferPool.Put(buf)
}
