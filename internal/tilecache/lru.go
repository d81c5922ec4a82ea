package tilecache

import (
	"container/list"
	"sync"
	"time"
)

// 文档注释：进程内瓦片响应 LRU，按条数与字节数双重限额
// 背景：低缩放级别的瓦片可包含全部点，单条响应可达数 MB；只按条数限额时少量大瓦片即可占满内存。
// 约束：键包含快照版本，数据替换后旧键不再命中，由淘汰自然回收；单条超过字节上限的值不缓存。
type LRU struct {
	mu       sync.Mutex
	maxItems int
	maxBytes int64
	used     int64
	ttl      time.Duration
	order    *list.List
	items    map[string]*list.Element
	now      func() time.Time
}

type lruItem struct {
	key     string
	body    []byte
	expires time.Time
}

// NewLRU：maxItems<=0 时关闭缓存；maxBytes<=0 表示不限字节
func NewLRU(maxItems int, maxBytes int64, ttl time.Duration) *LRU {
	return &LRU{
		maxItems: maxItems,
		maxBytes: maxBytes,
		ttl:      ttl,
		order:    list.New(),
		items:    make(map[string]*list.Element),
		now:      time.Now,
	}
}

func (c *LRU) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.items[key]
	if !ok {
		return nil, false
	}
	it := el.Value.(*lruItem)
	if !c.now().Before(it.expires) {
		c.remove(el)
		return nil, false
	}
	c.order.MoveToFront(el)
	return it.body, true
}

func (c *LRU) Set(key string, body []byte) {
	if c.maxItems <= 0 {
		return
	}
	size := int64(len(body))
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[key]; ok {
		c.remove(el)
	}
	if c.maxBytes > 0 && size > c.maxBytes {
		return
	}
	c.items[key] = c.order.PushFront(&lruItem{key: key, body: body, expires: c.now().Add(c.ttl)})
	c.used += size
	for c.order.Len() > c.maxItems || (c.maxBytes > 0 && c.used > c.maxBytes) {
		c.remove(c.order.Back())
	}
}

func (c *LRU) remove(el *list.Element) {
	it := el.Value.(*lruItem)
	c.order.Remove(el)
	delete(c.items, it.key)
	c.used -= int64(len(it.body))
}

// Len：当前条目数（含未清理的过期项）
func (c *LRU) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Bytes：当前缓存的响应字节总数
func (c *LRU) Bytes() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.used
}
