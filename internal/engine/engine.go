// 包 engine：空间图层引擎，统一承载加载、瓦片查询、命中测试、范围计算与相机状态
package engine

import (
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"spatial-layer/internal/logger"
	"spatial-layer/internal/metrics"
	"spatial-layer/internal/pointstore"
	"spatial-layer/internal/spatial"

	"github.com/paulmach/orb/maptile"
)

// 文档注释：引擎对外调用面
// 背景：各平台适配层（HTTP、原生绑定）只做参数翻译，全部调用同一实现。
type Layer interface {
	Load(buf []float32) error
	LoadBytes(data []byte) error
	LoadBytesStatus(data []byte) (View, bool, error)
	View() View
	MemoryUsage() uint64
	TileQuery(x, y, z int) []TilePoint
	HitTest(lat, lon, toleranceDeg float64) (Hit, bool)
	CameraUpdate(lat, lon, zoom, widthPts, heightPts, density float64)
	Camera() (CameraState, bool)
	Bounds() (Bounds, bool)
	SetStyles(styles map[uint16]uint32)
	Styles() map[uint16]uint32
	Generation() uint64
	Version() string
}

// 加载结果快照：构建完成后只读，整体原子替换
type snapshot struct {
	gen       uint64
	ticket    uint64
	version   string // 内容指纹，跨进程稳定
	store     *pointstore.Store
	index     *spatial.Index
	bounds    Bounds
	hasBounds bool
	mem       uint64
	builtAt   time.Time
}

// 文档注释：引擎实例
// 背景：读路径只做一次原子指针读取，不与加载争锁；加载在旁路构建完成后一次性发布。
// 约束：commitMu 只保护发布时的序号比较与替换，构建过程不持锁；相机与样式各自原子替换，最后写入者生效。
type Engine struct {
	opts     Options
	log      *slog.Logger
	snap     atomic.Pointer[snapshot]
	tickets  atomic.Uint64
	commitMu sync.Mutex
	camera   atomic.Pointer[CameraState]
	styles   atomic.Pointer[map[uint16]uint32]
}

var _ Layer = (*Engine)(nil)

// New：创建空引擎
func New(opts Options) *Engine {
	opts = opts.normalized()
	e := &Engine{opts: opts, log: logger.Component("engine")}
	empty, _ := pointstore.Parse(nil)
	e.snap.Store(e.build(empty))
	return e
}

var (
	sharedOnce sync.Once
	shared     *Engine
)

// 文档注释：进程级共享引擎
// 背景：与原生绑定的单实例模型一致；首次调用时按环境变量创建，之后所有适配层复用同一实例。
func Shared() *Engine {
	sharedOnce.Do(func() { shared = New(OptionsFromEnv()) })
	return shared
}

// Options：引擎参数（已归一化）
func (e *Engine) Options() Options { return e.opts }

// 文档注释：加载 float32 点缓冲区
// 背景：全有或全无；解析或校验失败时返回错误，已发布的数据保持不变。
func (e *Engine) Load(buf []float32) error {
	_, _, err := e.load(len(buf)/pointstore.FloatsPerRecord, func() (*pointstore.Store, error) {
		return pointstore.Parse(buf)
	})
	return err
}

// LoadBytes：加载小端字节缓冲区，语义同 Load
func (e *Engine) LoadBytes(data []byte) error {
	_, _, err := e.LoadBytesStatus(data)
	return err
}

// 文档注释：加载字节缓冲区并报告发布结果
// 背景：返回加载结束时已发布快照的视图；published 为 false 表示本次结果已被更晚开始的加载取代，视图描述的是胜出的数据。
func (e *Engine) LoadBytesStatus(data []byte) (View, bool, error) {
	s, published, err := e.load(len(data)/pointstore.BytesPerRecord, func() (*pointstore.Store, error) {
		return pointstore.ParseBytes(data)
	})
	if err != nil {
		return View{}, false, err
	}
	return View{s: s}, published, nil
}

// 文档注释：加载主流程
// 背景：先领取序号再构建；发布时若已有更晚开始的加载发布过，则丢弃本次结果（非错误）。
// 约束：成功时返回提交后的当前快照，以及本次结果是否被发布。
func (e *Engine) load(records int, parse func() (*pointstore.Store, error)) (*snapshot, bool, error) {
	t0 := time.Now()
	ticket := e.tickets.Add(1)
	st, err := parse()
	if err != nil {
		metrics.LoadsTotal.WithLabelValues("rejected").Inc()
		e.log.Warn("points_load_rejected", "records", records, "err", err)
		return nil, false, err
	}
	next := e.build(st)
	e.commitMu.Lock()
	cur := e.snap.Load()
	if cur.ticket > ticket {
		e.commitMu.Unlock()
		metrics.LoadsTotal.WithLabelValues("superseded").Inc()
		e.log.Debug("points_load_superseded", "ticket", ticket, "published", cur.ticket)
		return cur, false, nil
	}
	next.ticket = ticket
	next.gen = cur.gen + 1
	e.snap.Store(next)
	e.commitMu.Unlock()

	metrics.LoadsTotal.WithLabelValues("ok").Inc()
	metrics.LoadDurationMs.Observe(float64(time.Since(t0).Milliseconds()))
	metrics.PointsLoaded.Set(float64(st.Len()))
	metrics.MemoryBytes.Set(float64(next.mem))
	e.log.Info("points_load_ok",
		"points", st.Len(),
		"buckets", next.index.Buckets(),
		"bytes", next.mem,
		"generation", next.gen,
		"version", next.version,
		"duration_ms", time.Since(t0).Milliseconds(),
	)
	return next, true, nil
}

func (e *Engine) build(st *pointstore.Store) *snapshot {
	ix := spatial.Build(st, maptile.Zoom(e.opts.CanonicalZoom))
	s := &snapshot{store: st, index: ix, builtAt: time.Now()}
	s.version = strconv.FormatUint(st.Fingerprint(), 16)
	s.bounds, s.hasBounds = computeBounds(st, e.opts)
	s.mem = st.Bytes() + ix.Bytes()
	return s
}

// MemoryUsage：最近一次成功加载的记录数组与索引占用字节数
func (e *Engine) MemoryUsage() uint64 { return e.snap.Load().mem }

// Len：已发布的点数
func (e *Engine) Len() int { return e.snap.Load().store.Len() }

// Generation：发布代数，每次成功发布加一；空引擎为 0
func (e *Engine) Generation() uint64 { return e.snap.Load().gen }

// Version：当前快照的内容指纹（十六进制）
func (e *Engine) Version() string { return e.snap.Load().version }

// LoadedAt：当前快照的构建时间
func (e *Engine) LoadedAt() time.Time { return e.snap.Load().builtAt }
