// 包 pointstore：点记录的解析、校验与内存核算；一次加载生成一个不可变的 Store
package pointstore

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"unsafe"

	"github.com/cespare/xxhash/v2"
)

// 每条记录的 float32 个数与字节数：(lat, lon, id, type)
const (
	FloatsPerRecord = 4
	BytesPerRecord  = FloatsPerRecord * 4
)

var (
	// ErrInvalidFormat：缓冲区长度不是整条记录的倍数
	ErrInvalidFormat = errors.New("pointstore: invalid format")
	// ErrOutOfRange：坐标、id 或 type 越界或非有限值
	ErrOutOfRange = errors.New("pointstore: coordinate out of range")
	// ErrDuplicateID：同一批数据中 id 重复
	ErrDuplicateID = errors.New("pointstore: duplicate id")
)

// Point：单个地理点；Type 仅用于选择渲染颜色，引擎不解释
type Point struct {
	ID   uint32
	Type uint16
	Lat  float64
	Lon  float64
}

// 文档注释：不可变点集
// 背景：加载完成后只读共享，按加载顺序保存；替换只能通过下一次成功加载整体完成。
type Store struct {
	points []Point
}

// Len：点数
func (s *Store) Len() int {
	if s == nil {
		return 0
	}
	return len(s.points)
}

// At：按加载顺序取第 i 个点
func (s *Store) At(i int) Point { return s.points[i] }

// Points：返回底层切片，调用方不得修改
func (s *Store) Points() []Point {
	if s == nil {
		return nil
	}
	return s.points
}

// Bytes：记录数组占用字节数（按容量计）
func (s *Store) Bytes() uint64 {
	if s == nil {
		return 0
	}
	return uint64(cap(s.points)) * uint64(unsafe.Sizeof(Point{}))
}

// 文档注释：点集内容指纹
// 背景：按加载格式逐条写入 xxhash，与进程、加载次数无关；相同记录序列在任意实例上得到相同值，可作为跨实例缓存键。
// 约束：记录顺序参与计算；经 float32 往返后等价的输入（如小数 id 截断）得到相同指纹。
func (s *Store) Fingerprint() uint64 {
	d := xxhash.New()
	var rec [BytesPerRecord]byte
	for _, p := range s.Points() {
		putRecord(rec[:], p)
		_, _ = d.Write(rec[:])
	}
	return d.Sum64()
}

// 文档注释：从 float32 序列解析点集
// 背景：与前端 Float32Array 布局一致，每 4 个数为一条 (lat, lon, id, type)；id/type 以截断方式转为整数。
// 约束：长度不是 4 的倍数返回 ErrInvalidFormat；任一记录越界或 id 重复则整体拒绝，不做逐条过滤。
func Parse(buf []float32) (*Store, error) {
	if len(buf)%FloatsPerRecord != 0 {
		return nil, fmt.Errorf("%w: %d floats is not a multiple of %d", ErrInvalidFormat, len(buf), FloatsPerRecord)
	}
	n := len(buf) / FloatsPerRecord
	b := newBuilder(n)
	for i := 0; i < n; i++ {
		r := buf[i*FloatsPerRecord : i*FloatsPerRecord+FloatsPerRecord]
		if err := b.add(i, r[0], r[1], r[2], r[3]); err != nil {
			return nil, err
		}
	}
	return b.store(), nil
}

// 文档注释：从小端字节序列解析点集
// 背景：数据文件或网络载荷直接按记录解码，不经过中间 float32 切片。
// 约束：字节长度需为 16 的倍数，否则返回 ErrInvalidFormat；校验规则同 Parse。
func ParseBytes(data []byte) (*Store, error) {
	if len(data)%BytesPerRecord != 0 {
		return nil, fmt.Errorf("%w: %d bytes is not a multiple of %d", ErrInvalidFormat, len(data), BytesPerRecord)
	}
	n := len(data) / BytesPerRecord
	b := newBuilder(n)
	for i := 0; i < n; i++ {
		r := data[i*BytesPerRecord : i*BytesPerRecord+BytesPerRecord]
		if err := b.add(i, f32(r[0:4]), f32(r[4:8]), f32(r[8:12]), f32(r[12:16])); err != nil {
			return nil, err
		}
	}
	return b.store(), nil
}

func f32(b []byte) float32 { return math.Float32frombits(binary.LittleEndian.Uint32(b)) }

type builder struct {
	points []Point
	seen   map[uint32]struct{}
}

func newBuilder(n int) *builder {
	return &builder{points: make([]Point, 0, n), seen: make(map[uint32]struct{}, n)}
}

func (b *builder) add(i int, lat, lon, id, typ float32) error {
	la, lo := float64(lat), float64(lon)
	if !finite(la) || la < -90 || la > 90 {
		return fmt.Errorf("%w: record %d lat=%v", ErrOutOfRange, i, lat)
	}
	if !finite(lo) || lo < -180 || lo > 180 {
		return fmt.Errorf("%w: record %d lon=%v", ErrOutOfRange, i, lon)
	}
	// 截断后需落在 u32/u16 区间内
	fid, ftyp := math.Trunc(float64(id)), math.Trunc(float64(typ))
	if !finite(fid) || fid < 0 || fid > math.MaxUint32 {
		return fmt.Errorf("%w: record %d id=%v", ErrOutOfRange, i, id)
	}
	if !finite(ftyp) || ftyp < 0 || ftyp > math.MaxUint16 {
		return fmt.Errorf("%w: record %d type=%v", ErrOutOfRange, i, typ)
	}
	pid := uint32(fid)
	if _, dup := b.seen[pid]; dup {
		return fmt.Errorf("%w: record %d id=%d", ErrDuplicateID, i, pid)
	}
	b.seen[pid] = struct{}{}
	b.points = append(b.points, Point{ID: pid, Type: uint16(ftyp), Lat: la, Lon: lo})
	return nil
}

func (b *builder) store() *Store { return &Store{points: b.points} }

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

// FromPoints：直接由点切片构建（供工具与测试使用），校验规则同 Parse
func FromPoints(pts []Point) (*Store, error) {
	b := newBuilder(len(pts))
	for i, p := range pts {
		if !finite(p.Lat) || p.Lat < -90 || p.Lat > 90 || !finite(p.Lon) || p.Lon < -180 || p.Lon > 180 {
			return nil, fmt.Errorf("%w: record %d lat=%v lon=%v", ErrOutOfRange, i, p.Lat, p.Lon)
		}
		if _, dup := b.seen[p.ID]; dup {
			return nil, fmt.Errorf("%w: record %d id=%d", ErrDuplicateID, i, p.ID)
		}
		b.seen[p.ID] = struct{}{}
		b.points = append(b.points, p)
	}
	return b.store(), nil
}
