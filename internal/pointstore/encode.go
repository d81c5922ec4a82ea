package pointstore

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// MaxEncodableID：float32 能精确表示的最大连续整数上界（2^24），id 需小于该值
const MaxEncodableID = 1 << 24

// 文档注释：检查点集能否无损写成加载格式
// 约束：id >= 2^24 时 float32 会把相邻 id 合并，写出的文件加载时报 ErrDuplicateID，因此在写出前拒绝。
func CheckEncodable(pts []Point) error {
	for i, p := range pts {
		if p.ID >= MaxEncodableID {
			return fmt.Errorf("%w: record %d id=%d not representable as float32", ErrOutOfRange, i, p.ID)
		}
	}
	return nil
}

// 文档注释：按加载格式写出点集
// 背景：供转换工具与测试生成二进制数据，格式与 ParseBytes 对称：每点 4 个小端 float32 (lat, lon, id, type)。
// 约束：先整体执行 CheckEncodable，失败时不写出任何字节。
func Encode(w io.Writer, pts []Point) error {
	if err := CheckEncodable(pts); err != nil {
		return err
	}
	bw := bufio.NewWriter(w)
	var rec [BytesPerRecord]byte
	for _, p := range pts {
		putRecord(rec[:], p)
		if _, err := bw.Write(rec[:]); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// AppendFloats：将点集追加为 float32 序列，布局同 Parse 的输入
func AppendFloats(dst []float32, pts ...Point) []float32 {
	for _, p := range pts {
		dst = append(dst, float32(p.Lat), float32(p.Lon), float32(p.ID), float32(p.Type))
	}
	return dst
}

func putRecord(b []byte, p Point) {
	binary.LittleEndian.PutUint32(b[0:4], math.Float32bits(float32(p.Lat)))
	binary.LittleEndian.PutUint32(b[4:8], math.Float32bits(float32(p.Lon)))
	binary.LittleEndian.PutUint32(b[8:12], math.Float32bits(float32(p.ID)))
	binary.LittleEndian.PutUint32(b[12:16], math.Float32bits(float32(p.Type)))
}
