package spatial

// Z 序键：x 占偶数位、y 占奇数位；同一父瓦片的所有子桶在键空间中连续
func zkey(x, y uint32) uint64 {
	return spread(x) | spread(y)<<1
}

func unzkey(k uint64) (x, y uint32) {
	return compact(k), compact(k >> 1)
}

func spread(v uint32) uint64 {
	x := uint64(v)
	x = (x | x<<16) & 0x0000FFFF0000FFFF
	x = (x | x<<8) & 0x00FF00FF00FF00FF
	x = (x | x<<4) & 0x0F0F0F0F0F0F0F0F
	x = (x | x<<2) & 0x3333333333333333
	x = (x | x<<1) & 0x5555555555555555
	return x
}

func compact(k uint64) uint32 {
	x := k & 0x5555555555555555
	x = (x | x>>1) & 0x3333333333333333
	x = (x | x>>2) & 0x0F0F0F0F0F0F0F0F
	x = (x | x>>4) & 0x00FF00FF00FF00FF
	x = (x | x>>8) & 0x0000FFFF0000FFFF
	x = (x | x>>16) & 0x00000000FFFFFFFF
	return uint32(x)
}

const radixBits = 16

// 文档注释：LSD 基数排序（键 + 点下标成对移动）
// 背景：建索引需 O(n)；键只占低 bits 位，按 16 位一轮，canonical=20 时仅 3 轮。
// 约束：稳定排序，同桶内保持加载顺序。
func radixSort(keys []uint64, idx []uint32, bits uint) {
	n := len(keys)
	if n < 2 {
		return
	}
	tk := make([]uint64, n)
	ti := make([]uint32, n)
	count := make([]int, 1<<radixBits+1)
	src, srcI, dst, dstI := keys, idx, tk, ti
	passes := 0
	for shift := uint(0); shift < bits; shift += radixBits {
		for i := range count {
			count[i] = 0
		}
		for _, k := range src {
			count[(k>>shift)&(1<<radixBits-1)+1]++
		}
		for i := 1; i < len(count); i++ {
			count[i] += count[i-1]
		}
		for i, k := range src {
			d := (k >> shift) & (1<<radixBits - 1)
			dst[count[d]] = k
			dstI[count[d]] = srcI[i]
			count[d]++
		}
		src, srcI, dst, dstI = dst, dstI, src, srcI
		passes++
	}
	if passes%2 == 1 {
		copy(keys, src)
		copy(idx, srcI)
	}
}
