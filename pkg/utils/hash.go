package utils

import (
	"hash/crc32"
)

func GetHashBucket(key string, bucketSize uint32) uint32 {
	// 同一钱包固定落在同一个worker，避免同钱包并发扫描
	return crc32.ChecksumIEEE([]byte(key)) % bucketSize
}
