package bits

// DecodeZigZag decodes a ZigZag encoded integer and returns it.
//
// Examples of ZigZag encoded values on the left and decoded values on the
// right:
//
//	0 =>  0
//	1 => -1
//	2 =>  1
//	3 => -2
//	4 =>  2
//
// ref: https://developers.google.com/protocol-buffers/docs/encoding
func DecodeZigZag(x uint64) int64 {
	return int64(x>>1) ^ -int64(x&1)
}

// EncodeZigZag folds the signed x into an unsigned integer, interleaving
// positive and negative values.
func EncodeZigZag(x int64) uint64 {
	return uint64(x<<1) ^ uint64(x>>63)
}
