package challenge

import (
	"fmt"
	"math/big"
)

const (
	// AlphaBits is the fixed-point resolution of Alpha.
	AlphaBits = 20
	// SecurityBits is the soundness target: an adversary escapes all rounds
	// with probability below 2^-SecurityBits.
	SecurityBits = 80

	MaxAlpha Alpha = 1<<AlphaBits - 1

	// MaxRounds bounds the round count of a session and the nonce of any
	// round a verifier accepts.
	MaxRounds = 4096
)

// Alpha is a fraction in [0, 1) with AlphaBits bits of precision.
type Alpha uint32

func (a Alpha) Float() float64 {
	return float64(a) / float64(uint64(1)<<AlphaBits)
}

func (a Alpha) String() string {
	return fmt.Sprintf("%d/2^%d", uint32(a), AlphaBits)
}

// ConfidenceBound is the largest alpha such that alpha^rounds < 2^-80.
// Zero rounds give no confidence at all.
func ConfidenceBound(rounds int) Alpha {
	if rounds <= 0 {
		return 0
	}
	lo, hi := uint32(0), uint32(MaxAlpha)
	for lo < hi {
		mid := lo + (hi-lo+1)/2
		if escapes(mid, rounds) {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return Alpha(lo)
}

// escapes reports (m / 2^20)^rounds < 2^-80, evaluated exactly as
// m^rounds * 2^80 < 2^(20*rounds).
func escapes(m uint32, rounds int) bool {
	lhs := new(big.Int).Exp(big.NewInt(int64(m)), big.NewInt(int64(rounds)), nil)
	lhs.Lsh(lhs, SecurityBits)
	rhs := new(big.Int).Lsh(big.NewInt(1), uint(AlphaBits*rounds))
	return lhs.Cmp(rhs) < 0
}
