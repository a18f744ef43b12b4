package testutil

// IsPrime reports whether n is prime by trial division.
// Slow on purpose: it is the ground truth the sieve is checked against.
func IsPrime(n int) bool {
	if n < 2 {
		return false
	}
	for d := 2; d*d <= n; d++ {
		if n%d == 0 {
			return false
		}
	}
	return true
}

// PrimesBelow returns every prime in [0, n) in ascending order.
func PrimesBelow(n int) []int {
	out := make([]int, 0)
	for i := 2; i < n; i++ {
		if IsPrime(i) {
			out = append(out, i)
		}
	}
	return out
}
