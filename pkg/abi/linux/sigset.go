package linux

// SigSet is a bitset over signal numbers 1..64, matching the foreign
// ABI's sigset_t width (8 bytes) that rt_sigaction/rt_sigprocmask
// require callers to match exactly (spec.md §6 rt_sigaction "requires a
// mask size equal to the platform signal-set size").
type SigSet uint64

// SigSetSize is sizeof(sigset_t) in the foreign ABI, in bytes.
const SigSetSize = 8

func bit(signo int) uint64 { return 1 << uint(signo-1) }

// Add sets signo in the set.
func (s *SigSet) Add(signo int) { *s |= SigSet(bit(signo)) }

// Del clears signo from the set.
func (s *SigSet) Del(signo int) { *s &^= SigSet(bit(signo)) }

// Has reports whether signo is in the set.
func (s SigSet) Has(signo int) bool { return s&SigSet(bit(signo)) != 0 }

// Empty reports whether the set has no members.
func (s SigSet) Empty() bool { return s == 0 }

// Union returns the union of two sets.
func (s SigSet) Union(o SigSet) SigSet { return s | o }

// Lowest returns the lowest-numbered signal in the set and true, or
// (0, false) if the set is empty. Delivery order among unmasked pending
// signals favors lower signal numbers, matching the original source's
// linear scan from signal 1 upward.
func (s SigSet) Lowest() (int, bool) {
	for signo := 1; signo < NSIG; signo++ {
		if s.Has(signo) {
			return signo, true
		}
	}
	return 0, false
}
