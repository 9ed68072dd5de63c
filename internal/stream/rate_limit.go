package stream

import "sync"

const globalStreamCap = 1000

// streamLimiter bounds live SSE connections, per client IP and overall.
// The global cap protects the process when many distinct IPs connect; the
// per-IP cap stops one client from monopolizing slots.
type streamLimiter struct {
	mu       sync.Mutex
	perIP    map[string]int
	total    int
	maxPerIP int
}

func newStreamLimiter(maxPerIP int) *streamLimiter {
	if maxPerIP < 1 {
		maxPerIP = 10
	}
	return &streamLimiter{
		perIP:    make(map[string]int),
		maxPerIP: maxPerIP,
	}
}

// acquire claims a slot for ip. A false return means the caller must reject
// the stream; only successful acquires may be released.
func (l *streamLimiter) acquire(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.total >= globalStreamCap || l.perIP[ip] >= l.maxPerIP {
		return false
	}
	l.perIP[ip]++
	l.total++
	return true
}

// release returns ip's slot, dropping the map entry once the last stream
// for that IP closes.
func (l *streamLimiter) release(ip string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.total--
	if l.perIP[ip] <= 1 {
		delete(l.perIP, ip)
		return
	}
	l.perIP[ip]--
}

func (l *streamLimiter) count(ip string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.perIP[ip]
}
