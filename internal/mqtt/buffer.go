package mqtt

// pendingMsg is an encoded publish waiting for the broker to come back.
type pendingMsg struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// BacklogStats describes the offline queue.
type BacklogStats struct {
	// Pending is the number of messages waiting for replay.
	Pending int
	// Dropped is the number of messages evicted since the publisher started.
	Dropped uint64
}

// backlog keeps the newest messages published while offline, oldest first.
// Once full, each new message evicts the oldest. RealPublisher guards it.
type backlog struct {
	msgs    []pendingMsg
	first   int
	n       int
	evicted uint64
}

func newBacklog(size int) *backlog {
	return &backlog{msgs: make([]pendingMsg, size)}
}

// add appends m and reports whether an older message was evicted for it.
func (b *backlog) add(m pendingMsg) bool {
	if b.n < len(b.msgs) {
		b.msgs[(b.first+b.n)%len(b.msgs)] = m
		b.n++
		return false
	}
	b.msgs[b.first] = m
	b.first = (b.first + 1) % len(b.msgs)
	b.evicted++
	return true
}

// take removes and returns everything queued, oldest first.
func (b *backlog) take() []pendingMsg {
	if b.n == 0 {
		return nil
	}
	out := make([]pendingMsg, 0, b.n)
	for i := 0; i < b.n; i++ {
		out = append(out, b.msgs[(b.first+i)%len(b.msgs)])
		b.msgs[(b.first+i)%len(b.msgs)] = pendingMsg{}
	}
	b.first, b.n = 0, 0
	return out
}

func (b *backlog) stats() BacklogStats {
	return BacklogStats{Pending: b.n, Dropped: b.evicted}
}
