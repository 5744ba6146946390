package webpush

import "sync"

// messageLog is the append-only per-subscription store of decrypted
// plaintext. Entries are created lazily on the first successful
// notification and never pruned. The mutex makes concurrent appends atomic
// so two notifications decrypted in parallel are never lost.
type messageLog struct {
	mu       sync.Mutex
	byClient map[string][]string
	stored   int
}

func newMessageLog() *messageLog {
	return &messageLog{byClient: make(map[string][]string)}
}

func (l *messageLog) append(clientHash, message string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.byClient[clientHash] = append(l.byClient[clientHash], message)
	l.stored++
}

// get returns a snapshot of the messages for one client, in arrival order.
func (l *messageLog) get(clientHash string) []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	stored := l.byClient[clientHash]
	messages := make([]string, len(stored))
	copy(messages, stored)
	return messages
}

// total returns the number of messages stored across all clients.
func (l *messageLog) total() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stored
}
