package util

import (
	"crypto/sha256"
	"encoding/binary"
	"strings"
	"sync"
)

// UserNumber derives a stable positive id from a Kakao user id string.
func UserNumber(kakaoID string) int64 {
	sum := sha256.Sum256([]byte(strings.TrimSpace(kakaoID)))
	n := int64(binary.BigEndian.Uint64(sum[:8]) &^ (1 << 63))
	if n == 0 {
		return 1
	}
	return n
}

// NameBook remembers the last display name seen for each user.
type NameBook struct {
	mu    sync.RWMutex
	names map[int64]string
}

func NewNameBook() *NameBook {
	return &NameBook{names: make(map[int64]string)}
}

func (b *NameBook) Remember(userID int64, name string) {
	name = strings.TrimSpace(name)
	if name == "" {
		return
	}
	b.mu.Lock()
	b.names[userID] = name
	b.mu.Unlock()
}

func (b *NameBook) Name(userID int64) string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.names[userID]
}
