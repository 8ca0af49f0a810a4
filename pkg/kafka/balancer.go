package kafka

import (
	"github.com/cespare/xxhash/v2"
	"github.com/segmentio/kafka-go"
)

// KeyHash routes messages by the xxhash of their key so every transaction
// of a card lands on the same partition. Keyless messages are spread
// round-robin.
type KeyHash struct {
	fallback kafka.RoundRobin
}

func (b *KeyHash) Balance(msg kafka.Message, partitions ...int) int {
	if len(msg.Key) == 0 {
		return b.fallback.Balance(msg, partitions...)
	}
	return partitions[xxhash.Sum64(msg.Key)%uint64(len(partitions))]
}
