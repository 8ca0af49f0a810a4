package kafka

import "time"

// Message is a record read from or written to a topic, independent of the
// client library that carried it.
type Message struct {
	Topic     string
	Partition int
	Offset    int64
	Key       []byte
	Value     []byte
	Time      time.Time
}

// lastOffsets returns the highest offset seen per partition.
func lastOffsets(msgs []Message) map[int]int64 {
	byPart := make(map[int]int64)
	for _, m := range msgs {
		if curr, ok := byPart[m.Partition]; !ok || m.Offset > curr {
			byPart[m.Partition] = m.Offset
		}
	}
	return byPart
}
