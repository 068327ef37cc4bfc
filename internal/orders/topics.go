package orders

const TopicOrderRecorded = "order.recorded"

// Partition by session id so replays for one session stay ordered.
func PartitionKey(sessionID string) []byte { return []byte(sessionID) }
