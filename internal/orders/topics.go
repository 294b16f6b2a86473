package orders

const TopicOrderConfirmation = "order.confirmation"

// Partition key = order_id, so every message of one order keeps its order.
func PartitionKey(orderID string) []byte { return []byte(orderID) }
