package orders

const (
	TopicOrderCreated       = "order.created"
	TopicOrderCancelled     = "order.cancelled"
	TopicOrderStatusChanged = "order.status_changed"
)

// Partition key = order_id so all events of one order keep their ordering.
func PartitionKey(orderID string) []byte { return []byte(orderID) }
