package redisx

import "time"

const (
	// Cache order status: order_status:{order_id} -> {"status": "..."}
	KeyOrderStatus = "order_status:%s"

	// Cache the stats aggregate: order_stats -> stats JSON
	KeyOrderStats = "order_stats"
)

var (
	TTLStatusCache = 5 * time.Minute
	TTLStatsCache  = 30 * time.Second
)
