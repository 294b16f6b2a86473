package redisx

import "time"

const (
	// Fulfillment lock per checkout session: lock:fulfillment:{session_id} -> owner token
	KeyFulfillmentLock = "lock:fulfillment:%s"

	// Fulfilled session fast path: fulfilled:{session_id} -> order_id
	KeyFulfilled = "fulfilled:%s"

	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLFulfilled = 72 * time.Hour
	TTLDedup     = 48 * time.Hour
)
