package outbox

// Event is the domain event envelope written to the outbox table.
// The Kafka topic name equals EventType (event per topic).
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// Booking lifecycle event types emitted by the conflict guard.
const (
	EventBookingReserved    = "scheduling.booking.reserved.v1"
	EventBookingRescheduled = "scheduling.booking.rescheduled.v1"
	EventBookingConfirmed   = "scheduling.booking.confirmed.v1"
	EventBookingCompleted   = "scheduling.booking.completed.v1"
	EventBookingReleased    = "scheduling.booking.released.v1"
)
