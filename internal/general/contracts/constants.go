package contracts

// Exchanges
const (
	ExchangeTripTopic   = "trip_topic"
	ExchangeDriverTopic = "driver_topic"
)

// Queues
const (
	QueueTripStatus     = "trip_status"
	QueueDriverStatus   = "driver_status"
	QueueDriverPresence = "driver_presence"
	QueueOfferActivity  = "offer_activity"
)

// Routing patterns
const (
	RouteTripStatusPrefix   = "trip.status."   // {status}
	RouteTripOfferPrefix    = "trip.offer."    // {trip_id}
	RouteDriverStatusPrefix = "driver.status." // {driver_id}
	RouteDriverPresence     = "driver.presence"
)

// Subscription topic descriptors shared by the WebSocket hub and the client
// multiplexer. A topic is a plain string so subscriptions survive reconnects
// without renegotiation.
const (
	topicTripPrefix  = "trip:"
	topicInboxPrefix = "driver-inbox:"
	topicRolePrefix  = "role:"
)

// TopicTrip scopes a subscription to a single trip's events.
func TopicTrip(tripID string) string { return topicTripPrefix + tripID }

// TopicDriverInbox scopes a subscription to one driver's dispatch inbox.
func TopicDriverInbox(driverID string) string { return topicInboxPrefix + driverID }

// TopicRole is a role-wide broadcast topic (e.g. all admins).
func TopicRole(role string) string { return topicRolePrefix + role }

// TopicDriverInboxPrefix exposes the inbox namespace for access checks.
func TopicDriverInboxPrefix() string { return topicInboxPrefix }

// TopicRolePrefix exposes the role namespace for access checks.
func TopicRolePrefix() string { return topicRolePrefix }
