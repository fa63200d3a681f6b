package enums

// OutboxAggregateType names the entity an outbox event is about.
type OutboxAggregateType string

const (
	AggregateSubscription   OutboxAggregateType = "subscription"
	AggregatePaymentFailure OutboxAggregateType = "payment_failure"
	AggregateAsset          OutboxAggregateType = "asset"
	AggregateUser           OutboxAggregateType = "user"
)

var aggregateTypes = newSet("aggregate type",
	AggregateSubscription, AggregatePaymentFailure, AggregateAsset, AggregateUser,
)

func (a OutboxAggregateType) IsValid() bool { return aggregateTypes.has(a) }

func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	return aggregateTypes.parse(value)
}

// OutboxEventType identifies the domain event stored in outbox_events.
type OutboxEventType string

const (
	EventPaymentFailed        OutboxEventType = "payment_failed"
	EventPaymentRecovered     OutboxEventType = "payment_recovered"
	EventReminderSent         OutboxEventType = "payment_reminder_sent"
	EventSubscriptionUpdated  OutboxEventType = "subscription_updated"
	EventSubscriptionExpired  OutboxEventType = "subscription_expired"
	EventSubscriptionCanceled OutboxEventType = "subscription_canceled"
	EventAssetGenerated       OutboxEventType = "asset_generated"
	EventUserRegistered       OutboxEventType = "user_registered"
)

var eventTypes = newSet("event type",
	EventPaymentFailed, EventPaymentRecovered, EventReminderSent,
	EventSubscriptionUpdated, EventSubscriptionExpired, EventSubscriptionCanceled,
	EventAssetGenerated, EventUserRegistered,
)

func (e OutboxEventType) IsValid() bool { return eventTypes.has(e) }

func ParseOutboxEventType(value string) (OutboxEventType, error) { return eventTypes.parse(value) }

// OutboxDLQErrorReason records why a row left the publish loop.
type OutboxDLQErrorReason string

const (
	OutboxDLQReasonMaxAttempts  OutboxDLQErrorReason = "max_attempts"
	OutboxDLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
)
