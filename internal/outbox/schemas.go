package outbox

// Both topics carry more than one event type, so the registered schemas are
// permissive unions keyed by the event_type Kafka header.

const rewardEventsSchema = `{
  "type": "object",
  "title": "RewardEvent",
  "properties": {
    "tenant_id": {"type": "string"},
    "user_id": {"type": "string"},
    "from_tier": {"type": "integer"},
    "to_tier": {"type": "integer"},
    "paisa_per_unit": {"type": "integer"},
    "date": {"type": "string"},
    "capped_steps": {"type": "integer"},
    "occurred_at": {"type": "string", "format": "date-time"}
  },
  "required": ["tenant_id", "user_id", "occurred_at"],
  "additionalProperties": false
}`

const ledgerEventsSchema = `{
  "type": "object",
  "title": "LedgerEvent",
  "properties": {
    "tenant_id": {"type": "string"},
    "user_id": {"type": "string"},
    "date": {"type": "string"},
    "raw_steps": {"type": "integer"},
    "capped_steps": {"type": "integer"},
    "units_earned": {"type": "integer"},
    "paisa_earned": {"type": "integer"},
    "sealed_at": {"type": "string", "format": "date-time"},
    "redeemed_at": {"type": "string", "format": "date-time"}
  },
  "required": ["tenant_id", "user_id", "date"],
  "additionalProperties": false
}`
