package events

import (
	"time"

	"github.com/lucaspere/picktracker/pkg/models"
)

// Channel names a notification stream on the event transport.
type Channel string

// ChannelPickCreated carries one event per freshly submitted pick.
const ChannelPickCreated Channel = "pick.created"

// PickCreatedEvent is the pick.created payload. Transient: it is consumed
// once and never persisted; a failed handler simply drops it.
type PickCreatedEvent struct {
	EventDate time.Time   `json:"eventDate"`
	GroupName string      `json:"groupName"`
	Pick      models.Pick `json:"pick"`
}
