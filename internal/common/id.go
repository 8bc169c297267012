package common

import (
	"github.com/google/uuid"
)

// NewCycleID generates a monitor cycle ID with the "cyc_" prefix.
// Format: cyc_<uuid>
func NewCycleID() string {
	return "cyc_" + uuid.New().String()
}

// NewOutcomeID generates a corrective action outcome ID with the "act_" prefix.
// Format: act_<uuid>
func NewOutcomeID() string {
	return "act_" + uuid.New().String()
}
