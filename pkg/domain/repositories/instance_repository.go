package repositories

import "github.com/vsinha/csatrack/pkg/domain/entities"

// InstanceRepository is the arena owning every Instance of one reconciliation run
type InstanceRepository interface {
	// Add registers an instance for the event; duplicate keys are no-ops and return false
	Add(event entities.ShipmentEvent) (*entities.Instance, bool, error)
	Get(key entities.InstanceKey) (*entities.Instance, bool)
	BySerial(serial string) []*entities.Instance
	HasSerial(serial string) bool
	// All returns instances in registration order
	All() []*entities.Instance
	Len() int
}
