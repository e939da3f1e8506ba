package memory

import (
	"github.com/vsinha/csatrack/pkg/domain/entities"
	"github.com/vsinha/csatrack/pkg/domain/repositories"
)

// InstanceRegistry provides in-memory instance storage indexed by composite key
type InstanceRegistry struct {
	instances []*entities.Instance
	byKey     map[entities.InstanceKey]int
	bySerial  map[string][]int
}

// NewInstanceRegistry creates a new in-memory instance registry
func NewInstanceRegistry(capacity int) *InstanceRegistry {
	return &InstanceRegistry{
		instances: make([]*entities.Instance, 0, capacity),
		byKey:     make(map[entities.InstanceKey]int, capacity),
		bySerial:  make(map[string][]int),
	}
}

// Verify interface compliance
var _ repositories.InstanceRepository = (*InstanceRegistry)(nil)

// Add registers an in-field instance for the event. The first occurrence of a key wins.
func (r *InstanceRegistry) Add(event entities.ShipmentEvent) (*entities.Instance, bool, error) {
	instance, err := entities.NewInstance(event)
	if err != nil {
		return nil, false, err
	}
	if idx, exists := r.byKey[instance.Key]; exists {
		return r.instances[idx], false, nil
	}

	idx := len(r.instances)
	r.instances = append(r.instances, instance)
	r.byKey[instance.Key] = idx
	r.bySerial[instance.Key.Serial] = append(r.bySerial[instance.Key.Serial], idx)
	return instance, true, nil
}

// Get returns the instance for a key
func (r *InstanceRegistry) Get(key entities.InstanceKey) (*entities.Instance, bool) {
	idx, exists := r.byKey[key]
	if !exists {
		return nil, false
	}
	return r.instances[idx], true
}

// BySerial returns every instance of a serial in registration order
func (r *InstanceRegistry) BySerial(serial string) []*entities.Instance {
	indexes := r.bySerial[serial]
	result := make([]*entities.Instance, len(indexes))
	for i, idx := range indexes {
		result[i] = r.instances[idx]
	}
	return result
}

// HasSerial reports whether any shipment of the serial was registered
func (r *InstanceRegistry) HasSerial(serial string) bool {
	return len(r.bySerial[serial]) > 0
}

// All returns every instance in registration order
func (r *InstanceRegistry) All() []*entities.Instance {
	result := make([]*entities.Instance, len(r.instances))
	copy(result, r.instances)
	return result
}

// Len returns the number of registered instances
func (r *InstanceRegistry) Len() int {
	return len(r.instances)
}
