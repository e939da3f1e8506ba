package memory

import (
	"testing"
	"time"

	"github.com/vsinha/csatrack/pkg/domain/entities"
)

func TestInstanceRegistry_AddAndGet(t *testing.T) {
	registry := NewInstanceRegistry(4)

	event := entities.ShipmentEvent{
		Serial:    "SN001",
		OrderID:   "SO-1",
		PackageID: "PKG-1",
		SKU:       "HF-ENDO-01",
		Date:      time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	instance, added, err := registry.Add(event)
	if err != nil {
		t.Fatalf("Failed to add instance: %v", err)
	}
	if !added {
		t.Fatal("Expected first add to register the instance")
	}
	if instance.Status != entities.InField {
		t.Errorf("Expected status InField, got %v", instance.Status)
	}

	retrieved, ok := registry.Get(instance.Key)
	if !ok {
		t.Fatal("Expected instance to be retrievable by key")
	}
	if retrieved != instance {
		t.Error("Expected the registry to return the same instance record")
	}
}

func TestInstanceRegistry_DuplicateKeyFirstWins(t *testing.T) {
	registry := NewInstanceRegistry(0)

	first := entities.ShipmentEvent{Serial: "SN001", OrderID: "SO-1", PackageID: "PKG-1", SKU: "HF-ENDO-01", RawDate: "2024-01-01"}
	second := first
	second.RawDate = "2024-02-01"

	if _, _, err := registry.Add(first); err != nil {
		t.Fatalf("Failed to add first event: %v", err)
	}
	instance, added, err := registry.Add(second)
	if err != nil {
		t.Fatalf("Failed to add duplicate event: %v", err)
	}
	if added {
		t.Error("Expected duplicate key to be a no-op")
	}
	if instance.RawDate != "2024-01-01" {
		t.Errorf("Expected first occurrence to win, got raw date %s", instance.RawDate)
	}
	if registry.Len() != 1 {
		t.Errorf("Expected 1 instance, got %d", registry.Len())
	}
}

func TestInstanceRegistry_BySerialAcrossPackages(t *testing.T) {
	registry := NewInstanceRegistry(0)

	events := []entities.ShipmentEvent{
		{Serial: "SN001", OrderID: "SO-1", PackageID: "PKG-1", SKU: "HF-ENDO-01"},
		{Serial: "SN002", OrderID: "SO-1", PackageID: "PKG-1", SKU: "HF-ENDO-01"},
		{Serial: "SN001", OrderID: "SO-2", SKU: "HF-ENDO-01"},
	}
	for _, e := range events {
		if _, _, err := registry.Add(e); err != nil {
			t.Fatalf("Failed to add event: %v", err)
		}
	}

	instances := registry.BySerial("SN001")
	if len(instances) != 2 {
		t.Fatalf("Expected 2 instances of SN001, got %d", len(instances))
	}
	if instances[1].Key.PackageID != entities.NoPackage {
		t.Errorf("Expected empty package id to become %s, got %s", entities.NoPackage, instances[1].Key.PackageID)
	}
	if !registry.HasSerial("SN002") || registry.HasSerial("SN999") {
		t.Error("HasSerial returned unexpected result")
	}

	all := registry.All()
	if len(all) != 3 || all[0].Key.Serial != "SN001" || all[1].Key.Serial != "SN002" {
		t.Errorf("Expected registration order to be preserved, got %v", all)
	}
}

func TestInstanceRegistry_RejectsInvalidEvents(t *testing.T) {
	registry := NewInstanceRegistry(0)

	tests := []struct {
		name  string
		event entities.ShipmentEvent
	}{
		{"missing_serial", entities.ShipmentEvent{OrderID: "SO-1", SKU: "HF-ENDO-01"}},
		{"missing_order", entities.ShipmentEvent{Serial: "SN001", SKU: "HF-ENDO-01"}},
		{"missing_sku", entities.ShipmentEvent{Serial: "SN001", OrderID: "SO-1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := registry.Add(tt.event); err == nil {
				t.Error("Expected error for invalid event")
			}
		})
	}
}
