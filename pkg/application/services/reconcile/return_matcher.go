package reconcile

import (
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/vsinha/csatrack/pkg/domain/entities"
	"github.com/vsinha/csatrack/pkg/domain/repositories"
	"github.com/vsinha/csatrack/pkg/domain/services"
)

// ReplacementWindowDays bounds how long after a return a shipment still counts as its replacement
const ReplacementWindowDays = 90

// MatchStats summarizes one Return Matcher pass
type MatchStats struct {
	ReturnEvents     int
	UnknownSerials   int
	RepeatReturns    int
	UndatedReceipts  int
	InstancesClosed  int
	ReplacementLinks int
}

// ReturnMatcher links returned instances to the next compatible shipment
type ReturnMatcher struct {
	logger *zap.Logger
}

// NewReturnMatcher creates a new return matcher
func NewReturnMatcher(logger *zap.Logger) *ReturnMatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReturnMatcher{logger: logger}
}

// ExtractReturns collects the first dated return of every registered serial, sorted by date.
// Serials the registry has never seen are discarded.
func (m *ReturnMatcher) ExtractReturns(returns []entities.SalesReturn, registry repositories.InstanceRepository) ([]entities.ReturnEvent, MatchStats) {
	var stats MatchStats
	var events []entities.ReturnEvent
	seen := make(map[string]struct{})

	for _, ret := range returns {
		for _, receipt := range ret.Receipts {
			date, ok := services.ParseFlexibleDate(receipt.Date)
			if !ok {
				stats.UndatedReceipts++
				m.logger.Debug("skipping undated receipt",
					zap.String("rma", ret.SalesReturnNumber),
					zap.String("receipt", receipt.ReceiveNumber),
					zap.String("date", receipt.Date))
				continue
			}

			for _, line := range receipt.LineItems {
				for _, serial := range services.ExtractSerials(line).Serials {
					if _, dup := seen[serial]; dup {
						stats.RepeatReturns++
						continue
					}
					if !registry.HasSerial(serial) {
						stats.UnknownSerials++
						continue
					}
					seen[serial] = struct{}{}
					events = append(events, entities.ReturnEvent{
						Serial:        serial,
						RMANumber:     ret.SalesReturnNumber,
						ReceiptNumber: receipt.ReceiveNumber,
						Date:          date,
					})
				}
			}
		}
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Date.Before(events[j].Date)
	})
	stats.ReturnEvents = len(events)
	return events, stats
}

// Match applies return events in date order: every in-field instance of the serial is marked
// returned and linked to its earliest eligible replacement.
func (m *ReturnMatcher) Match(events []entities.ReturnEvent, registry repositories.InstanceRepository) MatchStats {
	var stats MatchStats
	stats.ReturnEvents = len(events)
	all := registry.All()

	for _, event := range events {
		for _, returned := range registry.BySerial(event.Serial) {
			if returned.Status != entities.InField {
				continue
			}
			if err := returned.MarkReturned(event.Date); err != nil {
				continue
			}
			stats.InstancesClosed++

			replacement := findReplacement(returned, event.Date, all)
			if replacement == nil {
				m.logger.Debug("no replacement found",
					zap.String("serial", event.Serial),
					zap.String("rma", event.RMANumber))
				continue
			}
			if err := returned.LinkReplacement(replacement); err != nil {
				m.logger.Warn("replacement link rejected", zap.Error(err))
				continue
			}
			stats.ReplacementLinks++
			m.logger.Debug("replacement matched",
				zap.String("returned", returned.Key.String()),
				zap.String("replacement", replacement.Key.String()),
				zap.String("return_date", services.FormatDate(event.Date)),
				zap.String("ship_date", services.FormatDate(replacement.ShipDate)))
		}
	}
	return stats
}

// findReplacement picks the earliest-shipped eligible candidate. Ties keep registration order.
func findReplacement(returned *entities.Instance, returnDate time.Time, all []*entities.Instance) *entities.Instance {
	cutoff := returnDate.AddDate(0, 0, ReplacementWindowDays)

	var best *entities.Instance
	for _, candidate := range all {
		if !isEligibleReplacement(returned, candidate, returnDate, cutoff) {
			continue
		}
		if best == nil || candidate.ShipDate.Before(best.ShipDate) {
			best = candidate
		}
	}
	return best
}

func isEligibleReplacement(returned, candidate *entities.Instance, returnDate, cutoff time.Time) bool {
	return candidate.Key.Serial != returned.Key.Serial &&
		candidate.SKU == returned.SKU &&
		candidate.CohortID == returned.CohortID &&
		candidate.HasShipDate() &&
		candidate.ShipDate.After(returnDate) &&
		candidate.ShipDate.Before(cutoff) &&
		candidate.Replaces == nil &&
		candidate.Status == entities.InField
}
