package projection

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vsinha/csatrack/pkg/application/dto"
	"github.com/vsinha/csatrack/pkg/domain/entities"
	"github.com/vsinha/csatrack/pkg/domain/services"
)

var (
	// SavingsPerReturn is the list cost of one out-of-agreement repair
	SavingsPerReturn = decimal.NewFromInt(1200)

	extensionQuadratic = decimal.RequireFromString("258.3333")
	extensionLinear    = decimal.RequireFromString("58.3333")
	extensionFloor     = decimal.NewFromInt(900)
	extensionCeiling   = decimal.NewFromInt(4800)

	daysPerYear = decimal.RequireFromString("365.25")
	hoursPerDay = decimal.NewFromInt(24)
)

// ComputeMetrics derives the customer's break rate and pricing figures as of now
func ComputeMetrics(result *dto.ReconciliationResult, orders []entities.SalesOrder, now time.Time) dto.PerformanceMetrics {
	accrued := AccruedYears(result.Cohorts, now)
	returns := TotalReturns(result)

	breakRate := decimal.Zero
	if accrued.IsPositive() {
		breakRate = decimal.NewFromInt(int64(returns)).Div(accrued)
	}

	return dto.PerformanceMetrics{
		AccruedYears:    accrued.Round(2),
		TotalReturns:    returns,
		BreakRate:       breakRate.Round(2),
		Savings:         SavingsPerReturn.Mul(decimal.NewFromInt(int64(returns))),
		ExtensionCost:   ExtensionCost(breakRate).Round(2),
		AverageCSAPrice: AverageCSAPrice(orders).Round(2),
		CSAQuantity:     ExtractCSAQuantity(orders),
	}
}

// AccruedYears sums the elapsed agreement time of every dated cohort, each capped at its plan length
func AccruedYears(cohorts []*entities.Cohort, now time.Time) decimal.Decimal {
	total := decimal.Zero
	for _, cohort := range cohorts {
		if cohort.StartDate.IsZero() || !now.After(cohort.StartDate) {
			continue
		}
		hours := decimal.NewFromFloat(now.Sub(cohort.StartDate).Hours())
		years := hours.Div(hoursPerDay).Div(daysPerYear)
		if plan := cohort.Length.Years(); plan > 0 {
			years = decimal.Min(years, decimal.NewFromInt(int64(plan)))
		}
		total = total.Add(years)
	}
	return total
}

// TotalReturns counts every handoff plus every returned unit that was never replaced
func TotalReturns(result *dto.ReconciliationResult) int {
	count := func(chain *entities.ReplacementChain) int {
		n := chain.Replacements()
		if !chain.Status.IsInField() {
			n++
		}
		return n
	}

	total := 0
	for _, chain := range result.ValidatedChains {
		total += count(chain)
	}
	for _, a := range result.OrphanAssignments {
		total += count(a.Chain)
	}
	return total
}

// ExtensionCost prices an agreement extension from the break rate, clamped to the list range
func ExtensionCost(breakRate decimal.Decimal) decimal.Decimal {
	cost := extensionQuadratic.Mul(breakRate).Mul(breakRate).
		Sub(extensionLinear.Mul(breakRate)).
		Add(extensionFloor)
	return decimal.Min(decimal.Max(cost, extensionFloor), extensionCeiling)
}

// ExtractCSAQuantity sums the quantity of line items whose SKU names a 1- or 2-year agreement
func ExtractCSAQuantity(orders []entities.SalesOrder) decimal.Decimal {
	total := decimal.Zero
	for _, order := range orders {
		for _, item := range order.LineItems {
			sku := strings.ToLower(item.SKU)
			if !strings.Contains(sku, "csa") {
				continue
			}
			if strings.Contains(sku, "1yr") || strings.Contains(sku, "2yr") {
				total = total.Add(decimal.NewFromFloat(item.Quantity))
			}
		}
	}
	return total
}

// AverageCSAPrice is the mean rate of CSA-qualifying line items, zero when there are none
func AverageCSAPrice(orders []entities.SalesOrder) decimal.Decimal {
	var rates []decimal.Decimal
	for _, order := range orders {
		for _, item := range order.LineItems {
			if services.IsCSALineItem(item.SKU, item.Name) {
				rates = append(rates, decimal.NewFromFloat(item.Rate))
			}
		}
	}
	if len(rates) == 0 {
		return decimal.Zero
	}
	return decimal.Avg(rates[0], rates[1:]...)
}
