package csv

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/vsinha/csatrack/pkg/domain/entities"
)

var (
	shipmentHeader = []string{"order_number", "order_date", "customer_id", "package_number", "ship_date", "sku", "name", "serial", "quantity", "rate"}
	returnHeader   = []string{"rma_number", "receive_date", "sku", "serial"}
)

// Loader reads flat CSV exports into the nested order and return shapes the reconciler consumes
type Loader struct{}

// NewLoader creates a new CSV loader
func NewLoader() *Loader {
	return &Loader{}
}

// LoadPayload combines a shipments file and an optional returns file into one customer payload
func (l *Loader) LoadPayload(shipmentsFile, returnsFile string) (*entities.CustomerPayload, error) {
	orders, err := l.LoadShipments(shipmentsFile)
	if err != nil {
		return nil, err
	}

	payload := &entities.CustomerPayload{SalesOrders: orders}
	for _, order := range orders {
		if order.CustomerID != "" {
			payload.CustomerID = order.CustomerID
			break
		}
	}

	if returnsFile != "" {
		if payload.SalesReturns, err = l.LoadReturns(returnsFile); err != nil {
			return nil, err
		}
	}
	return payload, nil
}

// LoadShipments loads order lines from a CSV file. Rows with a package number become package
// lines; rows without one are order-level lines such as the service agreement itself.
func (l *Loader) LoadShipments(filename string) ([]entities.SalesOrder, error) {
	records, err := readRecords(filename, "shipments", shipmentHeader)
	if err != nil {
		return nil, err
	}

	var orders []entities.SalesOrder
	orderIndex := make(map[string]int)
	packageIndex := make(map[string]int)

	for i, record := range records {
		row := i + 2
		orderNumber := strings.TrimSpace(record[0])
		if orderNumber == "" {
			return nil, fmt.Errorf("shipments CSV row %d: order_number cannot be empty", row)
		}

		line, err := parseLine(record[5], record[6], record[7], record[8], record[9])
		if err != nil {
			return nil, fmt.Errorf("shipments CSV row %d: %w", row, err)
		}

		idx, ok := orderIndex[orderNumber]
		if !ok {
			idx = len(orders)
			orderIndex[orderNumber] = idx
			orders = append(orders, entities.SalesOrder{
				SalesOrderNumber: orderNumber,
				Date:             strings.TrimSpace(record[1]),
				CustomerID:       strings.TrimSpace(record[2]),
			})
		}
		order := &orders[idx]

		packageNumber := strings.TrimSpace(record[3])
		if packageNumber == "" {
			order.LineItems = append(order.LineItems, line)
			continue
		}

		pkgKey := orderNumber + "|" + packageNumber
		pIdx, ok := packageIndex[pkgKey]
		if !ok {
			pIdx = len(order.Packages)
			packageIndex[pkgKey] = pIdx
			order.Packages = append(order.Packages, entities.Package{
				PackageNumber: packageNumber,
				ShipmentDate:  strings.TrimSpace(record[4]),
			})
		}
		pkg := &order.Packages[pIdx]
		pkg.DetailedLineItems = append(pkg.DetailedLineItems, line)
	}

	return orders, nil
}

// LoadReturns loads return receipts from a CSV file, one receipt per (rma, receive date)
func (l *Loader) LoadReturns(filename string) ([]entities.SalesReturn, error) {
	records, err := readRecords(filename, "returns", returnHeader)
	if err != nil {
		return nil, err
	}

	var returns []entities.SalesReturn
	returnIndex := make(map[string]int)

	for i, record := range records {
		row := i + 2
		rma := strings.TrimSpace(record[0])
		serial := strings.TrimSpace(record[3])
		if rma == "" || serial == "" {
			return nil, fmt.Errorf("returns CSV row %d: rma_number and serial are required", row)
		}

		idx, ok := returnIndex[rma]
		if !ok {
			idx = len(returns)
			returnIndex[rma] = idx
			returns = append(returns, entities.SalesReturn{SalesReturnNumber: rma})
		}
		ret := &returns[idx]

		date := strings.TrimSpace(record[1])
		line := entities.LineItem{SKU: strings.TrimSpace(record[2]), SerialNumbers: entities.NewRawField(serial)}

		found := false
		for r := range ret.Receipts {
			if ret.Receipts[r].Date == date {
				ret.Receipts[r].LineItems = append(ret.Receipts[r].LineItems, line)
				found = true
				break
			}
		}
		if !found {
			ret.Receipts = append(ret.Receipts, entities.ReturnReceipt{
				ReceiveNumber: fmt.Sprintf("%s-R%d", rma, len(ret.Receipts)+1),
				Date:          date,
				LineItems:     []entities.LineItem{line},
			})
		}
	}

	return returns, nil
}

func readRecords(filename, kind string, expectedHeader []string) ([][]string, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s file %s: %w", kind, filename, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s CSV: %w", kind, err)
	}

	if len(records) < 1 {
		return nil, fmt.Errorf("%s CSV must have a header row", kind)
	}

	header := records[0]
	if !validateHeader(header, expectedHeader) {
		return nil, fmt.Errorf("%s CSV header mismatch. Expected: %v, Got: %v", kind, expectedHeader, header)
	}

	for i, record := range records[1:] {
		if len(record) != len(expectedHeader) {
			return nil, fmt.Errorf("%s CSV row %d: expected %d columns, got %d", kind, i+2, len(expectedHeader), len(record))
		}
	}
	return records[1:], nil
}

func validateHeader(actual, expected []string) bool {
	if len(actual) != len(expected) {
		return false
	}

	for i, col := range expected {
		if strings.ToLower(strings.TrimSpace(actual[i])) != col {
			return false
		}
	}

	return true
}

// parseLine builds a line item. serial may hold several serials separated by ';'.
func parseLine(sku, name, serial, quantity, rate string) (entities.LineItem, error) {
	line := entities.LineItem{
		SKU:  strings.TrimSpace(sku),
		Name: strings.TrimSpace(name),
	}
	if line.SKU == "" {
		return entities.LineItem{}, fmt.Errorf("sku cannot be empty")
	}

	var err error
	if line.Quantity, err = parseOptionalFloat(quantity); err != nil {
		return entities.LineItem{}, fmt.Errorf("invalid quantity: %w", err)
	}
	if line.Rate, err = parseOptionalFloat(rate); err != nil {
		return entities.LineItem{}, fmt.Errorf("invalid rate: %w", err)
	}

	var serials []string
	for _, s := range strings.Split(serial, ";") {
		if s = strings.TrimSpace(s); s != "" {
			serials = append(serials, s)
		}
	}
	if len(serials) > 0 {
		line.SerialNumbers = entities.NewRawField(serials)
		if line.Quantity == 0 {
			line.Quantity = float64(len(serials))
		}
	}
	return line, nil
}

func parseOptionalFloat(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}
