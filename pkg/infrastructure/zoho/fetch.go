package zoho

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/vsinha/csatrack/pkg/domain/entities"
	"github.com/vsinha/csatrack/pkg/infrastructure/logging"
)

const perPage = 200

// ListSalesOrders returns the summary rows of every sales order of a customer
func (c *Client) ListSalesOrders(ctx context.Context, customerID string) ([]gjson.Result, error) {
	return c.list(ctx, "/inventory/v1/salesorders", "salesorders", customerID)
}

// ListSalesReturns returns the summary rows of every sales return of a customer
func (c *Client) ListSalesReturns(ctx context.Context, customerID string) ([]gjson.Result, error) {
	return c.list(ctx, "/inventory/v1/salesreturns", "salesreturns", customerID)
}

func (c *Client) list(ctx context.Context, path, field, customerID string) ([]gjson.Result, error) {
	var rows []gjson.Result
	for page := 1; ; page++ {
		params := url.Values{
			"customer_id": {customerID},
			"page":        {strconv.Itoa(page)},
			"per_page":    {strconv.Itoa(perPage)},
		}
		doc, err := c.get(ctx, path, params)
		if err != nil {
			return nil, fmt.Errorf("listing %s for %s page %d: %w", field, customerID, page, err)
		}
		rows = append(rows, doc.Get(field).Array()...)

		if !doc.Get("page_context.has_more_page").Bool() {
			return rows, nil
		}
	}
}

// SalesOrder fetches an order with every package's line items inlined as detailed_line_items
func (c *Client) SalesOrder(ctx context.Context, salesOrderID string) (*entities.SalesOrder, error) {
	doc, err := c.getDetail(ctx, "/inventory/v1/salesorders/"+url.PathEscape(salesOrderID))
	if err != nil {
		return nil, fmt.Errorf("fetching sales order %s: %w", salesOrderID, err)
	}
	raw := doc.Get("salesorder")
	if !raw.IsObject() {
		return nil, nil
	}

	var order entities.SalesOrder
	if err := json.Unmarshal([]byte(raw.Raw), &order); err != nil {
		return nil, fmt.Errorf("decoding sales order %s: %w", salesOrderID, err)
	}

	for i := range order.Packages {
		pkg := &order.Packages[i]
		if pkg.PackageID == "" {
			continue
		}
		items, err := c.PackageLineItems(ctx, pkg.PackageID)
		if err != nil {
			return nil, err
		}
		if len(items) > 0 {
			pkg.DetailedLineItems = items
		}
	}
	return &order, nil
}

// PackageLineItems fetches the serialized lines of a package. The API places them either at the top
// level of the response or under "package".
func (c *Client) PackageLineItems(ctx context.Context, packageID string) ([]entities.LineItem, error) {
	doc, err := c.getDetail(ctx, "/inventory/v1/packages/"+url.PathEscape(packageID))
	if err != nil {
		return nil, fmt.Errorf("fetching package %s: %w", packageID, err)
	}
	raw := doc.Get("line_items")
	if !raw.IsArray() {
		raw = doc.Get("package.line_items")
	}
	if !raw.IsArray() {
		return nil, nil
	}

	var items []entities.LineItem
	if err := json.Unmarshal([]byte(raw.Raw), &items); err != nil {
		return nil, fmt.Errorf("decoding package %s line items: %w", packageID, err)
	}
	return items, nil
}

// SalesReturn fetches a return with its receipts
func (c *Client) SalesReturn(ctx context.Context, salesReturnID string) (*entities.SalesReturn, error) {
	doc, err := c.getDetail(ctx, "/inventory/v1/salesreturns/"+url.PathEscape(salesReturnID))
	if err != nil {
		return nil, fmt.Errorf("fetching sales return %s: %w", salesReturnID, err)
	}
	raw := doc.Get("salesreturn")
	if !raw.IsObject() {
		return nil, nil
	}

	var ret entities.SalesReturn
	if err := json.Unmarshal([]byte(raw.Raw), &ret); err != nil {
		return nil, fmt.Errorf("decoding sales return %s: %w", salesReturnID, err)
	}
	return &ret, nil
}

// FetchCustomerPayload assembles the orders and returns of every contact into one payload.
// Detail documents missing their top-level object are skipped with a warning.
func (c *Client) FetchCustomerPayload(ctx context.Context, contactIDs []string) (*entities.CustomerPayload, error) {
	if len(contactIDs) == 0 {
		return nil, fmt.Errorf("at least one contact id is required")
	}
	ctx, span := c.tracer.Start(ctx, "zoho.fetch_customer",
		trace.WithAttributes(attribute.Int("zoho.contacts", len(contactIDs))))
	defer span.End()

	logger := logging.WithTrace(ctx, c.logger)
	payload := &entities.CustomerPayload{
		CustomerID:   contactIDs[0],
		ContactIDs:   append([]string(nil), contactIDs...),
		SalesOrders:  []entities.SalesOrder{},
		SalesReturns: []entities.SalesReturn{},
	}

	for _, contactID := range contactIDs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		orders, err := c.ListSalesOrders(ctx, contactID)
		if err != nil {
			return failPayload(span, err)
		}
		for _, row := range orders {
			if payload.CustomerName == "" {
				payload.CustomerName = row.Get("customer_name").String()
			}
			id := row.Get("salesorder_id").String()
			order, err := c.SalesOrder(ctx, id)
			if err != nil {
				return failPayload(span, err)
			}
			if order == nil {
				logger.Warn("sales order detail missing", zap.String("salesorder_id", id))
				continue
			}
			payload.SalesOrders = append(payload.SalesOrders, *order)
		}

		returns, err := c.ListSalesReturns(ctx, contactID)
		if err != nil {
			return failPayload(span, err)
		}
		for _, row := range returns {
			id := row.Get("salesreturn_id").String()
			ret, err := c.SalesReturn(ctx, id)
			if err != nil {
				return failPayload(span, err)
			}
			if ret == nil {
				logger.Warn("sales return detail missing", zap.String("salesreturn_id", id))
				continue
			}
			payload.SalesReturns = append(payload.SalesReturns, *ret)
		}

		logger.Info("fetched contact",
			zap.String("contact_id", contactID),
			zap.Int("sales_orders", len(orders)),
			zap.Int("sales_returns", len(returns)),
		)
	}

	span.SetAttributes(
		attribute.Int("zoho.sales_orders", len(payload.SalesOrders)),
		attribute.Int("zoho.sales_returns", len(payload.SalesReturns)),
	)
	return payload, nil
}

func failPayload(span trace.Span, err error) (*entities.CustomerPayload, error) {
	_, err = fail(span, gjson.Result{}, err)
	return nil, err
}
