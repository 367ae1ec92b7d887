package dynamo

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"go.uber.org/zap"

	"github.com/borderwatch/alert-dashboard/server/backend"
)

// ScanAPI is the subset of the DynamoDB client used to read the alerts table.
type ScanAPI interface {
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// StoreClient reads alert records from a DynamoDB table using paged scans.
type StoreClient struct {
	api    ScanAPI
	table  string
	logger *zap.SugaredLogger
}

// NewStoreClient creates a new store client for table
func NewStoreClient(api ScanAPI, table string, logger *zap.SugaredLogger) *StoreClient {
	return &StoreClient{
		api:    api,
		table:  table,
		logger: logger,
	}
}

// FetchPage scans one page of the table starting at cursor.
// Transport and authorization failures are reported as backend.ErrStoreUnavailable.
// Items that cannot be decoded are skipped.
func (c *StoreClient) FetchPage(ctx context.Context, cursor Cursor) (*Page, error) {
	input := &dynamodb.ScanInput{
		TableName: &c.table,
	}
	if len(cursor) > 0 {
		input.ExclusiveStartKey = cursor
	}

	out, err := c.api.Scan(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("%w: scan %s: %v", backend.ErrStoreUnavailable, c.table, err)
	}

	page := &Page{
		Records: make([]Record, 0, len(out.Items)),
	}
	for _, item := range out.Items {
		var record Record
		if err := attributevalue.UnmarshalMap(item, &record); err != nil {
			c.logger.Warnw("Skipping undecodable alert record",
				"table", c.table,
				"error", err.Error())
			continue
		}
		page.Records = append(page.Records, record)
	}
	if len(out.LastEvaluatedKey) > 0 {
		page.Next = out.LastEvaluatedKey
	}

	return page, nil
}

// FetchAll walks every scan page and returns the records in scan order.
// An empty table yields an empty slice and no error.
func (c *StoreClient) FetchAll(ctx context.Context) ([]Record, error) {
	var (
		records []Record
		cursor  Cursor
		pages   int
	)

	for {
		page, err := c.FetchPage(ctx, cursor)
		if err != nil {
			return nil, err
		}
		pages++
		records = append(records, page.Records...)

		if page.Next == nil {
			break
		}
		cursor = page.Next
	}

	c.logger.Debugw("Fetched alert records",
		"table", c.table,
		"records", len(records),
		"pages", pages)

	if records == nil {
		records = []Record{}
	}
	return records, nil
}
