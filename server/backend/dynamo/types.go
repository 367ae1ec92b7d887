package dynamo

import (
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Record is one raw alert item as detectors write it to the alerts table.
// Latitude and Longitude are stored as numbers by some detectors and as strings by others.
type Record struct {
	AlertID     string `dynamodbav:"Alert_ID"`
	CameraID    string `dynamodbav:"camera_id"`
	ObjectType  string `dynamodbav:"object_type"`
	Latitude    any    `dynamodbav:"latitude"`
	Longitude   any    `dynamodbav:"longitude"`
	Timestamp   string `dynamodbav:"timestamp"`
	ImageURL    string `dynamodbav:"image_url"`
	AlertStatus string `dynamodbav:"alert_status"`
}

// Cursor is the exclusive start key of a scan page. A nil Cursor starts a new scan.
type Cursor map[string]types.AttributeValue

// Page is one page of a table scan. Next is nil on the last page.
type Page struct {
	Records []Record
	Next    Cursor
}
