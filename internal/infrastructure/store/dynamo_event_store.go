package store

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/example/order-engine/internal/infrastructure/kafka"
)

// DynamoEventStore stores events in DynamoDB. Partition key is the aggregate
// ID, sort key the event version; a conditional put on the version gives the
// same concurrent-writer protection as the Postgres uniqueness constraint.
type DynamoEventStore struct {
	client            *dynamodb.Client
	tableName         string
	snapshotTableName string
	producer          *kafka.Producer
}

// dynamoEvent is the DynamoDB item layout for events
type dynamoEvent struct {
	AggregateID   string `dynamodbav:"aggregate_id"`
	Version       int    `dynamodbav:"version"`
	ID            string `dynamodbav:"id"`
	AggregateType string `dynamodbav:"aggregate_type"`
	EventType     string `dynamodbav:"event_type"`
	Data          string `dynamodbav:"data"`
	CreatedAt     string `dynamodbav:"created_at"`
	GSI1PK        string `dynamodbav:"gsi1pk"`
}

// dynamoSnapshot is the DynamoDB item layout for snapshots
type dynamoSnapshot struct {
	AggregateID   string `dynamodbav:"aggregate_id"`
	AggregateType string `dynamodbav:"aggregate_type"`
	Version       int    `dynamodbav:"version"`
	State         string `dynamodbav:"state"`
	CreatedAt     string `dynamodbav:"created_at"`
}

func NewDynamoEventStore(client *dynamodb.Client, tableName, snapshotTableName string, producer *kafka.Producer) *DynamoEventStore {
	return &DynamoEventStore{
		client:            client,
		tableName:         tableName,
		snapshotTableName: snapshotTableName,
		producer:          producer,
	}
}

// Append stores an event in DynamoDB with a conditional write on the version
func (es *DynamoEventStore) Append(ctx context.Context, aggregateID, aggregateType, eventType string, data any) (*Event, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, errors.Wrap(err, "marshal event data")
	}

	version, err := es.getNextVersion(ctx, aggregateID)
	if err != nil {
		return nil, errors.Wrap(err, "get next version")
	}

	timestamp := time.Now()
	item := dynamoEvent{
		AggregateID:   aggregateID,
		Version:       version,
		ID:            uuid.New().String(),
		AggregateType: aggregateType,
		EventType:     eventType,
		Data:          string(jsonData),
		CreatedAt:     timestamp.Format(time.RFC3339Nano),
		GSI1PK:        "EVENTS", // fixed partition for GetAllEvents
	}

	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return nil, errors.Wrap(err, "marshal event item")
	}

	_, err = es.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(es.tableName),
		Item:                av,
		ConditionExpression: aws.String("attribute_not_exists(aggregate_id) AND attribute_not_exists(version)"),
	})
	if err != nil {
		return nil, errors.Wrap(err, "put event item")
	}

	event := Event{
		ID:            item.ID,
		AggregateID:   aggregateID,
		AggregateType: aggregateType,
		EventType:     eventType,
		Data:          jsonData,
		Timestamp:     timestamp,
		Version:       version,
	}

	if es.producer != nil {
		if err := es.producer.Publish(ctx, aggregateID, event); err != nil {
			return nil, errors.Wrap(err, "publish event")
		}
	}

	return &event, nil
}

func (es *DynamoEventStore) getNextVersion(ctx context.Context, aggregateID string) (int, error) {
	out, err := es.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(es.tableName),
		KeyConditionExpression: aws.String("aggregate_id = :aid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":aid": &types.AttributeValueMemberS{Value: aggregateID},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(1),
	})
	if err != nil {
		return 0, err
	}
	if len(out.Items) == 0 {
		return 1, nil
	}

	var latest dynamoEvent
	if err := attributevalue.UnmarshalMap(out.Items[0], &latest); err != nil {
		return 0, err
	}
	return latest.Version + 1, nil
}

// GetEvents returns all events for an aggregate ordered by version
func (es *DynamoEventStore) GetEvents(aggregateID string) []Event {
	return es.queryAggregateEvents(context.Background(), aggregateID, 0)
}

// GetEventsFromVersion returns events for an aggregate with version greater than the given one
func (es *DynamoEventStore) GetEventsFromVersion(ctx context.Context, aggregateID string, version int) []Event {
	return es.queryAggregateEvents(ctx, aggregateID, version)
}

func (es *DynamoEventStore) queryAggregateEvents(ctx context.Context, aggregateID string, afterVersion int) []Event {
	keyCond := "aggregate_id = :aid"
	values := map[string]types.AttributeValue{
		":aid": &types.AttributeValueMemberS{Value: aggregateID},
	}
	if afterVersion > 0 {
		keyCond = "aggregate_id = :aid AND version > :v"
		values[":v"] = &types.AttributeValueMemberN{Value: strconv.Itoa(afterVersion)}
	}

	out, err := es.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(es.tableName),
		KeyConditionExpression:    aws.String(keyCond),
		ExpressionAttributeValues: values,
		ScanIndexForward:          aws.Bool(true),
	})
	if err != nil {
		return nil
	}
	return unmarshalDynamoEvents(out.Items)
}

// GetAllEvents returns all events via the GSI1 index ordered by creation time
func (es *DynamoEventStore) GetAllEvents() []Event {
	out, err := es.client.Query(context.Background(), &dynamodb.QueryInput{
		TableName:              aws.String(es.tableName),
		IndexName:              aws.String("gsi1"),
		KeyConditionExpression: aws.String("gsi1pk = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: "EVENTS"},
		},
		ScanIndexForward: aws.Bool(true),
	})
	if err != nil {
		return nil
	}
	return unmarshalDynamoEvents(out.Items)
}

// GetSnapshot returns the latest snapshot for an aggregate, or nil if none exists
func (es *DynamoEventStore) GetSnapshot(ctx context.Context, aggregateID string) (*Snapshot, error) {
	out, err := es.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(es.snapshotTableName),
		Key: map[string]types.AttributeValue{
			"aggregate_id": &types.AttributeValueMemberS{Value: aggregateID},
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "get snapshot item")
	}
	if out.Item == nil {
		return nil, nil
	}

	var item dynamoSnapshot
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, errors.Wrap(err, "unmarshal snapshot item")
	}

	createdAt, _ := time.Parse(time.RFC3339Nano, item.CreatedAt)
	return &Snapshot{
		AggregateID:   item.AggregateID,
		AggregateType: item.AggregateType,
		Version:       item.Version,
		State:         json.RawMessage(item.State),
		CreatedAt:     createdAt,
	}, nil
}

// SaveSnapshot stores a snapshot, replacing any previous one for the aggregate
func (es *DynamoEventStore) SaveSnapshot(ctx context.Context, snapshot *Snapshot) error {
	item := dynamoSnapshot{
		AggregateID:   snapshot.AggregateID,
		AggregateType: snapshot.AggregateType,
		Version:       snapshot.Version,
		State:         string(snapshot.State),
		CreatedAt:     snapshot.CreatedAt.Format(time.RFC3339Nano),
	}

	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return errors.Wrap(err, "marshal snapshot item")
	}

	_, err = es.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(es.snapshotTableName),
		Item:      av,
	})
	return errors.Wrap(err, "put snapshot item")
}

func unmarshalDynamoEvents(items []map[string]types.AttributeValue) []Event {
	var events []Event
	for _, raw := range items {
		var item dynamoEvent
		if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
			continue
		}
		timestamp, _ := time.Parse(time.RFC3339Nano, item.CreatedAt)
		events = append(events, Event{
			ID:            item.ID,
			AggregateID:   item.AggregateID,
			AggregateType: item.AggregateType,
			EventType:     item.EventType,
			Data:          json.RawMessage(item.Data),
			Timestamp:     timestamp,
			Version:       item.Version,
		})
	}
	return events
}
