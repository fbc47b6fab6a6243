// Package provisionrun keeps the history of provisioning runs in DynamoDB.
package provisionrun

import (
	"context"

	"github.com/lodthe/container-from-sqldump/internal/provision"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/pkg/errors"
)

// DefaultTableName is the table created by cmd/create-dynamodb.
const DefaultTableName = "ProvisioningRuns"

var ErrNotFound = errors.New("not found")

// DynamoDB is the part of *dynamodb.Client used by the repository.
type DynamoDB interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
}

type Repo struct {
	client    DynamoDB
	tableName *string
}

func NewRepository(client DynamoDB, tableName string) *Repo {
	return &Repo{
		client:    client,
		tableName: aws.String(tableName),
	}
}

// Save creates the run or overwrites the stored one.
func (r *Repo) Save(ctx context.Context, run *Run) error {
	marshaled, err := attributevalue.MarshalMap(run)
	if err != nil {
		return errors.Wrap(err, "marshal failed")
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: r.tableName,
		Item:      marshaled,
	})
	if err != nil {
		return errors.Wrap(err, "put failed")
	}

	return nil
}

func (r *Repo) Get(ctx context.Context, id string) (*Run, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: r.tableName,
		Key: map[string]types.AttributeValue{
			"Id": &types.AttributeValueMemberS{Value: id},
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "get failed")
	}

	run := new(Run)
	err = attributevalue.UnmarshalMap(out.Item, run)
	if err != nil {
		return nil, errors.Wrap(err, "unmarshal failed")
	}

	if run.ID == "" {
		return nil, ErrNotFound
	}

	return run, nil
}

// Record stores the report snapshot, so that each state change overwrites the previous one.
func (r *Repo) Record(ctx context.Context, report provision.Report) error {
	return r.Save(ctx, FromReport(report))
}
