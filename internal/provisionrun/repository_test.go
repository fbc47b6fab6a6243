package provisionrun

import (
	"context"
	"testing"
	"time"

	"github.com/lodthe/container-from-sqldump/internal/provision"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memoryTable stores items by the Id attribute.
type memoryTable struct {
	name  string
	items map[string]map[string]types.AttributeValue
	err   error
}

func newMemoryTable(name string) *memoryTable {
	return &memoryTable{
		name:  name,
		items: make(map[string]map[string]types.AttributeValue),
	}
}

func (m *memoryTable) PutItem(_ context.Context, params *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	if m.err != nil {
		return nil, m.err
	}
	if aws.ToString(params.TableName) != m.name {
		return nil, errors.New("ResourceNotFoundException: table not found")
	}

	id := params.Item["Id"].(*types.AttributeValueMemberS).Value
	m.items[id] = params.Item

	return &dynamodb.PutItemOutput{}, nil
}

func (m *memoryTable) GetItem(_ context.Context, params *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	if m.err != nil {
		return nil, m.err
	}

	id := params.Key["Id"].(*types.AttributeValueMemberS).Value

	return &dynamodb.GetItemOutput{Item: m.items[id]}, nil
}

func testReport(state provision.State) provision.Report {
	startedAt := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	return provision.Report{
		RunID:                "run-1",
		Environment:          "blog",
		State:                state,
		DatabaseContainer:    "blog_mysql",
		ApplicationContainer: "blog_wordpress",
		Prefix:               "wp_",
		AdminID:              2,
		OriginURL:            "http://old.example",
		SiteURL:              "http://203.0.113.5:8080",
		ApplicationConfirmed: true,
		StartedAt:            startedAt,
		UpdatedAt:            startedAt.Add(time.Minute),
	}
}

func TestRepo_RecordAndGet(t *testing.T) {
	table := newMemoryTable(DefaultTableName)
	repo := NewRepository(table, DefaultTableName)
	ctx := context.Background()

	require.NoError(t, repo.Record(ctx, testReport(provision.PrefixResolved)))
	require.NoError(t, repo.Record(ctx, testReport(provision.ApplicationReady)))

	run, err := repo.Get(ctx, "run-1")
	require.NoError(t, err)

	expected := FromReport(testReport(provision.ApplicationReady))
	assert.True(t, expected.StartedAt.Equal(run.StartedAt))
	assert.True(t, expected.UpdatedAt.Equal(run.UpdatedAt))

	expected.StartedAt, expected.UpdatedAt = run.StartedAt, run.UpdatedAt
	assert.Equal(t, expected, run)
	assert.Equal(t, "application_ready", run.State)
	assert.Len(t, table.items, 1)
}

func TestRepo_RecordFailure(t *testing.T) {
	table := newMemoryTable(DefaultTableName)
	repo := NewRepository(table, DefaultTableName)

	report := testReport(provision.Failed)
	report.Reason = "database did not become ready"
	require.NoError(t, repo.Record(context.Background(), report))

	run, err := repo.Get(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, "failed", run.State)
	assert.Equal(t, "database did not become ready", run.Reason)
}

func TestRepo_GetNotFound(t *testing.T) {
	repo := NewRepository(newMemoryTable(DefaultTableName), DefaultTableName)

	_, err := repo.Get(context.Background(), "absent")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestRepo_ClientErrors(t *testing.T) {
	table := newMemoryTable(DefaultTableName)
	table.err = errors.New("ProvisionedThroughputExceededException")
	repo := NewRepository(table, DefaultTableName)

	assert.Error(t, repo.Record(context.Background(), testReport(provision.Created)))

	_, err := repo.Get(context.Background(), "run-1")
	assert.Error(t, err)

	wrongTable := NewRepository(newMemoryTable(DefaultTableName), "OtherTable")
	assert.Error(t, wrongTable.Save(context.Background(), FromReport(testReport(provision.Created))))
}

func TestNewID(t *testing.T) {
	id := NewID()

	_, err := uuid.Parse(id)
	assert.NoError(t, err)
	assert.NotEqual(t, id, NewID())
}
