package aws

import (
	"context"
	"errors"
	"fmt"
	"time"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// TableSpec describes a single-hash-key, on-demand table.
type TableSpec struct {
	Name    string
	HashKey string
	// TTLAttribute enables expiry on the named epoch-seconds attribute.
	TTLAttribute string
}

const tableActiveTimeout = 2 * time.Minute

// EnsureTables creates every missing table and returns the names it created.
// Existing tables are left untouched.
func EnsureTables(ctx context.Context, client DynamoDBAdminAPI, specs []TableSpec) ([]string, error) {
	var created []string
	for _, s := range specs {
		_, err := client.CreateTable(ctx, &dynamodb.CreateTableInput{
			TableName:   sdkaws.String(s.Name),
			BillingMode: types.BillingModePayPerRequest,
			AttributeDefinitions: []types.AttributeDefinition{
				{AttributeName: sdkaws.String(s.HashKey), AttributeType: types.ScalarAttributeTypeS},
			},
			KeySchema: []types.KeySchemaElement{
				{AttributeName: sdkaws.String(s.HashKey), KeyType: types.KeyTypeHash},
			},
		})
		var inUse *types.ResourceInUseException
		if errors.As(err, &inUse) {
			continue
		}
		if err != nil {
			return created, fmt.Errorf("create table %s: %w", s.Name, err)
		}

		waiter := dynamodb.NewTableExistsWaiter(client)
		if err := waiter.Wait(ctx, &dynamodb.DescribeTableInput{TableName: sdkaws.String(s.Name)}, tableActiveTimeout); err != nil {
			return created, fmt.Errorf("wait for table %s: %w", s.Name, err)
		}
		if s.TTLAttribute != "" {
			_, err := client.UpdateTimeToLive(ctx, &dynamodb.UpdateTimeToLiveInput{
				TableName: sdkaws.String(s.Name),
				TimeToLiveSpecification: &types.TimeToLiveSpecification{
					AttributeName: sdkaws.String(s.TTLAttribute),
					Enabled:       sdkaws.Bool(true),
				},
			})
			if err != nil {
				return created, fmt.Errorf("enable ttl on %s: %w", s.Name, err)
			}
		}
		created = append(created, s.Name)
	}
	return created, nil
}
