package s3

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/hupe1980/kpagg/blobstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDDB is an in-memory commit table.
type fakeDDB struct {
	mu    sync.Mutex
	items map[string]map[string]types.AttributeValue
}

func newFakeDDB() *fakeDDB {
	return &fakeDDB{items: make(map[string]map[string]types.AttributeValue)}
}

func (f *fakeDDB) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := in.Item["base_uri"].(*types.AttributeValueMemberS).Value + ":" +
		in.Item["version"].(*types.AttributeValueMemberN).Value
	if aws.ToString(in.ConditionExpression) == "attribute_not_exists(version)" {
		if _, exists := f.items[key]; exists {
			return nil, &types.ConditionalCheckFailedException{Message: aws.String("condition failed")}
		}
	}
	f.items[key] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDDB) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	uri := in.ExpressionAttributeValues[":uri"].(*types.AttributeValueMemberS).Value
	var items []map[string]types.AttributeValue
	for _, item := range f.items {
		if item["base_uri"].(*types.AttributeValueMemberS).Value == uri {
			items = append(items, item)
		}
	}
	version := func(i int) uint64 {
		v, _ := strconv.ParseUint(items[i]["version"].(*types.AttributeValueMemberN).Value, 10, 64)
		return v
	}
	sort.Slice(items, func(i, j int) bool { return version(i) > version(j) })
	if in.Limit != nil && int(*in.Limit) < len(items) {
		items = items[:*in.Limit]
	}
	return &dynamodb.QueryOutput{Items: items}, nil
}

func newTestCommitStore(ddb *fakeDDB, baseURI string) *DDBCommitStore {
	return NewDDBCommitStore(NewStore(newFakeClient(), "bucket", WithPrefix("run/")), ddb, "kpagg-commits", baseURI)
}

func readCurrent(t *testing.T, s blobstore.BlobStore) string {
	t.Helper()
	data, err := blobstore.ReadAll(context.Background(), s, CurrentName)
	require.NoError(t, err)
	return string(data)
}

func TestDDBCommitStore_Commits(t *testing.T) {
	ctx := context.Background()
	store := newTestCommitStore(newFakeDDB(), "s3://bucket/run/")

	_, err := store.Open(ctx, CurrentName)
	require.ErrorIs(t, err, blobstore.ErrNotFound)

	for i := 1; i <= 3; i++ {
		require.NoError(t, store.Put(ctx, CurrentName, []byte(fmt.Sprintf("checkpoints/%05d", i))))
	}
	assert.Equal(t, "checkpoints/00003", readCurrent(t, store))

	v, err := store.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), v)

	// Other names go to S3.
	require.NoError(t, store.Put(ctx, "checkpoints/00003", []byte("manifest")))
	data, err := blobstore.ReadAll(ctx, store, "checkpoints/00003")
	require.NoError(t, err)
	assert.Equal(t, "manifest", string(data))
}

func TestDDBCommitStore_ConcurrentCommits(t *testing.T) {
	ctx := context.Background()
	store := newTestCommitStore(newFakeDDB(), "s3://bucket/run/")

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			err := store.Put(ctx, CurrentName, []byte(fmt.Sprint(id)))
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				successes++
				return
			}
			assert.ErrorIs(t, err, ErrConcurrentModification)
		}(i)
	}
	wg.Wait()

	v, err := store.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(successes), v)
	assert.Positive(t, successes)
}

func TestDDBCommitStore_IsolatedRuns(t *testing.T) {
	ddb := newFakeDDB()
	a := newTestCommitStore(ddb, "s3://bucket/a/")
	b := newTestCommitStore(ddb, "s3://bucket/b/")
	ctx := context.Background()

	require.NoError(t, a.Put(ctx, CurrentName, []byte("A")))
	require.NoError(t, b.Put(ctx, CurrentName, []byte("B")))

	assert.Equal(t, "A", readCurrent(t, a))
	assert.Equal(t, "B", readCurrent(t, b))
}
