package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson"
)

func TestAnchorFilter(t *testing.T) {
	filter := anchorFilter("user_id", 42)
	assert.Equal(t, bson.D{{Key: "user_id", Value: int64(42)}}, filter)
}

func TestMemberFilter(t *testing.T) {
	filter := memberFilter("circle_id", 7, "member_ids", 42)
	assert.Equal(t, bson.D{
		{Key: "circle_id", Value: int64(7)},
		{Key: "member_ids", Value: int64(42)},
	}, filter)
}

func TestMemberOfFilter(t *testing.T) {
	filter := memberOfFilter("user_ids", 42)
	assert.Equal(t, bson.D{
		{Key: "user_ids", Value: bson.M{"$in": []int64{42}}},
	}, filter)
}

func TestAddToSetUpdate(t *testing.T) {
	update := addToSet("following", 99)
	assert.Equal(t, bson.M{"$addToSet": bson.M{"following": int64(99)}}, update)
}

func TestPullFromUpdate(t *testing.T) {
	update := pullFrom("freet_ids", 99)
	assert.Equal(t, bson.M{"$pull": bson.M{"freet_ids": int64(99)}}, update)
}

func TestBuildersPerKind(t *testing.T) {
	// every kind routes through the same builders with its own field names
	kinds := []struct {
		anchorField string
		setField    string
	}{
		{"user_id", "following"},
		{"user_id", "followers"},
		{"freet_id", "user_ids"},
		{"circle_id", "member_ids"},
		{"circle_id", "freet_ids"},
	}
	for _, kind := range kinds {
		filter := memberFilter(kind.anchorField, 1, kind.setField, 2)
		assert.Len(t, filter, 2)
		assert.Equal(t, kind.anchorField, filter[0].Key)
		assert.Equal(t, kind.setField, filter[1].Key)

		update := addToSet(kind.setField, 2)
		assert.Contains(t, update, "$addToSet")
	}
}
