package model

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseExpand(t *testing.T) {
	assert.Equal(t, Expand{}, ParseExpand(""))
	assert.Equal(t, Expand{Images: true}, ParseExpand("images"))
	assert.Equal(t, Expand{Images: true, Credits: true}, ParseExpand("credits, images"))
	// Unknown relations are ignored, not rejected.
	assert.Equal(t, Expand{Credits: true}, ParseExpand("credits,leaderboards"))
}

func TestExpandCacheKeySeparatesViews(t *testing.T) {
	mapID := uuid.New()

	plain := MapDetailCacheKey(mapID, Expand{})
	images := MapDetailCacheKey(mapID, Expand{Images: true})
	full := MapDetailCacheKey(mapID, Expand{Images: true, Credits: true})

	assert.NotEqual(t, plain, images)
	assert.NotEqual(t, images, full)
}

func TestListMapsRequestValidate(t *testing.T) {
	valid := ListMapsRequest{Skip: 0, Take: 20}
	assert.NoError(t, valid.Validate())

	bad := valid
	bad.Skip = -1
	assert.Error(t, bad.Validate())

	bad = valid
	bad.Take = 0
	assert.Error(t, bad.Validate())

	bad = valid
	bad.Take = 101
	assert.Error(t, bad.Validate())

	bad = valid
	bad.Type = "walljump"
	assert.Error(t, bad.Validate())

	low, hi := 7, 3
	bad = valid
	bad.DifficultyLow = &low
	bad.DifficultyHi = &hi
	assert.Error(t, bad.Validate())
}

func TestToMapInputIgnoresBodySubmitter(t *testing.T) {
	submitter := uuid.New()
	credited := uuid.New()

	req := CreateMapRequest{
		Name:       "surf_utopia",
		Type:       "surf",
		Difficulty: 6,
		IsLinear:   true,
		Credits:    []CreditInput{{UserID: credited.String(), Role: "author"}},
	}

	input := req.ToMapInput(submitter)
	assert.Equal(t, submitter, input.SubmitterID)
	assert.Equal(t, TypeSurf, input.Type)
	require.Len(t, input.Credits, 1)
	assert.Equal(t, credited, input.Credits[0].UserID)
	assert.Equal(t, RoleAuthor, input.Credits[0].Role)
}
