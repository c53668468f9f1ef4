package api

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanRequest_Decode(t *testing.T) {
	body := `{
		"filename": "people.csv",
		"operations": {
			"drop_duplicates": true,
			"missing_value_operations": [
				{"column": "age", "missingType": "null", "action": "replace", "replacement": 0},
				{"column": "city", "missingType": "custom", "action": "replace", "replacement": "?"},
				{"column": "score", "missingType": "nan", "action": "mean", "replacement": null},
				{"column": "ok", "missingType": "null", "action": "replace", "replacement": true}
			],
			"drop_columns": ["notes"]
		}
	}`

	var req CleanRequest
	require.NoError(t, json.Unmarshal([]byte(body), &req))

	assert.Equal(t, "people.csv", req.Filename)
	assert.True(t, req.Operations.DropDuplicates)
	assert.Equal(t, []string{"notes"}, req.Operations.DropColumns)

	ops := req.Operations.MissingValueOperations
	require.Len(t, ops, 4)
	assert.Equal(t, "0", *ops[0].Replacement.Ptr())
	assert.Equal(t, "?", ops[1].Replacement.String())
	assert.Nil(t, ops[2].Replacement)
	assert.Nil(t, ops[2].Replacement.Ptr())
	assert.Equal(t, "True", ops[3].Replacement.String())
}

func TestReplacement_KeepsNumberText(t *testing.T) {
	var r Replacement
	require.NoError(t, json.Unmarshal([]byte(`2.50`), &r))
	assert.Equal(t, "2.50", r.String())

	require.NoError(t, json.Unmarshal([]byte(`-7`), &r))
	assert.Equal(t, "-7", r.String())
}

func TestReplacement_RejectsObjects(t *testing.T) {
	var r Replacement
	assert.Error(t, json.Unmarshal([]byte(`{"v":1}`), &r))
	assert.Error(t, json.Unmarshal([]byte(`[1]`), &r))
}
