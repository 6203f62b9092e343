package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNullableJSONStates(t *testing.T) {
	var p TaskPatch
	require.NoError(t, json.Unmarshal([]byte(`{"assignee_id": null, "time_spent": 15}`), &p))

	assert.True(t, p.AssigneeID.Set)
	assert.False(t, p.AssigneeID.Valid)
	assert.Nil(t, p.AssigneeID.Ptr())

	assert.True(t, p.TimeSpent.Set)
	require.NotNil(t, p.TimeSpent.Ptr())
	assert.Equal(t, 15, *p.TimeSpent.Ptr())

	assert.False(t, p.Description.Set, "absent field stays unset")
}

func TestNullableMarshalOmitsAbsent(t *testing.T) {
	p := TaskPatch{AssigneeID: Null[string](), TimeEstimate: Value(30)}
	b, err := json.Marshal(p)
	require.NoError(t, err)
	assert.JSONEq(t, `{"assignee_id": null, "time_estimate": 30}`, string(b))
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "2024-05-01", want: "2024-05-01"},
		{in: "2024-05-01T23:30:00Z", want: "2024-05-01"},
		{in: " 2024-12-31 ", want: "2024-12-31"},
		{in: "01/05/2024", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			d, err := ParseDate(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidInput)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, d.String())
		})
	}
}

func TestDateJSONAndScan(t *testing.T) {
	var task struct {
		Due *Date `json:"due_date"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"due_date":"2024-06-10T08:00:00-03:00"}`), &task))
	require.NotNil(t, task.Due)
	assert.Equal(t, "2024-06-10", task.Due.String())

	b, err := json.Marshal(task)
	require.NoError(t, err)
	assert.JSONEq(t, `{"due_date":"2024-06-10"}`, string(b))

	var d Date
	require.NoError(t, d.Scan(time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "2024-02-29", d.String())
	v, err := d.Value()
	require.NoError(t, err)
	assert.Equal(t, "2024-02-29", v)
}
