package detect

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/motrack/internal/geom"
)

func TestObjectTypeNames(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 80, NumObjectTypes)
	assert.Equal(t, "person", Person.String())
	assert.Equal(t, "toothbrush", Toothbrush.String())
	assert.Equal(t, ObjectType(79), Toothbrush)
	assert.Equal(t, "ObjectType(200)", ObjectType(200).String())
	assert.False(t, ObjectType(80).Valid())

	for i := 0; i < NumObjectTypes; i++ {
		got, err := ParseObjectType(ObjectType(i).String())
		require.NoError(t, err)
		assert.Equal(t, ObjectType(i), got)
	}
}

func TestParseObjectType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    ObjectType
		wantErr bool
	}{
		{"car", Car, false},
		{" Traffic_Light ", TrafficLight, false},
		{"2", Car, false},
		{"79", Toothbrush, false},
		{"80", 0, true},
		{"-1", 0, true},
		{"2x", 0, true},
		{"unicorn", 0, true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got, err := ParseObjectType(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseObjectTypes(t *testing.T) {
	t.Parallel()

	got, err := ParseObjectTypes("person, car,bus")
	require.NoError(t, err)
	assert.Equal(t, []ObjectType{Person, Car, Bus}, got)

	got, err = ParseObjectTypes("")
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = ParseObjectTypes("person,nope")
	assert.Error(t, err)
}

func TestDetectionJSON(t *testing.T) {
	t.Parallel()

	d := Detection{Type: StopSign, Box: geom.Box{X: 1, Y: 2, W: 3, H: 4}, Confidence: 0.5}
	b, err := json.Marshal(d)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"stop sign","box":{"X":1,"Y":2,"W":3,"H":4},"confidence":0.5}`, string(b))

	var back Detection
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, d, back)
}

func TestFilter(t *testing.T) {
	t.Parallel()

	dets := []Detection{
		{Type: Person, Confidence: 0.9},
		{Type: Car, Confidence: 0.4},
		{Type: Person, Confidence: 0.2},
		{Type: Dog, Confidence: 0.7},
	}

	assert.Len(t, Filter(dets, 0.3, nil), 3)
	assert.Equal(t, []Detection{dets[0]}, Filter(dets, 0.3, []ObjectType{Person}))
	assert.Equal(t, []Detection{dets[1], dets[3]}, Filter(dets, 0, []ObjectType{Car, Dog}))
	assert.Empty(t, Filter(nil, 0, nil))
	assert.Len(t, Boxes(dets), 4)
}
