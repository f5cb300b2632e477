package shorten

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"plain", Plain, false},
		{"PLAIN", Plain, false},
		{" normal ", Plain, false},
		{"punctuation", WithPunctuation, false},
		{"with-punctuation", WithPunctuation, false},
		{"WithPunctuation", WithPunctuation, false},
		{"punct", WithPunctuation, false},
		{"", 0, true},
		{"samecase", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got, err := ParseMode(tt.in)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidMode)
				assert.Contains(t, err.Error(), tt.in)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMode_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "plain", Plain.String())
	assert.Equal(t, "punctuation", WithPunctuation.String())
	assert.Equal(t, "Mode(5)", Mode(5).String())
	assert.False(t, Mode(5).Valid())
	assert.Equal(t, []Mode{Plain, WithPunctuation}, Modes())
}

func TestMode_JSON(t *testing.T) {
	t.Parallel()

	var payload struct {
		Mode Mode `json:"mode"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"mode":"punctuation"}`), &payload))
	assert.Equal(t, WithPunctuation, payload.Mode)

	err := json.Unmarshal([]byte(`{"mode":"loud"}`), &payload)
	assert.ErrorIs(t, err, ErrInvalidMode)

	_, err = json.Marshal(struct{ M Mode }{M: Mode(9)})
	assert.Error(t, err)
}
