package payload_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentoven/voicebridge/internal/payload"
)

func TestDecodeSync_Fields(t *testing.T) {
	in, err := payload.DecodeSync([]byte(`{"fields":["voice","prompt"]}`), payload.AgentFields)
	require.NoError(t, err)
	assert.False(t, in.All)
	assert.Equal(t, []string{"prompt", "voice"}, in.Fields.Names())
}

func TestDecodeSync_All(t *testing.T) {
	in, err := payload.DecodeSync([]byte(`{"all":true}`), payload.PathwayFields)
	require.NoError(t, err)
	assert.True(t, in.All)
	assert.Nil(t, in.Fields)
}

func TestDecodeSync_Errors(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"empty body", ``, payload.NonFieldErrors},
		{"empty object", `{}`, "fields"},
		{"all false", `{"all":false}`, "fields"},
		{"empty list", `{"fields":[]}`, "fields"},
		{"not a list", `{"fields":"voice"}`, "fields"},
		{"unknown field", `{"fields":["voice","remote_id"]}`, "fields"},
		{"both", `{"all":true,"fields":["voice"]}`, payload.NonFieldErrors},
		{"bad all", `{"all":"yes"}`, "all"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := payload.DecodeSync([]byte(tt.body), payload.AgentFields)
			var ve *payload.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Contains(t, ve.Fields, tt.field)
		})
	}
}

func TestDecodeSync_PathwayFieldsOnly(t *testing.T) {
	_, err := payload.DecodeSync([]byte(`{"fields":["voice"]}`), payload.PathwayFields)
	assert.Error(t, err)
}
