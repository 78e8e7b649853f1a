package dto

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendBulkRequest_Validate(t *testing.T) {
	media := &MediaPayload{Name: "a.png", Data: "aGk="}

	tests := []struct {
		name string
		req  SendBulkRequest
		want error
	}{
		{"recipients and message", SendBulkRequest{Recipients: RecipientList{"9123456789"}, Message: "hi"}, nil},
		{"phone numbers and media", SendBulkRequest{PhoneNumbers: RecipientList{"9123456789"}, Media: media}, nil},
		{"no recipients", SendBulkRequest{Message: "hi"}, ErrRecipientsRequired},
		{"blank message", SendBulkRequest{Recipients: RecipientList{"9123456789"}, Message: "  "}, ErrBodyRequired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.req.Validate())
		})
	}

	group := GroupSendRequest{SessionID: "acme", GroupID: "1@g.us"}
	assert.Equal(t, ErrBodyRequired, group.Validate())
}

func TestRecipientList_UnmarshalJSON(t *testing.T) {
	var req SendBulkRequest
	require.NoError(t, json.Unmarshal([]byte(`{"recipients":"9123456789, 9123456780","phoneNumbers":["9000000001"]}`), &req))
	assert.Equal(t, []string{"9123456789, 9123456780", "9000000001"}, req.AllRecipients())

	assert.Error(t, json.Unmarshal([]byte(`{"recipients":42}`), &req))
}
