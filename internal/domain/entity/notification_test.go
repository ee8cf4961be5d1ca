package entity

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOutputType(t *testing.T) {
	tests := []struct {
		in      string
		want    OutputType
		wantErr bool
	}{
		{in: "EMAIL", want: OutputEmail},
		{in: "email", want: OutputEmail},
		{in: " Sms ", want: OutputSMS},
		{in: "push", want: OutputPush},
		{in: "fax", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseOutputType(tt.in)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidInput)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNotification_Recipients(t *testing.T) {
	n := Notification{Recipient: " a@example.com,, b@example.com ,"}
	if diff := cmp.Diff([]string{"a@example.com", "b@example.com"}, n.Recipients()); diff != "" {
		t.Errorf("Recipients mismatch (-want +got):\n%s", diff)
	}
	assert.Empty(t, (&Notification{}).Recipients())
}
