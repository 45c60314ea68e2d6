package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransition(t *testing.T) {
	tests := []struct {
		name    string
		from    BookingStatus
		event   BookingEvent
		want    BookingStatus
		wantErr bool
	}{
		{"proof on pending", BookingStatusPending, EventProofUploaded, BookingStatusProofUploaded, false},
		{"cancel pending", BookingStatusPending, EventCancel, BookingStatusCancelled, false},
		{"approve uploaded", BookingStatusProofUploaded, EventApprove, BookingStatusApproved, false},
		{"approve pending", BookingStatusPending, EventApprove, BookingStatusPending, true},
		{"cancel uploaded", BookingStatusProofUploaded, EventCancel, BookingStatusProofUploaded, true},
		{"cancel approved", BookingStatusApproved, EventCancel, BookingStatusApproved, true},
		{"approve twice", BookingStatusApproved, EventApprove, BookingStatusApproved, true},
		{"proof after cancel", BookingStatusCancelled, EventProofUploaded, BookingStatusCancelled, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Transition(tt.from, tt.event)
			assert.Equal(t, tt.want, got)
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrTransitionRejected))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestTransition_OnlyThreeEdges(t *testing.T) {
	statuses := []BookingStatus{BookingStatusCancelled, BookingStatusPending, BookingStatusProofUploaded, BookingStatusApproved}
	events := []BookingEvent{EventProofUploaded, EventApprove, EventCancel}

	legal := 0
	for _, s := range statuses {
		for _, e := range events {
			next, err := Transition(s, e)
			if err != nil {
				continue
			}
			legal++
			src, ok := SourceStatus(e)
			require.True(t, ok)
			assert.Equal(t, src, s)
			assert.NotEqual(t, s, next)
		}
	}
	assert.Equal(t, 3, legal)
}

func TestTerminalStatusesHaveNoExit(t *testing.T) {
	for _, s := range []BookingStatus{BookingStatusApproved, BookingStatusCancelled} {
		assert.True(t, s.Terminal())
		for _, e := range []BookingEvent{EventProofUploaded, EventApprove, EventCancel} {
			_, err := Transition(s, e)
			assert.ErrorIs(t, err, ErrTransitionRejected)
		}
	}
}

func TestParseBookingStatus(t *testing.T) {
	s, err := ParseBookingStatus("PROOF_UPLOADED")
	require.NoError(t, err)
	assert.Equal(t, BookingStatusProofUploaded, s)

	s, err = ParseBookingStatus("-1")
	require.NoError(t, err)
	assert.Equal(t, BookingStatusCancelled, s)

	_, err = ParseBookingStatus("DONE")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestIdentityDisplay(t *testing.T) {
	assert.Equal(t, "@anna", Identity{UserID: 1, Username: "anna", FirstName: "Anna"}.Display())
	assert.Equal(t, "Anna", Identity{UserID: 1, FirstName: "Anna"}.Display())
	assert.Equal(t, "ID: 42", Identity{UserID: 42}.Display())
}
