package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/Domenick1991/coursebot/api"
	"github.com/Domenick1991/coursebot/config"
	"github.com/Domenick1991/coursebot/internal/domain"
	"github.com/Domenick1991/coursebot/internal/logger"
	"github.com/Domenick1991/coursebot/internal/service/reporting"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_UnknownCommand(t *testing.T) {
	var out bytes.Buffer
	err := run(context.Background(), config.Default(), logger.Discard(), "export", nil, &out)
	assert.ErrorIs(t, err, errUsage)
}

func TestIssueToken(t *testing.T) {
	cfg := config.Default()
	cfg.Admin.JWTSecret = "s3cret"

	var out bytes.Buffer
	require.NoError(t, run(context.Background(), cfg, logger.Discard(), "issue-token", []string{"--subject", "ops"}, &out))

	claims, err := api.NewTokenIssuer("s3cret", time.Hour).Parse(strings.TrimSpace(out.String()))
	require.NoError(t, err)
	assert.Equal(t, "ops", claims.Subject)
}

func TestIssueToken_RequiresSecret(t *testing.T) {
	var out bytes.Buffer
	err := run(context.Background(), config.Default(), logger.Discard(), "issue-token", nil, &out)
	assert.ErrorIs(t, err, config.ErrMissingJWT)
}

func TestConfirm(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"y\n", true},
		{"YES\n", true},
		{"n\n", false},
		{"\n", false},
		{"", false},
	}
	for _, tt := range tests {
		var out bytes.Buffer
		assert.Equal(t, tt.want, confirm(&out, strings.NewReader(tt.input), "delete?"), "input %q", tt.input)
		assert.Equal(t, "delete? [y/N] ", out.String())
	}
}

func TestPrintParticipants(t *testing.T) {
	var out bytes.Buffer
	printParticipants(&out, []reporting.Participant{
		{
			Booking:    domain.Booking{ID: 5, UserID: 7, Username: "anna", Status: domain.BookingStatusPending},
			CourseName: "Vibe Coding",
			Days:       2,
			Hours:      3,
			Overdue:    true,
		},
	})

	got := out.String()
	assert.Contains(t, got, "@anna")
	assert.Contains(t, got, "PENDING")
	assert.Contains(t, got, "2d 3h")
	assert.Contains(t, got, "overdue")
	assert.Contains(t, got, "total: 1")
}

func TestPrintSummary(t *testing.T) {
	var out bytes.Buffer
	printSummary(&out, &reporting.BookingSummary{
		Total:    3,
		ByStatus: map[domain.BookingStatus]int{domain.BookingStatusApproved: 2, domain.BookingStatusPending: 1},
		ByCourse: map[string]int{"Vibe Coding": 3},
	})

	got := out.String()
	assert.Regexp(t, `APPROVED\s+2`, got)
	assert.Regexp(t, `CANCELLED\s+0`, got)
	assert.Regexp(t, `Vibe Coding\s+3`, got)
	assert.Contains(t, got, "total: 3")
}
