package graph

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/microsoftgraph/msgraph-sdk-go/models"
	"github.com/pysugar/calsync/internal/calendar"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleEvent() NewEvent {
	return NewEvent{
		Title:          "Mentoring session",
		Participants:   []string{"mentor@example.com", " mentee@example.com"},
		Start:          time.Date(2026, 7, 1, 15, 0, 0, 0, time.FixedZone("EAT", 3*3600)),
		End:            time.Date(2026, 7, 1, 16, 0, 0, 0, time.FixedZone("EAT", 3*3600)),
		ApplicationURL: "https://app.example.com/meet/42",
	}
}

func TestBuildEvent(t *testing.T) {
	event := buildEvent(sampleEvent())

	assert.Equal(t, "Mentoring session", *event.GetSubject())
	assert.Equal(t, models.HTML_BODYTYPE, *event.GetBody().GetContentType())
	assert.Equal(t, `Join the meeting <a href="https://app.example.com/meet/42">here</a>`, *event.GetBody().GetContent())

	assert.Equal(t, "2026-07-01T12:00:00", *event.GetStart().GetDateTime())
	assert.Equal(t, "UTC", *event.GetStart().GetTimeZone())
	assert.Equal(t, "2026-07-01T13:00:00", *event.GetEnd().GetDateTime())

	attendees := event.GetAttendees()
	require.Len(t, attendees, 2)
	assert.Equal(t, "mentee@example.com", *attendees[1].GetEmailAddress().GetAddress())
	assert.Equal(t, "mentee@example.com", *attendees[1].GetEmailAddress().GetName())
	assert.Equal(t, models.REQUIRED_ATTENDEETYPE, *attendees[0].GetTypeEscaped())

	assert.Equal(t, DefaultLocation, *event.GetLocation().GetDisplayName())
	assert.False(t, *event.GetAllowNewTimeProposals())
}

func TestBuildEvent_CustomLocation(t *testing.T) {
	ev := sampleEvent()
	ev.Location = "Room 4"
	assert.Equal(t, "Room 4", *buildEvent(ev).GetLocation().GetDisplayName())
}

func TestNewEvent_Validate(t *testing.T) {
	require.NoError(t, sampleEvent().Validate())

	ev := sampleEvent()
	ev.Title = " "
	ev.End = ev.Start
	ev.Participants = []string{"not-an-email"}
	err := ev.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "title is required")
	assert.Contains(t, err.Error(), "end must be after start")
	assert.Contains(t, err.Error(), "not-an-email")
}

type failingTokens struct{ err error }

func (f failingTokens) AccessToken(context.Context, calendar.ProviderKind, string) (string, error) {
	return "", f.err
}

func TestCreateEvent_PropagatesTokenErrors(t *testing.T) {
	notConnected := &calendar.OpError{Op: "access token", Kind: calendar.ErrCredentialNotFound}
	c := NewClient(failingTokens{err: notConnected})

	_, err := c.CreateEvent(context.Background(), "u1", sampleEvent())
	assert.True(t, errors.Is(err, calendar.ErrCredentialNotFound))
}

func TestStaticTokenCredential(t *testing.T) {
	cred := &staticTokenCredential{accessToken: "tok"}
	tok, err := cred.GetToken(context.Background(), policyOptions())
	require.NoError(t, err)
	assert.Equal(t, "tok", tok.Token)
	assert.True(t, tok.ExpiresOn.After(time.Now()))
}

func policyOptions() policy.TokenRequestOptions {
	return policy.TokenRequestOptions{Scopes: []string{"https://graph.microsoft.com/.default"}}
}
