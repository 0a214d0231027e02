// Package graph creates Outlook calendar events through Microsoft Graph
// using stored calendar credentials.
package graph

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	auth "github.com/microsoft/kiota-authentication-azure-go"
	msgraphsdk "github.com/microsoftgraph/msgraph-sdk-go"
	"github.com/microsoftgraph/msgraph-sdk-go/models"
	"github.com/microsoftgraph/msgraph-sdk-go/models/odataerrors"
	"github.com/pysugar/calsync/internal/calendar"
	"github.com/pysugar/calsync/internal/logging"
	"golang.org/x/time/rate"
)

const (
	// DefaultLocation is used when an event names no location.
	DefaultLocation = "Nabantu Campus"

	graphDateTimeLayout = "2006-01-02T15:04:05"

	// Graph allows roughly 10k requests per 10 minutes per app and mailbox.
	requestsPerSecond = 10.0
	burstSize         = 15
)

// TokenSource yields a currently valid access token for a user's calendar.
type TokenSource interface {
	AccessToken(ctx context.Context, kind calendar.ProviderKind, userID string) (string, error)
}

// NewEvent describes a meeting to place on the user's Outlook calendar.
type NewEvent struct {
	Title          string    `json:"title"`
	Participants   []string  `json:"participants"`
	Start          time.Time `json:"start"`
	End            time.Time `json:"end"`
	ApplicationURL string    `json:"application_url"`
	Location       string    `json:"location,omitempty"`
}

// Validate checks the fields Graph requires.
func (e NewEvent) Validate() error {
	var errs []error
	if strings.TrimSpace(e.Title) == "" {
		errs = append(errs, errors.New("title is required"))
	}
	if e.Start.IsZero() || e.End.IsZero() {
		errs = append(errs, errors.New("start and end are required"))
	} else if !e.End.After(e.Start) {
		errs = append(errs, errors.New("end must be after start"))
	}
	for _, p := range e.Participants {
		if !strings.Contains(p, "@") {
			errs = append(errs, fmt.Errorf("participant %q is not an email address", p))
		}
	}
	return errors.Join(errs...)
}

type Client struct {
	tokens  TokenSource
	limiter *rate.Limiter
}

func NewClient(tokens TokenSource) *Client {
	return &Client{
		tokens:  tokens,
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), burstSize),
	}
}

// CreateEvent posts ev to the user's default calendar and returns the Graph
// event id.
func (c *Client) CreateEvent(ctx context.Context, userID string, ev NewEvent) (string, error) {
	if err := ev.Validate(); err != nil {
		return "", err
	}

	token, err := c.tokens.AccessToken(ctx, calendar.ProviderOutlook, userID)
	if err != nil {
		return "", err
	}

	service, err := newServiceClient(token)
	if err != nil {
		return "", err
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}

	created, err := service.Me().Events().Post(ctx, buildEvent(ev), nil)
	if err != nil {
		return "", describeError(err)
	}
	if created == nil || created.GetId() == nil {
		return "", errors.New("graph returned no event id")
	}

	logging.Ctx(ctx, "graph").Info().
		Str("user_id", userID).
		Str("event_id", *created.GetId()).
		Int("attendees", len(ev.Participants)).
		Msg("calendar event created")
	return *created.GetId(), nil
}

func newServiceClient(accessToken string) (*msgraphsdk.GraphServiceClient, error) {
	authProvider, err := auth.NewAzureIdentityAuthenticationProvider(&staticTokenCredential{accessToken: accessToken})
	if err != nil {
		return nil, fmt.Errorf("failed to create auth provider: %w", err)
	}
	adapter, err := msgraphsdk.NewGraphRequestAdapter(authProvider)
	if err != nil {
		return nil, fmt.Errorf("failed to create Graph request adapter: %w", err)
	}
	return msgraphsdk.NewGraphServiceClient(adapter), nil
}

// buildEvent maps ev onto the Graph event model. Times are sent as UTC wall
// clock values.
func buildEvent(ev NewEvent) models.Eventable {
	event := models.NewEvent()

	title := ev.Title
	event.SetSubject(&title)

	body := models.NewItemBody()
	contentType := models.HTML_BODYTYPE
	content := fmt.Sprintf(`Join the meeting <a href="%s">here</a>`, ev.ApplicationURL)
	body.SetContentType(&contentType)
	body.SetContent(&content)
	event.SetBody(body)

	event.SetStart(utcDateTime(ev.Start))
	event.SetEnd(utcDateTime(ev.End))

	attendees := make([]models.Attendeeable, 0, len(ev.Participants))
	for _, p := range ev.Participants {
		address := strings.TrimSpace(p)
		name := address

		email := models.NewEmailAddress()
		email.SetAddress(&address)
		email.SetName(&name)

		attendee := models.NewAttendee()
		attendee.SetEmailAddress(email)
		required := models.REQUIRED_ATTENDEETYPE
		attendee.SetTypeEscaped(&required)
		attendees = append(attendees, attendee)
	}
	event.SetAttendees(attendees)

	locationName := ev.Location
	if strings.TrimSpace(locationName) == "" {
		locationName = DefaultLocation
	}
	location := models.NewLocation()
	location.SetDisplayName(&locationName)
	event.SetLocation(location)

	allowProposals := false
	event.SetAllowNewTimeProposals(&allowProposals)
	return event
}

func utcDateTime(t time.Time) models.DateTimeTimeZoneable {
	value := t.UTC().Format(graphDateTimeLayout)
	zone := "UTC"
	dt := models.NewDateTimeTimeZone()
	dt.SetDateTime(&value)
	dt.SetTimeZone(&zone)
	return dt
}

func describeError(err error) error {
	var odataErr *odataerrors.ODataError
	if errors.As(err, &odataErr) {
		if inner := odataErr.GetErrorEscaped(); inner != nil {
			code, msg := "", ""
			if inner.GetCode() != nil {
				code = *inner.GetCode()
			}
			if inner.GetMessage() != nil {
				msg = *inner.GetMessage()
			}
			return fmt.Errorf("graph create event failed (%s): %s", code, msg)
		}
	}
	return fmt.Errorf("graph create event failed: %w", err)
}

// staticTokenCredential hands a stored access token to the Graph SDK.
type staticTokenCredential struct {
	accessToken string
}

func (c *staticTokenCredential) GetToken(ctx context.Context, options policy.TokenRequestOptions) (azcore.AccessToken, error) {
	return azcore.AccessToken{
		Token:     c.accessToken,
		ExpiresOn: time.Now().Add(1 * time.Hour),
	}, nil
}
