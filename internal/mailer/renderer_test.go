package mailer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var testTicketEmailData = TicketEmailData{
	MachineType:   "forklift",
	MachineSerial: "FL-002",
	OperatorName:  "J. Doe",
	OperatorPhone: "555-0100",
	Summary:       "Hydraulic leak",
	SubmittedAt:   time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
}

func TestRenderTicketEmailContainsBothLanguageVariants(t *testing.T) {
	rendered, err := RenderTicketEmail(testTicketEmailData)
	require.NoError(t, err)

	require.Contains(t, rendered.Subject, "forklift FL-002")
	require.Contains(t, rendered.Subject, "nouvelle demande / new request")

	require.Contains(t, rendered.TextBody, "Nouvelle demande d'assistance")
	require.Contains(t, rendered.TextBody, "New support request")
	require.Contains(t, rendered.TextBody, "Hydraulic leak")
	require.Contains(t, rendered.TextBody, "2026-03-14 09:30 UTC")

	require.Contains(t, rendered.HTMLBody, "<h2>Nouvelle demande d'assistance</h2>")
	require.Contains(t, rendered.HTMLBody, "<h2>New support request</h2>")
	require.Contains(t, rendered.HTMLBody, "J. Doe")
}

func TestRenderTicketEmailIsDeterministic(t *testing.T) {
	first, err := RenderTicketEmail(testTicketEmailData)
	require.NoError(t, err)
	second, err := RenderTicketEmail(testTicketEmailData)
	require.NoError(t, err)

	require.Equal(t, first.Subject, second.Subject)
	require.Equal(t, first.TextBody, second.TextBody)
	require.Equal(t, first.HTMLBody, second.HTMLBody)
	require.Equal(t, first.PayloadHash, second.PayloadHash)
	require.Len(t, first.PayloadHash, 64)
}

func TestRenderTicketEmailEscapesHTMLInputs(t *testing.T) {
	data := testTicketEmailData
	data.Summary = "<script>alert(1)</script>"
	rendered, err := RenderTicketEmail(data)
	require.NoError(t, err)
	require.NotContains(t, rendered.HTMLBody, "<script>alert(1)</script>")
}

func TestRenderTicketEmailRejectsMissingFields(t *testing.T) {
	for _, mutate := range []func(*TicketEmailData){
		func(data *TicketEmailData) { data.MachineType = "" },
		func(data *TicketEmailData) { data.MachineSerial = "  " },
		func(data *TicketEmailData) { data.OperatorName = "" },
		func(data *TicketEmailData) { data.OperatorPhone = "" },
		func(data *TicketEmailData) { data.Summary = "" },
		func(data *TicketEmailData) { data.SubmittedAt = time.Time{} },
	} {
		data := testTicketEmailData
		mutate(&data)
		_, err := RenderTicketEmail(data)
		require.ErrorIs(t, err, ErrMissingEmailField)
	}
}

func TestRenderTicketEmailHashTracksContent(t *testing.T) {
	first, err := RenderTicketEmail(testTicketEmailData)
	require.NoError(t, err)

	changed := testTicketEmailData
	changed.Summary = "Brake pedal unresponsive"
	second, err := RenderTicketEmail(changed)
	require.NoError(t, err)

	require.NotEqual(t, first.PayloadHash, second.PayloadHash)
}
