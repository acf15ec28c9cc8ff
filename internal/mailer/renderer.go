package mailer

import (
	"bytes"
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"errors"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"
	"time"
)

//go:embed templates/ticket_subject.tmpl
var ticketSubjectTemplateText string

//go:embed templates/ticket_body.txt.tmpl
var ticketBodyTextTemplateText string

//go:embed templates/ticket_body.html.tmpl
var ticketBodyHTMLTemplateText string

var (
	ticketSubjectTemplate  = texttemplate.Must(texttemplate.New("ticket_subject").Parse(ticketSubjectTemplateText))
	ticketBodyTextTemplate = texttemplate.Must(texttemplate.New("ticket_body_text").Parse(ticketBodyTextTemplateText))
	ticketBodyHTMLTemplate = htmltemplate.Must(htmltemplate.New("ticket_body_html").Parse(ticketBodyHTMLTemplateText))
)

const (
	submittedAtLayout = "2006-01-02 15:04 UTC"

	errorMessageMissingEmailField = "mailer: missing required email field"
	errorMessageRenderTemplate    = "mailer: render template"
)

// ErrMissingEmailField indicates a required ticket field was empty at render
// time. Rendering fails loudly rather than producing a partial message.
var ErrMissingEmailField = errors.New(errorMessageMissingEmailField)

// TicketEmailData is the snapshot of a ticket used to render the support
// notification email.
type TicketEmailData struct {
	MachineType   string
	MachineSerial string
	OperatorName  string
	OperatorPhone string
	Summary       string
	SubmittedAt   time.Time
}

// RenderedEmail holds the rendered subject and bodies. Both language variants
// are always present in one message. PayloadHash fingerprints the content for
// the email log.
type RenderedEmail struct {
	Subject     string
	TextBody    string
	HTMLBody    string
	PayloadHash string
}

type ticketEmailView struct {
	MachineType   string
	MachineSerial string
	OperatorName  string
	OperatorPhone string
	Summary       string
	SubmittedAt   string
}

// RenderTicketEmail renders the bilingual subject, plain-text body, and HTML
// body for a ticket. Rendering is pure and deterministic: identical input
// yields byte-identical output.
func RenderTicketEmail(data TicketEmailData) (RenderedEmail, error) {
	if validationErr := validateTicketEmailData(data); validationErr != nil {
		return RenderedEmail{}, validationErr
	}

	view := ticketEmailView{
		MachineType:   strings.TrimSpace(data.MachineType),
		MachineSerial: strings.TrimSpace(data.MachineSerial),
		OperatorName:  strings.TrimSpace(data.OperatorName),
		OperatorPhone: strings.TrimSpace(data.OperatorPhone),
		Summary:       strings.TrimSpace(data.Summary),
		SubmittedAt:   data.SubmittedAt.UTC().Format(submittedAtLayout),
	}

	subject, subjectErr := executeTextTemplate(ticketSubjectTemplate, view)
	if subjectErr != nil {
		return RenderedEmail{}, subjectErr
	}
	textBody, textErr := executeTextTemplate(ticketBodyTextTemplate, view)
	if textErr != nil {
		return RenderedEmail{}, textErr
	}

	var htmlBuffer bytes.Buffer
	if htmlErr := ticketBodyHTMLTemplate.Execute(&htmlBuffer, view); htmlErr != nil {
		return RenderedEmail{}, fmt.Errorf("%s: %w", errorMessageRenderTemplate, htmlErr)
	}
	htmlBody := strings.TrimSpace(htmlBuffer.String())

	payloadDigest := sha256.Sum256([]byte(subject + "\n" + textBody))

	return RenderedEmail{
		Subject:     subject,
		TextBody:    textBody,
		HTMLBody:    htmlBody,
		PayloadHash: hex.EncodeToString(payloadDigest[:]),
	}, nil
}

func validateTicketEmailData(data TicketEmailData) error {
	requiredFields := map[string]string{
		"machine_type":   data.MachineType,
		"machine_serial": data.MachineSerial,
		"operator_name":  data.OperatorName,
		"operator_phone": data.OperatorPhone,
		"summary":        data.Summary,
	}
	for fieldName, fieldValue := range requiredFields {
		if strings.TrimSpace(fieldValue) == "" {
			return fmt.Errorf("%w: %s", ErrMissingEmailField, fieldName)
		}
	}
	if data.SubmittedAt.IsZero() {
		return fmt.Errorf("%w: submitted_at", ErrMissingEmailField)
	}
	return nil
}

func executeTextTemplate(tmpl *texttemplate.Template, view ticketEmailView) (string, error) {
	var buffer bytes.Buffer
	if executeErr := tmpl.Execute(&buffer, view); executeErr != nil {
		return "", fmt.Errorf("%s: %w", errorMessageRenderTemplate, executeErr)
	}
	return strings.TrimSpace(buffer.String()), nil
}
