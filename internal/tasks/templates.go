package tasks

import (
	"fmt"
	"strings"
	"text/template"
)

var funcs = template.FuncMap{
	"money": func(v float64) string { return fmt.Sprintf("$%.2f", v) },
}

type mailTemplate struct {
	subject *template.Template
	body    *template.Template
}

func mustTemplate(name, subject, body string) mailTemplate {
	return mailTemplate{
		subject: template.Must(template.New(name + ".subject").Funcs(funcs).Parse(subject)),
		body:    template.Must(template.New(name + ".body").Funcs(funcs).Parse(body)),
	}
}

func execute(t mailTemplate, data any) (string, string, error) {
	var subject, body strings.Builder
	if err := t.subject.Execute(&subject, data); err != nil {
		return "", "", err
	}
	if err := t.body.Execute(&body, data); err != nil {
		return "", "", err
	}
	return subject.String(), body.String(), nil
}

var bookingConfirmationTmpl = mustTemplate(TemplateBookingConfirmation,
	`Booking Confirmed - Job #{{.JobNumber}}`,
	`Hi {{.CustomerName}},

Your move is booked.

Job number:   {{.JobNumber}}
Pickup:       {{.PickupAddress}}
Dropoff:      {{.DropoffAddress}}
Scheduled:    {{.ScheduledDate}} at {{.ScheduledTime}}

Estimated total: {{money .EstimatedTotal}}
Deposit due:     {{money .DepositAmount}}

Your booking is confirmed once the deposit is paid.
`)

var invoiceReadyTmpl = mustTemplate(TemplateInvoiceReady,
	`Invoice {{.InvoiceNumber}} for Job #{{.JobNumber}}`,
	`Hi {{.CustomerName}},

Your invoice for job #{{.JobNumber}} is ready.

From: {{.PickupAddress}}
To:   {{.DropoffAddress}}
{{- if .CompletedDate}}
Completed: {{.CompletedDate}}
{{- end}}

Total:        {{money .Total}}
Deposit:      {{money .DepositAmount}}
Balance due:  {{money .FinalAmount}}

View and pay your invoice: {{.InvoiceURL}}
`)
