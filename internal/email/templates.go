package email

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
)

//go:embed templates/*.html
var templateFS embed.FS

type baseEmailData struct {
	Title    string
	Heading  string
	CTALabel string
	CTAURL   string
}

// LeadAlertData feeds the owner notification email.
type LeadAlertData struct {
	HighPriority    bool
	ClientName      string
	ClientEmail     string
	ClientContact   string
	ClientAddress   string
	ListingTitle    string
	ListingLocation string
	Price           string
	DealType        string
	Score           int
	BuyingIntent    string
	Interactions    int
	LastMessage     string
	DashboardURL    string
}

// FollowUpData feeds the automatic client follow-up email.
type FollowUpData struct {
	ClientName   string
	ListingTitle string
	Body         string
}

type leadAlertEmailData struct {
	baseEmailData
	LeadAlertData
}

type followUpEmailData struct {
	baseEmailData
	FollowUpData
}

// RenderLeadAlert builds the owner alert email for a captured lead.
func RenderLeadAlert(data LeadAlertData) (Message, error) {
	heading := "New Lead Received"
	subject := fmt.Sprintf(subjectNewLeadFmt, data.ClientName, data.ListingTitle)
	if data.HighPriority {
		heading = "High Priority Lead"
		subject = fmt.Sprintf(subjectHighPriorityLeadFmt, data.ClientName, data.ListingTitle)
	}

	html, err := renderEmailTemplate("lead_alert.html", leadAlertEmailData{
		baseEmailData: baseEmailData{
			Title:    heading,
			Heading:  heading,
			CTALabel: "View Lead Details",
			CTAURL:   data.DashboardURL,
		},
		LeadAlertData: data,
	})
	if err != nil {
		return Message{}, err
	}
	return Message{Subject: subject, HTML: html}, nil
}

// RenderFollowUp builds the follow-up email sent to a client.
func RenderFollowUp(data FollowUpData) (Message, error) {
	html, err := renderEmailTemplate("follow_up.html", followUpEmailData{
		baseEmailData: baseEmailData{
			Title:   data.ListingTitle,
			Heading: data.ListingTitle,
		},
		FollowUpData: data,
	})
	if err != nil {
		return Message{}, err
	}
	return Message{Subject: fmt.Sprintf(subjectFollowUpFmt, data.ListingTitle), HTML: html}, nil
}

func renderEmailTemplate(name string, data any) (string, error) {
	templates := []string{"templates/base.html", "templates/" + name}
	tmpl, err := template.New("base.html").ParseFS(templateFS, templates...)
	if err != nil {
		return "", fmt.Errorf("parse email template %s: %w", name, err)
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "email", data); err != nil {
		return "", fmt.Errorf("execute email template %s: %w", name, err)
	}
	return buf.String(), nil
}
