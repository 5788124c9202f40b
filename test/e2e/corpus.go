// Package e2e builds a synthetic wiki export and checks retrieval against it.
package e2e

import (
	"fmt"
	"html"
	"strings"
)

// WikiPage is one exported Confluence page in the E2E corpus.
type WikiPage struct {
	File  string
	Title string
	Body  string
}

// QueryCase is a question and the page that must be among its sources.
type QueryCase struct {
	Question       string
	ExpectedSource string
}

// Corpus holds pages and query cases for E2E tests.
type Corpus struct {
	Pages []WikiPage
	Cases []QueryCase
}

// footer pads every page past the minimum content length.
const footer = " This page is owned by the platform group and reviewed every quarter."

// BuildCorpus returns one page per topic. Each page carries a signature phrase that
// no other page uses, and each case asks about one signature.
func BuildCorpus() *Corpus {
	topics := []struct {
		title, signature, body string
	}{
		{"VPN Setup", "wireguard tunnel profile", "Employees connect through a wireguard tunnel profile issued by the helpdesk portal. Profiles expire after ninety days."},
		{"Expense Policy", "receipt reimbursement deadline", "Submit every receipt within thirty days. The receipt reimbursement deadline is the fifth business day of the month."},
		{"Release Process", "production deploy approvals", "A production deploy approvals step requires two reviewers and a green pipeline before merging."},
		{"Incident Response", "pager escalation ladder", "Follow the pager escalation ladder: primary, secondary, then the engineering manager after fifteen minutes."},
		{"Onboarding Checklist", "laptop enrollment badge", "New hires complete laptop enrollment badge pickup and security training during their first week."},
		{"Database Backups", "snapshot retention window", "Nightly snapshots are kept for a snapshot retention window of thirty five days in cold storage."},
		{"Kubernetes Clusters", "namespace quota request", "Teams file a namespace quota request before adding workloads to the shared clusters."},
		{"Code Review Guidelines", "reviewer rotation fairness", "Reviewer rotation fairness is tracked weekly so no engineer reviews more than ten pull requests."},
		{"Holiday Calendar", "regional public holidays", "Each office publishes regional public holidays in January. Offices may swap one floating day."},
		{"Office Wifi", "guest network voucher", "Visitors receive a guest network voucher from reception valid for twenty four hours."},
		{"Secrets Management", "vault lease renewal", "Services renew credentials through vault lease renewal every hour using their workload identity."},
		{"Logging Standards", "structured json fields", "Applications emit structured json fields including trace identifiers and severity levels."},
		{"Feature Flags", "gradual rollout percentage", "Product teams raise the gradual rollout percentage in steps of ten while watching error rates."},
		{"Travel Booking", "airfare booking tool", "Book flights through the airfare booking tool at least fourteen days ahead of departure."},
		{"Parental Leave", "sixteen weeks leave", "Parents may take sixteen weeks leave at full salary within the first year after birth or adoption."},
		{"Data Retention", "customer record purge", "A customer record purge runs monthly for accounts closed longer than seven years."},
		{"API Gateway", "rate limit headers", "The gateway returns rate limit headers so clients can back off before throttling begins."},
		{"Performance Reviews", "calibration committee meeting", "Managers present ratings at the calibration committee meeting held twice each year."},
		{"Mobile Releases", "app store submission", "Mobile app store submission happens every second Thursday after regression testing finishes."},
		{"Design System", "button component tokens", "The button component tokens define spacing, colour and typography for every product surface."},
	}

	c := &Corpus{}
	for i, t := range topics {
		file := fmt.Sprintf("page-%03d.html", i+1)
		c.Pages = append(c.Pages, WikiPage{File: file, Title: t.title, Body: t.body + footer})
		c.Cases = append(c.Cases, QueryCase{
			Question:       "what is the " + t.signature,
			ExpectedSource: file,
		})
	}
	return c
}

// RenderHTML renders p the way Confluence exports a page.
func RenderHTML(p WikiPage) string {
	var b strings.Builder
	b.WriteString("<!DOCTYPE html><html><head><title>")
	b.WriteString(html.EscapeString(p.Title))
	b.WriteString("</title><style>body{font-family:sans-serif}</style></head><body>")
	b.WriteString(`<div id="breadcrumbs"><a href="index.html">Engineering Wiki</a></div>`)
	b.WriteString(`<div id="main-content" class="wiki-content group"><h1>`)
	b.WriteString(html.EscapeString(p.Title))
	b.WriteString("</h1><p>")
	b.WriteString(html.EscapeString(p.Body))
	b.WriteString("</p></div>")
	b.WriteString(`<div id="footer">Document generated by Confluence</div></body></html>`)
	return b.String()
}

func containsSignature(p WikiPage, question string) bool {
	sig := strings.TrimPrefix(question, "what is the ")
	return strings.Contains(p.Body, sig)
}
