package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/jkim999/primary-care-consultant/pkg/consultation"
)

const (
	ruleWidth      = 70
	historyExcerpt = 50
)

// ui renders everything the patient sees. Styles come from a renderer bound to out, so
// colors are dropped automatically when out is not a terminal.
type ui struct {
	out io.Writer

	title     lipgloss.Style
	subtitle  lipgloss.Style
	alert     lipgloss.Style
	banner    lipgloss.Style
	assistant lipgloss.Style
	prompt    lipgloss.Style
	success   lipgloss.Style
	note      lipgloss.Style
	muted     lipgloss.Style
	box       lipgloss.Style
}

func newUI(out io.Writer) *ui {
	r := lipgloss.NewRenderer(out)

	return &ui{
		out:       out,
		title:     r.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF")).Width(ruleWidth).Align(lipgloss.Center),
		subtitle:  r.NewStyle().Foreground(lipgloss.Color("#E5C07B")).Width(ruleWidth).Align(lipgloss.Center),
		alert:     r.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF6B6B")),
		banner:    r.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFFFFF")).Background(lipgloss.Color("#C0392B")).Padding(0, 1),
		assistant: r.NewStyle().Bold(true).Foreground(lipgloss.Color("#56B6C2")),
		prompt:    r.NewStyle().Foreground(lipgloss.Color("#98C379")),
		success:   r.NewStyle().Foreground(lipgloss.Color("#98C379")),
		note:      r.NewStyle().Foreground(lipgloss.Color("#E5C07B")),
		muted:     r.NewStyle().Foreground(lipgloss.Color("#888888")),
		box: r.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444444")).
			Padding(0, 1).
			Width(ruleWidth - 2),
	}
}

func (u *ui) println(a ...any) {
	fmt.Fprintln(u.out, a...)
}

func (u *ui) rule() {
	u.println(strings.Repeat("=", ruleWidth))
}

func (u *ui) header() {
	u.println()
	u.rule()
	u.println(u.title.Render("AI PRIMARY CARE CONSULTATION SYSTEM"))
	u.rule()
	u.println(u.subtitle.Render("Virtual Medical Assistant - Available 24/7"))
	u.rule()
}

func (u *ui) disclaimer() {
	u.println()
	u.println(u.alert.Render("IMPORTANT MEDICAL DISCLAIMER:"))
	u.println(u.note.Render(strings.Join([]string{
		"• This system provides general health information only",
		"• It cannot replace professional medical advice",
		"• For emergencies, call 911 immediately",
		"• Always consult a healthcare provider for medical concerns",
	}, "\n")))
	u.println()
	u.rule()
}

func (u *ui) instructions() {
	u.println()
	u.println(u.success.Render("How to use this system:"))
	u.println("1. Describe your symptoms clearly")
	u.println("2. Answer follow-up questions honestly")
	u.println("3. The system will provide guidance or recommend medical attention")
	u.println()
	u.println(u.assistant.Render("Commands:"))
	u.println("• Type your symptoms to start a consultation")
	u.println("• Type 'quit' or 'exit' to leave")
	u.println("• Type 'help' for more information")
	u.println("• Type 'history' to view consultation history")
	u.println()
}

// ask writes a prompt without a trailing newline
func (u *ui) ask(prompt string) {
	fmt.Fprint(u.out, u.prompt.Render(prompt))
}

func (u *ui) question(text string) {
	u.println()
	u.println(u.assistant.Render("Assistant:") + " " + text)
	u.println()
}

func (u *ui) info(format string, a ...any) {
	u.println(u.muted.Render(fmt.Sprintf(format, a...)))
}

func (u *ui) warn(format string, a ...any) {
	u.println(u.note.Render(fmt.Sprintf(format, a...)))
}

func (u *ui) fail(format string, a ...any) {
	u.println(u.alert.Render(fmt.Sprintf(format, a...)))
}

func (u *ui) ok(format string, a ...any) {
	u.println(u.success.Render(fmt.Sprintf(format, a...)))
}

// final shows the consultation outcome, boxed, with the emergency banner when needed
func (u *ui) final(text string, emergency bool) {
	u.println()
	u.rule()
	if emergency {
		u.println(u.banner.Render("URGENT MEDICAL ATTENTION REQUIRED"))
		u.println(u.box.BorderForeground(lipgloss.Color("#C0392B")).Render(u.alert.Render(text)))
	} else {
		u.println(u.success.Bold(true).Render("CONSULTATION SUMMARY"))
		u.println(u.box.Render(text))
	}
	u.rule()
}

// history lists past consultations, oldest first
func (u *ui) history(summaries []consultation.Summary) {
	if len(summaries) == 0 {
		u.warn("No consultation history found.")
		return
	}

	u.println()
	u.println(u.assistant.Render("CONSULTATION HISTORY"))
	u.rule()
	for i, s := range summaries {
		u.println()
		heading := fmt.Sprintf("#%d - %s", i+1, s.Timestamp.Local().Format("2006-01-02 15:04"))
		if s.IsEmergency {
			heading += " " + u.alert.Render("[EMERGENCY]")
		}
		u.println(u.success.Render(heading))
		u.println("Complaint: " + excerpt(s.ChiefComplaint))
		u.println(fmt.Sprintf("Severity: %d/10", s.Severity))
		u.println(fmt.Sprintf("Status: %s", s.Status))
	}
	u.println()
	u.rule()
}

func (u *ui) goodbye(duration time.Duration, count int) {
	u.println()
	u.rule()
	u.println(u.assistant.Render("Thank you for using the AI Primary Care Consultation System"))
	u.println(fmt.Sprintf("Session duration: %d minutes", int(duration.Minutes())))
	u.println(fmt.Sprintf("Consultations completed: %d", count))
	u.println()
	u.println(u.note.Render("Remember: For emergencies, always call 911"))
	u.println(u.success.Render("Stay healthy!"))
	u.rule()
}

func excerpt(text string) string {
	short := consultation.Excerpt(text, historyExcerpt)
	if short != text {
		return short + "..."
	}
	return short
}
