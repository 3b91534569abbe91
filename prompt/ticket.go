package prompt

import (
	"github.com/randalmurphal/proref/ticket"
)

// TicketData is the data every ticket prompt is rendered with.
type TicketData struct {
	Title              string
	Type               string
	Description        string
	AcceptanceCriteria string
	Related            []ticket.Related
	Preset             Preset
}

func (l *Loader) ticketData(t *ticket.Ticket, preset string) TicketData {
	return TicketData{
		Title:              t.Title,
		Type:               t.IssueType,
		Description:        t.Description,
		AcceptanceCriteria: t.AcceptanceCriteria,
		Preset:             l.Preset(preset),
	}
}

// QuestionsPrompt renders the clarifying questions prompt. related are
// similar tickets offered as context.
func (l *Loader) QuestionsPrompt(t *ticket.Ticket, preset string, related []ticket.Related) (string, error) {
	data := l.ticketData(t, preset)
	data.Related = related
	return l.Render(Questions, data)
}

// TestCasesPrompt renders the test case prompt.
func (l *Loader) TestCasesPrompt(t *ticket.Ticket, preset string) (string, error) {
	return l.Render(TestCases, l.ticketData(t, preset))
}

// ScorePrompt renders the quality scoring prompt.
func (l *Loader) ScorePrompt(t *ticket.Ticket) (string, error) {
	return l.Render(Score, l.ticketData(t, DefaultPreset))
}
