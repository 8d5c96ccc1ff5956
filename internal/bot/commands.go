// Package bot implements the command vocabulary, command resolution and
// reply composition for the TAC bot. Each inbound chat message resolves
// to at most one command; the composer runs the command's logic against
// the Case API and the chat gateway and produces the reply markdown.
package bot

import (
	"fmt"
	"strings"
)

// Command maps a command token to its help description.
type Command struct {
	Token string
	Help  string
}

// Commands is the fixed command vocabulary, in match-priority order.
// The declaration order decides ties when several tokens occur in the
// same message.
var Commands = []Command{
	{"/title", "Get title for TAC case."},
	{"/description", "Get problem description for the TAC case."},
	{"/owner", "Get case owner (TAC CSE) for TAC case."},
	{"/contract", "Get contract number associated with the TAC case."},
	{"/customer", "Get customer contact info for the TAC case."},
	{"/status", "Get status and severity for the TAC case."},
	{"/rma", "Get list of RMAs associated with TAC case."},
	{"/bug", "Get list of Bugs associated with TAC case."},
	{"/device", "Get serial number and hostname for the device on which the TAC case was opened"},
	{"/created", "Get the date on which the TAC case was created, and calculate the open duration"},
	{"/updated", "Get the date on which the TAC case was last updated, and calculate the time since last update"},
	{"/invite", "Invite new user to room by email (or keywords: cse=case owner)"},
	{"/link", "Get link to the case in Support Case Manager"},
	{"/feedback", "Sends feedback to development team; use this to submit feature requests and bugs"},
	{"/last-note", "Sends the contents of the last note attached to the case"},
	{"/action-plan", "Sends the last note containing \"action plan\""},
	{"/help", "Get help."},
}

// openCommands may be used by anyone; every other command requires a
// cisco.com sender.
var openCommands = map[string]bool{
	"/help":     true,
	"/link":     true,
	"/invite":   true,
	"/feedback": true,
}

// Tokens returns the vocabulary tokens in declaration order.
func Tokens() []string {
	tokens := make([]string, len(Commands))
	for i, c := range Commands {
		tokens[i] = c.Token
	}
	return tokens
}

// Resolve returns the first vocabulary token that occurs as a
// substring of text, scanning the vocabulary in its declared order.
// Returns "" when no token matches; callers treat that as /help.
func Resolve(text string, vocabulary []string) string {
	for _, token := range vocabulary {
		if strings.Contains(text, token) {
			return token
		}
	}
	return ""
}

// HelpText enumerates the command table as reply markdown. It is also
// posted into freshly provisioned case rooms.
func HelpText() string {
	var b strings.Builder
	b.WriteString("Hello!  I understand the following commands.  \n")
	b.WriteString("If case number is provided with the command, I will use that case number. ")
	b.WriteString("If none is provided, I will look in the Spark room name for a case number to use. \n")
	for _, cmd := range Commands {
		fmt.Fprintf(&b, "* **%s**: %s \n", cmd.Token, cmd.Help)
	}
	return b.String()
}

// ExtractMessage returns the text following the first occurrence of
// command in text.
func ExtractMessage(command, text string) string {
	loc := strings.Index(text, command)
	if loc < 0 {
		return ""
	}
	return text[loc+len(command):]
}
