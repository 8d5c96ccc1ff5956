package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/imapex/tacbot-go/internal/caseapi"
	domerrors "github.com/imapex/tacbot-go/internal/errors"
	"github.com/imapex/tacbot-go/internal/logger"
	"github.com/imapex/tacbot-go/internal/metrics"
	"github.com/imapex/tacbot-go/internal/sentry"
	"github.com/imapex/tacbot-go/internal/spark"
)

// Link templates keyed by case number or RMA/bug id.
const (
	rmaURL          = "http://msvodb.cloudapps.cisco.com/support/serviceordertool/orderDetails.svo?orderNumber="
	bugURL          = "https://bst.cloudapps.cisco.com/bugsearch/bug/"
	internalBugURL  = "http://cdets.cisco.com/apps/dumpcr?&content=summary&format=html&identifier="
	externalCaseURL = "https://mycase.cloudapps.cisco.com/"
	internalCaseURL = "http://www-tac.cisco.com/Teams/ks/c3/casekwery.php?Case="
)

const (
	accessDeniedMessage = "Sorry, CASE API access is limited to Cisco Employees for the time being"
	invalidCaseMessage  = "Invalid case number"
)

// staleUpdateThreshold is the open-case update gap past which the
// elapsed time renders bold.
const staleUpdateThreshold = 3 * 24 * time.Hour

// Event is one inbound chat message, fully resolved.
type Event struct {
	RoomID      string
	MessageID   string
	PersonID    string
	PersonEmail string
	Text        string
}

// CaseFetcher fetches case details. Satisfied by *caseapi.Client.
type CaseFetcher interface {
	Fetch(ctx context.Context, caseNumber string) (*caseapi.CaseDetail, error)
}

// Composer executes commands and produces reply markdown. It is
// stateless across events; every command fetches fresh case data.
type Composer struct {
	gateway        spark.Gateway
	cases          CaseFetcher
	feedbackRoomID string
	logger         *logger.Logger
	metrics        *metrics.Metrics
	now            func() time.Time
}

// NewComposer creates a reply composer.
// metrics may be nil (tests); feedbackRoomID may be empty, which
// disables /feedback forwarding.
func NewComposer(gateway spark.Gateway, cases CaseFetcher, feedbackRoomID string, log *logger.Logger, m *metrics.Metrics) *Composer {
	return &Composer{
		gateway:        gateway,
		cases:          cases,
		feedbackRoomID: feedbackRoomID,
		logger:         log.WithModule("bot"),
		metrics:        m,
		now:            time.Now,
	}
}

// Handle resolves the command in the event text, runs it and returns
// the reply markdown. Every failure maps to a user-visible reply; the
// handler never returns an empty reply for a recognized message.
func (c *Composer) Handle(ctx context.Context, ev Event) string {
	token := Resolve(ev.Text, Tokens())
	if token == "" || token == "/help" {
		c.record("/help", "success")
		return c.HelpText()
	}

	arg := ExtractMessage(token, ev.Text)

	if !openCommands[token] && !CheckCiscoUser(ev.PersonEmail) {
		c.logger.WithCommand(token).WithField("sender", ev.PersonEmail).Info("Denied non-Cisco sender")
		c.record(token, "denied")
		return accessDeniedMessage
	}

	reply, status := c.dispatch(ctx, token, ev, arg)
	c.record(token, status)
	c.logger.WithCommand(token).WithField("status", status).Debug("Command handled")
	return reply
}

func (c *Composer) record(command, status string) {
	if c.metrics != nil {
		c.metrics.RecordCommand(command, status)
	}
}

func (c *Composer) dispatch(ctx context.Context, token string, ev Event, arg string) (string, string) {
	switch token {
	case "/title":
		return c.withCase(ctx, ev, arg, formatTitle)
	case "/description":
		return c.withCase(ctx, ev, arg, formatDescription)
	case "/owner":
		return c.withCase(ctx, ev, arg, formatOwner)
	case "/contract":
		return c.withCase(ctx, ev, arg, formatContract)
	case "/customer":
		return c.withCase(ctx, ev, arg, formatCustomer)
	case "/status":
		return c.withCase(ctx, ev, arg, formatStatus)
	case "/rma":
		return c.withCase(ctx, ev, arg, formatRMAs)
	case "/bug":
		return c.withCase(ctx, ev, arg, formatBugs)
	case "/device":
		return c.withCase(ctx, ev, arg, formatDevice)
	case "/created":
		return c.withCase(ctx, ev, arg, c.formatCreated)
	case "/updated":
		return c.withCase(ctx, ev, arg, c.formatUpdated)
	case "/last-note":
		return c.withCase(ctx, ev, arg, formatLastNote)
	case "/action-plan":
		return c.withCase(ctx, ev, arg, formatActionPlan)
	case "/invite":
		return c.handleInvite(ctx, ev, arg)
	case "/link":
		return c.handleLink(ctx, ev, arg)
	case "/feedback":
		return c.handleFeedback(ctx, ev, arg)
	default:
		return c.HelpText(), "success"
	}
}

// HelpText enumerates the command table.
func (c *Composer) HelpText() string {
	return HelpText()
}

// caseNumber resolves the acting case number: the command's trailing
// text first, then the room's display name.
func (c *Composer) caseNumber(ctx context.Context, ev Event, content string) (string, bool) {
	if n := VerifyCaseNumber(content); n != "" {
		return n, true
	}
	room, err := c.gateway.GetRoom(ctx, ev.RoomID)
	if err != nil {
		c.logger.WithError(err).WithField("room_id", ev.RoomID).Warn("Failed to fetch room for case-number fallback")
		return "", false
	}
	if n := VerifyCaseNumber(room.Title); n != "" {
		return n, true
	}
	return "", false
}

// withCase runs the shared command prologue: case-number resolution
// and the upstream fetch, with all three failure modes mapped to
// replies. format only sees a successfully fetched case.
func (c *Composer) withCase(ctx context.Context, ev Event, arg string, format func(*caseapi.CaseDetail) string) (string, string) {
	number, ok := c.caseNumber(ctx, ev, arg)
	if !ok {
		return invalidCaseMessage, "invalid_case"
	}

	detail, err := c.cases.Fetch(ctx, number)
	if err != nil {
		if errors.Is(err, domerrors.ErrCaseNotFound) {
			return fmt.Sprintf("No case data found matching %s", number), "not_found"
		}
		c.logger.WithError(err).WithField("case", number).Error("Case API request failed")
		sentry.CaptureException(err)
		var upstream *domerrors.UpstreamError
		if errors.As(err, &upstream) && upstream.Description != "" {
			return upstream.Description, "upstream_error"
		}
		return err.Error(), "upstream_error"
	}

	return format(detail), "success"
}

func formatTitle(d *caseapi.CaseDetail) string {
	return fmt.Sprintf("Title for SR %s is: %s", d.CaseNumber, d.Title)
}

func formatDescription(d *caseapi.CaseDetail) string {
	return fmt.Sprintf("Problem description for SR %s is: <br>%s", d.CaseNumber, d.Description)
}

func formatOwner(d *caseapi.CaseDetail) string {
	return fmt.Sprintf("Case owner for SR %s is: %s %s (%s)",
		d.CaseNumber, d.Owner.FirstName, d.Owner.LastName, d.Owner.Email)
}

func formatContract(d *caseapi.CaseDetail) string {
	return fmt.Sprintf("The contract number used to open SR %s is: %s", d.CaseNumber, d.ContractID)
}

func formatCustomer(d *caseapi.CaseDetail) string {
	msg := fmt.Sprintf("Customer contact for SR %s is: **%s %s**",
		d.CaseNumber, d.Customer.FirstName, d.Customer.LastName)
	if d.Customer.ID != "" {
		msg += "<br>CCO ID: " + d.Customer.ID
	}
	if d.Customer.Email != "" {
		msg += "<br>Email: " + d.Customer.Email
	}
	if d.Customer.BusinessPhone != "" {
		msg += "<br>Business phone: " + d.Customer.BusinessPhone
	}
	if d.Customer.MobilePhone != "" {
		msg += "<br>Mobile phone: " + d.Customer.MobilePhone
	}
	return msg
}

func formatStatus(d *caseapi.CaseDetail) string {
	if d.IsClosed() {
		return fmt.Sprintf("Status for SR %s is %s", d.CaseNumber, d.Status)
	}
	return fmt.Sprintf("Status for SR %s is %s and Severity is %s", d.CaseNumber, d.Status, d.Severity)
}

func formatRMAs(d *caseapi.CaseDetail) string {
	switch len(d.RMAs) {
	case 0:
		return fmt.Sprintf("There are no RMAs for SR %s", d.CaseNumber)
	case 1:
		r := d.RMAs[0]
		return fmt.Sprintf("The RMA for SR %s is: <a href=\"%s%s\">%s</a>", d.CaseNumber, rmaURL, r, r)
	default:
		var b strings.Builder
		fmt.Fprintf(&b, "The RMAs for SR %s are:\n", d.CaseNumber)
		for _, r := range d.RMAs {
			fmt.Fprintf(&b, "* <a href=\"%s%s\">%s</a>\n", rmaURL, r, r)
		}
		return b.String()
	}
}

func formatBugs(d *caseapi.CaseDetail) string {
	switch len(d.Bugs) {
	case 0:
		return fmt.Sprintf("There are no Bugs for SR %s", d.CaseNumber)
	case 1:
		bug := d.Bugs[0]
		return fmt.Sprintf("The Bug for SR %s is: %s (<a href=\"%s%s\">external</a> | <a href=\"%s%s\">internal</a>)",
			d.CaseNumber, bug, bugURL, bug, internalBugURL, bug)
	default:
		var b strings.Builder
		fmt.Fprintf(&b, "The Bugs for SR %s are:\n", d.CaseNumber)
		for _, bug := range d.Bugs {
			fmt.Fprintf(&b, "* %s (<a href=\"%s%s\">external</a> | <a href=\"%s%s\">internal</a>)\n",
				bug, bugURL, bug, internalBugURL, bug)
		}
		return b.String()
	}
}

func formatDevice(d *caseapi.CaseDetail) string {
	if d.SerialNumber != "" {
		return fmt.Sprintf("Device serial number for SR %s is: %s", d.CaseNumber, d.SerialNumber)
	}
	return fmt.Sprintf("Device serial number for SR %s is not provided", d.CaseNumber)
}

func (c *Composer) formatCreated(d *caseapi.CaseDetail) string {
	created, err := d.CreatedTime()
	if err != nil {
		return fmt.Sprintf("Creation date for SR %s is: %s", d.CaseNumber, d.Created)
	}
	msg := fmt.Sprintf("Creation date for SR %s is: %s", d.CaseNumber, formatTimestamp(created))
	if d.IsClosed() {
		return msg + "<br>Case is now Closed"
	}
	return msg + fmt.Sprintf("<br>Case has been open for %s", FormatElapsed(c.now().Sub(created)))
}

func (c *Composer) formatUpdated(d *caseapi.CaseDetail) string {
	updated, err := d.UpdatedTime()
	if err != nil {
		return fmt.Sprintf("Last update for SR %s was: %s", d.CaseNumber, d.Updated)
	}
	msg := fmt.Sprintf("Last update for SR %s was: %s", d.CaseNumber, formatTimestamp(updated))
	elapsed := c.now().Sub(updated)
	switch {
	case d.IsClosed():
		return msg + fmt.Sprintf("<br>Case is now Closed, %s since case closure", FormatElapsed(elapsed))
	case elapsed > staleUpdateThreshold:
		return msg + fmt.Sprintf("<br>**%s since last update**", FormatElapsed(elapsed))
	default:
		return msg + fmt.Sprintf("<br>%s since last update", FormatElapsed(elapsed))
	}
}

func formatLastNote(d *caseapi.CaseDetail) string {
	n := d.LastNote()
	if n == nil {
		return fmt.Sprintf("There are no notes for SR %s", d.CaseNumber)
	}
	ts := n.Created
	if created, err := n.CreatedTime(); err == nil {
		ts = formatTimestamp(created)
	}
	return fmt.Sprintf("The last note on SR %s, updated %s is: <br>%s", d.CaseNumber, ts, n.Text())
}

func formatActionPlan(d *caseapi.CaseDetail) string {
	n := d.ActionPlan()
	if n == nil {
		return fmt.Sprintf("No action plan found for SR %s", d.CaseNumber)
	}
	ts := n.Created
	if created, err := n.CreatedTime(); err == nil {
		ts = formatTimestamp(created)
	}
	return fmt.Sprintf("The last action plan on SR %s, updated %s is: <br>%s", d.CaseNumber, ts, n.Text())
}

// handleInvite adds a user to the room. The literal keyword cse/CSE
// means "invite the case owner".
func (c *Composer) handleInvite(ctx context.Context, ev Event, arg string) (string, string) {
	content := strings.TrimSpace(arg)

	if content == "cse" || content == "CSE" {
		const failure = "Unable to add Case owner to the room at this time"
		number, ok := c.caseNumber(ctx, ev, content)
		if !ok {
			return failure, "invalid_case"
		}
		detail, err := c.cases.Fetch(ctx, number)
		if err != nil {
			c.logger.WithError(err).WithField("case", number).Warn("Owner lookup failed for invite")
			return failure, "error"
		}
		if _, err := c.gateway.InviteByEmail(ctx, ev.RoomID, detail.Owner.Email); err != nil {
			c.logger.WithError(err).Warn("Failed to invite case owner")
			return failure, "error"
		}
		return fmt.Sprintf("Case owner %s %s has been added to the room",
			detail.Owner.FirstName, detail.Owner.LastName), "success"
	}

	if !CheckEmailSyntax(content) {
		return "Error, not a valid email address", "invalid_email"
	}
	if _, err := c.gateway.InviteByEmail(ctx, ev.RoomID, content); err != nil {
		c.logger.WithError(err).WithField("email", content).Warn("Failed to invite user")
		return fmt.Sprintf("Unable to add user %s to the room", content), "error"
	}
	return fmt.Sprintf("User %s has been added to the room", content), "success"
}

func (c *Composer) handleLink(ctx context.Context, ev Event, arg string) (string, string) {
	number, ok := c.caseNumber(ctx, ev, arg)
	if !ok {
		return invalidCaseMessage, "invalid_case"
	}
	msg := fmt.Sprintf("* Externally accessible link: %s%s\n", externalCaseURL, number)
	msg += fmt.Sprintf("* Internal link: %s%s", internalCaseURL, number)
	return msg, "success"
}

// handleFeedback forwards the trailing text verbatim to the feedback
// room and thanks the sender.
func (c *Composer) handleFeedback(ctx context.Context, ev Event, arg string) (string, string) {
	content := strings.TrimSpace(arg)
	if content == "" {
		return "Sorry, cannot submit blank feedback", "invalid"
	}
	if c.feedbackRoomID == "" {
		c.logger.Warn("Feedback room not configured; dropping feedback")
		return "Sorry, unable to submit feedback at this time", "error"
	}

	msg := fmt.Sprintf("User %s provided the following feedback:<br>%s", ev.PersonEmail, content)
	if err := c.gateway.SendMessage(ctx, c.feedbackRoomID, msg); err != nil {
		c.logger.WithError(err).Error("Failed to forward feedback")
		return "Sorry, unable to submit feedback at this time", "error"
	}
	return "Thank you. Your feedback has been sent to developers", "success"
}
