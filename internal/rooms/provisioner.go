// Package rooms provisions per-case chat rooms: one room per TAC case,
// reused across requests, with the requesting user as a member.
package rooms

import (
	"context"
	"errors"
	"fmt"

	"github.com/imapex/tacbot-go/internal/bot"
	"github.com/imapex/tacbot-go/internal/logger"
	"github.com/imapex/tacbot-go/internal/spark"
)

// ErrPersonNotFound indicates no chat account matches the requested
// email address.
var ErrPersonNotFound = errors.New("no user found with that email address")

// Result describes what provisioning did: the room and a line-per-step
// report for the caller.
type Result struct {
	Room   *spark.Room
	Report []string
}

// Provisioner creates or reuses case rooms through the chat gateway.
type Provisioner struct {
	gateway spark.Gateway
	cases   bot.CaseFetcher
	logger  *logger.Logger
}

// NewProvisioner creates a room provisioner. cases may be nil; it is
// only consulted to decorate new room titles with the case title.
func NewProvisioner(gateway spark.Gateway, cases bot.CaseFetcher, log *logger.Logger) *Provisioner {
	return &Provisioner{
		gateway: gateway,
		cases:   cases,
		logger:  log.WithModule("rooms"),
	}
}

// Provision returns the room for the case, creating it when no
// existing room title mentions the case number. The user is resolved
// to a chat account first (ErrPersonNotFound when the email matches
// nobody) and added as a member unless already present. The command
// help is posted on every call. Repeated calls with the same arguments
// converge on the same room.
func (p *Provisioner) Provision(ctx context.Context, caseNumber, email string) (*Result, error) {
	person, err := p.gateway.GetPersonByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("look up person %s: %w", email, err)
	}
	if person == nil {
		return nil, fmt.Errorf("%w: %s", ErrPersonNotFound, email)
	}

	room, err := p.findCaseRoom(ctx, caseNumber)
	if err != nil {
		return nil, err
	}

	var report []string
	if room == nil {
		room, err = p.gateway.CreateRoom(ctx, p.roomTitle(ctx, caseNumber))
		if err != nil {
			return nil, fmt.Errorf("create room for case %s: %w", caseNumber, err)
		}
		report = append(report, "Created room: "+room.Title)
		p.logger.WithField("case", caseNumber).WithField("room_id", room.ID).Info("Created case room")
	} else {
		report = append(report, "Found existing room: "+room.Title)
	}

	member, err := p.isMember(ctx, room.ID, person)
	if err != nil {
		return nil, err
	}
	if member {
		report = append(report, email+" is already a member of the room")
	} else {
		if _, err := p.gateway.CreateMembership(ctx, room.ID, person.ID); err != nil {
			return nil, fmt.Errorf("add %s to room %s: %w", email, room.ID, err)
		}
		report = append(report, "Added "+email+" to the room")
	}

	if err := p.gateway.SendMessage(ctx, room.ID, bot.HelpText()); err != nil {
		// The room exists and the user is in it; a lost greeting
		// is not worth failing the request.
		p.logger.WithError(err).WithField("room_id", room.ID).Warn("Failed to post help into room")
		report = append(report, "Unable to post the help message to the room")
	} else {
		report = append(report, "Posted the help message to the room")
	}

	return &Result{Room: room, Report: report}, nil
}

// Count returns the number of rooms the bot belongs to.
func (p *Provisioner) Count(ctx context.Context) (int, error) {
	rooms, err := p.gateway.ListRooms(ctx)
	if err != nil {
		return 0, fmt.Errorf("list rooms: %w", err)
	}
	return len(rooms), nil
}

// roomTitle renders "SR {n}: {title}" when the case title is
// available, else just "SR {n}". A failed lookup never blocks
// provisioning.
func (p *Provisioner) roomTitle(ctx context.Context, caseNumber string) string {
	title := "SR " + caseNumber
	if p.cases == nil {
		return title
	}
	detail, err := p.cases.Fetch(ctx, caseNumber)
	if err != nil || detail.Title == "" {
		return title
	}
	return title + ": " + detail.Title
}

func (p *Provisioner) findCaseRoom(ctx context.Context, caseNumber string) (*spark.Room, error) {
	rooms, err := p.gateway.ListRooms(ctx)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	for i := range rooms {
		if bot.VerifyCaseNumber(rooms[i].Title) == caseNumber {
			return &rooms[i], nil
		}
	}
	return nil, nil
}

func (p *Provisioner) isMember(ctx context.Context, roomID string, person *spark.Person) (bool, error) {
	memberships, err := p.gateway.ListMemberships(ctx, roomID)
	if err != nil {
		return false, fmt.Errorf("list memberships for room %s: %w", roomID, err)
	}
	for _, m := range memberships {
		if m.PersonID == person.ID || (m.PersonEmail != "" && m.PersonEmail == person.Email()) {
			return true, nil
		}
	}
	return false, nil
}
