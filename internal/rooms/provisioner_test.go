package rooms

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imapex/tacbot-go/internal/caseapi"
	"github.com/imapex/tacbot-go/internal/logger"
	"github.com/imapex/tacbot-go/internal/spark"
)

// fakeGateway keeps rooms, people and memberships in memory.
type fakeGateway struct {
	rooms       []spark.Room
	people      map[string]*spark.Person
	memberships map[string][]spark.Membership
	sent        map[string][]string
	listErr     error
	sendErr     error
}

func newFakeGateway(rooms ...spark.Room) *fakeGateway {
	return &fakeGateway{
		rooms: rooms,
		people: map[string]*spark.Person{
			"user@example.com": {ID: "person-1", Emails: []string{"user@example.com"}},
		},
		memberships: map[string][]spark.Membership{},
		sent:        map[string][]string{},
	}
}

func (f *fakeGateway) SendMessage(_ context.Context, roomID, markdown string) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent[roomID] = append(f.sent[roomID], markdown)
	return nil
}

func (f *fakeGateway) SendMessageToPerson(context.Context, string, string) error { return nil }

func (f *fakeGateway) GetMessage(context.Context, string) (*spark.Message, error) {
	return nil, nil
}

func (f *fakeGateway) GetRoom(context.Context, string) (*spark.Room, error) { return nil, nil }

func (f *fakeGateway) ListRooms(context.Context) ([]spark.Room, error) {
	return f.rooms, f.listErr
}

func (f *fakeGateway) CreateRoom(_ context.Context, title string) (*spark.Room, error) {
	room := spark.Room{ID: fmt.Sprintf("room-%d", len(f.rooms)+1), Title: title}
	f.rooms = append(f.rooms, room)
	return &room, nil
}

func (f *fakeGateway) ListMemberships(_ context.Context, roomID string) ([]spark.Membership, error) {
	return f.memberships[roomID], nil
}

func (f *fakeGateway) CreateMembership(_ context.Context, roomID, personID string) (*spark.Membership, error) {
	m := spark.Membership{RoomID: roomID, PersonID: personID}
	f.memberships[roomID] = append(f.memberships[roomID], m)
	return &m, nil
}

func (f *fakeGateway) InviteByEmail(_ context.Context, roomID, email string) (*spark.Membership, error) {
	m := spark.Membership{RoomID: roomID, PersonEmail: email}
	f.memberships[roomID] = append(f.memberships[roomID], m)
	return &m, nil
}

func (f *fakeGateway) GetPerson(context.Context, string) (*spark.Person, error) { return nil, nil }

func (f *fakeGateway) GetPersonByEmail(_ context.Context, email string) (*spark.Person, error) {
	return f.people[email], nil
}

func (f *fakeGateway) Me(context.Context) (*spark.Person, error) { return nil, nil }

type fakeFetcher struct {
	detail *caseapi.CaseDetail
	err    error
}

func (f *fakeFetcher) Fetch(context.Context, string) (*caseapi.CaseDetail, error) {
	return f.detail, f.err
}

func newTestProvisioner(t *testing.T, gw *fakeGateway) *Provisioner {
	t.Helper()
	return NewProvisioner(gw, nil, logger.NewWithWriter("error", io.Discard))
}

func TestProvisionCreatesRoom(t *testing.T) {
	t.Parallel()

	gw := newFakeGateway()
	p := newTestProvisioner(t, gw)

	result, err := p.Provision(context.Background(), "612345678", "user@example.com")
	require.NoError(t, err)
	assert.Equal(t, "SR 612345678", result.Room.Title)

	// Membership is created by person id, not by invite.
	memberships := gw.memberships[result.Room.ID]
	require.Len(t, memberships, 1)
	assert.Equal(t, "person-1", memberships[0].PersonID)

	require.Len(t, gw.sent[result.Room.ID], 1)
	assert.Contains(t, gw.sent[result.Room.ID][0], "I understand the following commands")

	assert.Equal(t, []string{
		"Created room: SR 612345678",
		"Added user@example.com to the room",
		"Posted the help message to the room",
	}, result.Report)
}

func TestProvisionUsesCaseTitle(t *testing.T) {
	t.Parallel()

	t.Run("title available", func(t *testing.T) {
		t.Parallel()
		gw := newFakeGateway()
		fetcher := &fakeFetcher{detail: &caseapi.CaseDetail{CaseNumber: "612345678", Title: "Router crash"}}
		p := NewProvisioner(gw, fetcher, logger.NewWithWriter("error", io.Discard))

		result, err := p.Provision(context.Background(), "612345678", "user@example.com")
		require.NoError(t, err)
		assert.Equal(t, "SR 612345678: Router crash", result.Room.Title)
	})

	t.Run("lookup failure falls back to bare title", func(t *testing.T) {
		t.Parallel()
		gw := newFakeGateway()
		p := NewProvisioner(gw, &fakeFetcher{err: assert.AnError}, logger.NewWithWriter("error", io.Discard))

		result, err := p.Provision(context.Background(), "612345678", "user@example.com")
		require.NoError(t, err)
		assert.Equal(t, "SR 612345678", result.Room.Title)
	})
}

func TestProvisionReusesExistingRoom(t *testing.T) {
	t.Parallel()

	gw := newFakeGateway(spark.Room{ID: "room-1", Title: "SR 612345678: Router crash"})
	p := newTestProvisioner(t, gw)

	result, err := p.Provision(context.Background(), "612345678", "user@example.com")
	require.NoError(t, err)
	assert.Equal(t, "room-1", result.Room.ID)
	assert.Len(t, gw.rooms, 1)
	assert.Equal(t, "Found existing room: SR 612345678: Router crash", result.Report[0])

	// The help message goes out on every call, reused room or not.
	require.Len(t, gw.sent["room-1"], 1)
	assert.Contains(t, gw.sent["room-1"][0], "I understand the following commands")
}

func TestProvisionPersonNotFound(t *testing.T) {
	t.Parallel()

	gw := newFakeGateway()
	p := newTestProvisioner(t, gw)

	_, err := p.Provision(context.Background(), "612345678", "ghost@example.com")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPersonNotFound))
	assert.Empty(t, gw.rooms, "no room should be created for an unknown user")
}

func TestProvisionIdempotentMembership(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		membership spark.Membership
	}{
		{"existing member by person id", spark.Membership{RoomID: "room-1", PersonID: "person-1"}},
		{"existing member by email", spark.Membership{RoomID: "room-1", PersonEmail: "user@example.com"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			gw := newFakeGateway(spark.Room{ID: "room-1", Title: "SR 612345678"})
			gw.memberships["room-1"] = []spark.Membership{tt.membership}
			p := newTestProvisioner(t, gw)

			result, err := p.Provision(context.Background(), "612345678", "user@example.com")
			require.NoError(t, err)
			assert.Len(t, gw.memberships["room-1"], 1)
			assert.Contains(t, result.Report, "user@example.com is already a member of the room")
		})
	}
}

func TestProvisionDistinguishesCases(t *testing.T) {
	t.Parallel()

	gw := newFakeGateway(spark.Room{ID: "room-1", Title: "SR 687654321"})
	p := newTestProvisioner(t, gw)

	result, err := p.Provision(context.Background(), "612345678", "user@example.com")
	require.NoError(t, err)
	assert.NotEqual(t, "room-1", result.Room.ID)
}

func TestProvisionHelpSendFailure(t *testing.T) {
	t.Parallel()

	gw := newFakeGateway()
	gw.sendErr = assert.AnError
	p := newTestProvisioner(t, gw)

	result, err := p.Provision(context.Background(), "612345678", "user@example.com")
	require.NoError(t, err, "a lost help message must not fail provisioning")
	assert.Contains(t, result.Report, "Unable to post the help message to the room")
}

func TestCount(t *testing.T) {
	t.Parallel()

	gw := newFakeGateway(spark.Room{ID: "a"}, spark.Room{ID: "b"}, spark.Room{ID: "c"})
	p := newTestProvisioner(t, gw)

	n, err := p.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestProvisionListError(t *testing.T) {
	t.Parallel()

	gw := newFakeGateway()
	gw.listErr = assert.AnError
	p := newTestProvisioner(t, gw)

	_, err := p.Provision(context.Background(), "612345678", "user@example.com")
	assert.Error(t, err)
}
