package webhook

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imapex/tacbot-go/internal/bot"
	"github.com/imapex/tacbot-go/internal/caseapi"
	"github.com/imapex/tacbot-go/internal/logger"
	"github.com/imapex/tacbot-go/internal/metrics"
	"github.com/imapex/tacbot-go/internal/spark"
)

// fakeGateway serves one message and records sends.
type fakeGateway struct {
	message *spark.Message
	msgErr  error
	person  *spark.Person
	sent    []string
}

func (f *fakeGateway) SendMessage(_ context.Context, _, markdown string) error {
	f.sent = append(f.sent, markdown)
	return nil
}

func (f *fakeGateway) SendMessageToPerson(context.Context, string, string) error { return nil }

func (f *fakeGateway) GetMessage(context.Context, string) (*spark.Message, error) {
	return f.message, f.msgErr
}

func (f *fakeGateway) GetRoom(context.Context, string) (*spark.Room, error) {
	return &spark.Room{ID: "room-1", Title: "General"}, nil
}

func (f *fakeGateway) ListRooms(context.Context) ([]spark.Room, error) { return nil, nil }

func (f *fakeGateway) CreateRoom(context.Context, string) (*spark.Room, error) { return nil, nil }

func (f *fakeGateway) ListMemberships(context.Context, string) ([]spark.Membership, error) {
	return nil, nil
}

func (f *fakeGateway) CreateMembership(context.Context, string, string) (*spark.Membership, error) {
	return nil, nil
}

func (f *fakeGateway) InviteByEmail(context.Context, string, string) (*spark.Membership, error) {
	return nil, nil
}

func (f *fakeGateway) GetPerson(context.Context, string) (*spark.Person, error) {
	if f.person == nil {
		return nil, assert.AnError
	}
	return f.person, nil
}

func (f *fakeGateway) GetPersonByEmail(context.Context, string) (*spark.Person, error) {
	return nil, nil
}

func (f *fakeGateway) Me(context.Context) (*spark.Person, error) { return nil, nil }

type fakeFetcher struct{ detail *caseapi.CaseDetail }

func (f *fakeFetcher) Fetch(context.Context, string) (*caseapi.CaseDetail, error) {
	return f.detail, nil
}

func newTestRouter(t *testing.T, gw *fakeGateway) *gin.Engine {
	t.Helper()

	gin.SetMode(gin.TestMode)
	log := logger.NewWithWriter("error", io.Discard)
	m := metrics.New(prometheus.NewRegistry())

	rt := &Runtime{
		Gateway: gw,
		Composer: bot.NewComposer(gw, &fakeFetcher{detail: &caseapi.CaseDetail{
			CaseNumber: "612345678",
			Title:      "Router crash",
		}}, "", log, nil),
		BotPersonID: "bot-person",
		BotEmail:    "tacbot@sparkbot.io",
	}

	h := NewHandler(func() *Runtime { return rt }, m, log, 5*time.Second)
	router := gin.New()
	router.GET("/", h.HandleGet)
	router.POST("/", h.Handle)
	return router
}

func postWebhook(t *testing.T, router *gin.Engine, body string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	return w
}

func TestHandleDispatchesReply(t *testing.T) {
	t.Parallel()

	gw := &fakeGateway{message: &spark.Message{
		ID:          "msg-1",
		RoomID:      "room-1",
		PersonID:    "person-1",
		PersonEmail: "user@cisco.com",
		Text:        "/title 612345678",
	}}
	router := newTestRouter(t, gw)

	w := postWebhook(t, router, `{"data":{"id":"msg-1","roomId":"room-1","personId":"person-1"}}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Body.String())

	require.Len(t, gw.sent, 1)
	assert.Equal(t, "Title for SR 612345678 is: Router crash", gw.sent[0])
}

func TestHandleIgnoresOwnMessages(t *testing.T) {
	t.Parallel()

	t.Run("by person id", func(t *testing.T) {
		t.Parallel()
		gw := &fakeGateway{}
		router := newTestRouter(t, gw)

		w := postWebhook(t, router, `{"data":{"id":"msg-1","roomId":"room-1","personId":"bot-person"}}`)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, gw.sent)
	})

	t.Run("by sender email", func(t *testing.T) {
		t.Parallel()
		gw := &fakeGateway{message: &spark.Message{
			ID:          "msg-1",
			RoomID:      "room-1",
			PersonEmail: "tacbot@sparkbot.io",
			Text:        "/help",
		}}
		router := newTestRouter(t, gw)

		w := postWebhook(t, router, `{"data":{"id":"msg-1","roomId":"room-1","personId":"person-1"}}`)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, gw.sent)
	})
}

func TestHandleResolvesMissingSenderEmail(t *testing.T) {
	t.Parallel()

	gw := &fakeGateway{
		message: &spark.Message{
			ID:       "msg-1",
			RoomID:   "room-1",
			PersonID: "person-1",
			Text:     "/title 612345678",
		},
		person: &spark.Person{ID: "person-1", Emails: []string{"user@cisco.com"}},
	}
	router := newTestRouter(t, gw)

	w := postWebhook(t, router, `{"data":{"id":"msg-1","roomId":"room-1","personId":"person-1"}}`)
	assert.Equal(t, http.StatusOK, w.Code)

	// The resolved cisco.com email passes the restricted-command gate.
	require.Len(t, gw.sent, 1)
	assert.Equal(t, "Title for SR 612345678 is: Router crash", gw.sent[0])
}

func TestHandleUnrecognizedTextGetsHelp(t *testing.T) {
	t.Parallel()

	gw := &fakeGateway{message: &spark.Message{
		ID:          "msg-1",
		RoomID:      "room-1",
		PersonEmail: "user@example.com",
		Text:        "good morning",
	}}
	router := newTestRouter(t, gw)

	w := postWebhook(t, router, `{"data":{"id":"msg-1","roomId":"room-1","personId":"person-1"}}`)
	assert.Equal(t, http.StatusOK, w.Code)

	require.Len(t, gw.sent, 1)
	assert.Contains(t, gw.sent[0], "I understand the following commands")
}

func TestHandleBadPayload(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
	}{
		{"not json", "not json"},
		{"missing identifiers", `{"data":{}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			router := newTestRouter(t, &fakeGateway{})
			w := postWebhook(t, router, tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestHandleNotConfigured(t *testing.T) {
	t.Parallel()

	gin.SetMode(gin.TestMode)
	log := logger.NewWithWriter("error", io.Discard)
	h := NewHandler(func() *Runtime { return nil }, metrics.New(prometheus.NewRegistry()), log, time.Second)
	router := gin.New()
	router.POST("/", h.Handle)

	w := postWebhook(t, router, `{"data":{"id":"msg-1","roomId":"room-1","personId":"p"}}`)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestHandleMessageFetchFailure(t *testing.T) {
	t.Parallel()

	gw := &fakeGateway{msgErr: assert.AnError}
	router := newTestRouter(t, gw)

	w := postWebhook(t, router, `{"data":{"id":"msg-1","roomId":"room-1","personId":"person-1"}}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, gw.sent)
}

func TestHandleGet(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t, &fakeGateway{})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "up", w.Body.String())
}
