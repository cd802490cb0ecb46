package httpapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"firebase.google.com/go/v4/messaging"

	"github.com/benardelia/fcm-notification-server/internal/domain"
	"github.com/benardelia/fcm-notification-server/internal/fcm"
	sqsqueue "github.com/benardelia/fcm-notification-server/internal/queue/sqs"
	"github.com/benardelia/fcm-notification-server/internal/service"
	"github.com/benardelia/fcm-notification-server/internal/store"
)

type fakeStore struct {
	devices map[string][]store.Device
	notifs  map[string]store.Notification
}

func (f *fakeStore) DevicesForPhone(ctx context.Context, phone string) ([]store.Device, error) {
	return f.devices[phone], nil
}
func (f *fakeStore) InsertNotification(ctx context.Context, in store.NotificationInsert) error {
	return nil
}
func (f *fakeStore) UpdateNotificationStatus(ctx context.Context, in store.NotificationStatusUpdate) error {
	return nil
}
func (f *fakeStore) GetNotification(ctx context.Context, id string) (store.Notification, bool, error) {
	n, ok := f.notifs[id]
	return n, ok, nil
}
func (f *fakeStore) UpsertOutcome(ctx context.Context, in store.OutcomeUpsert) error { return nil }
func (f *fakeStore) GetTemplate(ctx context.Context, name string) (store.Template, bool, error) {
	return store.Template{}, false, nil
}
func (f *fakeStore) MarkOutcomeRead(ctx context.Context, notificationID, deviceID string) (bool, error) {
	return false, nil
}
func (f *fakeStore) RegisterDevice(ctx context.Context, in store.DeviceRegistration) (store.Device, error) {
	return store.Device{ID: in.DeviceID, PhoneNumber: in.PhoneNumber, PushToken: in.PushToken, IsActive: true}, nil
}
func (f *fakeStore) ListOutcomes(ctx context.Context, filter store.OutcomeFilter) ([]store.DeliveryOutcome, error) {
	return nil, nil
}

type fakeClient struct{}

func (fakeClient) Send(ctx context.Context, m *messaging.Message) (string, error) {
	return "mid-1", nil
}
func (fakeClient) SendEachForMulticast(ctx context.Context, m *messaging.MulticastMessage) (*messaging.BatchResponse, error) {
	resp := &messaging.BatchResponse{}
	for range m.Tokens {
		resp.SuccessCount++
		resp.Responses = append(resp.Responses, &messaging.SendResponse{Success: true, MessageID: "mid"})
	}
	return resp, nil
}
func (fakeClient) SubscribeToTopic(ctx context.Context, tokens []string, topic string) (*messaging.TopicManagementResponse, error) {
	return &messaging.TopicManagementResponse{SuccessCount: len(tokens)}, nil
}
func (fakeClient) UnsubscribeFromTopic(ctx context.Context, tokens []string, topic string) (*messaging.TopicManagementResponse, error) {
	return &messaging.TopicManagementResponse{SuccessCount: len(tokens)}, nil
}

type fakePool struct{}

func (fakePool) Get(ctx context.Context, tenantID string) (fcm.Sender, error) {
	return fakeClient{}, nil
}

type fakeQueue struct{}

func (fakeQueue) Enqueue(ctx context.Context, job sqsqueue.PushJob, delay time.Duration) error {
	return nil
}

func newTestServer(st *fakeStore) *httptest.Server {
	d := service.NewDispatcher(st, fakePool{}, nil)
	svc := &service.AsyncDispatcher{Dispatcher: d, Queue: fakeQueue{}}

	s := New()
	api := &API{Svc: svc, DB: st, Pool: fakePool{}}
	api.Register(s.Router)
	return httptest.NewServer(s.Router)
}

func TestSendEndpointOK(t *testing.T) {
	srv := newTestServer(&fakeStore{devices: map[string][]store.Device{
		"+15550000001": {{ID: "d1", PushToken: "tok1"}},
	}})
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/v1/notifications/send", "application/json",
		strings.NewReader(`{"phoneNumber":"+15550000001","title":"t","body":"b"}`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: %d", resp.StatusCode)
	}
}

func TestSendEndpointMissingFields(t *testing.T) {
	srv := newTestServer(&fakeStore{})
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/v1/notifications/send", "application/json",
		strings.NewReader(`{"phoneNumber":"+15550000001"}`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status: %d", resp.StatusCode)
	}
}

func TestSendEndpointUnknownProfile(t *testing.T) {
	srv := newTestServer(&fakeStore{})
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/v1/notifications/send", "application/json",
		strings.NewReader(`{"phoneNumber":"+15559999999","title":"t","body":"b"}`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status: %d", resp.StatusCode)
	}
}

func TestGetNotificationNotFound(t *testing.T) {
	srv := newTestServer(&fakeStore{})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/v1/notifications/ntf_ghost")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status: %d", resp.StatusCode)
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{domain.ErrMissingFields, http.StatusBadRequest},
		{&domain.ResolutionError{Kind: "device", Key: "x"}, http.StatusNotFound},
		{&domain.ConfigurationError{Msg: "x"}, http.StatusInternalServerError},
		{&domain.DeliveryError{Op: "single", Err: errors.New("x")}, http.StatusBadGateway},
		{errors.New("opaque"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		if got, _ := classify(c.err); got != c.want {
			t.Fatalf("classify(%v) = %d, want %d", c.err, got, c.want)
		}
	}
}
