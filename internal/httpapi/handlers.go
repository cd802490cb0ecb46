package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/benardelia/fcm-notification-server/internal/domain"
	"github.com/benardelia/fcm-notification-server/internal/fcm"
	"github.com/benardelia/fcm-notification-server/internal/observability"
	"github.com/benardelia/fcm-notification-server/internal/service"
	"github.com/benardelia/fcm-notification-server/internal/store"
)

type Store interface {
	GetNotification(ctx context.Context, id string) (store.Notification, bool, error)
	ListOutcomes(ctx context.Context, f store.OutcomeFilter) ([]store.DeliveryOutcome, error)
}

type API struct {
	Svc  *service.AsyncDispatcher
	DB   Store
	Pool service.ClientPool
}

func (a *API) Register(r *mux.Router) {
	r.HandleFunc("/v1/notifications/send", a.handleSend).Methods(http.MethodPost)
	r.HandleFunc("/v1/notifications/send/async", a.handleSendAsync).Methods(http.MethodPost)
	r.HandleFunc("/v1/notifications/bulk", a.handleBulk).Methods(http.MethodPost)
	r.HandleFunc("/v1/notifications/bulk/async", a.handleBulkAsync).Methods(http.MethodPost)
	r.HandleFunc("/v1/notifications/topic", a.handleTopic).Methods(http.MethodPost)
	r.HandleFunc("/v1/notifications/topic/async", a.handleTopicAsync).Methods(http.MethodPost)
	r.HandleFunc("/v1/notifications/condition", a.handleCondition).Methods(http.MethodPost)
	r.HandleFunc("/v1/notifications/condition/async", a.handleConditionAsync).Methods(http.MethodPost)
	r.HandleFunc("/v1/notifications/template", a.handleTemplate).Methods(http.MethodPost)
	r.HandleFunc("/v1/notifications/{id}", a.handleGetNotification).Methods(http.MethodGet)
	r.HandleFunc("/v1/notifications/{id}/outcomes", a.handleListOutcomes).Methods(http.MethodGet)
	r.HandleFunc("/v1/notifications/{id}/read", a.handleMarkRead).Methods(http.MethodPost)
	r.HandleFunc("/v1/devices", a.handleRegisterDevice).Methods(http.MethodPost)
	r.HandleFunc("/v1/topics/subscribe", a.handleSubscribe).Methods(http.MethodPost)
	r.HandleFunc("/v1/topics/unsubscribe", a.handleUnsubscribe).Methods(http.MethodPost)
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// classify maps the error taxonomy to an HTTP status and a stable code.
func classify(err error) (int, string) {
	var re *domain.ResolutionError
	var ce *domain.ConfigurationError
	var de *domain.DeliveryError
	switch {
	case errors.Is(err, domain.ErrMissingFields):
		return http.StatusBadRequest, "missing_fields"
	case errors.As(err, &re):
		return http.StatusNotFound, re.Kind + "_not_found"
	case errors.As(err, &ce):
		return http.StatusInternalServerError, "configuration_error"
	case errors.As(err, &de):
		return http.StatusBadGateway, "delivery_failed"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func (a *API) fail(w http.ResponseWriter, endpoint string, err error) {
	status, code := classify(err)
	if status >= 500 {
		slog.Error("request failed", "endpoint", endpoint, "err", err)
	}
	observability.APIRequests.WithLabelValues(endpoint, strconv.Itoa(status)).Inc()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Code: code, Message: err.Error()})
}

func (a *API) ok(w http.ResponseWriter, endpoint string, status int, body any) {
	observability.APIRequests.WithLabelValues(endpoint, strconv.Itoa(status)).Inc()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func decode(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return domain.ErrMissingFields
	}
	return nil
}

func (a *API) handleSend(w http.ResponseWriter, r *http.Request) {
	const ep = "/v1/notifications/send"
	var req domain.SendRequest
	if err := decode(r, &req); err != nil {
		a.fail(w, ep, err)
		return
	}
	if err := req.Validate(); err != nil {
		a.fail(w, ep, err)
		return
	}
	res, err := a.Svc.SendToPhone(r.Context(), req)
	if err != nil {
		a.fail(w, ep, err)
		return
	}
	a.ok(w, ep, http.StatusOK, res)
}

func (a *API) handleSendAsync(w http.ResponseWriter, r *http.Request) {
	const ep = "/v1/notifications/send/async"
	var req domain.SendRequest
	if err := decode(r, &req); err != nil {
		a.fail(w, ep, err)
		return
	}
	if err := req.Validate(); err != nil {
		a.fail(w, ep, err)
		return
	}
	res, err := a.Svc.SendToPhoneAsync(r.Context(), req)
	if err != nil {
		a.fail(w, ep, err)
		return
	}
	a.ok(w, ep, http.StatusAccepted, res)
}

func (a *API) handleBulk(w http.ResponseWriter, r *http.Request) {
	const ep = "/v1/notifications/bulk"
	var req domain.BulkSendRequest
	if err := decode(r, &req); err != nil {
		a.fail(w, ep, err)
		return
	}
	if err := req.Validate(); err != nil {
		a.fail(w, ep, err)
		return
	}
	res, err := a.Svc.SendBulk(r.Context(), req)
	if err != nil {
		a.fail(w, ep, err)
		return
	}
	a.ok(w, ep, http.StatusOK, res)
}

func (a *API) handleBulkAsync(w http.ResponseWriter, r *http.Request) {
	const ep = "/v1/notifications/bulk/async"
	var req domain.BulkSendRequest
	if err := decode(r, &req); err != nil {
		a.fail(w, ep, err)
		return
	}
	if err := req.Validate(); err != nil {
		a.fail(w, ep, err)
		return
	}
	res, err := a.Svc.SendBulkAsync(r.Context(), req)
	if err != nil {
		a.fail(w, ep, err)
		return
	}
	a.ok(w, ep, http.StatusAccepted, res)
}

func (a *API) handleTopic(w http.ResponseWriter, r *http.Request) {
	const ep = "/v1/notifications/topic"
	var req domain.TopicSendRequest
	if err := decode(r, &req); err != nil {
		a.fail(w, ep, err)
		return
	}
	if err := req.Validate(); err != nil {
		a.fail(w, ep, err)
		return
	}
	res, err := a.Svc.SendToTopic(r.Context(), req)
	if err != nil {
		a.fail(w, ep, err)
		return
	}
	a.ok(w, ep, http.StatusOK, res)
}

func (a *API) handleTopicAsync(w http.ResponseWriter, r *http.Request) {
	const ep = "/v1/notifications/topic/async"
	var req domain.TopicSendRequest
	if err := decode(r, &req); err != nil {
		a.fail(w, ep, err)
		return
	}
	if err := req.Validate(); err != nil {
		a.fail(w, ep, err)
		return
	}
	res, err := a.Svc.SendToTopicAsync(r.Context(), req)
	if err != nil {
		a.fail(w, ep, err)
		return
	}
	a.ok(w, ep, http.StatusAccepted, res)
}

func (a *API) handleCondition(w http.ResponseWriter, r *http.Request) {
	const ep = "/v1/notifications/condition"
	var req domain.ConditionSendRequest
	if err := decode(r, &req); err != nil {
		a.fail(w, ep, err)
		return
	}
	if err := req.Validate(); err != nil {
		a.fail(w, ep, err)
		return
	}
	res, err := a.Svc.SendToCondition(r.Context(), req)
	if err != nil {
		a.fail(w, ep, err)
		return
	}
	a.ok(w, ep, http.StatusOK, res)
}

func (a *API) handleConditionAsync(w http.ResponseWriter, r *http.Request) {
	const ep = "/v1/notifications/condition/async"
	var req domain.ConditionSendRequest
	if err := decode(r, &req); err != nil {
		a.fail(w, ep, err)
		return
	}
	if err := req.Validate(); err != nil {
		a.fail(w, ep, err)
		return
	}
	res, err := a.Svc.SendToConditionAsync(r.Context(), req)
	if err != nil {
		a.fail(w, ep, err)
		return
	}
	a.ok(w, ep, http.StatusAccepted, res)
}

func (a *API) handleTemplate(w http.ResponseWriter, r *http.Request) {
	const ep = "/v1/notifications/template"
	var req domain.TemplateSendRequest
	if err := decode(r, &req); err != nil {
		a.fail(w, ep, err)
		return
	}
	if err := req.Validate(); err != nil {
		a.fail(w, ep, err)
		return
	}
	res, err := a.Svc.SendWithTemplate(r.Context(), req)
	if err != nil {
		a.fail(w, ep, err)
		return
	}
	a.ok(w, ep, http.StatusOK, res)
}

func (a *API) handleGetNotification(w http.ResponseWriter, r *http.Request) {
	const ep = "/v1/notifications/{id}"
	id := mux.Vars(r)["id"]
	n, found, err := a.DB.GetNotification(r.Context(), id)
	if err != nil {
		a.fail(w, ep, err)
		return
	}
	if !found {
		a.fail(w, ep, &domain.ResolutionError{Kind: "notification", Key: id})
		return
	}
	a.ok(w, ep, http.StatusOK, n)
}

func (a *API) handleListOutcomes(w http.ResponseWriter, r *http.Request) {
	const ep = "/v1/notifications/{id}/outcomes"
	id := mux.Vars(r)["id"]
	outcomes, err := a.DB.ListOutcomes(r.Context(), store.OutcomeFilter{
		NotificationID: id,
		Status:         r.URL.Query().Get("status"),
	})
	if err != nil {
		a.fail(w, ep, err)
		return
	}
	a.ok(w, ep, http.StatusOK, outcomes)
}

type markReadRequest struct {
	DeviceID string `json:"deviceId"`
	TenantID string `json:"tenantId,omitempty"`
}

func (a *API) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	const ep = "/v1/notifications/{id}/read"
	id := mux.Vars(r)["id"]
	var req markReadRequest
	if err := decode(r, &req); err != nil {
		a.fail(w, ep, err)
		return
	}
	if req.DeviceID == "" {
		a.fail(w, ep, domain.ErrMissingFields)
		return
	}
	if err := a.Svc.MarkRead(r.Context(), id, req.DeviceID, req.TenantID); err != nil {
		a.fail(w, ep, err)
		return
	}
	a.ok(w, ep, http.StatusOK, map[string]string{"status": "read"})
}

func (a *API) handleRegisterDevice(w http.ResponseWriter, r *http.Request) {
	const ep = "/v1/devices"
	var req domain.DeviceRegisterRequest
	if err := decode(r, &req); err != nil {
		a.fail(w, ep, err)
		return
	}
	if err := req.Validate(); err != nil {
		a.fail(w, ep, err)
		return
	}
	dev, err := a.Svc.RegisterDevice(r.Context(), req)
	if err != nil {
		a.fail(w, ep, err)
		return
	}
	a.ok(w, ep, http.StatusCreated, dev)
}

type topicMembershipRequest struct {
	TenantID string   `json:"tenantId,omitempty"`
	Topic    string   `json:"topic"`
	Tokens   []string `json:"tokens"`
}

func (r topicMembershipRequest) validate() error {
	if r.Topic == "" || len(r.Tokens) == 0 {
		return domain.ErrMissingFields
	}
	return nil
}

func (a *API) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	a.handleTopicMembership(w, r, "/v1/topics/subscribe", fcm.SubscribeToTopic)
}

func (a *API) handleUnsubscribe(w http.ResponseWriter, r *http.Request) {
	a.handleTopicMembership(w, r, "/v1/topics/unsubscribe", fcm.UnsubscribeFromTopic)
}

func (a *API) handleTopicMembership(w http.ResponseWriter, r *http.Request, ep string,
	op func(context.Context, fcm.Sender, []string, string) (fcm.TopicResult, error)) {
	var req topicMembershipRequest
	if err := decode(r, &req); err != nil {
		a.fail(w, ep, err)
		return
	}
	if err := req.validate(); err != nil {
		a.fail(w, ep, err)
		return
	}
	client, err := a.Pool.Get(r.Context(), req.TenantID)
	if err != nil {
		a.fail(w, ep, err)
		return
	}
	res, err := op(r.Context(), client, req.Tokens, req.Topic)
	if err != nil {
		a.fail(w, ep, err)
		return
	}
	a.ok(w, ep, http.StatusOK, res)
}
