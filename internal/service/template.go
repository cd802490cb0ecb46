package service

import (
	"context"
	"errors"

	"github.com/benardelia/fcm-notification-server/internal/domain"
	"github.com/benardelia/fcm-notification-server/internal/template"
)

var errAllRecipientsFailed = errors.New("all recipients failed")

// RenderNotificationTemplate resolves a stored template against caller
// variables. The rendered default data is merged under any direct data the
// caller supplies.
func (d *Dispatcher) RenderNotificationTemplate(ctx context.Context, name string, vars map[string]string) (template.Rendered, error) {
	tpl, found, err := d.Store.GetTemplate(ctx, name)
	if err != nil {
		return template.Rendered{}, err
	}
	if !found {
		return template.Rendered{}, &domain.ResolutionError{Kind: "template", Key: name}
	}
	return template.RenderNotification(tpl.TitleTemplate, tpl.BodyTemplate, tpl.DefaultData, tpl.PlatformOverrides, vars), nil
}

// SendWithTemplate renders the named template and dispatches through the
// normal phone path.
func (d *Dispatcher) SendWithTemplate(ctx context.Context, req domain.TemplateSendRequest) (domain.BulkSendResult, error) {
	rendered, err := d.RenderNotificationTemplate(ctx, req.TemplateName, req.Variables)
	if err != nil {
		return domain.BulkSendResult{}, err
	}

	data := make(map[string]any, len(rendered.Data)+len(req.Data))
	for k, v := range rendered.Data {
		data[k] = v
	}
	for k, v := range req.Data {
		data[k] = v
	}

	return d.SendToPhone(ctx, domain.SendRequest{
		TenantID:    req.TenantID,
		PhoneNumber: req.PhoneNumber,
		Title:       rendered.Title,
		Body:        rendered.Body,
		Data:        data,
		Priority:    req.Priority,
		Silent:      req.Silent,
		ClickAction: req.ClickAction,
	})
}
