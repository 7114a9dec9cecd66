// Package api is the REST boundary used by the notification read flows.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"chatsync/internal/models"
	"chatsync/internal/observability"

	"github.com/gofiber/fiber/v2"
	"go.opentelemetry.io/otel/attribute"
)

// ErrUnexpectedStatus is wrapped by every non-2xx response error.
var ErrUnexpectedStatus = errors.New("unexpected status")

const defaultTimeout = 10 * time.Second

// TokenFunc returns the bearer credential for a request.
type TokenFunc func(ctx context.Context) (string, error)

// NotificationClient calls the notification endpoints of the REST API.
type NotificationClient struct {
	baseURL string
	token   TokenFunc
	timeout time.Duration
}

// NewNotificationClient creates a client rooted at baseURL
// (e.g. http://localhost:3000/api).
func NewNotificationClient(baseURL string, token TokenFunc) *NotificationClient {
	return &NotificationClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		timeout: defaultTimeout,
	}
}

// List fetches every notification of the current user.
func (c *NotificationClient) List(ctx context.Context) ([]models.Notification, error) {
	body, err := c.do(ctx, fiber.MethodGet, "/notifications")
	if err != nil {
		return nil, err
	}
	var out []models.Notification
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, models.NewUpstreamError("decode notifications", err)
	}
	return out, nil
}

// MarkRead marks one notification read. The call is idempotent server side.
func (c *NotificationClient) MarkRead(ctx context.Context, id string) error {
	_, err := c.do(ctx, fiber.MethodPatch, "/notifications/"+url.PathEscape(id)+"/read")
	return err
}

// MarkAllRead marks every notification read.
func (c *NotificationClient) MarkAllRead(ctx context.Context) error {
	_, err := c.do(ctx, fiber.MethodPatch, "/notifications/read-all")
	return err
}

func (c *NotificationClient) do(ctx context.Context, method, path string) ([]byte, error) {
	span, ctx := observability.ClientSpan(ctx, "api "+method+" "+path,
		attribute.String("http.request.method", method),
		attribute.String("url.path", path),
	)
	defer span.End()

	if err := ctx.Err(); err != nil {
		span.SetError(err)
		return nil, err
	}
	token, err := c.token(ctx)
	if err != nil {
		span.SetError(err)
		appErr := models.NewUnauthorizedError("no usable session")
		appErr.Err = err
		return nil, appErr
	}

	timeout := c.timeout
	if dl, ok := ctx.Deadline(); ok {
		if left := time.Until(dl); left < timeout {
			timeout = left
		}
	}

	a := fiber.AcquireAgent()
	req := a.Request()
	req.Header.SetMethod(method)
	req.SetRequestURI(c.baseURL + path)
	a.Set(fiber.HeaderAuthorization, "Bearer "+token)
	a.Set(fiber.HeaderAccept, fiber.MIMEApplicationJSON)
	a.Timeout(timeout)
	if err := a.Parse(); err != nil {
		fiber.ReleaseAgent(a)
		span.SetError(err)
		return nil, models.NewInternalError(fmt.Errorf("build request: %w", err))
	}

	code, body, errs := a.Bytes()
	if len(errs) > 0 {
		err := errors.Join(errs...)
		span.SetError(err)
		return nil, models.NewUpstreamError(method+" "+path, err)
	}
	span.AddAttributes(attribute.Int("http.response.status_code", code))
	if code < 200 || code > 299 {
		err := fmt.Errorf("%w: %s %s returned %d", ErrUnexpectedStatus, method, path, code)
		span.SetError(err)
		return nil, err
	}
	return body, nil
}
