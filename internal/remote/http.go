package remote

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/MKhiriev/cloudsync/models"
)

// HTTPClientConfig configures the HTTP executor. Zone names the record
// zone all requests are scoped to.
type HTTPClientConfig struct {
	BaseURL string
	Zone    string
	Timeout time.Duration
}

type httpExecutor struct {
	client *resty.Client
	zone   string
}

// NewHTTPExecutor returns an Executor and Provisioner speaking the
// record-store HTTP API. The same underlying client serves both roles.
func NewHTTPExecutor(cfg HTTPClientConfig) (Executor, Provisioner) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:8080"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}

	cli := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout)

	h := &httpExecutor{client: cli, zone: cfg.Zone}
	return h, h
}

type modifyRequest struct {
	Save       []models.RemoteRecord `json:"save,omitempty"`
	Delete     []models.RecordID     `json:"delete,omitempty"`
	SavePolicy string                `json:"save_policy"`
}

type itemFailure struct {
	ID           models.RecordID      `json:"id"`
	Code         string               `json:"code"`
	ServerRecord *models.RemoteRecord `json:"server_record,omitempty"`
}

type modifyResponse struct {
	Saved    []models.RemoteRecord `json:"saved,omitempty"`
	Deleted  []models.RecordID     `json:"deleted,omitempty"`
	Failures []itemFailure         `json:"failures,omitempty"`
}

// conflictResponse is the body of a whole-operation 409.
type conflictResponse struct {
	ServerRecord *models.RemoteRecord `json:"server_record,omitempty"`
}

func (h *httpExecutor) Modify(ctx context.Context, save []models.RemoteRecord, del []models.RecordID, policy models.SavePolicy) (ModifyResult, error) {
	var body modifyResponse
	resp, err := h.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(modifyRequest{Save: save, Delete: del, SavePolicy: policy.String()}).
		SetResult(&body).
		Post(fmt.Sprintf("/api/zones/%s/modify", h.zone))
	if err != nil {
		return ModifyResult{}, fmt.Errorf("%w: modify request: %v", ErrNetworkUnavailable, err)
	}
	if mapped := mapHTTPError(resp, save); mapped != nil {
		return ModifyResult{}, mapped
	}

	result := ModifyResult{SavedRecords: body.Saved, DeletedIDs: body.Deleted}
	if len(body.Failures) == 0 {
		return result, nil
	}
	return result, mapItemFailures(body.Failures, save)
}

type changesResponse struct {
	Events   []deltaEventWire   `json:"events,omitempty"`
	NextPage string             `json:"next_page,omitempty"`
	Done     bool               `json:"done"`
	Token    models.ChangeToken `json:"token,omitempty"`
}

type deltaEventWire struct {
	Changed     *models.RemoteRecord `json:"changed,omitempty"`
	DeletedID   models.RecordID      `json:"deleted_id,omitempty"`
	DeletedType string               `json:"deleted_type,omitempty"`
	Token       *models.ChangeToken  `json:"token,omitempty"`
}

func (h *httpExecutor) FetchDelta(ctx context.Context, since models.ChangeToken, fn func(DeltaEvent) error) (models.ChangeToken, error) {
	page := ""
	for {
		req := h.client.R().
			SetContext(ctx).
			SetQueryParam("since", string(since))
		if page != "" {
			req.SetQueryParam("page", page)
		}

		var body changesResponse
		resp, err := req.SetResult(&body).Get(fmt.Sprintf("/api/zones/%s/changes", h.zone))
		if err != nil {
			return "", fmt.Errorf("%w: changes request: %v", ErrNetworkUnavailable, err)
		}
		if mapped := mapHTTPError(resp, nil); mapped != nil {
			return "", mapped
		}

		for _, ev := range body.Events {
			if err = fn(DeltaEvent{
				Changed:     ev.Changed,
				DeletedID:   ev.DeletedID,
				DeletedType: ev.DeletedType,
				Token:       ev.Token,
			}); err != nil {
				return "", err
			}
		}

		if body.Done {
			return body.Token, nil
		}
		if body.NextPage == "" || body.NextPage == page {
			// Not done, but no new page either: refetching would loop
			// forever on an identical request.
			return "", fmt.Errorf("changes pagination stalled on page %q", page)
		}
		page = body.NextPage
	}
}

type ensureResponse struct {
	Exists bool `json:"exists"`
}

func (h *httpExecutor) EnsureZone(ctx context.Context) (bool, error) {
	var body ensureResponse
	resp, err := h.client.R().
		SetContext(ctx).
		SetResult(&body).
		Put(fmt.Sprintf("/api/zones/%s", h.zone))
	if err != nil {
		return false, fmt.Errorf("%w: ensure zone: %v", ErrNetworkUnavailable, err)
	}
	if mapped := mapHTTPError(resp, nil); mapped != nil {
		return false, mapped
	}
	return body.Exists, nil
}

func (h *httpExecutor) EnsureSubscription(ctx context.Context) (bool, error) {
	var body ensureResponse
	resp, err := h.client.R().
		SetContext(ctx).
		SetResult(&body).
		Put(fmt.Sprintf("/api/zones/%s/subscription", h.zone))
	if err != nil {
		return false, fmt.Errorf("%w: ensure subscription: %v", ErrNetworkUnavailable, err)
	}
	if mapped := mapHTTPError(resp, nil); mapped != nil {
		return false, mapped
	}
	return body.Exists, nil
}
