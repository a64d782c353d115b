package remote

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/MKhiriev/cloudsync/models"
)

// mapHTTPError translates a whole-operation HTTP failure into the
// package taxonomy. submitted is the save batch of the originating
// request; it lets a single-record 409 carry the client's version in
// the resulting ConflictError.
func mapHTTPError(resp *resty.Response, submitted []models.RemoteRecord) error {
	if resp.StatusCode() >= http.StatusOK && resp.StatusCode() < http.StatusMultipleChoices {
		return nil
	}

	body := strings.TrimSpace(string(resp.Body()))

	switch resp.StatusCode() {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrZoneNotFound, body)
	case http.StatusGone:
		return fmt.Errorf("%w: %s", ErrChangeTokenExpired, body)
	case http.StatusRequestEntityTooLarge:
		return fmt.Errorf("%w: %s", ErrLimitExceeded, body)
	case http.StatusConflict:
		conflict := &ConflictError{}
		if len(submitted) == 1 {
			conflict.ClientRecord = submitted[0]
		}
		// The body carries the store's current record. Without it the
		// resolver would resubmit with the client's stale change tag
		// and conflict again on every attempt.
		var payload conflictResponse
		if jsonErr := json.Unmarshal(resp.Body(), &payload); jsonErr == nil && payload.ServerRecord != nil {
			conflict.ServerRecord = *payload.ServerRecord
		}
		return conflict
	case http.StatusTooManyRequests:
		return withHeaderBackoff(resp, ErrRateLimited)
	case http.StatusServiceUnavailable, http.StatusBadGateway:
		return withHeaderBackoff(resp, ErrServiceUnavailable)
	default:
		if body == "" {
			body = http.StatusText(resp.StatusCode())
		}
		return fmt.Errorf("http %d: %s", resp.StatusCode(), body)
	}
}

// mapItemFailures builds a PartialError from per-item failure entries.
func mapItemFailures(failures []itemFailure, submitted []models.RemoteRecord) error {
	byID := make(map[models.RecordID]models.RemoteRecord, len(submitted))
	for _, rec := range submitted {
		byID[rec.ID] = rec
	}

	out := make(map[models.RecordID]error, len(failures))
	for _, f := range failures {
		switch f.Code {
		case "unknown_item":
			out[f.ID] = ErrUnknownItem
		case "batch_request_failed":
			out[f.ID] = ErrBatchRequestFailed
		case "token_expired":
			out[f.ID] = ErrChangeTokenExpired
		case "already_exists":
			conflict := &ConflictError{ClientRecord: byID[f.ID]}
			if f.ServerRecord != nil {
				conflict.ServerRecord = *f.ServerRecord
			}
			out[f.ID] = fmt.Errorf("%w: %w", ErrAlreadyExists, conflict)
		case "conflict":
			conflict := &ConflictError{ClientRecord: byID[f.ID]}
			if f.ServerRecord != nil {
				conflict.ServerRecord = *f.ServerRecord
			}
			out[f.ID] = conflict
		default:
			out[f.ID] = fmt.Errorf("item failure %q", f.Code)
		}
	}
	return &PartialError{Failures: out}
}

func withHeaderBackoff(resp *resty.Response, err error) error {
	retryAfter := strings.TrimSpace(resp.Header().Get("Retry-After"))
	if retryAfter == "" {
		return err
	}
	seconds, parseErr := strconv.Atoi(retryAfter)
	if parseErr != nil || seconds < 0 {
		return err
	}
	return WithRetryAfter(err, time.Duration(seconds)*time.Second)
}
