package ingest

import (
	"encoding/json"
	"fmt"
	"net/url"

	appErr "github.com/xxxsen/docqa/internal/pkg/errors"
)

// S3Event is one object notification.
type S3Event struct {
	Bucket    string `json:"bucket"`
	Key       string `json:"key"`
	EventName string `json:"event_name"`
	EventTime string `json:"event_time"`
}

type s3Notification struct {
	Records []struct {
		EventName string `json:"eventName"`
		EventTime string `json:"eventTime"`
		S3        struct {
			Bucket struct {
				Name string `json:"name"`
			} `json:"bucket"`
			Object struct {
				Key string `json:"key"`
			} `json:"object"`
		} `json:"s3"`
	} `json:"Records"`
}

// ParseS3Event decodes an S3 event notification. Object keys arrive form
// encoded and are unescaped.
func ParseS3Event(body []byte) ([]S3Event, error) {
	var n s3Notification
	if err := json.Unmarshal(body, &n); err != nil {
		return nil, fmt.Errorf("%w: decode s3 event: %w", appErr.ErrInvalid, err)
	}
	if len(n.Records) == 0 {
		return nil, fmt.Errorf("%w: no records found in s3 event", appErr.ErrInvalid)
	}
	out := make([]S3Event, 0, len(n.Records))
	for i, r := range n.Records {
		key, err := url.QueryUnescape(r.S3.Object.Key)
		if err != nil {
			return nil, fmt.Errorf("%w: record %d: bad object key: %w", appErr.ErrInvalid, i, err)
		}
		if key == "" {
			return nil, fmt.Errorf("%w: record %d has no object key", appErr.ErrInvalid, i)
		}
		out = append(out, S3Event{
			Bucket:    r.S3.Bucket.Name,
			Key:       key,
			EventName: r.EventName,
			EventTime: r.EventTime,
		})
	}
	return out, nil
}
