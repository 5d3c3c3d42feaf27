// Package loki pushes audit entries to Grafana Loki. Used by cmd/worker to
// drain the Kafka audit stream into a queryable log store.
package loki

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"
)

// PushRequest is the Loki push API request body (v1).
type PushRequest struct {
	Streams []Stream `json:"streams"`
}

// Stream is a single stream with labels and log entries.
type Stream struct {
	Stream map[string]string `json:"stream"`
	Values [][]string        `json:"values"` // each entry is [timestamp_ns, line]
}

// labelSanitize strips characters that are awkward in Loki label values.
var labelSanitize = regexp.MustCompile(`[^a-zA-Z0-9_\-:]`)

// entryFields parses only what labeling needs from an audit entry JSON.
type entryFields struct {
	MachineID string `json:"machineId"`
	Action    string `json:"action"`
	Outcome   string `json:"outcome"`
	CreatedAt string `json:"createdAt"`
}

// PushAuditJSON parses an audit entry JSON (a Kafka message value), derives
// labels and timestamp, and pushes the raw line. Unparseable input is still
// pushed, with current time and no extra labels.
func PushAuditJSON(ctx context.Context, baseURL string, rawJSON []byte) error {
	labels := map[string]string{}
	ts := time.Now().UTC()
	var fields entryFields
	if err := json.Unmarshal(rawJSON, &fields); err == nil {
		if fields.MachineID != "" {
			labels["machine_id"] = fields.MachineID
		}
		if fields.Action != "" {
			labels["action"] = fields.Action
		}
		if fields.Outcome != "" {
			labels["outcome"] = fields.Outcome
		}
		if fields.CreatedAt != "" {
			if t, err := time.Parse(time.RFC3339Nano, fields.CreatedAt); err == nil {
				ts = t
			}
		}
	}
	return Push(ctx, baseURL, ts, string(rawJSON), labels)
}

// Push sends one log line to Loki at baseURL (e.g. http://localhost:3100).
func Push(ctx context.Context, baseURL string, timestamp time.Time, line string, labels map[string]string) error {
	if baseURL == "" {
		return fmt.Errorf("loki: base URL is empty")
	}
	streamLabels := make(map[string]string, len(labels)+1)
	streamLabels["job"] = "specsync-audit"
	for k, v := range labels {
		sanitized := labelSanitize.ReplaceAllString(strings.TrimSpace(v), "_")
		if sanitized != "" {
			streamLabels[k] = sanitized
		}
	}
	body := PushRequest{Streams: []Stream{{
		Stream: streamLabels,
		Values: [][]string{{fmt.Sprintf("%d", timestamp.UnixNano()), line}},
	}}}
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	url := strings.TrimSuffix(baseURL, "/") + "/loki/api/v1/push"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("loki: push returned %s", resp.Status)
	}
	return nil
}
