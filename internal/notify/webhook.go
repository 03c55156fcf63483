// Package notify posts high-severity scoring outcomes to an operations
// webhook. It is an outbound boundary only; failures are reported to the
// caller, who logs and moves on.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

type Notifier interface {
	GradeDeteriorated(ctx context.Context, n GradeTransition) error
	CriticalAlert(ctx context.Context, n AlertNotice) error
}

type GradeTransition struct {
	CompanyID   string  `json:"company_id"`
	CompanyName string  `json:"company_name,omitempty"`
	Period      string  `json:"period"`
	From        string  `json:"from"`
	To          string  `json:"to"`
	Composite   float64 `json:"composite_score"`
}

type AlertNotice struct {
	CompanyID   string  `json:"company_id"`
	CompanyName string  `json:"company_name,omitempty"`
	Period      string  `json:"period"`
	Channel     string  `json:"channel,omitempty"`
	Code        string  `json:"code"`
	Severity    string  `json:"severity"`
	Message     string  `json:"message"`
	Value       float64 `json:"value"`
}

type Webhook struct {
	url        string
	token      string
	httpClient *http.Client
}

func NewWebhook(url, token string) *Webhook {
	return &Webhook{
		url:        url,
		token:      token,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (w *Webhook) post(ctx context.Context, kind string, payload interface{}) error {
	body, err := json.Marshal(struct {
		Kind    string      `json:"kind"`
		Payload interface{} `json:"payload"`
	}{Kind: kind, Payload: payload})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", w.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if w.token != "" {
		req.Header.Set("Authorization", "Bearer "+w.token)
	}

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("webhook %s: %d %s", kind, resp.StatusCode, string(respBody))
	}
	return nil
}

func (w *Webhook) GradeDeteriorated(ctx context.Context, n GradeTransition) error {
	return w.post(ctx, "grade_deteriorated", n)
}

func (w *Webhook) CriticalAlert(ctx context.Context, n AlertNotice) error {
	return w.post(ctx, "critical_alert", n)
}
