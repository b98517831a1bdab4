package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"gorm.io/datatypes"

	"github.com/yungbote/noc-backend/internal/clients/sendgrid"
	types "github.com/yungbote/noc-backend/internal/domain"
	"github.com/yungbote/noc-backend/internal/domain/noc"
	"github.com/yungbote/noc-backend/internal/pkg/apierr"
	"github.com/yungbote/noc-backend/internal/pkg/ctxutil"
	"github.com/yungbote/noc-backend/internal/pkg/dbctx"
	"github.com/yungbote/noc-backend/internal/pkg/httpx"
)

const (
	maxWaitStep        = 300 * time.Second
	webhookTimeout     = 15 * time.Second
	webhookMaxRetries  = 3
	escalatedScore     = 100
	escalatedPriority  = "P1"
	defaultWebhookVerb = http.MethodPost
)

type stepEnv struct {
	exec     *types.PlaybookExecution
	playbook *types.Playbook
	alert    *types.AlertEvent
}

// expand substitutes {{placeholders}} from the alert and playbook.
func (e *stepEnv) expand(s string) string {
	if !strings.Contains(s, "{{") {
		return s
	}
	pairs := []string{"{{playbook}}", e.playbook.Name, "{{execution_id}}", e.exec.ID.String()}
	if a := e.alert; a != nil {
		pairs = append(pairs,
			"{{alert_id}}", a.ID.String(),
			"{{title}}", a.Title,
			"{{message}}", a.Message,
			"{{severity}}", string(a.Severity),
			"{{alert_type}}", a.AlertType,
			"{{source}}", a.Source,
			"{{entity_type}}", a.EntityType,
			"{{entity_id}}", a.EntityID,
			"{{priority}}", a.Priority,
		)
	}
	return strings.NewReplacer(pairs...).Replace(s)
}

func (e *stepEnv) requireAlert(action string) error {
	if e.alert == nil {
		return fmt.Errorf("%s needs an alert", action)
	}
	return nil
}

func paramString(params map[string]any, key string) string {
	v, ok := params[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

func paramInt(params map[string]any, key string, def int) int {
	switch t := params[key].(type) {
	case int:
		return t
	case int64:
		return int(t)
	case float64:
		return int(t)
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(t)); err == nil {
			return n
		}
	}
	return def
}

// paramStrings accepts a list or a comma-separated string.
func paramStrings(params map[string]any, key string) []string {
	var out []string
	switch t := params[key].(type) {
	case []any:
		for _, v := range t {
			if s := strings.TrimSpace(fmt.Sprint(v)); s != "" {
				out = append(out, s)
			}
		}
	case []string:
		for _, s := range t {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	case string:
		for _, s := range strings.Split(t, ",") {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

func paramStringMap(params map[string]any, key string) map[string]string {
	out := map[string]string{}
	switch t := params[key].(type) {
	case map[string]any:
		for k, v := range t {
			out[k] = fmt.Sprint(v)
		}
	case map[string]string:
		for k, v := range t {
			out[k] = v
		}
	}
	return out
}

func (s *playbookService) runStep(dbc dbctx.Context, env *stepEnv, step noc.PlaybookStep) (any, error) {
	params := step.Params
	if params == nil {
		params = map[string]any{}
	}
	ctx := ctxutil.Default(dbc.Ctx)
	switch step.Action {
	case noc.ActionNotify:
		return s.stepNotify(dbc, env, params)
	case noc.ActionWebhook:
		return s.stepWebhook(ctx, env, params)
	case noc.ActionEmail:
		return s.stepEmail(ctx, env, params)
	case noc.ActionSMS:
		return s.stepSMS(ctx, env, params)
	case noc.ActionAcknowledgeAlert:
		return s.stepAcknowledge(dbc, env)
	case noc.ActionEscalatePriority:
		return s.stepEscalate(dbc, env)
	case noc.ActionCreateIncident:
		return s.stepCreateIncident(dbc, env, params)
	case noc.ActionAnnotate:
		return s.stepAnnotate(dbc, env, params)
	case noc.ActionWait:
		return stepWait(ctx, params)
	default:
		return nil, fmt.Errorf("unknown action %q", step.Action)
	}
}

func (s *playbookService) stepNotify(dbc dbctx.Context, env *stepEnv, params map[string]any) (any, error) {
	if s.Notify == nil {
		return nil, fmt.Errorf("realtime notifier not configured")
	}
	msg := env.expand(paramString(params, "message"))
	if msg == "" {
		msg = env.expand("Playbook {{playbook}} fired")
	}
	channel := paramString(params, "channel")
	data := map[string]any{
		"execution_id": env.exec.ID,
		"playbook":     env.playbook.Name,
		"message":      msg,
	}
	if env.alert != nil {
		data["alert_id"] = env.alert.ID
	}
	s.Notify.Broadcast(dbc.Ctx, env.exec.TenantID, channel, data)
	return map[string]any{"message": msg}, nil
}

func (s *playbookService) stepWebhook(ctx context.Context, env *stepEnv, params map[string]any) (any, error) {
	target := paramString(params, "url")
	u, err := url.Parse(target)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("webhook url %q must be absolute http(s)", target)
	}
	method := strings.ToUpper(paramString(params, "method"))
	if method == "" {
		method = defaultWebhookVerb
	}
	headers := paramStringMap(params, "headers")
	for k, v := range headers {
		headers[k] = env.expand(v)
	}
	body := params["body"]
	if body == nil {
		body = map[string]any{
			"playbook":     env.playbook.Name,
			"execution_id": env.exec.ID,
			"alert":        env.alert,
		}
	}
	if td := ctxutil.GetTraceData(ctx); td != nil && td.TraceID != "" {
		headers["X-Trace-Id"] = td.TraceID
	}
	ctx, cancel := context.WithTimeout(ctx, webhookTimeout*time.Duration(webhookMaxRetries+1))
	defer cancel()
	code, resp, err := httpx.DoJSON(ctx, &http.Client{Timeout: webhookTimeout}, method, target, headers, body, httpx.RetryPolicy{
		MaxRetries: paramInt(params, "retries", webhookMaxRetries),
		BaseDelay:  500 * time.Millisecond,
		MaxDelay:   5 * time.Second,
	})
	out := map[string]any{"status": code}
	if len(resp) > 0 {
		out["response"] = truncateOutput(string(resp), 512)
	}
	return out, err
}

func truncateOutput(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func (s *playbookService) stepEmail(ctx context.Context, env *stepEnv, params map[string]any) (any, error) {
	if s.Email == nil {
		return nil, fmt.Errorf("email not configured")
	}
	to := paramStrings(params, "to")
	if len(to) == 0 {
		return nil, fmt.Errorf("email needs at least one recipient")
	}
	subject := env.expand(paramString(params, "subject"))
	if subject == "" {
		subject = env.expand("[{{severity}}] {{title}}")
	}
	text := env.expand(paramString(params, "body"))
	if text == "" {
		text = env.expand("Playbook {{playbook}} fired for alert {{title}} ({{severity}}).\n\n{{message}}")
	}
	req := sendgrid.SendEmailRequest{Subject: subject, Text: text}
	for _, addr := range to {
		req.To = append(req.To, sendgrid.EmailAddress{Email: addr})
	}
	if err := s.Email.Send(ctx, req); err != nil {
		return nil, err
	}
	return map[string]any{"recipients": len(to)}, nil
}

func (s *playbookService) stepSMS(ctx context.Context, env *stepEnv, params map[string]any) (any, error) {
	if s.SMS == nil {
		return nil, fmt.Errorf("sms not configured")
	}
	to := paramStrings(params, "to")
	if len(to) == 0 {
		return nil, fmt.Errorf("sms needs at least one recipient")
	}
	body := env.expand(paramString(params, "body"))
	if body == "" {
		body = env.expand("[{{severity}}] {{title}}")
	}
	var sids []string
	for _, num := range to {
		msg, err := s.SMS.SendSMS(ctx, num, body)
		if err != nil {
			return map[string]any{"sent": sids}, err
		}
		if msg != nil {
			sids = append(sids, msg.SID)
		}
	}
	return map[string]any{"sent": sids}, nil
}

func (s *playbookService) stepAcknowledge(dbc dbctx.Context, env *stepEnv) (any, error) {
	if err := env.requireAlert(noc.ActionAcknowledgeAlert); err != nil {
		return nil, err
	}
	a := env.alert
	now := s.now()
	ok, err := s.Alerts.UpdateFieldsIfStatus(dbc, a.TenantID, a.ID, []string{noc.AlertStatusOpen}, map[string]interface{}{
		"status":          noc.AlertStatusAcknowledged,
		"acknowledged_at": now,
	})
	if err != nil {
		return nil, err
	}
	if ok {
		a.Status = noc.AlertStatusAcknowledged
		a.AcknowledgedAt = &now
		if s.Notify != nil {
			s.Notify.AlertUpdated(dbc.Ctx, a.TenantID, a)
		}
	}
	return map[string]any{"acknowledged": ok, "status": a.Status}, nil
}

func (s *playbookService) stepEscalate(dbc dbctx.Context, env *stepEnv) (any, error) {
	if err := env.requireAlert(noc.ActionEscalatePriority); err != nil {
		return nil, err
	}
	a := env.alert
	if err := s.Alerts.UpdateFields(dbc, a.TenantID, a.ID, map[string]interface{}{
		"priority":       escalatedPriority,
		"priority_score": escalatedScore,
	}); err != nil {
		return nil, err
	}
	a.Priority = escalatedPriority
	a.PriorityScore = escalatedScore
	if s.Notify != nil {
		s.Notify.AlertUpdated(dbc.Ctx, a.TenantID, a)
	}
	return map[string]any{"priority": a.Priority}, nil
}

func (s *playbookService) stepCreateIncident(dbc dbctx.Context, env *stepEnv, params map[string]any) (any, error) {
	if err := env.requireAlert(noc.ActionCreateIncident); err != nil {
		return nil, err
	}
	if s.Incidents == nil {
		return nil, fmt.Errorf("incident service not configured")
	}
	a := env.alert
	if a.IncidentID != nil {
		return map[string]any{"incident_id": *a.IncidentID, "existing": true}, nil
	}
	in := CreateIncidentInput{
		Title:       env.expand(paramString(params, "title")),
		Description: env.expand(paramString(params, "description")),
		Severity:    paramString(params, "severity"),
	}
	if in.Title == "" {
		in.Title = a.Title
	}
	if a.CorrelatedIncidentID != nil {
		in.CorrelatedIncidentID = a.CorrelatedIncidentID
	} else {
		in.AlertIDs = append(in.AlertIDs, a.ID)
	}
	inc, err := s.Incidents.Create(dbc, a.TenantID, nil, in)
	if err != nil {
		if status, code := apierr.StatusOf(err); status == http.StatusConflict && code == "incident_exists" {
			return map[string]any{"existing": true}, nil
		}
		return nil, err
	}
	a.IncidentID = &inc.ID
	return map[string]any{"incident_id": inc.ID, "number": inc.Number}, nil
}

func (s *playbookService) stepAnnotate(dbc dbctx.Context, env *stepEnv, params map[string]any) (any, error) {
	if err := env.requireAlert(noc.ActionAnnotate); err != nil {
		return nil, err
	}
	add := paramStringMap(params, "labels")
	if len(add) == 0 {
		return nil, fmt.Errorf("annotate needs labels")
	}
	a := env.alert
	labels := a.LabelMap()
	for k, v := range add {
		labels[k] = env.expand(v)
	}
	raw, err := json.Marshal(labels)
	if err != nil {
		return nil, err
	}
	if err := s.Alerts.UpdateFields(dbc, a.TenantID, a.ID, map[string]interface{}{"labels": datatypes.JSON(raw)}); err != nil {
		return nil, err
	}
	a.Labels = datatypes.JSON(raw)
	return map[string]any{"labels": labels}, nil
}

func stepWait(ctx context.Context, params map[string]any) (any, error) {
	d := time.Duration(paramInt(params, "seconds", 0)) * time.Second
	if d < 0 {
		d = 0
	}
	if d > maxWaitStep {
		d = maxWaitStep
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return map[string]any{"waited_seconds": d.Seconds()}, nil
	}
}
