package jobs

import (
	"context"
	"os"
	"os/exec"
	"slices"
	"strings"
	"text/template"
	"time"
)

const webhookTimeout = 30 * time.Second

// webhookData is what the webhook command template can reference.
type webhookData struct {
	ID       string
	Name     string
	Type     string
	Status   string
	Message  string
	Error    string
	Duration string
}

// runWebhook renders the configured shell command for job and runs it in the
// background when the job type is subscribed ("*" subscribes to all).
func (s *Service) runWebhook(job *Job) {
	hooks := s.config.Webhooks
	if !hooks.Enabled || hooks.Command == "" {
		return
	}
	if !slices.Contains(hooks.JobTypes, job.Type) && !slices.Contains(hooks.JobTypes, "*") {
		return
	}

	command, err := renderWebhook(hooks.Command, job)
	if err != nil {
		job.Logger.Error("Failed to render webhook command", "error", err)
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), webhookTimeout)
		defer cancel()
		cmd := exec.CommandContext(ctx, "/bin/sh", "-c", command)
		cmd.Env = os.Environ()
		if out, err := cmd.CombinedOutput(); err != nil {
			job.Logger.Error("Webhook failed", "command", command, "error", err, "output", strings.TrimSpace(string(out)))
			return
		}
		job.Logger.Info("Webhook executed", "command", command)
	}()
}

func renderWebhook(text string, job *Job) (string, error) {
	tmpl, err := template.New("webhook").Option("missingkey=error").Parse(text)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	err = tmpl.Execute(&b, webhookData{
		ID:       job.ID,
		Name:     job.Name,
		Type:     job.Type,
		Status:   string(job.Status),
		Message:  job.Summary(),
		Error:    job.Error,
		Duration: job.UpdatedAt.Sub(job.CreatedAt).Round(time.Second).String(),
	})
	return b.String(), err
}
