package pipeline

import (
	"context"
	stderrors "errors"
	"strings"

	"SafeStack/internal/models"
	"SafeStack/pkg/errors"
	"SafeStack/pkg/llm"
	"SafeStack/pkg/logger"

	"go.uber.org/zap"
)

// AmendPolicy rewrites the description of the policy behind alertID using
// operator feedback. The alert itself is left untouched.
func (o *Orchestrator) AmendPolicy(ctx context.Context, alertID uint, feedback string) (*models.Policy, error) {
	alert, err := o.Alerts.Get(ctx, alertID)
	if err != nil {
		if stderrors.Is(err, models.ErrNotFound) {
			return nil, errors.WithCodef(errors.CodeNotFound, "alert %d not found", alertID)
		}
		return nil, errors.WrapCode(err, errors.CodeInternal, "load alert")
	}

	policy, err := o.Policies.Get(ctx, alert.PolicyID)
	if err != nil {
		if stderrors.Is(err, models.ErrNotFound) {
			return nil, errors.WithCodef(errors.CodeNotFound, "policy %d not found", alert.PolicyID)
		}
		return nil, errors.WrapCode(err, errors.CodeInternal, "load policy")
	}

	prompt := llm.AmendPrompt(policy.Title, policy.Level, policy.Description, feedback)
	text, err := o.Vision.RewriteDescription(ctx, prompt)
	if err != nil {
		return nil, errors.WrapCode(err, errors.CodeAnalysis, "rewrite policy description")
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errors.WithCode(errors.CodeAnalysis, "model returned an empty policy description")
	}

	updated, err := o.Policies.UpdateDescription(ctx, policy.ID, text)
	if err != nil {
		return nil, errors.WrapCode(err, errors.CodeInternal, "update policy description")
	}
	o.Catalog.Invalidate(ctx)
	logger.Info("policy amended", zap.Uint("policy_id", policy.ID), zap.Uint("alert_id", alertID))
	return updated, nil
}
