package completion

import (
	"context"
	"errors"
)

// ErrEmailUnavailable means no address could be derived for the completion.
var ErrEmailUnavailable = errors.New("email address unavailable for completion")

// EmailResolver derives the email recipient of an email campaign.
type EmailResolver interface {
	ResolveEmail(ctx context.Context, ev Event) (string, error)
}

// NotImplementedEmailResolver always fails. Email campaigns are skipped and
// counted when it is in use.
type NotImplementedEmailResolver struct{}

func (NotImplementedEmailResolver) ResolveEmail(ctx context.Context, ev Event) (string, error) {
	return "", ErrEmailUnavailable
}

// SubmissionEmailResolver uses the address captured with the submission.
type SubmissionEmailResolver struct{}

func (SubmissionEmailResolver) ResolveEmail(ctx context.Context, ev Event) (string, error) {
	if ev.Email == "" {
		return "", ErrEmailUnavailable
	}
	return ev.Email, nil
}
