package core

import (
	"context"
	"time"
)

type (
	// CredentialsEnvelope carries everything a credential notification needs.
	CredentialsEnvelope struct {
		RecipientEmail      string
		RecipientName       string
		LoginHandle         string
		TemporaryCredential string
		Expiry              time.Time
		StudentName         string
		EnrollmentCode      string
	}

	NotificationResult struct {
		Delivered bool
		Reference string
	}

	// CredentialNotifier delivers freshly issued credentials to a new account's
	// contact address. Delivery failure is reported through the result, never
	// as an error: account provisioning must not roll back because an email
	// bounced.
	CredentialNotifier interface {
		SendCredentials(ctx context.Context, env CredentialsEnvelope) NotificationResult
	}
)
