package repository

const (
	typeUser         = "USER"
	typeSubscription = "SUBSCRIPTION"
	typeUsage        = "AI_SESSION"
	typeFailedEvent  = "WEBHOOK_EVENT"

	// GSI1 indexes users by email and subscriptions by provider id.
	gsi1 = "GSI1"

	failedEventsPK = "WEBHOOK#FAILED"
)

func userPK(id string) string { return "USER#" + id }

func userSK(id string) string { return "USER#" + id }

func subscriptionSK(userID string) string { return "SUBSCRIPTION#" + userID }

func usageSK(id string) string { return "AI_SESSION#" + id }

// emailKey is empty for users without an email so they stay out of GSI1.
func emailKey(email string) string {
	if email == "" {
		return ""
	}
	return "EMAIL#" + email
}

func subscriptionKey(id string) string { return "SUBSCRIPTION#" + id }

func failedEventSK(id string) string { return "EVENT#" + id }
