package activities

import "go.temporal.io/sdk/worker"

func Register(w worker.Worker, a *Activities) {
	w.RegisterActivity(a.CreateJobActivity)
	w.RegisterActivity(a.UpdateJobActivity)
	w.RegisterActivity(a.ExtractInsightsActivity)
	w.RegisterActivity(a.IndexDocumentActivity)
	w.RegisterActivity(a.PublishNotificationActivity)
}
