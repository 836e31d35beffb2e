package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// MountRoutes registers all API routes on the given chi router.
func MountRoutes(r chi.Router, h *Handlers) {
	r.Get("/health", h.Health)
	r.Get("/ws", h.Hub.HandleWS)

	// Run webhook sits outside the API group; the external tool posts here.
	r.Post("/webhooks/runs", h.RunWebhook)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"version":"0.1.0"}`))
		})

		// Tasks
		r.Get("/tasks", h.ListTasks)
		r.Post("/tasks", h.CreateTask)
		r.Get("/tasks/board", h.GetBoard)
		r.Get("/tasks/inbox", h.GetInbox)
		r.Post("/tasks/propose", h.ProposeTask)
		r.Get("/tasks/{id}", h.GetTask)
		r.Patch("/tasks/{id}", h.UpdateTask)
		r.Delete("/tasks/{id}", h.DeleteTask)
		r.Post("/tasks/{id}/claim", h.ClaimTask)
		r.Post("/tasks/{id}/start", h.StartTask)
		r.Post("/tasks/{id}/complete", h.CompleteTask)
		r.Post("/tasks/{id}/review", h.RequestReview)
		r.Post("/tasks/{id}/block", h.BlockTask)
		r.Post("/tasks/{id}/unblock", h.UnblockTask)

		// Task threads
		r.Get("/tasks/{id}/messages", h.ListTaskMessages)
		r.Post("/tasks/{id}/messages", h.CreateMessage)
		r.Get("/tasks/{id}/subscribers", h.ListSubscribers)
		r.Post("/tasks/{id}/subscribe", h.Subscribe)
		r.Post("/tasks/{id}/unsubscribe", h.Unsubscribe)
		r.Get("/tasks/{id}/documents", h.ListTaskDocuments)

		// Agents
		r.Get("/agents", h.ListAgents)
		r.Post("/agents", h.CreateAgent)
		r.Get("/agents/by-name/{name}", h.GetAgentByName)
		r.Post("/agents/by-name/{name}/heartbeat", h.AgentHeartbeat)
		r.Post("/agents/heartbeat", h.RunAllCycles)
		r.Get("/agents/{id}", h.GetAgent)
		r.Patch("/agents/{id}/status", h.UpdateAgentStatus)
		r.Patch("/agents/{id}/skills", h.UpdateAgentSkills)
		r.Post("/agents/{id}/messages", h.SendDirectMessage)
		r.Get("/agents/{id}/notifications", h.ListAgentNotifications)
		r.Get("/agents/{id}/proposed", h.ListProposedTasks)

		// Messages
		r.Get("/messages", h.ListRecentMessages)

		// Notifications (daemon-facing endpoints included)
		r.Post("/notifications", h.CreateNotification)
		r.Get("/notifications/undelivered", h.ListUndelivered)
		r.Post("/notifications/delivered", h.MarkDelivered)
		r.Get("/notifications/sessions", h.ListAgentSessions)
		r.Post("/notifications/broadcast", h.Broadcast)

		// Documents
		r.Get("/documents", h.ListDocuments)
		r.Post("/documents", h.CreateDocument)
		r.Get("/documents/{id}", h.GetDocument)

		// Activity feed
		r.Get("/activities", h.ListActivities)

		// System
		r.Get("/system/status", h.SystemStatus)
		r.Post("/system/pause", h.PauseSystem)
		r.Post("/system/resume", h.ResumeSystem)
		r.Post("/system/reconcile", h.RunReconcile)
		r.Post("/system/standup", h.GenerateStandup)
		r.Get("/system/standup", h.LatestStandup)
		r.Get("/runs/tasks", h.ListRunTasks)
		r.Get("/runs/stats", h.RunStats)
	})
}
