package httpapi

import "github.com/go-chi/chi/v5"

func RegisterRoutes(r chi.Router, app *App) {
	r.Get("/health", app.healthHandler)

	r.Group(func(r chi.Router) {
		r.Use(RequireAuth)
		r.Get("/me", app.meHandler)
		r.Post("/tasks", app.createTask)
		r.Get("/tasks", app.listTasks)
		r.Get("/tasks/{id}", app.getTask)
		r.Post("/files/presign", app.presignUpload)
		r.Post("/files/download", app.presignDownload)
	})
}
