// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package http

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sndie3/LABAN/internal/metrics"
)

func (h *Handler) Init() *chi.Mux {
	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Use(h.withTraceID, h.withLogging, metrics.InstrumentHandler)

	router.Handle("/metrics", metrics.Handler())

	router.Route("/api", func(r chi.Router) {
		r.Use(withGZip)

		r.Get("/version", h.getVersion)
		r.Get("/status", h.getStatus)
		r.Post("/sync", h.forceSync)

		r.Post("/records/{entityType}", h.submitRecord)
		r.Get("/records/{entityType}", h.queryRecords)
		r.Get("/ids/{id}", h.resolveID)

		r.Route("/mesh", func(r chi.Router) {
			r.Use(h.requireRelay)
			r.Get("/peers", h.getPeers)
			r.Get("/records", h.getMeshRecords)
			r.Post("/records", h.storeMeshRecord)
			r.Put("/location", h.updateLocation)
		})
	})

	router.MethodNotAllowed(CheckHTTPMethod(router))
	router.NotFound(notFound)

	return router
}
