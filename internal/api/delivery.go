package api

import (
	"context"
	"net/http"

	"github.com/oshokin/media-grabber/internal/logger"
	"github.com/oshokin/media-grabber/internal/service/delivery"
)

// handleDelivery serves an artifact, deleting it afterwards when delete_after_delivery is set.
func (s *Server) handleDelivery(w http.ResponseWriter, r *http.Request) {
	s.deliver(w, r, s.cfg.DeleteAfterDelivery)
}

// handleOneTimeDelivery serves an artifact and always deletes it once the last byte was sent.
func (s *Server) handleOneTimeDelivery(w http.ResponseWriter, r *http.Request) {
	s.deliver(w, r, true)
}

func (s *Server) deliver(w http.ResponseWriter, r *http.Request, deleteAfter bool) {
	ctx := r.Context()

	name, err := pathParam(r, "filename")
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	path, err := s.storage.Resolve(name)
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	result, err := delivery.Serve(w, r, path, name)
	if result == nil {
		s.writeError(w, r, err)

		return
	}

	s.metrics.BytesDelivered.Add(float64(result.Written))

	// A file counts as delivered once its bytes were sent from the first to the last,
	// possibly split over resumed requests. Tail reads alone never qualify.
	complete := r.Method != http.MethodHead && s.delivered.Record(name, result)

	if err != nil {
		logger.Infof(ctx, "Delivery of '%s' stopped after %d bytes: %v", name, result.Written, err)

		return
	}

	if !deleteAfter || !complete {
		return
	}

	if _, err = s.storage.Delete(context.WithoutCancel(ctx), name); err != nil {
		logger.Warnf(ctx, "Failed to delete delivered file '%s': %v", name, err)

		return
	}

	s.metrics.FilesDeleted.WithLabelValues(deleteReasonDelivered).Inc()
}
