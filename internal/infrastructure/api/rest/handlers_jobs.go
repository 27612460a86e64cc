package rest

import (
	"errors"
	"net/http"

	"github.com/tissuelab/slideflow/internal/domain"
	derrors "github.com/tissuelab/slideflow/internal/domain/errors"
)

// getOwnedJob fetches a job and hides other users' jobs behind 404.
func (s *Server) getOwnedJob(w http.ResponseWriter, r *http.Request, uid string) (*domain.Job, bool) {
	job, err := s.store.GetJob(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, derrors.ErrJobNotFound) {
			writeError(w, http.StatusNotFound, "Job not found")
		} else {
			writeError(w, http.StatusInternalServerError, "could not fetch job")
		}
		return nil, false
	}
	if job.UserID() != uid {
		writeError(w, http.StatusNotFound, "Job not found")
		return nil, false
	}
	return job, true
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	job, ok := s.getOwnedJob(w, r, uid)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, job.View())
}

func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	job, ok := s.getOwnedJob(w, r, uid)
	if !ok {
		return
	}

	cancelled, err := s.store.CancelJob(r.Context(), job.ID())
	if err != nil {
		if errors.Is(err, derrors.ErrJobNotCancellable) {
			writeError(w, http.StatusBadRequest,
				"Cannot cancel job with status "+job.Status().String()+". Only PENDING jobs can be cancelled.")
			return
		}
		writeError(w, http.StatusInternalServerError, "could not cancel job")
		return
	}

	view := cancelled.View()
	if s.metrics != nil {
		s.metrics.RecordJobCancelled(view.Type.String())
	}
	if s.observers != nil {
		s.observers.OnJobCancelled(view)
	}
	if s.archive != nil {
		if archiveErr := s.archive.ArchiveJob(r.Context(), cancelled); archiveErr != nil {
			s.logger.Error().Err(archiveErr).Str("job_id", view.ID).Msg("job archive write failed")
		}
	}

	writeJSON(w, http.StatusOK, view)
}
