package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/book-expert/voice-clone-service/internal/fsutil"
	"github.com/book-expert/voice-clone-service/internal/history"
	"github.com/book-expert/voice-clone-service/internal/metrics"
	"github.com/book-expert/voice-clone-service/internal/objectstore"
	"github.com/book-expert/voice-clone-service/internal/synthesis"
	"github.com/book-expert/voice-clone-service/internal/voices"
)

const (
	formFieldVoice  = "voiceSample"
	formFieldUserID = "user_id"
	queryUserID     = "user_id"
	queryLimit      = "limit"
	contentTypeWAV  = "audio/wav"

	maxSynthesizeBodyBytes = 1 << 20
)

// messageResponse is the body of responses that only carry a message.
type messageResponse struct {
	Message string `json:"message"`
}

type healthResponse struct {
	Status  string `json:"status"`
	ModelID string `json:"model_id"`
}

type voicesResponse struct {
	Voices []voices.Voice `json:"voices"`
}

type uploadResponse struct {
	Message string       `json:"message"`
	Voice   voices.Voice `json:"voice"`
}

type historyResponse struct {
	Records []history.Record `json:"records"`
}

func (s *Server) handleSynthesize(w http.ResponseWriter, r *http.Request) {
	var req synthesis.Request

	r.Body = http.MaxBytesReader(w, r.Body, maxSynthesizeBodyBytes)

	err := json.NewDecoder(r.Body).Decode(&req)
	if err != nil {
		status := http.StatusBadRequest

		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			status = http.StatusRequestEntityTooLarge
		}

		s.writeFailure(w, status, synthesis.Failure{
			Error: fmt.Sprintf("invalid request body: %v", err),
			Kind:  synthesis.KindInvalidRequest,
		})

		return
	}

	result, err := s.deps.Synthesizer.Synthesize(r.Context(), req)
	if err != nil {
		s.writeFailure(w, StatusFor(err), synthesis.FailureOf(err))

		return
	}

	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, healthResponse{Status: "ok", ModelID: s.deps.Synthesizer.ModelID()})
}

func (s *Server) handleListVoices(w http.ResponseWriter, _ *http.Request) {
	list, err := s.deps.Voices.List()
	if err != nil {
		s.deps.Log.Error("Failed to list voices: %v", err)
		s.writeFailure(w, http.StatusInternalServerError, synthesis.Failure{Error: "failed to list voices"})

		return
	}

	s.writeJSON(w, http.StatusOK, voicesResponse{Voices: list})
}

func (s *Server) handleUploadVoice(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.deps.MaxUploadBytes)

	err := r.ParseMultipartForm(s.deps.MaxUploadBytes)
	if err != nil {
		s.writeFailure(w, http.StatusBadRequest, invalid(fmt.Sprintf("invalid upload: %v", err)))

		return
	}

	userID, err := strconv.ParseInt(r.FormValue(formFieldUserID), 10, 64)
	if err != nil {
		s.writeFailure(w, http.StatusBadRequest, invalid("user_id must be an integer"))

		return
	}

	file, _, err := r.FormFile(formFieldVoice)
	if err != nil {
		s.writeFailure(w, http.StatusBadRequest, invalid("please upload a voice sample in the voiceSample field"))

		return
	}
	defer file.Close()

	voice, err := s.deps.Voices.Save(userID, file)
	if err != nil {
		if errors.Is(err, voices.ErrInvalidVoice) {
			s.writeFailure(w, http.StatusBadRequest, invalid(err.Error()))

			return
		}

		s.deps.Log.Error("Failed to store voice upload for user %d: %v", userID, err)
		s.writeFailure(w, http.StatusInternalServerError, synthesis.Failure{Error: "failed to store voice sample"})

		return
	}

	metrics.VoiceUploads.Inc()
	s.deps.Log.Info("User %d uploaded voice %s", userID, voice.Filename)
	s.writeJSON(w, http.StatusCreated, uploadResponse{Message: "Voice sample uploaded", Voice: voice})
}

func (s *Server) handleOutput(w http.ResponseWriter, r *http.Request) {
	filename := chi.URLParam(r, "filename")
	if !fsutil.IsPlainFilename(filename) || !fsutil.HasWAVExtension(filename) {
		s.writeFailure(w, http.StatusBadRequest, invalid("invalid output file name"))

		return
	}

	path := filepath.Join(s.deps.Synthesizer.OutputDir(), filename)

	exists, err := fsutil.FileExists(path)
	if err == nil && exists {
		w.Header().Set("Content-Type", contentTypeWAV)
		http.ServeFile(w, r, path)

		return
	}

	if s.deps.Archive == nil {
		s.writeFailure(w, http.StatusNotFound, synthesis.Failure{Error: "output not found", Path: filename})

		return
	}

	data, err := s.deps.Archive.Download(r.Context(), filename)
	if err != nil {
		if errors.Is(err, objectstore.ErrObjectNotFound) {
			s.writeFailure(w, http.StatusNotFound, synthesis.Failure{Error: "output not found", Path: filename})

			return
		}

		s.deps.Log.Error("Failed to fetch %s from archive: %v", filename, err)
		s.writeFailure(w, http.StatusBadGateway, synthesis.Failure{Error: "failed to fetch output from archive"})

		return
	}

	w.Header().Set("Content-Type", contentTypeWAV)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) handleListHistory(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(r.URL.Query().Get(queryUserID), 10, 64)
	if err != nil {
		s.writeFailure(w, http.StatusBadRequest, invalid("user_id must be an integer"))

		return
	}

	limit := 0

	if raw := r.URL.Query().Get(queryLimit); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil {
			s.writeFailure(w, http.StatusBadRequest, invalid("limit must be an integer"))

			return
		}
	}

	records, err := s.deps.History.List(r.Context(), userID, limit)
	if err != nil {
		s.deps.Log.Error("Failed to list history for user %d: %v", userID, err)
		s.writeFailure(w, http.StatusInternalServerError, synthesis.Failure{Error: "failed to load history"})

		return
	}

	s.writeJSON(w, http.StatusOK, historyResponse{Records: records})
}

func (s *Server) handleDeleteHistory(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		s.writeFailure(w, http.StatusBadRequest, invalid("id must be an integer"))

		return
	}

	userID, err := strconv.ParseInt(r.URL.Query().Get(queryUserID), 10, 64)
	if err != nil {
		s.writeFailure(w, http.StatusBadRequest, invalid("user_id must be an integer"))

		return
	}

	err = s.deps.History.Delete(r.Context(), id, userID)
	if err != nil {
		if errors.Is(err, history.ErrNotFound) {
			s.writeFailure(w, http.StatusNotFound, synthesis.Failure{Error: "record not found or not owned by user"})

			return
		}

		s.deps.Log.Error("Failed to delete history record %d: %v", id, err)
		s.writeFailure(w, http.StatusInternalServerError, synthesis.Failure{Error: "failed to delete record"})

		return
	}

	s.writeJSON(w, http.StatusOK, messageResponse{Message: "Record deleted"})
}

func invalid(message string) synthesis.Failure {
	return synthesis.Failure{Error: message, Kind: synthesis.KindInvalidRequest}
}

func (s *Server) writeFailure(w http.ResponseWriter, status int, failure synthesis.Failure) {
	s.writeJSON(w, status, failure)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	err := json.NewEncoder(w).Encode(payload)
	if err != nil {
		s.deps.Log.Warn("Failed to write response: %v", err)
	}
}
