package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/lecture-chat/cli/internal/model"
)

type chatRequest struct {
	Question            string                   `json:"question"`
	ConversationHistory []model.ConversationTurn `json:"conversation_history"`
}

type searchResponse struct {
	VideoID string         `json:"video_id"`
	Query   string         `json:"query"`
	Results []model.Source `json:"results"`
	Total   int            `json:"total"`
}

type suggestionsResponse struct {
	VideoID     string   `json:"video_id"`
	Suggestions []string `json:"suggestions"`
}

func (s *Server) chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	res, err := s.Answerer.Ask(r.Context(), mux.Vars(r)["id"], req.Question, req.ConversationHistory)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) search(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	query := r.URL.Query().Get("query")
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	results, err := s.Answerer.Search(r.Context(), id, query, limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, searchResponse{VideoID: id, Query: query, Results: results, Total: len(results)})
}

func (s *Server) suggestions(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	out, err := s.Answerer.Suggestions(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, suggestionsResponse{VideoID: id, Suggestions: out})
}
