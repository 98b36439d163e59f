// Copyright 2026 The Deskbridge Authors
// SPDX-License-Identifier: Apache-2.0

package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/deskbridge/deskbridge/directory"
)

// roomJSON is the wire representation of a room record.
type roomJSON struct {
	RoomID     string    `json:"room_id"`
	CreatorID  string    `json:"creator_id"`
	ReceiverID string    `json:"receiver_id"`
	CreatedAt  time.Time `json:"created_at"`
	Active     bool      `json:"active"`
	Accepted   bool      `json:"accepted"`
}

func roomToJSON(room directory.Room) roomJSON {
	return roomJSON{
		RoomID:     room.RoomID,
		CreatorID:  room.CreatorID,
		ReceiverID: room.ReceiverID,
		CreatedAt:  room.CreatedAt,
		Active:     room.Active,
		Accepted:   room.Accepted,
	}
}

// createRoomRequest is the body of POST /rooms. The creator is the
// authenticated caller; only the counterparty is named.
type createRoomRequest struct {
	ReceiverID string `json:"receiver_id"`
}

func (s *Server) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	identity, ok := s.authenticator.Authenticate(requestToken(r))
	if !ok {
		http.Error(w, "invalid or missing token", http.StatusUnauthorized)
		return
	}

	var request createRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if request.ReceiverID == "" {
		writeError(w, http.StatusBadRequest, "receiver_id is required")
		return
	}
	if request.ReceiverID == identity {
		writeError(w, http.StatusBadRequest, "cannot open a session with yourself")
		return
	}

	room, err := s.directory.Create(r.Context(), identity, request.ReceiverID)
	if err != nil {
		writeDirectoryError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, roomToJSON(room))
}

func (s *Server) handleAcceptRoom(w http.ResponseWriter, r *http.Request) {
	identity, ok := s.authenticator.Authenticate(requestToken(r))
	if !ok {
		http.Error(w, "invalid or missing token", http.StatusUnauthorized)
		return
	}

	room, err := s.directory.Accept(r.Context(), r.PathValue("room"), identity)
	if err != nil {
		writeDirectoryError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, roomToJSON(room))
}

func (s *Server) handleRejectRoom(w http.ResponseWriter, r *http.Request) {
	identity, ok := s.authenticator.Authenticate(requestToken(r))
	if !ok {
		http.Error(w, "invalid or missing token", http.StatusUnauthorized)
		return
	}

	if err := s.directory.Reject(r.Context(), r.PathValue("room"), identity); err != nil {
		writeDirectoryError(w, s.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleEndRoom(w http.ResponseWriter, r *http.Request) {
	identity, ok := s.authenticator.Authenticate(requestToken(r))
	if !ok {
		http.Error(w, "invalid or missing token", http.StatusUnauthorized)
		return
	}

	if err := s.directory.End(r.Context(), r.PathValue("room"), identity); err != nil {
		writeDirectoryError(w, s.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleActiveRoom(w http.ResponseWriter, r *http.Request) {
	identity, ok := s.authenticator.Authenticate(requestToken(r))
	if !ok {
		http.Error(w, "invalid or missing token", http.StatusUnauthorized)
		return
	}

	room, found, err := s.directory.ActiveRoomForCreator(r.Context(), identity)
	if err != nil {
		writeDirectoryError(w, s.logger, err)
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "no active room")
		return
	}
	writeJSON(w, http.StatusOK, roomToJSON(room))
}

// writeDirectoryError maps directory lifecycle errors onto HTTP status
// codes. Unrecognized errors are storage failures: logged with detail,
// reported without it.
func writeDirectoryError(w http.ResponseWriter, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, directory.ErrNotFound):
		writeError(w, http.StatusNotFound, "room not found")
	case errors.Is(err, directory.ErrNotParticipant),
		errors.Is(err, directory.ErrNotReceiver):
		writeError(w, http.StatusForbidden, "not permitted for this identity")
	case errors.Is(err, directory.ErrEnded):
		writeError(w, http.StatusConflict, "room has ended")
	case errors.Is(err, directory.ErrActiveRoomExists):
		writeError(w, http.StatusConflict, "active room already exists for this pair")
	default:
		logger.Error("directory operation failed", "error", err)
		writeError(w, http.StatusInternalServerError, "directory failure")
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
