// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package server

import (
	"encoding/json"
	"net/http"
)

// Response is the envelope every endpoint answers with.
type Response struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data any    `json:"data,omitempty"`
}

func writeOK(w http.ResponseWriter, data any) {
	writeResponse(w, http.StatusOK, Response{Code: http.StatusOK, Msg: "success", Data: data})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeResponse(w, status, Response{Code: status, Msg: msg})
}

func writeResponse(w http.ResponseWriter, status int, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}
