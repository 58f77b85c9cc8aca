// Package pinningtest provides an in-memory Pinata API and IPFS gateway for
// tests.
package pinningtest

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

// Pin is one uploaded file.
type Pin struct {
	CID         string
	FileName    string
	ContentType string
	Data        []byte
}

// Server stores uploads keyed by a content-derived CID and serves them back
// under /ipfs/<cid>.
type Server struct {
	// JWT, when set, is required as a bearer token on uploads.
	JWT string

	server *httptest.Server

	mu   sync.Mutex
	pins []Pin
	byID map[string]Pin
}

// NewServer starts a server that is closed when the test ends.
func NewServer(t testing.TB) *Server {
	t.Helper()
	s := &Server{byID: make(map[string]Pin)}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /pinning/pinFileToIPFS", s.handlePin)
	mux.HandleFunc("GET /ipfs/{cid}", s.handleGet)
	s.server = httptest.NewServer(mux)
	t.Cleanup(s.server.Close)
	return s
}

// APIURL is the base URL of the pinning API.
func (s *Server) APIURL() string {
	return s.server.URL
}

// GatewayURL is the base URL of the IPFS gateway.
func (s *Server) GatewayURL() string {
	return s.server.URL + "/ipfs"
}

// Pins returns the uploads in order.
func (s *Server) Pins() []Pin {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Pin(nil), s.pins...)
}

// Replace swaps the content served for cid, simulating a tampered gateway.
func (s *Server) Replace(cid string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.byID[cid]
	p.Data = data
	s.byID[cid] = p
}

// CID derives the fake content id for data.
func CID(data []byte) string {
	sum := sha256.Sum256(data)
	return "Qm" + hex.EncodeToString(sum[:])[:44]
}

func (s *Server) handlePin(w http.ResponseWriter, r *http.Request) {
	if s.JWT != "" && r.Header.Get("Authorization") != "Bearer "+s.JWT {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	f, hdr, err := r.FormFile("file")
	if err != nil {
		http.Error(w, `{"error":"missing file"}`, http.StatusBadRequest)
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		http.Error(w, `{"error":"read failed"}`, http.StatusBadRequest)
		return
	}

	p := Pin{
		CID:         CID(data),
		FileName:    hdr.Filename,
		ContentType: hdr.Header.Get("Content-Type"),
		Data:        data,
	}
	s.mu.Lock()
	s.pins = append(s.pins, p)
	s.byID[p.CID] = p
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"IpfsHash":  p.CID,
		"PinSize":   len(data),
		"Timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	cid := strings.TrimSpace(r.PathValue("cid"))
	s.mu.Lock()
	p, ok := s.byID[cid]
	s.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	if p.ContentType != "" {
		w.Header().Set("Content-Type", p.ContentType)
	}
	w.Write(p.Data)
}
