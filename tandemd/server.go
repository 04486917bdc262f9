package main

import (
	"encoding/json"
	"net/http"

	"github.com/golang/glog"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"golang.org/x/exp/slices"

	"github.com/tandemdocs/tandem/session"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type server struct {
	config      *Config
	documents   *session.DocumentStore
	coordinator *session.ChannelCoordinator
}

func newServer(config *Config, documents *session.DocumentStore, coordinator *session.ChannelCoordinator) *server {
	return &server{
		config:      config,
		documents:   documents,
		coordinator: coordinator,
	}
}

func (self *server) routes() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/", self.status).Methods("GET")
	r.HandleFunc("/api/documents", self.createDocument).Methods("POST")
	r.HandleFunc("/api/documents", self.listDocuments).Methods("GET")
	r.HandleFunc("/api/documents/{docId}", self.getDocument).Methods("GET")
	r.HandleFunc("/api/documents/{docId}", self.updateDocument).Methods("PUT")
	r.HandleFunc("/ws/{docId}", self.attach)
	return self.cors(r)
}

func (self *server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && slices.Contains(self.config.AllowedOrigins, origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Methods", "*")
			w.Header().Set("Access-Control-Allow-Headers", "*")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJson(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}

func (self *server) status(w http.ResponseWriter, r *http.Request) {
	writeJson(w, http.StatusOK, map[string]string{
		"message": "Collaborative Document Editor API",
		"status":  "running",
	})
}

func (self *server) createDocument(w http.ResponseWriter, r *http.Request) {
	document := self.documents.CreateDocument()
	self.persist()
	writeJson(w, http.StatusOK, document)
}

func (self *server) listDocuments(w http.ResponseWriter, r *http.Request) {
	writeJson(w, http.StatusOK, self.documents.ListDocuments())
}

func (self *server) getDocument(w http.ResponseWriter, r *http.Request) {
	document, err := self.documents.GetDocument(mux.Vars(r)["docId"])
	if err != nil {
		writeJson(w, http.StatusNotFound, map[string]string{"error": "Document not found"})
		return
	}
	writeJson(w, http.StatusOK, document)
}

// partial update on the out-of-channel edit path. This mutates the same
// record the websocket content_update path does, with the same last-write
// wins semantics.
func (self *server) updateDocument(w http.ResponseWriter, r *http.Request) {
	var update session.DocumentUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		writeJson(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}
	document, err := self.documents.UpdateDocumentMetadata(mux.Vars(r)["docId"], &update)
	if err != nil {
		writeJson(w, http.StatusNotFound, map[string]string{"error": "Document not found"})
		return
	}
	self.persist()
	writeJson(w, http.StatusOK, document)
}

func (self *server) persist() {
	if err := self.documents.Persist(); err != nil {
		glog.Infof("[api]persist error = %s\n", err)
	}
}

func (self *server) attach(w http.ResponseWriter, r *http.Request) {
	docId := mux.Vars(r)["docId"]
	participant := admitParticipant(r)

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		glog.Infof("[ws]upgrade error = %s\n", err)
		return
	}
	defer ws.Close()

	glog.V(2).Infof("[ws]%s attach %s\n", participant.UserId, docId)
	self.coordinator.HandleConnection(docId, participant, session.NewWsTransportWithDefaults(ws))
	glog.V(2).Infof("[ws]%s detach %s\n", participant.UserId, docId)
}

// admission parameters arrive as query parameters. The participant
// identifier and color are generated server side when absent. An optional
// auth token can carry the identity claims instead.
func admitParticipant(r *http.Request) session.Participant {
	query := r.URL.Query()
	userId := query.Get("user_id")
	userName := query.Get("user_name")
	color := query.Get("color")

	if jwt := query.Get("auth"); jwt != "" {
		if claims, err := session.ParseParticipantJwtUnverified(jwt); err == nil {
			if userId == "" {
				userId = claims.UserId
			}
			if userName == "" {
				userName = claims.UserName
			}
		} else {
			glog.Infof("[ws]auth parse error = %s\n", err)
		}
	}
	if userId == "" {
		userId = session.NewId().String()
	}
	if userName == "" {
		userName = "Anonymous"
	}
	if color == "" {
		color = session.NewColor()
	}

	return session.Participant{
		UserId:   userId,
		UserName: userName,
		Color:    color,
		Status:   session.StatusViewing,
	}
}
