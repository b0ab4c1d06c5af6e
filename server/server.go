package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"hompy/backend"
	"hompy/chat"
	"hompy/feed"
	"hompy/monitoring"
	"hompy/storage"
	"hompy/utils"
	"net/http"
	"os"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

// Server exposes the controllers to the static homepage frontend.
type Server struct {
	feed  *feed.Controller
	chat  *chat.Controller
	store storage.Gateway
	hub   *Hub
}

func NewServer(
	feedController *feed.Controller,
	chatController *chat.Controller,
	store storage.Gateway,
) *Server {
	s := &Server{
		feed:  feedController,
		chat:  chatController,
		store: store,
		hub:   NewHub(),
	}
	// Newly merged chat entries are pushed to connected frontends
	chatController.SetNotify(func(entries []chat.Entry) {
		s.hub.Broadcast(entries)
	})
	return s
}

func (s *Server) Router() *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/api/posts", s.getPosts).Methods(http.MethodGet)
	router.HandleFunc("/api/posts/{rowIndex:[0-9]+}", s.getPost).Methods(http.MethodGet)
	router.HandleFunc("/api/posts/{rowIndex:[0-9]+}/like", s.postLike).Methods(http.MethodPost)
	router.HandleFunc("/api/posts/{rowIndex:[0-9]+}/share", s.postShare).Methods(http.MethodPost)
	router.HandleFunc("/api/tags", s.getTags).Methods(http.MethodGet)
	router.HandleFunc("/api/chat", s.getChat).Methods(http.MethodGet)
	router.HandleFunc("/api/chat", s.postChat).Methods(http.MethodPost)
	router.HandleFunc("/api/profile", s.getProfile).Methods(http.MethodGet)
	router.HandleFunc("/api/profile", s.putProfile).Methods(http.MethodPut)
	router.HandleFunc("/api/embed", s.getEmbed).Methods(http.MethodGet)
	router.HandleFunc("/ws", s.hub.Handle)
	router.Handle("/metrics", promhttp.Handler())

	return router
}

func (s *Server) Run() {
	port := utils.IntFromString(os.Getenv("HOMPY_PORT"), 3333)

	handler := monitoring.NewPrometheusMiddleware(s.Router())
	err := http.ListenAndServe(fmt.Sprintf(":%d", port), handler)
	if errors.Is(err, http.ErrServerClosed) {
		fmt.Printf("server closed\n")
	} else if err != nil {
		fmt.Printf("error starting server: %s\n", err)
		os.Exit(1)
	}
}

type postView struct {
	backend.Post
	EmbedURL string `json:"embedURL"`
	Liked    bool   `json:"liked"`
}

func (s *Server) toView(post backend.Post) postView {
	return postView{
		Post:     post,
		EmbedURL: utils.EmbedURL(post.Type, post.Id),
		Liked:    s.feed.Liked(post.RowIndex),
	}
}

func (s *Server) getPosts(w http.ResponseWriter, r *http.Request) {
	queryParams := r.URL.Query()
	tag := getQueryItem(queryParams, "tag")
	search := getQueryItem(queryParams, "q")
	page := utils.IntFromString(getQueryItem(queryParams, "page"), 0)

	s.feed.SetFilter(tag, search)
	posts, err := s.feed.Page(r.Context(), page)
	if err != nil {
		sendError(w, http.StatusBadGateway, "error loading posts")
		return
	}

	views := make([]postView, len(posts))
	for i, post := range posts {
		views[i] = s.toView(post)
	}
	sendJson(w, map[string]any{
		"posts":     views,
		"page":      page,
		"endOfFeed": s.feed.EndOfFeed(),
	})
}

func (s *Server) getPost(w http.ResponseWriter, r *http.Request) {
	rowIndex, _ := strconv.Atoi(mux.Vars(r)["rowIndex"])

	post, ok := s.feed.Get(r.Context(), rowIndex)
	if !ok {
		sendError(w, http.StatusNotFound, "post not found")
		return
	}
	sendJson(w, s.toView(post))
}

func (s *Server) postLike(w http.ResponseWriter, r *http.Request) {
	rowIndex, _ := strconv.Atoi(mux.Vars(r)["rowIndex"])

	result, err := s.feed.ToggleLike(r.Context(), rowIndex)
	if err != nil {
		// Toggle already rolled back; report the reverted state
		sendJson(w, map[string]any{
			"liked": result.Liked,
			"count": result.Count,
			"error": "could not update like",
		})
		return
	}
	sendJson(w, result)
}

func (s *Server) postShare(w http.ResponseWriter, r *http.Request) {
	rowIndex, _ := strconv.Atoi(mux.Vars(r)["rowIndex"])

	result, err := s.feed.Share(r.Context(), rowIndex)
	if err != nil {
		sendError(w, http.StatusBadGateway, "could not update share count")
		return
	}
	sendJson(w, result)
}

func (s *Server) getTags(w http.ResponseWriter, r *http.Request) {
	tags, err := s.feed.Tags(r.Context())
	if err != nil {
		sendError(w, http.StatusBadGateway, "error loading posts")
		return
	}
	sendJson(w, tags)
}

func (s *Server) getChat(w http.ResponseWriter, r *http.Request) {
	full := getQueryItem(r.URL.Query(), "full") == "true"
	if full || len(s.chat.Entries()) == 0 {
		if _, err := s.chat.Refresh(r.Context(), true); err != nil {
			sendError(w, http.StatusBadGateway, "could not load guestbook")
			return
		}
	}
	sendJson(w, s.chat.Entries())
}

func (s *Server) postChat(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Message  string `json:"message"`
		Honeypot string `json:"hp_email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		sendError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err := s.chat.Send(r.Context(), payload.Message, payload.Honeypot)
	var validationErr *chat.ValidationError
	switch {
	case errors.As(err, &validationErr):
		sendError(w, http.StatusBadRequest, validationErr.Reason)
	case err != nil:
		sendError(w, http.StatusBadGateway, "could not send message")
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) getProfile(w http.ResponseWriter, r *http.Request) {
	profile, ok := s.store.Profile()
	if !ok {
		sendError(w, http.StatusNotFound, "no profile stored")
		return
	}
	sendJson(w, profile)
}

func (s *Server) putProfile(w http.ResponseWriter, r *http.Request) {
	var profile storage.UserProfile
	if err := json.NewDecoder(r.Body).Decode(&profile); err != nil {
		sendError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	stored := s.chat.SetProfile(profile)
	if !stored.Complete() {
		log.Info("Incomplete profile; stored profile cleared")
	}
	sendJson(w, stored)
}

func (s *Server) getEmbed(w http.ResponseWriter, r *http.Request) {
	queryParams := r.URL.Query()
	embedURL := utils.EmbedURL(
		getQueryItem(queryParams, "type"),
		getQueryItem(queryParams, "id"),
	)
	sendJson(w, map[string]string{"url": embedURL})
}
