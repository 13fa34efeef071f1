// mockapi es un stub de desarrollo del API de sunschool: implementa los
// cinco endpoints que consume el cliente (user, login, register, logout,
// learners) con estado en memoria. Fixture para probar la CLI sin backend.
package main

import (
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/sunschool/sunschool-go/internal/rate"
)

type user struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Role     string `json:"role"`
	Username string `json:"-"`
	Password string `json:"-"`
	ParentID int64  `json:"-"`
}

type state struct {
	mu     sync.Mutex
	nextID int64
	users  map[string]*user // by username
	tokens map[string]int64 // token -> user id
}

func newState() *state {
	return &state{nextID: 1, users: map[string]*user{}, tokens: map[string]int64{}}
}

func (s *state) byID(id int64) *user {
	for _, u := range s.users {
		if u.ID == id {
			return u
		}
	}
	return nil
}

func (s *state) authed(r *http.Request) *user {
	h := r.Header.Get("Authorization")
	if !strings.HasPrefix(h, "Bearer ") {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.tokens[strings.TrimPrefix(h, "Bearer ")]
	if !ok {
		return nil
	}
	return s.byID(id)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func main() {
	addr := flag.String("addr", ":8080", "listen address")
	seed := flag.Bool("seed", false, "seed a parent (pat/secret123) with two learners")
	flag.Parse()

	st := newState()
	if *seed {
		st.users["pat"] = &user{ID: 1, Name: "Pat", Role: "PARENT", Username: "pat", Password: "secret123"}
		st.users["sam"] = &user{ID: 2, Name: "Sam", Role: "LEARNER", Username: "sam", Password: "secret123", ParentID: 1}
		st.users["lee"] = &user{ID: 3, Name: "Lee", Role: "LEARNER", Username: "lee", Password: "secret123", ParentID: 1}
		st.nextID = 4
	}

	// Fixed window por username: corta fuerza bruta contra el stub.
	loginLimiter := rate.NewMemoryLimiter(10, time.Minute)

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Post("/api/register", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			Username string `json:"username"`
			Name     string `json:"name"`
			Password string `json:"password"`
			Role     string `json:"role"`
			ParentID int64  `json:"parentId"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil || body.Username == "" {
			writeError(w, http.StatusBadRequest, "invalid payload")
			return
		}
		st.mu.Lock()
		defer st.mu.Unlock()
		if _, exists := st.users[body.Username]; exists {
			writeError(w, http.StatusConflict, "username taken")
			return
		}
		promoted := len(st.users) == 0
		role := body.Role
		if promoted {
			role = "ADMIN"
		}
		u := &user{
			ID: st.nextID, Name: body.Name, Role: role,
			Username: body.Username, Password: body.Password, ParentID: body.ParentID,
		}
		st.nextID++
		st.users[body.Username] = u
		tok := uuid.NewString()
		st.tokens[tok] = u.ID
		writeJSON(w, http.StatusCreated, map[string]any{
			"token": tok, "user": u, "wasPromotedToAdmin": promoted,
		})
	})

	r.Post("/api/login", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			Username string `json:"username"`
			Password string `json:"password"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid payload")
			return
		}
		if res, _ := loginLimiter.Allow(req.Context(), body.Username); !res.Allowed {
			w.Header().Set("Retry-After", strconv.Itoa(int(res.RetryAfter.Seconds())+1))
			writeError(w, http.StatusTooManyRequests, "too many login attempts")
			return
		}
		st.mu.Lock()
		defer st.mu.Unlock()
		u, ok := st.users[body.Username]
		if !ok || u.Password != body.Password {
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		tok := uuid.NewString()
		st.tokens[tok] = u.ID
		writeJSON(w, http.StatusOK, map[string]any{"token": tok, "user": u})
	})

	r.Get("/api/user", func(w http.ResponseWriter, req *http.Request) {
		u := st.authed(req)
		if u == nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		writeJSON(w, http.StatusOK, u)
	})

	r.Post("/api/logout", func(w http.ResponseWriter, req *http.Request) {
		h := req.Header.Get("Authorization")
		if strings.HasPrefix(h, "Bearer ") {
			st.mu.Lock()
			delete(st.tokens, strings.TrimPrefix(h, "Bearer "))
			st.mu.Unlock()
		}
		w.WriteHeader(http.StatusOK)
	})

	r.Get("/api/learners", func(w http.ResponseWriter, req *http.Request) {
		u := st.authed(req)
		if u == nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		parentID := u.ID
		if q := req.URL.Query().Get("parentId"); q != "" {
			if id, err := strconv.ParseInt(q, 10, 64); err == nil {
				parentID = id
			}
		}
		st.mu.Lock()
		defer st.mu.Unlock()
		out := []*user{}
		for _, cand := range st.users {
			if cand.Role == "LEARNER" && cand.ParentID == parentID {
				out = append(out, cand)
			}
		}
		writeJSON(w, http.StatusOK, out)
	})

	log.Printf("mockapi listening on %s (seed=%v)", *addr, *seed)
	log.Fatal(http.ListenAndServe(*addr, r))
}
