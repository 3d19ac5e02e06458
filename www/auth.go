package www

import (
	"context"
	"encoding/json"
	"log"
	"mime"
	"net/http"

	"github.com/gorilla/sessions"
	"golang.org/x/crypto/bcrypt"
)

const sessionName = "fleetcore-session"

func newSessionStore(secret string) *sessions.CookieStore {
	if secret == "" {
		secret = "fleetcore-default-secret-change-me"
	}
	s := sessions.NewCookieStore([]byte(secret))
	s.Options.HttpOnly = true
	s.Options.Secure = false // served on plain HTTP inside the plant network
	s.Options.SameSite = http.SameSiteLaxMode
	return s
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(hash), err
}

func checkPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

type ctxKey int

const userKey ctxKey = 0

// sessionUser returns the logged-in username, if any.
func (h *Handlers) sessionUser(r *http.Request) (string, bool) {
	session, err := h.sessions.Get(r, sessionName)
	if err != nil {
		return "", false
	}
	if auth, _ := session.Values["authenticated"].(bool); !auth {
		return "", false
	}
	username, _ := session.Values["username"].(string)
	return username, true
}

// requireAuth rejects unauthenticated requests with a JSON 401 and puts the
// username on the request context for the handlers behind it.
func (h *Handlers) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		username, ok := h.sessionUser(r)
		if !ok {
			h.jsonError(w, "authentication required", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey, username)))
	})
}

func getUsername(r *http.Request) string {
	username, _ := r.Context().Value(userKey).(string)
	return username
}

// ensureDefaultAdmin creates admin/admin on an empty user table.
func (h *Handlers) ensureDefaultAdmin() {
	db := h.engine.DB()
	if db == nil {
		return
	}
	exists, err := db.AdminUserExists()
	if err != nil || exists {
		return
	}
	hash, err := hashPassword("admin")
	if err != nil {
		return
	}
	if _, err := db.CreateAdminUser("admin", hash); err != nil {
		log.Printf("auth: create default admin: %v", err)
		return
	}
	log.Printf("auth: created default admin user")
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// readCredentials accepts a JSON body or a classic form post.
func readCredentials(r *http.Request) (credentials, error) {
	var c credentials
	if mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")); mt == "application/json" {
		err := json.NewDecoder(r.Body).Decode(&c)
		return c, err
	}
	if err := r.ParseForm(); err != nil {
		return c, err
	}
	c.Username, c.Password = r.FormValue("username"), r.FormValue("password")
	return c, nil
}

func (h *Handlers) handleLogin(w http.ResponseWriter, r *http.Request) {
	creds, err := readCredentials(r)
	if err != nil {
		h.jsonError(w, "invalid request", http.StatusBadRequest)
		return
	}
	db, ok := h.journal(w)
	if !ok {
		return
	}
	user, err := db.GetAdminUser(creds.Username)
	if err != nil || !checkPassword(user.PasswordHash, creds.Password) {
		log.Printf("auth: failed login for %q from %s", creds.Username, r.RemoteAddr)
		h.jsonError(w, "invalid username or password", http.StatusUnauthorized)
		return
	}

	session, _ := h.sessions.Get(r, sessionName)
	session.Values["authenticated"] = true
	session.Values["username"] = user.Username
	if err := session.Save(r, w); err != nil {
		h.jsonError(w, "session: "+err.Error(), http.StatusInternalServerError)
		return
	}
	h.jsonOK(w, map[string]string{"status": "ok", "username": user.Username})
}

func (h *Handlers) handleLogout(w http.ResponseWriter, r *http.Request) {
	session, _ := h.sessions.Get(r, sessionName)
	session.Options.MaxAge = -1
	if err := session.Save(r, w); err != nil {
		log.Printf("auth: logout: %v", err)
	}
	h.jsonOK(w, map[string]string{"status": "ok"})
}
