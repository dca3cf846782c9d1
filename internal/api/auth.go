package api

import (
	"mime"
	"net/http"

	"github.com/tronix365/sensegrid/internal/auth"
)

// loginRequest is the JSON body for POST /auth/login. Username is accepted
// as an alias for email to match the form encoding.
type loginRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// registerResponse is the body returned by POST /auth/register.
type registerResponse struct {
	auth.TokenResponse
	User *auth.User `json:"user"`
}

// handleRegister creates an account and signs the caller in.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var in auth.RegisterInput
	if !s.decodeJSON(w, r, &in) {
		return
	}

	user, err := s.auth.Register(r.Context(), in)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	token, err := s.auth.Issue(user)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, registerResponse{TokenResponse: token, User: user})
}

// handleLogin exchanges credentials for a session token. It accepts a JSON
// body or an OAuth2-style form with username and password.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	email, password, ok := s.readCredentials(w, r)
	if !ok {
		return
	}

	user, err := s.auth.Login(r.Context(), email, password)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	token, err := s.auth.Issue(user)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, token)
}

func (s *Server) readCredentials(w http.ResponseWriter, r *http.Request) (email, password string, ok bool) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")) //nolint:errcheck // empty on failure
	switch mediaType {
	case "application/x-www-form-urlencoded", "multipart/form-data":
		parse := r.ParseForm
		if mediaType == "multipart/form-data" {
			parse = func() error { return r.ParseMultipartForm(maxRequestBodySize) }
		}
		if err := parse(); err != nil {
			if isTooLarge(err) {
				s.writeServiceError(w, r, err)
			} else {
				writeBadRequest(w, "invalid form body")
			}
			return "", "", false
		}
		email = r.PostFormValue("username")
		if email == "" {
			email = r.PostFormValue("email")
		}
		return auth.NormaliseEmail(email), r.PostFormValue("password"), true
	default:
		var req loginRequest
		if !s.decodeJSON(w, r, &req) {
			return "", "", false
		}
		email = req.Email
		if email == "" {
			email = req.Username
		}
		return auth.NormaliseEmail(email), req.Password, true
	}
}
