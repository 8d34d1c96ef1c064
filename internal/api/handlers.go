package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/npezzotti/go-social/internal/database"
	"github.com/npezzotti/go-social/internal/relay"
	"github.com/npezzotti/go-social/internal/types"
)

type messageResponse struct {
	Message string `json:"message"`
}

func (s *SocialApp) writeJson(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if v == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Printf("json encode: %v", err)
	}
}

// requireUserId returns the authenticated user id, writing a 401 when the
// request carries none.
func (s *SocialApp) requireUserId(w http.ResponseWriter, r *http.Request) (int, bool) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
	}
	return userId, ok
}

func pathId(r *http.Request, name string) (int, error) {
	id, err := strconv.Atoi(r.PathValue(name))
	if err != nil || id <= 0 {
		return 0, errors.New("invalid " + name)
	}
	return id, nil
}

func (s *SocialApp) healthCheck(w http.ResponseWriter, r *http.Request) {
	if err := s.db.Ping(); err != nil {
		s.log.Printf("health check: %v", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (s *SocialApp) issueSession(w http.ResponseWriter, statusCode int, user database.User) {
	u := toUser(user)
	token, err := s.createJwtForSession(u, defaultJwtExpiration)
	if err != nil {
		s.writeError(w, NewInternalServerError(err))
		return
	}

	http.SetCookie(w, createJwtCookie(token, defaultJwtExpiration))
	s.writeJson(w, statusCode, types.AuthResponse{User: u, Token: token})
}

func (s *SocialApp) signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if errResp := s.decodeAndValidate(r, &req); errResp != nil {
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	pwdHash, err := hashPassword(req.Password)
	if err != nil {
		s.writeError(w, NewInternalServerError(err))
		return
	}

	params := database.CreateAccountParams{
		Username:     strings.TrimSpace(req.Username),
		EmailAddress: strings.ToLower(strings.TrimSpace(req.Email)),
		PasswordHash: pwdHash,
	}

	newUser, err := s.db.CreateAccount(params)
	if err != nil {
		if isDuplicate(err) {
			errResp := NewConflictError("user already exists")
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}
		s.writeError(w, NewInternalServerError(err))
		return
	}

	s.issueSession(w, http.StatusCreated, newUser)
}

func (s *SocialApp) login(w http.ResponseWriter, r *http.Request) {
	var lr LoginRequest
	if errResp := s.decodeAndValidate(r, &lr); errResp != nil {
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	dbUser, err := s.db.GetAccountByEmail(strings.ToLower(strings.TrimSpace(lr.Email)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			errResp := NewUnauthorizedErrorMessage("invalid email or password")
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}
		s.writeError(w, NewInternalServerError(err))
		return
	}

	if !verifyPassword(dbUser.PasswordHash, lr.Password) {
		errResp := NewUnauthorizedErrorMessage("invalid email or password")
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if dbUser.TwoFactorEnabled {
		if lr.Token == "" {
			errResp := NewUnauthorizedErrorMessage("two-factor token required")
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}
		if !validateTwoFactorCode(lr.Token, dbUser.TwoFactorSecret) {
			errResp := NewUnauthorizedErrorMessage("invalid two-factor token")
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}
	}

	s.issueSession(w, http.StatusOK, dbUser)
}

func (s *SocialApp) logout(w http.ResponseWriter, _ *http.Request) {
	// instruct browser to delete cookie by overwriting it with an expired token
	c := createJwtCookie("", 0)
	c.MaxAge = -1
	http.SetCookie(w, c)
	w.WriteHeader(http.StatusNoContent)
}

func (s *SocialApp) session(w http.ResponseWriter, r *http.Request) {
	userId, ok := s.requireUserId(w, r)
	if !ok {
		return
	}

	user, err := s.db.GetAccountById(userId)
	if err != nil {
		s.writeError(w, dbError(err))
		return
	}

	s.writeJson(w, http.StatusOK, toUser(user))
}

func (s *SocialApp) enableTwoFactor(w http.ResponseWriter, r *http.Request) {
	userId, ok := s.requireUserId(w, r)
	if !ok {
		return
	}

	user, err := s.db.GetAccountById(userId)
	if err != nil {
		s.writeError(w, dbError(err))
		return
	}

	key, err := generateTwoFactorKey(user.EmailAddress)
	if err != nil {
		s.writeError(w, NewInternalServerError(err))
		return
	}

	if err := s.db.SetTwoFactor(user.Id, true, key.secret); err != nil {
		s.writeError(w, dbError(err))
		return
	}

	s.writeJson(w, http.StatusOK, types.TwoFactorSetup{
		Secret:     key.secret,
		OtpauthUrl: key.url,
		QrCode:     key.qrCode,
	})
}

func (s *SocialApp) disableTwoFactor(w http.ResponseWriter, r *http.Request) {
	userId, ok := s.requireUserId(w, r)
	if !ok {
		return
	}

	if err := s.db.SetTwoFactor(userId, false, ""); err != nil {
		s.writeError(w, dbError(err))
		return
	}

	s.writeJson(w, http.StatusOK, messageResponse{Message: "two-factor authentication disabled"})
}

func (s *SocialApp) serveWs(w http.ResponseWriter, r *http.Request) {
	userId, ok := s.requireUserId(w, r)
	if !ok {
		return
	}

	user, err := s.db.GetAccountById(userId)
	if err != nil {
		s.writeError(w, dbError(err))
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			// only allow connections from allowed origins
			origin := r.Header.Get("Origin")
			if origin == "" {
				// if no origin header, allow the request
				return true
			}

			return slices.Contains(s.allowedOrigins, origin)
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Println("error upgrading connection:", err)
		return
	}

	client := relay.NewClient(strconv.Itoa(user.Id), conn, s.relay, s.log)

	s.relay.Register(client)
	go client.Write()
	go client.Read()
}
