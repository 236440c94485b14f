package main

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/altukhov/dialog/pkg/auth"
	"github.com/altukhov/dialog/pkg/mailer"
	"github.com/altukhov/dialog/pkg/model"
	"github.com/altukhov/dialog/pkg/store"
)

type RegisterRequest struct {
	Email    string       `json:"email"`
	Password string       `json:"password"`
	Name     string       `json:"name"`
	Surname  string       `json:"surname"`
	Birthday time.Time    `json:"birthday"`
	Gender   model.Gender `json:"gender"`
}

func (s *server) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Email == "" || req.Name == "" || req.Surname == "" {
		http.Error(w, "email, name and surname are required", http.StatusBadRequest)
		return
	}
	if err := auth.ValidatePasswordStrength(req.Password); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		http.Error(w, "Registration failed", http.StatusInternalServerError)
		return
	}

	user := &model.User{
		Email:    req.Email,
		Password: hash,
		Name:     req.Name,
		Surname:  req.Surname,
		Birthday: req.Birthday,
		Gender:   req.Gender,
	}
	if err := s.store.CreateUser(r.Context(), user); err != nil {
		if err == store.ErrEmailTaken {
			http.Error(w, "Email already registered", http.StatusBadRequest)
			return
		}
		http.Error(w, "Registration failed", http.StatusInternalServerError)
		return
	}

	confirmToken, err := s.tokens.Generate(user.ID, auth.PurposeConfirmEmail, auth.MailTokenTTL)
	if err == nil {
		err = s.mail.Enqueue(r.Context(), mailer.Task{
			Kind:  mailer.TaskConfirmEmail,
			To:    user.Email,
			Name:  user.Name,
			Token: confirmToken,
		})
	}
	if err != nil {
		// The account exists either way; confirmation can be re-sent.
		log.Printf("Failed to enqueue confirmation email for %s: %v", user.Email, err)
	}

	writeJSON(w, http.StatusCreated, map[string]string{
		"message": "Registration successful. Please confirm your email.",
	})
}

func (s *server) ConfirmEmailHandler(w http.ResponseWriter, r *http.Request) {
	claims, err := s.tokens.Validate(r.URL.Query().Get("token"), auth.PurposeConfirmEmail)
	if err != nil {
		http.Error(w, "Invalid or expired token", http.StatusBadRequest)
		return
	}

	user, err := s.store.GetUser(r.Context(), claims.UserID)
	if err != nil {
		http.Error(w, "User not found", http.StatusBadRequest)
		return
	}
	if user.EmailConfirmed {
		writeJSON(w, http.StatusOK, map[string]string{"message": "Email already confirmed"})
		return
	}

	if err := s.store.ConfirmEmail(r.Context(), user.ID); err != nil {
		http.Error(w, "Confirmation failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Email successfully confirmed"})
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
}

func (s *server) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	user, err := s.store.GetUserByEmail(r.Context(), req.Email)
	if err != nil || !auth.CheckPassword(user.Password, req.Password) {
		// Same answer for unknown email and wrong password.
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	access, err := s.tokens.Generate(user.ID, auth.PurposeAccess, auth.AccessTokenTTL)
	if err != nil {
		http.Error(w, "Login failed", http.StatusInternalServerError)
		return
	}
	refresh, err := s.tokens.Generate(user.ID, auth.PurposeRefresh, auth.RefreshTokenTTL)
	if err != nil {
		http.Error(w, "Login failed", http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     "refresh_token",
		Value:    refresh,
		Path:     "/",
		MaxAge:   int(auth.RefreshTokenTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, LoginResponse{AccessToken: access})
}

type PasswordResetRequest struct {
	Email string `json:"email"`
}

func (s *server) PasswordResetRequestHandler(w http.ResponseWriter, r *http.Request) {
	var req PasswordResetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	// Whether the account exists is not disclosed; the answer is the same.
	user, err := s.store.GetUserByEmail(r.Context(), req.Email)
	if err == nil {
		resetToken, err := s.tokens.Generate(user.ID, auth.PurposeResetPass, auth.MailTokenTTL)
		if err == nil {
			err = s.mail.Enqueue(r.Context(), mailer.Task{
				Kind:  mailer.TaskPasswordReset,
				To:    user.Email,
				Name:  user.Name,
				Token: resetToken,
			})
		}
		if err != nil {
			log.Printf("Failed to enqueue password reset for %s: %v", user.Email, err)
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "If the account exists, a reset email has been sent.",
	})
}

type PasswordResetConfirm struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

func (s *server) PasswordResetConfirmHandler(w http.ResponseWriter, r *http.Request) {
	var req PasswordResetConfirm
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	claims, err := s.tokens.Validate(req.Token, auth.PurposeResetPass)
	if err != nil {
		http.Error(w, "Invalid or expired token", http.StatusBadRequest)
		return
	}
	if err := auth.ValidatePasswordStrength(req.Password); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		http.Error(w, "Reset failed", http.StatusInternalServerError)
		return
	}
	if err := s.store.UpdatePassword(r.Context(), claims.UserID, hash); err != nil {
		http.Error(w, "Reset failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Password updated"})
}

func (s *server) MeHandler(w http.ResponseWriter, r *http.Request) {
	claims, ok := currentClaims(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	user, err := s.store.GetUser(r.Context(), claims.UserID)
	if err != nil {
		http.Error(w, "User not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, user)
}
