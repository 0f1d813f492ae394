package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/olatech/account-service/internal/service"
)

var validate = validator.New()

type Handler struct {
	svc *service.Service
	log *logrus.Logger
}

func NewHandler(svc *service.Service, log *logrus.Logger) *Handler {
	return &Handler{svc: svc, log: log}
}

// Router builds the HTTP surface. The admin subtree sits behind the supplied
// auth middleware chain.
func (h *Handler) Router(auth ...mux.MiddlewareFunc) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/register", h.Register).Methods("POST")
	r.HandleFunc("/verify-account/{token}", h.Verify).Methods("GET")
	r.HandleFunc("/login", h.Login).Methods("POST")
	r.HandleFunc("/forget-password", h.ForgotPassword).Methods("POST")
	r.HandleFunc("/reset-password/{token}", h.ResetPassword).Methods("POST")
	r.HandleFunc("/resend-verification", h.ResendVerification).Methods("POST")
	r.HandleFunc("/change-password", h.ChangePassword).Methods("POST")

	adminRouter := r.PathPrefix("/admin").Subrouter()
	adminRouter.Use(auth...)
	adminRouter.HandleFunc("/{id}", h.MakeAdmin).Methods("POST")
	return r
}

type registerRequest struct {
	FullName        string `json:"fullName" validate:"required"`
	Email           string `json:"email" validate:"required,email"`
	Username        string `json:"username" validate:"required"`
	Password        string `json:"password" validate:"required"`
	ConfirmPassword string `json:"confirmPassword" validate:"required"`
	Gender          string `json:"gender" validate:"required"`
}

// Register handles user registration
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !h.decode(w, r, &req) {
		return
	}

	user, err := h.svc.Register(service.RegisterInput{
		FullName:        req.FullName,
		Email:           req.Email,
		Username:        req.Username,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
		Gender:          req.Gender,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.respond(w, http.StatusCreated, response{
		Message: "user registered successfully",
		Data:    user,
	})
}

// Verify handles the emailed verification link
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.VerifyAccount(mux.Vars(r)["token"]); err != nil {
		h.respondError(w, err)
		return
	}
	h.respond(w, http.StatusOK, response{Message: "account verified successfully"})
}

type loginRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login handles user authentication
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !h.decode(w, r, &req) {
		return
	}

	user, session, err := h.svc.Login(service.LoginInput{
		Email:    req.Email,
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.respond(w, http.StatusOK, response{
		Message: "login successful",
		Data:    user,
		Token:   session,
	})
}

type emailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// ForgotPassword initiates a password reset. The response shape never
// depends on whether the address is registered.
func (h *Handler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.svc.ForgotPassword(req.Email); err != nil {
		h.respondError(w, err)
		return
	}
	h.respond(w, http.StatusOK, response{
		Message: "reset password initiated, please check your email for the reset link",
	})
}

type resetPasswordRequest struct {
	Password        string `json:"password" validate:"required"`
	ConfirmPassword string `json:"confirmPassword" validate:"required"`
}

// ResetPassword handles the emailed reset link
func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.svc.ResetPassword(mux.Vars(r)["token"], req.Password, req.ConfirmPassword); err != nil {
		h.respondError(w, err)
		return
	}
	h.respond(w, http.StatusOK, response{Message: "password reset successful"})
}

// ResendVerification queues a fresh verification email
func (h *Handler) ResendVerification(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.svc.ResendVerification(req.Email); err != nil {
		h.respondError(w, err)
		return
	}
	h.respond(w, http.StatusOK, response{
		Message: "verification email sent, please check your email",
	})
}

// MakeAdmin promotes a user; the route is gated by the auth middleware
func (h *Handler) MakeAdmin(w http.ResponseWriter, r *http.Request) {
	user, err := h.svc.MakeAdmin(mux.Vars(r)["id"])
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respond(w, http.StatusOK, response{
		Message: "user promoted to admin",
		Data:    user,
	})
}

// ChangePassword is declared but carries no logic yet
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	http.Error(w, "Not implemented", http.StatusNotImplemented)
}

type response struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Token   string      `json:"token,omitempty"`
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.respond(w, http.StatusBadRequest, response{Message: "invalid request body"})
		return false
	}
	if err := validate.Struct(dst); err != nil {
		h.respond(w, http.StatusBadRequest, response{Message: "please complete all inputs"})
		return false
	}
	return true
}

func (h *Handler) respond(w http.ResponseWriter, code int, body response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(body)
}

// respondError maps lifecycle errors to status codes at the request
// boundary; anything unclassified becomes a generic 500.
func (h *Handler) respondError(w http.ResponseWriter, err error) {
	var appErr *service.AppError
	if errors.As(err, &appErr) {
		h.respond(w, appErr.StatusCode, response{Message: appErr.Message})
		return
	}
	h.log.Errorf("Unexpected error: %v", err)
	h.respond(w, http.StatusInternalServerError, response{Message: "internal server error"})
}
