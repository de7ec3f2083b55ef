package handler

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/wcag-monitor/internal/api/dto"
	"github.com/wcag-monitor/internal/api/response"
	"github.com/wcag-monitor/internal/auth"
	"github.com/wcag-monitor/internal/store"
	"go.uber.org/zap"
)

type AuthHandler struct {
	users  *store.UserStore
	tokens *auth.JWTManager
	hasher *auth.PasswordHasher
	log    *zap.Logger
}

func NewAuthHandler(users *store.UserStore, tokens *auth.JWTManager, hasher *auth.PasswordHasher, log *zap.Logger) *AuthHandler {
	return &AuthHandler{users: users, tokens: tokens, hasher: hasher, log: log}
}

func (h *AuthHandler) Signup(c *gin.Context) {
	var req dto.SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "", err)
		return
	}
	hash, err := h.hasher.Hash(req.Password)
	if err != nil {
		response.ServerError(c, err)
		return
	}
	user, err := h.users.Create(c.Request.Context(), req.Email, hash, req.Name)
	if err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			response.Conflict(c, "user with this email already exists")
			return
		}
		response.ServerErrorMsg(c, "failed to create user", err)
		return
	}
	pair, err := h.tokens.IssueTokens(user)
	if err != nil {
		response.ServerError(c, err)
		return
	}
	h.log.Info("user signed up", zap.Uint("user_id", user.ID))

	resp := dto.NewUserResponse(user)
	response.Created(c, "", "user created successfully", dto.AuthResponse{
		User:         &resp,
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	})
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "", err)
		return
	}
	user, err := h.users.FindByEmail(c.Request.Context(), req.Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			response.Unauthorized(c, "invalid email or password")
			return
		}
		response.ServerErrorMsg(c, "login failed", err)
		return
	}
	if !h.hasher.Verify(req.Password, user.PasswordHash) {
		response.Unauthorized(c, "invalid email or password")
		return
	}
	pair, err := h.tokens.IssueTokens(user)
	if err != nil {
		response.ServerError(c, err)
		return
	}

	resp := dto.NewUserResponse(user)
	response.OkWithMessage(c, "login successful", dto.AuthResponse{
		User:         &resp,
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	})
}

func (h *AuthHandler) Refresh(c *gin.Context) {
	var req dto.RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "", err)
		return
	}
	claims, err := h.tokens.ValidateRefreshToken(req.RefreshToken)
	if err != nil {
		response.Unauthorized(c, "invalid or expired refresh token")
		return
	}
	userID, err := claims.UserID()
	if err != nil {
		response.Unauthorized(c, "invalid or expired refresh token")
		return
	}
	user, err := h.users.FindByID(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			response.Unauthorized(c, "user not found")
			return
		}
		response.ServerErrorMsg(c, "token refresh failed", err)
		return
	}
	pair, err := h.tokens.IssueTokens(user)
	if err != nil {
		response.ServerError(c, err)
		return
	}
	response.OkWithMessage(c, "token refreshed", dto.AuthResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	})
}

func (h *AuthHandler) Me(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	response.Ok(c, gin.H{"user": dto.NewUserResponse(user)})
}

func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	var req dto.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "", err)
		return
	}
	update := store.ProfileUpdate{Name: req.Name}
	if n := req.Notifications; n != nil {
		update.NotifyEmail = n.Email
		update.NotifyFrequency = n.Frequency
		update.NotifyAlertOnError = n.AlertOnError
	}
	updated, err := h.users.UpdateProfile(c.Request.Context(), user.ID, update)
	if err != nil {
		response.ServerErrorMsg(c, "failed to update profile", err)
		return
	}
	response.OkWithMessage(c, "profile updated", gin.H{"user": dto.NewUserResponse(updated)})
}

func (h *AuthHandler) ChangePassword(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	var req dto.ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "", err)
		return
	}
	if !h.hasher.Verify(req.CurrentPassword, user.PasswordHash) {
		response.Unauthorized(c, "current password is incorrect")
		return
	}
	hash, err := h.hasher.Hash(req.NewPassword)
	if err != nil {
		response.ServerError(c, err)
		return
	}
	if err := h.users.UpdatePassword(c.Request.Context(), user.ID, hash); err != nil {
		response.ServerErrorMsg(c, "failed to update password", err)
		return
	}
	response.OkWithMessage(c, "password updated successfully", nil)
}
